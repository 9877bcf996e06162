package kvcron

import "errors"

var (
	// ErrEnqueueFailed is returned when the enqueue commit kept failing after
	// every delay of the backoff schedule was used.
	ErrEnqueueFailed = errors.New("kvcron: failed to enqueue job")

	// ErrAbortFailed is returned when the abort commit fails.
	ErrAbortFailed = errors.New("kvcron: failed to abort job")

	// ErrUnknownJob is returned for a job name that has no registered handler.
	ErrUnknownJob = errors.New("kvcron: unknown job")

	// ErrProcessFailed is returned when the store could not reschedule or
	// finalize a delivered occurrence. The record is left for redelivery.
	ErrProcessFailed = errors.New("kvcron: failed to process job")

	// ErrJobFailed wraps the error returned by a job handler.
	ErrJobFailed = errors.New("kvcron: job handler failed")

	// ErrInvalidJob is returned by NewManager for an empty name, a nil handler
	// or a name registered twice.
	ErrInvalidJob = errors.New("kvcron: invalid job definition")

	// ErrNoJobs is returned by NewManager when no job is registered.
	ErrNoJobs = errors.New("kvcron: no jobs registered")

	// ErrStoreRequired is returned by NewManager when the store is nil.
	ErrStoreRequired = errors.New("kvcron: store is required")

	// ErrNonceInUse is returned with ErrEnqueueFailed when RequireUniqueNonce
	// is set and a live occurrence already uses the nonce.
	ErrNonceInUse = errors.New("kvcron: nonce already in use")
)

// errConflict marks a commit whose checks did not hold.
var errConflict = errors.New("kvcron: store commit conflict")
