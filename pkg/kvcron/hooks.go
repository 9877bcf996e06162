package kvcron

import "time"

// SkipReason says why a delivery did not run its handler.
type SkipReason string

const (
	// SkipMalformed is a message that is not an occurrence payload.
	SkipMalformed SkipReason = "malformed"
	// SkipMissing is a delivery whose record is gone (aborted or finished).
	SkipMissing SkipReason = "missing"
	// SkipStale is a duplicate of a firing that was already rescheduled.
	SkipStale SkipReason = "stale"
	// SkipConflict is a delivery whose reschedule lost to another consumer.
	SkipConflict SkipReason = "conflict"
)

// Hooks observe manager activity. Nil fields are ignored.
// Hooks run synchronously on the calling goroutine and must not block.
type Hooks struct {
	Enqueued     func(job string)
	EnqueueRetry func(job string, attempt int)
	Processed    func(job string, took time.Duration, err error)
	Skipped      func(reason SkipReason)
	Aborted      func()
}

func (h Hooks) enqueued(job string) {
	if h.Enqueued != nil {
		h.Enqueued(job)
	}
}

func (h Hooks) enqueueRetry(job string, attempt int) {
	if h.EnqueueRetry != nil {
		h.EnqueueRetry(job, attempt)
	}
}

func (h Hooks) processed(job string, took time.Duration, err error) {
	if h.Processed != nil {
		h.Processed(job, took, err)
	}
}

func (h Hooks) skipped(reason SkipReason) {
	if h.Skipped != nil {
		h.Skipped(reason)
	}
}

func (h Hooks) aborted() {
	if h.Aborted != nil {
		h.Aborted()
	}
}
