package kv

import "errors"

// Sentinel errors for store operations.
var (
	// ErrClosed is returned when an operation is attempted on a closed store.
	ErrClosed = errors.New("kv: store closed")

	// ErrInvalidCounter is returned when a counter key holds a non-numeric value.
	ErrInvalidCounter = errors.New("kv: invalid counter value")

	// ErrNotListening is returned by a queue worker that received a message
	// before Listen installed a handler.
	ErrNotListening = errors.New("kv: no listener registered")

	// ErrPoolRequired is returned by NewPostgres when the pool is nil.
	ErrPoolRequired = errors.New("kv: postgres pool is required")

	// ErrMigrate is returned when the Postgres schema cannot be migrated.
	ErrMigrate = errors.New("kv: failed to migrate postgres schema")
)

// errCheckFailed aborts a backend transaction whose checks did not hold.
var errCheckFailed = errors.New("kv: check failed")
