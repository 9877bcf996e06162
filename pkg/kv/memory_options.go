package kv

import "time"

// MemoryOption configures the in-memory store.
type MemoryOption func(*memoryOptions)

type memoryOptions struct {
	now          func() time.Time
	pollInterval time.Duration
	retryDelay   time.Duration
	maxAttempts  int
}

func defaultMemoryOptions() *memoryOptions {
	return &memoryOptions{
		now:          time.Now,
		pollInterval: 100 * time.Millisecond,
		retryDelay:   time.Second,
		maxAttempts:  25,
	}
}

// WithPollInterval sets how often Listen looks for due messages when it is
// not woken by a commit.
// Default: 100ms.
func WithPollInterval(d time.Duration) MemoryOption {
	return func(o *memoryOptions) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithRetryDelay sets how long a message waits before it is delivered again
// after its handler failed.
// Default: 1 second.
func WithRetryDelay(d time.Duration) MemoryOption {
	return func(o *memoryOptions) {
		if d >= 0 {
			o.retryDelay = d
		}
	}
}

// WithMaxAttempts sets how many times a message is delivered before it is dropped.
// Default: 25.
func WithMaxAttempts(n int) MemoryOption {
	return func(o *memoryOptions) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithMemoryClock replaces the clock used to compute due times.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(o *memoryOptions) {
		if now != nil {
			o.now = now
		}
	}
}
