package kv

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/kvcron/pkg/logger"
)

// PostgresOption configures the Postgres store.
type PostgresOption func(*postgresOptions)

type postgresOptions struct {
	logger      *slog.Logger
	queue       string
	maxWorkers  int
	maxAttempts int
	stopTimeout time.Duration
}

func defaultPostgresOptions() *postgresOptions {
	return &postgresOptions{
		logger:      logger.NewNope(),
		queue:       "kvcron",
		maxWorkers:  10,
		maxAttempts: 25,
		stopTimeout: 30 * time.Second,
	}
}

// WithQueueName sets the River queue that carries messages.
// Default: "kvcron".
func WithQueueName(name string) PostgresOption {
	return func(o *postgresOptions) {
		if name != "" {
			o.queue = name
		}
	}
}

// WithMaxWorkers sets how many messages are handled at once.
// Default: 10.
func WithMaxWorkers(n int) PostgresOption {
	return func(o *postgresOptions) {
		if n > 0 {
			o.maxWorkers = n
		}
	}
}

// WithPostgresMaxAttempts sets how many times a message is delivered before
// River discards it.
// Default: 25.
func WithPostgresMaxAttempts(n int) PostgresOption {
	return func(o *postgresOptions) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithStopTimeout bounds how long Listen waits for running handlers after its
// context is done.
// Default: 30 seconds.
func WithStopTimeout(d time.Duration) PostgresOption {
	return func(o *postgresOptions) {
		if d > 0 {
			o.stopTimeout = d
		}
	}
}

// WithPostgresLogger sets the logger passed to River.
func WithPostgresLogger(l *slog.Logger) PostgresOption {
	return func(o *postgresOptions) {
		if l != nil {
			o.logger = l
		}
	}
}
