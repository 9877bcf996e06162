package kv

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/kvcron/pkg/logger"
)

// RedisOption configures the Redis store.
type RedisOption func(*redisOptions)

type redisOptions struct {
	logger            *slog.Logger
	queueKey          string
	pollInterval      time.Duration
	visibilityTimeout time.Duration
	retryDelay        time.Duration
	batchSize         int
	concurrency       int
	maxAttempts       int
}

func defaultRedisOptions() *redisOptions {
	return &redisOptions{
		logger:            logger.NewNope(),
		queueKey:          "kvcron:queue",
		pollInterval:      500 * time.Millisecond,
		visibilityTimeout: 30 * time.Second,
		retryDelay:        5 * time.Second,
		batchSize:         16,
		concurrency:       4,
		maxAttempts:       25,
	}
}

// WithQueueKey sets the sorted set that holds queued messages.
// Stores sharing a queue key share one queue.
// Default: "kvcron:queue".
func WithQueueKey(key string) RedisOption {
	return func(o *redisOptions) {
		if key != "" {
			o.queueKey = key
		}
	}
}

// WithRedisPollInterval sets how often Listen claims due messages.
// Default: 500ms.
func WithRedisPollInterval(d time.Duration) RedisOption {
	return func(o *redisOptions) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithVisibilityTimeout sets how long a claimed message stays hidden from other
// listeners. A message whose listener dies is delivered again after this time.
// Default: 30 seconds.
func WithVisibilityTimeout(d time.Duration) RedisOption {
	return func(o *redisOptions) {
		if d > 0 {
			o.visibilityTimeout = d
		}
	}
}

// WithRedisRetryDelay sets the delay before a failed message is delivered again.
// Default: 5 seconds.
func WithRedisRetryDelay(d time.Duration) RedisOption {
	return func(o *redisOptions) {
		if d >= 0 {
			o.retryDelay = d
		}
	}
}

// WithBatchSize sets how many messages one claim takes.
// Default: 16.
func WithBatchSize(n int) RedisOption {
	return func(o *redisOptions) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithConcurrency sets how many messages of a batch are handled at once.
// Default: 4.
func WithConcurrency(n int) RedisOption {
	return func(o *redisOptions) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithRedisMaxAttempts sets how many times a message is delivered before it is dropped.
// Default: 25.
func WithRedisMaxAttempts(n int) RedisOption {
	return func(o *redisOptions) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithRedisLogger sets the logger for delivery failures.
func WithRedisLogger(l *slog.Logger) RedisOption {
	return func(o *redisOptions) {
		if l != nil {
			o.logger = l
		}
	}
}
