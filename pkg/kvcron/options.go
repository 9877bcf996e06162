package kvcron

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// config holds manager configuration.
type config struct {
	registry *registry
	nonce    func() string
	now      func() time.Time
	logger   *slog.Logger
	hooks    Hooks
	prefix   []string
	errs     []error
}

func newConfig() *config {
	return &config{
		registry: newRegistry(),
		nonce:    uuid.NewString,
		now:      time.Now,
	}
}

// Option configures the manager.
type Option func(*config)

// WithJob registers a handler under name.
//
// Example:
//
//	kvcron.WithJob("cleanup_sessions", func(ctx context.Context) error {
//	    return repo.DeleteExpiredSessions(ctx)
//	})
func WithJob(name string, h Handler) Option {
	return func(c *config) {
		if err := c.registry.register(name, h); err != nil {
			c.errs = append(c.errs, err)
		}
	}
}

// WithTask registers a job using structural typing.
// The task must implement Name() and Handle(ctx) methods.
//
// Example:
//
//	type RotateKeys struct{ vault *vault.Client }
//
//	func (t *RotateKeys) Name() string { return "rotate_keys" }
//	func (t *RotateKeys) Handle(ctx context.Context) error {
//	    return t.vault.Rotate(ctx)
//	}
//
//	kvcron.WithTask(&RotateKeys{vault: v})
func WithTask[T interface {
	Name() string
	Handle(context.Context) error
}](task T) Option {
	return func(c *config) {
		if err := c.registry.register(task.Name(), task.Handle); err != nil {
			c.errs = append(c.errs, err)
		}
	}
}

// WithKeyPrefix sets the key prefix of all records and counters.
// Default: "kv_cron".
func WithKeyPrefix(parts ...string) Option {
	return func(c *config) {
		if len(parts) > 0 {
			c.prefix = parts
		}
	}
}

// WithNonceGenerator replaces the generator of occurrence nonces.
// Default: uuid.NewString.
func WithNonceGenerator(fn func() string) Option {
	return func(c *config) {
		if fn != nil {
			c.nonce = fn
		}
	}
}

// WithLogger sets the logger. If not set, a noop logger is used.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock replaces the clock used as the default anchor of Enqueue and Process.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// WithHooks installs activity hooks, such as the Prometheus collector in pkg/metrics.
func WithHooks(h Hooks) Option {
	return func(c *config) {
		c.hooks = h
	}
}

// enqueueConfig holds options for a single enqueue.
type enqueueConfig struct {
	at           *time.Time
	amount       *uint64
	cancel       context.Context
	onAbortError func(nonce string, err error)
	nonce        string
	backoff      []time.Duration
	unique       bool
}

// EnqueueOption configures Enqueue.
type EnqueueOption func(*enqueueConfig)

// At anchors the schedule at t instead of now. The delay is the distance from
// t to the first occurrence after t.
func At(t time.Time) EnqueueOption {
	return func(c *enqueueConfig) {
		c.at = &t
	}
}

// Times limits the job to n executions. Without it the job repeats until aborted.
// A value of 0 behaves like 1.
//
// Example:
//
//	m.Enqueue(ctx, "send_digest", schedule.Cron("0 9 * * 1"), kvcron.Times(4))
func Times(n uint64) EnqueueOption {
	return func(c *enqueueConfig) {
		c.amount = &n
	}
}

// Backoff sets the delays between retries of a failed enqueue commit.
// The enqueue fails with ErrEnqueueFailed once every delay was used.
// The schedule travels with the occurrence, so reschedules keep it.
func Backoff(delays ...time.Duration) EnqueueOption {
	return func(c *enqueueConfig) {
		c.backoff = delays
	}
}

// WithNonce sets the occurrence nonce instead of generating one.
func WithNonce(nonce string) EnqueueOption {
	return func(c *enqueueConfig) {
		c.nonce = nonce
	}
}

// RequireUniqueNonce makes the enqueue fail with ErrNonceInUse when a live
// occurrence already uses the nonce.
func RequireUniqueNonce() EnqueueOption {
	return func(c *enqueueConfig) {
		c.unique = true
	}
}

// CancelOn aborts the occurrence once ctx is done. The abort runs in its own
// goroutine; an already finished ctx aborts right after the enqueue commits.
// A later Enqueue of the same nonce on this manager replaces the watch, and
// the watch ends when the occurrence finishes or is aborted.
//
// Example:
//
//	ctx, cancel := context.WithCancel(ctx)
//	m.Enqueue(ctx, "poll_export", schedule.Cron("@every 30s"), kvcron.CancelOn(ctx))
//	// later
//	cancel()
func CancelOn(ctx context.Context) EnqueueOption {
	return func(c *enqueueConfig) {
		c.cancel = ctx
	}
}

// OnAbortError receives the error of an abort triggered by CancelOn.
// Without it the error is logged.
func OnAbortError(fn func(nonce string, err error)) EnqueueOption {
	return func(c *enqueueConfig) {
		c.onAbortError = fn
	}
}

// processConfig holds options for a single Process call.
type processConfig struct {
	at *time.Time
}

// ProcessOption configures Process.
type ProcessOption func(*processConfig)

// ProcessAt anchors the reschedule at t instead of now.
func ProcessAt(t time.Time) ProcessOption {
	return func(c *processConfig) {
		c.at = &t
	}
}
