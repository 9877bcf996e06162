package kvcron

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/kvcron/pkg/kv"
	"github.com/dmitrymomot/kvcron/pkg/logger"
)

// Manager schedules registered jobs on a kv.Store and processes their
// deliveries. Every scheduling decision is made against the store, so any
// number of managers with the same jobs and prefix may share one store. The
// only local state is the set of CancelOn watches this manager registered.
type Manager struct {
	store    kv.Store
	registry *registry
	logger   *slog.Logger
	newNonce func() string
	now      func() time.Time
	watches  map[string]*cancelWatch
	hooks    Hooks
	keys     KeySpace
	watchMu  sync.Mutex
}

// NewManager creates a manager with the registered jobs.
// Registration errors are reported here, not on first use.
//
// Example:
//
//	m, err := kvcron.NewManager(store,
//	    kvcron.WithJob("heartbeat", heartbeat),
//	    kvcron.WithLogger(log),
//	)
func NewManager(store kv.Store, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}

	cfg := newConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if len(cfg.errs) > 0 {
		return nil, errors.Join(cfg.errs...)
	}
	if len(cfg.registry.handlers) == 0 {
		return nil, ErrNoJobs
	}
	if cfg.logger == nil {
		cfg.logger = logger.NewNope()
	}

	return &Manager{
		store:    store,
		registry: cfg.registry,
		keys:     NewKeySpace(cfg.prefix...),
		newNonce: cfg.nonce,
		now:      cfg.now,
		logger:   cfg.logger,
		hooks:    cfg.hooks,
		watches:  make(map[string]*cancelWatch),
	}, nil
}

// Keys returns the manager's key space.
func (m *Manager) Keys() KeySpace {
	return m.keys
}

// Jobs returns the registered job names in sorted order.
func (m *Manager) Jobs() []string {
	return m.registry.names()
}

// Run consumes the store's queue until ctx is done, processing every
// delivery. Handler errors are logged and the delivery is acknowledged;
// store failures and unknown jobs are returned to the store for redelivery.
func (m *Manager) Run(ctx context.Context) error {
	m.logger.InfoContext(ctx, "kvcron manager started",
		slog.String("prefix", strings.Join(m.keys.prefix, "/")),
		slog.Any("jobs", m.registry.names()),
	)

	err := m.store.Listen(ctx, m.handleDelivery)

	m.logger.InfoContext(context.WithoutCancel(ctx), "kvcron manager stopped")
	return err
}

func (m *Manager) handleDelivery(ctx context.Context, payload []byte) error {
	err := m.Process(ctx, payload)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrProcessFailed), errors.Is(err, ErrUnknownJob):
		m.logger.ErrorContext(ctx, "process delivery", slog.Any("error", err))
		return err
	default:
		// The occurrence was already rescheduled or finalized; a redelivery
		// would be skipped anyway.
		return nil
	}
}

// Stats holds the manager's counters.
type Stats struct {
	Enqueued  uint64 `json:"enqueued"`
	Processed uint64 `json:"processed"`
}

// Stats reads the enqueued and processed counters.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	enqueued, err := m.readCounter(ctx, m.keys.EnqueuedCount())
	if err != nil {
		return Stats{}, err
	}
	processed, err := m.readCounter(ctx, m.keys.ProcessedCount())
	if err != nil {
		return Stats{}, err
	}
	return Stats{Enqueued: enqueued, Processed: processed}, nil
}

func (m *Manager) readCounter(ctx context.Context, key kv.Key) (uint64, error) {
	e, err := m.store.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	return e.Uint64()
}

func newEpoch() string {
	return uuid.NewString()
}
