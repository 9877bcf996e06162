package kvcron_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/kvcron/pkg/kv"
	"github.com/dmitrymomot/kvcron/pkg/kvcron"
	"github.com/dmitrymomot/kvcron/pkg/schedule"
)

func noop(context.Context) error { return nil }

type rotateKeys struct{ c *counter }

func (r rotateKeys) Name() string                     { return "rotate_keys" }
func (r rotateKeys) Handle(ctx context.Context) error { return r.c.handle(ctx) }

func TestNewManager(t *testing.T) {
	t.Parallel()

	store := kv.NewMemory()
	t.Cleanup(func() { _ = store.Close() })

	tests := []struct {
		name    string
		store   kv.Store
		opts    []kvcron.Option
		wantErr error
	}{
		{name: "nil store", store: nil, opts: []kvcron.Option{kvcron.WithJob("a", noop)}, wantErr: kvcron.ErrStoreRequired},
		{name: "no jobs", store: store, wantErr: kvcron.ErrNoJobs},
		{name: "empty name", store: store, opts: []kvcron.Option{kvcron.WithJob(" ", noop)}, wantErr: kvcron.ErrInvalidJob},
		{name: "nil handler", store: store, opts: []kvcron.Option{kvcron.WithJob("a", nil)}, wantErr: kvcron.ErrInvalidJob},
		{
			name:    "duplicate name",
			store:   store,
			opts:    []kvcron.Option{kvcron.WithJob("a", noop), kvcron.WithJob("a", noop)},
			wantErr: kvcron.ErrInvalidJob,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m, err := kvcron.NewManager(tt.store, tt.opts...)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, m)
		})
	}

	t.Run("structural task", func(t *testing.T) {
		t.Parallel()

		c := &counter{}
		m, err := kvcron.NewManager(store, kvcron.WithTask(rotateKeys{c: c}), kvcron.WithJob("b", noop))
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "rotate_keys"}, m.Jobs())
	})
}

func TestKeySpace(t *testing.T) {
	t.Parallel()

	def := kvcron.NewKeySpace()
	assert.Equal(t, "kv_cron/jobs/n1", def.Job("n1").String())
	assert.Equal(t, "kv_cron/enqueued_count", def.EnqueuedCount().String())
	assert.Equal(t, "kv_cron/processed_count", def.ProcessedCount().String())

	custom := kvcron.NewKeySpace("billing", "cron")
	assert.Equal(t, "billing/cron/jobs/n1", custom.Job("n1").String())
	assert.Equal(t, kv.Key{"billing", "cron"}, custom.Prefix())
}

func TestManager_PrefixIsolation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemory(t)
	a := newManager(t, store, kvcron.WithJob("job", noop), kvcron.WithKeyPrefix("a"))
	b := newManager(t, store, kvcron.WithJob("job", noop), kvcron.WithKeyPrefix("b"))

	_, err := a.Enqueue(ctx, "job", schedule.Cron("* * * * *"), kvcron.WithNonce("same"))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), stats(t, a).Enqueued)
	assert.Equal(t, uint64(0), stats(t, b).Enqueued)

	// b has no record for the nonce, so the delivery is a no-op for it.
	msg := pendingFor(t, store, "same")[0]
	require.NoError(t, b.Process(ctx, msg))
	assert.Equal(t, uint64(0), stats(t, b).Processed)
}

func TestManager_Run(t *testing.T) {
	t.Parallel()

	store := kv.NewMemory(kv.WithPollInterval(10 * time.Millisecond))
	t.Cleanup(func() { _ = store.Close() })

	c := &counter{err: errors.New("handler failure is not redelivered")}
	m, err := kvcron.NewManager(store, kvcron.WithJob("tick", c.handle))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	res, err := m.Enqueue(ctx, "tick", schedule.Cron("* * * * * *"), kvcron.Times(2))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		e, err := store.Get(context.Background(), m.Keys().Job(res.Nonce))
		return err == nil && !e.Exists()
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, int32(2), c.calls.Load())
	assert.Equal(t, uint64(2), stats(t, m).Processed)
}

func TestHealthcheck(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("nil manager", func(t *testing.T) {
		t.Parallel()
		assert.ErrorIs(t, kvcron.Healthcheck(nil)(ctx), kvcron.ErrHealthcheckFailed)
	})

	t.Run("store without ping", func(t *testing.T) {
		t.Parallel()
		m := newManager(t, newMemory(t), kvcron.WithJob("a", noop))
		assert.NoError(t, kvcron.Healthcheck(m)(ctx))
	})

	t.Run("failing ping", func(t *testing.T) {
		t.Parallel()
		m := newManager(t, pingStore{Store: newMemory(t), err: errors.New("down")}, kvcron.WithJob("a", noop))
		assert.ErrorIs(t, kvcron.Healthcheck(m)(ctx), kvcron.ErrHealthcheckFailed)
	})

	t.Run("healthy ping", func(t *testing.T) {
		t.Parallel()
		m := newManager(t, pingStore{Store: newMemory(t)}, kvcron.WithJob("a", noop))
		assert.NoError(t, kvcron.Healthcheck(m)(ctx))
	})
}
