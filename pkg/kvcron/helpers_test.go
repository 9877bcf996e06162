package kvcron_test

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/kvcron/pkg/kv"
	"github.com/dmitrymomot/kvcron/pkg/kvcron"
)

var fixedNow = time.Date(2024, time.March, 10, 10, 2, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func newMemory(t *testing.T) *kv.Memory {
	t.Helper()

	s := kv.NewMemory(kv.WithMemoryClock(fixedClock))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// counter is a handler that counts its calls.
type counter struct {
	calls atomic.Int32
	err   error
}

func (c *counter) handle(context.Context) error {
	c.calls.Add(1)
	return c.err
}

func newManager(t *testing.T, store kv.Store, opts ...kvcron.Option) *kvcron.Manager {
	t.Helper()

	m, err := kvcron.NewManager(store, append([]kvcron.Option{kvcron.WithClock(fixedClock)}, opts...)...)
	require.NoError(t, err)
	return m
}

type payload struct {
	Nonce string `json:"nonce"`
	Epoch string `json:"epoch"`
}

func decodePayload(t *testing.T, data []byte) payload {
	t.Helper()

	var p payload
	require.NoError(t, json.Unmarshal(data, &p))
	return p
}

// pendingFor returns the queued payloads of nonce in due order.
func pendingFor(t *testing.T, s *kv.Memory, nonce string) [][]byte {
	t.Helper()

	var out [][]byte
	for _, msg := range s.Pending() {
		if decodePayload(t, msg.Payload).Nonce == nonce {
			out = append(out, msg.Payload)
		}
	}
	return out
}

func stats(t *testing.T, m *kvcron.Manager) kvcron.Stats {
	t.Helper()

	st, err := m.Stats(context.Background())
	require.NoError(t, err)
	return st
}

// flakyStore fails the next n commits, by returning err or a failed check.
type flakyStore struct {
	kv.Store
	err      error
	failures atomic.Int32
	commits  atomic.Int32
}

func (s *flakyStore) Atomic() kv.Atomic {
	return &flakyAtomic{Atomic: s.Store.Atomic(), store: s}
}

type flakyAtomic struct {
	kv.Atomic
	store *flakyStore
}

func (a *flakyAtomic) Commit(ctx context.Context) (kv.CommitResult, error) {
	a.store.commits.Add(1)
	if a.store.failures.Add(-1) >= 0 {
		return kv.CommitResult{}, a.store.err
	}
	return a.Atomic.Commit(ctx)
}

// pingStore is a store that reports err from Ping.
type pingStore struct {
	kv.Store
	err error
}

func (s pingStore) Ping(context.Context) error { return s.err }
