package kv

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

type memoryEntry struct {
	version Version
	key     Key
	value   []byte
}

type memoryMessage struct {
	dueAt   time.Time
	payload []byte
	attempt int
}

// PendingMessage is a queued message that has not been acknowledged yet.
type PendingMessage struct {
	DueAt   time.Time
	Payload []byte
	Attempt int
}

// Memory is a process-local Store. Commits are serialized by a mutex, which
// makes every Atomic trivially isolated. Messages are delivered by Listen
// one at a time.
type Memory struct {
	entries map[string]memoryEntry
	opts    *memoryOptions
	wake    chan struct{}
	queue   []*memoryMessage
	seq     uint64
	mu      sync.Mutex
	closed  bool
}

// NewMemory creates an empty in-memory store.
//
// Example:
//
//	store := kv.NewMemory(kv.WithPollInterval(50 * time.Millisecond))
//	defer store.Close()
func NewMemory(opts ...MemoryOption) *Memory {
	o := defaultMemoryOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &Memory{
		entries: make(map[string]memoryEntry),
		opts:    o,
		wake:    make(chan struct{}, 1),
	}
}

// Get reads a key.
func (m *Memory) Get(_ context.Context, key Key) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Entry{}, ErrClosed
	}

	e, ok := m.entries[key.String()]
	if !ok {
		return Entry{Key: key}, nil
	}
	return Entry{Key: key, Value: slices.Clone(e.value), Version: e.version}, nil
}

// Atomic starts a new atomic operation.
func (m *Memory) Atomic() Atomic {
	return &memoryAtomic{store: m}
}

// Listen delivers due messages to h until ctx is done or the store is closed.
func (m *Memory) Listen(ctx context.Context, h Handler) error {
	ticker := time.NewTicker(m.opts.pollInterval)
	defer ticker.Stop()

	for {
		for {
			msg, err := m.popDue()
			if err != nil {
				return err
			}
			if msg == nil {
				break
			}
			m.deliver(ctx, h, msg)
			if ctx.Err() != nil {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-m.wake:
		}
	}
}

// Pending returns a snapshot of undelivered messages ordered by due time.
func (m *Memory) Pending() []PendingMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]PendingMessage, 0, len(m.queue))
	for _, msg := range m.queue {
		out = append(out, PendingMessage{
			DueAt:   msg.dueAt,
			Payload: slices.Clone(msg.payload),
			Attempt: msg.attempt,
		})
	}
	slices.SortStableFunc(out, func(a, b PendingMessage) int {
		return a.DueAt.Compare(b.DueAt)
	})
	return out
}

// Close stops Listen and rejects further operations.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	m.signal()
	return nil
}

func (m *Memory) deliver(ctx context.Context, h Handler, msg *memoryMessage) {
	msg.attempt++
	if err := h(ctx, msg.payload); err == nil {
		return
	}
	if msg.attempt >= m.opts.maxAttempts {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	msg.dueAt = m.opts.now().Add(m.opts.retryDelay)
	m.queue = append(m.queue, msg)
}

// popDue removes and returns the earliest due message, or nil.
func (m *Memory) popDue() (*memoryMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	now := m.opts.now()
	idx := -1
	for i, msg := range m.queue {
		if msg.dueAt.After(now) {
			continue
		}
		if idx == -1 || msg.dueAt.Before(m.queue[idx].dueAt) {
			idx = i
		}
	}
	if idx == -1 {
		return nil, nil
	}

	msg := m.queue[idx]
	m.queue = slices.Delete(m.queue, idx, idx+1)
	return msg, nil
}

// signal wakes Listen without blocking. Callers hold mu.
func (m *Memory) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

type memoryAtomic struct {
	mutations
	store *Memory
}

// Commit validates checks and applies all mutations under the store lock.
func (a *memoryAtomic) Commit(_ context.Context) (CommitResult, error) {
	m := a.store
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return CommitResult{}, ErrClosed
	}

	for _, c := range a.checks {
		if m.entries[c.key.String()].version != c.version {
			return CommitResult{}, nil
		}
	}

	version := Version(fmt.Sprintf("%020d", m.seq+1))
	now := m.opts.now()

	// Stage writes so a bad counter leaves the store untouched.
	staged := make(map[string]*memoryEntry)
	var queued []*memoryMessage
	current := func(key Key) *memoryEntry {
		if e, ok := staged[key.String()]; ok {
			return e
		}
		if e, ok := m.entries[key.String()]; ok {
			return &e
		}
		return nil
	}

	for _, op := range a.ops {
		switch op.kind {
		case opSet:
			staged[op.key.String()] = &memoryEntry{key: op.key, value: slices.Clone(op.value), version: version}
		case opDelete:
			staged[op.key.String()] = nil
		case opSum:
			var n uint64
			if e := current(op.key); e != nil {
				var err error
				if n, err = DecodeUint64(e.value); err != nil {
					return CommitResult{}, fmt.Errorf("kv: sum %s: %w", op.key, err)
				}
			}
			staged[op.key.String()] = &memoryEntry{key: op.key, value: EncodeUint64(n + op.delta), version: version}
		case opEnqueue:
			queued = append(queued, &memoryMessage{payload: slices.Clone(op.value), dueAt: now.Add(op.delay)})
		}
	}

	m.seq++
	for k, e := range staged {
		if e == nil {
			delete(m.entries, k)
			continue
		}
		m.entries[k] = *e
	}
	if len(queued) > 0 {
		m.queue = append(m.queue, queued...)
		m.signal()
	}

	return CommitResult{OK: true, Version: version}, nil
}

var (
	_ Store  = (*Memory)(nil)
	_ Atomic = (*memoryAtomic)(nil)
)
