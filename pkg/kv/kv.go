package kv

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Key is a hierarchical key. Backends join the parts with their own separator.
type Key []string

// String returns the parts joined with "/".
func (k Key) String() string {
	return strings.Join(k, "/")
}

// Append returns a new key with parts added after k.
func (k Key) Append(parts ...string) Key {
	out := make(Key, 0, len(k)+len(parts))
	out = append(out, k...)
	return append(out, parts...)
}

// Version identifies one committed write of a key.
// The empty version means the key does not exist.
type Version string

// Entry is the result of a read.
type Entry struct {
	Version Version
	Key     Key
	Value   []byte
}

// Exists reports whether the key was present.
func (e Entry) Exists() bool {
	return e.Version != ""
}

// Uint64 decodes a counter value. A missing key reads as zero.
func (e Entry) Uint64() (uint64, error) {
	if !e.Exists() {
		return 0, nil
	}
	return DecodeUint64(e.Value)
}

// CommitResult reports the outcome of an atomic commit.
// OK is false when a check failed or the backend detected a conflicting write;
// nothing was applied in that case.
type CommitResult struct {
	Version Version
	OK      bool
}

// Handler consumes one queue message. A non-nil error asks the backend to
// deliver the message again later.
type Handler func(ctx context.Context, payload []byte) error

// Store is a transactional key-value store with a durable delayed queue.
type Store interface {
	// Get reads a key. A missing key returns an Entry with an empty Version.
	Get(ctx context.Context, key Key) (Entry, error)

	// Atomic starts a new atomic operation.
	Atomic() Atomic

	// Listen delivers queue messages to h at least once, after their delay has
	// elapsed, until ctx is done.
	Listen(ctx context.Context, h Handler) error
}

// Atomic collects checks and mutations that commit together or not at all.
type Atomic interface {
	// Check makes the commit conditional on key still being at version.
	// The empty version requires the key to be absent.
	Check(key Key, version Version)

	// Set writes value at key.
	Set(key Key, value []byte)

	// Delete removes key.
	Delete(key Key)

	// Sum adds delta to the counter at key, creating it at delta.
	Sum(key Key, delta uint64)

	// Enqueue publishes payload to the queue, deliverable after delay.
	Enqueue(payload []byte, delay time.Duration)

	// Commit applies everything atomically.
	Commit(ctx context.Context) (CommitResult, error)
}

// Pinger is implemented by stores that can verify their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// EncodeUint64 returns the stored form of a counter.
func EncodeUint64(n uint64) []byte {
	return strconv.AppendUint(nil, n, 10)
}

// DecodeUint64 parses the stored form of a counter.
func DecodeUint64(data []byte) (uint64, error) {
	n, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return 0, errors.Join(ErrInvalidCounter, err)
	}
	return n, nil
}

type opKind int

const (
	opSet opKind = iota
	opDelete
	opSum
	opEnqueue
)

type check struct {
	version Version
	key     Key
}

type operation struct {
	key   Key
	value []byte
	delta uint64
	delay time.Duration
	kind  opKind
}

// mutations records the calls made on an Atomic for a backend to replay on commit.
type mutations struct {
	checks []check
	ops    []operation
}

func (m *mutations) Check(key Key, version Version) {
	m.checks = append(m.checks, check{key: key, version: version})
}

func (m *mutations) Set(key Key, value []byte) {
	m.ops = append(m.ops, operation{kind: opSet, key: key, value: value})
}

func (m *mutations) Delete(key Key) {
	m.ops = append(m.ops, operation{kind: opDelete, key: key})
}

func (m *mutations) Sum(key Key, delta uint64) {
	m.ops = append(m.ops, operation{kind: opSum, key: key, delta: delta})
}

func (m *mutations) Enqueue(payload []byte, delay time.Duration) {
	m.ops = append(m.ops, operation{kind: opEnqueue, value: payload, delay: max(delay, 0)})
}
