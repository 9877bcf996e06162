package kvcron

import (
	"slices"

	"github.com/dmitrymomot/kvcron/pkg/kv"
)

// DefaultKeyPrefix is the key prefix used when none is configured.
var DefaultKeyPrefix = kv.Key{"kv_cron"}

// KeySpace maps a prefix to the keys a manager reads and writes.
// Managers with different prefixes never touch each other's keys.
type KeySpace struct {
	prefix kv.Key
}

// NewKeySpace returns the key space under prefix, or under DefaultKeyPrefix
// when prefix is empty.
func NewKeySpace(prefix ...string) KeySpace {
	if len(prefix) == 0 {
		return KeySpace{prefix: slices.Clone(DefaultKeyPrefix)}
	}
	return KeySpace{prefix: slices.Clone(kv.Key(prefix))}
}

// Prefix returns a copy of the prefix.
func (k KeySpace) Prefix() kv.Key {
	return slices.Clone(k.prefix)
}

// Job returns the record key of the occurrence identified by nonce.
func (k KeySpace) Job(nonce string) kv.Key {
	return k.prefix.Append("jobs", nonce)
}

// EnqueuedCount returns the key of the enqueued counter.
func (k KeySpace) EnqueuedCount() kv.Key {
	return k.prefix.Append("enqueued_count")
}

// ProcessedCount returns the key of the processed counter.
func (k KeySpace) ProcessedCount() kv.Key {
	return k.prefix.Append("processed_count")
}
