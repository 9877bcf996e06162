// Package kv defines the transactional key-value store with a delayed queue
// that kvcron schedules on, together with three implementations.
//
// # Interface
//
// A [Store] reads keys with [Store.Get] and writes them with an [Atomic]
// operation. Everything recorded on an Atomic commits together:
//
//	tx := store.Atomic()
//	tx.Check(key, entry.Version)      // only if nobody wrote key since we read it
//	tx.Set(key, value)
//	tx.Sum(counterKey, 1)
//	tx.Enqueue(payload, time.Minute)  // delivered no earlier than a minute after commit
//	res, err := tx.Commit(ctx)
//	if err == nil && !res.OK {
//	    // a check failed, nothing was written
//	}
//
// Queue messages are handed to the [Handler] given to [Store.Listen] at least
// once. A handler error makes the backend deliver the message again later.
//
// # Backends
//
//   - [NewMemory] keeps everything in process. Use it for tests and single-node
//     tools.
//   - [NewRedis] stores entries as hashes, checks them with WATCH and writes them
//     with MULTI/EXEC. The queue is a sorted set scored by due time.
//   - [NewPostgres] stores entries in a table under serializable transactions
//     and queues messages as River jobs inserted in the same transaction.
//     Run [MigratePostgres] first.
//
// Counters written with [Atomic.Sum] are stored as decimal text and read back
// with [Entry.Uint64].
package kv
