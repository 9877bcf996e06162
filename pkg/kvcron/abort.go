package kvcron

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmitrymomot/kvcron/pkg/kv"
)

// abortAttempts bounds how often Abort re-reads after a concurrent write.
const abortAttempts = 8

// Abort cancels the occurrence identified by nonce.
//
// The record is deleted and the enqueued counter decremented, never below
// zero, in one commit conditioned on both values read. A concurrent write to
// either key makes Abort read them again, so a busy counter does not keep
// the record alive. The queued message stays in the queue; its delivery
// finds no record and does nothing. Aborting an occurrence that is already
// gone succeeds without writing.
func (m *Manager) Abort(ctx context.Context, nonce string) error {
	m.dropWatch(nonce)

	for range abortAttempts {
		done, err := m.tryAbort(ctx, nonce)
		if err != nil {
			return errors.Join(ErrAbortFailed, err)
		}
		if done {
			return nil
		}
	}
	return errors.Join(ErrAbortFailed, errConflict)
}

// tryAbort makes one attempt. It reports false when a checked key changed.
func (m *Manager) tryAbort(ctx context.Context, nonce string) (bool, error) {
	key := m.keys.Job(nonce)
	rec, err := m.store.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !rec.Exists() {
		return true, nil
	}

	counterKey := m.keys.EnqueuedCount()
	counter, err := m.store.Get(ctx, counterKey)
	if err != nil {
		return false, err
	}
	n, err := counter.Uint64()
	if err != nil {
		return false, err
	}
	if n > 0 {
		n--
	}

	tx := m.store.Atomic()
	tx.Check(key, rec.Version)
	tx.Check(counterKey, counter.Version)
	tx.Delete(key)
	tx.Set(counterKey, kv.EncodeUint64(n))

	res, err := tx.Commit(ctx)
	if err != nil {
		return false, err
	}
	if !res.OK {
		return false, nil
	}

	m.hooks.aborted()
	m.logger.DebugContext(ctx, "job aborted", slog.String("nonce", nonce))
	return true, nil
}
