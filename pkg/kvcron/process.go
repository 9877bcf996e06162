package kvcron

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/kvcron/pkg/kv"
)

// Process handles one delivered queue message.
//
// Messages that are not occurrences, occurrences whose record is gone and
// duplicates of an already rescheduled firing are ignored. Otherwise the
// handler runs once and the occurrence is rescheduled with one execution
// less, or its record is deleted when this was the last one. Both writes are
// conditioned on the record read before the handler ran; when another
// consumer got there first nothing is written.
//
// A handler error does not stop the reschedule; it is returned wrapped in
// ErrJobFailed after the store was updated. Store failures, and payloads of
// a live occurrence that do not decode, return ErrProcessFailed and leave the
// record for the next delivery.
func (m *Manager) Process(ctx context.Context, message []byte, opts ...ProcessOption) error {
	var cfg processConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	occ, ok, decodeErr := decodeOccurrence(message)
	if !ok {
		m.skip(ctx, SkipMalformed, occurrence{})
		return nil
	}

	key := m.keys.Job(occ.Nonce)
	entry, err := m.store.Get(ctx, key)
	if err != nil {
		return errors.Join(ErrProcessFailed, err)
	}
	if !entry.Exists() {
		m.skip(ctx, SkipMissing, occ)
		return nil
	}
	if decodeErr != nil {
		return errors.Join(ErrProcessFailed, fmt.Errorf("decode occurrence %s: %w", occ.Nonce, decodeErr))
	}

	var rec record
	if err := json.Unmarshal(entry.Value, &rec); err != nil {
		return errors.Join(ErrProcessFailed, fmt.Errorf("decode record %s: %w", key, err))
	}
	if !rec.current(occ) {
		m.skip(ctx, SkipStale, occ)
		return nil
	}

	handler, ok := m.registry.get(occ.Name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, occ.Name)
	}

	jobErr := m.run(ctx, occ, handler)

	at := m.now()
	if cfg.at != nil {
		at = *cfg.at
	}

	advanced, err := m.advance(ctx, occ, rec, entry.Version, at)
	if err != nil {
		return errors.Join(ErrProcessFailed, err, jobErr)
	}
	if !advanced {
		m.skip(ctx, SkipConflict, occ)
		return jobErr
	}

	tx := m.store.Atomic()
	tx.Sum(m.keys.ProcessedCount(), 1)
	res, err := tx.Commit(ctx)
	switch {
	case err != nil:
		return errors.Join(ErrProcessFailed, err, jobErr)
	case !res.OK:
		return errors.Join(ErrProcessFailed, errConflict, jobErr)
	}

	return jobErr
}

// run invokes the handler, turning a panic into an error.
func (m *Manager) run(ctx context.Context, occ occurrence, h Handler) (err error) {
	ctx = withOccurrence(ctx, occ)
	start := m.now()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
		took := m.now().Sub(start)
		m.hooks.processed(occ.Name, took, err)

		if err != nil {
			err = errors.Join(ErrJobFailed, err)
			m.logger.ErrorContext(ctx, "job failed",
				slog.String("job", occ.Name),
				slog.String("nonce", occ.Nonce),
				slog.Duration("took", took),
				slog.Any("error", err),
			)
			return
		}
		m.logger.DebugContext(ctx, "job completed",
			slog.String("job", occ.Name),
			slog.String("nonce", occ.Nonce),
			slog.Duration("took", took),
		)
	}()

	return h(ctx)
}

// advance reschedules the occurrence or deletes its record. It reports false
// when the record changed since it was read at version.
func (m *Manager) advance(ctx context.Context, occ occurrence, rec record, version kv.Version, at time.Time) (bool, error) {
	if rec.Amount != nil && *rec.Amount <= 1 {
		tx := m.store.Atomic()
		tx.Check(m.keys.Job(occ.Nonce), version)
		tx.Delete(m.keys.Job(occ.Nonce))
		res, err := tx.Commit(ctx)
		if err != nil {
			return false, err
		}
		if res.OK {
			m.dropWatch(occ.Nonce)
			m.logger.DebugContext(ctx, "job finished",
				slog.String("job", occ.Name),
				slog.String("nonce", occ.Nonce),
			)
		}
		return res.OK, nil
	}

	next := occ
	next.Date = at
	next.Epoch = newEpoch()

	nextRec := record{Epoch: next.Epoch}
	if rec.Amount != nil {
		remaining := *rec.Amount - 1
		nextRec.Amount = &remaining
	}

	_, err := m.commitOccurrence(ctx, next, nextRec, &version)
	switch {
	case errors.Is(err, errConflict):
		return false, nil
	case err != nil:
		return false, err
	}
	m.hooks.enqueued(next.Name)
	return true, nil
}

func (m *Manager) skip(ctx context.Context, reason SkipReason, occ occurrence) {
	m.hooks.skipped(reason)
	m.logger.DebugContext(ctx, "delivery skipped",
		slog.String("reason", string(reason)),
		slog.String("job", occ.Name),
		slog.String("nonce", occ.Nonce),
	)
}
