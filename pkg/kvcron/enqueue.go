package kvcron

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/kvcron/pkg/kv"
	"github.com/dmitrymomot/kvcron/pkg/schedule"
)

// EnqueueResult describes a committed occurrence.
type EnqueueResult struct {
	// Next is the occurrence time computed from the anchor.
	Next    time.Time
	Nonce   string
	Epoch   string
	Version kv.Version
}

// Enqueue schedules the next occurrence of the named job.
//
// The record, the queue message and the enqueued counter are written in one
// commit. A failed commit is retried after each delay given with Backoff;
// once they are used up Enqueue fails with ErrEnqueueFailed. An invalid
// schedule fails at once with schedule.ErrInvalidSchedule.
//
// Example:
//
//	res, err := m.Enqueue(ctx, "send_digest", schedule.Cron("0 9 * * *"),
//	    kvcron.Times(7),
//	    kvcron.Backoff(100*time.Millisecond, time.Second),
//	)
func (m *Manager) Enqueue(ctx context.Context, name string, spec schedule.Spec, opts ...EnqueueOption) (EnqueueResult, error) {
	if _, ok := m.registry.get(name); !ok {
		return EnqueueResult{}, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	var cfg enqueueConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	occ := occurrence{
		Nonce:    cfg.nonce,
		Name:     name,
		Schedule: spec,
		Backoff:  backoffToMillis(cfg.backoff),
		Date:     m.now(),
		Epoch:    newEpoch(),
	}
	if occ.Nonce == "" {
		occ.Nonce = m.newNonce()
	}
	if cfg.at != nil {
		occ.Date = *cfg.at
	}

	var check *kv.Version
	if cfg.unique {
		absent := kv.Version("")
		check = &absent
	}

	res, err := m.enqueue(ctx, occ, record{Amount: cfg.amount, Epoch: occ.Epoch}, check, cfg.backoff)
	if err != nil {
		if cfg.unique && errors.Is(err, errConflict) {
			err = errors.Join(err, ErrNonceInUse)
		}
		return EnqueueResult{}, err
	}

	if cfg.cancel != nil {
		m.abortOnDone(cfg.cancel, res.Nonce, cfg.onAbortError)
	} else {
		m.dropWatch(res.Nonce)
	}
	return res, nil
}

// enqueue commits occ and rec, retrying along backoff.
func (m *Manager) enqueue(ctx context.Context, occ occurrence, rec record, check *kv.Version, backoff []time.Duration) (EnqueueResult, error) {
	for attempt := 0; ; attempt++ {
		res, err := m.commitOccurrence(ctx, occ, rec, check)
		if err == nil {
			m.hooks.enqueued(occ.Name)
			m.logger.DebugContext(ctx, "job enqueued",
				slog.String("job", occ.Name),
				slog.String("nonce", occ.Nonce),
				slog.Time("next", res.Next),
			)
			return res, nil
		}
		if errors.Is(err, schedule.ErrInvalidSchedule) {
			return EnqueueResult{}, err
		}
		if attempt >= len(backoff) {
			return EnqueueResult{}, errors.Join(ErrEnqueueFailed, err)
		}

		m.hooks.enqueueRetry(occ.Name, attempt+1)
		m.logger.WarnContext(ctx, "retrying job enqueue",
			slog.String("job", occ.Name),
			slog.String("nonce", occ.Nonce),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", backoff[attempt]),
			slog.Any("error", err),
		)
		if err := sleep(ctx, backoff[attempt]); err != nil {
			return EnqueueResult{}, errors.Join(ErrEnqueueFailed, err)
		}
	}
}

// commitOccurrence writes one occurrence in a single commit. A failed check
// is reported as errConflict.
func (m *Manager) commitOccurrence(ctx context.Context, occ occurrence, rec record, check *kv.Version) (EnqueueResult, error) {
	sched, err := schedule.Parse(occ.Schedule)
	if err != nil {
		return EnqueueResult{}, err
	}
	next := sched.Next(occ.Date)
	if next.IsZero() {
		return EnqueueResult{}, fmt.Errorf("%w: %q has no future occurrence", schedule.ErrInvalidSchedule, sched.Expr())
	}

	msg, err := json.Marshal(occ)
	if err != nil {
		return EnqueueResult{}, fmt.Errorf("encode occurrence: %w", err)
	}
	val, err := json.Marshal(rec)
	if err != nil {
		return EnqueueResult{}, fmt.Errorf("encode record: %w", err)
	}

	key := m.keys.Job(occ.Nonce)
	tx := m.store.Atomic()
	if check != nil {
		tx.Check(key, *check)
	}
	tx.Enqueue(msg, max(next.Sub(occ.Date), 0))
	tx.Set(key, val)
	tx.Sum(m.keys.EnqueuedCount(), 1)

	res, err := tx.Commit(ctx)
	if err != nil {
		return EnqueueResult{}, err
	}
	if !res.OK {
		return EnqueueResult{}, errConflict
	}

	return EnqueueResult{
		Next:    next,
		Nonce:   occ.Nonce,
		Epoch:   occ.Epoch,
		Version: res.Version,
	}, nil
}

// cancelWatch is a pending CancelOn registration.
type cancelWatch struct {
	stop func() bool
}

// abortOnDone aborts nonce once ctx is done. It replaces any earlier watch
// on the same nonce, so a stale signal never aborts a later enqueue.
func (m *Manager) abortOnDone(ctx context.Context, nonce string, onErr func(string, error)) {
	w := &cancelWatch{}

	m.watchMu.Lock()
	defer m.watchMu.Unlock()

	if prev, ok := m.watches[nonce]; ok {
		prev.stop()
	}
	m.watches[nonce] = w
	w.stop = context.AfterFunc(ctx, func() {
		if !m.releaseWatch(nonce, w) {
			return
		}
		actx := context.WithoutCancel(ctx)
		if err := m.Abort(actx, nonce); err != nil {
			if onErr != nil {
				onErr(nonce, err)
				return
			}
			m.logger.ErrorContext(actx, "abort cancelled job",
				slog.String("nonce", nonce),
				slog.Any("error", err),
			)
		}
	})
}

// releaseWatch removes w and reports whether it was still registered.
func (m *Manager) releaseWatch(nonce string, w *cancelWatch) bool {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()

	if m.watches[nonce] != w {
		return false
	}
	delete(m.watches, nonce)
	return true
}

// dropWatch stops the watch registered for nonce, if any.
func (m *Manager) dropWatch(nonce string) {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()

	if w, ok := m.watches[nonce]; ok {
		w.stop()
		delete(m.watches, nonce)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
