package kv

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/dmitrymomot/kvcron/pkg/db"
)

// SQLSTATEs that mean the transaction lost a race and nothing was applied.
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// Postgres is a Store backed by PostgreSQL.
//
// Entries live in the kvcron_entries table. Commits run at serializable
// isolation and take their version from the kvcron_versionstamp sequence.
// Messages are River jobs inserted in the same transaction as the writes,
// so they become visible only when the commit succeeds.
type Postgres struct {
	pool    *pgxpool.Pool
	client  *river.Client[pgx.Tx]
	opts    *postgresOptions
	handler atomic.Pointer[Handler]
}

// NewPostgres creates a Postgres-backed store. Run MigratePostgres first.
// The pool's lifecycle stays with the caller.
func NewPostgres(pool *pgxpool.Pool, opts ...PostgresOption) (*Postgres, error) {
	if pool == nil {
		return nil, ErrPoolRequired
	}

	o := defaultPostgresOptions()
	for _, opt := range opts {
		opt(o)
	}

	p := &Postgres{pool: pool, opts: o}

	workers := river.NewWorkers()
	river.AddWorker(workers, &queueMessageWorker{store: p})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			o.queue: {MaxWorkers: o.maxWorkers},
		},
		Workers:     workers,
		MaxAttempts: o.maxAttempts,
		Logger:      o.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("kv: create river client: %w", err)
	}
	p.client = client

	return p, nil
}

// Get reads a key.
func (p *Postgres) Get(ctx context.Context, key Key) (Entry, error) {
	entry := Entry{Key: key}

	var version int64
	err := p.pool.QueryRow(ctx,
		`SELECT value, version FROM kvcron_entries WHERE key = $1`,
		key.String(),
	).Scan(&entry.Value, &version)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return entry, nil
	case err != nil:
		return Entry{}, fmt.Errorf("kv: postgres get %s: %w", key, err)
	}

	entry.Version = postgresVersion(version)
	return entry, nil
}

// Atomic starts a new atomic operation.
func (p *Postgres) Atomic() Atomic {
	return &postgresAtomic{store: p}
}

// Ping verifies the connection.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Listen runs River workers for the store's queue until ctx is done, then
// waits up to the stop timeout for running handlers.
func (p *Postgres) Listen(ctx context.Context, h Handler) error {
	p.handler.Store(&h)
	defer p.handler.Store(nil)

	// Cancelling the start context makes River abandon running jobs, so the
	// client gets a detached one and is stopped explicitly instead.
	if err := p.client.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("kv: start river client: %w", err)
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.stopTimeout)
	defer cancel()
	if err := p.client.Stop(stopCtx); err != nil {
		return fmt.Errorf("kv: stop river client: %w", err)
	}
	return nil
}

type queueMessageArgs struct {
	Payload []byte `json:"payload"`
}

func (queueMessageArgs) Kind() string {
	return "kvcron:message"
}

// queueMessageWorker hands River jobs to the handler installed by Listen.
type queueMessageWorker struct {
	river.WorkerDefaults[queueMessageArgs]
	store *Postgres
}

func (w *queueMessageWorker) Work(ctx context.Context, job *river.Job[queueMessageArgs]) error {
	h := w.store.handler.Load()
	if h == nil {
		return ErrNotListening
	}
	return (*h)(ctx, job.Args.Payload)
}

type postgresAtomic struct {
	mutations
	store *Postgres
}

// Commit applies checks and mutations in one serializable transaction.
// Serialization failures and deadlocks are reported as a failed check.
func (a *postgresAtomic) Commit(ctx context.Context) (CommitResult, error) {
	p := a.store
	var stamp int64

	err := db.WithTxOptions(ctx, p.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
		for _, c := range a.checks {
			if err := checkVersion(ctx, tx, c); err != nil {
				return err
			}
		}

		if err := tx.QueryRow(ctx, `SELECT nextval('kvcron_versionstamp')`).Scan(&stamp); err != nil {
			return err
		}

		now := time.Now()
		for _, op := range a.ops {
			if err := a.apply(ctx, tx, op, stamp, now); err != nil {
				return err
			}
		}
		return nil
	})

	var pgErr *pgconn.PgError
	switch {
	case err == nil:
		return CommitResult{OK: true, Version: postgresVersion(stamp)}, nil
	case errors.Is(err, errCheckFailed):
		return CommitResult{}, nil
	case errors.As(err, &pgErr) && (pgErr.Code == sqlStateSerializationFailure || pgErr.Code == sqlStateDeadlockDetected):
		return CommitResult{}, nil
	default:
		return CommitResult{}, fmt.Errorf("kv: postgres commit: %w", err)
	}
}

func (a *postgresAtomic) apply(ctx context.Context, tx pgx.Tx, op operation, stamp int64, now time.Time) error {
	switch op.kind {
	case opSet:
		return upsert(ctx, tx, op.key, op.value, stamp)
	case opDelete:
		_, err := tx.Exec(ctx, `DELETE FROM kvcron_entries WHERE key = $1`, op.key.String())
		return err
	case opSum:
		var cur []byte
		err := tx.QueryRow(ctx, `SELECT value FROM kvcron_entries WHERE key = $1`, op.key.String()).Scan(&cur)
		var n uint64
		switch {
		case errors.Is(err, pgx.ErrNoRows):
		case err != nil:
			return err
		default:
			if n, err = DecodeUint64(cur); err != nil {
				return fmt.Errorf("sum %s: %w", op.key, err)
			}
		}
		return upsert(ctx, tx, op.key, EncodeUint64(n+op.delta), stamp)
	case opEnqueue:
		_, err := a.store.client.InsertTx(ctx, tx, queueMessageArgs{Payload: op.value}, &river.InsertOpts{
			Queue:       a.store.opts.queue,
			ScheduledAt: now.Add(op.delay),
		})
		return err
	}
	return nil
}

func checkVersion(ctx context.Context, tx pgx.Tx, c check) error {
	var version int64
	err := tx.QueryRow(ctx, `SELECT version FROM kvcron_entries WHERE key = $1`, c.key.String()).Scan(&version)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if c.version != "" {
			return errCheckFailed
		}
		return nil
	case err != nil:
		return err
	}
	if postgresVersion(version) != c.version {
		return errCheckFailed
	}
	return nil
}

func upsert(ctx context.Context, tx pgx.Tx, key Key, value []byte, stamp int64) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO kvcron_entries (key, value, version) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, version = EXCLUDED.version`,
		key.String(), value, stamp,
	)
	return err
}

// postgresVersion pads the sequence value so versions sort as strings.
func postgresVersion(stamp int64) Version {
	return Version(fmt.Sprintf("%020d", stamp))
}

var (
	_ Store  = (*Postgres)(nil)
	_ Atomic = (*postgresAtomic)(nil)
	_ Pinger = (*Postgres)(nil)
)
