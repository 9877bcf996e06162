// Command kvcron runs a cron worker over the configured store backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/kvcron/internal/config"
	"github.com/dmitrymomot/kvcron/internal/server"
	"github.com/dmitrymomot/kvcron/pkg/db"
	"github.com/dmitrymomot/kvcron/pkg/kv"
	"github.com/dmitrymomot/kvcron/pkg/kvcron"
	"github.com/dmitrymomot/kvcron/pkg/logger"
	"github.com/dmitrymomot/kvcron/pkg/metrics"
	"github.com/dmitrymomot/kvcron/pkg/redis"
	"github.com/dmitrymomot/kvcron/pkg/schedule"
)

const heartbeatJob = "heartbeat"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, flush := logger.NewWithSentry(cfg.Log, kvcron.LogExtractors()...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, log)
	stop()
	_ = flush(context.Background())

	if err != nil {
		log.Error("kvcron stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// backend is an opened store with its readiness check and shutdown hook.
type backend struct {
	store    kv.Store
	check    server.CheckFunc
	shutdown func(context.Context) error
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.App.ShutdownTimeout)
		defer cancel()
		if err := b.shutdown(shutdownCtx); err != nil {
			log.Error("close backend", slog.Any("error", err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	collector, err := metrics.New(reg)
	if err != nil {
		return err
	}

	m, err := kvcron.NewManager(b.store,
		kvcron.WithKeyPrefix(cfg.App.KeyPrefix...),
		kvcron.WithLogger(log),
		kvcron.WithHooks(collector.Hooks()),
		kvcron.WithJob(heartbeatJob, heartbeat(log)),
	)
	if err != nil {
		return err
	}
	if err := metrics.RegisterStats(reg, m, log); err != nil {
		return err
	}

	if cfg.App.HeartbeatSchedule != "" {
		res, err := m.Enqueue(ctx, heartbeatJob, schedule.Cron(cfg.App.HeartbeatSchedule),
			kvcron.WithNonce(heartbeatJob),
		)
		if err != nil {
			return fmt.Errorf("enqueue heartbeat: %w", err)
		}
		log.Info("heartbeat scheduled", slog.Time("next", res.Next))
	}

	srv := server.New(server.Checks{
		cfg.App.Backend: b.check,
		"kvcron":        kvcron.Healthcheck(m),
	}, reg,
		server.WithAddress(cfg.App.HTTPAddr),
		server.WithLogger(log),
		server.WithShutdownTimeout(cfg.App.ShutdownTimeout),
	)

	log.Info("kvcron starting",
		slog.String("backend", cfg.App.Backend),
		slog.Any("jobs", m.Jobs()),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.Run(gctx) })
	g.Go(func() error { return srv.Run(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("kvcron stopped")
	return nil
}

func openBackend(ctx context.Context, cfg config.Config, log *slog.Logger) (backend, error) {
	switch cfg.App.Backend {
	case config.BackendRedis:
		client, err := redis.Open(ctx, cfg.Redis)
		if err != nil {
			return backend{}, err
		}
		return backend{
			store: kv.NewRedis(client,
				kv.WithQueueKey(cfg.Redis.QueueKey),
				kv.WithRedisLogger(log),
			),
			check:    redis.Healthcheck(client),
			shutdown: redis.Shutdown(client),
		}, nil

	case config.BackendPostgres:
		pool, err := db.Connect(ctx, cfg.Postgres)
		if err != nil {
			return backend{}, err
		}
		if err := kv.MigratePostgresTable(ctx, pool, cfg.Postgres.MigrationsTable, log); err != nil {
			pool.Close()
			return backend{}, err
		}
		store, err := kv.NewPostgres(pool,
			kv.WithStopTimeout(cfg.App.ShutdownTimeout),
			kv.WithPostgresLogger(log),
		)
		if err != nil {
			pool.Close()
			return backend{}, err
		}
		return backend{
			store:    store,
			check:    db.Healthcheck(pool),
			shutdown: db.Shutdown(pool),
		}, nil

	default:
		log.Warn("memory backend selected; schedules are lost on restart")
		store := kv.NewMemory()
		return backend{
			store:    store,
			check:    func(context.Context) error { return nil },
			shutdown: func(context.Context) error { return store.Close() },
		}, nil
	}
}

// heartbeat logs every firing so operators can see the worker making progress.
func heartbeat(log *slog.Logger) kvcron.Handler {
	return func(ctx context.Context) error {
		nonce, _ := kvcron.NonceFromContext(ctx)
		log.InfoContext(ctx, "heartbeat", slog.String("nonce", nonce), slog.Time("at", time.Now()))
		return nil
	}
}
