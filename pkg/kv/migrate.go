package kv

import (
	"context"
	"embed"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"

	"github.com/dmitrymomot/kvcron/pkg/db"
	"github.com/dmitrymomot/kvcron/pkg/logger"
)

//go:embed migrations/*.sql
var migrations embed.FS

// MigrationsTable is the goose bookkeeping table for the entries schema.
const MigrationsTable = "kvcron_schema_migrations"

// MigratePostgres installs the River queue tables and the entries table.
// It is safe to run on every start.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool, log *slog.Logger) error {
	return MigratePostgresTable(ctx, pool, MigrationsTable, log)
}

// MigratePostgresTable is MigratePostgres with a custom goose bookkeeping table.
// An empty table means MigrationsTable.
func MigratePostgresTable(ctx context.Context, pool *pgxpool.Pool, table string, log *slog.Logger) error {
	if table == "" {
		table = MigrationsTable
	}
	if log == nil {
		log = logger.NewNope()
	}

	migrator, err := rivermigrate.New(riverpgxv5.New(pool), &rivermigrate.Config{Logger: log})
	if err != nil {
		return errors.Join(ErrMigrate, err)
	}
	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		return errors.Join(ErrMigrate, err)
	}
	for _, v := range res.Versions {
		log.InfoContext(ctx, "applied river migration", slog.Int("version", v.Version))
	}

	if err := db.Migrate(ctx, pool, migrations, "migrations", table, log); err != nil {
		return errors.Join(ErrMigrate, err)
	}
	return nil
}
