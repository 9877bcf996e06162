package kv

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// testPool connects to KVCRON_TEST_DATABASE_URL or skips the test.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv("KVCRON_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("KVCRON_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, MigratePostgres(ctx, pool, nil))
	return pool
}

func TestPostgres(t *testing.T) {
	t.Parallel()

	pool := testPool(t)

	storeSuite(t, func(t *testing.T) Store {
		// A queue per test keeps workers from taking each other's messages.
		s, err := NewPostgres(pool, WithQueueName("kvcron_test_"+uuid.NewString()[:8]))
		require.NoError(t, err)
		return s
	}, 15*time.Second)
}

func TestNewPostgres_RequiresPool(t *testing.T) {
	t.Parallel()

	_, err := NewPostgres(nil)
	require.ErrorIs(t, err, ErrPoolRequired)
}

func TestPostgresVersion_SortsAsString(t *testing.T) {
	t.Parallel()

	require.Less(t, string(postgresVersion(9)), string(postgresVersion(10)))
}
