package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("empty URL", func(t *testing.T) {
		t.Parallel()

		client, err := Open(ctx, Config{})
		require.ErrorIs(t, err, ErrMissingURL)
		require.Nil(t, client)
	})

	t.Run("rejects foreign schemes", func(t *testing.T) {
		t.Parallel()

		for _, url := range []string{
			"http://localhost:6379",
			"localhost:6379",
			"postgresql://localhost:6379",
		} {
			client, err := Open(ctx, Config{URL: url})
			require.ErrorIs(t, err, ErrInvalidURL, url)
			require.Nil(t, client)
		}
	})

	t.Run("malformed database", func(t *testing.T) {
		t.Parallel()

		_, err := Open(ctx, Config{URL: "redis://localhost:6379/notanumber"})
		require.ErrorIs(t, err, ErrInvalidURL)
	})

	t.Run("connects to a live server", func(t *testing.T) {
		t.Parallel()

		srv := miniredis.RunT(t)
		client, err := Open(ctx, Config{URL: "redis://" + srv.Addr(), PoolSize: 3})
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })

		require.NoError(t, Healthcheck(client)(ctx))
	})

	t.Run("gives up after the configured attempts", func(t *testing.T) {
		t.Parallel()

		srv := miniredis.RunT(t)
		addr := srv.Addr()
		srv.Close()

		_, err := Open(ctx, Config{
			URL:           "redis://" + addr,
			RetryAttempts: 2,
			RetryInterval: 10 * time.Millisecond,
			DialTimeout:   100 * time.Millisecond,
		})
		require.ErrorIs(t, err, ErrConnect)
	})
}

func TestHealthcheck(t *testing.T) {
	t.Parallel()

	t.Run("nil client", func(t *testing.T) {
		t.Parallel()

		err := Healthcheck(nil)(context.Background())
		require.ErrorIs(t, err, ErrHealthcheckFailed)
	})

	t.Run("server gone", func(t *testing.T) {
		t.Parallel()

		srv := miniredis.RunT(t)
		client, err := Open(context.Background(), Config{URL: "redis://" + srv.Addr()})
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })

		srv.Close()
		err = Healthcheck(client)(context.Background())
		require.ErrorIs(t, err, ErrHealthcheckFailed)
	})
}

func TestShutdown(t *testing.T) {
	t.Parallel()

	closeErr := errors.New("close error")
	c := &closer{err: closeErr}

	err := Shutdown(c)(context.Background())
	require.ErrorIs(t, err, closeErr)
	require.True(t, c.closed)
}

func TestWait(t *testing.T) {
	t.Parallel()

	t.Run("cancelled context returns immediately", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		start := time.Now()
		err := wait(ctx, 10*time.Second)
		require.ErrorIs(t, err, context.Canceled)
		require.Less(t, time.Since(start), time.Second)
	})

	t.Run("elapses", func(t *testing.T) {
		t.Parallel()

		start := time.Now()
		require.NoError(t, wait(context.Background(), 20*time.Millisecond))
		require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})
}

type closer struct {
	err    error
	closed bool
}

func (c *closer) Close() error {
	c.closed = true
	return c.err
}
