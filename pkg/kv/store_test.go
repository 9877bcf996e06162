package kv

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeSuite exercises the Store contract against a backend.
// newStore must return an isolated store; keys are prefixed per test anyway.
func storeSuite(t *testing.T, newStore func(t *testing.T) Store, deliveryTimeout time.Duration) {
	t.Helper()

	prefix := func() Key { return Key{"test", uuid.NewString()} }

	t.Run("missing key", func(t *testing.T) {
		t.Parallel()
		s := newStore(t)

		e, err := s.Get(context.Background(), prefix().Append("nope"))
		require.NoError(t, err)
		assert.False(t, e.Exists())
		assert.Empty(t, e.Version)
		assert.Nil(t, e.Value)
	})

	t.Run("set then get", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		s := newStore(t)
		key := prefix().Append("a")

		tx := s.Atomic()
		tx.Set(key, []byte("hello"))
		res, err := tx.Commit(ctx)
		require.NoError(t, err)
		require.True(t, res.OK)
		require.NotEmpty(t, res.Version)

		e, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), e.Value)
		assert.Equal(t, res.Version, e.Version)
	})

	t.Run("check on absent key", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		s := newStore(t)
		key := prefix().Append("a")

		tx := s.Atomic()
		tx.Check(key, "")
		tx.Set(key, []byte("1"))
		res, err := tx.Commit(ctx)
		require.NoError(t, err)
		require.True(t, res.OK)

		tx = s.Atomic()
		tx.Check(key, "")
		tx.Set(key, []byte("2"))
		res, err = tx.Commit(ctx)
		require.NoError(t, err)
		assert.False(t, res.OK, "key exists now")

		e, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte("1"), e.Value)
	})

	t.Run("stale check applies nothing", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		s := newStore(t)
		base := prefix()
		key, other, counter := base.Append("a"), base.Append("b"), base.Append("n")

		tx := s.Atomic()
		tx.Set(key, []byte("v1"))
		first, err := tx.Commit(ctx)
		require.NoError(t, err)

		tx = s.Atomic()
		tx.Set(key, []byte("v2"))
		_, err = tx.Commit(ctx)
		require.NoError(t, err)

		tx = s.Atomic()
		tx.Check(key, first.Version)
		tx.Set(other, []byte("x"))
		tx.Sum(counter, 1)
		tx.Enqueue([]byte("msg"), 0)
		res, err := tx.Commit(ctx)
		require.NoError(t, err)
		assert.False(t, res.OK)

		e, err := s.Get(ctx, other)
		require.NoError(t, err)
		assert.False(t, e.Exists())
		e, err = s.Get(ctx, counter)
		require.NoError(t, err)
		assert.False(t, e.Exists())
	})

	t.Run("sum and delete", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		s := newStore(t)
		key := prefix().Append("n")

		for range 3 {
			tx := s.Atomic()
			tx.Sum(key, 2)
			res, err := tx.Commit(ctx)
			require.NoError(t, err)
			require.True(t, res.OK)
		}

		e, err := s.Get(ctx, key)
		require.NoError(t, err)
		n, err := e.Uint64()
		require.NoError(t, err)
		assert.Equal(t, uint64(6), n)

		tx := s.Atomic()
		tx.Check(key, e.Version)
		tx.Delete(key)
		res, err := tx.Commit(ctx)
		require.NoError(t, err)
		require.True(t, res.OK)

		e, err = s.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, e.Exists())
	})

	t.Run("sum on non-numeric value fails", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		s := newStore(t)
		key := prefix().Append("n")

		tx := s.Atomic()
		tx.Set(key, []byte("abc"))
		_, err := tx.Commit(ctx)
		require.NoError(t, err)

		tx = s.Atomic()
		tx.Sum(key, 1)
		_, err = tx.Commit(ctx)
		assert.Error(t, err)
	})

	t.Run("queued message is delivered after its delay", func(t *testing.T) {
		t.Parallel()
		s := newStore(t)
		payload := []byte(uuid.NewString())

		got := make(chan time.Time, 1)
		listen(t, s, func(_ context.Context, p []byte) error {
			if string(p) == string(payload) {
				select {
				case got <- time.Now():
				default:
				}
			}
			return nil
		})

		tx := s.Atomic()
		tx.Enqueue(payload, 200*time.Millisecond)
		committed := time.Now()
		res, err := tx.Commit(context.Background())
		require.NoError(t, err)
		require.True(t, res.OK)

		select {
		case at := <-got:
			assert.GreaterOrEqual(t, at.Sub(committed), 150*time.Millisecond)
		case <-time.After(deliveryTimeout):
			t.Fatal("message was not delivered")
		}
	})

	t.Run("failed message is delivered again", func(t *testing.T) {
		t.Parallel()
		s := newStore(t)
		payload := []byte(uuid.NewString())

		var calls atomic.Int32
		done := make(chan struct{})
		var once sync.Once
		listen(t, s, func(_ context.Context, p []byte) error {
			if string(p) != string(payload) {
				return nil
			}
			if calls.Add(1) == 1 {
				return errors.New("try again")
			}
			once.Do(func() { close(done) })
			return nil
		})

		tx := s.Atomic()
		tx.Enqueue(payload, 0)
		_, err := tx.Commit(context.Background())
		require.NoError(t, err)

		select {
		case <-done:
			assert.GreaterOrEqual(t, calls.Load(), int32(2))
		case <-time.After(deliveryTimeout):
			t.Fatal("message was not redelivered")
		}
	})
}

// listen runs s.Listen until the test ends.
func listen(t *testing.T, s Store, h Handler) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Listen(ctx, h)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}
