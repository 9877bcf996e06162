package kv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	t.Parallel()

	storeSuite(t, func(t *testing.T) Store {
		s := NewMemory(WithPollInterval(10*time.Millisecond), WithRetryDelay(0))
		t.Cleanup(func() { _ = s.Close() })
		return s
	}, 2*time.Second)
}

func TestMemory_Pending(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	s := NewMemory(WithMemoryClock(func() time.Time { return now }))
	t.Cleanup(func() { _ = s.Close() })

	tx := s.Atomic()
	tx.Enqueue([]byte("later"), time.Hour)
	tx.Enqueue([]byte("sooner"), time.Minute)
	tx.Enqueue([]byte("negative delay"), -time.Minute)
	res, err := tx.Commit(context.Background())
	require.NoError(t, err)
	require.True(t, res.OK)

	pending := s.Pending()
	require.Len(t, pending, 3)
	assert.Equal(t, "negative delay", string(pending[0].Payload))
	assert.Equal(t, now, pending[0].DueAt)
	assert.Equal(t, "sooner", string(pending[1].Payload))
	assert.Equal(t, now.Add(time.Minute), pending[1].DueAt)
	assert.Equal(t, "later", string(pending[2].Payload))
}

func TestMemory_DropsAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	s := NewMemory(WithPollInterval(5*time.Millisecond), WithRetryDelay(0), WithMaxAttempts(3))
	t.Cleanup(func() { _ = s.Close() })

	calls := make(chan struct{}, 10)
	listen(t, s, func(context.Context, []byte) error {
		calls <- struct{}{}
		return assert.AnError
	})

	tx := s.Atomic()
	tx.Enqueue([]byte("poison"), 0)
	_, err := tx.Commit(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(calls) == 3 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(s.Pending()) == 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, calls, 3)
}

func TestMemory_Close(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemory()

	errs := make(chan error, 1)
	go func() { errs <- s.Listen(ctx, func(context.Context, []byte) error { return nil }) }()

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Listen did not return after Close")
	}

	_, err := s.Get(ctx, Key{"a"})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Atomic().Commit(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemory()
	t.Cleanup(func() { _ = s.Close() })

	tx := s.Atomic()
	tx.Set(Key{"a"}, []byte("abc"))
	_, err := tx.Commit(ctx)
	require.NoError(t, err)

	e, err := s.Get(ctx, Key{"a"})
	require.NoError(t, err)
	e.Value[0] = 'x'

	e, err = s.Get(ctx, Key{"a"})
	require.NoError(t, err)
	assert.Equal(t, "abc", string(e.Value))
}

func TestKey(t *testing.T) {
	t.Parallel()

	base := Key{"kv_cron"}
	k := base.Append("job", "n1")
	assert.Equal(t, "kv_cron/job/n1", k.String())
	assert.Equal(t, Key{"kv_cron"}, base, "Append must not modify the receiver")
}

func TestCounterCodec(t *testing.T) {
	t.Parallel()

	n, err := DecodeUint64(EncodeUint64(42))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), n)

	_, err = DecodeUint64([]byte("-1"))
	assert.ErrorIs(t, err, ErrInvalidCounter)

	n, err = Entry{}.Uint64()
	require.NoError(t, err)
	assert.Zero(t, n)
}
