package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// Hash fields of a stored entry.
const (
	fieldValue   = "v"
	fieldVersion = "ver"
)

// claimScript takes up to ARGV[3] messages due at ARGV[1] and hides them until
// ARGV[2] by moving their score forward.
var claimScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[3]))
for _, member in ipairs(due) do
	redis.call('ZADD', KEYS[1], ARGV[2], member)
end
return due
`)

// redisEnvelope is the sorted set member. The ID keeps identical payloads apart.
type redisEnvelope struct {
	ID      string `json:"id"`
	Payload []byte `json:"payload"`
	Attempt int    `json:"attempt"`
}

// Redis is a Store backed by Redis.
//
// Each key is a hash holding the value and its version. Checks WATCH the
// checked keys and compare versions; writes run in MULTI/EXEC. The queue is a
// sorted set scored by due time in Unix milliseconds.
type Redis struct {
	client redis.UniversalClient
	opts   *redisOptions
}

// NewRedis creates a Redis-backed store.
// The client should be obtained from pkg/redis.Open; its lifecycle stays with the caller.
//
// Example:
//
//	client, err := redis.Open(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	store := kv.NewRedis(client, kv.WithQueueKey("billing:kvcron:queue"))
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	o := defaultRedisOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &Redis{client: client, opts: o}
}

// Get reads a key.
func (r *Redis) Get(ctx context.Context, key Key) (Entry, error) {
	vals, err := r.client.HMGet(ctx, redisKey(key), fieldValue, fieldVersion).Result()
	if err != nil {
		return Entry{}, fmt.Errorf("kv: redis get %s: %w", key, err)
	}

	entry := Entry{Key: key}
	if len(vals) != 2 || vals[1] == nil {
		return entry, nil
	}
	if ver, ok := vals[1].(string); ok {
		entry.Version = Version(ver)
	}
	if v, ok := vals[0].(string); ok {
		entry.Value = []byte(v)
	}
	return entry, nil
}

// Atomic starts a new atomic operation.
func (r *Redis) Atomic() Atomic {
	return &redisAtomic{store: r}
}

// Ping verifies the connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Listen claims due messages every poll interval and hands each claimed batch
// to h with bounded concurrency.
func (r *Redis) Listen(ctx context.Context, h Handler) error {
	ticker := time.NewTicker(r.opts.pollInterval)
	defer ticker.Stop()

	for {
		if err := r.drain(ctx, h); err != nil && ctx.Err() == nil {
			r.opts.logger.ErrorContext(ctx, "claim queued messages",
				slog.String("queue", r.opts.queueKey),
				slog.Any("error", err),
			)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// drain claims and handles batches until nothing is due.
func (r *Redis) drain(ctx context.Context, h Handler) error {
	for ctx.Err() == nil {
		members, err := r.claim(ctx)
		if err != nil {
			return err
		}
		if len(members) == 0 {
			return nil
		}

		var g errgroup.Group
		g.SetLimit(r.opts.concurrency)
		for _, member := range members {
			g.Go(func() error {
				r.deliver(ctx, h, member)
				return nil
			})
		}
		_ = g.Wait()
	}
	return nil
}

func (r *Redis) claim(ctx context.Context) ([]string, error) {
	now := time.Now()
	return claimScript.Run(ctx, r.client, []string{r.opts.queueKey},
		now.UnixMilli(),
		now.Add(r.opts.visibilityTimeout).UnixMilli(),
		r.opts.batchSize,
	).StringSlice()
}

func (r *Redis) deliver(ctx context.Context, h Handler, member string) {
	var env redisEnvelope
	if err := json.Unmarshal([]byte(member), &env); err != nil {
		r.opts.logger.WarnContext(ctx, "dropping malformed queue member",
			slog.String("queue", r.opts.queueKey),
			slog.Any("error", err),
		)
		_ = r.client.ZRem(ctx, r.opts.queueKey, member).Err()
		return
	}

	handleErr := h(ctx, env.Payload)
	if handleErr == nil {
		if err := r.client.ZRem(ctx, r.opts.queueKey, member).Err(); err != nil {
			r.opts.logger.ErrorContext(ctx, "acknowledge queue message",
				slog.String("message_id", env.ID),
				slog.Any("error", err),
			)
		}
		return
	}

	env.Attempt++
	if env.Attempt >= r.opts.maxAttempts {
		r.opts.logger.WarnContext(ctx, "dropping queue message after max attempts",
			slog.String("message_id", env.ID),
			slog.Int("attempts", env.Attempt),
			slog.Any("error", handleErr),
		)
		_ = r.client.ZRem(ctx, r.opts.queueKey, member).Err()
		return
	}

	retry, err := json.Marshal(env)
	if err != nil {
		return
	}
	dueAt := time.Now().Add(r.opts.retryDelay).UnixMilli()
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, r.opts.queueKey, member)
		pipe.ZAdd(ctx, r.opts.queueKey, redis.Z{Score: float64(dueAt), Member: string(retry)})
		return nil
	})
	if err != nil {
		// The claimed member reappears after the visibility timeout.
		r.opts.logger.ErrorContext(ctx, "reschedule failed queue message",
			slog.String("message_id", env.ID),
			slog.Any("error", err),
		)
	}
}

type redisAtomic struct {
	mutations
	store *Redis
}

// Commit watches the checked keys, verifies their versions and applies all
// mutations in one MULTI/EXEC. A concurrent write to a watched key aborts
// EXEC and is reported as a failed check.
func (a *redisAtomic) Commit(ctx context.Context) (CommitResult, error) {
	r := a.store
	version := Version(uuid.NewString())
	now := time.Now()

	envelopes := make(map[int]string)
	for i, op := range a.ops {
		if op.kind != opEnqueue {
			continue
		}
		data, err := json.Marshal(redisEnvelope{ID: uuid.NewString(), Payload: op.value})
		if err != nil {
			return CommitResult{}, fmt.Errorf("kv: encode queue message: %w", err)
		}
		envelopes[i] = string(data)
	}

	watched := make([]string, 0, len(a.checks))
	for _, c := range a.checks {
		watched = append(watched, redisKey(c.key))
	}

	txf := func(tx *redis.Tx) error {
		for _, c := range a.checks {
			cur, err := tx.HGet(ctx, redisKey(c.key), fieldVersion).Result()
			if errors.Is(err, redis.Nil) {
				cur = ""
			} else if err != nil {
				return err
			}
			if Version(cur) != c.version {
				return errCheckFailed
			}
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, op := range a.ops {
				key := redisKey(op.key)
				switch op.kind {
				case opSet:
					pipe.HSet(ctx, key, fieldValue, op.value, fieldVersion, string(version))
				case opDelete:
					pipe.Del(ctx, key)
				case opSum:
					pipe.HIncrBy(ctx, key, fieldValue, int64(op.delta))
					pipe.HSet(ctx, key, fieldVersion, string(version))
				case opEnqueue:
					score := float64(now.Add(op.delay).UnixMilli())
					pipe.ZAdd(ctx, r.opts.queueKey, redis.Z{Score: score, Member: envelopes[i]})
				}
			}
			return nil
		})
		return err
	}

	err := r.client.Watch(ctx, txf, watched...)
	switch {
	case errors.Is(err, errCheckFailed), errors.Is(err, redis.TxFailedErr):
		return CommitResult{}, nil
	case err != nil:
		return CommitResult{}, fmt.Errorf("kv: redis commit: %w", err)
	}

	return CommitResult{OK: true, Version: version}, nil
}

// redisKey joins key parts with ":" like the rest of the Redis keyspace.
func redisKey(k Key) string {
	return strings.Join(k, ":")
}

// queueLen is used by tests to inspect the queue.
func (r *Redis) queueLen(ctx context.Context) (int64, error) {
	return r.client.ZCard(ctx, r.opts.queueKey).Result()
}

var (
	_ Store  = (*Redis)(nil)
	_ Atomic = (*redisAtomic)(nil)
	_ Pinger = (*Redis)(nil)
)
