// Package redis opens the go-redis client used by the kvcron Redis backend.
//
// [Open] parses a redis:// or rediss:// URL, applies pool and timeout
// settings from [Config] and retries the first PING with a linear backoff.
// [Healthcheck] and [Shutdown] plug the client into the worker's readiness
// probe and shutdown sequence.
//
//	var cfg redis.Config
//	if err := env.Parse(&cfg); err != nil {
//		return err
//	}
//	client, err := redis.Open(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	store := kv.NewRedis(client, kv.WithQueueKey(cfg.QueueKey))
package redis
