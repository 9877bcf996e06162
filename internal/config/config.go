// Package config loads the kvcron worker configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/dmitrymomot/kvcron/pkg/db"
	"github.com/dmitrymomot/kvcron/pkg/logger"
	"github.com/dmitrymomot/kvcron/pkg/redis"
)

// Supported store backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// ErrUnknownBackend is returned for an unsupported KVCRON_BACKEND value.
var ErrUnknownBackend = errors.New("config: unknown backend")

// App holds the worker settings.
type App struct {
	Backend   string   `env:"KVCRON_BACKEND" envDefault:"memory"`
	KeyPrefix []string `env:"KVCRON_KEY_PREFIX" envSeparator:"/" envDefault:"kv_cron"`
	HTTPAddr  string   `env:"KVCRON_HTTP_ADDR" envDefault:":8080"`
	// Empty disables the built-in heartbeat job.
	HeartbeatSchedule string        `env:"KVCRON_HEARTBEAT_SCHEDULE" envDefault:"*/5 * * * *"`
	ShutdownTimeout   time.Duration `env:"KVCRON_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// Config is the complete worker configuration. Only the section of the
// selected backend is loaded, so its required variables are checked only
// when that backend is in use.
type Config struct {
	App      App
	Log      logger.Config
	Postgres db.Config
	Redis    redis.Config
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	var err error

	if cfg.App, err = env.ParseAs[App](); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if cfg.Log, err = env.ParseAs[logger.Config](); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	switch cfg.App.Backend {
	case BackendMemory:
	case BackendRedis:
		if cfg.Redis, err = env.ParseAs[redis.Config](); err != nil {
			return Config{}, fmt.Errorf("config: redis: %w", err)
		}
	case BackendPostgres:
		if cfg.Postgres, err = env.ParseAs[db.Config](); err != nil {
			return Config{}, fmt.Errorf("config: postgres: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.App.Backend)
	}

	return cfg, nil
}
