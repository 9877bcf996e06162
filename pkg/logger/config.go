package logger

import (
	"fmt"
	"log/slog"
	"strings"
)

// Config selects the log format, level and the optional Sentry sink.
type Config struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
	Sentry SentryConfig
}

// level parses Level; an empty value means info.
func (c Config) level() (slog.Level, error) {
	var lvl slog.Level
	if strings.TrimSpace(c.Level) == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("logger: invalid level %q: %w", c.Level, err)
	}
	return lvl, nil
}
