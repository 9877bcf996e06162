package logger

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
)

// SentryConfig holds Sentry integration configuration.
type SentryConfig struct {
	DSN         string `env:"SENTRY_DSN"`
	Environment string `env:"SENTRY_ENVIRONMENT" envDefault:"production"`
	Release     string `env:"SENTRY_RELEASE"`
	// Warnings are kept as Sentry logs; errors also open issues.
	MinLevel slog.Level `env:"SENTRY_MIN_LEVEL" envDefault:"WARN"`
}

// flushTimeout bounds how long Flush waits for buffered events.
const flushTimeout = 2 * time.Second

// NewWithSentry creates a logger that writes to stdout and, when a DSN is
// set, to Sentry. Failed job handlers log at error level and so become
// Sentry issues. The returned hook flushes buffered events; run it last on
// shutdown.
func NewWithSentry(cfg Config, extractors ...ContextExtractor) (*slog.Logger, func(context.Context) error) {
	noFlush := func(context.Context) error { return nil }

	stdout, lvlErr := newHandler(os.Stdout, cfg)
	if cfg.Sentry.DSN == "" {
		return warnLevel(slog.New(NewLogHandlerDecorator(stdout, extractors...)), lvlErr), noFlush
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.Sentry.DSN,
		Environment: cfg.Sentry.Environment,
		Release:     cfg.Sentry.Release,
		EnableLogs:  true,
	}); err != nil {
		log := slog.New(NewLogHandlerDecorator(stdout, extractors...))
		log.Error("failed to initialize sentry", slog.Any("error", err))
		return warnLevel(log, lvlErr), noFlush
	}

	logLevel := []slog.Level{slog.LevelWarn, slog.LevelError}
	if cfg.Sentry.MinLevel >= slog.LevelError {
		logLevel = []slog.Level{slog.LevelError}
	}
	sentryHandler := sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   logLevel,
	}.NewSentryHandler(context.Background())

	log := slog.New(NewLogHandlerDecorator(fanout{stdout, sentryHandler}, extractors...))
	flush := func(context.Context) error {
		sentry.Flush(flushTimeout)
		return nil
	}
	return warnLevel(log, lvlErr), flush
}

func warnLevel(log *slog.Logger, err error) *slog.Logger {
	if err != nil {
		log.Warn("using default log level", slog.Any("error", err))
	}
	return log
}
