package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New creates a logger writing to stdout in the configured format and level,
// decorated with the given context extractors. An invalid level falls back
// to info and is reported through the returned logger.
func New(cfg Config, extractors ...ContextExtractor) *slog.Logger {
	return newLogger(os.Stdout, cfg, extractors...)
}

func newLogger(w io.Writer, cfg Config, extractors ...ContextExtractor) *slog.Logger {
	h, err := newHandler(w, cfg)
	return warnLevel(slog.New(NewLogHandlerDecorator(h, extractors...)), err)
}

func newHandler(w io.Writer, cfg Config) (slog.Handler, error) {
	lvl, err := cfg.level()
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.NewTextHandler(w, opts), err
	}
	return slog.NewJSONHandler(w, opts), err
}

// NewNope creates a no-op logger that discards all output.
func NewNope() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
