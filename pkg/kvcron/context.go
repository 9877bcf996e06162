package kvcron

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/kvcron/pkg/logger"
)

type ctxKey int

const (
	ctxJobName ctxKey = iota
	ctxNonce
)

func withOccurrence(ctx context.Context, occ occurrence) context.Context {
	ctx = context.WithValue(ctx, ctxJobName, occ.Name)
	return context.WithValue(ctx, ctxNonce, occ.Nonce)
}

// JobFromContext returns the name of the job whose handler is running.
func JobFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(ctxJobName).(string)
	return s, ok
}

// NonceFromContext returns the nonce of the occurrence whose handler is running.
func NonceFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(ctxNonce).(string)
	return s, ok
}

// LogExtractors returns extractors that add the job name and nonce to every
// record logged from inside a handler.
//
// Example:
//
//	log := logger.New(logger.Config{Level: "info"}, kvcron.LogExtractors()...)
func LogExtractors() []logger.ContextExtractor {
	return []logger.ContextExtractor{
		func(ctx context.Context) (slog.Attr, bool) {
			s, ok := JobFromContext(ctx)
			return slog.String("job", s), ok
		},
		func(ctx context.Context) (slog.Attr, bool) {
			s, ok := NonceFromContext(ctx)
			return slog.String("nonce", s), ok
		},
	}
}
