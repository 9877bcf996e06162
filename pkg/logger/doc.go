// Package logger builds the slog loggers used by the kvcron worker.
//
// [New] writes JSON (or text) to stdout at the configured level.
// [NewWithSentry] additionally forwards warnings and errors to Sentry, so a
// failing job handler opens a Sentry issue. Both accept [ContextExtractor]s
// that copy values from the record's context into its attributes:
//
//	log := logger.New(logger.Config{Level: "debug"}, kvcron.LogExtractors()...)
//	// inside a job handler:
//	log.InfoContext(ctx, "rotated keys")
//	// {"level":"INFO","msg":"rotated keys","job":"rotate_keys","nonce":"..."}
//
// [NewNope] discards everything and is the default of library packages.
package logger
