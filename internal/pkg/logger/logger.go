// Package logger provides structured JSON logging with correlation IDs.
// No payload contents or secrets are logged; correlation_id enables tracing a
// detection across log lines and broadcast alerts.
package logger

import (
	"context"
	"log/slog"
	"os"
)

type contextKey string

const CorrelationIDKey contextKey = "correlation_id"

// WithCorrelationID stores a correlation ID on the context for downstream logs.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, id)
}

// FromContext returns the correlation ID from context, or empty string.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}

// New returns the service logger. JSON when LOG_JSON=1, text otherwise; level
// comes from the configured log_level.
func New(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if os.Getenv("LOG_JSON") == "1" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
