package logging

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	sessionIDKey ctxKey = iota
	intentKey
	stepKey
)

// WithSessionID returns a context with the session ID set.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// WithIntent returns a context with the intent label set.
func WithIntent(ctx context.Context, intent string) context.Context {
	return context.WithValue(ctx, intentKey, intent)
}

// WithStep returns a context with the current step name set.
func WithStep(ctx context.Context, step string) context.Context {
	return context.WithValue(ctx, stepKey, step)
}

// SessionID extracts the session ID from the context, or "" if absent.
func SessionID(ctx context.Context) string {
	v, _ := ctx.Value(sessionIDKey).(string)
	return v
}

// Intent extracts the intent label from the context, or "" if absent.
func Intent(ctx context.Context) string {
	v, _ := ctx.Value(intentKey).(string)
	return v
}

// Step extracts the current step name from the context, or "" if absent.
func Step(ctx context.Context) string {
	v, _ := ctx.Value(stepKey).(string)
	return v
}

// LogWith returns a logger enriched with correlation IDs from the context.
// Only non-empty values are added as attributes.
func LogWith(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if id := SessionID(ctx); id != "" {
		logger = logger.With(slog.String("session_id", id))
	}
	if intent := Intent(ctx); intent != "" {
		logger = logger.With(slog.String("intent", intent))
	}
	if step := Step(ctx); step != "" {
		logger = logger.With(slog.String("step", step))
	}
	return logger
}

// CorrelationHandler wraps an slog.Handler, automatically injecting
// session/intent/step correlation from the context into every log record.
// Use with slog.New(NewCorrelationHandler(inner)) so callers can use
// logger.InfoContext(ctx, ...) and the IDs appear automatically.
type CorrelationHandler struct {
	inner slog.Handler
}

// NewCorrelationHandler wraps the given handler with automatic correlation injection.
func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	if v := SessionID(ctx); v != "" {
		r.AddAttrs(slog.String("session_id", v))
	}
	if v := Intent(ctx); v != "" {
		r.AddAttrs(slog.String("intent", v))
	}
	if v := Step(ctx); v != "" {
		r.AddAttrs(slog.String("step", v))
	}
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}
