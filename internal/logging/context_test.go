package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextKeys(t *testing.T) {
	ctx := context.Background()

	// Initially empty.
	assert.Equal(t, "", SessionID(ctx))
	assert.Equal(t, "", Intent(ctx))
	assert.Equal(t, "", Step(ctx))

	// Set values.
	ctx = WithSessionID(ctx, "sess-123")
	ctx = WithIntent(ctx, "purchase")
	ctx = WithStep(ctx, "PRODUCT_SEARCH")

	// Round-trip.
	assert.Equal(t, "sess-123", SessionID(ctx))
	assert.Equal(t, "purchase", Intent(ctx))
	assert.Equal(t, "PRODUCT_SEARCH", Step(ctx))
}

func TestLogWith(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := context.Background()
	ctx = WithSessionID(ctx, "sess-abc")
	ctx = WithIntent(ctx, "track_order")
	ctx = WithStep(ctx, "LOGISTICS")

	enriched := LogWith(ctx, logger)
	enriched.Info("test message")

	output := buf.String()
	assert.Contains(t, output, "session_id=sess-abc")
	assert.Contains(t, output, "intent=track_order")
	assert.Contains(t, output, "step=LOGISTICS")
	assert.Contains(t, output, "test message")
}

func TestLogWithMissingKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// Only set the session ID — intent and step should not appear.
	ctx := WithSessionID(context.Background(), "sess-only")

	enriched := LogWith(ctx, logger)
	enriched.Info("partial context")

	output := buf.String()
	assert.Contains(t, output, "session_id=sess-only")
	assert.NotContains(t, output, "intent=")
	assert.NotContains(t, output, "step=")
}

func TestCorrelationHandler(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewCorrelationHandler(inner))

	ctx := WithStep(WithSessionID(context.Background(), "sess-h"), "CART")
	logger.InfoContext(ctx, "handled")

	output := buf.String()
	assert.Contains(t, output, "session_id=sess-h")
	assert.Contains(t, output, "step=CART")
}
