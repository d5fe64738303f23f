package contextutil

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func TestLoggerFromContext(t *testing.T) {
	if got := LoggerFromContext(context.Background()); got != slog.Default() {
		t.Error("expected default logger for empty context")
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := WithLogger(context.Background(), logger)
	if got := LoggerFromContext(ctx); got != logger {
		t.Error("expected logger stored in context")
	}

	ctx = context.WithValue(context.Background(), LoggerKey(), "not a logger")
	if got := LoggerFromContext(ctx); got != slog.Default() {
		t.Error("expected default logger for wrong value type")
	}
}

func TestRequestID(t *testing.T) {
	if got := RequestID(context.Background()); got != "" {
		t.Errorf("RequestID(empty) = %q, want empty", got)
	}
	ctx := WithRequestID(context.Background(), "req-42")
	if got := RequestID(ctx); got != "req-42" {
		t.Errorf("RequestID() = %q, want %q", got, "req-42")
	}
}
