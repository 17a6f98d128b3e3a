package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestNew_WritesJSONWithServiceName(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("visible", "user_id", "u1")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected a single JSON record, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "visible" {
		t.Fatalf("expected msg visible, got %v", entry["msg"])
	}
	if entry["service"] != ServiceName {
		t.Fatalf("expected service %q, got %v", ServiceName, entry["service"])
	}
	if entry["user_id"] != "u1" {
		t.Fatalf("expected user_id u1, got %v", entry["user_id"])
	}
}

func TestContextWithLogger(t *testing.T) {
	t.Parallel()

	logger := New(nil, slog.LevelInfo)
	fallback := slog.Default()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()
		ctx := ContextWithLogger(context.Background(), logger)
		if got := FromContext(ctx); got != logger {
			t.Fatalf("expected stored logger, got %v", got)
		}
		if got := FromContextOr(ctx, fallback); got != logger {
			t.Fatalf("expected stored logger over fallback, got %v", got)
		}
	})

	t.Run("nil logger leaves context untouched", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		if got := ContextWithLogger(ctx, nil); got != ctx {
			t.Fatal("expected the same context back")
		}
		if FromContext(ctx) != nil {
			t.Fatal("expected no logger")
		}
		if got := FromContextOr(ctx, fallback); got != fallback {
			t.Fatalf("expected fallback, got %v", got)
		}
	})
}
