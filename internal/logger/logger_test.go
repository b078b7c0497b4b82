package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestJSONLogging(t *testing.T) {
	var buf bytes.Buffer

	config := Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "test-service",
		Version:     "1.0.0",
		Environment: "test",
	}

	log := New(config, &buf)
	log.Info("test message", "key", "value", "number", 42)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}

	want := map[string]any{
		"service":     "test-service",
		"version":     "1.0.0",
		"environment": "test",
		"msg":         "test message",
		"level":       "INFO",
		"key":         "value",
		"number":      float64(42),
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("Expected %s=%v, got %v", k, v, entry[k])
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Format: "text"}, &buf)

	log.Info("hidden")
	log.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record leaked through warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn record missing: %s", out)
	}
}

func TestLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := (Config{Level: in}).LogLevel(); got != want {
			t.Errorf("LogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "test-req-123")

	id, ok := RequestIDFromContext(ctx)
	if !ok || id != "test-req-123" {
		t.Errorf("Expected request_id=test-req-123, got %q (%v)", id, ok)
	}

	if _, ok := RequestIDFromContext(context.Background()); ok {
		t.Error("Expected no request id on a bare context")
	}

	if FromContext(ctx) == nil {
		t.Error("Expected non-nil logger")
	}

	if len(GenerateRequestID()) != 36 {
		t.Error("Expected a UUID request id")
	}
}
