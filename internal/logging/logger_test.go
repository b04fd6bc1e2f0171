package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_RejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml", Quiet: true}); err == nil {
		t.Fatal("New returned nil error, want unsupported format error")
	}
}

func TestNew_WritesJSONToRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "remora.log")
	logger, err := New(Options{Format: "json", File: path, Quiet: true, Level: "debug"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	NewComponentLogger(logger.Logger, "test").Debug("hello", slog.Int("n", 3))
	if err := logger.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	text := string(data)
	for _, want := range []string{`"msg":"hello"`, `"component":"test"`, `"level":"debug"`, `"n":3`} {
		if !strings.Contains(text, want) {
			t.Fatalf("log = %q, want it to contain %s", text, want)
		}
	}
}

func TestWarnWithContext_AddsStandardFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	WarnWithContext(logger, "cache write skipped", "cache_skipped", "raise max_bytes", "offline view may be stale")
	text := buf.String()
	for _, want := range []string{"event_type=cache_skipped", "error_hint=\"raise max_bytes\"", "impact=\"offline view may be stale\""} {
		if !strings.Contains(text, want) {
			t.Fatalf("log = %q, want it to contain %s", text, want)
		}
	}
}

func TestNewNop_DiscardsEverything(t *testing.T) {
	logger := NewComponentLogger(nil, "x")
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nop logger should not be enabled")
	}
}
