package logtail

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestRead(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "test.log")

	var content strings.Builder
	var expectedAll []string
	for i := 1; i <= 10; i++ {
		line := fmt.Sprintf("Line %d", i)
		content.WriteString(line + "\n")
		expectedAll = append(expectedAll, line)
	}

	if err := os.WriteFile(logPath, []byte(content.String()), 0644); err != nil {
		t.Fatalf("failed to create test log file: %v", err)
	}

	tests := []struct {
		name     string
		maxLines int
		expected []string
	}{
		{
			name:     "read all (0)",
			maxLines: 0,
			expected: expectedAll,
		},
		{
			name:     "read all (negative)",
			maxLines: -1,
			expected: expectedAll,
		},
		{
			name:     "read partial (5)",
			maxLines: 5,
			expected: expectedAll[5:],
		},
		{
			name:     "read exactly all (10)",
			maxLines: 10,
			expected: expectedAll,
		},
		{
			name:     "read more than exists (20)",
			maxLines: 20,
			expected: expectedAll,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(logPath, tt.maxLines)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Read() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRead_MissingFile(t *testing.T) {
	lines, err := Read(filepath.Join(t.TempDir(), "absent.log"), 10)
	if err != nil || lines != nil {
		t.Fatalf("Read() = %v, %v; want nil, nil", lines, err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		level slog.Level
		ok    bool
	}{
		{"text info", `time=2026-10-18T09:12:03Z level=INFO msg="connected" component=app`, slog.LevelInfo, true},
		{"text warn", `time=2026-10-18T09:12:03Z level=WARN msg="poll failed"`, slog.LevelWarn, true},
		{"text offset", `time=2026-10-18T09:12:03Z level=ERROR+2 msg=boom`, slog.LevelError + 2, true},
		{"json debug", `{"time":"2026-10-18T09:12:03Z","level":"DEBUG","msg":"skip"}`, slog.LevelDebug, true},
		{"json error", `{"level":"ERROR","msg":"x"}`, slog.LevelError, true},
		{"continuation", "    at something", 0, false},
		{"bad json", `{"level":`, 0, false},
		{"unknown level", `level=LOUD msg=x`, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, ok := ParseLevel(tt.line)
			if ok != tt.ok || (ok && level != tt.level) {
				t.Fatalf("ParseLevel(%q) = %v, %v; want %v, %v", tt.line, level, ok, tt.level, tt.ok)
			}
		})
	}
}

func TestFilter(t *testing.T) {
	lines := []string{
		`level=DEBUG msg=one`,
		`  detail of one`,
		`level=WARN msg=two`,
		`  detail of two`,
		`{"level":"INFO","msg":"three"}`,
		`{"level":"ERROR","msg":"four"}`,
	}

	got := Filter(lines, slog.LevelWarn)
	want := []string{lines[2], lines[3], lines[5]}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Filter(WARN) = %v, want %v", got, want)
	}

	if got := Filter(lines, slog.LevelDebug); !reflect.DeepEqual(got, lines) {
		t.Fatalf("Filter(DEBUG) = %v, want all lines", got)
	}
}

func TestColorize(t *testing.T) {
	saved := color.NoColor
	t.Cleanup(func() { color.NoColor = saved })

	line := `level=ERROR msg=boom`
	color.NoColor = true
	if got := Colorize(line); got != line {
		t.Fatalf("Colorize with NoColor = %q, want plain line", got)
	}

	color.NoColor = false
	got := Colorize(line)
	if !strings.Contains(got, "\x1b[") || !strings.Contains(got, line) {
		t.Fatalf("Colorize = %q, want ANSI-wrapped line", got)
	}
	if got := Colorize("no level here"); got != "no level here" {
		t.Fatalf("Colorize without level = %q", got)
	}
}
