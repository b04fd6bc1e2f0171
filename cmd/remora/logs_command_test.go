package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogsCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, nil, nil, "logs")
	if err != nil {
		t.Fatalf("logs without file: %v", err)
	}
	requireContains(t, out, "No log entries available")

	lines := []string{
		`time=2026-10-18T09:12:00Z level=INFO msg=connected server=nas`,
		`time=2026-10-18T09:12:03Z level=WARN msg="poll failed" server=nas`,
		`time=2026-10-18T09:12:05Z level=ERROR msg="offline cache unreadable"`,
	}
	if err := os.MkdirAll(filepath.Dir(env.logPath), 0o755); err != nil {
		t.Fatalf("mkdir logs: %v", err)
	}
	if err := os.WriteFile(env.logPath, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err = runCLI(t, env, nil, nil, "logs", "--level", "warn")
	if err != nil {
		t.Fatalf("logs --level warn: %v", err)
	}
	if strings.Contains(out, "msg=connected") {
		t.Fatalf("info line not filtered: %q", out)
	}
	requireContains(t, out, "poll failed")
	requireContains(t, out, "offline cache unreadable")
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("non-terminal output colourised: %q", out)
	}

	out, _, err = runCLI(t, env, nil, nil, "logs", "-n", "1")
	if err != nil {
		t.Fatalf("logs -n 1: %v", err)
	}
	if got := strings.TrimSpace(out); got != lines[2] {
		t.Fatalf("logs -n 1 = %q, want %q", got, lines[2])
	}
}
