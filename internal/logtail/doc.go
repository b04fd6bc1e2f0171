// Package logtail reads remora's own log file for the `remora logs` command.
//
// Read returns the last N lines of a file in one sequential pass, keeping
// only a ring buffer of N lines in memory. A missing file is not an error; it
// yields no lines.
//
// Records come from log/slog's text or JSON handler, depending on log.format:
//
//	time=2026-10-18T09:12:03Z level=WARN msg="poll failed" component=poller
//	{"time":"2026-10-18T09:12:03Z","level":"WARN","msg":"poll failed"}
//
// ParseLevel understands both shapes, Filter drops records below a level, and
// Colorize paints a line by level through fatih/color.
package logtail
