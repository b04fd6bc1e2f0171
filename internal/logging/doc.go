// Package logging assembles the slog loggers used across remora.
//
// It owns handler selection (console text or JSON), level parsing, and the
// optional rotating log file. Components obtain a tagged logger through
// NewComponentLogger; tests and wiring code that cannot fail use NewNop.
package logging
