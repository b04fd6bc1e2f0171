package logtail

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Read returns at most maxLines from the end of the file at path. A
// non-positive maxLines returns the whole file.
func Read(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if maxLines <= 0 {
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}
		return lines, nil
	}

	ring := make([]string, maxLines)
	count := 0
	idx := 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// ParseLevel extracts the level of a slog record written by the text or JSON
// handler. ok is false for lines that carry no level.
func ParseLevel(line string) (level slog.Level, ok bool) {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "{") {
		var record struct {
			Level string `json:"level"`
		}
		if err := json.Unmarshal([]byte(trimmed), &record); err != nil || record.Level == "" {
			return 0, false
		}
		return parseLevelText(record.Level)
	}

	for _, field := range strings.Fields(trimmed) {
		if value, found := strings.CutPrefix(field, "level="); found {
			return parseLevelText(strings.Trim(value, `"`))
		}
	}
	return 0, false
}

func parseLevelText(text string) (slog.Level, bool) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(text)); err != nil {
		return 0, false
	}
	return level, true
}

// Filter keeps records at or above minLevel. Lines without a level follow the
// record before them.
func Filter(lines []string, minLevel slog.Level) []string {
	var out []string
	keep := true
	for _, line := range lines {
		if level, ok := ParseLevel(line); ok {
			keep = level >= minLevel
		}
		if keep {
			out = append(out, line)
		}
	}
	return out
}

var levelColors = map[slog.Level]*color.Color{
	slog.LevelDebug: color.New(color.FgCyan),
	slog.LevelInfo:  color.New(color.FgGreen),
	slog.LevelWarn:  color.New(color.FgYellow, color.Bold),
	slog.LevelError: color.New(color.FgRed, color.Bold),
}

// Colorize paints a record by its level for terminal output. It honours
// color.NoColor, so piped output stays plain.
func Colorize(line string) string {
	level, ok := ParseLevel(line)
	if !ok {
		return line
	}
	c, found := levelColors[level]
	if !found {
		switch {
		case level >= slog.LevelError:
			c = levelColors[slog.LevelError]
		case level >= slog.LevelWarn:
			c = levelColors[slog.LevelWarn]
		default:
			return line
		}
	}
	return c.Sprint(line)
}
