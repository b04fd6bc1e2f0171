package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/five82/remora/internal/domain"
	"github.com/five82/remora/internal/prefs"
)

// FormatBytes renders a byte count with binary units.
func FormatBytes(n int64) string {
	if n < 0 {
		return "-"
	}
	return humanize.IBytes(uint64(n))
}

// FormatRate renders a transfer rate in bytes per second. Zero renders as a
// dash so idle columns stay quiet.
func FormatRate(bytesPerSecond int64) string {
	if bytesPerSecond <= 0 {
		return "-"
	}
	return humanize.IBytes(uint64(bytesPerSecond)) + "/s"
}

// FormatETA renders the daemon's eta seconds. Negative values mean unknown.
func FormatETA(seconds int64) string {
	if seconds < 0 {
		return "-"
	}
	d := time.Duration(seconds) * time.Second
	switch {
	case d >= 24*time.Hour:
		return fmt.Sprintf("%dd%02dh", int(d.Hours())/24, int(d.Hours())%24)
	case d >= time.Hour:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	case d >= time.Minute:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
}

// FormatProgress renders a 0..1 fraction as a percentage.
func FormatProgress(fraction float64) string {
	switch {
	case fraction <= 0:
		return "0%"
	case fraction >= 1:
		return "100%"
	default:
		return fmt.Sprintf("%.1f%%", fraction*100)
	}
}

// FormatRatio renders an upload ratio. The daemon uses -1 for not available
// and -2 for infinite.
func FormatRatio(ratio float64) string {
	switch {
	case ratio == -2:
		return "∞"
	case ratio < 0:
		return "-"
	default:
		return fmt.Sprintf("%.2f", ratio)
	}
}

// StatusLabel is the status column text. A torrent with a daemon error shows
// "error" regardless of its run state.
func StatusLabel(t domain.Torrent) string {
	if t.Summary.ErrorCode != 0 {
		return "error"
	}
	return t.Status.String()
}

// truncate shortens s to width cells, marking the cut with an ellipsis.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}

// padRight pads s with spaces to width cells, truncating when longer.
func padRight(s string, width int) string {
	s = truncate(s, width)
	if gap := width - lipgloss.Width(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}

func padLeft(s string, width int) string {
	s = truncate(s, width)
	if gap := width - lipgloss.Width(s); gap > 0 {
		return strings.Repeat(" ", gap) + s
	}
	return s
}

// sortTorrents returns a sorted copy of items for the given prefs column.
// Ties fall back to id so the order is stable between polls.
func sortTorrents(items []domain.Torrent, column string) []domain.Torrent {
	sorted := append([]domain.Torrent(nil), items...)
	less := func(a, b domain.Torrent) bool {
		switch column {
		case prefs.SortProgress:
			if a.Summary.Progress != b.Summary.Progress {
				return a.Summary.Progress > b.Summary.Progress
			}
		case prefs.SortRate:
			ra := a.Summary.RateDownload + a.Summary.RateUpload
			rb := b.Summary.RateDownload + b.Summary.RateUpload
			if ra != rb {
				return ra > rb
			}
		case prefs.SortAdded:
		default:
			na, nb := strings.ToLower(a.Name), strings.ToLower(b.Name)
			if na != nb {
				return na < nb
			}
		}
		return a.ID < b.ID
	}
	sort.SliceStable(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })
	return sorted
}

var sortOrder = []string{prefs.SortName, prefs.SortProgress, prefs.SortRate, prefs.SortAdded}

func nextSort(current string) string {
	for i, column := range sortOrder {
		if column == current {
			return sortOrder[(i+1)%len(sortOrder)]
		}
	}
	return sortOrder[0]
}
