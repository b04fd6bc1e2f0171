package ui

import (
	"testing"

	"github.com/five82/remora/internal/domain"
	"github.com/five82/remora/internal/prefs"
)

func TestFormatETA(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{-1, "-"},
		{-2, "-"},
		{0, "0s"},
		{59, "59s"},
		{61, "1m01s"},
		{3725, "1h02m"},
		{90061, "1d01h"},
	}
	for _, tc := range tests {
		if got := FormatETA(tc.seconds); got != tc.want {
			t.Fatalf("FormatETA(%d) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}

func TestFormatSizes(t *testing.T) {
	if got := FormatBytes(0); got != "0 B" {
		t.Fatalf("FormatBytes(0) = %q, want %q", got, "0 B")
	}
	if got := FormatBytes(-1); got != "-" {
		t.Fatalf("FormatBytes(-1) = %q, want -", got)
	}
	if got := FormatRate(1536); got != "1.5 KiB/s" {
		t.Fatalf("FormatRate(1536) = %q, want %q", got, "1.5 KiB/s")
	}
	if got := FormatRate(0); got != "-" {
		t.Fatalf("FormatRate(0) = %q, want -", got)
	}
}

func TestFormatProgressAndRatio(t *testing.T) {
	progress := map[float64]string{0: "0%", 0.456: "45.6%", 1: "100%", 1.2: "100%"}
	for in, want := range progress {
		if got := FormatProgress(in); got != want {
			t.Fatalf("FormatProgress(%v) = %q, want %q", in, got, want)
		}
	}
	ratios := map[float64]string{-2: "∞", -1: "-", 1.5: "1.50", 0: "0.00"}
	for in, want := range ratios {
		if got := FormatRatio(in); got != want {
			t.Fatalf("FormatRatio(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestStatusLabel(t *testing.T) {
	torrent := domain.Torrent{Status: domain.StatusSeeding}
	if got := StatusLabel(torrent); got != "seeding" {
		t.Fatalf("StatusLabel = %q, want seeding", got)
	}
	torrent.Summary.ErrorCode = 2
	if got := StatusLabel(torrent); got != "error" {
		t.Fatalf("StatusLabel with error = %q, want error", got)
	}
}

func TestTruncateAndPad(t *testing.T) {
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Fatalf("truncate = %q, want %q", got, "abc…")
	}
	if got := truncate("abc", 4); got != "abc" {
		t.Fatalf("truncate short = %q, want abc", got)
	}
	if got := truncate("abc", 0); got != "" {
		t.Fatalf("truncate zero width = %q, want empty", got)
	}
	if got := padRight("ab", 4); got != "ab  " {
		t.Fatalf("padRight = %q", got)
	}
	if got := padLeft("ab", 4); got != "  ab" {
		t.Fatalf("padLeft = %q", got)
	}
}

func TestSortTorrents(t *testing.T) {
	items := []domain.Torrent{
		{ID: 3, Name: "beta", Summary: domain.TorrentSummary{Progress: 0.5, RateDownload: 10}},
		{ID: 1, Name: "Alpha", Summary: domain.TorrentSummary{Progress: 0.1, RateUpload: 500}},
		{ID: 2, Name: "gamma", Summary: domain.TorrentSummary{Progress: 0.9}},
	}
	tests := []struct {
		column string
		want   []int
	}{
		{prefs.SortName, []int{1, 3, 2}},
		{prefs.SortProgress, []int{2, 3, 1}},
		{prefs.SortRate, []int{1, 3, 2}},
		{prefs.SortAdded, []int{1, 2, 3}},
	}
	for _, tc := range tests {
		got := sortTorrents(items, tc.column)
		for i, id := range tc.want {
			if got[i].ID != id {
				t.Fatalf("sortTorrents(%s) order = %v, want %v", tc.column, ids(got), tc.want)
			}
		}
	}
	if items[0].ID != 3 {
		t.Fatal("sortTorrents modified its input")
	}
}

func TestNextSort(t *testing.T) {
	if got := nextSort(prefs.SortAdded); got != prefs.SortName {
		t.Fatalf("nextSort(%s) = %q, want %q", prefs.SortAdded, got, prefs.SortName)
	}
	if got := nextSort("bogus"); got != prefs.SortName {
		t.Fatalf("nextSort(bogus) = %q, want %q", got, prefs.SortName)
	}
}

func ids(items []domain.Torrent) []int {
	out := make([]int, len(items))
	for i, t := range items {
		out[i] = t.ID
	}
	return out
}
