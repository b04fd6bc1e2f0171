package ui

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/remora/internal/domain"
	"github.com/five82/remora/internal/prefs"
	"github.com/five82/remora/internal/state"
)

type fakeActions struct {
	mu    sync.Mutex
	calls []string
	ids   [][]int
	err   error
}

func (f *fakeActions) record(verb string, ids []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, verb)
	f.ids = append(f.ids, ids)
	return f.err
}

func (f *fakeActions) Start(_ context.Context, ids []int) error  { return f.record("start", ids) }
func (f *fakeActions) Stop(_ context.Context, ids []int) error   { return f.record("stop", ids) }
func (f *fakeActions) Verify(_ context.Context, ids []int) error { return f.record("verify", ids) }

func sampleSnapshot() state.Snapshot {
	return state.Snapshot{
		Torrents: []domain.Torrent{
			{ID: 7, Name: "ubuntu.iso", Status: domain.StatusSeeding, Summary: domain.TorrentSummary{Progress: 1}},
			{ID: 3, Name: "debian.iso", Status: domain.StatusDownloading, Summary: domain.TorrentSummary{Progress: 0.25, RateDownload: 2048}},
		},
		Session:     domain.SessionState{Throughput: domain.Throughput{TorrentCount: 2, ActiveTorrentCount: 1}, Storage: domain.Storage{FreeBytes: 1 << 30}},
		HasSession:  true,
		LastUpdated: time.Now(),
	}
}

func readyModel(t *testing.T, opts Options, snap state.Snapshot) Model {
	t.Helper()
	m := New(opts)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 20})
	next, _ = next.(Model).Update(snapshotMsg(snap))
	return next.(Model)
}

func press(t *testing.T, m Model, keys ...string) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "ctrl+c":
			msg = tea.KeyMsg{Type: tea.KeyCtrlC}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, c := m.Update(msg)
		m, cmd = next.(Model), c
	}
	return m, cmd
}

func TestModel_ActionTargetsSelectedTorrent(t *testing.T) {
	actions := &fakeActions{}
	m := readyModel(t, Options{Actions: actions}, sampleSnapshot())

	// sorted by name: debian (3) first, ubuntu (7) second
	m, cmd := press(t, m, "down", "p")
	if cmd == nil {
		t.Fatal("stop key returned no command")
	}
	msg := cmd()
	result, ok := msg.(actionResultMsg)
	if !ok {
		t.Fatalf("command returned %T, want actionResultMsg", msg)
	}
	if len(actions.calls) != 1 || actions.calls[0] != "stop" || actions.ids[0][0] != 7 {
		t.Fatalf("actions = %v %v, want stop [7]", actions.calls, actions.ids)
	}

	next, _ := m.Update(result)
	m = next.(Model)
	if m.flash != "stopped #7" || m.flashError {
		t.Fatalf("flash = %q (error %v), want %q", m.flash, m.flashError, "stopped #7")
	}
	if !strings.Contains(m.View(), "stopped #7") {
		t.Fatal("footer does not show the action result")
	}
}

func TestModel_ActionFailureIsFlashed(t *testing.T) {
	actions := &fakeActions{err: errors.New("daemon says no")}
	m := readyModel(t, Options{Actions: actions}, sampleSnapshot())

	_, cmd := press(t, m, "v")
	next, _ := m.Update(cmd())
	m = next.(Model)
	if !m.flashError || !strings.Contains(m.flash, "daemon says no") {
		t.Fatalf("flash = %q (error %v), want failure", m.flash, m.flashError)
	}
}

func TestModel_NoActionWithoutTorrents(t *testing.T) {
	actions := &fakeActions{}
	m := readyModel(t, Options{Actions: actions}, state.Snapshot{})
	if _, cmd := press(t, m, "s"); cmd != nil {
		t.Fatal("start with an empty table returned a command")
	}
}

func TestModel_RefreshKey(t *testing.T) {
	calls := 0
	refresh := func(context.Context) error {
		calls++
		return nil
	}
	m := readyModel(t, Options{Refresh: refresh}, sampleSnapshot())
	_, cmd := press(t, m, "r")
	if cmd == nil {
		t.Fatal("refresh key returned no command")
	}
	if msg, ok := cmd().(actionResultMsg); !ok || msg.err != nil || calls != 1 {
		t.Fatalf("refresh = %+v, calls %d", msg, calls)
	}
}

func TestModel_SortAndThemePersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	m := readyModel(t, Options{PrefsPath: path, Prefs: prefs.Prefs{Theme: "Dracula", LastServer: "nas"}}, sampleSnapshot())

	// select ubuntu (7), then sort by progress: it moves to the top
	m, _ = press(t, m, "down", "o")
	if m.prefs.SortColumn != prefs.SortProgress {
		t.Fatalf("SortColumn = %q, want %q", m.prefs.SortColumn, prefs.SortProgress)
	}
	if id, _ := m.selectedID(); id != 7 {
		t.Fatalf("selection after sort = %d, want 7", id)
	}

	m, _ = press(t, m, "T")
	if m.theme.Name != "Slate" {
		t.Fatalf("theme = %q, want Slate", m.theme.Name)
	}

	saved, err := prefs.Load(path)
	if err != nil {
		t.Fatalf("prefs.Load returned error: %v", err)
	}
	want := prefs.Prefs{Theme: "Slate", LastServer: "nas", SortColumn: prefs.SortProgress}
	if saved != want {
		t.Fatalf("saved prefs = %+v, want %+v", saved, want)
	}
	if m.Prefs() != want {
		t.Fatalf("Prefs() = %+v, want %+v", m.Prefs(), want)
	}
}

func TestModel_SelectionClampedOnShrink(t *testing.T) {
	m := readyModel(t, Options{}, sampleSnapshot())
	m, _ = press(t, m, "G")
	if m.selectedRow != 1 {
		t.Fatalf("selectedRow = %d, want 1", m.selectedRow)
	}
	snap := sampleSnapshot()
	snap.Torrents = snap.Torrents[:1]
	next, _ := m.Update(snapshotMsg(snap))
	if got := next.(Model).selectedRow; got != 0 {
		t.Fatalf("selectedRow after shrink = %d, want 0", got)
	}
}

func TestModel_ViewBadges(t *testing.T) {
	tests := []struct {
		name string
		snap func() state.Snapshot
		want string
	}{
		{"live", sampleSnapshot, "debian.iso"},
		{"offline", func() state.Snapshot {
			s := sampleSnapshot()
			s.ConsecutiveFailures = 2
			s.LastError = errors.New("connection refused")
			return s
		}, "OFFLINE"},
		{"cached", func() state.Snapshot {
			s := sampleSnapshot()
			s.FromCache = true
			s.CachedAt = time.Now().Add(-3 * time.Hour)
			return s
		}, "CACHED 3 hours ago"},
		{"error banner", func() state.Snapshot {
			s := sampleSnapshot()
			s.LastError = errors.New("connection refused")
			s.ConsecutiveFailures = 1
			return s
		}, "connection refused"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := readyModel(t, Options{ServerName: "nas"}, tc.snap())
			if view := m.View(); !strings.Contains(view, tc.want) {
				t.Fatalf("View() missing %q:\n%s", tc.want, view)
			}
		})
	}
}

func TestModel_HelpAndQuit(t *testing.T) {
	m := readyModel(t, Options{}, sampleSnapshot())
	m, _ = press(t, m, "?")
	if !m.showHelp || !strings.Contains(m.View(), "Keyboard Shortcuts") {
		t.Fatal("help overlay not shown")
	}
	m, _ = press(t, m, "x")
	if m.showHelp {
		t.Fatal("help overlay still shown after a key press")
	}
	_, cmd := press(t, m, "q")
	if cmd == nil {
		t.Fatal("quit key returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("quit key did not quit")
	}
}
