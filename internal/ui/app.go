package ui

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/remora/internal/logging"
	"github.com/five82/remora/internal/prefs"
	"github.com/five82/remora/internal/state"
)

// Actions are the torrent commands bound to keys.
// *repository.TorrentRepository satisfies it.
type Actions interface {
	Start(ctx context.Context, ids []int) error
	Stop(ctx context.Context, ids []int) error
	Verify(ctx context.Context, ids []int) error
}

// Options configures the UI.
type Options struct {
	Context    context.Context
	Store      *state.Store
	Actions    Actions
	Refresh    func(ctx context.Context) error
	Prompter   *TrustPrompter
	ServerName string
	PollTick   time.Duration
	Prefs      prefs.Prefs
	PrefsPath  string
	Logger     *slog.Logger
}

// Model is the Bubble Tea model for the torrent list.
type Model struct {
	ctx        context.Context
	store      *state.Store
	actions    Actions
	refresh    func(ctx context.Context) error
	prompter   *TrustPrompter
	serverName string
	pollTick   time.Duration
	prefs      prefs.Prefs
	prefsPath  string
	logger     *slog.Logger

	theme Theme
	keys  keyMap

	width  int
	height int
	ready  bool

	snapshot    state.Snapshot
	selectedRow int
	showHelp    bool
	modal       Modal

	// flash is a one-line result of the last action, shown in the footer.
	flash      string
	flashError bool
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	pollTick := opts.PollTick
	if pollTick <= 0 {
		pollTick = time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	p := opts.Prefs
	if p.SortColumn == "" {
		p.SortColumn = prefs.SortName
	}

	return Model{
		ctx:        ctx,
		store:      opts.Store,
		actions:    opts.Actions,
		refresh:    opts.Refresh,
		prompter:   opts.Prompter,
		serverName: opts.ServerName,
		pollTick:   pollTick,
		prefs:      p,
		prefsPath:  opts.PrefsPath,
		logger:     logging.NewComponentLogger(logger, "ui"),
		theme:      GetTheme(p.Theme),
		keys:       DefaultKeyMap(),
	}
}

// Prefs returns the preferences as changed during the session.
func (m Model) Prefs() prefs.Prefs {
	return m.prefs
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(m.pollTick)}
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	if m.prompter != nil {
		cmds = append(cmds, m.prompter.waitForChallenge(m.ctx))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		return m, nil

	case tickMsg:
		cmds := []tea.Cmd{tickCmd(m.pollTick)}
		if m.store != nil {
			cmds = append(cmds, fetchSnapshotCmd(m.store))
		}
		return m, tea.Batch(cmds...)

	case snapshotMsg:
		m.snapshot = state.Snapshot(msg)
		m.clampSelection()
		return m, nil

	case trustChallengeMsg:
		m.modal = trustModal{req: trustRequest(msg)}
		m.showHelp = false
		return m, nil

	case actionResultMsg:
		m.flash, m.flashError = msg.describe()
		if msg.err != nil {
			m.logger.Warn("torrent action failed",
				slog.String("action", msg.verb),
				logging.Error(msg.err),
			)
		}
		if m.store != nil {
			return m, fetchSnapshotCmd(m.store)
		}
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.modal != nil {
		return m.modal.View(m.theme, m.width, m.height)
	}
	if m.showHelp {
		return m.renderHelp()
	}
	return m.renderMain()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.modal != nil {
		if msg.String() == "ctrl+c" {
			m.modal.Update(tea.KeyMsg{Type: tea.KeyEsc}, m.keys)
			return m, tea.Quit
		}
		modal, cmd, done := m.modal.Update(msg, m.keys)
		if done {
			m.modal = nil
			if m.prompter != nil {
				cmd = tea.Batch(cmd, m.prompter.waitForChallenge(m.ctx))
			}
		} else {
			m.modal = modal
		}
		return m, cmd
	}

	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}
	m.flash, m.flashError = "", false

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.prefs.Theme = m.theme.Name
		m.savePrefs()
		return m, nil

	case key.Matches(msg, m.keys.CycleSort):
		id, hasSelection := m.selectedID()
		m.prefs.SortColumn = nextSort(m.prefs.SortColumn)
		if hasSelection {
			m.selectID(id)
		}
		m.savePrefs()
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		return m, m.refreshCmd()

	case key.Matches(msg, m.keys.Start):
		return m, m.actionCmd("start", actionFunc(m.actions, "start"))
	case key.Matches(msg, m.keys.Stop):
		return m, m.actionCmd("stop", actionFunc(m.actions, "stop"))
	case key.Matches(msg, m.keys.Verify):
		return m, m.actionCmd("verify", actionFunc(m.actions, "verify"))
	}

	return m.handleTableKey(msg)
}

func (m Model) handleTableKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	count := len(m.snapshot.Torrents)
	if count == 0 {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Down):
		if m.selectedRow < count-1 {
			m.selectedRow++
		}
	case key.Matches(msg, m.keys.Up):
		if m.selectedRow > 0 {
			m.selectedRow--
		}
	case key.Matches(msg, m.keys.Top):
		m.selectedRow = 0
	case key.Matches(msg, m.keys.Bottom):
		m.selectedRow = count - 1
	}
	return m, nil
}

func (m *Model) clampSelection() {
	if m.selectedRow >= len(m.snapshot.Torrents) {
		m.selectedRow = len(m.snapshot.Torrents) - 1
	}
	if m.selectedRow < 0 {
		m.selectedRow = 0
	}
}

// selectedID returns the id of the highlighted torrent in display order.
func (m Model) selectedID() (int, bool) {
	rows := sortTorrents(m.snapshot.Torrents, m.prefs.SortColumn)
	if m.selectedRow < 0 || m.selectedRow >= len(rows) {
		return 0, false
	}
	return rows[m.selectedRow].ID, true
}

func (m *Model) selectID(id int) {
	for i, t := range sortTorrents(m.snapshot.Torrents, m.prefs.SortColumn) {
		if t.ID == id {
			m.selectedRow = i
			return
		}
	}
}

func (m Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	if err := prefs.Save(m.prefsPath, m.prefs); err != nil {
		m.logger.Warn("save preferences failed", logging.Error(err))
	}
}

func actionFunc(actions Actions, verb string) func(context.Context, []int) error {
	if actions == nil {
		return nil
	}
	switch verb {
	case "start":
		return actions.Start
	case "stop":
		return actions.Stop
	default:
		return actions.Verify
	}
}

func (m Model) actionCmd(verb string, run func(context.Context, []int) error) tea.Cmd {
	id, ok := m.selectedID()
	if !ok || run == nil {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		return actionResultMsg{verb: verb, id: id, err: run(ctx, []int{id})}
	}
}

func (m Model) refreshCmd() tea.Cmd {
	if m.refresh == nil {
		return nil
	}
	ctx, refresh := m.ctx, m.refresh
	return func() tea.Msg {
		return actionResultMsg{verb: "refresh", err: refresh(ctx)}
	}
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

type actionResultMsg struct {
	verb string
	id   int
	err  error
}

func (r actionResultMsg) describe() (string, bool) {
	if r.err != nil {
		return fmt.Sprintf("%s failed: %v", r.verb, r.err), true
	}
	if r.verb == "refresh" {
		return "refreshed", false
	}
	past := map[string]string{
		"start":  "started",
		"stop":   "stopped",
		"verify": "verification queued for",
	}[r.verb]
	return fmt.Sprintf("%s #%d", past, r.id), false
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

// Run starts the Bubble Tea program and returns the final preferences.
func Run(opts Options) (prefs.Prefs, error) {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	if fm, ok := final.(Model); ok {
		return fm.Prefs(), err
	}
	return m.Prefs(), err
}
