package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/five82/remora/internal/domain"
)

// column widths; the name column takes whatever is left.
const (
	colID       = 5
	colStatus   = 14
	colProgress = 7
	colSize     = 10
	colRate     = 12
	colETA      = 8
	colRatio    = 6
	colGaps     = 8
	minNameCol  = 12
)

func (m Model) renderMain() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	if banner := m.renderBanner(); banner != "" {
		b.WriteString(banner)
		b.WriteString("\n")
	}
	b.WriteString(m.renderTable(m.tableHeight()))
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

// tableHeight is the number of torrent rows that fit between header and
// footer.
func (m Model) tableHeight() int {
	used := 3 // header, column titles, footer
	if m.renderBanner() != "" {
		used++
	}
	return max(m.height-used, 1)
}

// renderHeader shows the server, session throughput and connection state.
func (m Model) renderHeader() string {
	styles := m.theme.Styles()
	bar := styles.Header.Width(m.width)

	parts := []string{styles.Logo.Render("remora")}
	if m.serverName != "" {
		parts = append(parts, styles.Text.Render(m.serverName))
	}

	snap := m.snapshot
	if snap.HasSession {
		s := snap.Session
		parts = append(parts,
			styles.InfoText.Render("↓ "+FormatRate(s.Throughput.DownloadSpeed)),
			styles.SuccessText.Render("↑ "+FormatRate(s.Throughput.UploadSpeed)),
			styles.MutedText.Render(fmt.Sprintf("%d torrents, %d active", s.Throughput.TorrentCount, s.Throughput.ActiveTorrentCount)),
		)
		if s.Storage.FreeBytes >= 0 {
			parts = append(parts, styles.MutedText.Render("free "+FormatBytes(s.Storage.FreeBytes)))
		}
		if s.SpeedLimits.AlternativeEnabled {
			parts = append(parts, styles.WarningText.Render("ALT"))
		}
		if s.RPC.ServerVersion != "" {
			parts = append(parts, styles.FaintText.Render(s.RPC.ServerVersion))
		}
	} else if snap.LastError == nil {
		parts = append(parts, styles.MutedText.Render("connecting..."))
	}

	if badge := m.connectionBadge(); badge != "" {
		parts = append(parts, badge)
	}
	return bar.Render(strings.Join(parts, "  "))
}

// connectionBadge marks stale data: OFFLINE after repeated failures and
// CACHED while showing data seeded from the offline cache.
func (m Model) connectionBadge() string {
	styles := m.theme.Styles()
	badge := lipgloss.NewStyle().Padding(0, 1).Bold(true)
	switch {
	case m.snapshot.IsOffline():
		return badge.
			Background(lipgloss.Color(m.theme.Danger)).
			Foreground(lipgloss.Color(m.theme.Background)).
			Render("OFFLINE")
	case m.snapshot.FromCache:
		label := "CACHED"
		if !m.snapshot.CachedAt.IsZero() {
			label += " " + humanize.Time(m.snapshot.CachedAt)
		}
		return badge.
			Background(lipgloss.Color(m.theme.Warning)).
			Foreground(lipgloss.Color(m.theme.Background)).
			Render(label)
	case m.snapshot.LastError != nil:
		return styles.WarningText.Render("retrying")
	}
	return ""
}

// renderBanner shows the last poll error, if any.
func (m Model) renderBanner() string {
	err := m.snapshot.LastError
	if err == nil {
		return ""
	}
	styles := m.theme.Styles()
	msg := truncate(err.Error(), max(m.width-2, 10))
	return styles.DangerText.Render(" " + msg)
}

func (m Model) nameWidth() int {
	fixed := colID + colStatus + colProgress + colSize + 2*colRate + colETA + colRatio + colGaps
	return max(m.width-fixed, minNameCol)
}

func (m Model) renderTable(rows int) string {
	styles := m.theme.Styles()
	nameWidth := m.nameWidth()

	title := formatRow(nameWidth, "ID", "Name", "Status", "Done", "Size", "Down", "Up", "ETA", "Ratio")
	lines := []string{styles.AccentText.Bold(true).Render(title)}

	torrents := sortTorrents(m.snapshot.Torrents, m.prefs.SortColumn)
	if len(torrents) == 0 {
		empty := "No torrents"
		if !m.snapshot.HasSession && m.snapshot.LastError == nil {
			empty = "Waiting for the daemon..."
		}
		lines = append(lines, styles.MutedText.Render(" "+empty))
		return strings.Join(lines, "\n")
	}

	// keep the selection visible
	start := 0
	if m.selectedRow >= rows {
		start = m.selectedRow - rows + 1
	}
	end := min(start+rows, len(torrents))

	for i := start; i < end; i++ {
		t := torrents[i]
		if i == m.selectedRow {
			lines = append(lines, styles.Selected.Width(m.width).Render(torrentRow(t, nameWidth)))
			continue
		}
		lines = append(lines, m.styledRow(t, nameWidth))
	}
	return strings.Join(lines, "\n")
}

func (m Model) styledRow(t domain.Torrent, nameWidth int) string {
	styles := m.theme.Styles()
	status := StatusLabel(t)
	s := t.Summary
	return strings.Join([]string{
		styles.MutedText.Render(padLeft(fmt.Sprint(t.ID), colID)),
		styles.Text.Render(padRight(t.Name, nameWidth)),
		styles.StatusStyle(status).Render(padRight(status, colStatus)),
		styles.Text.Render(padLeft(FormatProgress(s.Progress), colProgress)),
		styles.MutedText.Render(padLeft(FormatBytes(s.TotalSize), colSize)),
		styles.InfoText.Render(padLeft(FormatRate(s.RateDownload), colRate)),
		styles.SuccessText.UnsetBold().Render(padLeft(FormatRate(s.RateUpload), colRate)),
		styles.MutedText.Render(padLeft(FormatETA(s.ETA), colETA)),
		styles.Text.Render(padLeft(FormatRatio(s.UploadRatio), colRatio)),
	}, " ")
}

// torrentRow is the unstyled row used under the selection highlight.
func torrentRow(t domain.Torrent, nameWidth int) string {
	s := t.Summary
	return formatRow(nameWidth,
		fmt.Sprint(t.ID),
		t.Name,
		StatusLabel(t),
		FormatProgress(s.Progress),
		FormatBytes(s.TotalSize),
		FormatRate(s.RateDownload),
		FormatRate(s.RateUpload),
		FormatETA(s.ETA),
		FormatRatio(s.UploadRatio),
	)
}

func formatRow(nameWidth int, id, name, status, done, size, down, up, eta, ratio string) string {
	return strings.Join([]string{
		padLeft(id, colID),
		padRight(name, nameWidth),
		padRight(status, colStatus),
		padLeft(done, colProgress),
		padLeft(size, colSize),
		padLeft(down, colRate),
		padLeft(up, colRate),
		padLeft(eta, colETA),
		padLeft(ratio, colRatio),
	}, " ")
}

// renderFooter shows the last action result, or the key hints.
func (m Model) renderFooter() string {
	styles := m.theme.Styles()
	bar := styles.Footer.Width(m.width)
	if m.flash != "" {
		style := styles.SuccessText
		if m.flashError {
			style = styles.DangerText
		}
		return bar.Render(style.Render(m.flash))
	}
	hints := []string{"s start", "p stop", "v verify", "r refresh", "o sort:" + m.prefs.SortColumn, "T theme", "? help", "q quit"}
	return bar.Render(strings.Join(hints, "  "))
}

type helpItem struct {
	key  string
	desc string
}

type helpSection struct {
	title string
	items []helpItem
}

// renderHelp renders the help overlay.
func (m Model) renderHelp() string {
	styles := m.theme.Styles()
	sections := []helpSection{
		{
			title: "Navigation",
			items: []helpItem{
				{"j/k", "Move down/up"},
				{"g/G", "Go to top/bottom"},
			},
		},
		{
			title: "Torrents",
			items: []helpItem{
				{"s", "Start selected"},
				{"p", "Stop selected"},
				{"v", "Verify selected"},
				{"r", "Refresh now"},
				{"o", "Cycle sort column"},
			},
		},
		{
			title: "General",
			items: []helpItem{
				{"T", "Cycle theme"},
				{"?", "Toggle help"},
				{"q/ctrl+c", "Quit"},
			},
		},
	}

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render("Keyboard Shortcuts"))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", 30)))
	b.WriteString("\n\n")

	keyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(m.theme.Warning)).
		Width(12)
	for i, section := range sections {
		b.WriteString(styles.AccentText.Bold(true).Render(section.title))
		b.WriteString("\n")
		for _, item := range section.items {
			b.WriteString(keyStyle.Render(item.key))
			b.WriteString(styles.Text.Render(item.desc))
			b.WriteString("\n")
		}
		if i < len(sections)-1 {
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(styles.MutedText.Render("Press any key to close"))

	box := styles.Modal.Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
