package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/five82/remora/internal/app"
	"github.com/five82/remora/internal/domain"
	"github.com/five82/remora/internal/transmission"
	"github.com/five82/remora/internal/ui"
)

var statusColors = map[string]*color.Color{
	"downloading": color.New(color.FgCyan),
	"seeding":     color.New(color.FgGreen),
	"stopped":     color.New(color.FgHiBlack),
	"checking":    color.New(color.FgYellow),
	"error":       color.New(color.FgRed, color.Bold),
}

func colorStatus(label string, colorize bool) string {
	if !colorize {
		return label
	}
	if c, ok := statusColors[label]; ok {
		return c.Sprint(label)
	}
	return label
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List torrents on the daemon",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withConnection(cmd, func(c context.Context, conn *app.Connection) error {
				torrents, err := conn.FetchList(c)
				note := ""
				if errors.Is(err, transmission.ErrNetworkUnavailable) {
					cached, cacheErr := conn.CachedSnapshot(c)
					if cacheErr != nil || cached == nil || cached.Torrents == nil {
						return err
					}
					torrents = cached.Torrents.Torrents
					note = fmt.Sprintf("Daemon unreachable; showing cached list from %s", humanize.Time(cached.Torrents.UpdatedAt))
					err = nil
				}
				if err != nil {
					return err
				}

				sort.Slice(torrents, func(i, j int) bool { return torrents[i].ID < torrents[j].ID })
				if jsonOut {
					return writeJSON(cmd, torrents)
				}
				out := cmd.OutOrStdout()
				if note != "" {
					fmt.Fprintln(cmd.ErrOrStderr(), note)
				}
				if len(torrents) == 0 {
					fmt.Fprintln(out, "No torrents")
					return nil
				}
				fmt.Fprintln(out, renderTorrentTable(torrents, isTerminal(out)))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output JSON")
	return cmd
}

func renderTorrentTable(torrents []domain.Torrent, colorize bool) string {
	headers := []string{"ID", "Name", "Status", "Done", "Size", "Down", "Up", "ETA", "Ratio"}
	aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight}
	rows := make([][]string, 0, len(torrents))
	for _, t := range torrents {
		s := t.Summary
		rows = append(rows, []string{
			strconv.Itoa(t.ID),
			t.Name,
			colorStatus(ui.StatusLabel(t), colorize),
			ui.FormatProgress(s.Progress),
			ui.FormatBytes(s.TotalSize),
			ui.FormatRate(s.RateDownload),
			ui.FormatRate(s.RateUpload),
			ui.FormatETA(s.ETA),
			ui.FormatRatio(s.UploadRatio),
		})
	}
	return renderTable(headers, rows, aligns)
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one torrent with files and trackers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withReadyConnection(cmd, func(c context.Context, conn *app.Connection) error {
				torrent, err := conn.Torrents().FetchDetails(c, ids[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, torrent)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTorrentDetails(torrent))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output JSON")
	return cmd
}

func renderTorrentDetails(t domain.Torrent) string {
	s := t.Summary
	fields := [][2]string{
		{"Name", t.Name},
		{"ID", strconv.Itoa(t.ID)},
		{"Status", ui.StatusLabel(t)},
		{"Progress", ui.FormatProgress(s.Progress)},
		{"Size", ui.FormatBytes(s.TotalSize)},
		{"Downloaded", ui.FormatBytes(s.DownloadedEver)},
		{"Uploaded", ui.FormatBytes(s.UploadedEver)},
		{"Ratio", ui.FormatRatio(s.UploadRatio)},
		{"Rates", fmt.Sprintf("↓ %s  ↑ %s", ui.FormatRate(s.RateDownload), ui.FormatRate(s.RateUpload))},
		{"ETA", ui.FormatETA(s.ETA)},
		{"Peers", fmt.Sprintf("%d connected, %d sending, %d receiving", s.Peers.Connected, s.Peers.SendingToUs, s.Peers.GettingFromUs)},
		{"Labels", strings.Join(s.Labels, ", ")},
		{"Error", s.ErrorString},
	}
	d := t.Details
	if d != nil {
		added := ""
		if !d.AddedDate.IsZero() {
			added = fmt.Sprintf("%s (%s)", d.AddedDate.Format(time.DateTime), humanize.Time(d.AddedDate))
		}
		fields = append(fields,
			[2]string{"Location", d.DownloadDir},
			[2]string{"Added", added},
			[2]string{"Hash", d.HashString},
			[2]string{"Comment", d.Comment},
		)
	}

	var b strings.Builder
	b.WriteString(renderFields(fields))
	if d == nil {
		return b.String()
	}

	if len(d.Files) > 0 {
		rows := make([][]string, 0, len(d.Files))
		for _, f := range d.Files {
			done := 0.0
			if f.Length > 0 {
				done = float64(f.BytesCompleted) / float64(f.Length)
			}
			rows = append(rows, []string{
				strconv.Itoa(f.Index),
				f.Name,
				ui.FormatBytes(f.Length),
				ui.FormatProgress(done),
				yesNo(f.Wanted),
				f.Priority.String(),
			})
		}
		b.WriteString("\n\nFiles\n")
		b.WriteString(renderTable(
			[]string{"#", "Name", "Size", "Done", "Wanted", "Priority"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
		))
	}

	if len(d.TrackerStats) > 0 {
		rows := make([][]string, 0, len(d.TrackerStats))
		for _, ts := range d.TrackerStats {
			result := ts.LastAnnounceResult
			if result == "" && ts.LastAnnounceSucceeded {
				result = "Success"
			}
			rows = append(rows, []string{
				ts.Host,
				strconv.Itoa(ts.SeederCount),
				strconv.Itoa(ts.LeecherCount),
				result,
			})
		}
		b.WriteString("\n\nTrackers\n")
		b.WriteString(renderTable(
			[]string{"Host", "Seeders", "Leechers", "Last announce"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
		))
	}
	return b.String()
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	var downloadDir string
	var paused bool
	var labels []string

	cmd := &cobra.Command{
		Use:   "add <magnet|url|file.torrent>",
		Short: "Add a torrent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildAddRequest(args[0])
			if err != nil {
				return err
			}
			req.DownloadDir = downloadDir
			req.Paused = paused
			req.Labels = labels

			return ctx.withReadyConnection(cmd, func(c context.Context, conn *app.Connection) error {
				result, err := conn.Torrents().Add(c, req)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if result.Status == domain.AddStatusDuplicate {
					fmt.Fprintf(out, "Already on the daemon: #%d %s\n", result.ID, result.Name)
					return nil
				}
				fmt.Fprintf(out, "Added #%d %s\n", result.ID, result.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&downloadDir, "download-dir", "", "Download directory on the daemon host")
	cmd.Flags().BoolVar(&paused, "paused", false, "Add without starting")
	cmd.Flags().StringSliceVar(&labels, "label", nil, "Label to apply (repeatable)")
	return cmd
}

// buildAddRequest reads local .torrent files and passes anything else to the
// daemon as a magnet link or URL.
func buildAddRequest(source string) (domain.AddRequest, error) {
	source = strings.TrimSpace(source)
	if strings.HasSuffix(strings.ToLower(source), ".torrent") {
		if info, err := os.Stat(source); err == nil && !info.IsDir() {
			data, err := os.ReadFile(source)
			if err != nil {
				return domain.AddRequest{}, fmt.Errorf("read torrent file: %w", err)
			}
			return domain.AddRequest{MetaInfo: data}, nil
		}
	}
	return domain.AddRequest{Source: source}, nil
}

type torrentAction struct {
	use   string
	short string
	done  string
	run   func(conn *app.Connection) func(context.Context, []int) error
}

func newActionCommands(ctx *commandContext) []*cobra.Command {
	actions := []torrentAction{
		{"start", "Start torrents", "Started", func(conn *app.Connection) func(context.Context, []int) error { return conn.Start }},
		{"stop", "Stop torrents", "Stopped", func(conn *app.Connection) func(context.Context, []int) error { return conn.Stop }},
		{"verify", "Queue torrents for verification", "Queued verification for", func(conn *app.Connection) func(context.Context, []int) error { return conn.Verify }},
	}

	cmds := make([]*cobra.Command, 0, len(actions))
	for _, action := range actions {
		cmds = append(cmds, &cobra.Command{
			Use:   action.use + " <id>...",
			Short: action.short,
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ids, err := parseIDs(args)
				if err != nil {
					return err
				}
				return ctx.withReadyConnection(cmd, func(c context.Context, conn *app.Connection) error {
					if err := action.run(conn)(c, ids); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", action.done, formatIDs(ids))
					return nil
				})
			},
		})
	}
	return cmds
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	var deleteData bool

	cmd := &cobra.Command{
		Use:     "remove <id>...",
		Aliases: []string{"rm"},
		Short:   "Remove torrents from the daemon",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withReadyConnection(cmd, func(c context.Context, conn *app.Connection) error {
				if err := conn.Torrents().Remove(c, ids, deleteData); err != nil {
					return err
				}
				suffix := ""
				if deleteData {
					suffix = " and deleted their data"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s%s\n", formatIDs(ids), suffix)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&deleteData, "delete-data", false, "Also delete downloaded data")
	return cmd
}

func parseIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimPrefix(strings.TrimSpace(part), "#")
			if part == "" {
				continue
			}
			id, err := strconv.Atoi(part)
			if err != nil || id <= 0 {
				return nil, fmt.Errorf("invalid torrent id %q", part)
			}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, errors.New("no torrent ids given")
	}
	return ids, nil
}

func formatIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = "#" + strconv.Itoa(id)
	}
	return strings.Join(parts, ", ")
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
