package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/five82/remora/internal/app"
	"github.com/five82/remora/internal/domain"
	"github.com/five82/remora/internal/ui"
)

func newSessionCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Show daemon session state and statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withConnection(cmd, func(c context.Context, conn *app.Connection) error {
				session, err := conn.FetchState(c)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, session)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderSession(conn.Server, session))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output JSON")
	return cmd
}

func renderSession(server domain.ServerConfig, s domain.SessionState) string {
	free := "-"
	if s.Storage.FreeBytes >= 0 {
		free = ui.FormatBytes(s.Storage.FreeBytes)
	}
	alt := "off"
	if s.SpeedLimits.AlternativeEnabled {
		alt = fmt.Sprintf("on (↓ %d KB/s, ↑ %d KB/s)", s.SpeedLimits.AlternativeDownKBps, s.SpeedLimits.AlternativeUpKBps)
	}
	ratio := "off"
	if s.SeedRatioLimit.Enabled {
		ratio = strconv.FormatFloat(s.SeedRatioLimit.Ratio, 'f', 2, 64)
	}
	t := s.Throughput
	return renderFields([][2]string{
		{"Server", server.Endpoint()},
		{"Version", s.RPC.ServerVersion},
		{"RPC version", strconv.Itoa(s.RPC.Version)},
		{"Download dir", s.DownloadDir},
		{"Free space", free},
		{"Rates", fmt.Sprintf("↓ %s  ↑ %s", ui.FormatRate(t.DownloadSpeed), ui.FormatRate(t.UploadSpeed))},
		{"Torrents", fmt.Sprintf("%d total, %d active, %d paused", t.TorrentCount, t.ActiveTorrentCount, t.PausedTorrentCount)},
		{"Download limit", formatLimit(s.SpeedLimits.Download)},
		{"Upload limit", formatLimit(s.SpeedLimits.Upload)},
		{"Alt speed", alt},
		{"Seed ratio", ratio},
		{"This session", fmt.Sprintf("↓ %s  ↑ %s", ui.FormatBytes(t.CurrentDownload), ui.FormatBytes(t.CurrentUpload))},
		{"All time", fmt.Sprintf("↓ %s  ↑ %s", ui.FormatBytes(t.CumulativeDownload), ui.FormatBytes(t.CumulativeUpload))},
	})
}

func formatLimit(limit domain.TransferLimit) string {
	if !limit.Enabled {
		return "unlimited"
	}
	return fmt.Sprintf("%d KB/s", limit.KBps)
}

func newFreeSpaceCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "free-space <path>",
		Short: "Report free space for a directory on the daemon host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withReadyConnection(cmd, func(c context.Context, conn *app.Connection) error {
				bytes, err := conn.Sessions().FreeSpace(c, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s free\n", args[0], ui.FormatBytes(bytes))
				return nil
			})
		},
	}
}
