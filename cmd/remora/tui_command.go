package main

import (
	"github.com/spf13/cobra"

	"github.com/five82/remora/internal/app"
)

func newTUICommand(ctx *commandContext) *cobra.Command {
	var poll int

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive dashboard (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, ctx, poll)
		},
	}

	cmd.Flags().IntVar(&poll, "poll", 0, "Refresh interval in seconds (defaults to rpc.poll_interval_seconds)")
	return cmd
}

func runTUI(cmd *cobra.Command, ctx *commandContext, poll int) error {
	return app.Run(cmd.Context(), app.Options{
		ConfigPath: ctx.configPath(),
		ServerID:   ctx.serverID(),
		PollEvery:  poll,
		Passphrase: ctx.passphrasePrompt(cmd),
	})
}
