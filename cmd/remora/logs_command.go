package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/five82/remora/internal/logging"
	"github.com/five82/remora/internal/logtail"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var level string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display remora's own log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Log.File == "" {
				return fmt.Errorf("log.file is not configured")
			}
			tail, err := logtail.Read(cfg.Log.File, lines)
			if err != nil {
				return err
			}
			tail = logtail.Filter(tail, logging.ParseLevel(level))

			out := cmd.OutOrStdout()
			if len(tail) == 0 {
				fmt.Fprintln(out, "No log entries available")
				return nil
			}
			colorize := isTerminal(out)
			for _, line := range tail {
				if colorize {
					line = logtail.Colorize(line)
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show (0 for all)")
	cmd.Flags().StringVar(&level, "level", "debug", "Minimum level to show (debug, info, warn, error)")
	return cmd
}
