package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/five82/remora/internal/trust"
)

func newTrustCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trust",
		Short: "Manage pinned server certificates",
	}
	cmd.AddCommand(newTrustListCommand(ctx))
	cmd.AddCommand(newTrustForgetCommand(ctx))
	return cmd
}

func (c *commandContext) withTrustStore(fn func(store *trust.SQLiteStore) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := trust.OpenSQLiteStore(cfg.Trust.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func newTrustListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pinned certificates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withTrustStore(func(store *trust.SQLiteStore) error {
				pins, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(pins) == 0 {
					fmt.Fprintln(out, "No pinned certificates")
					return nil
				}
				rows := make([][]string, 0, len(pins))
				for _, pin := range pins {
					rows = append(rows, []string{
						pin.Identity.String(),
						shortFingerprint(pin.Fingerprint),
						pin.Subject,
						formatExpiry(pin.NotAfter),
						humanize.Time(pin.PinnedAt),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Server", "SHA-256", "Subject", "Expires", "Pinned"},
					rows,
					nil,
				))
				return nil
			})
		},
	}
}

func newTrustForgetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "forget [server-id]",
		Short: "Remove the pinned certificate of a server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			id := ctx.serverID()
			if len(args) == 1 {
				id = args[0]
			}
			entry, err := cfg.Server(id)
			if err != nil {
				return err
			}
			identity := trust.Identity{Host: entry.Host, Port: entry.Port, IsSecure: entry.HTTPS}

			return ctx.withTrustStore(func(store *trust.SQLiteStore) error {
				_, found, err := store.Lookup(cmd.Context(), identity)
				if err != nil {
					return err
				}
				if !found {
					fmt.Fprintf(cmd.OutOrStdout(), "No pinned certificate for %s\n", identity)
					return nil
				}
				if err := store.Remove(cmd.Context(), identity); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Forgot pinned certificate for %s\n", identity)
				return nil
			})
		},
	}
}

func shortFingerprint(fp string) string {
	formatted := trust.FormatFingerprint(fp)
	if len(formatted) <= 23 {
		return formatted
	}
	return formatted[:23] + "…"
}

func formatExpiry(notAfter time.Time) string {
	if notAfter.IsZero() {
		return "-"
	}
	date := notAfter.Format(time.DateOnly)
	if notAfter.Before(time.Now()) {
		return date + " (expired)"
	}
	return date + " (" + strconv.Itoa(int(time.Until(notAfter).Hours()/24)) + "d)"
}
