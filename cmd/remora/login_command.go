package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/five82/remora/internal/app"
	"github.com/five82/remora/internal/domain"
)

func newLoginCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "login [server-id]",
		Short: "Store the daemon password in the encrypted vault",
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
			key, ok := entry.Record().CredentialsKey()
			if !ok {
				return fmt.Errorf("server %s has no username configured", entry.ID)
			}

			vault, err := app.OpenCredentials(cfg.Credentials, ctx.passphrasePrompt(cmd))
			if errors.Is(err, app.ErrNoPassphrase) {
				return fmt.Errorf("set %s or run from a terminal: %w", cfg.Credentials.PassphraseEnv, err)
			}
			if err != nil {
				return fmt.Errorf("open credentials: %w", err)
			}
			defer vault.Close()

			password, err := readSecret(ctx.env.stdin, cmd.ErrOrStderr(), fmt.Sprintf("Password for %s: ", key))
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			if password == "" {
				return errors.New("password is empty")
			}
			if err := vault.Save(cmd.Context(), domain.Credentials{Key: key, Password: password}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved credentials for %s\n", key)
			return nil
		},
	}
}
