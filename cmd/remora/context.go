package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/five82/remora/internal/app"
	"github.com/five82/remora/internal/config"
	"github.com/five82/remora/internal/logging"
	"github.com/five82/remora/internal/transmission"
	"github.com/five82/remora/internal/trust"
)

// cliEnv replaces process-level collaborators in tests.
type cliEnv struct {
	httpClient transmission.Doer
	stdin      io.Reader
}

type commandContext struct {
	configFlag *string
	serverFlag *string
	env        cliEnv

	configOnce sync.Once
	config     config.Config
	configErr  error
}

func newCommandContext(configFlag, serverFlag *string, env cliEnv) *commandContext {
	if env.stdin == nil {
		env.stdin = os.Stdin
	}
	return &commandContext{
		configFlag: configFlag,
		serverFlag: serverFlag,
		env:        env,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) serverID() string {
	if c.serverFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.serverFlag)
}

func (c *commandContext) ensureConfig() (config.Config, error) {
	c.configOnce.Do(func() {
		c.config, c.configErr = config.Load(c.configPath())
	})
	return c.config, c.configErr
}

func (c *commandContext) openLogger(cfg config.Config) (*logging.Logger, error) {
	return logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Quiet:      true,
	})
}

// passphrasePrompt returns nil when stdin cannot be prompted on.
func (c *commandContext) passphrasePrompt(cmd *cobra.Command) app.PassphraseFunc {
	if !isTerminal(c.env.stdin) {
		return nil
	}
	return func() (string, error) {
		return readSecret(c.env.stdin, cmd.ErrOrStderr(), "Vault passphrase: ")
	}
}

// decider prompts on the terminal. Without one, unpinned certificates are
// refused.
func (c *commandContext) decider(cmd *cobra.Command) trust.Decider {
	if !isTerminal(c.env.stdin) {
		return nil
	}
	return newTerminalDecider(c.env.stdin, cmd.ErrOrStderr())
}

// withConnection connects to the selected server without contacting it.
func (c *commandContext) withConnection(cmd *cobra.Command, fn func(ctx context.Context, conn *app.Connection) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.openLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logger.Close()

	entry, err := cfg.Server(c.serverID())
	if err != nil {
		return err
	}
	deps := app.Deps{
		Decider:    c.decider(cmd),
		HTTPClient: c.env.httpClient,
		Logger:     logging.NewComponentLogger(logger.Logger, "cli"),
	}
	if entry.Username != "" {
		vault, err := app.OpenCredentials(cfg.Credentials, c.passphrasePrompt(cmd))
		switch {
		case errors.Is(err, app.ErrNoPassphrase):
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s is unset; connecting without a password\n", cfg.Credentials.PassphraseEnv)
		case err != nil:
			return fmt.Errorf("open credentials: %w", err)
		default:
			defer vault.Close()
			deps.Credentials = vault
		}
	}

	ctx := cmd.Context()
	conn, err := app.Connect(ctx, cfg, entry.ID, deps)
	if err != nil {
		return err
	}
	defer conn.Close()
	return describeError(conn.Server.Endpoint(), fn(ctx, conn))
}

// withReadyConnection also performs the handshake before fn runs.
func (c *commandContext) withReadyConnection(cmd *cobra.Command, fn func(ctx context.Context, conn *app.Connection) error) error {
	return c.withConnection(cmd, func(ctx context.Context, conn *app.Connection) error {
		if err := conn.EnsureHandshake(ctx); err != nil {
			return err
		}
		return fn(ctx, conn)
	})
}

func describeError(endpoint string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, transmission.ErrUnauthorized):
		return fmt.Errorf("%s rejected the credentials; run `remora login`: %w", endpoint, err)
	case errors.Is(err, transmission.ErrNetworkUnavailable):
		return fmt.Errorf("cannot reach %s: %w", endpoint, err)
	case errors.Is(err, trust.ErrUserDeclined):
		return fmt.Errorf("certificate for %s not trusted: %w", endpoint, err)
	default:
		return err
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
