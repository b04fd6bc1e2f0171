package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/five82/remora/internal/config"
	"github.com/five82/remora/internal/domain"
	"github.com/five82/remora/internal/logging"
	"github.com/five82/remora/internal/prefs"
	"github.com/five82/remora/internal/state"
	"github.com/five82/remora/internal/ui"
)

// Options configure the remora TUI.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/remora/prefs.toml
	ServerID   string // empty uses the last server, then default_server
	PollEvery  int    // seconds; zero uses rpc.poll_interval_seconds
	// Passphrase is asked for when the selected server has a username and
	// the passphrase environment variable is unset.
	Passphrase PassphraseFunc
}

// Run boots the remora TUI until the user quits or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}
	userPrefs, err := prefs.Load(prefsPath)
	if err != nil {
		return fmt.Errorf("load preferences: %w", err)
	}

	logger, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Quiet:      true,
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logger.Close()

	entry, err := cfg.Server(selectServer(cfg, opts.ServerID, userPrefs.LastServer))
	if err != nil {
		return err
	}

	prompter := ui.NewTrustPrompter()
	deps := Deps{Decider: prompter, Logger: logger.Logger}
	if entry.Username != "" {
		vault, err := OpenCredentials(cfg.Credentials, opts.Passphrase)
		switch {
		case errors.Is(err, ErrNoPassphrase):
			logger.Warn("connecting without a password", slog.String(logging.FieldServer, entry.ID), logging.Error(err))
		case err != nil:
			return fmt.Errorf("open credentials: %w", err)
		default:
			defer vault.Close()
			deps.Credentials = vault
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn, err := Connect(ctx, cfg, entry.ID, deps)
	if err != nil {
		return err
	}
	defer conn.Close()

	interval := cfg.RPC.PollInterval()
	if opts.PollEvery > 0 {
		interval = time.Duration(opts.PollEvery) * time.Second
	}

	store := &state.Store{}
	// The first fetch may raise a certificate prompt, so it runs alongside
	// the UI rather than before it.
	go func() {
		bootstrap(ctx, store, conn, logger.Logger)
		StartPoller(ctx, store, conn, interval, logger.Logger)
	}()

	name := conn.Server.Name
	if name == "" {
		name = conn.Server.Connection.Host
	}
	final, err := ui.Run(ui.Options{
		Context:    ctx,
		Store:      store,
		Actions:    conn,
		Refresh:    func(ctx context.Context) error { return refresh(ctx, store, conn, logger.Logger) },
		Prompter:   prompter,
		ServerName: name,
		PollTick:   time.Second,
		Prefs:      userPrefs,
		PrefsPath:  prefsPath,
		Logger:     logger.Logger,
	})
	cancel()

	final.LastServer = entry.ID
	if saveErr := prefs.Save(prefsPath, final); saveErr != nil {
		logger.Warn("save preferences failed", logging.Error(saveErr))
	}
	return err
}

// selectServer picks the explicit id, then the last used server when it is
// still configured. An empty result defers to default_server.
func selectServer(cfg config.Config, explicit, last string) string {
	if explicit != "" {
		return explicit
	}
	if last != "" {
		if _, err := cfg.Server(last); err == nil {
			return last
		}
	}
	return ""
}

// bootstrap runs the first refresh. When it fails the store is seeded from
// the offline cache so the UI has something to show.
func bootstrap(ctx context.Context, store *state.Store, conn *Connection, logger *slog.Logger) {
	if err := refresh(ctx, store, conn, logger); err == nil {
		return
	}
	seedFromCache(ctx, store, conn, logger)
}

func seedFromCache(ctx context.Context, store *state.Store, conn *Connection, logger *slog.Logger) bool {
	snapshot, err := conn.CachedSnapshot(ctx)
	if err != nil {
		logging.WarnWithContext(logger, "offline cache unreadable",
			"cache_read_failed",
			"delete the cache directory if this persists",
			"no cached torrents are shown while offline",
			logging.Error(err),
		)
		return false
	}
	if snapshot == nil || snapshot.IsEmpty() {
		return false
	}

	var torrents []domain.Torrent
	if snapshot.Torrents != nil {
		torrents = snapshot.Torrents.Torrents
	}
	var session *domain.SessionState
	if snapshot.Session != nil {
		s := snapshot.Session.Session
		session = &s
	}
	cachedAt := snapshot.LatestUpdatedAt()
	if !store.Seed(torrents, session, cachedAt) {
		return false
	}
	logger.Info("showing cached data",
		slog.Int("torrents", len(torrents)),
		slog.Time("cached_at", cachedAt),
	)
	return true
}
