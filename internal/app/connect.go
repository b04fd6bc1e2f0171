package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/five82/remora/internal/config"
	"github.com/five82/remora/internal/credentials"
	"github.com/five82/remora/internal/domain"
	"github.com/five82/remora/internal/logging"
	"github.com/five82/remora/internal/mapper"
	"github.com/five82/remora/internal/offline"
	"github.com/five82/remora/internal/repository"
	"github.com/five82/remora/internal/transmission"
	"github.com/five82/remora/internal/trust"
)

// Deps are the collaborators Connect cannot build from the config alone.
type Deps struct {
	// Credentials supplies the daemon password. Nil means no password.
	Credentials credentials.Store
	// Decider answers certificate prompts. Nil refuses every untrusted
	// certificate that is not already pinned.
	Decider trust.Decider
	// TrustStore overrides the SQLite pin database.
	TrustStore trust.Store
	// CacheBackend overrides the on-disk offline cache.
	CacheBackend offline.Backend
	// HTTPClient overrides the TLS-aware client built from the config.
	HTTPClient transmission.Doer
	Logger     *slog.Logger
}

// Connection bundles everything needed to talk to one daemon.
type Connection struct {
	Server    domain.ServerConfig
	Client    *transmission.Client
	Evaluator *trust.Evaluator
	Cache     *offline.Cache

	logger  *slog.Logger
	closers []io.Closer

	mu        sync.RWMutex
	key       offline.Key
	handshake *transmission.Handshake
	torrents  *repository.TorrentRepository
	session   *repository.SessionRepository
}

// Connect resolves serverID from cfg and wires transport, trust, cache and
// repositories. It does not contact the daemon.
func Connect(ctx context.Context, cfg config.Config, serverID string, deps Deps) (*Connection, error) {
	entry, err := cfg.Server(serverID)
	if err != nil {
		return nil, err
	}
	record := entry.Record()
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.With(slog.String(logging.FieldServer, record.ID))

	creds, err := credentials.Lookup(ctx, deps.Credentials, record)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	server, err := mapper.MapServerConfig(record, creds)
	if err != nil {
		return nil, fmt.Errorf("server %s: %w", record.ID, err)
	}

	conn := &Connection{Server: server, logger: logger}
	ok := false
	defer func() {
		if !ok {
			_ = conn.Close()
		}
	}()

	store := deps.TrustStore
	if store == nil {
		sqlite, err := trust.OpenSQLiteStore(cfg.Trust.DBPath)
		if err != nil {
			return nil, err
		}
		conn.closers = append(conn.closers, sqlite)
		store = sqlite
	}
	conn.Evaluator = trust.NewEvaluator(trust.Options{Store: store, Decider: deps.Decider, Logger: logger})

	identity, err := transmission.IdentityForEndpoint(server.Endpoint())
	if err != nil {
		return nil, err
	}
	username, password := "", ""
	if creds != nil {
		username, password = creds.Key.Username, creds.Password
	}
	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = transmission.NewHTTPClient(transmission.HTTPOptions{
			Timeout:        cfg.RPC.Timeout(),
			Evaluator:      conn.Evaluator,
			Identity:       identity,
			AllowUntrusted: server.Security.AllowUntrustedCertificates,
		})
	}
	maxRetries := cfg.RPC.MaxRetries
	if maxRetries == 0 {
		maxRetries = -1
	}
	conn.Client, err = transmission.New(transmission.Config{
		Endpoint:       server.Endpoint(),
		Username:       username,
		Password:       password,
		HTTPClient:     httpClient,
		Logger:         logger,
		MaxRetries:     maxRetries,
		RetryBaseDelay: cfg.RPC.RetryBaseDelay(),
		RetryMaxDelay:  cfg.RPC.RetryMaxDelay(),
		Trust:          conn.Evaluator,
	})
	if err != nil {
		return nil, err
	}

	backend := deps.CacheBackend
	if backend == nil {
		files, err := offline.NewFileBackend(cfg.Cache.Dir)
		if err != nil {
			return nil, err
		}
		backend = files
	}
	conn.Cache = offline.New(offline.Options{
		Backend:  backend,
		TTL:      cfg.Cache.TTL(),
		MaxBytes: cfg.Cache.MaxBytes,
		Logger:   logger,
	})
	conn.bind(offline.Key{ServerID: record.ID, Fingerprint: offline.Fingerprint(record, password)})

	ok = true
	return conn, nil
}

func (c *Connection) bind(key offline.Key) {
	opts := repository.Options{RPC: c.Client, Cache: c.Cache, Key: key, Logger: c.logger}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = key
	c.torrents = repository.NewTorrentRepository(opts)
	c.session = repository.NewSessionRepository(opts, c.Client)
}

// Handshake negotiates the protocol version and ties later cache writes to
// it.
func (c *Connection) Handshake(ctx context.Context) (transmission.Handshake, error) {
	handshake, err := c.Sessions().Handshake(ctx)
	if err != nil {
		return handshake, err
	}
	c.mu.RLock()
	key := c.key
	c.mu.RUnlock()
	c.bind(key.WithRPCVersion(handshake.RPCVersion))

	c.mu.Lock()
	c.handshake = &handshake
	c.mu.Unlock()
	c.logger.Info("connected",
		slog.Int("rpc_version", handshake.RPCVersion),
		slog.String("server_version", handshake.ServerVersion),
	)
	return handshake, nil
}

// EnsureHandshake performs the handshake once. A failed attempt is retried on
// the next call.
func (c *Connection) EnsureHandshake(ctx context.Context) error {
	c.mu.RLock()
	done := c.handshake != nil
	c.mu.RUnlock()
	if done {
		return nil
	}
	_, err := c.Handshake(ctx)
	return err
}

func (c *Connection) Torrents() *repository.TorrentRepository {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.torrents
}

func (c *Connection) Sessions() *repository.SessionRepository {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// FetchList and FetchState let a Connection feed the poller. Both handshake
// first if that has not succeeded yet.
func (c *Connection) FetchList(ctx context.Context) ([]domain.Torrent, error) {
	if err := c.EnsureHandshake(ctx); err != nil {
		return nil, err
	}
	return c.Torrents().FetchList(ctx)
}

func (c *Connection) FetchState(ctx context.Context) (domain.SessionState, error) {
	if err := c.EnsureHandshake(ctx); err != nil {
		return domain.SessionState{}, err
	}
	return c.Sessions().FetchState(ctx)
}

func (c *Connection) Start(ctx context.Context, ids []int) error {
	return c.Torrents().Start(ctx, ids)
}

func (c *Connection) Stop(ctx context.Context, ids []int) error {
	return c.Torrents().Stop(ctx, ids)
}

func (c *Connection) Verify(ctx context.Context, ids []int) error {
	return c.Torrents().Verify(ctx, ids)
}

// CachedSnapshot returns what the offline cache holds for this server.
func (c *Connection) CachedSnapshot(ctx context.Context) (*offline.Snapshot, error) {
	c.mu.RLock()
	key := c.key
	c.mu.RUnlock()
	key.RPCVersion = nil
	return c.Cache.Load(ctx, key)
}

// Close releases the trust database.
func (c *Connection) Close() error {
	var errs []error
	for _, closer := range c.closers {
		errs = append(errs, closer.Close())
	}
	c.closers = nil
	return errors.Join(errs...)
}
