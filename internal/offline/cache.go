package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/five82/remora/internal/clock"
	"github.com/five82/remora/internal/domain"
	"github.com/five82/remora/internal/logging"
)

// Options configure a Cache.
type Options struct {
	Backend Backend
	// TTL bounds the age of a section returned by Load. Zero disables expiry.
	TTL time.Duration
	// MaxBytes bounds the encoded envelope. Zero disables the check.
	MaxBytes int
	Clock    clock.Clock
	Logger   *slog.Logger
}

// Cache is the offline snapshot store. Operations on one server serialize;
// different servers proceed independently.
type Cache struct {
	backend  Backend
	ttl      time.Duration
	maxBytes int
	clock    clock.Clock
	logger   *slog.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New builds a Cache. A nil Backend falls back to memory.
func New(opts Options) *Cache {
	backend := opts.Backend
	if backend == nil {
		backend = NewMemoryBackend()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	return &Cache{
		backend:  backend,
		ttl:      opts.TTL,
		maxBytes: opts.MaxBytes,
		clock:    clk,
		logger:   logging.NewComponentLogger(opts.Logger, "offline"),
		locks:    make(map[string]*sync.Mutex),
	}
}

func (c *Cache) lock(serverID string) func() {
	c.locksMu.Lock()
	mu, ok := c.locks[serverID]
	if !ok {
		mu = &sync.Mutex{}
		c.locks[serverID] = mu
	}
	c.locksMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

func validateKey(key Key) error {
	if strings.TrimSpace(key.ServerID) == "" {
		return errors.New("cache key: server id is empty")
	}
	if strings.TrimSpace(key.Fingerprint) == "" {
		return errors.New("cache key: fingerprint is empty")
	}
	return nil
}

// Load returns the fresh sections stored under key, or nil when there are
// none. Entries under other fingerprints for the same server are destroyed.
func (c *Cache) Load(ctx context.Context, key Key) (*Snapshot, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	unlock := c.lock(key.ServerID)
	defer unlock()

	if err := c.purgeOtherFingerprints(ctx, key); err != nil {
		return nil, err
	}
	envelope, ok, err := c.read(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	if !rpcVersionMatches(key, envelope.Key) {
		c.logger.Debug("offline cache rpc version mismatch", slog.String(logging.FieldServer, key.ServerID))
		return nil, c.backend.Delete(ctx, key.ServerID, key.Fingerprint)
	}

	snapshot := c.fresh(envelope.Snapshot)
	if snapshot.IsEmpty() {
		c.logger.Debug("offline cache expired", slog.String(logging.FieldServer, key.ServerID))
		return nil, c.backend.Delete(ctx, key.ServerID, key.Fingerprint)
	}
	return &snapshot, nil
}

// UpdateTorrents stores torrents under key and returns the resulting
// snapshot.
func (c *Cache) UpdateTorrents(ctx context.Context, key Key, torrents []domain.Torrent) (Snapshot, error) {
	return c.update(ctx, key, func(s *Snapshot, now time.Time) {
		s.Torrents = &TorrentsSection{Torrents: append([]domain.Torrent(nil), torrents...), UpdatedAt: now}
	})
}

// UpdateSession stores session under key and returns the resulting snapshot.
func (c *Cache) UpdateSession(ctx context.Context, key Key, session domain.SessionState) (Snapshot, error) {
	return c.update(ctx, key, func(s *Snapshot, now time.Time) {
		s.Session = &SessionSection{Session: session, UpdatedAt: now}
	})
}

// Clear removes the entry stored under key.
func (c *Cache) Clear(ctx context.Context, key Key) error {
	if err := validateKey(key); err != nil {
		return err
	}
	unlock := c.lock(key.ServerID)
	defer unlock()
	return c.backend.Delete(ctx, key.ServerID, key.Fingerprint)
}

// ClearServer removes every entry stored for serverID.
func (c *Cache) ClearServer(ctx context.Context, serverID string) error {
	unlock := c.lock(serverID)
	defer unlock()
	fingerprints, err := c.backend.Fingerprints(ctx, serverID)
	if err != nil {
		return err
	}
	for _, fingerprint := range fingerprints {
		if err := c.backend.Delete(ctx, serverID, fingerprint); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) update(ctx context.Context, key Key, apply func(*Snapshot, time.Time)) (Snapshot, error) {
	if err := validateKey(key); err != nil {
		return Snapshot{}, err
	}
	unlock := c.lock(key.ServerID)
	defer unlock()

	if err := c.purgeOtherFingerprints(ctx, key); err != nil {
		return Snapshot{}, err
	}

	var snapshot Snapshot
	existing, ok, err := c.read(ctx, key)
	if err != nil {
		return Snapshot{}, err
	}
	if ok && sameRPCVersion(key.RPCVersion, existing.Key.RPCVersion) {
		snapshot = c.fresh(existing.Snapshot)
	}
	apply(&snapshot, c.clock.Now().UTC())

	data, err := json.Marshal(Envelope{Key: key, Snapshot: snapshot})
	if err != nil {
		return Snapshot{}, fmt.Errorf("encode cache envelope: %w", err)
	}
	if c.maxBytes > 0 && len(data) > c.maxBytes {
		return Snapshot{}, &SizeLimitError{Bytes: len(data), Limit: c.maxBytes}
	}
	if err := c.backend.Write(ctx, key.ServerID, key.Fingerprint, data); err != nil {
		return Snapshot{}, err
	}
	return snapshot, nil
}

// read decodes the stored envelope. Undecodable or mismatched entries are
// destroyed and reported as absent.
func (c *Cache) read(ctx context.Context, key Key) (Envelope, bool, error) {
	data, ok, err := c.backend.Read(ctx, key.ServerID, key.Fingerprint)
	if err != nil || !ok {
		return Envelope{}, false, err
	}
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		logging.WarnWithContext(c.logger, "offline cache entry unreadable",
			"offline_cache_corrupt",
			"the entry will be rebuilt on the next refresh",
			"cached data discarded",
			slog.String(logging.FieldServer, key.ServerID),
			logging.Error(err))
		return Envelope{}, false, c.backend.Delete(ctx, key.ServerID, key.Fingerprint)
	}
	if envelope.Key.ServerID != key.ServerID || envelope.Key.Fingerprint != key.Fingerprint {
		return Envelope{}, false, c.backend.Delete(ctx, key.ServerID, key.Fingerprint)
	}
	return envelope, true, nil
}

func (c *Cache) purgeOtherFingerprints(ctx context.Context, key Key) error {
	fingerprints, err := c.backend.Fingerprints(ctx, key.ServerID)
	if err != nil {
		return err
	}
	for _, fingerprint := range fingerprints {
		if fingerprint == key.Fingerprint {
			continue
		}
		c.logger.Debug("offline cache fingerprint changed, discarding entry",
			slog.String(logging.FieldServer, key.ServerID))
		if err := c.backend.Delete(ctx, key.ServerID, fingerprint); err != nil {
			return err
		}
	}
	return nil
}

// fresh drops sections older than the TTL.
func (c *Cache) fresh(snapshot Snapshot) Snapshot {
	if c.ttl <= 0 {
		return snapshot
	}
	now := c.clock.Now()
	if snapshot.Torrents != nil && now.Sub(snapshot.Torrents.UpdatedAt) > c.ttl {
		snapshot.Torrents = nil
	}
	if snapshot.Session != nil && now.Sub(snapshot.Session.UpdatedAt) > c.ttl {
		snapshot.Session = nil
	}
	return snapshot
}

// rpcVersionMatches applies the caller's version constraint, if any.
func rpcVersionMatches(requested, stored Key) bool {
	if requested.RPCVersion == nil {
		return true
	}
	return stored.RPCVersion != nil && *stored.RPCVersion == *requested.RPCVersion
}

func sameRPCVersion(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
