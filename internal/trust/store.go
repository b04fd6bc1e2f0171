package trust

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists pinned fingerprints keyed by connection identity.
type Store interface {
	Lookup(ctx context.Context, identity Identity) (Pin, bool, error)
	Save(ctx context.Context, pin Pin) error
	Remove(ctx context.Context, identity Identity) error
	List(ctx context.Context) ([]Pin, error)
}

// MemoryStore keeps pins in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	pins map[Identity]Pin
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pins: make(map[Identity]Pin)}
}

func (s *MemoryStore) Lookup(_ context.Context, identity Identity) (Pin, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pin, ok := s.pins[identity.Normalized()]
	return pin, ok, nil
}

func (s *MemoryStore) Save(_ context.Context, pin Pin) error {
	pin.Identity = pin.Identity.Normalized()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pins[pin.Identity] = pin
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, identity Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pins, identity.Normalized())
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]Pin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pins := make([]Pin, 0, len(s.pins))
	for _, pin := range s.pins {
		pins = append(pins, pin)
	}
	sortPins(pins)
	return pins, nil
}

func sortPins(pins []Pin) {
	sort.Slice(pins, func(i, j int) bool {
		return pins[i].Identity.String() < pins[j].Identity.String()
	})
}

const pinSchema = `
CREATE TABLE IF NOT EXISTS pins (
	host        TEXT    NOT NULL,
	port        INTEGER NOT NULL,
	secure      INTEGER NOT NULL,
	fingerprint TEXT    NOT NULL,
	subject     TEXT    NOT NULL DEFAULT '',
	issuer      TEXT    NOT NULL DEFAULT '',
	not_after   TEXT    NOT NULL DEFAULT '',
	pinned_at   TEXT    NOT NULL,
	PRIMARY KEY (host, port, secure)
)`

// SQLiteStore persists pins in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLiteStore opens (creating if needed) the pin database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure trust store directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open trust store: %w", err)
	}
	for _, stmt := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout = 5000", pinSchema} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init trust store: %w", err)
		}
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Lookup(ctx context.Context, identity Identity) (Pin, bool, error) {
	identity = identity.Normalized()
	row := s.db.QueryRowContext(ctx,
		`SELECT fingerprint, subject, issuer, not_after, pinned_at FROM pins WHERE host = ? AND port = ? AND secure = ?`,
		identity.Host, identity.Port, boolToInt(identity.IsSecure))
	pin := Pin{Identity: identity}
	var notAfter, pinnedAt string
	if err := row.Scan(&pin.Fingerprint, &pin.Subject, &pin.Issuer, &notAfter, &pinnedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Pin{}, false, nil
		}
		return Pin{}, false, fmt.Errorf("query pin: %w", err)
	}
	pin.NotAfter = parseStoredTime(notAfter)
	pin.PinnedAt = parseStoredTime(pinnedAt)
	return pin, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, pin Pin) error {
	pin.Identity = pin.Identity.Normalized()
	if pin.Fingerprint == "" {
		return errors.New("pin fingerprint is empty")
	}
	if pin.PinnedAt.IsZero() {
		pin.PinnedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO pins (host, port, secure, fingerprint, subject, issuer, not_after, pinned_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (host, port, secure) DO UPDATE SET
	fingerprint = excluded.fingerprint,
	subject = excluded.subject,
	issuer = excluded.issuer,
	not_after = excluded.not_after,
	pinned_at = excluded.pinned_at`,
		pin.Identity.Host, pin.Identity.Port, boolToInt(pin.Identity.IsSecure),
		pin.Fingerprint, pin.Subject, pin.Issuer, formatStoredTime(pin.NotAfter), formatStoredTime(pin.PinnedAt))
	if err != nil {
		return fmt.Errorf("save pin: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, identity Identity) error {
	identity = identity.Normalized()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pins WHERE host = ? AND port = ? AND secure = ?`,
		identity.Host, identity.Port, boolToInt(identity.IsSecure)); err != nil {
		return fmt.Errorf("remove pin: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Pin, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT host, port, secure, fingerprint, subject, issuer, not_after, pinned_at FROM pins`)
	if err != nil {
		return nil, fmt.Errorf("list pins: %w", err)
	}
	defer rows.Close()

	var pins []Pin
	for rows.Next() {
		var pin Pin
		var secure int
		var notAfter, pinnedAt string
		if err := rows.Scan(&pin.Identity.Host, &pin.Identity.Port, &secure, &pin.Fingerprint, &pin.Subject, &pin.Issuer, &notAfter, &pinnedAt); err != nil {
			return nil, fmt.Errorf("scan pin: %w", err)
		}
		pin.Identity.IsSecure = secure != 0
		pin.NotAfter = parseStoredTime(notAfter)
		pin.PinnedAt = parseStoredTime(pinnedAt)
		pins = append(pins, pin)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pins: %w", err)
	}
	sortPins(pins)
	return pins, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatStoredTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseStoredTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
