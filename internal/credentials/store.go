// Package credentials stores daemon passwords keyed by host, port, scheme and
// username.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/five82/remora/internal/domain"
)

var (
	// ErrNotFound is returned when no password is stored for a key.
	ErrNotFound = errors.New("credentials not found")
	// ErrEmptyUsername rejects credentials that cannot be keyed.
	ErrEmptyUsername = errors.New("credentials username is empty")
)

// Store persists credentials.
type Store interface {
	Load(ctx context.Context, key domain.CredentialsKey) (domain.Credentials, error)
	Save(ctx context.Context, creds domain.Credentials) error
	Delete(ctx context.Context, key domain.CredentialsKey) error
}

func normalizeKey(key domain.CredentialsKey) domain.CredentialsKey {
	key.Host = strings.ToLower(strings.TrimSpace(key.Host))
	key.Username = strings.TrimSpace(key.Username)
	return key
}

func validate(creds domain.Credentials) (domain.Credentials, error) {
	creds.Key = normalizeKey(creds.Key)
	if creds.Key.Username == "" {
		return domain.Credentials{}, ErrEmptyUsername
	}
	if creds.Key.Host == "" {
		return domain.Credentials{}, fmt.Errorf("credentials for %q: host is empty", creds.Key.Username)
	}
	return creds, nil
}

// MemoryStore keeps credentials in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]domain.Credentials
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]domain.Credentials)}
}

func (s *MemoryStore) Load(_ context.Context, key domain.CredentialsKey) (domain.Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	creds, ok := s.entries[normalizeKey(key).String()]
	if !ok {
		return domain.Credentials{}, ErrNotFound
	}
	return creds, nil
}

func (s *MemoryStore) Save(_ context.Context, creds domain.Credentials) error {
	creds, err := validate(creds)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[creds.Key.String()] = creds
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key domain.CredentialsKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, normalizeKey(key).String())
	return nil
}

// Lookup loads the credentials for record. It returns nil when the record has
// no username or nothing is stored for it.
func Lookup(ctx context.Context, store Store, record domain.ServerRecord) (*domain.Credentials, error) {
	key, ok := record.CredentialsKey()
	if !ok || store == nil {
		return nil, nil
	}
	found, err := store.Load(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &found, nil
}
