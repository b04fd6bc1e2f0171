package offline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// Backend stores encoded envelopes addressed by server id and fingerprint.
type Backend interface {
	Read(ctx context.Context, serverID, fingerprint string) ([]byte, bool, error)
	Write(ctx context.Context, serverID, fingerprint string, data []byte) error
	Delete(ctx context.Context, serverID, fingerprint string) error
	// Fingerprints lists the fingerprints stored for serverID.
	Fingerprints(ctx context.Context, serverID string) ([]string, error)
}

// MemoryBackend keeps envelopes in memory.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]map[string][]byte)}
}

func (b *MemoryBackend) Read(_ context.Context, serverID, fingerprint string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.entries[serverID][fingerprint]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

func (b *MemoryBackend) Write(_ context.Context, serverID, fingerprint string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.entries[serverID] == nil {
		b.entries[serverID] = make(map[string][]byte)
	}
	b.entries[serverID][fingerprint] = append([]byte(nil), data...)
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, serverID, fingerprint string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries[serverID], fingerprint)
	if len(b.entries[serverID]) == 0 {
		delete(b.entries, serverID)
	}
	return nil
}

func (b *MemoryBackend) Fingerprints(_ context.Context, serverID string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.entries[serverID]))
	for fingerprint := range b.entries[serverID] {
		out = append(out, fingerprint)
	}
	sort.Strings(out)
	return out, nil
}

const (
	envelopeExt   = ".json"
	lockName      = ".lock"
	lockRetryWait = 25 * time.Millisecond
)

// FileBackend stores one JSON file per envelope under
// <dir>/<server dir>/<fingerprint>.json, where the server dir is derived
// from a SHA-256 of the server id and never leaves dir. Each operation holds
// the server dir's advisory lock so separate remora processes do not
// interleave writes.
type FileBackend struct {
	dir string
}

// NewFileBackend creates dir if needed.
func NewFileBackend(dir string) (*FileBackend, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("cache directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

// Dir exposes the backing directory.
func (b *FileBackend) Dir() string {
	return b.dir
}

func (b *FileBackend) serverDir(serverID string) string {
	sum := sha256.Sum256([]byte(serverID))
	return filepath.Join(b.dir, hex.EncodeToString(sum[:16]))
}

func (b *FileBackend) envelopePath(serverID, fingerprint string) string {
	return filepath.Join(b.serverDir(serverID), url.PathEscape(fingerprint)+envelopeExt)
}

// withLock holds one lock file per server dir, so rotating fingerprints do
// not leave lock files behind.
func (b *FileBackend) withLock(ctx context.Context, serverID string, fn func() error) error {
	dir := b.serverDir(serverID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure cache dir: %w", err)
	}
	lock := flock.New(filepath.Join(dir, lockName))
	ok, err := lock.TryLockContext(ctx, lockRetryWait)
	if err != nil {
		return fmt.Errorf("lock cache entry: %w", err)
	}
	if !ok {
		return fmt.Errorf("lock cache dir %s: not acquired", dir)
	}
	defer func() { _ = lock.Unlock() }()
	return fn()
}

func (b *FileBackend) Read(ctx context.Context, serverID, fingerprint string) ([]byte, bool, error) {
	path := b.envelopePath(serverID, fingerprint)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	var data []byte
	err := b.withLock(ctx, serverID, func() error {
		var readErr error
		data, readErr = os.ReadFile(path)
		return readErr
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}
	return data, true, nil
}

func (b *FileBackend) Write(ctx context.Context, serverID, fingerprint string, data []byte) error {
	path := b.envelopePath(serverID, fingerprint)
	return b.withLock(ctx, serverID, func() error {
		return writeFileAtomic(path, data, 0o600)
	})
}

func (b *FileBackend) Delete(ctx context.Context, serverID, fingerprint string) error {
	path := b.envelopePath(serverID, fingerprint)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	err := b.withLock(ctx, serverID, func() error {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

func (b *FileBackend) Fingerprints(_ context.Context, serverID string) ([]string, error) {
	entries, err := os.ReadDir(b.serverDir(serverID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list cache entries: %w", err)
	}
	var out []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, envelopeExt) {
			continue
		}
		fingerprint, err := url.PathUnescape(strings.TrimSuffix(name, envelopeExt))
		if err != nil {
			continue
		}
		out = append(out, fingerprint)
	}
	sort.Strings(out)
	return out, nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "envelope-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
