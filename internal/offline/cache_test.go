package offline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/five82/remora/internal/clock"
	"github.com/five82/remora/internal/domain"
)

var cacheStart = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

func newTestCache(t *testing.T, backend Backend, ttl time.Duration, maxBytes int) (*Cache, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(cacheStart)
	return New(Options{Backend: backend, TTL: ttl, MaxBytes: maxBytes, Clock: fake}), fake
}

func sampleTorrents() []domain.Torrent {
	return []domain.Torrent{
		{ID: 1, Name: "ubuntu.iso", Status: domain.StatusSeeding, Summary: domain.TorrentSummary{Progress: 1}},
		{ID: 2, Name: "arch.iso", Status: domain.StatusDownloading, Summary: domain.TorrentSummary{Progress: 0.25}},
	}
}

func testKey(fingerprint string) Key {
	return Key{ServerID: "home", Fingerprint: fingerprint}
}

func TestLoad_RespectsTTL(t *testing.T) {
	cache, fake := newTestCache(t, nil, 5*time.Second, 0)
	ctx := context.Background()
	key := testKey("fp")

	if _, err := cache.UpdateTorrents(ctx, key, sampleTorrents()); err != nil {
		t.Fatalf("UpdateTorrents returned error: %v", err)
	}

	fake.Advance(4 * time.Second)
	snapshot, err := cache.Load(ctx, key)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if snapshot == nil || snapshot.Torrents == nil || len(snapshot.Torrents.Torrents) != 2 {
		t.Fatalf("Load at t=4s = %+v, want two torrents", snapshot)
	}

	fake.Advance(2 * time.Second)
	snapshot, err = cache.Load(ctx, key)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if snapshot != nil {
		t.Fatalf("Load at t=6s = %+v, want nil", snapshot)
	}
}

func TestLoad_SectionsExpireIndependently(t *testing.T) {
	cache, fake := newTestCache(t, nil, 10*time.Second, 0)
	ctx := context.Background()
	key := testKey("fp")

	if _, err := cache.UpdateTorrents(ctx, key, sampleTorrents()); err != nil {
		t.Fatalf("UpdateTorrents returned error: %v", err)
	}
	fake.Advance(8 * time.Second)
	snapshot, err := cache.UpdateSession(ctx, key, domain.SessionState{DownloadDir: "/data"})
	if err != nil {
		t.Fatalf("UpdateSession returned error: %v", err)
	}
	if snapshot.Torrents == nil || snapshot.Session == nil {
		t.Fatalf("snapshot = %+v, want both sections", snapshot)
	}
	if !snapshot.LatestUpdatedAt().Equal(cacheStart.Add(8 * time.Second)) {
		t.Fatalf("LatestUpdatedAt = %v", snapshot.LatestUpdatedAt())
	}

	fake.Advance(4 * time.Second)
	loaded, err := cache.Load(ctx, key)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if loaded == nil || loaded.Torrents != nil || loaded.Session == nil {
		t.Fatalf("Load = %+v, want session only", loaded)
	}
	if loaded.Session.Session.DownloadDir != "/data" {
		t.Fatalf("DownloadDir = %q", loaded.Session.Session.DownloadDir)
	}
}

func TestLoad_FingerprintChangeInvalidates(t *testing.T) {
	backend := NewMemoryBackend()
	cache, _ := newTestCache(t, backend, time.Hour, 0)
	ctx := context.Background()

	if _, err := cache.UpdateTorrents(ctx, testKey("old"), sampleTorrents()); err != nil {
		t.Fatalf("UpdateTorrents returned error: %v", err)
	}
	snapshot, err := cache.Load(ctx, testKey("new"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if snapshot != nil {
		t.Fatalf("Load with new fingerprint = %+v, want nil", snapshot)
	}
	if snapshot, _ := cache.Load(ctx, testKey("old")); snapshot != nil {
		t.Fatalf("old fingerprint still readable: %+v", snapshot)
	}
	if fps, _ := backend.Fingerprints(ctx, "home"); len(fps) != 0 {
		t.Fatalf("fingerprints = %v, want none", fps)
	}
}

func TestLoad_RPCVersionMustMatchWhenGiven(t *testing.T) {
	cache, _ := newTestCache(t, nil, time.Hour, 0)
	ctx := context.Background()
	key := testKey("fp").WithRPCVersion(17)

	if _, err := cache.UpdateTorrents(ctx, key, sampleTorrents()); err != nil {
		t.Fatalf("UpdateTorrents returned error: %v", err)
	}
	if snapshot, _ := cache.Load(ctx, testKey("fp")); snapshot == nil {
		t.Fatal("Load without version = nil, want hit")
	}
	if snapshot, _ := cache.Load(ctx, testKey("fp").WithRPCVersion(18)); snapshot != nil {
		t.Fatalf("Load with other version = %+v, want nil", snapshot)
	}
}

func TestUpdate_SizeLimit(t *testing.T) {
	cache, _ := newTestCache(t, nil, time.Hour, 256)
	ctx := context.Background()

	torrents := make([]domain.Torrent, 20)
	for i := range torrents {
		torrents[i] = domain.Torrent{ID: i, Name: strings.Repeat("x", 40)}
	}
	_, err := cache.UpdateTorrents(ctx, testKey("fp"), torrents)
	if !errors.Is(err, ErrExceedsSizeLimit) {
		t.Fatalf("error = %v, want ErrExceedsSizeLimit", err)
	}
	var sizeErr *SizeLimitError
	if !errors.As(err, &sizeErr) || sizeErr.Limit != 256 || sizeErr.Bytes <= 256 {
		t.Fatalf("SizeLimitError = %+v", sizeErr)
	}
	if snapshot, _ := cache.Load(ctx, testKey("fp")); snapshot != nil {
		t.Fatalf("oversized write was stored: %+v", snapshot)
	}
}

func TestClear(t *testing.T) {
	cache, _ := newTestCache(t, nil, time.Hour, 0)
	ctx := context.Background()
	key := testKey("fp")

	if _, err := cache.UpdateSession(ctx, key, domain.SessionState{}); err != nil {
		t.Fatalf("UpdateSession returned error: %v", err)
	}
	if err := cache.Clear(ctx, key); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	if snapshot, _ := cache.Load(ctx, key); snapshot != nil {
		t.Fatalf("Load after Clear = %+v, want nil", snapshot)
	}
}

func TestCache_ConcurrentServers(t *testing.T) {
	cache, _ := newTestCache(t, nil, time.Hour, 0)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, server := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(server string) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				if _, err := cache.UpdateTorrents(ctx, Key{ServerID: server, Fingerprint: "fp"}, sampleTorrents()); err != nil {
					t.Errorf("UpdateTorrents(%s) returned error: %v", server, err)
					return
				}
			}
		}(server)
	}
	wg.Wait()
	for _, server := range []string{"a", "b", "c", "d"} {
		if snapshot, _ := cache.Load(ctx, Key{ServerID: server, Fingerprint: "fp"}); snapshot == nil {
			t.Fatalf("server %s has no snapshot", server)
		}
	}
}

func TestFileBackend_PersistsEnvelopes(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFileBackend(dir)
	if err != nil {
		t.Fatalf("NewFileBackend returned error: %v", err)
	}
	cache, _ := newTestCache(t, backend, time.Hour, 0)
	ctx := context.Background()
	key := Key{ServerID: "home/nas", Fingerprint: "abc"}

	if _, err := cache.UpdateTorrents(ctx, key, sampleTorrents()); err != nil {
		t.Fatalf("UpdateTorrents returned error: %v", err)
	}

	path := filepath.Join(backend.serverDir("home/nas"), "abc.json")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("envelope file missing: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode = %v, want 0600", info.Mode().Perm())
	}

	reopened, _ := newTestCache(t, backend, time.Hour, 0)
	snapshot, err := reopened.Load(ctx, key)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if snapshot == nil || snapshot.Torrents == nil || snapshot.Torrents.Torrents[0].Name != "ubuntu.iso" {
		t.Fatalf("Load = %+v", snapshot)
	}

	if _, err := cache.UpdateTorrents(ctx, Key{ServerID: "home/nas", Fingerprint: "def"}, nil); err != nil {
		t.Fatalf("UpdateTorrents returned error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("old envelope still present after fingerprint change: %v", err)
	}
}

func TestFileBackend_ServerDirStaysInsideCacheDir(t *testing.T) {
	root := t.TempDir()
	settings := filepath.Join(root, "settings.json")
	if err := os.WriteFile(settings, []byte("{}"), 0o600); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	backend, err := NewFileBackend(filepath.Join(root, "cache"))
	if err != nil {
		t.Fatalf("NewFileBackend returned error: %v", err)
	}
	cache, _ := newTestCache(t, backend, time.Hour, 0)
	ctx := context.Background()

	for _, id := range []string{"..", ".", "../..", "a/../.."} {
		if _, err := cache.UpdateTorrents(ctx, Key{ServerID: id, Fingerprint: "abc"}, sampleTorrents()); err != nil {
			t.Fatalf("UpdateTorrents(%q) returned error: %v", id, err)
		}
		if _, err := cache.Load(ctx, Key{ServerID: id, Fingerprint: "def"}); err != nil {
			t.Fatalf("Load(%q) returned error: %v", id, err)
		}
		dir := backend.serverDir(id)
		if filepath.Dir(dir) != backend.Dir() {
			t.Fatalf("serverDir(%q) = %q, want a child of %q", id, dir, backend.Dir())
		}
	}
	if _, err := os.Stat(settings); err != nil {
		t.Fatalf("file outside the cache dir was touched: %v", err)
	}
}

func TestFileBackend_LockFilesDoNotAccumulate(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFileBackend(dir)
	if err != nil {
		t.Fatalf("NewFileBackend returned error: %v", err)
	}
	cache, _ := newTestCache(t, backend, time.Hour, 0)
	ctx := context.Background()

	for _, fingerprint := range []string{"one", "two", "three"} {
		key := Key{ServerID: "nas", Fingerprint: fingerprint}
		if _, err := cache.Load(ctx, key); err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if _, err := cache.UpdateTorrents(ctx, key, sampleTorrents()); err != nil {
			t.Fatalf("UpdateTorrents returned error: %v", err)
		}
	}

	entries, err := os.ReadDir(backend.serverDir("nas"))
	if err != nil {
		t.Fatalf("ReadDir returned error: %v", err)
	}
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	if len(names) != 2 || names[0] != lockName || names[1] != "three.json" {
		t.Fatalf("server dir = %v, want [%s three.json]", names, lockName)
	}
}

func TestFileBackend_CorruptEntryIsDiscarded(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFileBackend(dir)
	if err != nil {
		t.Fatalf("NewFileBackend returned error: %v", err)
	}
	ctx := context.Background()
	if err := backend.Write(ctx, "home", "fp", []byte("{not json")); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	cache, _ := newTestCache(t, backend, time.Hour, 0)
	snapshot, err := cache.Load(ctx, testKey("fp"))
	if err != nil || snapshot != nil {
		t.Fatalf("Load = %+v, %v; want nil, nil", snapshot, err)
	}
	if _, ok, _ := backend.Read(ctx, "home", "fp"); ok {
		t.Fatal("corrupt entry still present")
	}
}

func TestFingerprint_Normalization(t *testing.T) {
	record := domain.ServerRecord{Host: "SeedBox.LAN", Port: 9091, Username: "Alice", IsSecure: true}
	lower := domain.ServerRecord{Host: "seedbox.lan", Port: 9091, Username: "alice", IsSecure: true, Path: domain.DefaultRPCPath}

	if Fingerprint(record, "pw") != Fingerprint(lower, "pw") {
		t.Fatal("fingerprint is case-sensitive for host/username")
	}
	if Fingerprint(record, "pw") == Fingerprint(record, "PW") {
		t.Fatal("fingerprint ignores password case")
	}
	plain := lower
	plain.IsSecure = false
	if Fingerprint(plain, "pw") == Fingerprint(lower, "pw") {
		t.Fatal("fingerprint ignores scheme")
	}
	if len(Fingerprint(record, "")) != 64 {
		t.Fatalf("fingerprint length = %d, want 64", len(Fingerprint(record, "")))
	}
}
