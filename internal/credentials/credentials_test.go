package credentials

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/five82/remora/internal/domain"
)

// Cheap parameters keep the tests fast.
var testParams = Argon2Params{Time: 1, Memory: 64, Threads: 1, KeyLen: 32}

func testCreds() domain.Credentials {
	return domain.Credentials{
		Key:      domain.CredentialsKey{Host: "SeedBox.lan", Port: 9091, IsSecure: true, Username: "alice"},
		Password: "hunter2",
	}
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	creds := testCreds()

	if _, err := store.Load(ctx, creds.Key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load before Save error = %v, want ErrNotFound", err)
	}
	if err := store.Save(ctx, creds); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	lookup := domain.CredentialsKey{Host: "seedbox.LAN", Port: 9091, IsSecure: true, Username: " alice "}
	got, err := store.Load(ctx, lookup)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got.Password != "hunter2" || got.Key.Username != "alice" {
		t.Fatalf("Load = %+v", got)
	}

	plain := lookup
	plain.IsSecure = false
	if _, err := store.Load(ctx, plain); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load over http error = %v, want ErrNotFound", err)
	}

	noUser := creds
	noUser.Key.Username = "  "
	if err := store.Save(ctx, noUser); !errors.Is(err, ErrEmptyUsername) {
		t.Fatalf("Save without username error = %v, want ErrEmptyUsername", err)
	}

	if err := store.Delete(ctx, lookup); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := store.Load(ctx, creds.Key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load after Delete error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestVaultStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.json")
	store, err := OpenVault(path, "correct horse", testParams)
	if err != nil {
		t.Fatalf("OpenVault returned error: %v", err)
	}
	exerciseStore(t, store)
}

func TestVaultStore_PersistsEncrypted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "vault.json")
	ctx := context.Background()

	store, err := OpenVault(path, "correct horse", testParams)
	if err != nil {
		t.Fatalf("OpenVault returned error: %v", err)
	}
	if err := store.Save(ctx, testCreds()); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read vault: %v", err)
	}
	if bytes.Contains(raw, []byte("hunter2")) {
		t.Fatal("vault file contains the plaintext password")
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat vault: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("vault mode = %v, want 0600", info.Mode().Perm())
	}

	reopened, err := OpenVault(path, "correct horse", DefaultArgon2Params())
	if err != nil {
		t.Fatalf("reopen returned error: %v", err)
	}
	got, err := reopened.Load(ctx, testCreds().Key)
	if err != nil || got.Password != "hunter2" {
		t.Fatalf("Load after reopen = %+v, %v", got, err)
	}

	if _, err := OpenVault(path, "wrong", testParams); !errors.Is(err, ErrWrongPassphrase) {
		t.Fatalf("OpenVault with wrong passphrase error = %v, want ErrWrongPassphrase", err)
	}
}

func TestVaultStore_ClosedRejectsUse(t *testing.T) {
	store, err := OpenVault(filepath.Join(t.TempDir(), "vault.json"), "pw", testParams)
	if err != nil {
		t.Fatalf("OpenVault returned error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if err := store.Save(context.Background(), testCreds()); err == nil {
		t.Fatal("Save after Close returned nil error")
	}
}

func TestLookup(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Save(ctx, testCreds()); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	record := domain.ServerRecord{Host: "seedbox.lan", Port: 9091, IsSecure: true, Username: "alice"}
	creds, err := Lookup(ctx, store, record)
	if err != nil || creds == nil || creds.Password != "hunter2" {
		t.Fatalf("Lookup = %+v, %v", creds, err)
	}

	record.Username = ""
	if creds, err := Lookup(ctx, store, record); err != nil || creds != nil {
		t.Fatalf("Lookup without username = %+v, %v; want nil, nil", creds, err)
	}
	record.Username = "bob"
	if creds, err := Lookup(ctx, store, record); err != nil || creds != nil {
		t.Fatalf("Lookup unknown user = %+v, %v; want nil, nil", creds, err)
	}
}
