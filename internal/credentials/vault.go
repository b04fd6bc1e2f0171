package credentials

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/argon2"

	"github.com/five82/remora/internal/domain"
)

// ErrWrongPassphrase is returned when a vault cannot be opened with the
// supplied passphrase.
var ErrWrongPassphrase = errors.New("vault passphrase is incorrect")

const (
	vaultVersion = 1
	saltLen      = 32
	checkPhrase  = "remora-vault-v1"
)

// Argon2Params tune key derivation.
type Argon2Params struct {
	Time    uint32 `json:"time"`
	Memory  uint32 `json:"memory"`
	Threads uint8  `json:"threads"`
	KeyLen  uint32 `json:"key_len"`
}

// DefaultArgon2Params returns the parameters used for new vaults.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{Time: 3, Memory: 64 * 1024, Threads: 4, KeyLen: 32}
}

type vaultFile struct {
	Version      int               `json:"version"`
	Salt         []byte            `json:"salt"`
	Params       Argon2Params      `json:"argon2_params"`
	Verification string            `json:"verification"`
	Secrets      map[string]string `json:"secrets"`
}

// VaultStore keeps credentials in one file. Each entry is sealed with
// AES-256-GCM under a key derived from the passphrase with Argon2id.
type VaultStore struct {
	mu   sync.Mutex
	path string
	key  []byte
	file vaultFile
}

// OpenVault opens the vault at path, creating it with params when missing.
// params are ignored for an existing vault.
func OpenVault(path, passphrase string, params Argon2Params) (*VaultStore, error) {
	if passphrase == "" {
		return nil, errors.New("vault passphrase is empty")
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return createVault(path, passphrase, params)
	case err != nil:
		return nil, fmt.Errorf("read vault: %w", err)
	}

	var file vaultFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse vault: %w", err)
	}
	if file.Version != vaultVersion {
		return nil, fmt.Errorf("unsupported vault version %d", file.Version)
	}
	if len(file.Salt) < 16 {
		return nil, errors.New("vault salt is too short")
	}
	key := deriveKey(passphrase, file.Salt, file.Params)
	check, err := open(key, file.Verification)
	if err != nil || subtle.ConstantTimeCompare(check, []byte(checkPhrase)) != 1 {
		return nil, ErrWrongPassphrase
	}
	if file.Secrets == nil {
		file.Secrets = make(map[string]string)
	}
	return &VaultStore{path: path, key: key, file: file}, nil
}

func createVault(path, passphrase string, params Argon2Params) (*VaultStore, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	key := deriveKey(passphrase, salt, params)
	verification, err := seal(key, []byte(checkPhrase))
	if err != nil {
		return nil, err
	}
	store := &VaultStore{
		path: path,
		key:  key,
		file: vaultFile{
			Version:      vaultVersion,
			Salt:         salt,
			Params:       params,
			Verification: verification,
			Secrets:      make(map[string]string),
		},
	}
	if err := store.persist(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *VaultStore) Load(_ context.Context, key domain.CredentialsKey) (domain.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sealed, ok := s.file.Secrets[normalizeKey(key).String()]
	if !ok {
		return domain.Credentials{}, ErrNotFound
	}
	plain, err := open(s.key, sealed)
	if err != nil {
		return domain.Credentials{}, err
	}
	var creds domain.Credentials
	if err := json.Unmarshal(plain, &creds); err != nil {
		return domain.Credentials{}, fmt.Errorf("decode credentials: %w", err)
	}
	return creds, nil
}

func (s *VaultStore) Save(_ context.Context, creds domain.Credentials) error {
	creds, err := validate(creds)
	if err != nil {
		return err
	}
	plain, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sealed, err := seal(s.key, plain)
	if err != nil {
		return err
	}
	s.file.Secrets[creds.Key.String()] = sealed
	return s.persist()
}

func (s *VaultStore) Delete(_ context.Context, key domain.CredentialsKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := normalizeKey(key).String()
	if _, ok := s.file.Secrets[id]; !ok {
		return nil
	}
	delete(s.file.Secrets, id)
	return s.persist()
}

// Close zeroes the derived key. The store is unusable afterwards.
func (s *VaultStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.key {
		s.key[i] = 0
	}
	s.key = nil
	return nil
}

func (s *VaultStore) persist() error {
	data, err := json.MarshalIndent(s.file, "", "  ")
	if err != nil {
		return fmt.Errorf("encode vault: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create vault dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write vault: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace vault: %w", err)
	}
	return nil
}

func deriveKey(passphrase string, salt []byte, params Argon2Params) []byte {
	return argon2.IDKey([]byte(passphrase), salt, params.Time, params.Memory, params.Threads, params.KeyLen)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if key == nil {
		return nil, errors.New("vault is closed")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return gcm, nil
}

// seal returns base64(nonce || ciphertext || tag).
func seal(key, plaintext []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(gcm.Seal(nonce, nonce, plaintext, nil)), nil
}

func open(key []byte, encoded string) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(raw) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plain, nil
}
