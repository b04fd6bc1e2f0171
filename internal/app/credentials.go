package app

import (
	"errors"
	"os"
	"strings"

	"github.com/five82/remora/internal/config"
	"github.com/five82/remora/internal/credentials"
)

// ErrNoPassphrase is returned when the vault is needed but neither the
// environment nor a prompt supplied a passphrase.
var ErrNoPassphrase = errors.New("vault passphrase not available")

// PassphraseFunc asks the user for the vault passphrase.
type PassphraseFunc func() (string, error)

// OpenCredentials opens the vault named in cfg. The passphrase comes from the
// environment variable cfg.PassphraseEnv, then from prompt.
func OpenCredentials(cfg config.Credentials, prompt PassphraseFunc) (*credentials.VaultStore, error) {
	passphrase := ""
	if cfg.PassphraseEnv != "" {
		passphrase = os.Getenv(cfg.PassphraseEnv)
	}
	if strings.TrimSpace(passphrase) == "" {
		if prompt == nil {
			return nil, ErrNoPassphrase
		}
		var err error
		if passphrase, err = prompt(); err != nil {
			return nil, err
		}
		if passphrase == "" {
			return nil, ErrNoPassphrase
		}
	}
	return credentials.OpenVault(cfg.VaultPath, passphrase, credentials.DefaultArgon2Params())
}
