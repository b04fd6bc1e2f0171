package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/remora/internal/domain"
)

// Server is one [[servers]] entry.
type Server struct {
	ID             string `toml:"id"`
	Name           string `toml:"name"`
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	Path           string `toml:"path"`
	HTTPS          bool   `toml:"https"`
	AllowUntrusted bool   `toml:"allow_untrusted"`
	Username       string `toml:"username"`
}

// Record converts the entry into the form the mapper validates.
func (s Server) Record() domain.ServerRecord {
	return domain.ServerRecord{
		ID:             s.ID,
		Name:           s.Name,
		Host:           s.Host,
		Port:           s.Port,
		Path:           s.Path,
		IsSecure:       s.HTTPS,
		AllowUntrusted: s.AllowUntrusted,
		Username:       s.Username,
	}
}

// RPC tunes the transport.
type RPC struct {
	TimeoutSeconds      int `toml:"timeout_seconds"`
	MaxRetries          int `toml:"max_retries"`
	RetryBaseDelayMS    int `toml:"retry_base_delay_ms"`
	RetryMaxDelayMS     int `toml:"retry_max_delay_ms"`
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
}

func (r RPC) Timeout() time.Duration        { return time.Duration(r.TimeoutSeconds) * time.Second }
func (r RPC) RetryBaseDelay() time.Duration { return time.Duration(r.RetryBaseDelayMS) * time.Millisecond }
func (r RPC) RetryMaxDelay() time.Duration  { return time.Duration(r.RetryMaxDelayMS) * time.Millisecond }
func (r RPC) PollInterval() time.Duration   { return time.Duration(r.PollIntervalSeconds) * time.Second }

// Cache configures the offline cache.
type Cache struct {
	Dir        string `toml:"dir"`
	TTLSeconds int    `toml:"ttl_seconds"`
	MaxBytes   int    `toml:"max_bytes"`
}

func (c Cache) TTL() time.Duration { return time.Duration(c.TTLSeconds) * time.Second }

type Trust struct {
	DBPath string `toml:"db_path"`
}

type Credentials struct {
	VaultPath string `toml:"vault_path"`
	// PassphraseEnv names the environment variable holding the vault
	// passphrase.
	PassphraseEnv string `toml:"passphrase_env"`
}

type Log struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Config is the parsed remora configuration.
type Config struct {
	DefaultServer string      `toml:"default_server"`
	Servers       []Server    `toml:"servers"`
	RPC           RPC         `toml:"rpc"`
	Cache         Cache       `toml:"cache"`
	Trust         Trust       `toml:"trust"`
	Credentials   Credentials `toml:"credentials"`
	Log           Log         `toml:"log"`
}

const (
	defaultConfigPath    = "~/.config/remora/config.toml"
	defaultCacheDir      = "~/.cache/remora/offline"
	defaultTrustDB       = "~/.local/share/remora/trust.db"
	defaultVaultPath     = "~/.local/share/remora/credentials.json"
	defaultLogFile       = "~/.local/state/remora/remora.log"
	defaultPassphraseEnv = "REMORA_VAULT_PASSPHRASE"
)

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return defaultConfigPath
}

// Default returns a configuration with every default applied and no servers.
func Default() Config {
	return Config{
		RPC: RPC{
			TimeoutSeconds:      30,
			MaxRetries:          3,
			RetryBaseDelayMS:    500,
			RetryMaxDelayMS:     8000,
			PollIntervalSeconds: 2,
		},
		Cache: Cache{
			Dir:        defaultCacheDir,
			TTLSeconds: 7 * 24 * 60 * 60,
			MaxBytes:   8 << 20,
		},
		Trust:       Trust{DBPath: defaultTrustDB},
		Credentials: Credentials{VaultPath: defaultVaultPath, PassphraseEnv: defaultPassphraseEnv},
		Log: Log{
			Level:      "info",
			Format:     "text",
			File:       defaultLogFile,
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
	}
}

// Load locates and parses the config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err := cfg.normalize(); err != nil {
				return Config{}, err
			}
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(bytes, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	defaults := Default()
	c.DefaultServer = strings.TrimSpace(c.DefaultServer)
	for i := range c.Servers {
		s := &c.Servers[i]
		s.ID = strings.TrimSpace(s.ID)
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		s.Name = strings.TrimSpace(s.Name)
		s.Host = strings.TrimSpace(s.Host)
		s.Path = strings.TrimSpace(s.Path)
		s.Username = strings.TrimSpace(s.Username)
		if s.Port == 0 {
			s.Port = 9091
		}
	}
	if c.RPC.TimeoutSeconds <= 0 {
		c.RPC.TimeoutSeconds = defaults.RPC.TimeoutSeconds
	}
	if c.RPC.RetryBaseDelayMS <= 0 {
		c.RPC.RetryBaseDelayMS = defaults.RPC.RetryBaseDelayMS
	}
	if c.RPC.RetryMaxDelayMS <= 0 {
		c.RPC.RetryMaxDelayMS = defaults.RPC.RetryMaxDelayMS
	}
	if c.RPC.PollIntervalSeconds <= 0 {
		c.RPC.PollIntervalSeconds = defaults.RPC.PollIntervalSeconds
	}
	if strings.TrimSpace(c.Credentials.PassphraseEnv) == "" {
		c.Credentials.PassphraseEnv = defaultPassphraseEnv
	}

	var err error
	for _, p := range []*string{&c.Cache.Dir, &c.Trust.DBPath, &c.Credentials.VaultPath, &c.Log.File} {
		if strings.TrimSpace(*p) == "" {
			continue
		}
		if *p, err = expandPath(*p); err != nil {
			return err
		}
	}
	return nil
}

// Validate rejects configurations remora cannot run with.
func (c Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Servers))
	for _, s := range c.Servers {
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("servers: duplicate id %q", s.ID)
		}
		seen[s.ID] = struct{}{}
		if !filepath.IsLocal(s.ID) || strings.ContainsAny(s.ID, `/\`) {
			return fmt.Errorf("servers: id %q must be a single path-safe name", s.ID)
		}
		if s.Host == "" {
			return fmt.Errorf("servers.%s: host is required", s.ID)
		}
		if s.Port < 1 || s.Port > 65535 {
			return fmt.Errorf("servers.%s: port %d out of range", s.ID, s.Port)
		}
		if s.AllowUntrusted && !s.HTTPS {
			return fmt.Errorf("servers.%s: allow_untrusted requires https", s.ID)
		}
	}
	if c.DefaultServer != "" {
		if _, ok := seen[c.DefaultServer]; !ok {
			return fmt.Errorf("default_server %q is not configured", c.DefaultServer)
		}
	}
	if c.RPC.MaxRetries < 0 {
		return errors.New("rpc.max_retries must be >= 0")
	}
	if c.Cache.TTLSeconds < 0 {
		return errors.New("cache.ttl_seconds must be >= 0")
	}
	if c.Cache.MaxBytes < 0 {
		return errors.New("cache.max_bytes must be >= 0")
	}
	switch strings.ToLower(strings.TrimSpace(c.Log.Format)) {
	case "", "text", "console", "json":
	default:
		return fmt.Errorf("log.format: unsupported value %q", c.Log.Format)
	}
	return nil
}

// Server returns the server named id. An empty id selects default_server,
// then the only configured server.
func (c Config) Server(id string) (Server, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = c.DefaultServer
	}
	if id == "" {
		switch len(c.Servers) {
		case 0:
			return Server{}, errors.New("no servers configured")
		case 1:
			return c.Servers[0], nil
		default:
			return Server{}, errors.New("several servers configured; set default_server or pass --server")
		}
	}
	for _, s := range c.Servers {
		if s.ID == id {
			return s, nil
		}
	}
	return Server{}, fmt.Errorf("server %q not configured", id)
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
