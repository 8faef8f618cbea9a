// Package config resolves runtime settings for the millflow CLI from
// flags, environment variables, and an optional config file.
// Priority: flags > env vars > config file.
package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/millstone-labs/millflow/crypto"
)

// Config represents the ~/.millflow/config.json file structure.
type Config struct {
	// MasterKey is the hex-encoded workspace master key.
	MasterKey string `json:"master_key,omitempty"`
	// DatabaseURL selects the Postgres connection store when set.
	DatabaseURL string `json:"database_url,omitempty"`
	// SQLitePath selects a SQLite connection store when DatabaseURL is empty.
	SQLitePath string `json:"sqlite_path,omitempty"`
}

// Flags carries CLI flag overrides. Empty fields are ignored.
type Flags struct {
	MasterKey   string
	DatabaseURL string
	SQLitePath  string
}

// Resolve builds the effective configuration from CLI flags, environment
// variables, and the config file.
func Resolve(flags Flags) (*Config, error) {
	cfg, err := loadConfigFile()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &Config{}
	}

	if v := os.Getenv("MILLFLOW_MASTER_KEY"); v != "" {
		cfg.MasterKey = v
	}
	if v := os.Getenv("MILLFLOW_DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("MILLFLOW_SQLITE_PATH"); v != "" {
		cfg.SQLitePath = v
	}

	if flags.MasterKey != "" {
		cfg.MasterKey = flags.MasterKey
	}
	if flags.DatabaseURL != "" {
		cfg.DatabaseURL = flags.DatabaseURL
	}
	if flags.SQLitePath != "" {
		cfg.SQLitePath = flags.SQLitePath
	}

	return cfg, nil
}

// ResolveMasterKey decodes the configured master key.
func (c *Config) ResolveMasterKey() (crypto.EncryptionKey, error) {
	if c.MasterKey == "" {
		return crypto.EncryptionKey{}, fmt.Errorf("no master key configured: set MILLFLOW_MASTER_KEY or master_key in the config file")
	}
	raw, err := hex.DecodeString(c.MasterKey)
	if err != nil {
		return crypto.EncryptionKey{}, fmt.Errorf("decoding master key: %w", err)
	}
	key, err := crypto.KeyFromBytes(raw)
	if err != nil {
		return crypto.EncryptionKey{}, fmt.Errorf("invalid master key: %w", err)
	}
	return key, nil
}

// loadConfigFile reads ~/.millflow/config.json (or MILLFLOW_CONFIG env var).
// Returns nil, nil if the file doesn't exist.
func loadConfigFile() (*Config, error) {
	path := os.Getenv("MILLFLOW_CONFIG")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, nil
		}
		path = filepath.Join(home, ".millflow", "config.json")
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path from well-known config location
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return &cfg, nil
}
