// Package config holds the VaultMark policy configuration and the on-disk
// layout shared by the custody, store, and revocation components.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the policy configuration consumed by the engine. It is loaded
// from YAML and handed to the engine as plain values.
type Config struct {
	KeyID     string   `yaml:"key_id"`
	CreatedAt string   `yaml:"created_at"`
	MaxTTL    TTL      `yaml:"max_ttl"`
	Defaults  Defaults `yaml:"defaults"`
}

// Defaults are applied when a request omits the corresponding parameter.
type Defaults struct {
	TTL             TTL    `yaml:"ttl"`
	PasswordLength  int    `yaml:"password_length"`
	PasswordCharset string `yaml:"password_charset"`
}

// DefaultConfig returns the baseline policy: 24h ceiling, 1h default grants,
// 32-character alphanumeric passwords.
func DefaultConfig() Config {
	return Config{
		KeyID:  "vaultmark-ca",
		MaxTTL: TTL(24 * time.Hour),
		Defaults: Defaults{
			TTL:             TTL(time.Hour),
			PasswordLength:  32,
			PasswordCharset: "alphanumeric",
		},
	}
}

// Load reads the config file at path, merging it over DefaultConfig.
// A missing file is not an error; the defaults are returned as-is.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Defaults.PasswordLength <= 0 {
		cfg.Defaults.PasswordLength = DefaultConfig().Defaults.PasswordLength
	}
	if cfg.Defaults.PasswordCharset == "" {
		cfg.Defaults.PasswordCharset = DefaultConfig().Defaults.PasswordCharset
	}
	return cfg, nil
}

// Save writes the config as YAML with owner-only permissions.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
