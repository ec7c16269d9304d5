package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Environment variable names recognized as overrides for StoreConfig
// fields, checked after the on-disk config is loaded.
const (
	envDBPath            = "MEMKERNEL_DB_PATH"
	envSnapshotDir       = "MEMKERNEL_SNAPSHOT_DIR"
	envSigningKeyPath    = "MEMKERNEL_SIGNING_KEY_PATH"
	envEncryptionKeyPath = "MEMKERNEL_ENCRYPTION_KEY_PATH"
	envVerifyKeyPath     = "MEMKERNEL_VERIFY_KEY_PATH"
)

// LoadYAMLWithEnv reads a YAML store config file, then applies environment
// variable overrides through a dedicated viper instance (never the global
// singleton, so concurrent tests and multiple stores in one process do not
// stomp on each other's overrides).
func LoadYAMLWithEnv(path string) (*StoreConfig, error) {
	cfg, err := LoadYAML(path)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadTOMLWithEnv is LoadYAMLWithEnv's TOML counterpart.
func LoadTOMLWithEnv(path string) (*StoreConfig, error) {
	cfg, err := LoadTOML(path)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *StoreConfig) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if value := v.GetString(envDBPath); value != "" {
		cfg.DBPath = value
	}
	if value := v.GetString(envSnapshotDir); value != "" {
		cfg.SnapshotDir = value
	}
	if value := v.GetString(envSigningKeyPath); value != "" {
		cfg.SigningKeyPath = value
	}
	if value := v.GetString(envEncryptionKeyPath); value != "" {
		cfg.EncryptionKeyPath = value
	}
	if value := v.GetString(envVerifyKeyPath); value != "" {
		cfg.VerifyKeyPath = value
	}
}
