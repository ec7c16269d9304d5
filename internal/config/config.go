// Package config loads the store configuration a memory kernel process
// needs before it can open a database: where the SQLite file and snapshot
// output directory live, and where signing/encryption key material for
// snapshot security is found on disk. It mirrors the teacher's own
// config package: direct YAML parsing for config read before anything else
// is initialized, TOML as an alternate on-disk format, and viper for
// environment-variable overrides layered on top.
package config

import (
	"os"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// StoreConfig is the subset of on-disk configuration needed to open a store
// and drive snapshot export/import: where the database and snapshot
// directory live, and where (if anywhere) signing/encryption key files are.
type StoreConfig struct {
	DBPath            string `yaml:"db-path" toml:"db_path"`
	SnapshotDir       string `yaml:"snapshot-dir" toml:"snapshot_dir"`
	SigningKeyPath    string `yaml:"signing-key-path" toml:"signing_key_path"`
	EncryptionKeyPath string `yaml:"encryption-key-path" toml:"encryption_key_path"`
	VerifyKeyPath     string `yaml:"verify-key-path" toml:"verify_key_path"`
}

// DefaultStoreConfig returns the configuration used when no config file is
// present: a database alongside the snapshot directory in the current
// working directory, and no signing/encryption configured.
func DefaultStoreConfig() *StoreConfig {
	return &StoreConfig{
		DBPath:      "memkernel.db",
		SnapshotDir: "snapshots",
	}
}

// LoadYAML reads and parses a YAML store config file. Returns the default
// config (not nil, not an error) if the file does not exist, matching the
// teacher's LoadLocalConfig behavior of tolerating a missing config file at
// the call sites that run before a store is known to exist.
func LoadYAML(path string) (*StoreConfig, error) {
	cfg := DefaultStoreConfig()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadTOML reads and parses a TOML store config file, for callers that
// prefer TOML over YAML. Returns the default config if the file does not
// exist.
func LoadTOML(path string) (*StoreConfig, error) {
	cfg := DefaultStoreConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
