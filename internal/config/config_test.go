package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadYAMLReturnsDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := LoadYAML(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultStoreConfig(), cfg)
}

func TestLoadYAMLParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.yaml")
	contents := "db-path: /var/lib/memkernel/db.sqlite\nsnapshot-dir: /var/lib/memkernel/snapshots\nsigning-key-path: /etc/memkernel/signing.key\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := LoadYAML(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/memkernel/db.sqlite", cfg.DBPath)
	require.Equal(t, "/var/lib/memkernel/snapshots", cfg.SnapshotDir)
	require.Equal(t, "/etc/memkernel/signing.key", cfg.SigningKeyPath)
}

func TestLoadTOMLReturnsDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := LoadTOML(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	require.Equal(t, DefaultStoreConfig(), cfg)
}

func TestLoadTOMLParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.toml")
	contents := "db_path = \"/var/lib/memkernel/db.sqlite\"\nencryption_key_path = \"/etc/memkernel/encryption.key\"\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := LoadTOML(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/memkernel/db.sqlite", cfg.DBPath)
	require.Equal(t, "/etc/memkernel/encryption.key", cfg.EncryptionKeyPath)
}

func TestLoadYAMLWithEnvAppliesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.yaml")
	contents := "db-path: /var/lib/memkernel/db.sqlite\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	t.Setenv("MEMKERNEL_DB_PATH", "/override/db.sqlite")
	t.Setenv("MEMKERNEL_VERIFY_KEY_PATH", "/override/verify.key")

	cfg, err := LoadYAMLWithEnv(path)
	require.NoError(t, err)
	require.Equal(t, "/override/db.sqlite", cfg.DBPath)
	require.Equal(t, "/override/verify.key", cfg.VerifyKeyPath)
}

func TestLoadYAMLWithEnvLeavesFileValuesWhenUnset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.yaml")
	contents := "db-path: /var/lib/memkernel/db.sqlite\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := LoadYAMLWithEnv(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/memkernel/db.sqlite", cfg.DBPath)
}

func TestWatcherInvokesReloadOnFileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db-path: initial\n"), 0o600))

	watcher, err := NewWatcher(path)
	require.NoError(t, err)

	reloaded := make(chan struct{}, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- watcher.Watch(ctx, func() error {
			reloaded <- struct{}{}
			return nil
		})
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("db-path: updated\n"), 0o600))

	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload callback")
	}

	watcher.Stop()
	<-done
}
