package sqlite

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// BackupDatabase writes a consistent point-in-time copy of the current
// database to outFile using SQLite's VACUUM INTO, which snapshots the live
// database (including any WAL-resident pages) without requiring callers to
// pause writers. modernc.org/sqlite has no bindings for rusqlite's online
// backup API, so VACUUM INTO stands in for it — the pack's own driver
// choice forces this substitution, recorded in the design ledger.
func (s *Store) BackupDatabase(outFile string) error {
	if dir := filepath.Dir(outFile); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create parent directory for backup file %s: %w", outFile, err)
		}
	}

	if _, err := os.Stat(outFile); err == nil {
		if err := os.Remove(outFile); err != nil {
			return fmt.Errorf("failed to remove existing backup file %s: %w", outFile, err)
		}
	}

	if _, err := s.db.Exec(`VACUUM INTO ?`, outFile); err != nil {
		return fmt.Errorf("failed to create sqlite backup at %s: %w", outFile, err)
	}
	return nil
}

// RestoreDatabase replaces this store's database file contents with inFile
// and migrates the restored database to the latest schema version. The
// current database handle is closed before the copy and the Store is then
// pointed at a freshly opened handle on the same path, so any in-flight
// transaction on the old handle should be completed or abandoned before
// calling RestoreDatabase.
func (s *Store) RestoreDatabase(inFile string) error {
	if _, err := os.Stat(inFile); err != nil {
		return fmt.Errorf("backup file does not exist: %s", inFile)
	}

	path := s.path
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database before restore: %w", err)
	}

	if err := copyFile(inFile, path); err != nil {
		return fmt.Errorf("failed to restore sqlite backup from %s: %w", inFile, err)
	}

	restored, err := Open(path)
	if err != nil {
		return fmt.Errorf("failed to reopen database after restore: %w", err)
	}
	*s = *restored

	if err := s.Migrate(); err != nil {
		return err
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
