// Package sqlite is the single-file SQL store for memory records, their
// lineage links, and the Context Packages computed from them. It speaks
// database/sql against the pure-Go modernc.org/sqlite driver, matching the
// teacher's own preference for a driver with no cgo toolchain dependency.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store wraps a single-file SQLite database holding the memory kernel's
// append-only records, lineage links, and Context Packages. A Store is safe
// for concurrent reads; writes serialize through BEGIN IMMEDIATE on a
// dedicated connection rather than relying on database/sql's pool to
// enforce SQLite's single-writer model.
type Store struct {
	db   *sql.DB
	path string
}

// dsn builds the modernc.org/sqlite connection string for path, pinning the
// pragmas the memory kernel requires onto every connection database/sql
// opens in the pool. journal_mode is database-level and would survive a
// plain Exec after Open, but foreign_keys and busy_timeout are per-connection
// in SQLite: a pooled connection opened later without them would silently
// let FK-violating links through and fail fast on lock contention instead of
// waiting. Putting them in the DSN's _pragma query parameters means the
// driver applies them to every connection it opens, not just the first one.
func dsn(path string) string {
	return path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Open opens (creating if necessary) a SQLite database at path with the
// pragmas the memory kernel requires applied to every pooled connection: WAL
// journaling for concurrent readers during a write, foreign key enforcement,
// and a busy timeout generous enough to ride out lock contention between
// writers.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database at %s: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure sqlite pragmas: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func tableExists(db dbExecutor, name string) (bool, error) {
	var count int
	err := db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type='table' AND name = ?`, name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check for table %s: %w", name, err)
	}
	return count > 0, nil
}

func tableHasColumn(db dbExecutor, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return false, fmt.Errorf("failed to inspect table %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name       string
			colType    string
			notNull    int
			dfltValue  any
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &primaryKey); err != nil {
			return false, fmt.Errorf("failed to scan table_info row for %s: %w", table, err)
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// dbExecutor is satisfied by both *sql.DB and *sql.Tx, letting schema
// introspection helpers run inside or outside a transaction.
type dbExecutor interface {
	QueryRow(query string, args ...any) *sql.Row
	Query(query string, args ...any) (*sql.Rows, error)
}
