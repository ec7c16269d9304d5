package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/memkernel/memkernel/internal/kernel"
)

// SaveContextPackage persists one Context Package artifact, keyed by its
// stable context_package_id.
func (s *Store) SaveContextPackage(ctx context.Context, pkg *kernel.ContextPackage) error {
	packageJSON, err := json.Marshal(pkg)
	if err != nil {
		return fmt.Errorf("failed to serialize context package: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO context_packages(context_package_id, generated_at, package_json)
		VALUES (?, ?, ?)`,
		pkg.ContextPackageID, formatTime(pkg.GeneratedAt), string(packageJSON),
	); err != nil {
		return wrapDBError("insert context package", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit context package transaction: %w", err)
	}
	return nil
}

// GetContextPackage retrieves a Context Package by its stable identifier,
// returning (nil, nil) when no package with that id exists.
func (s *Store) GetContextPackage(ctx context.Context, contextPackageID string) (*kernel.ContextPackage, error) {
	var packageJSON string
	err := s.db.QueryRowContext(ctx, `SELECT package_json FROM context_packages WHERE context_package_id = ?`, contextPackageID).Scan(&packageJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapDBError("get context package", err)
	}

	var pkg kernel.ContextPackage
	if err := json.Unmarshal([]byte(packageJSON), &pkg); err != nil {
		return nil, fmt.Errorf("failed to deserialize stored context package: %w", err)
	}
	return &pkg, nil
}

// listContextPackages loads every persisted Context Package, newest first.
func listContextPackages(ctx context.Context, db *sql.DB) ([]kernel.ContextPackage, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT package_json FROM context_packages
		ORDER BY generated_at DESC, context_package_id ASC`)
	if err != nil {
		return nil, wrapDBError("list context packages", err)
	}
	defer rows.Close()

	var packages []kernel.ContextPackage
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan context_packages row: %w", err)
		}
		var pkg kernel.ContextPackage
		if err := json.Unmarshal([]byte(raw), &pkg); err != nil {
			return nil, fmt.Errorf("failed to deserialize context package row: %w", err)
		}
		packages = append(packages, pkg)
	}
	return packages, rows.Err()
}

func contextPackageExists(ctx context.Context, db *sql.DB, contextPackageID string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT count(*) FROM context_packages WHERE context_package_id = ?`, contextPackageID).Scan(&count)
	if err != nil {
		return false, wrapDBError("check context package existence", err)
	}
	return count > 0, nil
}

// ContextPackageExists reports whether a package with the given id has
// already been saved, so an importer can apply its skip/fail policy on
// duplicates before attempting a write.
func (s *Store) ContextPackageExists(ctx context.Context, contextPackageID string) (bool, error) {
	return contextPackageExists(ctx, s.db, contextPackageID)
}

// ListContextPackages loads every persisted Context Package, newest first.
func (s *Store) ListContextPackages(ctx context.Context) ([]kernel.ContextPackage, error) {
	return listContextPackages(ctx, s.db)
}
