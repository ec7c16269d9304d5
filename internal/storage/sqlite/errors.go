package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
)

// Sentinel errors for common database conditions.
var (
	// ErrNotFound indicates the requested resource was not found in the database.
	ErrNotFound = errors.New("not found")

	// ErrConflict names a unique constraint violation or conflicting state.
	// No function in this package wraps it: a duplicate write surfaces as the
	// driver's constraint error, wrapped by wrapDBError.
	ErrConflict = errors.New("conflict")

	// ErrInvalidSchema indicates the on-disk database has a memory_records
	// shape this package does not recognize as legacy v1 or current v2.
	ErrInvalidSchema = errors.New("invalid schema")
)

// wrapDBError wraps a database error with operation context. It converts
// sql.ErrNoRows to ErrNotFound for consistent error handling.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// wrapDBErrorf wraps a database error with formatted operation context.
func wrapDBErrorf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	op := fmt.Sprintf(format, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
