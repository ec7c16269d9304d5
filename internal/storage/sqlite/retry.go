package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// beginImmediateRetries and beginImmediateBaseDelay bound the exponential
// backoff applied when BEGIN IMMEDIATE hits SQLITE_BUSY because another
// writer already holds the reserved lock; busy_timeout alone does not
// always cover contention between multiple IMMEDIATE transactions.
const (
	beginImmediateRetries   = 5
	beginImmediateBaseDelay = 10 * time.Millisecond
)

// beginImmediateWithRetry issues "BEGIN IMMEDIATE" on conn, retrying with
// exponential backoff on SQLITE_BUSY. database/sql's BeginTx cannot express
// SQLite's transaction modes, and modernc.org/sqlite's BeginTx always opens
// DEFERRED, so the write path drives the raw statement directly on a
// dedicated connection instead.
func beginImmediateWithRetry(ctx context.Context, conn *sql.Conn) error {
	delay := beginImmediateBaseDelay
	var lastErr error
	for attempt := 0; attempt <= beginImmediateRetries; attempt++ {
		_, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE")
		if err == nil {
			return nil
		}
		lastErr = err
		if !isBusyError(err) {
			return err
		}
		if attempt == beginImmediateRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return lastErr
}

func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy") || errors.Is(err, context.DeadlineExceeded)
}
