package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/memkernel/memkernel/internal/kernel"
)

// AddLink persists one explicit lineage link between two memory versions,
// outside of a WriteRecord call (for example, marking an older version as
// superseded after the fact by adding a supersedes link without writing a
// new record).
func (s *Store) AddLink(ctx context.Context, from, to kernel.MemoryVersionId, linkType kernel.LinkType, writer, justification string) error {
	if strings.TrimSpace(writer) == "" {
		return fmt.Errorf("writer MUST be provided for every link write")
	}
	if strings.TrimSpace(justification) == "" {
		return fmt.Errorf("justification MUST be provided for every link write")
	}
	if !linkType.IsValid() {
		return fmt.Errorf("invalid link_type: %q", string(linkType))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO memory_links(
			from_memory_version_id, to_memory_version_id, link_type, writer, justification, created_at
		) VALUES (?, ?, ?, ?, ?, ?)`,
		string(from), string(to), string(linkType), writer, justification, formatTime(time.Now()),
	); err != nil {
		return wrapDBError("insert memory link", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit link transaction: %w", err)
	}
	return nil
}
