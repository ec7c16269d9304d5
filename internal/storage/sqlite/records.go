package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/memkernel/memkernel/internal/kernel"
)

// WriteRecord validates record and persists it, its payload row, and its
// supersedes/contradicts links in a single transaction.
func (s *Store) WriteRecord(ctx context.Context, record *kernel.MemoryRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("record validation failed: %w", err)
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if err := beginImmediateWithRetry(ctx, conn); err != nil {
		return fmt.Errorf("failed to begin immediate transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	evidenceJSON, err := json.Marshal(record.Provenance.Evidence)
	if err != nil {
		return fmt.Errorf("failed to serialize evidence: %w", err)
	}

	var sourceHash any
	if record.Provenance.SourceHash != "" {
		sourceHash = record.Provenance.SourceHash
	}
	var confidence any
	if record.Confidence != nil {
		confidence = *record.Confidence
	}

	if _, err := conn.ExecContext(ctx, `
		INSERT INTO memory_records(
			memory_version_id, memory_id, version, record_type, created_at, effective_at,
			truth_status, authority, confidence, writer, justification,
			source_uri, source_hash, evidence_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(record.MemoryVersionID), string(record.MemoryID), record.Version, string(record.RecordType),
		formatTime(record.CreatedAt), formatTime(record.EffectiveAt),
		string(record.TruthStatus), string(record.Authority), confidence,
		record.Writer, record.Justification, record.Provenance.SourceURI, sourceHash, string(evidenceJSON),
	); err != nil {
		return wrapDBError("insert memory record", err)
	}

	if err := insertPayload(ctx, conn, record); err != nil {
		return err
	}
	if err := insertLinks(ctx, conn, record, kernel.LinkTypeSupersedes, record.Supersedes); err != nil {
		return err
	}
	if err := insertLinks(ctx, conn, record, kernel.LinkTypeContradicts, record.Contradicts); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("failed to commit write transaction: %w", err)
	}
	committed = true
	return nil
}

func insertPayload(ctx context.Context, conn *sql.Conn, record *kernel.MemoryRecord) error {
	versionID := string(record.MemoryVersionID)

	if record.RecordType == kernel.RecordTypeConstraint {
		c := record.Payload.Constraint
		var note any
		if c.Note != "" {
			note = c.Note
		}
		if _, err := conn.ExecContext(ctx, `
			INSERT INTO constraint_payloads(memory_version_id, actor, action, resource, effect, note)
			VALUES (?, ?, ?, ?, ?, ?)`,
			versionID, c.Scope.Actor, c.Scope.Action, c.Scope.Resource, string(c.Effect), note,
		); err != nil {
			return wrapDBError("insert constraint payload", err)
		}
		return nil
	}

	table := summaryPayloadTable(record.RecordType)
	if table == "" {
		return fmt.Errorf("unknown record_type: %s", record.RecordType)
	}
	if _, err := conn.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s(memory_version_id, summary) VALUES (?, ?)`, table),
		versionID, record.Payload.Summary.Summary,
	); err != nil {
		return wrapDBError(fmt.Sprintf("insert %s payload", record.RecordType), err)
	}
	return nil
}

func summaryPayloadTable(rt kernel.RecordType) string {
	switch rt {
	case kernel.RecordTypeDecision:
		return "decision_payloads"
	case kernel.RecordTypePreference:
		return "preference_payloads"
	case kernel.RecordTypeEvent:
		return "event_payloads"
	case kernel.RecordTypeOutcome:
		return "outcome_payloads"
	default:
		return ""
	}
}

func insertLinks(ctx context.Context, conn *sql.Conn, record *kernel.MemoryRecord, linkType kernel.LinkType, targets []kernel.MemoryVersionId) error {
	now := formatTime(record.CreatedAt)
	for _, target := range targets {
		if _, err := conn.ExecContext(ctx, `
			INSERT INTO memory_links(
				from_memory_version_id, to_memory_version_id, link_type, writer, justification, created_at
			) VALUES (?, ?, ?, ?, ?, ?)`,
			string(record.MemoryVersionID), string(target), string(linkType), record.Writer, record.Justification, now,
		); err != nil {
			return wrapDBError("insert memory link", err)
		}
	}
	return nil
}

// ListRecords loads every persisted memory record with its payload and
// lineage links, ordered newest-created first with stable tie-breakers.
func (s *Store) ListRecords(ctx context.Context) ([]kernel.MemoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT memory_version_id, memory_id, version, record_type, created_at, effective_at,
		       truth_status, authority, confidence, writer, justification,
		       source_uri, source_hash, evidence_json
		FROM memory_records
		ORDER BY created_at DESC, memory_id ASC, memory_version_id ASC`)
	if err != nil {
		return nil, wrapDBError("list memory records", err)
	}
	defer rows.Close()

	var records []kernel.MemoryRecord
	for rows.Next() {
		var (
			versionID, memoryID, recordType, createdAt, effectiveAt string
			truthStatus, authority, writer, justification           string
			sourceURI, evidenceJSON                                  string
			version                                                  int
			confidence                                               sql.NullFloat64
			sourceHash                                                sql.NullString
		)
		if err := rows.Scan(
			&versionID, &memoryID, &version, &recordType, &createdAt, &effectiveAt,
			&truthStatus, &authority, &confidence, &writer, &justification,
			&sourceURI, &sourceHash, &evidenceJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan memory_records row: %w", err)
		}

		rt, err := kernel.ParseRecordType(recordType)
		if err != nil {
			return nil, err
		}
		createdAtTime, err := parseTimeString(createdAt)
		if err != nil {
			return nil, err
		}
		effectiveAtTime, err := parseTimeString(effectiveAt)
		if err != nil {
			return nil, err
		}
		ts, err := kernel.ParseTruthStatus(truthStatus)
		if err != nil {
			return nil, err
		}
		auth, err := kernel.ParseAuthority(authority)
		if err != nil {
			return nil, err
		}

		var evidence []string
		if err := json.Unmarshal([]byte(evidenceJSON), &evidence); err != nil {
			return nil, fmt.Errorf("failed to deserialize evidence: %w", err)
		}

		payload, err := loadPayload(ctx, s.db, kernel.MemoryVersionId(versionID), rt)
		if err != nil {
			return nil, err
		}
		supersedes, err := loadLinks(ctx, s.db, kernel.MemoryVersionId(versionID), kernel.LinkTypeSupersedes)
		if err != nil {
			return nil, err
		}
		contradicts, err := loadLinks(ctx, s.db, kernel.MemoryVersionId(versionID), kernel.LinkTypeContradicts)
		if err != nil {
			return nil, err
		}

		record := kernel.MemoryRecord{
			MemoryVersionID: kernel.MemoryVersionId(versionID),
			MemoryID:        kernel.MemoryId(memoryID),
			Version:         version,
			CreatedAt:       createdAtTime,
			EffectiveAt:     effectiveAtTime,
			TruthStatus:     ts,
			Authority:       auth,
			Writer:          writer,
			Justification:   justification,
			Provenance: kernel.Provenance{
				SourceURI: sourceURI,
				Evidence:  evidence,
			},
			Supersedes:  supersedes,
			Contradicts: contradicts,
			RecordType:  rt,
			Payload:     payload,
		}
		if confidence.Valid {
			v := float32(confidence.Float64)
			record.Confidence = &v
		}
		if sourceHash.Valid {
			record.Provenance.SourceHash = sourceHash.String
		}

		records = append(records, record)
	}
	return records, rows.Err()
}

func loadPayload(ctx context.Context, db *sql.DB, versionID kernel.MemoryVersionId, recordType kernel.RecordType) (kernel.Payload, error) {
	if recordType == kernel.RecordTypeConstraint {
		var actor, action, resource, effect string
		var note sql.NullString
		err := db.QueryRowContext(ctx, `
			SELECT actor, action, resource, effect, note FROM constraint_payloads
			WHERE memory_version_id = ?`, string(versionID)).Scan(&actor, &action, &resource, &effect, &note)
		if err != nil {
			return kernel.Payload{}, wrapDBErrorf(err, "load constraint payload for %s", versionID)
		}
		parsedEffect, err := kernel.ParseConstraintEffect(effect)
		if err != nil {
			return kernel.Payload{}, err
		}
		return kernel.Payload{Constraint: &kernel.ConstraintPayload{
			Scope:  kernel.ConstraintScope{Actor: actor, Action: action, Resource: resource},
			Effect: parsedEffect,
			Note:   note.String,
		}}, nil
	}

	table := summaryPayloadTable(recordType)
	if table == "" {
		return kernel.Payload{}, fmt.Errorf("unknown record_type: %s", recordType)
	}
	var summary string
	err := db.QueryRowContext(ctx, fmt.Sprintf(`SELECT summary FROM %s WHERE memory_version_id = ?`, table), string(versionID)).Scan(&summary)
	if err != nil {
		return kernel.Payload{}, wrapDBErrorf(err, "load %s payload for %s", table, versionID)
	}
	return kernel.Payload{Summary: &kernel.SummaryPayload{Summary: summary}}, nil
}

func loadLinks(ctx context.Context, db *sql.DB, versionID kernel.MemoryVersionId, linkType kernel.LinkType) ([]kernel.MemoryVersionId, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT to_memory_version_id FROM memory_links
		WHERE from_memory_version_id = ? AND link_type = ?
		ORDER BY id ASC`, string(versionID), string(linkType))
	if err != nil {
		return nil, wrapDBError("load memory links", err)
	}
	defer rows.Close()

	var ids []kernel.MemoryVersionId
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan memory_links row: %w", err)
		}
		ids = append(ids, kernel.MemoryVersionId(id))
	}
	return ids, rows.Err()
}

func recordExists(ctx context.Context, db *sql.DB, versionID kernel.MemoryVersionId) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT count(*) FROM memory_records WHERE memory_version_id = ?`, string(versionID)).Scan(&count)
	if err != nil {
		return false, wrapDBError("check memory record existence", err)
	}
	return count > 0, nil
}

// RecordExists reports whether a record with the given memory_version_id has
// already been written, so an importer can apply its skip/fail policy on
// duplicates before attempting a write.
func (s *Store) RecordExists(ctx context.Context, versionID kernel.MemoryVersionId) (bool, error) {
	return recordExists(ctx, s.db, versionID)
}
