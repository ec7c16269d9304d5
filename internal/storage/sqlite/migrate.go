package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/memkernel/memkernel/internal/idgen"
)

// SchemaStatus reports a database's current and target schema version and
// whether the current version was inferred from a legacy shape rather than
// read from schema_migrations.
type SchemaStatus struct {
	CurrentVersion     int64
	TargetVersion      int64
	PendingVersions    []int64
	InferredFromLegacy bool
}

// SchemaStatus reports the current and target schema versions without
// applying any migration.
func (s *Store) SchemaStatus() (SchemaStatus, error) {
	if _, err := s.db.Exec(createSchemaMigrationsSQL); err != nil {
		return SchemaStatus{}, fmt.Errorf("failed to apply schema_migrations table: %w", err)
	}

	current, inferred, err := detectEffectiveSchemaVersion(s.db)
	if err != nil {
		return SchemaStatus{}, err
	}

	var pending []int64
	for v := current + 1; v <= latestSchemaVersion; v++ {
		pending = append(pending, v)
	}

	return SchemaStatus{
		CurrentVersion:     current,
		TargetVersion:      latestSchemaVersion,
		PendingVersions:    pending,
		InferredFromLegacy: inferred,
	}, nil
}

// Migrate applies every forward migration needed to bring the database to
// latestSchemaVersion, transforming a legacy v1 database in place if found.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(createSchemaMigrationsSQL); err != nil {
		return fmt.Errorf("failed to apply schema_migrations table: %w", err)
	}

	version, err := currentSchemaVersion(s.db)
	if err != nil {
		return err
	}

	if version == 0 {
		version, err = s.bootstrapSchemaVersion()
		if err != nil {
			return err
		}
	}

	if version < 2 {
		if err := s.applyMigration2(); err != nil {
			return err
		}
		version, err = currentSchemaVersion(s.db)
		if err != nil {
			return err
		}
	}

	if version != latestSchemaVersion {
		return fmt.Errorf("unsupported schema version %d; expected %d", version, latestSchemaVersion)
	}
	return nil
}

// bootstrapSchemaVersion inspects an on-disk database with no recorded
// schema_migrations rows and infers its starting version: fresh (no
// memory_records table, apply v1 from scratch), already-v2-shaped but
// missing migration bookkeeping, or legacy v1-shaped.
func (s *Store) bootstrapSchemaVersion() (int64, error) {
	hasMemoryRecords, err := tableExists(s.db, "memory_records")
	if err != nil {
		return 0, err
	}

	if !hasMemoryRecords {
		if _, err := s.db.Exec(migration001SQL); err != nil {
			return 0, fmt.Errorf("failed to apply migration v1: %w", err)
		}
		if err := recordSchemaVersion(s.db, 1); err != nil {
			return 0, err
		}
		return 1, nil
	}

	hasV2Column, err := tableHasColumn(s.db, "memory_records", "memory_version_id")
	if err != nil {
		return 0, err
	}
	if hasV2Column {
		if err := recordSchemaVersion(s.db, 1); err != nil {
			return 0, err
		}
		if err := recordSchemaVersion(s.db, 2); err != nil {
			return 0, err
		}
		return 2, nil
	}

	hasV1Column, err := tableHasColumn(s.db, "memory_records", "memory_id")
	if err != nil {
		return 0, err
	}
	if hasV1Column {
		if err := recordSchemaVersion(s.db, 1); err != nil {
			return 0, err
		}
		return 1, nil
	}

	return 0, fmt.Errorf("%w: memory_records has neither memory_id nor memory_version_id", ErrInvalidSchema)
}

type legacyRecordRow struct {
	memoryID      string
	version       int64
	recordType    string
	createdAt     string
	effectiveAt   string
	truthStatus   string
	authority     string
	confidence    sql.NullFloat64
	writer        string
	justification string
	sourceURI     string
	sourceHash    sql.NullString
	evidenceJSON  string
}

// applyMigration2 transforms a legacy v1 database into the v2 shape in
// place: every memory_id row becomes one memory_version_id row (minted
// fresh, with random entropy, while rows are visited in memory_id ascending
// order),
// payload and link tables are copied across via the id map, then the v1
// tables are dropped and the v2 tables renamed into their place.
func (s *Store) applyMigration2() error {
	hasV2Column, err := tableHasColumn(s.db, "memory_records", "memory_version_id")
	if err != nil {
		return err
	}
	if hasV2Column {
		return recordSchemaVersion(s.db, 2)
	}

	hasV1Column, err := tableHasColumn(s.db, "memory_records", "memory_id")
	if err != nil {
		return err
	}
	if !hasV1Column {
		return fmt.Errorf("cannot apply migration v2: legacy memory_records.memory_id column is missing")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to start migration v2 transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(migration002CreateV2TablesSQL); err != nil {
		return fmt.Errorf("failed to create v2 staging tables: %w", err)
	}

	idMap, err := copyRecordsToV2(tx)
	if err != nil {
		return err
	}

	if err := copyPayloadTableToV2(tx, "constraint_payloads", "constraint_payloads_v2", idMap, constraintPayloadColumns); err != nil {
		return err
	}
	for _, table := range []string{"decision_payloads", "preference_payloads", "event_payloads", "outcome_payloads"} {
		if err := copyPayloadTableToV2(tx, table, table+"_v2", idMap, summaryPayloadColumns); err != nil {
			return err
		}
	}
	if err := copyLinksToV2(tx, idMap); err != nil {
		return err
	}

	if _, err := tx.Exec(migration002ReplaceTablesSQL); err != nil {
		return fmt.Errorf("failed to replace legacy tables with v2 tables: %w", err)
	}
	if _, err := tx.Exec(migration002FinalIndexesSQL); err != nil {
		return fmt.Errorf("failed to create v2 indexes: %w", err)
	}

	if _, err := tx.Exec(`INSERT OR IGNORE INTO schema_migrations(version, applied_at) VALUES (?, ?)`, 2, formatTime(time.Now())); err != nil {
		return fmt.Errorf("failed to record migration version 2: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration v2: %w", err)
	}
	return nil
}

func copyRecordsToV2(tx *sql.Tx) (map[string]string, error) {
	rows, err := tx.Query(`
		SELECT memory_id, version, record_type, created_at, effective_at,
		       truth_status, authority, confidence, writer, justification,
		       source_uri, source_hash, evidence_json
		FROM memory_records
		ORDER BY memory_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to read legacy memory_records: %w", err)
	}
	defer rows.Close()

	idMap := make(map[string]string)
	for rows.Next() {
		var row legacyRecordRow
		if err := rows.Scan(
			&row.memoryID, &row.version, &row.recordType, &row.createdAt, &row.effectiveAt,
			&row.truthStatus, &row.authority, &row.confidence, &row.writer, &row.justification,
			&row.sourceURI, &row.sourceHash, &row.evidenceJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan legacy memory_records row: %w", err)
		}

		versionID := idgen.New(time.Now())
		if _, err := tx.Exec(`
			INSERT INTO memory_records_v2(
				memory_version_id, memory_id, version, record_type, created_at, effective_at,
				truth_status, authority, confidence, writer, justification,
				source_uri, source_hash, evidence_json
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			versionID, row.memoryID, row.version, row.recordType, row.createdAt, row.effectiveAt,
			row.truthStatus, row.authority, row.confidence, row.writer, row.justification,
			row.sourceURI, row.sourceHash, row.evidenceJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to copy memory_records row into v2: %w", err)
		}

		idMap[row.memoryID] = versionID
	}
	return idMap, rows.Err()
}

var constraintPayloadColumns = []string{"actor", "action", "resource", "effect", "note"}
var summaryPayloadColumns = []string{"summary"}

func copyPayloadTableToV2(tx *sql.Tx, fromTable, toTable string, idMap map[string]string, columns []string) error {
	selectCols := "memory_id"
	for _, c := range columns {
		selectCols += ", " + c
	}
	rows, err := tx.Query(fmt.Sprintf(`SELECT %s FROM %s`, selectCols, fromTable))
	if err != nil {
		return fmt.Errorf("failed to read legacy %s: %w", fromTable, err)
	}
	defer rows.Close()

	insertCols := "memory_version_id"
	placeholders := "?"
	for _, c := range columns {
		insertCols += ", " + c
		placeholders += ", ?"
	}
	insertSQL := fmt.Sprintf(`INSERT INTO %s(%s) VALUES (%s)`, toTable, insertCols, placeholders)

	for rows.Next() {
		scanTargets := make([]any, len(columns)+1)
		var memoryID string
		scanTargets[0] = &memoryID
		values := make([]any, len(columns))
		for i := range columns {
			scanTargets[i+1] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return fmt.Errorf("failed to scan legacy %s row: %w", fromTable, err)
		}

		versionID, ok := idMap[memoryID]
		if !ok {
			continue
		}

		args := append([]any{versionID}, values...)
		if _, err := tx.Exec(insertSQL, args...); err != nil {
			return fmt.Errorf("failed to copy %s row into v2: %w", fromTable, err)
		}
	}
	return rows.Err()
}

func copyLinksToV2(tx *sql.Tx, idMap map[string]string) error {
	rows, err := tx.Query(`SELECT from_memory_id, to_memory_id, link_type, writer, justification, created_at FROM memory_links`)
	if err != nil {
		return fmt.Errorf("failed to read legacy memory_links: %w", err)
	}
	defer rows.Close()

	type linkRow struct {
		from, to, linkType, writer, justification, createdAt string
	}
	var links []linkRow
	for rows.Next() {
		var l linkRow
		if err := rows.Scan(&l.from, &l.to, &l.linkType, &l.writer, &l.justification, &l.createdAt); err != nil {
			return fmt.Errorf("failed to scan legacy memory_links row: %w", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, l := range links {
		fromID, fromOK := idMap[l.from]
		toID, toOK := idMap[l.to]
		if !fromOK || !toOK {
			continue
		}
		if _, err := tx.Exec(`
			INSERT INTO memory_links_v2(from_memory_version_id, to_memory_version_id, link_type, writer, justification, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			fromID, toID, l.linkType, l.writer, l.justification, l.createdAt,
		); err != nil {
			return fmt.Errorf("failed to copy memory_links row into v2: %w", err)
		}
	}
	return nil
}

func currentSchemaVersion(db dbExecutor) (int64, error) {
	var version sql.NullInt64
	err := db.QueryRow(`SELECT max(version) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read current schema version: %w", err)
	}
	if !version.Valid {
		return 0, nil
	}
	return version.Int64, nil
}

// detectEffectiveSchemaVersion returns the recorded schema version if
// present, or infers one from the on-disk table shape when
// schema_migrations is empty (a database created before migrations were
// tracked, or mid-bootstrap).
func detectEffectiveSchemaVersion(db dbExecutor) (version int64, inferred bool, err error) {
	version, err = currentSchemaVersion(db)
	if err != nil {
		return 0, false, err
	}
	if version > 0 {
		return version, false, nil
	}

	hasMemoryRecords, err := tableExists(db, "memory_records")
	if err != nil {
		return 0, false, err
	}
	if !hasMemoryRecords {
		return 0, true, nil
	}

	hasV2Column, err := tableHasColumn(db, "memory_records", "memory_version_id")
	if err != nil {
		return 0, false, err
	}
	if hasV2Column {
		return 2, true, nil
	}

	hasV1Column, err := tableHasColumn(db, "memory_records", "memory_id")
	if err != nil {
		return 0, false, err
	}
	if hasV1Column {
		return 1, true, nil
	}

	return 0, false, fmt.Errorf("%w: memory_records has neither memory_id nor memory_version_id", ErrInvalidSchema)
}

func recordSchemaVersion(db *sql.DB, version int64) error {
	_, err := db.Exec(`INSERT OR IGNORE INTO schema_migrations(version, applied_at) VALUES (?, ?)`, version, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to record schema version %d: %w", version, err)
	}
	return nil
}
