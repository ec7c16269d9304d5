package sqlite

import (
	"context"
	"path/filepath"
	"testing"
)

func newLegacyStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "legacy.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if _, err := store.db.Exec(createSchemaMigrationsSQL); err != nil {
		t.Fatalf("failed to create schema_migrations: %v", err)
	}
	if _, err := store.db.Exec(migration001SQL); err != nil {
		t.Fatalf("failed to apply legacy schema: %v", err)
	}
	if err := recordSchemaVersion(store.db, 1); err != nil {
		t.Fatalf("recordSchemaVersion() error = %v", err)
	}

	if _, err := store.db.Exec(`
		INSERT INTO memory_records(
			memory_id, version, record_type, created_at, effective_at,
			truth_status, authority, confidence, writer, justification,
			source_uri, source_hash, evidence_json
		) VALUES (
			'mem-usb-policy', 1, 'constraint', '2024-01-01T00:00:00Z', '2024-01-01T00:00:00Z',
			'asserted', 'authoritative', 0.9, 'policy-writer', 'documented company policy',
			'doc://policy/usb', NULL, '[]'
		)`); err != nil {
		t.Fatalf("failed to insert legacy memory record: %v", err)
	}
	if _, err := store.db.Exec(`
		INSERT INTO constraint_payloads(memory_id, actor, action, resource, effect, note)
		VALUES ('mem-usb-policy', 'user', 'use', 'usb_drive', 'deny', NULL)`); err != nil {
		t.Fatalf("failed to insert legacy constraint payload: %v", err)
	}

	if _, err := store.db.Exec(`
		INSERT INTO memory_records(
			memory_id, version, record_type, created_at, effective_at,
			truth_status, authority, confidence, writer, justification,
			source_uri, source_hash, evidence_json
		) VALUES (
			'mem-vacation-decision', 1, 'decision', '2024-01-02T00:00:00Z', '2024-01-02T00:00:00Z',
			'asserted', 'derived', NULL, 'assistant', 'recorded from conversation',
			'chat://session/42', NULL, '["vacation","approved"]'
		)`); err != nil {
		t.Fatalf("failed to insert legacy decision record: %v", err)
	}
	if _, err := store.db.Exec(`
		INSERT INTO decision_payloads(memory_id, summary) VALUES ('mem-vacation-decision', 'approved vacation request')`); err != nil {
		t.Fatalf("failed to insert legacy decision payload: %v", err)
	}

	if _, err := store.db.Exec(`
		INSERT INTO memory_links(from_memory_id, to_memory_id, link_type, writer, justification, created_at)
		VALUES ('mem-vacation-decision', 'mem-usb-policy', 'contradicts', 'assistant', 'cross-reference', '2024-01-02T00:00:00Z')`); err != nil {
		t.Fatalf("failed to insert legacy memory link: %v", err)
	}

	return store
}

func TestMigrateTransformsLegacyV1ToV2(t *testing.T) {
	store := newLegacyStore(t)

	statusBefore, err := store.SchemaStatus()
	if err != nil {
		t.Fatalf("SchemaStatus() error = %v", err)
	}
	if statusBefore.CurrentVersion != 1 {
		t.Fatalf("CurrentVersion (pre-migrate) = %d, want 1", statusBefore.CurrentVersion)
	}
	if len(statusBefore.PendingVersions) != 1 || statusBefore.PendingVersions[0] != 2 {
		t.Fatalf("PendingVersions (pre-migrate) = %v, want [2]", statusBefore.PendingVersions)
	}

	if err := store.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	statusAfter, err := store.SchemaStatus()
	if err != nil {
		t.Fatalf("SchemaStatus() error = %v", err)
	}
	if statusAfter.CurrentVersion != 2 {
		t.Fatalf("CurrentVersion (post-migrate) = %d, want 2", statusAfter.CurrentVersion)
	}
	if len(statusAfter.PendingVersions) != 0 {
		t.Fatalf("PendingVersions (post-migrate) = %v, want empty", statusAfter.PendingVersions)
	}

	hasVersionIDColumn, err := tableHasColumn(store.db, "memory_records", "memory_version_id")
	if err != nil {
		t.Fatalf("tableHasColumn() error = %v", err)
	}
	if !hasVersionIDColumn {
		t.Fatalf("memory_records lacks memory_version_id column after migration")
	}

	records, err := store.ListRecords(context.Background())
	if err != nil {
		t.Fatalf("ListRecords() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}

	var sawUSB, sawDecision bool
	for i := range records {
		r := &records[i]
		if string(r.MemoryID) == "mem-usb-policy" {
			sawUSB = true
			if r.Payload.Constraint == nil || r.Payload.Constraint.Effect != "deny" {
				t.Fatalf("migrated usb record payload = %+v, want deny constraint", r.Payload.Constraint)
			}
			if r.MemoryVersionID == "" {
				t.Fatalf("migrated usb record has empty memory_version_id")
			}
		}
		if string(r.MemoryID) == "mem-vacation-decision" {
			sawDecision = true
			if r.Payload.Summary == nil || r.Payload.Summary.Summary != "approved vacation request" {
				t.Fatalf("migrated decision record payload = %+v", r.Payload.Summary)
			}
			if len(r.Contradicts) != 1 {
				t.Fatalf("migrated decision record Contradicts = %v, want 1 link", r.Contradicts)
			}
		}
	}
	if !sawUSB || !sawDecision {
		t.Fatalf("migration dropped a record: sawUSB=%v sawDecision=%v", sawUSB, sawDecision)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := newLegacyStore(t)

	if err := store.Migrate(); err != nil {
		t.Fatalf("first Migrate() error = %v", err)
	}
	if err := store.Migrate(); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	status, err := store.SchemaStatus()
	if err != nil {
		t.Fatalf("SchemaStatus() error = %v", err)
	}
	if status.CurrentVersion != latestSchemaVersion {
		t.Fatalf("CurrentVersion = %d, want %d", status.CurrentVersion, latestSchemaVersion)
	}
}
