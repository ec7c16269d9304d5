package memkernel_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/memkernel/memkernel"
)

func TestOpen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := memkernel.Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	if store == nil {
		t.Fatal("expected non-nil store")
	}
}

func TestWriteRecordAndBuildContextPackage(t *testing.T) {
	ctx := context.Background()
	store, err := memkernel.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	now := time.Now().UTC()
	confidence := float32(0.9)
	record := memkernel.MemoryRecord{
		MemoryVersionID: "mv-test-1",
		MemoryID:        "m-test-1",
		Version:         1,
		CreatedAt:       now,
		EffectiveAt:     now,
		TruthStatus:     memkernel.TruthStatusAsserted,
		Authority:       memkernel.AuthorityAuthoritative,
		Confidence:      &confidence,
		Writer:          "test",
		Justification:   "public API smoke test",
		Provenance:      memkernel.Provenance{SourceURI: "doc://test"},
		RecordType:      memkernel.RecordTypeConstraint,
		Payload: memkernel.Payload{Constraint: &memkernel.ConstraintPayload{
			Scope:  memkernel.ConstraintScope{Actor: "user", Action: "use", Resource: "usb_drive"},
			Effect: memkernel.ConstraintEffectDeny,
		}},
	}
	if err := store.WriteRecord(ctx, &record); err != nil {
		t.Fatalf("WriteRecord failed: %v", err)
	}

	records, err := store.ListRecords(ctx)
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}

	pkg, err := memkernel.BuildContextPackage(records, memkernel.QueryRequest{
		Actor:    "user",
		Action:   "use",
		Resource: "usb_drive",
		AsOf:     now,
	}, "snap-1")
	if err != nil {
		t.Fatalf("BuildContextPackage failed: %v", err)
	}
	if pkg.Answer.Result != "deny" {
		t.Errorf("Answer.Result = %q, want %q", pkg.Answer.Result, "deny")
	}
}

func TestExportAndImportSnapshot(t *testing.T) {
	ctx := context.Background()
	store, err := memkernel.Open(filepath.Join(t.TempDir(), "source.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	now := time.Now().UTC()
	record := memkernel.MemoryRecord{
		MemoryVersionID: "mv-test-2",
		MemoryID:        "m-test-2",
		Version:         1,
		CreatedAt:       now,
		EffectiveAt:     now,
		TruthStatus:     memkernel.TruthStatusAsserted,
		Authority:       memkernel.AuthorityAuthoritative,
		Writer:          "test",
		Justification:   "snapshot smoke test",
		Provenance:      memkernel.Provenance{SourceURI: "doc://test"},
		RecordType:      memkernel.RecordTypeConstraint,
		Payload: memkernel.Payload{Constraint: &memkernel.ConstraintPayload{
			Scope:  memkernel.ConstraintScope{Actor: "user", Action: "use", Resource: "usb_drive"},
			Effect: memkernel.ConstraintEffectDeny,
		}},
	}
	if err := store.WriteRecord(ctx, &record); err != nil {
		t.Fatalf("WriteRecord failed: %v", err)
	}

	outDir := filepath.Join(t.TempDir(), "export")
	if _, err := memkernel.ExportSnapshot(ctx, store, outDir, memkernel.ExportOptions{}); err != nil {
		t.Fatalf("ExportSnapshot failed: %v", err)
	}

	target, err := memkernel.Open(filepath.Join(t.TempDir(), "target.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer target.Close()

	summary, err := memkernel.ImportSnapshot(ctx, target, outDir, memkernel.ImportOptions{})
	if err != nil {
		t.Fatalf("ImportSnapshot failed: %v", err)
	}
	if summary.ImportedRecords != 1 {
		t.Errorf("ImportedRecords = %d, want 1", summary.ImportedRecords)
	}
}

func TestLoadStoreConfigYAMLDefaultsWhenMissing(t *testing.T) {
	cfg, err := memkernel.LoadStoreConfigYAML(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadStoreConfigYAML failed: %v", err)
	}
	if cfg.DBPath == "" {
		t.Error("expected a non-empty default DBPath")
	}
}
