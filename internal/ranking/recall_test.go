package ranking

import (
	"testing"
	"time"

	"github.com/memkernel/memkernel/internal/kernel"
)

func decisionRecord(id, memoryID, summary string, confidence *float32, createdAt time.Time) kernel.MemoryRecord {
	return kernel.MemoryRecord{
		MemoryVersionID: kernel.MemoryVersionId(id),
		MemoryID:        kernel.MemoryId(memoryID),
		Version:         1,
		CreatedAt:       createdAt,
		EffectiveAt:     createdAt,
		TruthStatus:     kernel.TruthStatusAsserted,
		Authority:       kernel.AuthorityAuthoritative,
		Confidence:      confidence,
		Writer:          "agent",
		Justification:   "test fixture",
		Provenance:      kernel.Provenance{SourceURI: "doc://decision"},
		RecordType:      kernel.RecordTypeDecision,
		Payload:         kernel.Payload{Summary: &kernel.SummaryPayload{Summary: summary}},
	}
}

func TestBuildRecallContextPackageExcludesRecordsWithoutLexicalOverlap(t *testing.T) {
	query := baseQuery()
	query.Text = "usb drive policy"

	records := []kernel.MemoryRecord{
		decisionRecord("01V1", "01M1", "team decided usb drive access requires approval", confPtr(0.8), time.Unix(1_699_000_000, 0).UTC()),
		decisionRecord("01V2", "01M2", "unrelated summary about printers", confPtr(0.8), time.Unix(1_699_100_000, 0).UTC()),
	}

	pkg, err := BuildRecallContextPackage(records, query, "snap-1", nil)
	if err != nil {
		t.Fatalf("BuildRecallContextPackage() error = %v", err)
	}
	if len(pkg.SelectedItems) != 1 || pkg.SelectedItems[0].MemoryVersionID != "01V1" {
		t.Fatalf("SelectedItems = %+v, want only 01V1", pkg.SelectedItems)
	}
	if len(pkg.ExcludedItems) != 1 || pkg.ExcludedItems[0].Why.Reasons[0] != "no lexical overlap with query text" {
		t.Fatalf("ExcludedItems = %+v", pkg.ExcludedItems)
	}
	if pkg.Answer.Result != kernel.AnswerInconclusive {
		t.Fatalf("Answer.Result = %v, want inconclusive", pkg.Answer.Result)
	}
}

func TestBuildRecallContextPackageRejectsBlankText(t *testing.T) {
	query := baseQuery()
	query.Text = "   "
	if _, err := BuildRecallContextPackage(nil, query, "snap-1", nil); err == nil {
		t.Fatalf("BuildRecallContextPackage() error = nil, want text error")
	}
}

func TestBuildRecallContextPackageRejectsNonAlphanumericText(t *testing.T) {
	query := baseQuery()
	query.Text = "!! ?? .."
	if _, err := BuildRecallContextPackage(nil, query, "snap-1", nil); err == nil {
		t.Fatalf("BuildRecallContextPackage() error = nil, want no-terms error")
	}
}

func TestBuildRecallContextPackageNarrowsRecordTypes(t *testing.T) {
	query := baseQuery()
	query.Text = "usb drive"

	records := []kernel.MemoryRecord{
		decisionRecord("01V1", "01M1", "usb drive decision", confPtr(0.8), time.Unix(1_699_000_000, 0).UTC()),
	}

	pkg, err := BuildRecallContextPackage(records, query, "snap-1", []kernel.RecordType{kernel.RecordTypeEvent})
	if err != nil {
		t.Fatalf("BuildRecallContextPackage() error = %v", err)
	}
	if len(pkg.SelectedItems) != 0 {
		t.Fatalf("len(SelectedItems) = %d, want 0 (decision excluded by narrowed types)", len(pkg.SelectedItems))
	}
}
