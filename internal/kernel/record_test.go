package kernel

import (
	"strings"
	"testing"
	"time"
)

func confPtr(v float32) *float32 { return &v }

func validConstraintRecord() MemoryRecord {
	return MemoryRecord{
		MemoryVersionID: "01hq3z3z3z3z3z3z3z3z3z3z3z",
		MemoryID:        "01hq3z3z3z3z3z3z3z3z3z3z3y",
		Version:         1,
		CreatedAt:       time.Unix(1700000000, 0).UTC(),
		EffectiveAt:     time.Unix(1700000000, 0).UTC(),
		TruthStatus:     TruthStatusAsserted,
		Authority:       AuthorityAuthoritative,
		Confidence:      confPtr(0.9),
		Writer:          "policy-writer",
		Justification:   "documented company policy",
		Provenance:      Provenance{SourceURI: "doc://policy/usb"},
		RecordType:      RecordTypeConstraint,
		Payload: Payload{Constraint: &ConstraintPayload{
			Scope:  ConstraintScope{Actor: "user", Action: "use", Resource: "usb_drive"},
			Effect: ConstraintEffectDeny,
		}},
	}
}

func TestRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*MemoryRecord)
		wantErr string
	}{
		{name: "valid record", mutate: func(*MemoryRecord) {}, wantErr: ""},
		{
			name:    "version zero",
			mutate:  func(r *MemoryRecord) { r.Version = 0 },
			wantErr: "version MUST be >= 1",
		},
		{
			name:    "blank writer",
			mutate:  func(r *MemoryRecord) { r.Writer = "   " },
			wantErr: "writer MUST be provided",
		},
		{
			name:    "blank justification",
			mutate:  func(r *MemoryRecord) { r.Justification = "" },
			wantErr: "justification MUST be provided",
		},
		{
			name:    "blank source_uri",
			mutate:  func(r *MemoryRecord) { r.Provenance.SourceURI = "" },
			wantErr: "source_uri MUST be provided",
		},
		{
			name:    "malformed source_hash",
			mutate:  func(r *MemoryRecord) { r.Provenance.SourceHash = "md5:abcd" },
			wantErr: "source_hash MUST be formatted as sha256:<hex>",
		},
		{
			name:    "empty hex tail",
			mutate:  func(r *MemoryRecord) { r.Provenance.SourceHash = "sha256:" },
			wantErr: "source_hash MUST be formatted as sha256:<hex>",
		},
		{
			name:    "confidence out of range",
			mutate:  func(r *MemoryRecord) { r.Confidence = confPtr(1.5) },
			wantErr: "confidence MUST be in [0.0, 1.0]",
		},
		{
			name: "inferred without confidence",
			mutate: func(r *MemoryRecord) {
				r.TruthStatus = TruthStatusInferred
				r.Confidence = nil
			},
			wantErr: "confidence MUST be provided for inferred/speculative",
		},
		{
			name: "speculative without confidence",
			mutate: func(r *MemoryRecord) {
				r.TruthStatus = TruthStatusSpeculative
				r.Confidence = nil
			},
			wantErr: "confidence MUST be provided for inferred/speculative",
		},
		{
			name:    "blank scope actor",
			mutate:  func(r *MemoryRecord) { r.Payload.Constraint.Scope.Actor = "" },
			wantErr: "constraint scope fields MUST be non-empty",
		},
		{
			name:    "blank scope resource",
			mutate:  func(r *MemoryRecord) { r.Payload.Constraint.Scope.Resource = "  " },
			wantErr: "constraint scope fields MUST be non-empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := validConstraintRecord()
			tt.mutate(&record)
			err := record.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfidenceOrDefault(t *testing.T) {
	r := validConstraintRecord()
	r.Confidence = nil
	if got := r.ConfidenceOrDefault(); got != 0.5 {
		t.Fatalf("ConfidenceOrDefault() = %v, want 0.5", got)
	}

	r.Confidence = confPtr(0.73)
	if got := r.ConfidenceOrDefault(); got != 0.73 {
		t.Fatalf("ConfidenceOrDefault() = %v, want 0.73", got)
	}
}
