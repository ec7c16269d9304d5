package kernel

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Provenance records where a memory record's claim came from.
type Provenance struct {
	SourceURI  string   `json:"source_uri"`
	SourceHash string   `json:"source_hash,omitempty"`
	Evidence   []string `json:"evidence,omitempty"`
}

// ConstraintScope is the (actor, action, resource) triple a constraint applies to.
// Any field may be the literal wildcard "*".
type ConstraintScope struct {
	Actor    string `json:"actor"`
	Action   string `json:"action"`
	Resource string `json:"resource"`
}

// ConstraintPayload is the payload variant for record_type=constraint.
type ConstraintPayload struct {
	Scope  ConstraintScope  `json:"scope"`
	Effect ConstraintEffect `json:"effect"`
	Note   string           `json:"note,omitempty"`
}

// SummaryPayload is the shared payload shape for decision, preference,
// event, and outcome records.
type SummaryPayload struct {
	Summary string `json:"summary"`
}

// Payload is the tagged-union payload carried by a MemoryRecord. Exactly one
// of Constraint or Summary is populated, selected by the record's RecordType.
type Payload struct {
	Constraint *ConstraintPayload `json:"-"`
	Summary    *SummaryPayload    `json:"-"`
}

// payloadWireForm mirrors the wire-form {record_type, payload} tagging used
// by MemoryRecord's JSON marshaling; Payload itself has no record_type of
// its own, so this is only used from MemoryRecord's (Un)MarshalJSON.
type payloadWireForm struct {
	RecordType RecordType      `json:"record_type"`
	Payload    json.RawMessage `json:"payload"`
}

// RecordTypeOf reports which record type this payload corresponds to, given
// the owning record's declared type (payloads do not self-describe; the
// envelope's record_type is authoritative, matching the Rust prototype's
// MemoryPayload::record_type() dispatch which reads the enum tag, not the
// payload shape).
func (p Payload) RecordTypeOf(declared RecordType) RecordType {
	return declared
}

// MemoryId is the logical entity identifier shared by every version of one
// memory record's lineage.
type MemoryId string

// MemoryVersionId is the identifier of one specific append-only revision.
type MemoryVersionId string

// MemoryRecord is one immutable, validated append-only revision.
type MemoryRecord struct {
	MemoryVersionID MemoryVersionId   `json:"memory_version_id"`
	MemoryID        MemoryId          `json:"memory_id"`
	Version         int               `json:"version"`
	CreatedAt       time.Time         `json:"created_at"`
	EffectiveAt     time.Time         `json:"effective_at"`
	TruthStatus     TruthStatus       `json:"truth_status"`
	Authority       Authority         `json:"authority"`
	Confidence      *float32          `json:"confidence,omitempty"`
	Writer          string            `json:"writer"`
	Justification   string            `json:"justification"`
	Provenance      Provenance        `json:"provenance"`
	Supersedes      []MemoryVersionId `json:"supersedes,omitempty"`
	Contradicts     []MemoryVersionId `json:"contradicts,omitempty"`
	RecordType      RecordType        `json:"-"`
	Payload         Payload           `json:"-"`
}

// MarshalJSON renders the record with record_type/payload tagging, matching
// the wire form described in spec §6 (tagged union on record_type, content
// under payload).
func (r MemoryRecord) MarshalJSON() ([]byte, error) {
	type alias MemoryRecord
	var rawPayload json.RawMessage
	var err error
	switch r.RecordType {
	case RecordTypeConstraint:
		rawPayload, err = json.Marshal(r.Payload.Constraint)
	default:
		rawPayload, err = json.Marshal(r.Payload.Summary)
	}
	if err != nil {
		return nil, err
	}

	a := alias(r)
	wrapped := struct {
		alias
		RecordType RecordType      `json:"record_type"`
		Payload    json.RawMessage `json:"payload"`
	}{alias: a, RecordType: r.RecordType, Payload: rawPayload}
	return json.Marshal(wrapped)
}

// UnmarshalJSON parses the tagged-union wire form back into a MemoryRecord.
func (r *MemoryRecord) UnmarshalJSON(data []byte) error {
	type alias MemoryRecord
	wrapped := struct {
		*alias
		RecordType RecordType      `json:"record_type"`
		Payload    json.RawMessage `json:"payload"`
	}{alias: (*alias)(r)}

	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	r.RecordType = wrapped.RecordType

	switch wrapped.RecordType {
	case RecordTypeConstraint:
		var c ConstraintPayload
		if err := json.Unmarshal(wrapped.Payload, &c); err != nil {
			return err
		}
		r.Payload = Payload{Constraint: &c}
	default:
		var s SummaryPayload
		if err := json.Unmarshal(wrapped.Payload, &s); err != nil {
			return err
		}
		r.Payload = Payload{Summary: &s}
	}
	return nil
}

// ConfidenceOrDefault returns the record's confidence, defaulting to 0.5 when
// absent. This mirrors the Rust prototype's confidence.unwrap_or(0.5) call
// sites: the default is applied fresh at each use, never written back.
func (r *MemoryRecord) ConfidenceOrDefault() float32 {
	if r.Confidence == nil {
		return 0.5
	}
	return *r.Confidence
}

// ValidationError is a caller-data-correctness error, kind-tagged the way
// spec §7 requires: the message begins with the field or invariant keyword
// so tests can match on a stable substring.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func newValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// QueryError signals that a query request itself is malformed — missing
// snapshot metadata, empty recall text — as distinct from a record failing
// validation. Kept as its own type so callers can tell the two apart with
// errors.As the way the Rust prototype's KernelError::Query/::Validation
// variants let callers match on kind.
type QueryError struct {
	msg string
}

func (e *QueryError) Error() string { return e.msg }

func newQueryError(format string, args ...any) *QueryError {
	return &QueryError{msg: fmt.Sprintf(format, args...)}
}

// NewQueryError builds a QueryError for callers outside this package (the
// ranking engine) that need to report a malformed query request.
func NewQueryError(format string, args ...any) *QueryError {
	return newQueryError(format, args...)
}

// Validate checks a MemoryRecord against every invariant in spec §3.
func (r *MemoryRecord) Validate() error {
	if r.Version < 1 {
		return newValidationError("version MUST be >= 1")
	}

	if strings.TrimSpace(r.Writer) == "" {
		return newValidationError("writer MUST be provided for every write")
	}

	if strings.TrimSpace(r.Justification) == "" {
		return newValidationError("justification MUST be provided for every write")
	}

	if strings.TrimSpace(r.Provenance.SourceURI) == "" {
		return newValidationError("source_uri MUST be provided")
	}

	if r.Provenance.SourceHash != "" {
		if !strings.HasPrefix(r.Provenance.SourceHash, "sha256:") || len(r.Provenance.SourceHash) <= len("sha256:") {
			return newValidationError("source_hash MUST be formatted as sha256:<hex>")
		}
	}

	if r.Confidence != nil {
		c := *r.Confidence
		if c < 0.0 || c > 1.0 {
			return newValidationError("confidence MUST be in [0.0, 1.0]")
		}
	}

	if (r.TruthStatus == TruthStatusInferred || r.TruthStatus == TruthStatusSpeculative) && r.Confidence == nil {
		return newValidationError("confidence MUST be provided for inferred/speculative records")
	}

	if !r.TruthStatus.IsValid() {
		return newValidationError("truth_status is invalid: %q", string(r.TruthStatus))
	}

	if !r.Authority.IsValid() {
		return newValidationError("authority is invalid: %q", string(r.Authority))
	}

	if r.RecordType == RecordTypeConstraint {
		c := r.Payload.Constraint
		if c == nil {
			return newValidationError("constraint payload mismatch")
		}
		if strings.TrimSpace(c.Scope.Actor) == "" ||
			strings.TrimSpace(c.Scope.Action) == "" ||
			strings.TrimSpace(c.Scope.Resource) == "" {
			return newValidationError("constraint scope fields MUST be non-empty")
		}
		if !c.Effect.IsValid() {
			return newValidationError("effect is invalid: %q", string(c.Effect))
		}
	} else if !r.RecordType.IsValid() {
		return newValidationError("record_type is invalid: %q", string(r.RecordType))
	}

	return nil
}
