package kernel

import "time"

// QueryRequest is the frozen input to a ranking operation.
type QueryRequest struct {
	Text     string    `json:"text"`
	Actor    string    `json:"actor"`
	Action   string    `json:"action"`
	Resource string    `json:"resource"`
	AsOf     time.Time `json:"as_of"`
}

// RuleScores captures the numeric inputs behind one selected item's rank.
type RuleScores struct {
	ScopeMatch      float32 `json:"scope_match"`
	AuthorityRank   int     `json:"authority_rank"`
	TruthStatusRank int     `json:"truth_status_rank"`
	Confidence      float32 `json:"confidence"`
}

// Why explains, for one item, whether it was included and the human
// reasons for that outcome.
type Why struct {
	Included   bool        `json:"included"`
	Reasons    []string    `json:"reasons"`
	RuleScores *RuleScores `json:"rule_scores,omitempty"`
}

// ContextItem is one ranked entry in a Context Package's selected or
// excluded list.
type ContextItem struct {
	Rank            int             `json:"rank"`
	MemoryVersionID MemoryVersionId `json:"memory_version_id"`
	MemoryID        MemoryId        `json:"memory_id"`
	RecordType      RecordType      `json:"record_type"`
	Version         int             `json:"version"`
	TruthStatus     TruthStatus     `json:"truth_status"`
	Confidence      *float32        `json:"confidence,omitempty"`
	Authority       Authority       `json:"authority"`
	Why             Why             `json:"why"`
}

// DeterminismMetadata records the ruleset, snapshot, and tie-breaker order
// that produced a Context Package, so the same snapshot always replays to
// the same bytes.
type DeterminismMetadata struct {
	RulesetVersion string   `json:"ruleset_version"`
	SnapshotID     string   `json:"snapshot_id"`
	TieBreakers    []string `json:"tie_breakers"`
}

// Answer is the verdict derived for a policy query (always Inconclusive for
// recall queries).
type Answer struct {
	Result AnswerResult `json:"result"`
	Why    string       `json:"why"`
}

// ContextPackage is the full, reproducible result of one query.
type ContextPackage struct {
	ContextPackageID string              `json:"context_package_id"`
	GeneratedAt      time.Time           `json:"generated_at"`
	Query            QueryRequest        `json:"query"`
	Determinism      DeterminismMetadata `json:"determinism"`
	Answer           Answer              `json:"answer"`
	SelectedItems    []ContextItem       `json:"selected_items"`
	ExcludedItems    []ContextItem       `json:"excluded_items"`
	OrderingTrace    []string            `json:"ordering_trace"`
}
