package ranking

import (
	"fmt"
	"sort"
	"strings"

	"github.com/memkernel/memkernel/internal/kernel"
)

// rulesetVersionRecall is the ruleset tag stamped into every recall Context
// Package's determinism metadata.
const rulesetVersionRecall = "recall-ordering.v1"

// BuildRecallContextPackage ranks every record of an allowed type that has
// at least one normalized term in common with the query text, excludes
// retracted and superseded records, and returns the resulting Context
// Package. Recall queries never derive an Allow/Deny answer — the answer is
// always Inconclusive with a summary of how many memories were selected.
func BuildRecallContextPackage(records []kernel.MemoryRecord, query kernel.QueryRequest, snapshotID string, recordTypes []kernel.RecordType) (kernel.ContextPackage, error) {
	if strings.TrimSpace(snapshotID) == "" {
		return kernel.ContextPackage{}, kernel.NewQueryError("snapshot_id MUST be provided for deterministic replay")
	}
	if strings.TrimSpace(query.Text) == "" {
		return kernel.ContextPackage{}, kernel.NewQueryError("recall query text MUST be non-empty")
	}

	for i := range records {
		if err := records[i].Validate(); err != nil {
			return kernel.ContextPackage{}, err
		}
	}

	allowedTypes := recordTypes
	if len(allowedTypes) == 0 {
		allowedTypes = DefaultRecallRecordTypes()
	}
	allowed := make(map[kernel.RecordType]bool, len(allowedTypes))
	for _, rt := range allowedTypes {
		allowed[rt] = true
	}

	queryTerms := tokenizeQueryTerms(query.Text)
	if len(queryTerms) == 0 {
		return kernel.ContextPackage{}, kernel.NewQueryError("recall query text MUST include at least one alphanumeric term")
	}

	superseded := collectSupersededIDs(records)
	candidates, excluded := collectRecallCandidates(records, allowed, queryTerms, superseded)

	sortRecallCandidates(candidates)
	selected := make([]kernel.ContextItem, 0, len(candidates))
	for i, candidate := range candidates {
		selected = append(selected, selectedRecallItem(i, candidate))
	}
	assignExclusionRanks(excluded)

	selectedTypes := sortedTypeNames(allowed)
	selectedTypesJoined := strings.Join(selectedTypes, ", ")

	return kernel.ContextPackage{
		ContextPackageID: makeContextPackageID(query, snapshotID),
		GeneratedAt:      query.AsOf,
		Query:            query,
		Determinism: kernel.DeterminismMetadata{
			RulesetVersion: rulesetVersionRecall,
			SnapshotID:     snapshotID,
			TieBreakers:    DefaultRecallTieBreakers(),
		},
		Answer: kernel.Answer{
			Result: kernel.AnswerInconclusive,
			Why:    fmt.Sprintf("Recall query selected %d memories across record types [%s]", len(selected), selectedTypesJoined),
		},
		SelectedItems: selected,
		ExcludedItems: excluded,
		OrderingTrace: []string{
			fmt.Sprintf("filter: record_type in [%s]", selectedTypesJoined),
			"filter: lexical overlap with normalized query terms",
			"exclude: retracted and superseded",
			"sort: recall precedence tuple with deterministic tie-breakers",
		},
	}, nil
}

func collectRecallCandidates(records []kernel.MemoryRecord, allowedTypes map[kernel.RecordType]bool, queryTerms []string, superseded map[kernel.MemoryVersionId]bool) ([]recallCandidate, []kernel.ContextItem) {
	var candidates []recallCandidate
	var excluded []kernel.ContextItem

	for i := range records {
		record := &records[i]
		if !allowedTypes[record.RecordType] {
			continue
		}

		if record.TruthStatus == kernel.TruthStatusRetracted {
			excluded = append(excluded, excludedItem(record, "truth_status is retracted"))
			continue
		}

		if superseded[record.MemoryVersionID] {
			excluded = append(excluded, excludedItem(record, "record is superseded by a newer linked record"))
			continue
		}

		terms := recordTerms(record)
		matched := 0
		for _, term := range queryTerms {
			if terms[term] {
				matched++
			}
		}
		if matched == 0 {
			excluded = append(excluded, excludedItem(record, "no lexical overlap with query text"))
			continue
		}

		candidates = append(candidates, recallCandidate{
			record:       record,
			matchedTerms: matched,
			totalTerms:   len(queryTerms),
			lexicalScore: float32(matched) / float32(len(queryTerms)),
			confidence:   record.ConfidenceOrDefault(),
		})
	}

	return candidates, excluded
}

func selectedRecallItem(index int, candidate recallCandidate) kernel.ContextItem {
	return kernel.ContextItem{
		Rank:            index + 1,
		MemoryVersionID: candidate.record.MemoryVersionID,
		MemoryID:        candidate.record.MemoryID,
		RecordType:      candidate.record.RecordType,
		Version:         candidate.record.Version,
		TruthStatus:     candidate.record.TruthStatus,
		Confidence:      candidate.record.Confidence,
		Authority:       candidate.record.Authority,
		Why: kernel.Why{
			Included: true,
			Reasons: []string{
				fmt.Sprintf("lexical relevance matched %d/%d normalized terms", candidate.matchedTerms, candidate.totalTerms),
				fmt.Sprintf("record_type=%s included in recall scope", candidate.record.RecordType),
				"passed active filters (not retracted, not superseded)",
			},
			RuleScores: &kernel.RuleScores{
				ScopeMatch:      candidate.lexicalScore,
				AuthorityRank:   candidate.record.Authority.Rank(),
				TruthStatusRank: candidate.record.TruthStatus.Rank(),
				Confidence:      candidate.confidence,
			},
		},
	}
}

func sortedTypeNames(allowed map[kernel.RecordType]bool) []string {
	names := make([]string, 0, len(allowed))
	for rt := range allowed {
		names = append(names, string(rt))
	}
	sort.Strings(names)
	return names
}
