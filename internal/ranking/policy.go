package ranking

import (
	"fmt"
	"strings"

	"github.com/memkernel/memkernel/internal/kernel"
)

// rulesetVersionPolicy is the ruleset tag stamped into every policy Context
// Package's determinism metadata; bumping it is how a future ordering
// change would be made auditable in replayed packages.
const rulesetVersionPolicy = "ordering.v1"

// BuildContextPackage ranks every constraint record whose scope matches the
// query's actor/action/resource, excludes retracted and superseded
// records, and returns the resulting Context Package with a derived Allow/
// Deny/Inconclusive answer.
func BuildContextPackage(records []kernel.MemoryRecord, query kernel.QueryRequest, snapshotID string) (kernel.ContextPackage, error) {
	if strings.TrimSpace(snapshotID) == "" {
		return kernel.ContextPackage{}, kernel.NewQueryError("snapshot_id MUST be provided for deterministic replay")
	}

	for i := range records {
		if err := records[i].Validate(); err != nil {
			return kernel.ContextPackage{}, err
		}
	}

	superseded := collectSupersededIDs(records)
	candidates, excluded := collectPolicyCandidates(records, query, superseded)

	sortPolicyCandidates(candidates)
	selected := make([]kernel.ContextItem, 0, len(candidates))
	for i, candidate := range candidates {
		selected = append(selected, selectedPolicyItem(i, candidate))
	}
	assignExclusionRanks(excluded)

	answer := deriveAnswer(selected, records)

	return kernel.ContextPackage{
		ContextPackageID: makeContextPackageID(query, snapshotID),
		GeneratedAt:      query.AsOf,
		Query:            query,
		Determinism: kernel.DeterminismMetadata{
			RulesetVersion: rulesetVersionPolicy,
			SnapshotID:     snapshotID,
			TieBreakers:    DefaultTieBreakers(),
		},
		Answer:        answer,
		SelectedItems: selected,
		ExcludedItems: excluded,
		OrderingTrace: []string{
			"filter: record_type=constraint",
			"filter: scope_match(actor, action, resource)",
			"exclude: retracted and superseded",
			"sort: precedence tuple with deterministic tie-breakers",
		},
	}, nil
}

func collectPolicyCandidates(records []kernel.MemoryRecord, query kernel.QueryRequest, superseded map[kernel.MemoryVersionId]bool) ([]policyCandidate, []kernel.ContextItem) {
	var candidates []policyCandidate
	var excluded []kernel.ContextItem

	for i := range records {
		record := &records[i]
		if record.RecordType != kernel.RecordTypeConstraint || record.Payload.Constraint == nil {
			continue
		}

		scopeScore, ok := scopeSpecificity(record.Payload.Constraint.Scope, query)
		if !ok {
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

		candidates = append(candidates, policyCandidate{
			record:     record,
			scopeScore: scopeScore,
			confidence: record.ConfidenceOrDefault(),
		})
	}

	return candidates, excluded
}

func selectedPolicyItem(index int, candidate policyCandidate) kernel.ContextItem {
	confidence := candidate.confidence
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
				fmt.Sprintf("scope specificity score=%d for actor/action/resource", candidate.scopeScore),
				"passed active filters (not retracted, not superseded)",
			},
			RuleScores: &kernel.RuleScores{
				ScopeMatch:      float32(candidate.scopeScore) / 3.0,
				AuthorityRank:   candidate.record.Authority.Rank(),
				TruthStatusRank: candidate.record.TruthStatus.Rank(),
				Confidence:      confidence,
			},
		},
	}
}

// makeContextPackageID derives the stable id for a Context Package from its
// query's as_of instant and the snapshot it was computed against, so
// replaying the same snapshot at the same as_of always yields the same id.
func makeContextPackageID(query kernel.QueryRequest, snapshotID string) string {
	asOf := query.AsOf.Format("2006-01-02T15:04:05.999999999Z07:00")
	return fmt.Sprintf("cpkg_%s_%s", asOf, snapshotID)
}
