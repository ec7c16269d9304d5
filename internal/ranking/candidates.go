package ranking

import (
	"sort"

	"github.com/memkernel/memkernel/internal/kernel"
)

// policyCandidate is a constraint record that survived scope matching and
// the active-record filters, paired with the scores its precedence tuple
// is built from.
type policyCandidate struct {
	record     *kernel.MemoryRecord
	scopeScore int
	confidence float32
}

// sortPolicyCandidates orders candidates by the fixed policy precedence
// tuple: scope_specificity desc, authority_rank desc, truth_status_rank
// desc, confidence desc, effective_at desc, created_at desc, memory_id asc,
// memory_version_id asc. The final two tie-breakers are over unique ids, so
// the order is total — no candidate pair compares equal.
func sortPolicyCandidates(candidates []policyCandidate) {
	sort.Slice(candidates, func(i, j int) bool {
		return lessPolicyCandidate(candidates[i], candidates[j])
	})
}

func lessPolicyCandidate(lhs, rhs policyCandidate) bool {
	if lhs.scopeScore != rhs.scopeScore {
		return lhs.scopeScore > rhs.scopeScore
	}
	if lr, rr := lhs.record.Authority.Rank(), rhs.record.Authority.Rank(); lr != rr {
		return lr > rr
	}
	if lr, rr := lhs.record.TruthStatus.Rank(), rhs.record.TruthStatus.Rank(); lr != rr {
		return lr > rr
	}
	if lhs.confidence != rhs.confidence {
		return lhs.confidence > rhs.confidence
	}
	if !lhs.record.EffectiveAt.Equal(rhs.record.EffectiveAt) {
		return lhs.record.EffectiveAt.After(rhs.record.EffectiveAt)
	}
	if !lhs.record.CreatedAt.Equal(rhs.record.CreatedAt) {
		return lhs.record.CreatedAt.After(rhs.record.CreatedAt)
	}
	if lhs.record.MemoryID != rhs.record.MemoryID {
		return lhs.record.MemoryID < rhs.record.MemoryID
	}
	return lhs.record.MemoryVersionID < rhs.record.MemoryVersionID
}

// recallCandidate is a decision/preference/event/outcome record that
// matched at least one normalized query term.
type recallCandidate struct {
	record       *kernel.MemoryRecord
	matchedTerms int
	totalTerms   int
	lexicalScore float32
	confidence   float32
}

// sortRecallCandidates orders candidates by the fixed recall precedence
// tuple: lexical_match_count desc, authority_rank desc, truth_status_rank
// desc, confidence desc, effective_at desc, created_at desc, memory_id asc,
// memory_version_id asc.
func sortRecallCandidates(candidates []recallCandidate) {
	sort.Slice(candidates, func(i, j int) bool {
		return lessRecallCandidate(candidates[i], candidates[j])
	})
}

func lessRecallCandidate(lhs, rhs recallCandidate) bool {
	if lhs.matchedTerms != rhs.matchedTerms {
		return lhs.matchedTerms > rhs.matchedTerms
	}
	if lr, rr := lhs.record.Authority.Rank(), rhs.record.Authority.Rank(); lr != rr {
		return lr > rr
	}
	if lr, rr := lhs.record.TruthStatus.Rank(), rhs.record.TruthStatus.Rank(); lr != rr {
		return lr > rr
	}
	if lhs.confidence != rhs.confidence {
		return lhs.confidence > rhs.confidence
	}
	if !lhs.record.EffectiveAt.Equal(rhs.record.EffectiveAt) {
		return lhs.record.EffectiveAt.After(rhs.record.EffectiveAt)
	}
	if !lhs.record.CreatedAt.Equal(rhs.record.CreatedAt) {
		return lhs.record.CreatedAt.After(rhs.record.CreatedAt)
	}
	if lhs.record.MemoryID != rhs.record.MemoryID {
		return lhs.record.MemoryID < rhs.record.MemoryID
	}
	return lhs.record.MemoryVersionID < rhs.record.MemoryVersionID
}

// collectSupersededIDs gathers every memory_version_id named in another
// record's supersedes list, so those records can be excluded from ranking.
func collectSupersededIDs(records []kernel.MemoryRecord) map[kernel.MemoryVersionId]bool {
	superseded := make(map[kernel.MemoryVersionId]bool)
	for _, record := range records {
		for _, id := range record.Supersedes {
			superseded[id] = true
		}
	}
	return superseded
}

// excludedItem builds the ContextItem reported for a record that did not
// make it into the selected list, tagged with the reason it was dropped.
func excludedItem(record *kernel.MemoryRecord, reason string) kernel.ContextItem {
	return kernel.ContextItem{
		Rank:            0,
		MemoryVersionID: record.MemoryVersionID,
		MemoryID:        record.MemoryID,
		RecordType:      record.RecordType,
		Version:         record.Version,
		TruthStatus:     record.TruthStatus,
		Confidence:      record.Confidence,
		Authority:       record.Authority,
		Why: kernel.Why{
			Included: false,
			Reasons:  []string{reason},
		},
	}
}

// assignExclusionRanks orders the excluded list deterministically by
// (memory_id asc, memory_version_id asc) and numbers it 1-based, matching
// selected items' ranking shape even though exclusion order carries no
// precedence meaning.
func assignExclusionRanks(excluded []kernel.ContextItem) {
	sort.Slice(excluded, func(i, j int) bool {
		if excluded[i].MemoryID != excluded[j].MemoryID {
			return excluded[i].MemoryID < excluded[j].MemoryID
		}
		return excluded[i].MemoryVersionID < excluded[j].MemoryVersionID
	})
	for i := range excluded {
		excluded[i].Rank = i + 1
	}
}
