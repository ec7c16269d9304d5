// Package ranking builds deterministic Context Packages from a snapshot of
// memory records: policy queries (constraint resolution with an Allow/Deny/
// Inconclusive answer) and recall queries (lexical relevance across
// decision/preference/event/outcome records).
package ranking

import "github.com/memkernel/memkernel/internal/kernel"

// DefaultTieBreakers is the fixed precedence order for policy queries.
func DefaultTieBreakers() []string {
	return []string{
		"scope_specificity desc",
		"authority_rank desc",
		"truth_status_rank desc",
		"confidence desc",
		"effective_at desc",
		"created_at desc",
		"memory_id asc",
		"memory_version_id asc",
	}
}

// DefaultRecallTieBreakers is the fixed precedence order for recall queries.
func DefaultRecallTieBreakers() []string {
	return []string{
		"lexical_match_count desc",
		"authority_rank desc",
		"truth_status_rank desc",
		"confidence desc",
		"effective_at desc",
		"created_at desc",
		"memory_id asc",
		"memory_version_id asc",
	}
}

// DefaultRecallRecordTypes is the set of record types a recall query scans
// when the caller does not narrow it explicitly.
func DefaultRecallRecordTypes() []kernel.RecordType {
	return []kernel.RecordType{
		kernel.RecordTypeDecision,
		kernel.RecordTypePreference,
		kernel.RecordTypeEvent,
		kernel.RecordTypeOutcome,
	}
}

// scopeSpecificity scores how specifically a constraint's scope matches the
// query's actor/action/resource: 1 point per exact field match, "*" costs
// nothing and matches anything, and any other mismatch disqualifies the
// record entirely (reported as ok=false).
func scopeSpecificity(scope kernel.ConstraintScope, query kernel.QueryRequest) (score int, ok bool) {
	pairs := []struct{ field, queryValue string }{
		{scope.Actor, query.Actor},
		{scope.Action, query.Action},
		{scope.Resource, query.Resource},
	}

	for _, p := range pairs {
		switch {
		case p.field == p.queryValue:
			score++
		case p.field == "*":
			// wildcard matches anything, contributes no specificity
		default:
			return 0, false
		}
	}
	return score, true
}
