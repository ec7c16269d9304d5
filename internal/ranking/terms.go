package ranking

import (
	"sort"
	"strings"

	"github.com/memkernel/memkernel/internal/kernel"
)

// tokenizeQueryTerms splits value on whitespace, strips every character
// that is not ASCII alphanumeric, underscore, or hyphen, lowercases the
// remainder, drops anything shorter than two characters, and returns the
// deduplicated, sorted set of normalized terms.
func tokenizeQueryTerms(value string) []string {
	seen := make(map[string]bool)
	for _, raw := range strings.Fields(value) {
		var b strings.Builder
		for _, ch := range raw {
			if isTermRune(ch) {
				b.WriteRune(ch)
			}
		}
		normalized := strings.ToLower(b.String())
		if len(normalized) >= 2 {
			seen[normalized] = true
		}
	}

	terms := make([]string, 0, len(seen))
	for term := range seen {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

func isTermRune(ch rune) bool {
	switch {
	case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		return true
	case ch == '_' || ch == '-':
		return true
	default:
		return false
	}
}

// recordTerms normalizes the lexical surface of one record's payload into a
// term set so it can be matched against a recall query's tokenized text.
func recordTerms(record *kernel.MemoryRecord) map[string]bool {
	terms := make(map[string]bool)
	addTerms := func(text string) {
		for _, term := range tokenizeQueryTerms(text) {
			terms[term] = true
		}
	}

	if record.RecordType == kernel.RecordTypeConstraint && record.Payload.Constraint != nil {
		c := record.Payload.Constraint
		addTerms(c.Scope.Actor)
		addTerms(c.Scope.Action)
		addTerms(c.Scope.Resource)
		addTerms(c.Note)
		return terms
	}

	if record.Payload.Summary != nil {
		addTerms(record.Payload.Summary.Summary)
	}
	return terms
}
