package ranking

import (
	"math"

	"github.com/memkernel/memkernel/internal/kernel"
)

// defaultConfidence is the value substituted for a missing confidence when
// comparing items in the top-precedence equivalence group; it is never
// written back onto a record.
const defaultConfidence float32 = 0.5

// deriveAnswer resolves a policy Context Package's selected items into an
// Allow/Deny/Inconclusive verdict. The top-precedence item and every
// following item that shares its authority, truth_status, and a bit-equal
// confidence form one equivalence group; the verdict is Inconclusive if
// that group contains both an allow and a deny effect, Allow or Deny if it
// contains only one, and Inconclusive with no active constraints found if
// selected is empty.
func deriveAnswer(selected []kernel.ContextItem, records []kernel.MemoryRecord) kernel.Answer {
	if len(selected) == 0 {
		return kernel.Answer{
			Result: kernel.AnswerInconclusive,
			Why:    "No active matching constraints were found",
		}
	}

	top := selected[0]
	var topRankedIDs []kernel.MemoryVersionId

	for _, item := range selected {
		sameConfidence := confidenceBits(item.Confidence) == confidenceBits(top.Confidence)
		if item.Rank == 1 {
			topRankedIDs = append(topRankedIDs, item.MemoryVersionID)
			continue
		}

		if item.Authority == top.Authority && item.TruthStatus == top.TruthStatus && sameConfidence {
			topRankedIDs = append(topRankedIDs, item.MemoryVersionID)
		} else {
			break
		}
	}

	hasAllow, hasDeny := false, false
	for _, id := range topRankedIDs {
		effect, ok := constraintEffectByVersionID(records, id)
		if !ok {
			continue
		}
		switch effect {
		case kernel.ConstraintEffectAllow:
			hasAllow = true
		case kernel.ConstraintEffectDeny:
			hasDeny = true
		}
	}

	switch {
	case hasAllow && hasDeny:
		return kernel.Answer{Result: kernel.AnswerInconclusive, Why: "Top-precedence constraints conflict (allow and deny)"}
	case hasAllow:
		return kernel.Answer{Result: kernel.AnswerAllow, Why: "Highest-precedence active constraint allows the action"}
	case hasDeny:
		return kernel.Answer{Result: kernel.AnswerDeny, Why: "Highest-precedence active constraint denies the action"}
	default:
		return kernel.Answer{Result: kernel.AnswerInconclusive, Why: "No effective constraint decision could be derived"}
	}
}

// confidenceBits compares confidences by their exact IEEE-754 bit pattern,
// not by floating-point equality, matching f32::to_bits() in the original
// ranking engine so two answers derived from the same bytes always agree.
func confidenceBits(confidence *float32) uint32 {
	value := defaultConfidence
	if confidence != nil {
		value = *confidence
	}
	return math.Float32bits(value)
}

func constraintEffectByVersionID(records []kernel.MemoryRecord, id kernel.MemoryVersionId) (kernel.ConstraintEffect, bool) {
	for i := range records {
		record := &records[i]
		if record.MemoryVersionID != id {
			continue
		}
		if record.RecordType == kernel.RecordTypeConstraint && record.Payload.Constraint != nil {
			return record.Payload.Constraint.Effect, true
		}
		return "", false
	}
	return "", false
}
