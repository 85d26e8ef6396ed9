package pipeline

import "go.uber.org/zap"

// RepairKind names a deterministic correction applied to model output during
// generation. Repairs never abort a run; the validator is the final
// authority on whether the corrected result meets the contract.
type RepairKind string

const (
	RepairClampedEvidence     RepairKind = "clamped_evidence"
	RepairReplacedQuote       RepairKind = "replaced_quote"
	RepairSynthesizedEvidence RepairKind = "synthesized_evidence"
	RepairCoercedPolicyType   RepairKind = "coerced_policy_type"
	RepairSubstitutedPolicies RepairKind = "substituted_policy_ids"
	RepairPaddedCriteria      RepairKind = "padded_criteria"
)

// Repair is one recorded correction.
type Repair struct {
	Kind    RepairKind
	Context string
	Detail  string
}

// RepairLog records every correction applied to model output, both to the
// logger and in memory so tests can assert on which repairs fired.
type RepairLog struct {
	log     *zap.Logger
	entries []Repair
}

// NewRepairLog creates a repair log writing through the given logger.
func NewRepairLog(log *zap.Logger) *RepairLog {
	if log == nil {
		log = zap.NewNop()
	}
	return &RepairLog{log: log}
}

// Record notes a repair.
func (r *RepairLog) Record(kind RepairKind, context, detail string) {
	r.entries = append(r.entries, Repair{Kind: kind, Context: context, Detail: detail})
	r.log.Warn("repaired model output",
		zap.String("repair", string(kind)),
		zap.String("context", context),
		zap.String("detail", detail))
}

// Entries returns all recorded repairs in order.
func (r *RepairLog) Entries() []Repair {
	return r.entries
}

// Count returns the number of repairs of the given kind.
func (r *RepairLog) Count(kind RepairKind) int {
	n := 0
	for _, e := range r.entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
