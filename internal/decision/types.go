package decision

// Decision represents the final GO/NO-GO result.
type Decision string

const (
	DecisionGO   Decision = "GO"
	DecisionNOGO Decision = "NO-GO"
)

// DecisionInput contains numeric metrics for decision evaluation.
// The candidate strategy is judged against a baseline from the same run.
type DecisionInput struct {
	CandidateStrategy string
	BaselineStrategy  string

	// Annualized volatilities over realized returns
	CandidateVol float64
	BaselineVol  float64

	// Candidate risk metrics
	CandidateSharpe   float64
	CandidateDrawdown float64
	BaselineDrawdown  float64

	// Slot status tallies for the candidate
	OKCount           int
	FailedCount       int
	InsufficientCount int
	TotalSlots        int
}

// CandidateFailureRate is the FAILED fraction over all slots.
func (in DecisionInput) CandidateFailureRate() float64 {
	if in.TotalSlots == 0 {
		return 0
	}
	return float64(in.FailedCount) / float64(in.TotalSlots)
}

// CandidateCoverage is the OK fraction over all slots.
func (in DecisionInput) CandidateCoverage() float64 {
	if in.TotalSlots == 0 {
		return 0
	}
	return float64(in.OKCount) / float64(in.TotalSlots)
}

// CriterionResult represents pass/fail for one criterion.
type CriterionResult struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// DecisionResult contains the final decision with checklist.
type DecisionResult struct {
	Decision   Decision
	Input      DecisionInput
	GOCriteria []CriterionResult // 4 GO criteria
	NOGOChecks []CriterionResult // 3 NO-GO triggers
}
