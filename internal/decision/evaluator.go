package decision

import "fmt"

// Decision thresholds.
const (
	// volReductionRatio is the maximum candidate/baseline volatility ratio.
	volReductionRatio = 0.9
	// minCoverage is the minimum OK-slot fraction.
	minCoverage = 0.8
	// maxDrawdownRatio caps candidate drawdown relative to baseline.
	maxDrawdownRatio = 1.2
	// maxFailureRate triggers NO-GO above this FAILED fraction.
	maxFailureRate = 0.1
	// maxInsufficientRate triggers NO-GO above this INSUFFICIENT_HISTORY fraction.
	maxInsufficientRate = 0.5
)

// Evaluator evaluates decision criteria.
type Evaluator struct{}

// NewEvaluator creates a new decision evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate produces DecisionResult from DecisionInput.
// GO if ALL criteria pass and NO NO-GO triggers.
// NO-GO if ANY criterion fails or ANY trigger fires.
func (e *Evaluator) Evaluate(input DecisionInput) *DecisionResult {
	goCriteria := e.evaluateGOCriteria(input)
	nogoChecks := e.evaluateNOGOTriggers(input)

	allGOPass := true
	for _, c := range goCriteria {
		if !c.Pass {
			allGOPass = false
			break
		}
	}

	anyNOGOTriggered := false
	for _, c := range nogoChecks {
		if !c.Pass { // Pass=false means triggered
			anyNOGOTriggered = true
			break
		}
	}

	decision := DecisionGO
	if !allGOPass || anyNOGOTriggered {
		decision = DecisionNOGO
	}

	return &DecisionResult{
		Decision:   decision,
		Input:      input,
		GOCriteria: goCriteria,
		NOGOChecks: nogoChecks,
	}
}

// evaluateGOCriteria evaluates the 4 GO criteria.
func (e *Evaluator) evaluateGOCriteria(input DecisionInput) []CriterionResult {
	criteria := make([]CriterionResult, 4)

	// 1. Volatility reduction vs baseline
	volPass := false
	var volActual string
	if input.BaselineVol > 0 {
		ratio := input.CandidateVol / input.BaselineVol
		volPass = ratio <= volReductionRatio
		volActual = fmt.Sprintf("ratio=%.3f", ratio)
	} else {
		volActual = fmt.Sprintf("CandidateVol=%.4f, BaselineVol=%.4f", input.CandidateVol, input.BaselineVol)
	}
	criteria[0] = CriterionResult{
		Name:      "Volatility reduction",
		Threshold: fmt.Sprintf("candidate/baseline <= %.2f", volReductionRatio),
		Actual:    volActual,
		Pass:      volPass,
	}

	// 2. Positive risk-adjusted return
	criteria[1] = CriterionResult{
		Name:      "Positive Sharpe",
		Threshold: "> 0",
		Actual:    fmt.Sprintf("%.4f", input.CandidateSharpe),
		Pass:      input.CandidateSharpe > 0,
	}

	// 3. Coverage: enough OK slots to trust the series
	coverage := input.CandidateCoverage()
	criteria[2] = CriterionResult{
		Name:      "Slot coverage",
		Threshold: fmt.Sprintf(">= %.0f%%", minCoverage*100),
		Actual:    fmt.Sprintf("%.1f%%", coverage*100),
		Pass:      coverage >= minCoverage,
	}

	// 4. Drawdown not materially worse than baseline
	ddPass := false
	var ddActual string
	if input.BaselineDrawdown > 0 {
		ratio := input.CandidateDrawdown / input.BaselineDrawdown
		ddPass = ratio <= maxDrawdownRatio
		ddActual = fmt.Sprintf("ratio=%.3f", ratio)
	} else {
		// Baseline never drew down: candidate must not either
		ddPass = input.CandidateDrawdown == 0
		ddActual = fmt.Sprintf("CandidateDrawdown=%.4f", input.CandidateDrawdown)
	}
	criteria[3] = CriterionResult{
		Name:      "Drawdown containment",
		Threshold: fmt.Sprintf("candidate/baseline <= %.2f", maxDrawdownRatio),
		Actual:    ddActual,
		Pass:      ddPass,
	}

	return criteria
}

// evaluateNOGOTriggers evaluates the 3 NO-GO triggers.
// Pass=true means NOT triggered, Pass=false means triggered.
func (e *Evaluator) evaluateNOGOTriggers(input DecisionInput) []CriterionResult {
	checks := make([]CriterionResult, 3)

	// 1. High failure rate triggers NO-GO
	failureRate := input.CandidateFailureRate()
	checks[0] = CriterionResult{
		Name:      "High failure rate",
		Threshold: fmt.Sprintf("> %.0f%%", maxFailureRate*100),
		Actual:    fmt.Sprintf("%.1f%%", failureRate*100),
		Pass:      failureRate <= maxFailureRate,
	}

	// 2. Run dominated by insufficient history triggers NO-GO
	insufficientRate := 0.0
	if input.TotalSlots > 0 {
		insufficientRate = float64(input.InsufficientCount) / float64(input.TotalSlots)
	}
	checks[1] = CriterionResult{
		Name:      "Insufficient history dominates",
		Threshold: fmt.Sprintf("> %.0f%%", maxInsufficientRate*100),
		Actual:    fmt.Sprintf("%.1f%%", insufficientRate*100),
		Pass:      insufficientRate <= maxInsufficientRate,
	}

	// 3. Hedging increased volatility triggers NO-GO
	triggered := input.BaselineVol > 0 && input.CandidateVol > input.BaselineVol
	checks[2] = CriterionResult{
		Name:      "Volatility increased",
		Threshold: "candidate > baseline",
		Actual:    fmt.Sprintf("candidate=%.4f, baseline=%.4f", input.CandidateVol, input.BaselineVol),
		Pass:      !triggered,
	}

	return checks
}
