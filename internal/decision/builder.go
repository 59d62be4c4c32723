package decision

import (
	"errors"

	"alloc-lab/internal/backtest"
	"alloc-lab/internal/domain"
	"alloc-lab/internal/metrics"
)

// ErrStrategyNotInRun is returned when a strategy was not part of the backtest run.
var ErrStrategyNotInRun = errors.New("strategy not in backtest run")

// Builder constructs DecisionInput from backtest results.
type Builder struct {
	periodsPerYear float64
}

// NewBuilder creates a new decision input builder.
func NewBuilder(periodsPerYear float64) *Builder {
	if periodsPerYear <= 0 {
		periodsPerYear = metrics.PeriodsPerYearDaily
	}
	return &Builder{periodsPerYear: periodsPerYear}
}

// Build creates DecisionInput comparing a candidate strategy against a
// baseline from the same run. Both strategies must have been backtested.
func (b *Builder) Build(results *backtest.Results, candidate, baseline domain.StrategyType) (*DecisionInput, error) {
	candidateSeries := results.Series(candidate)
	baselineSeries := results.Series(baseline)
	if candidateSeries == nil || baselineSeries == nil {
		return nil, ErrStrategyNotInRun
	}

	candidateStats := metrics.Compute(results.RealizedReturns(candidate), b.periodsPerYear)
	baselineStats := metrics.Compute(results.RealizedReturns(baseline), b.periodsPerYear)

	counts := results.StatusCounts(candidate)

	return &DecisionInput{
		CandidateStrategy: string(candidate),
		BaselineStrategy:  string(baseline),

		CandidateVol: candidateStats.AnnualizedVolatility,
		BaselineVol:  baselineStats.AnnualizedVolatility,

		CandidateSharpe:   candidateStats.Sharpe,
		CandidateDrawdown: candidateStats.MaxDrawdown,
		BaselineDrawdown:  baselineStats.MaxDrawdown,

		OKCount:           counts[domain.StatusOK],
		FailedCount:       counts[domain.StatusFailed],
		InsufficientCount: counts[domain.StatusInsufficientHistory],
		TotalSlots:        len(candidateSeries),
	}, nil
}
