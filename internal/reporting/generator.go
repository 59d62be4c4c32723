package reporting

import (
	"context"
	"sort"
	"time"

	"alloc-lab/internal/domain"
	"alloc-lab/internal/metrics"
	"alloc-lab/internal/pipeline"
	"alloc-lab/internal/storage"
)

// Generator produces reports from stored run data.
type Generator struct {
	runStore       storage.BacktestRunStore
	resultStore    storage.RebalanceResultStore
	periodsPerYear float64
	sufficiency    *pipeline.SufficiencyResult
	now            func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(runStore storage.BacktestRunStore, resultStore storage.RebalanceResultStore) *Generator {
	return &Generator{
		runStore:       runStore,
		resultStore:    resultStore,
		periodsPerYear: metrics.PeriodsPerYearDaily,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithPeriodsPerYear overrides the annualization factor.
func (g *Generator) WithPeriodsPerYear(p float64) *Generator {
	if p > 0 {
		g.periodsPerYear = p
	}
	return g
}

// WithSufficiency attaches pre-run sufficiency checks to the report.
func (g *Generator) WithSufficiency(result *pipeline.SufficiencyResult) *Generator {
	g.sufficiency = result
	return g
}

// Generate produces a complete report for one run.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	run, err := g.runStore.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}

	results, err := g.resultStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}

	byStrategy := groupByStrategy(results)

	strategies := make([]string, 0, len(byStrategy))
	for st := range byStrategy {
		strategies = append(strategies, st)
	}
	sort.Strings(strategies)

	report := &Report{
		GeneratedAt:   g.now(),
		StrategyCount: len(strategies),
		RunSummary:    buildRunSummary(run),
		DataQuality:   g.buildDataQuality(),
	}

	for _, st := range strategies {
		series := byStrategy[st]
		report.StrategyMetrics = append(report.StrategyMetrics, g.buildMetricRow(st, series))
		report.Failures = append(report.Failures, buildFailureRows(st, series)...)
		if snap, ok := buildWeightSnapshot(st, series); ok {
			report.WeightSnapshots = append(report.WeightSnapshots, snap)
		}
	}

	return report, nil
}

// groupByStrategy splits a run's results per strategy, preserving date order.
func groupByStrategy(results []*domain.RebalanceResult) map[string][]*domain.RebalanceResult {
	out := make(map[string][]*domain.RebalanceResult)
	for _, r := range results {
		st := string(r.StrategyType)
		out[st] = append(out[st], r)
	}
	return out
}

func buildRunSummary(run *domain.BacktestRun) RunSummary {
	strategies := make([]string, len(run.Strategies))
	for i, s := range run.Strategies {
		strategies[i] = string(s)
	}
	return RunSummary{
		RunID:            run.RunID,
		CreatedAtMs:      run.CreatedAtMs,
		Symbols:          run.Symbols,
		SeparationDateMs: run.SeparationDateMs,
		NumDates:         run.NumDates,
		Strategies:       strategies,
		PenaltyAlpha:     run.Penalty.Alpha,
		PenaltyLambda:    run.Penalty.Lambda,
		PanelFingerprint: run.PanelFingerprint,
	}
}

func (g *Generator) buildDataQuality() DataQualitySection {
	if g.sufficiency == nil {
		return DataQualitySection{}
	}

	section := DataQualitySection{
		AllChecksPassed: g.sufficiency.AllPass,
	}
	for _, check := range g.sufficiency.Checks {
		section.SufficiencyChecks = append(section.SufficiencyChecks, SufficiencyCheckRow{
			Name:      check.Name,
			Threshold: check.Threshold,
			Actual:    check.Actual,
			Pass:      check.Pass,
		})
	}
	return section
}

func (g *Generator) buildMetricRow(strategyID string, series []*domain.RebalanceResult) StrategyMetricRow {
	var returns []float64
	row := StrategyMetricRow{StrategyID: strategyID}

	for _, r := range series {
		switch r.Status {
		case domain.StatusOK:
			row.OKCount++
			returns = append(returns, r.RealizedReturn)
		case domain.StatusInsufficientHistory:
			row.InsufficientCount++
		case domain.StatusFailed:
			row.FailedCount++
		}
	}

	stats := metrics.Compute(returns, g.periodsPerYear)
	row.Periods = stats.Periods
	row.CumulativeReturn = stats.CumulativeReturn
	row.AnnualizedReturn = stats.AnnualizedReturn
	row.AnnualizedVolatility = stats.AnnualizedVolatility
	row.Sharpe = stats.Sharpe
	row.MaxDrawdown = stats.MaxDrawdown
	row.HitRate = stats.HitRate

	return row
}

func buildFailureRows(strategyID string, series []*domain.RebalanceResult) []FailureRow {
	var rows []FailureRow
	for _, r := range series {
		if r.Status == domain.StatusOK {
			continue
		}
		rows = append(rows, FailureRow{
			StrategyID:  strategyID,
			TimestampMs: r.TimestampMs,
			Status:      string(r.Status),
			Reason:      r.FailureReason,
		})
	}
	return rows
}

// buildWeightSnapshot returns the weights of the last OK rebalance.
func buildWeightSnapshot(strategyID string, series []*domain.RebalanceResult) (WeightSnapshotRow, bool) {
	for i := len(series) - 1; i >= 0; i-- {
		r := series[i]
		if r.Status == domain.StatusOK {
			return WeightSnapshotRow{
				StrategyID:  strategyID,
				TimestampMs: r.TimestampMs,
				Weights:     r.Weights,
			}, true
		}
	}
	return WeightSnapshotRow{}, false
}
