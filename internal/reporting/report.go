package reporting

import "time"

// Report represents the backtest run report structure.
type Report struct {
	// Metadata
	GeneratedAt   time.Time
	StrategyCount int

	// Run Summary
	RunSummary RunSummary

	// Data Quality (sufficiency checks)
	DataQuality DataQualitySection

	// Per-strategy metrics (sorted by strategy_id)
	StrategyMetrics []StrategyMetricRow

	// Non-OK slots (insufficient history and failures)
	Failures []FailureRow

	// Final weight vector per strategy, from the last OK rebalance
	WeightSnapshots []WeightSnapshotRow
}

// RunSummary describes the run configuration.
type RunSummary struct {
	RunID            string
	CreatedAtMs      int64
	Symbols          []string
	SeparationDateMs int64
	NumDates         int
	Strategies       []string
	PenaltyAlpha     float64
	PenaltyLambda    float64
	PanelFingerprint string
}

// DataQualitySection contains data sufficiency checks.
type DataQualitySection struct {
	SufficiencyChecks []SufficiencyCheckRow
	AllChecksPassed   bool
}

// SufficiencyCheckRow represents one sufficiency criterion.
type SufficiencyCheckRow struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// StrategyMetricRow represents one row in the strategy metrics table.
type StrategyMetricRow struct {
	StrategyID           string
	Periods              int
	CumulativeReturn     float64
	AnnualizedReturn     float64
	AnnualizedVolatility float64
	Sharpe               float64
	MaxDrawdown          float64
	HitRate              float64
	OKCount              int
	InsufficientCount    int
	FailedCount          int
}

// FailureRow lists one non-OK rebalance slot.
type FailureRow struct {
	StrategyID  string
	TimestampMs int64
	Status      string
	Reason      string
}

// WeightSnapshotRow carries the most recent successful weight vector.
type WeightSnapshotRow struct {
	StrategyID  string
	TimestampMs int64
	Weights     []float64
}
