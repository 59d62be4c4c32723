package domain

// RebalanceStatus classifies the outcome of one (date, strategy) computation.
type RebalanceStatus string

// Rebalance status constants.
const (
	// StatusOK means weights were computed and a realized return recorded.
	StatusOK RebalanceStatus = "OK"
	// StatusInsufficientHistory means the training window was too short for
	// the strategy at this date. Not an abort: later dates proceed.
	StatusInsufficientHistory RebalanceStatus = "INSUFFICIENT_HISTORY"
	// StatusFailed means the weight computation itself errored.
	StatusFailed RebalanceStatus = "FAILED"
)

// RebalanceResult records the outcome of one strategy at one rebalancing date.
// Corresponds to rebalance_results table in PostgreSQL.
type RebalanceResult struct {
	RunID        string
	StrategyType StrategyType
	TimestampMs  int64

	Status RebalanceStatus

	// Weights is aligned to the run's asset universe. Nil unless Status is OK.
	Weights []float64

	// RealizedReturn is the dot product of Weights and the return row at
	// TimestampMs. Zero unless Status is OK.
	RealizedReturn float64

	// FailureReason carries the error string when Status is FAILED.
	FailureReason string
}

// BacktestRun describes one completed backtest: its identity, configuration
// and panel fingerprint. Corresponds to backtest_runs table in PostgreSQL.
type BacktestRun struct {
	RunID            string
	CreatedAtMs      int64
	Symbols          []string
	SeparationDateMs int64
	NumDates         int
	Strategies       []StrategyType
	Penalty          PenaltySpec
	PanelFingerprint string
}
