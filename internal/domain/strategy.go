package domain

// StrategyType identifies a weighting strategy.
type StrategyType string

// Strategy type constants. The set is closed: the allocation router rejects
// anything else.
const (
	StrategyTypeEqualWeight  StrategyType = "EQUAL_WEIGHT"
	StrategyTypeShrunkMinVar StrategyType = "SHRUNK_MIN_VARIANCE"
	StrategyTypeSparseHedge  StrategyType = "SPARSE_HEDGE"
)

// DefaultCovShrinkage is the diagonal term added to the sample covariance
// before solving for minimum-variance weights.
const DefaultCovShrinkage = 0.01

// StrategyConfig holds the parameters of one strategy instance.
// Only the fields relevant to StrategyType are consulted.
type StrategyConfig struct {
	StrategyType StrategyType

	// Penalty applies to SPARSE_HEDGE.
	Penalty PenaltySpec

	// CovShrinkage applies to SHRUNK_MIN_VARIANCE. Zero means
	// DefaultCovShrinkage.
	CovShrinkage float64

	// VarianceFloor, when > 0, substitutes for a near-zero residual
	// variance in SPARSE_HEDGE instead of failing the date. Off by
	// default: degenerate assets surface as errors.
	VarianceFloor float64
}

// AllStrategyTypes lists the closed strategy set in reporting order.
func AllStrategyTypes() []StrategyType {
	return []StrategyType{
		StrategyTypeEqualWeight,
		StrategyTypeShrunkMinVar,
		StrategyTypeSparseHedge,
	}
}
