// Package allocation computes portfolio weight vectors from a window of
// historical returns. Three strategies are supported: equal weight,
// shrinkage-regularized minimum variance, and a sparse hedging portfolio
// built from per-asset elastic-net regressions.
package allocation

import "errors"

// Allocation errors.
var (
	// ErrEmptyUniverse is returned when the window holds zero assets.
	ErrEmptyUniverse = errors.New("empty asset universe")

	// ErrSingularMatrix is returned when the shrinkage-regularized
	// covariance matrix still cannot be solved. Defensive: the fixed
	// diagonal term should rule this out.
	ErrSingularMatrix = errors.New("regularized covariance matrix is singular")

	// ErrDegenerateAsset is returned when an asset's hedge regression
	// leaves residual variance indistinguishable from zero, typically a
	// duplicated return series. Callers opt into a variance floor
	// explicitly; there is no silent substitution.
	ErrDegenerateAsset = errors.New("degenerate asset: residual variance is zero")

	// ErrZeroWeightSum is returned when raw weights sum to zero and
	// cannot be normalized.
	ErrZeroWeightSum = errors.New("raw weights sum to zero, cannot normalize")

	// ErrUnknownStrategyType is returned by the router for a strategy
	// outside the closed set.
	ErrUnknownStrategyType = errors.New("unknown strategy type")
)

// normalize scales weights in place so they sum to 1.
func normalize(w []float64) error {
	var sum float64
	for _, v := range w {
		sum += v
	}
	if sum == 0 {
		return ErrZeroWeightSum
	}
	for i := range w {
		w[i] /= sum
	}
	return nil
}
