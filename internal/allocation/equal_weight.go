package allocation

import (
	"context"

	"alloc-lab/internal/domain"
)

// EqualWeight assigns 1/N to every asset. No optimization, no state.
type EqualWeight struct{}

// NewEqualWeight creates an EqualWeight computer.
func NewEqualWeight() *EqualWeight {
	return &EqualWeight{}
}

// Compile-time interface check.
var _ WeightComputer = (*EqualWeight)(nil)

// ComputeWeights returns a vector of N entries each equal to 1/N.
func (e *EqualWeight) ComputeWeights(_ context.Context, window *domain.ReturnMatrix) ([]float64, error) {
	n := window.NumAssets()
	if n == 0 {
		return nil, ErrEmptyUniverse
	}

	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	return w, nil
}

// Type returns the strategy identifier.
func (e *EqualWeight) Type() domain.StrategyType {
	return domain.StrategyTypeEqualWeight
}
