package allocation

import (
	"context"
	"fmt"

	"alloc-lab/internal/domain"
)

// WeightComputer produces a weight vector from a training window.
// Implementations are stateless with respect to the window and safe for
// concurrent use across dates.
type WeightComputer interface {
	// ComputeWeights returns weights aligned to the window's asset
	// universe, summing to 1.
	ComputeWeights(ctx context.Context, window *domain.ReturnMatrix) ([]float64, error)

	// Type returns the strategy identifier.
	Type() domain.StrategyType
}

// FromConfig creates a WeightComputer from a StrategyConfig.
// Returns ErrUnknownStrategyType for anything outside the closed set.
func FromConfig(cfg domain.StrategyConfig) (WeightComputer, error) {
	switch cfg.StrategyType {
	case domain.StrategyTypeEqualWeight:
		return NewEqualWeight(), nil
	case domain.StrategyTypeShrunkMinVar:
		return NewShrunkMinVariance(cfg.CovShrinkage), nil
	case domain.StrategyTypeSparseHedge:
		if err := cfg.Penalty.Validate(); err != nil {
			return nil, err
		}
		var opts []SparseHedgeOption
		if cfg.VarianceFloor > 0 {
			opts = append(opts, WithVarianceFloor(cfg.VarianceFloor))
		}
		return NewSparseHedge(cfg.Penalty, opts...), nil
	default:
		return nil, fmt.Errorf("%q: %w", cfg.StrategyType, ErrUnknownStrategyType)
	}
}
