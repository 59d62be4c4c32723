package allocation

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"alloc-lab/internal/domain"
	"alloc-lab/internal/solver"
)

// ShrunkMinVariance computes minimum-variance weights from a
// shrinkage-regularized covariance matrix: solve (Σ + shrinkage·I)·w = 1
// and normalize. The diagonal term keeps the system solvable even when the
// window has fewer observations than assets.
type ShrunkMinVariance struct {
	shrinkage float64
}

// NewShrunkMinVariance creates a computer with the given diagonal shrinkage.
// Zero or negative shrinkage falls back to domain.DefaultCovShrinkage.
func NewShrunkMinVariance(shrinkage float64) *ShrunkMinVariance {
	if shrinkage <= 0 {
		shrinkage = domain.DefaultCovShrinkage
	}
	return &ShrunkMinVariance{shrinkage: shrinkage}
}

// Compile-time interface check.
var _ WeightComputer = (*ShrunkMinVariance)(nil)

// ComputeWeights solves the regularized minimum-variance system for the
// window and returns weights summing to 1.
func (s *ShrunkMinVariance) ComputeWeights(_ context.Context, window *domain.ReturnMatrix) ([]float64, error) {
	n := window.NumAssets()
	if n == 0 {
		return nil, ErrEmptyUniverse
	}
	t := window.NumDates()
	if t < 2 {
		return nil, fmt.Errorf("%d observations for covariance: %w", t, solver.ErrInsufficientData)
	}

	// Sample covariance over assets.
	obs := mat.NewDense(t, n, nil)
	for i := 0; i < t; i++ {
		obs.SetRow(i, window.Row(i))
	}
	cov := mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(cov, obs, nil)

	// Diagonal shrinkage guarantees positive definiteness.
	for i := 0; i < n; i++ {
		cov.SetSym(i, i, cov.At(i, i)+s.shrinkage)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		return nil, ErrSingularMatrix
	}

	ones := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		ones.SetVec(i, 1)
	}
	var raw mat.VecDense
	if err := chol.SolveVecTo(&raw, ones); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrSingularMatrix)
	}

	w := make([]float64, n)
	for i := 0; i < n; i++ {
		v := raw.AtVec(i)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, ErrSingularMatrix
		}
		w[i] = v
	}
	if err := normalize(w); err != nil {
		return nil, err
	}
	return w, nil
}

// Type returns the strategy identifier.
func (s *ShrunkMinVariance) Type() domain.StrategyType {
	return domain.StrategyTypeShrunkMinVar
}
