package allocation

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"alloc-lab/internal/domain"
	"alloc-lab/internal/solver"
)

// degenerateVarianceEps is the threshold below which a residual variance is
// treated as zero.
const degenerateVarianceEps = 1e-12

// SparseHedge builds a sparse minimum-variance-like portfolio from one
// elastic-net regression per asset: asset i's returns regressed on all other
// assets. The raw weight is
//
//	w_i = (1 − Σ_{k≠i} β_{i,k}) / Var(residual_i)
//
// normalized to sum to 1 after all assets are processed. The formula is the
// hedge-ratio heuristic it replicates; it is applied as given.
type SparseHedge struct {
	penalty domain.PenaltySpec

	// varianceFloor, when > 0, substitutes for a near-zero residual
	// variance instead of failing. Off by default.
	varianceFloor float64

	solver  *solver.Solver
	workers int
}

// SparseHedgeOption configures a SparseHedge computer.
type SparseHedgeOption func(*SparseHedge)

// WithVarianceFloor substitutes the floor for near-zero residual variances
// instead of returning ErrDegenerateAsset. An explicit opt-in.
func WithVarianceFloor(floor float64) SparseHedgeOption {
	return func(s *SparseHedge) { s.varianceFloor = floor }
}

// WithWorkers bounds the number of concurrent per-asset regressions.
func WithWorkers(n int) SparseHedgeOption {
	return func(s *SparseHedge) {
		if n > 0 {
			s.workers = n
		}
	}
}

// NewSparseHedge creates a SparseHedge computer with the given penalty.
func NewSparseHedge(penalty domain.PenaltySpec, opts ...SparseHedgeOption) *SparseHedge {
	s := &SparseHedge{
		penalty: penalty,
		solver:  solver.NewSolver(),
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compile-time interface check.
var _ WeightComputer = (*SparseHedge)(nil)

// ComputeWeights runs the per-asset hedge regressions and returns normalized
// weights. The regressions are independent and fan out over a bounded worker
// group; each writes only its own slot, so the result is deterministic.
func (s *SparseHedge) ComputeWeights(ctx context.Context, window *domain.ReturnMatrix) ([]float64, error) {
	n := window.NumAssets()
	if n == 0 {
		return nil, ErrEmptyUniverse
	}
	if n < 2 {
		return nil, fmt.Errorf("need at least 2 assets for hedge regressions, have %d: %w",
			n, solver.ErrInsufficientData)
	}
	t := window.NumDates()
	if t < 2 {
		return nil, fmt.Errorf("%d observations: %w", t, solver.ErrInsufficientData)
	}

	raw := make([]float64, n)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			w, err := s.assetWeight(window, i)
			if err != nil {
				return fmt.Errorf("asset %s: %w", window.Symbols()[i], err)
			}
			raw[i] = w
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := normalize(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// assetWeight regresses asset i on the other assets and converts the fit
// into a raw hedge weight.
func (s *SparseHedge) assetWeight(window *domain.ReturnMatrix, i int) (float64, error) {
	t := window.NumDates()
	n := window.NumAssets()

	y := window.Col(i)
	x := make([][]float64, t)
	for r := 0; r < t; r++ {
		row := window.Row(r)
		preds := make([]float64, 0, n-1)
		for j := 0; j < n; j++ {
			if j != i {
				preds = append(preds, row[j])
			}
		}
		x[r] = preds
	}

	fit, err := s.solver.Fit(x, y, s.penalty)
	if err != nil {
		return 0, err
	}

	v := fit.ResidualVariance()
	if v < degenerateVarianceEps {
		if s.varianceFloor > 0 {
			v = s.varianceFloor
		} else {
			return 0, ErrDegenerateAsset
		}
	}

	return (1 - fit.CoefficientSum()) / v, nil
}

// Type returns the strategy identifier.
func (s *SparseHedge) Type() domain.StrategyType {
	return domain.StrategyTypeSparseHedge
}
