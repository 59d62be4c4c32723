package allocation

import (
	"context"
	"errors"
	"fmt"
	"math"

	"alloc-lab/internal/domain"
	"alloc-lab/internal/solver"
)

// Penalty policy errors.
var (
	ErrEmptyPenaltyGrid = errors.New("penalty grid is empty")
	ErrTooFewFolds      = errors.New("cross-validation needs at least 2 folds")
)

// PenaltyPolicy selects the elastic-net penalty for a training window.
// The fixed policy reproduces the reference behavior of one constant
// penalty for every rebalancing date; cross-validation is the pluggable
// alternative.
type PenaltyPolicy interface {
	Select(ctx context.Context, window *domain.ReturnMatrix) (domain.PenaltySpec, error)
}

// FixedPenalty returns the same penalty for every window.
type FixedPenalty struct {
	Spec domain.PenaltySpec
}

// Select returns the fixed penalty.
func (f FixedPenalty) Select(_ context.Context, _ *domain.ReturnMatrix) (domain.PenaltySpec, error) {
	return f.Spec, f.Spec.Validate()
}

// Compile-time interface checks.
var (
	_ PenaltyPolicy = FixedPenalty{}
	_ PenaltyPolicy = (*CrossValidatedPenalty)(nil)
)

// CrossValidatedPenalty picks the grid entry with the lowest average
// out-of-fold prediction error across the window's hedge regressions.
// Folds are contiguous blocks of rows, so the split respects time ordering.
type CrossValidatedPenalty struct {
	Grid  []domain.PenaltySpec
	Folds int

	solver *solver.Solver
}

// NewCrossValidatedPenalty creates a CV policy over the given grid.
func NewCrossValidatedPenalty(grid []domain.PenaltySpec, folds int) *CrossValidatedPenalty {
	return &CrossValidatedPenalty{
		Grid:   grid,
		Folds:  folds,
		solver: solver.NewSolver(),
	}
}

// Select scores every grid entry and returns the one with the lowest mean
// squared out-of-fold error. Ties go to the earlier grid entry, keeping the
// selection deterministic.
func (c *CrossValidatedPenalty) Select(ctx context.Context, window *domain.ReturnMatrix) (domain.PenaltySpec, error) {
	if len(c.Grid) == 0 {
		return domain.PenaltySpec{}, ErrEmptyPenaltyGrid
	}
	if c.Folds < 2 {
		return domain.PenaltySpec{}, ErrTooFewFolds
	}
	t := window.NumDates()
	n := window.NumAssets()
	if n < 2 || t < 2*c.Folds {
		// Too little data to split: fall back to the first grid entry.
		return c.Grid[0], c.Grid[0].Validate()
	}

	best := c.Grid[0]
	bestScore := math.Inf(1)
	for _, spec := range c.Grid {
		if err := spec.Validate(); err != nil {
			return domain.PenaltySpec{}, err
		}
		if err := ctx.Err(); err != nil {
			return domain.PenaltySpec{}, err
		}
		score, err := c.score(window, spec)
		if err != nil {
			return domain.PenaltySpec{}, fmt.Errorf("scoring %s: %w", spec, err)
		}
		if score < bestScore {
			bestScore = score
			best = spec
		}
	}
	return best, nil
}

// score computes the mean squared out-of-fold error of the hedge
// regressions under one penalty.
func (c *CrossValidatedPenalty) score(window *domain.ReturnMatrix, spec domain.PenaltySpec) (float64, error) {
	t := window.NumDates()
	n := window.NumAssets()
	foldSize := t / c.Folds

	var sse float64
	var count int
	for fold := 0; fold < c.Folds; fold++ {
		lo := fold * foldSize
		hi := lo + foldSize
		if fold == c.Folds-1 {
			hi = t
		}

		for i := 0; i < n; i++ {
			trainX, trainY, testX, testY := c.split(window, i, lo, hi)
			fit, err := c.solver.Fit(trainX, trainY, spec)
			if err != nil {
				return 0, err
			}
			for r := range testX {
				pred := fit.Intercept
				for j, b := range fit.Coefficients {
					pred += b * testX[r][j]
				}
				d := testY[r] - pred
				sse += d * d
				count++
			}
		}
	}
	if count == 0 {
		return math.Inf(1), nil
	}
	return sse / float64(count), nil
}

// split builds train/test design matrices for asset i with rows [lo, hi)
// held out.
func (c *CrossValidatedPenalty) split(window *domain.ReturnMatrix, i, lo, hi int) (trainX [][]float64, trainY []float64, testX [][]float64, testY []float64) {
	t := window.NumDates()
	n := window.NumAssets()

	for r := 0; r < t; r++ {
		row := window.Row(r)
		preds := make([]float64, 0, n-1)
		for j := 0; j < n; j++ {
			if j != i {
				preds = append(preds, row[j])
			}
		}
		if r >= lo && r < hi {
			testX = append(testX, preds)
			testY = append(testY, row[i])
		} else {
			trainX = append(trainX, preds)
			trainY = append(trainY, row[i])
		}
	}
	return trainX, trainY, testX, testY
}
