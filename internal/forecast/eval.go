// Package forecast evaluates a penalized predictive regression out of
// sample: fit on the earlier part of the sample, score on the later part.
package forecast

import (
	"errors"
	"fmt"

	"alloc-lab/internal/domain"
	"alloc-lab/internal/solver"
)

// Evaluation errors.
var (
	ErrBadTestFraction = errors.New("test fraction must be in (0, 1)")
	ErrTooFewRows      = errors.New("not enough rows for a train/test split")
)

// Evaluation holds out-of-sample scores for one predictive fit.
type Evaluation struct {
	Penalty   domain.PenaltySpec
	TrainSize int
	TestSize  int

	// MSE is the mean squared prediction error on the test rows.
	MSE float64

	// HitRatio is the fraction of test rows where the prediction and the
	// realized value share a sign. Zero-valued actuals count as misses.
	HitRatio float64
}

// Evaluate splits (x, y) chronologically, fits an elastic net on the
// training part and scores the held-out tail. Rows must already be in time
// order; the split never lets test rows into the fit.
func Evaluate(x [][]float64, y []float64, penalty domain.PenaltySpec, testFraction float64) (*Evaluation, error) {
	if testFraction <= 0 || testFraction >= 1 {
		return nil, fmt.Errorf("%g: %w", testFraction, ErrBadTestFraction)
	}
	n := len(x)
	if n != len(y) {
		return nil, solver.ErrDimensionMismatch
	}

	testSize := int(float64(n) * testFraction)
	if testSize < 1 || n-testSize < 2 {
		return nil, fmt.Errorf("%d rows at test fraction %g: %w", n, testFraction, ErrTooFewRows)
	}
	split := n - testSize

	fit, err := solver.NewSolver().Fit(x[:split], y[:split], penalty)
	if err != nil {
		return nil, fmt.Errorf("fit training rows: %w", err)
	}

	var sse float64
	hits := 0
	for i := split; i < n; i++ {
		pred := fit.Intercept
		for j, b := range fit.Coefficients {
			pred += b * x[i][j]
		}
		d := y[i] - pred
		sse += d * d
		if (pred > 0 && y[i] > 0) || (pred < 0 && y[i] < 0) {
			hits++
		}
	}

	return &Evaluation{
		Penalty:   penalty,
		TrainSize: split,
		TestSize:  testSize,
		MSE:       sse / float64(testSize),
		HitRatio:  float64(hits) / float64(testSize),
	}, nil
}
