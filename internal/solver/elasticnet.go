// Package solver implements penalized linear regression by coordinate
// descent. The objective is the standard elastic net for a Gaussian response:
//
//	(1/(2n))·‖y − Xβ‖² + λ·(α·‖β‖₁ + (1−α)/2·‖β‖₂²)
//
// Predictors are standardized internally; reported coefficients are on the
// original scale with an explicit intercept.
package solver

import (
	"errors"
	"fmt"
	"math"

	"alloc-lab/internal/domain"
)

// Solver errors.
var (
	// ErrInsufficientData is returned when there are too few observations
	// or no predictor carries any variation.
	ErrInsufficientData = errors.New("insufficient data to fit regression")

	// ErrDimensionMismatch is returned when X and y disagree on length.
	ErrDimensionMismatch = errors.New("predictor and response dimensions do not match")

	// ErrNotConverged is returned when coordinate descent exhausts its
	// iteration budget without meeting the tolerance.
	ErrNotConverged = errors.New("coordinate descent did not converge")
)

// Defaults for the coordinate descent loop.
const (
	defaultTol     = 1e-7
	defaultMaxIter = 1000
)

// Fit holds the output of one elastic-net regression.
// Created fresh per call; the solver keeps no reference to it.
type Fit struct {
	// Coefficients are on the original predictor scale, one per column of X.
	// Predictors with zero variance get a zero coefficient.
	Coefficients []float64

	// Intercept absorbs the centering of predictors and response.
	Intercept float64

	// Fitted is Xβ + intercept, one value per observation.
	Fitted []float64

	// Residuals is y − Fitted.
	Residuals []float64

	// Iterations is the number of full coordinate sweeps performed.
	Iterations int
}

// ResidualVariance returns the population variance of the residuals.
func (f *Fit) ResidualVariance() float64 {
	n := len(f.Residuals)
	if n == 0 {
		return 0
	}
	var mean float64
	for _, r := range f.Residuals {
		mean += r
	}
	mean /= float64(n)
	var ss float64
	for _, r := range f.Residuals {
		d := r - mean
		ss += d * d
	}
	return ss / float64(n)
}

// CoefficientSum returns the sum of all coefficients.
func (f *Fit) CoefficientSum() float64 {
	var s float64
	for _, b := range f.Coefficients {
		s += b
	}
	return s
}

// Solver fits elastic-net regressions with a fixed tolerance and iteration
// budget. Safe for concurrent use: Fit keeps all state on the stack.
type Solver struct {
	Tol     float64
	MaxIter int
}

// NewSolver returns a Solver with default tolerance and iteration budget.
func NewSolver() *Solver {
	return &Solver{Tol: defaultTol, MaxIter: defaultMaxIter}
}

// Fit minimizes the elastic-net objective for predictor matrix x
// (n observations × p predictors) and response y.
// Predictors are cycled in column order, so the result is deterministic.
func (s *Solver) Fit(x [][]float64, y []float64, penalty domain.PenaltySpec) (*Fit, error) {
	if err := penalty.Validate(); err != nil {
		return nil, err
	}

	n := len(x)
	if n != len(y) {
		return nil, fmt.Errorf("%d rows vs %d responses: %w", n, len(y), ErrDimensionMismatch)
	}
	if n < 2 {
		return nil, fmt.Errorf("n=%d observations: %w", n, ErrInsufficientData)
	}
	p := len(x[0])
	for i, row := range x {
		if len(row) != p {
			return nil, fmt.Errorf("row %d has %d predictors, expected %d: %w", i, len(row), p, ErrDimensionMismatch)
		}
	}

	// Standardize predictors: center and scale each column so that
	// (1/n)·Σ xs² = 1. Columns without variation are frozen at zero.
	colMean := make([]float64, p)
	colScale := make([]float64, p)
	active := make([]bool, p)
	anyActive := false
	for j := 0; j < p; j++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += x[i][j]
		}
		colMean[j] = sum / float64(n)

		var ss float64
		for i := 0; i < n; i++ {
			d := x[i][j] - colMean[j]
			ss += d * d
		}
		scale := math.Sqrt(ss / float64(n))
		colScale[j] = scale
		if scale > 0 {
			active[j] = true
			anyActive = true
		}
	}
	if !anyActive {
		return nil, fmt.Errorf("all predictors constant: %w", ErrInsufficientData)
	}

	// Standardized design matrix, column-major for the inner loop.
	xs := make([][]float64, p)
	for j := 0; j < p; j++ {
		col := make([]float64, n)
		if active[j] {
			for i := 0; i < n; i++ {
				col[i] = (x[i][j] - colMean[j]) / colScale[j]
			}
		}
		xs[j] = col
	}

	// Center the response.
	var yMean float64
	for _, v := range y {
		yMean += v
	}
	yMean /= float64(n)
	resid := make([]float64, n)
	for i := 0; i < n; i++ {
		resid[i] = y[i] - yMean
	}

	// Coordinate descent with soft-thresholding. resid is maintained as
	// ycentered − Xs·β throughout.
	beta := make([]float64, p)
	threshold := penalty.Lambda * penalty.Alpha
	denom := 1 + penalty.Lambda*(1-penalty.Alpha)

	iter := 0
	for ; iter < s.MaxIter; iter++ {
		maxDelta := 0.0
		for j := 0; j < p; j++ {
			if !active[j] {
				continue
			}
			col := xs[j]

			// Partial residual correlation for predictor j. The column is
			// unit-scaled, so (1/n)·Σ col² = 1 and the old coefficient
			// adds back directly.
			var dot float64
			for i := 0; i < n; i++ {
				dot += col[i] * resid[i]
			}
			rho := dot/float64(n) + beta[j]

			next := softThreshold(rho, threshold) / denom
			delta := next - beta[j]
			if delta != 0 {
				for i := 0; i < n; i++ {
					resid[i] -= col[i] * delta
				}
				beta[j] = next
			}
			if d := math.Abs(delta); d > maxDelta {
				maxDelta = d
			}
		}
		if maxDelta < s.Tol {
			iter++
			break
		}
	}
	if iter >= s.MaxIter {
		return nil, fmt.Errorf("after %d sweeps: %w", s.MaxIter, ErrNotConverged)
	}

	// Rescale to the original predictor units.
	coefs := make([]float64, p)
	intercept := yMean
	for j := 0; j < p; j++ {
		if !active[j] {
			continue
		}
		coefs[j] = beta[j] / colScale[j]
		intercept -= coefs[j] * colMean[j]
	}

	fitted := make([]float64, n)
	residuals := make([]float64, n)
	for i := 0; i < n; i++ {
		v := intercept
		for j := 0; j < p; j++ {
			v += coefs[j] * x[i][j]
		}
		fitted[i] = v
		residuals[i] = y[i] - v
	}

	return &Fit{
		Coefficients: coefs,
		Intercept:    intercept,
		Fitted:       fitted,
		Residuals:    residuals,
		Iterations:   iter,
	}, nil
}

// softThreshold is S(z, t) = sign(z)·max(|z|−t, 0).
func softThreshold(z, t float64) float64 {
	switch {
	case z > t:
		return z - t
	case z < -t:
		return z + t
	default:
		return 0
	}
}
