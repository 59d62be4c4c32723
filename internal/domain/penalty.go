package domain

import (
	"errors"
	"fmt"
)

// Penalty validation errors.
var (
	ErrAlphaOutOfRange = errors.New("alpha must be in [0, 1]")
	ErrNegativeLambda  = errors.New("lambda must be >= 0")
)

// PenaltySpec describes an elastic-net penalty: Alpha mixes the L1 and L2
// terms (1 = pure lasso, 0 = pure ridge) and Lambda scales overall strength.
// Owned by the caller; solvers never mutate it.
type PenaltySpec struct {
	Alpha  float64
	Lambda float64
}

// Validate checks the penalty parameters.
func (p PenaltySpec) Validate() error {
	if p.Alpha < 0 || p.Alpha > 1 {
		return fmt.Errorf("alpha=%g: %w", p.Alpha, ErrAlphaOutOfRange)
	}
	if p.Lambda < 0 {
		return fmt.Errorf("lambda=%g: %w", p.Lambda, ErrNegativeLambda)
	}
	return nil
}

// String renders the penalty for run IDs and logs.
func (p PenaltySpec) String() string {
	return fmt.Sprintf("alpha=%g,lambda=%g", p.Alpha, p.Lambda)
}
