// Package verification re-executes persisted backtest runs and checks
// that stored rebalance results match the recomputed ones. A run whose
// inputs and configuration are intact must reproduce bit-for-bit up to
// float tolerance; any divergence points at corrupted storage or a
// changed solver.
package verification

import (
	"math"

	"alloc-lab/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons between
// stored and replayed values.
const FloatTolerance = 1e-9

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

// SlotResult contains the comparison outcome for one rebalancing slot.
type SlotResult struct {
	StrategyType domain.StrategyType
	TimestampMs  int64
	Match        bool
	Divergences  []FieldDivergence
}

// Report summarizes the verification of one run.
type Report struct {
	RunID string

	// FingerprintMatch is true when the panel rebuilt from storage has
	// the same fingerprint the run was recorded with. When false the
	// slot comparison is still performed but divergences are expected.
	FingerprintMatch bool

	TotalSlots     int
	MatchedSlots   int
	DivergentSlots int

	Results []SlotResult
}

// Match reports whether the run verified cleanly.
func (r *Report) Match() bool {
	return r.FingerprintMatch && r.DivergentSlots == 0 && r.TotalSlots > 0
}

// CompareResults compares a stored rebalance result against its
// replayed counterpart and returns the divergent fields. Float fields
// use FloatTolerance.
func CompareResults(stored, replayed *domain.RebalanceResult) []FieldDivergence {
	var divergences []FieldDivergence

	if stored.Status != replayed.Status {
		divergences = append(divergences, FieldDivergence{
			Field:    "Status",
			Expected: stored.Status,
			Actual:   replayed.Status,
		})
	}

	if stored.FailureReason != replayed.FailureReason {
		divergences = append(divergences, FieldDivergence{
			Field:    "FailureReason",
			Expected: stored.FailureReason,
			Actual:   replayed.FailureReason,
		})
	}

	if math.Abs(stored.RealizedReturn-replayed.RealizedReturn) > FloatTolerance {
		divergences = append(divergences, FieldDivergence{
			Field:    "RealizedReturn",
			Expected: stored.RealizedReturn,
			Actual:   replayed.RealizedReturn,
		})
	}

	if len(stored.Weights) != len(replayed.Weights) {
		divergences = append(divergences, FieldDivergence{
			Field:    "Weights",
			Expected: len(stored.Weights),
			Actual:   len(replayed.Weights),
		})
		return divergences
	}
	for i := range stored.Weights {
		if math.Abs(stored.Weights[i]-replayed.Weights[i]) > FloatTolerance {
			divergences = append(divergences, FieldDivergence{
				Field:    "Weights",
				Expected: stored.Weights[i],
				Actual:   replayed.Weights[i],
			})
			break
		}
	}

	return divergences
}
