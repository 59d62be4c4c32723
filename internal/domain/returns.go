package domain

import (
	"errors"
	"fmt"
	"math"
)

// ReturnPoint represents one asset return observation.
// Corresponds to return_timeseries table in ClickHouse.
type ReturnPoint struct {
	Symbol      string  // asset identifier
	TimestampMs int64   // observation date, Unix ms
	Return      float64 // simple return over the period ending at TimestampMs
}

// ReturnMatrix errors.
var (
	ErrDatesNotAscending = errors.New("dates must be strictly ascending")
	ErrRaggedRows        = errors.New("row width does not match asset universe")
	ErrNonFiniteReturn   = errors.New("return matrix contains NaN or Inf")
)

// ReturnMatrix is a dense panel of returns: ascending unique dates crossed
// with a fixed asset universe, no missing entries. Immutable once constructed;
// Window slices share the backing arrays and must not be written.
type ReturnMatrix struct {
	dates   []int64
	symbols []string
	rows    [][]float64 // rows[i][j] = return of symbols[j] at dates[i]
}

// NewReturnMatrix validates and constructs a ReturnMatrix.
// dates must be strictly ascending; every row must have one finite value
// per symbol.
func NewReturnMatrix(dates []int64, symbols []string, rows [][]float64) (*ReturnMatrix, error) {
	if len(rows) != len(dates) {
		return nil, fmt.Errorf("have %d rows for %d dates: %w", len(rows), len(dates), ErrRaggedRows)
	}
	for i := 1; i < len(dates); i++ {
		if dates[i] <= dates[i-1] {
			return nil, fmt.Errorf("dates[%d]=%d, dates[%d]=%d: %w", i-1, dates[i-1], i, dates[i], ErrDatesNotAscending)
		}
	}
	for i, row := range rows {
		if len(row) != len(symbols) {
			return nil, fmt.Errorf("row %d has %d entries for %d assets: %w", i, len(row), len(symbols), ErrRaggedRows)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("row %d asset %s: %w", i, symbols[j], ErrNonFiniteReturn)
			}
		}
	}

	return &ReturnMatrix{dates: dates, symbols: symbols, rows: rows}, nil
}

// NumDates returns the number of observation dates.
func (m *ReturnMatrix) NumDates() int { return len(m.dates) }

// NumAssets returns the size of the asset universe.
func (m *ReturnMatrix) NumAssets() int { return len(m.symbols) }

// Dates returns the ascending date index. Callers must not mutate.
func (m *ReturnMatrix) Dates() []int64 { return m.dates }

// Symbols returns the asset universe in column order. Callers must not mutate.
func (m *ReturnMatrix) Symbols() []string { return m.symbols }

// Row returns the return row at index i. Callers must not mutate.
func (m *ReturnMatrix) Row(i int) []float64 { return m.rows[i] }

// RowAt returns the return row at exactly the given date.
// The second result is false when the date is not in the index.
func (m *ReturnMatrix) RowAt(timestampMs int64) ([]float64, bool) {
	i, ok := m.indexOf(timestampMs)
	if !ok {
		return nil, false
	}
	return m.rows[i], true
}

// Col copies column j (one asset's full return series) into a new slice.
func (m *ReturnMatrix) Col(j int) []float64 {
	out := make([]float64, len(m.rows))
	for i, row := range m.rows {
		out[i] = row[j]
	}
	return out
}

// Window returns the sub-matrix of all rows strictly before the given date.
// This is the causality boundary: the row at beforeMs itself is excluded.
// The result shares backing storage with the parent.
func (m *ReturnMatrix) Window(beforeMs int64) *ReturnMatrix {
	n := 0
	for n < len(m.dates) && m.dates[n] < beforeMs {
		n++
	}
	return &ReturnMatrix{
		dates:   m.dates[:n],
		symbols: m.symbols,
		rows:    m.rows[:n],
	}
}

// indexOf finds the row index of a date by binary search.
func (m *ReturnMatrix) indexOf(timestampMs int64) (int, bool) {
	lo, hi := 0, len(m.dates)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		switch {
		case m.dates[mid] == timestampMs:
			return mid, true
		case m.dates[mid] < timestampMs:
			lo = mid + 1
		default:
			hi = mid - 1
		}
	}
	return 0, false
}
