// Package panel assembles raw per-asset return observations into the dense,
// date-aligned return matrix the backtest consumes.
package panel

import (
	"errors"
	"fmt"
	"sort"

	"alloc-lab/internal/domain"
)

// Builder errors.
var (
	ErrNoPoints        = errors.New("no return points")
	ErrDuplicatePoint  = errors.New("duplicate (symbol, timestamp) point")
	ErrIncompletePanel = errors.New("panel has missing (symbol, date) entries")
	ErrEmptyAlignment  = errors.New("no date has observations for every asset")
)

// Builder aligns return points into a ReturnMatrix.
type Builder struct {
	// AllowIntersection drops dates where any asset is missing instead of
	// failing. Off by default: a missing entry is an error, never a
	// silent gap.
	AllowIntersection bool
}

// NewBuilder creates a Builder with strict alignment.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build assembles points into a matrix. symbols fixes the universe and
// column order; nil means all observed symbols in sorted order.
func (b *Builder) Build(points []*domain.ReturnPoint, symbols []string) (*domain.ReturnMatrix, error) {
	if len(points) == 0 {
		return nil, ErrNoPoints
	}

	bySymbol := make(map[string]map[int64]float64)
	dateSet := make(map[int64]struct{})
	for _, p := range points {
		series, ok := bySymbol[p.Symbol]
		if !ok {
			series = make(map[int64]float64)
			bySymbol[p.Symbol] = series
		}
		if _, exists := series[p.TimestampMs]; exists {
			return nil, fmt.Errorf("%s at %d: %w", p.Symbol, p.TimestampMs, ErrDuplicatePoint)
		}
		series[p.TimestampMs] = p.Return
		dateSet[p.TimestampMs] = struct{}{}
	}

	if symbols == nil {
		symbols = make([]string, 0, len(bySymbol))
		for s := range bySymbol {
			symbols = append(symbols, s)
		}
		sort.Strings(symbols)
	}

	allDates := make([]int64, 0, len(dateSet))
	for d := range dateSet {
		allDates = append(allDates, d)
	}
	sort.Slice(allDates, func(i, j int) bool { return allDates[i] < allDates[j] })

	var dates []int64
	var rows [][]float64
	for _, d := range allDates {
		row := make([]float64, len(symbols))
		complete := true
		for j, s := range symbols {
			v, ok := bySymbol[s][d]
			if !ok {
				if !b.AllowIntersection {
					return nil, fmt.Errorf("%s at %d: %w", s, d, ErrIncompletePanel)
				}
				complete = false
				break
			}
			row[j] = v
		}
		if complete {
			dates = append(dates, d)
			rows = append(rows, row)
		}
	}
	if len(dates) == 0 {
		return nil, ErrEmptyAlignment
	}

	return domain.NewReturnMatrix(dates, symbols, rows)
}

// PricePoint is one observed asset price.
type PricePoint struct {
	Symbol      string
	TimestampMs int64
	Price       float64
}

// ReturnsFromPrices converts price observations into simple returns:
// r_t = p_t / p_{t-1} − 1 per symbol, in timestamp order. The first
// observation of each symbol produces no return. Non-positive prices are
// rejected.
func ReturnsFromPrices(prices []PricePoint) ([]*domain.ReturnPoint, error) {
	bySymbol := make(map[string][]PricePoint)
	for _, p := range prices {
		if p.Price <= 0 {
			return nil, fmt.Errorf("%s at %d: non-positive price %g", p.Symbol, p.TimestampMs, p.Price)
		}
		bySymbol[p.Symbol] = append(bySymbol[p.Symbol], p)
	}

	symbols := make([]string, 0, len(bySymbol))
	for s := range bySymbol {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	var out []*domain.ReturnPoint
	for _, s := range symbols {
		series := bySymbol[s]
		sort.Slice(series, func(i, j int) bool { return series[i].TimestampMs < series[j].TimestampMs })
		for i := 1; i < len(series); i++ {
			out = append(out, &domain.ReturnPoint{
				Symbol:      s,
				TimestampMs: series[i].TimestampMs,
				Return:      series[i].Price/series[i-1].Price - 1,
			})
		}
	}
	return out, nil
}
