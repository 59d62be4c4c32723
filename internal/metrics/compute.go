// Package metrics computes performance statistics over realized return
// series produced by the backtest.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// PeriodsPerYearDaily is the usual annualization factor for a daily panel.
const PeriodsPerYearDaily = 252

// SeriesStats summarizes one strategy's realized return series.
type SeriesStats struct {
	Periods int

	// CumulativeReturn is the compounded return over the whole series.
	CumulativeReturn float64

	MeanReturn float64
	// Volatility is the sample standard deviation of per-period returns.
	Volatility float64

	// AnnualizedReturn and AnnualizedVolatility scale by the configured
	// periods-per-year factor.
	AnnualizedReturn     float64
	AnnualizedVolatility float64

	// Sharpe is annualized mean over annualized volatility, zero risk-free
	// rate. Zero when volatility is zero.
	Sharpe float64

	// MaxDrawdown is the worst peak-to-trough decline of the compounded
	// equity curve, reported as a positive fraction.
	MaxDrawdown float64

	// HitRate is the fraction of periods with a positive return.
	HitRate float64

	BestPeriod  float64
	WorstPeriod float64
}

// Compute calculates all statistics for a return series in chronological
// order. Returns the zero value for an empty series.
func Compute(returns []float64, periodsPerYear float64) SeriesStats {
	n := len(returns)
	if n == 0 {
		return SeriesStats{}
	}

	mean := stat.Mean(returns, nil)
	var vol float64
	if n >= 2 {
		vol = math.Sqrt(stat.Variance(returns, nil))
	}

	positive := 0
	best := returns[0]
	worst := returns[0]
	cumulative := 1.0
	for _, r := range returns {
		cumulative *= 1 + r
		if r > 0 {
			positive++
		}
		if r > best {
			best = r
		}
		if r < worst {
			worst = r
		}
	}

	s := SeriesStats{
		Periods:              n,
		CumulativeReturn:     cumulative - 1,
		MeanReturn:           mean,
		Volatility:           vol,
		AnnualizedReturn:     mean * periodsPerYear,
		AnnualizedVolatility: vol * math.Sqrt(periodsPerYear),
		MaxDrawdown:          maxDrawdown(returns),
		HitRate:              float64(positive) / float64(n),
		BestPeriod:           best,
		WorstPeriod:          worst,
	}
	if s.AnnualizedVolatility > 0 {
		s.Sharpe = s.AnnualizedReturn / s.AnnualizedVolatility
	}
	return s
}

// maxDrawdown computes the worst peak-to-trough decline of the compounded
// equity curve. Returns must be in chronological order.
func maxDrawdown(returns []float64) float64 {
	equity := 1.0
	peak := 1.0
	maxDD := 0.0

	for _, r := range returns {
		equity *= 1 + r
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			dd := (peak - equity) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}
