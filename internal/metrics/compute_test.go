package metrics

import (
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestCompute_Empty(t *testing.T) {
	s := Compute(nil, PeriodsPerYearDaily)
	if s.Periods != 0 || s.CumulativeReturn != 0 || s.Sharpe != 0 {
		t.Errorf("empty series produced non-zero stats: %+v", s)
	}
}

func TestCompute_Basic(t *testing.T) {
	returns := []float64{0.10, -0.05, 0.02}
	s := Compute(returns, PeriodsPerYearDaily)

	if s.Periods != 3 {
		t.Errorf("Periods = %d, want 3", s.Periods)
	}
	wantCum := 1.10*0.95*1.02 - 1
	if !almostEqual(s.CumulativeReturn, wantCum, 1e-12) {
		t.Errorf("CumulativeReturn = %g, want %g", s.CumulativeReturn, wantCum)
	}
	if !almostEqual(s.MeanReturn, (0.10-0.05+0.02)/3, 1e-12) {
		t.Errorf("MeanReturn = %g", s.MeanReturn)
	}
	if !almostEqual(s.HitRate, 2.0/3, 1e-12) {
		t.Errorf("HitRate = %g, want 2/3", s.HitRate)
	}
	if s.BestPeriod != 0.10 || s.WorstPeriod != -0.05 {
		t.Errorf("Best/Worst = %g/%g, want 0.10/-0.05", s.BestPeriod, s.WorstPeriod)
	}
}

func TestCompute_ConstantSeriesHasZeroVolAndSharpe(t *testing.T) {
	s := Compute([]float64{0.01, 0.01, 0.01, 0.01}, PeriodsPerYearDaily)
	if s.Volatility != 0 {
		t.Errorf("Volatility = %g, want 0", s.Volatility)
	}
	if s.Sharpe != 0 {
		t.Errorf("Sharpe = %g, want 0 when volatility is 0", s.Sharpe)
	}
}

func TestCompute_AnnualizationScaling(t *testing.T) {
	returns := []float64{0.02, -0.01, 0.03, 0.01, -0.02}
	s := Compute(returns, PeriodsPerYearDaily)

	if !almostEqual(s.AnnualizedReturn, s.MeanReturn*PeriodsPerYearDaily, 1e-12) {
		t.Errorf("AnnualizedReturn = %g", s.AnnualizedReturn)
	}
	if !almostEqual(s.AnnualizedVolatility, s.Volatility*math.Sqrt(PeriodsPerYearDaily), 1e-12) {
		t.Errorf("AnnualizedVolatility = %g", s.AnnualizedVolatility)
	}
}

func TestMaxDrawdown(t *testing.T) {
	cases := []struct {
		name    string
		returns []float64
		want    float64
	}{
		{"monotonic gains", []float64{0.1, 0.1, 0.1}, 0},
		{"single loss", []float64{0.1, -0.2, 0.05}, 0.2},
		{"recovering", []float64{-0.5, 1.0}, 0.5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := maxDrawdown(tc.returns); !almostEqual(got, tc.want, 1e-12) {
				t.Errorf("maxDrawdown = %g, want %g", got, tc.want)
			}
		})
	}
}
