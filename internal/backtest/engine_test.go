package backtest

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"alloc-lab/internal/allocation"
	"alloc-lab/internal/domain"
)

// buildPanel creates a deterministic panel with dates 1000, 2000, ...
func buildPanel(t *testing.T, numDates, numAssets int, seed int64) *domain.ReturnMatrix {
	t.Helper()

	rng := rand.New(rand.NewSource(seed))
	dates := make([]int64, numDates)
	rows := make([][]float64, numDates)
	for i := 0; i < numDates; i++ {
		dates[i] = int64((i + 1) * 1000)
		row := make([]float64, numAssets)
		for j := range row {
			row[j] = 0.04 * rng.NormFloat64()
		}
		rows[i] = row
	}
	symbols := make([]string, numAssets)
	for j := range symbols {
		symbols[j] = string(rune('A' + j))
	}
	m, err := domain.NewReturnMatrix(dates, symbols, rows)
	if err != nil {
		t.Fatalf("NewReturnMatrix failed: %v", err)
	}
	return m
}

func allStrategies() []domain.StrategyConfig {
	return []domain.StrategyConfig{
		{StrategyType: domain.StrategyTypeEqualWeight},
		{StrategyType: domain.StrategyTypeShrunkMinVar},
		{StrategyType: domain.StrategyTypeSparseHedge, Penalty: domain.PenaltySpec{Alpha: 0.1, Lambda: 0.1}},
	}
}

func TestEngine_ScheduleExcludesSeparationDate(t *testing.T) {
	panel := buildPanel(t, 20, 3, 1)

	eng, err := NewEngine(Config{
		Panel:            panel,
		SeparationDateMs: 10000,
		Strategies:       allStrategies(),
	})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	dates := eng.RebalanceDates()
	if len(dates) != 10 {
		t.Fatalf("got %d rebalance dates, want 10", len(dates))
	}
	for _, d := range dates {
		if d <= 10000 {
			t.Errorf("rebalance date %d is not strictly after separation", d)
		}
	}
}

func TestEngine_NoRebalanceDates(t *testing.T) {
	panel := buildPanel(t, 5, 2, 2)

	_, err := NewEngine(Config{
		Panel:            panel,
		SeparationDateMs: 99999,
		Strategies:       allStrategies(),
	})
	if !errors.Is(err, ErrNoRebalanceDates) {
		t.Errorf("got err %v, want ErrNoRebalanceDates", err)
	}
}

func TestEngine_NoStrategies(t *testing.T) {
	_, err := NewEngine(Config{Panel: buildPanel(t, 5, 2, 2)})
	if !errors.Is(err, ErrNoStrategies) {
		t.Errorf("got err %v, want ErrNoStrategies", err)
	}
}

func TestEngine_RealizedReturnsMatchDotProduct(t *testing.T) {
	panel := buildPanel(t, 15, 3, 3)

	eng, err := NewEngine(Config{
		Panel:            panel,
		SeparationDateMs: 8000,
		Strategies:       []domain.StrategyConfig{{StrategyType: domain.StrategyTypeEqualWeight}},
	})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	results, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for i, date := range results.Dates {
		res := results.At(i, 0)
		if res.Status != domain.StatusOK {
			t.Fatalf("date %d status %s, want OK", date, res.Status)
		}
		row, _ := panel.RowAt(date)
		var want float64
		for j, w := range res.Weights {
			want += w * row[j]
		}
		if math.Abs(res.RealizedReturn-want) > 1e-15 {
			t.Errorf("date %d realized %.12g, want %.12g", date, res.RealizedReturn, want)
		}
	}
}

func TestEngine_CausalityFutureDataIgnored(t *testing.T) {
	const numDates, numAssets = 20, 4
	base := buildPanel(t, numDates, numAssets, 4)

	// Perturb every row strictly after the first rebalance date.
	var pivot int64 = 13000 // first rebalance date for separation 12000
	dates := append([]int64(nil), base.Dates()...)
	rows := make([][]float64, numDates)
	for i := 0; i < numDates; i++ {
		row := append([]float64(nil), base.Row(i)...)
		if dates[i] > pivot {
			for j := range row {
				row[j] += 0.5
			}
		}
		rows[i] = row
	}
	perturbed, err := domain.NewReturnMatrix(dates, base.Symbols(), rows)
	if err != nil {
		t.Fatalf("NewReturnMatrix failed: %v", err)
	}

	run := func(panel *domain.ReturnMatrix) *Results {
		eng, err := NewEngine(Config{
			Panel:            panel,
			SeparationDateMs: 12000,
			Strategies:       allStrategies(),
		})
		if err != nil {
			t.Fatalf("NewEngine failed: %v", err)
		}
		results, err := eng.Run(context.Background())
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		return results
	}

	baseResults := run(base)
	perturbedResults := run(perturbed)

	// Weights at the pivot date are computed from data strictly before it,
	// which is identical in both panels.
	for j := range baseResults.Strategies {
		a := baseResults.At(0, j)
		b := perturbedResults.At(0, j)
		if a.TimestampMs != pivot || b.TimestampMs != pivot {
			t.Fatalf("first slot dates %d/%d, want pivot %d", a.TimestampMs, b.TimestampMs, pivot)
		}
		if a.Status != b.Status {
			t.Fatalf("strategy %s status diverged: %s vs %s", baseResults.Strategies[j], a.Status, b.Status)
		}
		for k := range a.Weights {
			if a.Weights[k] != b.Weights[k] {
				t.Errorf("strategy %s weight %d changed with future data: %.12g vs %.12g",
					baseResults.Strategies[j], k, a.Weights[k], b.Weights[k])
			}
		}
	}
}

func TestEngine_Deterministic(t *testing.T) {
	panel := buildPanel(t, 25, 4, 5)
	cfg := Config{
		Panel:            panel,
		SeparationDateMs: 15000,
		Strategies:       allStrategies(),
	}

	first, err := mustRun(t, cfg)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	second, err := mustRun(t, cfg)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if first.RunID != second.RunID {
		t.Errorf("run IDs differ: %s vs %s", first.RunID, second.RunID)
	}
	for i := range first.Dates {
		for j := range first.Strategies {
			a, b := first.At(i, j), second.At(i, j)
			if a.Status != b.Status || a.RealizedReturn != b.RealizedReturn {
				t.Errorf("slot (%d,%d) differs between runs", i, j)
			}
			for k := range a.Weights {
				if a.Weights[k] != b.Weights[k] {
					t.Errorf("slot (%d,%d) weight %d differs between runs", i, j, k)
				}
			}
		}
	}
}

func mustRun(t *testing.T, cfg Config) (*Results, error) {
	t.Helper()
	eng, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return eng.Run(context.Background())
}

func TestEngine_InsufficientHistoryMarker(t *testing.T) {
	// 6 assets: the first rebalance windows have fewer than 7 rows, so the
	// covariance strategies get markers while equal weight proceeds.
	panel := buildPanel(t, 12, 6, 6)

	results, err := mustRun(t, Config{
		Panel:            panel,
		SeparationDateMs: 3000,
		Strategies:       allStrategies(),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// First rebalance date 4000 has a 3-row window.
	for j, st := range results.Strategies {
		res := results.At(0, j)
		switch st {
		case domain.StrategyTypeEqualWeight:
			if res.Status != domain.StatusOK {
				t.Errorf("equal weight status %s, want OK on short window", res.Status)
			}
		default:
			if res.Status != domain.StatusInsufficientHistory {
				t.Errorf("%s status %s, want INSUFFICIENT_HISTORY", st, res.Status)
			}
			if res.Weights != nil {
				t.Errorf("%s recorded weights despite marker", st)
			}
		}
	}

	// Last rebalance date has 11 rows of history: everything computes.
	last := len(results.Dates) - 1
	for j, st := range results.Strategies {
		if res := results.At(last, j); res.Status != domain.StatusOK {
			t.Errorf("%s status %s at final date, want OK", st, res.Status)
		}
	}
}

func TestEngine_FailureIsolatedPerStrategy(t *testing.T) {
	// Asset B duplicates asset A, so sparse hedge fails every date with a
	// degenerate asset while the other strategies keep producing results.
	numDates := 14
	dates := make([]int64, numDates)
	rows := make([][]float64, numDates)
	rng := rand.New(rand.NewSource(8))
	for i := 0; i < numDates; i++ {
		dates[i] = int64((i + 1) * 1000)
		a := 0.05 * rng.NormFloat64()
		c := 0.05 * rng.NormFloat64()
		rows[i] = []float64{a, a, c}
	}
	panel, err := domain.NewReturnMatrix(dates, []string{"A", "B", "C"}, rows)
	if err != nil {
		t.Fatalf("NewReturnMatrix failed: %v", err)
	}

	results, err := mustRun(t, Config{
		Panel:            panel,
		SeparationDateMs: 8000,
		Strategies: []domain.StrategyConfig{
			{StrategyType: domain.StrategyTypeEqualWeight},
			{StrategyType: domain.StrategyTypeSparseHedge, Penalty: domain.PenaltySpec{Alpha: 0, Lambda: 0}},
		},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	counts := results.StatusCounts(domain.StrategyTypeSparseHedge)
	if counts[domain.StatusFailed] == 0 {
		t.Error("sparse hedge never failed on a duplicated series")
	}
	if got := results.StatusCounts(domain.StrategyTypeEqualWeight)[domain.StatusOK]; got != len(results.Dates) {
		t.Errorf("equal weight OK at %d dates, want all %d", got, len(results.Dates))
	}

	for _, res := range results.Series(domain.StrategyTypeSparseHedge) {
		if res.Status == domain.StatusFailed && res.FailureReason == "" {
			t.Error("failed slot has no failure reason")
		}
	}
}

func TestEngine_PenaltyPolicyOverride(t *testing.T) {
	panel := buildPanel(t, 30, 3, 10)

	fixed := allocation.FixedPenalty{Spec: domain.PenaltySpec{Alpha: 0.9, Lambda: 0.5}}
	withPolicy, err := mustRun(t, Config{
		Panel:            panel,
		SeparationDateMs: 20000,
		Strategies: []domain.StrategyConfig{
			{StrategyType: domain.StrategyTypeSparseHedge, Penalty: domain.PenaltySpec{Alpha: 0.1, Lambda: 0.1}},
		},
		PenaltyPolicy: fixed,
	})
	if err != nil {
		t.Fatalf("Run with policy failed: %v", err)
	}

	direct, err := mustRun(t, Config{
		Panel:            panel,
		SeparationDateMs: 20000,
		Strategies: []domain.StrategyConfig{
			{StrategyType: domain.StrategyTypeSparseHedge, Penalty: domain.PenaltySpec{Alpha: 0.9, Lambda: 0.5}},
		},
	})
	if err != nil {
		t.Fatalf("direct run failed: %v", err)
	}

	// The policy-selected penalty must drive the computation.
	for i := range withPolicy.Dates {
		a := withPolicy.At(i, 0)
		b := direct.At(i, 0)
		for k := range a.Weights {
			if a.Weights[k] != b.Weights[k] {
				t.Fatalf("date %d weight %d: policy %g vs direct %g", withPolicy.Dates[i], k, a.Weights[k], b.Weights[k])
			}
		}
	}
}

func TestEngine_Cancellation(t *testing.T) {
	panel := buildPanel(t, 30, 4, 12)
	eng, err := NewEngine(Config{
		Panel:            panel,
		SeparationDateMs: 5000,
		Strategies:       allStrategies(),
	})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := eng.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("got err %v, want context.Canceled", err)
	}
}
