package decision

import (
	"context"
	"errors"
	"testing"

	"alloc-lab/internal/backtest"
	"alloc-lab/internal/domain"
)

func runBacktest(t *testing.T) *backtest.Results {
	t.Helper()

	dates := make([]int64, 12)
	rows := make([][]float64, 12)
	for i := range dates {
		dates[i] = int64((i + 1) * 1000)
		rows[i] = []float64{0.01 * float64(i%3-1), -0.005 * float64(i%2)}
	}
	panel, err := domain.NewReturnMatrix(dates, []string{"AAA", "BBB"}, rows)
	if err != nil {
		t.Fatalf("NewReturnMatrix failed: %v", err)
	}

	engine, err := backtest.NewEngine(backtest.Config{
		Panel:            panel,
		SeparationDateMs: 6000,
		Strategies: []domain.StrategyConfig{
			{StrategyType: domain.StrategyTypeEqualWeight},
			{StrategyType: domain.StrategyTypeShrunkMinVar, CovShrinkage: domain.DefaultCovShrinkage},
		},
	})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	results, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return results
}

func TestBuilder_Build(t *testing.T) {
	results := runBacktest(t)

	input, err := NewBuilder(252).Build(results, domain.StrategyTypeShrunkMinVar, domain.StrategyTypeEqualWeight)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if input.CandidateStrategy != string(domain.StrategyTypeShrunkMinVar) {
		t.Errorf("Unexpected candidate strategy: %s", input.CandidateStrategy)
	}
	if input.TotalSlots == 0 {
		t.Error("Expected nonzero slot count")
	}
	if input.OKCount+input.FailedCount+input.InsufficientCount != input.TotalSlots {
		t.Errorf("Status counts do not sum to total: %+v", input)
	}
}

func TestBuilder_StrategyNotInRun(t *testing.T) {
	results := runBacktest(t)

	_, err := NewBuilder(252).Build(results, domain.StrategyTypeSparseHedge, domain.StrategyTypeEqualWeight)
	if !errors.Is(err, ErrStrategyNotInRun) {
		t.Errorf("Expected ErrStrategyNotInRun, got %v", err)
	}
}
