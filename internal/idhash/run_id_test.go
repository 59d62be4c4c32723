package idhash

import (
	"testing"

	"alloc-lab/internal/domain"
)

func panel(t *testing.T, rows [][]float64) *domain.ReturnMatrix {
	t.Helper()
	dates := make([]int64, len(rows))
	for i := range dates {
		dates[i] = int64((i + 1) * 1000)
	}
	m, err := domain.NewReturnMatrix(dates, []string{"A", "B"}, rows)
	if err != nil {
		t.Fatalf("NewReturnMatrix failed: %v", err)
	}
	return m
}

func TestFingerprintPanel_Deterministic(t *testing.T) {
	rows := [][]float64{{0.1, 0.2}, {-0.1, 0.3}}

	a := FingerprintPanel(panel(t, rows))
	b := FingerprintPanel(panel(t, rows))
	if a != b {
		t.Errorf("same panel produced different fingerprints: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("fingerprint length %d, want 64 hex chars", len(a))
	}
}

func TestFingerprintPanel_SensitiveToData(t *testing.T) {
	a := FingerprintPanel(panel(t, [][]float64{{0.1, 0.2}, {-0.1, 0.3}}))
	b := FingerprintPanel(panel(t, [][]float64{{0.1, 0.2}, {-0.1, 0.30000001}}))
	if a == b {
		t.Error("fingerprint did not change with the data")
	}
}

func TestComputeRunID(t *testing.T) {
	strategies := []domain.StrategyType{domain.StrategyTypeEqualWeight, domain.StrategyTypeSparseHedge}
	penalty := domain.PenaltySpec{Alpha: 0.1, Lambda: 0.1}

	a := ComputeRunID("fp", 5000, strategies, penalty)
	b := ComputeRunID("fp", 5000, strategies, penalty)
	if a != b {
		t.Errorf("same inputs produced different run IDs: %s vs %s", a, b)
	}

	c := ComputeRunID("fp", 6000, strategies, penalty)
	if a == c {
		t.Error("run ID did not change with the separation date")
	}
}
