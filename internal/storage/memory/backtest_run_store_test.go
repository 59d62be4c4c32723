package memory

import (
	"context"
	"errors"
	"testing"

	"alloc-lab/internal/domain"
	"alloc-lab/internal/storage"
)

func TestBacktestRunStore_InsertAndGet(t *testing.T) {
	store := NewBacktestRunStore()
	ctx := context.Background()

	run := &domain.BacktestRun{
		RunID:            "run-1",
		CreatedAtMs:      1000,
		Symbols:          []string{"AAA", "BBB"},
		SeparationDateMs: 5000,
		NumDates:         10,
		Strategies:       []domain.StrategyType{domain.StrategyTypeEqualWeight},
		Penalty:          domain.PenaltySpec{Alpha: 0.5, Lambda: 0.1},
		PanelFingerprint: "fp-1",
	}

	if err := store.Insert(ctx, run); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}

	if got.RunID != "run-1" || got.PanelFingerprint != "fp-1" || len(got.Symbols) != 2 {
		t.Errorf("Retrieved run does not match inserted: %+v", got)
	}
}

func TestBacktestRunStore_DuplicateKey(t *testing.T) {
	store := NewBacktestRunStore()
	ctx := context.Background()

	run := &domain.BacktestRun{RunID: "run-1", CreatedAtMs: 1000}

	if err := store.Insert(ctx, run); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, run)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestBacktestRunStore_NotFound(t *testing.T) {
	store := NewBacktestRunStore()
	ctx := context.Background()

	_, err := store.GetByID(ctx, "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestBacktestRunStore_GetAllOrdered(t *testing.T) {
	store := NewBacktestRunStore()
	ctx := context.Background()

	runs := []*domain.BacktestRun{
		{RunID: "run-b", CreatedAtMs: 2000},
		{RunID: "run-a", CreatedAtMs: 1000},
		{RunID: "run-c", CreatedAtMs: 3000},
	}
	for _, r := range runs {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	all, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}

	if len(all) != 3 {
		t.Fatalf("Expected 3 runs, got %d", len(all))
	}
	if all[0].RunID != "run-a" || all[1].RunID != "run-b" || all[2].RunID != "run-c" {
		t.Errorf("Expected created_at ASC order, got %s %s %s", all[0].RunID, all[1].RunID, all[2].RunID)
	}
}

func TestBacktestRunStore_CopyIsolation(t *testing.T) {
	store := NewBacktestRunStore()
	ctx := context.Background()

	run := &domain.BacktestRun{RunID: "run-1", Symbols: []string{"AAA"}}
	if err := store.Insert(ctx, run); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// Mutating the original must not affect stored state
	run.Symbols[0] = "ZZZ"

	got, err := store.GetByID(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Symbols[0] != "AAA" {
		t.Errorf("Stored run was mutated through caller slice: %v", got.Symbols)
	}
}
