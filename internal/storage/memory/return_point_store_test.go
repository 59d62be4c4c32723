package memory

import (
	"context"
	"errors"
	"testing"

	"alloc-lab/internal/domain"
	"alloc-lab/internal/storage"
)

func TestReturnPointStore_InsertBulkAndGet(t *testing.T) {
	store := NewReturnPointStore()
	ctx := context.Background()

	points := []*domain.ReturnPoint{
		{Symbol: "AAA", TimestampMs: 1000, Return: 0.01},
		{Symbol: "AAA", TimestampMs: 2000, Return: -0.02},
		{Symbol: "BBB", TimestampMs: 1000, Return: 0.005},
	}

	err := store.InsertBulk(ctx, points)
	if err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetBySymbol(ctx, "AAA")
	if err != nil {
		t.Fatalf("GetBySymbol failed: %v", err)
	}

	if len(result) != 2 {
		t.Errorf("Expected 2 points, got %d", len(result))
	}
}

func TestReturnPointStore_DuplicateKey(t *testing.T) {
	store := NewReturnPointStore()
	ctx := context.Background()

	points := []*domain.ReturnPoint{
		{Symbol: "AAA", TimestampMs: 1000, Return: 0.01},
	}

	if err := store.InsertBulk(ctx, points); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	// Insert duplicate
	err := store.InsertBulk(ctx, points)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestReturnPointStore_IntraBatchDuplicate(t *testing.T) {
	store := NewReturnPointStore()
	ctx := context.Background()

	points := []*domain.ReturnPoint{
		{Symbol: "AAA", TimestampMs: 1000, Return: 0.01},
		{Symbol: "AAA", TimestampMs: 1000, Return: 0.02}, // duplicate key
	}

	err := store.InsertBulk(ctx, points)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey for intra-batch duplicate, got %v", err)
	}

	// Verify nothing was inserted
	result, _ := store.GetBySymbol(ctx, "AAA")
	if len(result) != 0 {
		t.Errorf("Expected 0 points (rollback), got %d", len(result))
	}
}

func TestReturnPointStore_GetByTimeRange(t *testing.T) {
	store := NewReturnPointStore()
	ctx := context.Background()

	points := []*domain.ReturnPoint{
		{Symbol: "AAA", TimestampMs: 1000, Return: 0.01},
		{Symbol: "AAA", TimestampMs: 2000, Return: 0.02},
		{Symbol: "AAA", TimestampMs: 3000, Return: 0.03},
		{Symbol: "BBB", TimestampMs: 2000, Return: 0.04},
	}

	if err := store.InsertBulk(ctx, points); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetByTimeRange(ctx, "AAA", 1500, 3000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}

	if len(result) != 2 {
		t.Fatalf("Expected 2 points in range, got %d", len(result))
	}
	if result[0].TimestampMs != 2000 || result[1].TimestampMs != 3000 {
		t.Errorf("Expected ASC order [2000 3000], got [%d %d]", result[0].TimestampMs, result[1].TimestampMs)
	}
}

func TestReturnPointStore_Symbols(t *testing.T) {
	store := NewReturnPointStore()
	ctx := context.Background()

	points := []*domain.ReturnPoint{
		{Symbol: "BBB", TimestampMs: 1000, Return: 0.01},
		{Symbol: "AAA", TimestampMs: 1000, Return: 0.02},
		{Symbol: "AAA", TimestampMs: 2000, Return: 0.03},
	}

	if err := store.InsertBulk(ctx, points); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	symbols, err := store.Symbols(ctx)
	if err != nil {
		t.Fatalf("Symbols failed: %v", err)
	}

	if len(symbols) != 2 || symbols[0] != "AAA" || symbols[1] != "BBB" {
		t.Errorf("Expected sorted [AAA BBB], got %v", symbols)
	}
}

func TestReturnPointStore_InvalidInput(t *testing.T) {
	store := NewReturnPointStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.ReturnPoint{{Symbol: "", TimestampMs: 1000}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty symbol, got %v", err)
	}
}
