package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alloc-lab/internal/domain"
	"alloc-lab/internal/storage"
)

func TestReturnPointStore_InsertBulkAndGetBySymbol(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewReturnPointStore(conn)

	points := []*domain.ReturnPoint{
		{Symbol: "AAA", TimestampMs: 2000, Return: -0.02},
		{Symbol: "AAA", TimestampMs: 1000, Return: 0.01},
		{Symbol: "BBB", TimestampMs: 1000, Return: 0.005},
	}

	err := store.InsertBulk(ctx, points)
	require.NoError(t, err)

	got, err := store.GetBySymbol(ctx, "AAA")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, int64(1000), got[0].TimestampMs)
	assert.Equal(t, 0.01, got[0].Return)
	assert.Equal(t, int64(2000), got[1].TimestampMs)
	assert.Equal(t, -0.02, got[1].Return)
}

func TestReturnPointStore_DuplicateDetected(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewReturnPointStore(conn)

	points := []*domain.ReturnPoint{
		{Symbol: "AAA", TimestampMs: 1000, Return: 0.01},
	}
	require.NoError(t, store.InsertBulk(ctx, points))

	err := store.InsertBulk(ctx, points)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestReturnPointStore_IntraBatchDuplicate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewReturnPointStore(conn)

	points := []*domain.ReturnPoint{
		{Symbol: "AAA", TimestampMs: 1000, Return: 0.01},
		{Symbol: "AAA", TimestampMs: 1000, Return: 0.02},
	}

	err := store.InsertBulk(ctx, points)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestReturnPointStore_GetByTimeRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewReturnPointStore(conn)

	points := []*domain.ReturnPoint{
		{Symbol: "AAA", TimestampMs: 1000, Return: 0.01},
		{Symbol: "AAA", TimestampMs: 2000, Return: 0.02},
		{Symbol: "AAA", TimestampMs: 3000, Return: 0.03},
	}
	require.NoError(t, store.InsertBulk(ctx, points))

	got, err := store.GetByTimeRange(ctx, "AAA", 1500, 3000)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2000), got[0].TimestampMs)
	assert.Equal(t, int64(3000), got[1].TimestampMs)
}

func TestReturnPointStore_Symbols(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewReturnPointStore(conn)

	points := []*domain.ReturnPoint{
		{Symbol: "BBB", TimestampMs: 1000, Return: 0.01},
		{Symbol: "AAA", TimestampMs: 1000, Return: 0.02},
		{Symbol: "AAA", TimestampMs: 2000, Return: 0.03},
	}
	require.NoError(t, store.InsertBulk(ctx, points))

	symbols, err := store.Symbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB"}, symbols)
}
