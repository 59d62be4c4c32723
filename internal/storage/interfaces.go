package storage

import (
	"context"

	"alloc-lab/internal/domain"
)

// ReturnPointStore provides access to return_timeseries storage.
type ReturnPointStore interface {
	// InsertBulk adds multiple points. Fails entire batch on duplicate (symbol, timestamp_ms).
	InsertBulk(ctx context.Context, points []*domain.ReturnPoint) error

	// GetBySymbol retrieves all points for a symbol, ordered by timestamp ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.ReturnPoint, error)

	// GetByTimeRange retrieves points for a symbol within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.ReturnPoint, error)

	// Symbols lists all distinct symbols present in the store, sorted ascending.
	Symbols(ctx context.Context) ([]string, error)
}

// BacktestRunStore provides access to backtest_runs storage.
type BacktestRunStore interface {
	// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.BacktestRun) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.BacktestRun, error)

	// GetAll retrieves all runs, ordered by created_at ASC.
	GetAll(ctx context.Context) ([]*domain.BacktestRun, error)
}

// RebalanceResultStore provides access to rebalance_results storage.
type RebalanceResultStore interface {
	// InsertBulk adds multiple results atomically. Fails entire batch on any
	// duplicate (run_id, strategy_type, timestamp_ms).
	InsertBulk(ctx context.Context, results []*domain.RebalanceResult) error

	// GetByRunID retrieves all results for a run, ordered by strategy then timestamp ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.RebalanceResult, error)

	// GetByRunAndStrategy retrieves results for one strategy of a run, ordered by timestamp ASC.
	GetByRunAndStrategy(ctx context.Context, runID string, strategy domain.StrategyType) ([]*domain.RebalanceResult, error)
}
