package postgres

import (
	"context"
	"fmt"

	"alloc-lab/internal/domain"
	"alloc-lab/internal/storage"
)

// BacktestRunStore implements storage.BacktestRunStore using PostgreSQL.
type BacktestRunStore struct {
	pool *Pool
}

// NewBacktestRunStore creates a new BacktestRunStore.
func NewBacktestRunStore(pool *Pool) *BacktestRunStore {
	return &BacktestRunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BacktestRunStore = (*BacktestRunStore)(nil)

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *BacktestRunStore) Insert(ctx context.Context, r *domain.BacktestRun) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO backtest_runs (
			run_id, created_at_ms, symbols, separation_date_ms, num_dates,
			strategies, penalty_alpha, penalty_lambda, panel_fingerprint
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9
		)
	`

	_, err := s.pool.Exec(ctx, query,
		r.RunID, r.CreatedAtMs, r.Symbols, r.SeparationDateMs, r.NumDates,
		strategyNames(r.Strategies), r.Penalty.Alpha, r.Penalty.Lambda, r.PanelFingerprint,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert backtest run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *BacktestRunStore) GetByID(ctx context.Context, runID string) (*domain.BacktestRun, error) {
	query := `
		SELECT run_id, created_at_ms, symbols, separation_date_ms, num_dates,
		       strategies, penalty_alpha, penalty_lambda, panel_fingerprint
		FROM backtest_runs
		WHERE run_id = $1
	`

	r, err := scanBacktestRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get backtest run by id: %w", err)
	}
	return r, nil
}

// GetAll retrieves all runs, ordered by created_at ASC.
func (s *BacktestRunStore) GetAll(ctx context.Context) ([]*domain.BacktestRun, error) {
	query := `
		SELECT run_id, created_at_ms, symbols, separation_date_ms, num_dates,
		       strategies, penalty_alpha, penalty_lambda, panel_fingerprint
		FROM backtest_runs
		ORDER BY created_at_ms ASC, run_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query backtest runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.BacktestRun
	for rows.Next() {
		r, err := scanBacktestRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backtest run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backtest run rows: %w", err)
	}

	return runs, nil
}

// pgRow covers both pgx.Row and pgx.Rows for single-row scanning.
type pgRow interface {
	Scan(dest ...interface{}) error
}

// scanBacktestRun scans one run row.
func scanBacktestRun(row pgRow) (*domain.BacktestRun, error) {
	var r domain.BacktestRun
	var strategies []string

	err := row.Scan(
		&r.RunID, &r.CreatedAtMs, &r.Symbols, &r.SeparationDateMs, &r.NumDates,
		&strategies, &r.Penalty.Alpha, &r.Penalty.Lambda, &r.PanelFingerprint,
	)
	if err != nil {
		return nil, err
	}

	r.Strategies = make([]domain.StrategyType, len(strategies))
	for i, s := range strategies {
		r.Strategies[i] = domain.StrategyType(s)
	}
	return &r, nil
}

// strategyNames converts strategy types to plain strings for text[] columns.
func strategyNames(strategies []domain.StrategyType) []string {
	names := make([]string, len(strategies))
	for i, s := range strategies {
		names[i] = string(s)
	}
	return names
}
