package postgres

import (
	"context"
	"fmt"

	"alloc-lab/internal/domain"
	"alloc-lab/internal/storage"
)

// RebalanceResultStore implements storage.RebalanceResultStore using PostgreSQL.
type RebalanceResultStore struct {
	pool *Pool
}

// NewRebalanceResultStore creates a new RebalanceResultStore.
func NewRebalanceResultStore(pool *Pool) *RebalanceResultStore {
	return &RebalanceResultStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RebalanceResultStore = (*RebalanceResultStore)(nil)

// InsertBulk adds multiple results atomically. Fails entire batch on any duplicate.
func (s *RebalanceResultStore) InsertBulk(ctx context.Context, results []*domain.RebalanceResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO rebalance_results (
			run_id, strategy_type, timestamp_ms, status,
			weights, realized_return, failure_reason
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7
		)
	`

	for _, r := range results {
		if r == nil || r.RunID == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, query,
			r.RunID, string(r.StrategyType), r.TimestampMs, string(r.Status),
			r.Weights, r.RealizedReturn, r.FailureReason,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert rebalance result in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByRunID retrieves all results for a run, ordered by strategy then timestamp ASC.
func (s *RebalanceResultStore) GetByRunID(ctx context.Context, runID string) ([]*domain.RebalanceResult, error) {
	query := `
		SELECT run_id, strategy_type, timestamp_ms, status,
		       weights, realized_return, failure_reason
		FROM rebalance_results
		WHERE run_id = $1
		ORDER BY strategy_type ASC, timestamp_ms ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query results by run id: %w", err)
	}
	defer rows.Close()

	return scanRebalanceResults(rows)
}

// GetByRunAndStrategy retrieves results for one strategy of a run, ordered by timestamp ASC.
func (s *RebalanceResultStore) GetByRunAndStrategy(ctx context.Context, runID string, strategy domain.StrategyType) ([]*domain.RebalanceResult, error) {
	query := `
		SELECT run_id, strategy_type, timestamp_ms, status,
		       weights, realized_return, failure_reason
		FROM rebalance_results
		WHERE run_id = $1 AND strategy_type = $2
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.pool.Query(ctx, query, runID, string(strategy))
	if err != nil {
		return nil, fmt.Errorf("query results by run and strategy: %w", err)
	}
	defer rows.Close()

	return scanRebalanceResults(rows)
}

// scanRebalanceResults scans multiple result rows.
func scanRebalanceResults(rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}) ([]*domain.RebalanceResult, error) {
	var results []*domain.RebalanceResult

	for rows.Next() {
		var r domain.RebalanceResult
		var strategy, status string

		err := rows.Scan(
			&r.RunID, &strategy, &r.TimestampMs, &status,
			&r.Weights, &r.RealizedReturn, &r.FailureReason,
		)
		if err != nil {
			return nil, fmt.Errorf("scan rebalance result row: %w", err)
		}

		r.StrategyType = domain.StrategyType(strategy)
		r.Status = domain.RebalanceStatus(status)
		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rebalance result rows: %w", err)
	}

	return results, nil
}
