package clickhouse

import (
	"context"
	"fmt"

	"alloc-lab/internal/domain"
	"alloc-lab/internal/storage"
)

// ReturnPointStore implements storage.ReturnPointStore using ClickHouse.
type ReturnPointStore struct {
	conn *Conn
}

// NewReturnPointStore creates a new ReturnPointStore.
func NewReturnPointStore(conn *Conn) *ReturnPointStore {
	return &ReturnPointStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ReturnPointStore = (*ReturnPointStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on duplicate (symbol, timestamp_ms).
func (s *ReturnPointStore) InsertBulk(ctx context.Context, points []*domain.ReturnPoint) error {
	if len(points) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		symbol      string
		timestampMs int64
	}
	seen := make(map[key]struct{})
	for _, p := range points {
		if p == nil || p.Symbol == "" {
			return storage.ErrInvalidInput
		}
		k := key{p.Symbol, p.TimestampMs}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows.
	// MergeTree does not enforce uniqueness at insert time.
	for _, p := range points {
		exists, err := s.exists(ctx, p.Symbol, p.TimestampMs)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO return_timeseries (
			symbol, timestamp_ms, ret
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		if err := batch.Append(p.Symbol, uint64(p.TimestampMs), p.Return); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetBySymbol retrieves all points for a symbol, ordered by timestamp ASC.
func (s *ReturnPointStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.ReturnPoint, error) {
	query := `
		SELECT symbol, timestamp_ms, ret
		FROM return_timeseries
		WHERE symbol = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("query by symbol: %w", err)
	}
	defer rows.Close()

	return scanReturnPoints(rows)
}

// GetByTimeRange retrieves points for a symbol within [start, end] (inclusive).
func (s *ReturnPointStore) GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.ReturnPoint, error) {
	query := `
		SELECT symbol, timestamp_ms, ret
		FROM return_timeseries
		WHERE symbol = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanReturnPoints(rows)
}

// Symbols lists all distinct symbols present in the store, sorted ascending.
func (s *ReturnPointStore) Symbols(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT symbol
		FROM return_timeseries
		ORDER BY symbol ASC
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scan symbol row: %w", err)
		}
		symbols = append(symbols, sym)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate symbol rows: %w", err)
	}

	return symbols, nil
}

// exists checks if a point with the given key exists.
func (s *ReturnPointStore) exists(ctx context.Context, symbol string, timestampMs int64) (bool, error) {
	query := `
		SELECT count(*) FROM return_timeseries
		WHERE symbol = ? AND timestamp_ms = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, symbol, uint64(timestampMs)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanReturnPoints scans multiple rows.
func scanReturnPoints(rows chRows) ([]*domain.ReturnPoint, error) {
	var points []*domain.ReturnPoint

	for rows.Next() {
		var p domain.ReturnPoint
		var timestampMs uint64

		if err := rows.Scan(&p.Symbol, &timestampMs, &p.Return); err != nil {
			return nil, fmt.Errorf("scan return point row: %w", err)
		}

		p.TimestampMs = int64(timestampMs)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate return point rows: %w", err)
	}

	return points, nil
}
