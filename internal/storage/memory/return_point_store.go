package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"alloc-lab/internal/domain"
	"alloc-lab/internal/storage"
)

// ReturnPointStore is an in-memory implementation of storage.ReturnPointStore.
type ReturnPointStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ReturnPoint // keyed by composite key
}

// NewReturnPointStore creates a new in-memory return point store.
func NewReturnPointStore() *ReturnPointStore {
	return &ReturnPointStore{
		data: make(map[string]*domain.ReturnPoint),
	}
}

// returnPointKey generates a unique key for a return point.
func returnPointKey(symbol string, timestampMs int64) string {
	return fmt.Sprintf("%s|%d", symbol, timestampMs)
}

// InsertBulk adds multiple points. Fails entire batch on duplicate (symbol, timestamp_ms).
func (s *ReturnPointStore) InsertBulk(_ context.Context, points []*domain.ReturnPoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(points))

	// First pass: check for duplicates (existing + intra-batch)
	for _, p := range points {
		if p == nil || p.Symbol == "" {
			return storage.ErrInvalidInput
		}
		key := returnPointKey(p.Symbol, p.TimestampMs)

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, p := range points {
		key := returnPointKey(p.Symbol, p.TimestampMs)
		copy := *p
		s.data[key] = &copy
	}

	return nil
}

// GetBySymbol retrieves all points for a symbol, ordered by timestamp ASC.
func (s *ReturnPointStore) GetBySymbol(_ context.Context, symbol string) ([]*domain.ReturnPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ReturnPoint
	for _, p := range s.data {
		if p.Symbol == symbol {
			copy := *p
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}

// GetByTimeRange retrieves points for a symbol within [start, end] (inclusive).
func (s *ReturnPointStore) GetByTimeRange(_ context.Context, symbol string, start, end int64) ([]*domain.ReturnPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ReturnPoint
	for _, p := range s.data {
		if p.Symbol == symbol && p.TimestampMs >= start && p.TimestampMs <= end {
			copy := *p
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}

// Symbols lists all distinct symbols present in the store, sorted ascending.
func (s *ReturnPointStore) Symbols(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, p := range s.data {
		seen[p.Symbol] = struct{}{}
	}

	symbols := make([]string, 0, len(seen))
	for sym := range seen {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	return symbols, nil
}

var _ storage.ReturnPointStore = (*ReturnPointStore)(nil)
