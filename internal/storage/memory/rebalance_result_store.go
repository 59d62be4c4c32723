package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"alloc-lab/internal/domain"
	"alloc-lab/internal/storage"
)

// RebalanceResultStore is an in-memory implementation of storage.RebalanceResultStore.
type RebalanceResultStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RebalanceResult // keyed by composite key
}

// NewRebalanceResultStore creates a new in-memory rebalance result store.
func NewRebalanceResultStore() *RebalanceResultStore {
	return &RebalanceResultStore{
		data: make(map[string]*domain.RebalanceResult),
	}
}

// resultKey generates a unique key for a rebalance result.
func resultKey(runID string, strategy domain.StrategyType, timestampMs int64) string {
	return fmt.Sprintf("%s|%s|%d", runID, strategy, timestampMs)
}

// InsertBulk adds multiple results atomically. Fails entire batch on any duplicate.
func (s *RebalanceResultStore) InsertBulk(_ context.Context, results []*domain.RebalanceResult) error {
	if len(results) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(results))

	// First pass: check for duplicates (existing + intra-batch)
	for _, r := range results {
		if r == nil || r.RunID == "" {
			return storage.ErrInvalidInput
		}
		key := resultKey(r.RunID, r.StrategyType, r.TimestampMs)

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, r := range results {
		key := resultKey(r.RunID, r.StrategyType, r.TimestampMs)
		s.data[key] = cloneResult(r)
	}

	return nil
}

// GetByRunID retrieves all results for a run, ordered by strategy then timestamp ASC.
func (s *RebalanceResultStore) GetByRunID(_ context.Context, runID string) ([]*domain.RebalanceResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RebalanceResult
	for _, r := range s.data {
		if r.RunID == runID {
			result = append(result, cloneResult(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].StrategyType != result[j].StrategyType {
			return result[i].StrategyType < result[j].StrategyType
		}
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}

// GetByRunAndStrategy retrieves results for one strategy of a run, ordered by timestamp ASC.
func (s *RebalanceResultStore) GetByRunAndStrategy(_ context.Context, runID string, strategy domain.StrategyType) ([]*domain.RebalanceResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RebalanceResult
	for _, r := range s.data {
		if r.RunID == runID && r.StrategyType == strategy {
			result = append(result, cloneResult(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}

// cloneResult deep-copies a result so callers cannot mutate stored state.
func cloneResult(r *domain.RebalanceResult) *domain.RebalanceResult {
	copy := *r
	copy.Weights = append([]float64(nil), r.Weights...)
	return &copy
}

var _ storage.RebalanceResultStore = (*RebalanceResultStore)(nil)
