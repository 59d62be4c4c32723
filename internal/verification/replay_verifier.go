package verification

import (
	"context"
	"errors"
	"fmt"

	"alloc-lab/internal/backtest"
	"alloc-lab/internal/domain"
	"alloc-lab/internal/idhash"
	"alloc-lab/internal/panel"
	"alloc-lab/internal/storage"
)

var (
	// ErrRunNotFound is returned when the run ID doesn't exist.
	ErrRunNotFound = errors.New("run not found")

	// ErrNoStoredResults is returned when a run has no persisted
	// rebalance results to compare against.
	ErrNoStoredResults = errors.New("run has no stored results")
)

// ReplayVerifier rebuilds a run's panel from the return store,
// re-executes the backtest and compares slot by slot.
//
// Replay uses the fixed penalty recorded with the run. Runs produced
// with cross-validated penalty selection are not reproducible from the
// run record alone and will report divergences.
type ReplayVerifier struct {
	runStore    storage.BacktestRunStore
	resultStore storage.RebalanceResultStore
	returnStore storage.ReturnPointStore

	// strategyConfigs maps strategy type to its full configuration.
	// Entries here override the configuration reconstructed from the
	// run record, which only carries the penalty.
	strategyConfigs map[domain.StrategyType]domain.StrategyConfig
}

// ReplayVerifierOptions contains configuration for creating a ReplayVerifier.
type ReplayVerifierOptions struct {
	RunStore    storage.BacktestRunStore
	ResultStore storage.RebalanceResultStore
	ReturnStore storage.ReturnPointStore

	// StrategyConfigs optionally supplies configurations which cannot
	// be recovered from the run record (shrinkage, variance floor).
	StrategyConfigs map[domain.StrategyType]domain.StrategyConfig
}

// NewReplayVerifier creates a new ReplayVerifier.
func NewReplayVerifier(opts ReplayVerifierOptions) *ReplayVerifier {
	return &ReplayVerifier{
		runStore:        opts.RunStore,
		resultStore:     opts.ResultStore,
		returnStore:     opts.ReturnStore,
		strategyConfigs: opts.StrategyConfigs,
	}
}

// VerifyRun verifies a single run by re-executing the backtest.
func (v *ReplayVerifier) VerifyRun(ctx context.Context, runID string) (*Report, error) {
	run, err := v.runStore.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}

	stored, err := v.resultStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return nil, ErrNoStoredResults
	}

	replayed, fingerprint, err := v.replayRun(ctx, run)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:            runID,
		FingerprintMatch: fingerprint == run.PanelFingerprint,
		TotalSlots:       len(stored),
	}

	// Index replayed results by (strategy, timestamp).
	byKey := make(map[string]*domain.RebalanceResult, len(replayed))
	for _, r := range replayed {
		byKey[slotKey(r.StrategyType, r.TimestampMs)] = r
	}

	for _, s := range stored {
		slot := SlotResult{StrategyType: s.StrategyType, TimestampMs: s.TimestampMs}
		if r, ok := byKey[slotKey(s.StrategyType, s.TimestampMs)]; ok {
			slot.Divergences = CompareResults(s, r)
		} else {
			slot.Divergences = []FieldDivergence{{
				Field:    "Slot",
				Expected: "present",
				Actual:   "missing from replay",
			}}
		}
		slot.Match = len(slot.Divergences) == 0
		if slot.Match {
			report.MatchedSlots++
		} else {
			report.DivergentSlots++
		}
		report.Results = append(report.Results, slot)
	}

	return report, nil
}

// VerifyAll verifies every stored run and returns one report per run.
func (v *ReplayVerifier) VerifyAll(ctx context.Context) ([]*Report, error) {
	runs, err := v.runStore.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	reports := make([]*Report, 0, len(runs))
	for _, run := range runs {
		report, err := v.VerifyRun(ctx, run.RunID)
		if err != nil {
			return reports, fmt.Errorf("verify run %s: %w", run.RunID, err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// replayRun rebuilds the panel from stored returns and re-runs the
// engine with the run's recorded configuration.
func (v *ReplayVerifier) replayRun(ctx context.Context, run *domain.BacktestRun) ([]*domain.RebalanceResult, string, error) {
	var points []*domain.ReturnPoint
	for _, symbol := range run.Symbols {
		pts, err := v.returnStore.GetBySymbol(ctx, symbol)
		if err != nil {
			return nil, "", fmt.Errorf("load returns for %s: %w", symbol, err)
		}
		points = append(points, pts...)
	}

	matrix, err := panel.NewBuilder().Build(points, run.Symbols)
	if err != nil {
		return nil, "", fmt.Errorf("rebuild panel: %w", err)
	}
	fingerprint := idhash.FingerprintPanel(matrix)

	engine, err := backtest.NewEngine(backtest.Config{
		Panel:            matrix,
		SeparationDateMs: run.SeparationDateMs,
		Strategies:       v.resolveStrategies(run),
	})
	if err != nil {
		return nil, "", fmt.Errorf("configure replay: %w", err)
	}

	results, err := engine.Run(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("replay run: %w", err)
	}
	return results.Flatten(), fingerprint, nil
}

// resolveStrategies reconstructs the strategy configurations of a run,
// preferring explicit overrides.
func (v *ReplayVerifier) resolveStrategies(run *domain.BacktestRun) []domain.StrategyConfig {
	configs := make([]domain.StrategyConfig, 0, len(run.Strategies))
	for _, st := range run.Strategies {
		cfg := domain.StrategyConfig{StrategyType: st}
		if override, ok := v.strategyConfigs[st]; ok {
			cfg = override
			cfg.StrategyType = st
		}
		// The penalty travels with the run record; overrides only add
		// what the record does not carry.
		if cfg.Penalty == (domain.PenaltySpec{}) {
			cfg.Penalty = run.Penalty
		}
		configs = append(configs, cfg)
	}
	return configs
}

func slotKey(st domain.StrategyType, timestampMs int64) string {
	return fmt.Sprintf("%s|%d", st, timestampMs)
}
