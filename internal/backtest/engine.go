// Package backtest drives the expanding-window backtest loop: for each
// rebalancing date it computes weights per strategy from strictly past data
// and applies them to that date's realized returns.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"alloc-lab/internal/allocation"
	"alloc-lab/internal/domain"
	"alloc-lab/internal/idhash"
	"alloc-lab/internal/observability"
)

// Engine errors.
var (
	ErrNoStrategies     = errors.New("no strategies configured")
	ErrNoRebalanceDates = errors.New("no panel dates after the separation date")
	ErrNilPanel         = errors.New("panel is nil")
)

// Config holds everything one backtest run needs.
type Config struct {
	// Panel is the full return matrix; read-only for the whole run.
	Panel *domain.ReturnMatrix

	// SeparationDateMs splits history from the out-of-sample window.
	// Every panel date strictly after it becomes a rebalancing date.
	SeparationDateMs int64

	// Strategies to compute at every rebalancing date.
	Strategies []domain.StrategyConfig

	// PenaltyPolicy, when set, selects the sparse-hedge penalty per
	// window instead of the per-strategy constant.
	PenaltyPolicy allocation.PenaltyPolicy

	// Metrics is optional instrumentation. Nil records nothing.
	Metrics *observability.Metrics
}

// Results is the completed backtest state: one slot per (date, strategy),
// each written exactly once. Read-only after Run returns.
type Results struct {
	RunID            string
	PanelFingerprint string
	Symbols          []string
	Dates            []int64 // rebalancing dates, ascending
	Strategies       []domain.StrategyType

	// slots[i][j] is the result for Dates[i] and Strategies[j].
	slots [][]domain.RebalanceResult
}

// At returns the result slot for a date and strategy index.
func (r *Results) At(dateIdx, strategyIdx int) domain.RebalanceResult {
	return r.slots[dateIdx][strategyIdx]
}

// Series returns all results for one strategy in date order.
func (r *Results) Series(st domain.StrategyType) []domain.RebalanceResult {
	j := r.strategyIndex(st)
	if j < 0 {
		return nil
	}
	out := make([]domain.RebalanceResult, len(r.slots))
	for i := range r.slots {
		out[i] = r.slots[i][j]
	}
	return out
}

// RealizedReturns returns the realized return series of one strategy,
// including only dates where the computation succeeded.
func (r *Results) RealizedReturns(st domain.StrategyType) []float64 {
	var out []float64
	for _, res := range r.Series(st) {
		if res.Status == domain.StatusOK {
			out = append(out, res.RealizedReturn)
		}
	}
	return out
}

// StatusCounts tallies slot statuses for one strategy.
func (r *Results) StatusCounts(st domain.StrategyType) map[domain.RebalanceStatus]int {
	counts := make(map[domain.RebalanceStatus]int)
	for _, res := range r.Series(st) {
		counts[res.Status]++
	}
	return counts
}

// Flatten returns every slot in (date, strategy) order, for persistence.
func (r *Results) Flatten() []*domain.RebalanceResult {
	out := make([]*domain.RebalanceResult, 0, len(r.slots)*len(r.Strategies))
	for i := range r.slots {
		for j := range r.slots[i] {
			res := r.slots[i][j]
			out = append(out, &res)
		}
	}
	return out
}

func (r *Results) strategyIndex(st domain.StrategyType) int {
	for j, s := range r.Strategies {
		if s == st {
			return j
		}
	}
	return -1
}

// Engine runs one backtest over a fixed configuration.
type Engine struct {
	cfg            Config
	rebalanceDates []int64
	runID          string
	fingerprint    string
}

// NewEngine validates the configuration and derives the rebalancing
// schedule and deterministic run ID.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Panel == nil {
		return nil, ErrNilPanel
	}
	if len(cfg.Strategies) == 0 {
		return nil, ErrNoStrategies
	}
	for _, sc := range cfg.Strategies {
		// Fail fast on misconfigured strategies before the loop starts.
		if _, err := allocation.FromConfig(sc); err != nil {
			return nil, fmt.Errorf("strategy %s: %w", sc.StrategyType, err)
		}
	}

	var dates []int64
	for _, d := range cfg.Panel.Dates() {
		if d > cfg.SeparationDateMs {
			dates = append(dates, d)
		}
	}
	if len(dates) == 0 {
		return nil, ErrNoRebalanceDates
	}

	fingerprint := idhash.FingerprintPanel(cfg.Panel)
	types := make([]domain.StrategyType, len(cfg.Strategies))
	for i, sc := range cfg.Strategies {
		types[i] = sc.StrategyType
	}
	runID := idhash.ComputeRunID(fingerprint, cfg.SeparationDateMs, types, firstPenalty(cfg.Strategies))

	return &Engine{
		cfg:            cfg,
		rebalanceDates: dates,
		runID:          runID,
		fingerprint:    fingerprint,
	}, nil
}

// RunID returns the deterministic run identifier.
func (e *Engine) RunID() string { return e.runID }

// RebalanceDates returns the derived schedule.
func (e *Engine) RebalanceDates() []int64 { return e.rebalanceDates }

// Run executes the backtest. Dates are processed in order (each window is
// defined relative to its date); strategies within a date run concurrently,
// each writing its own pre-allocated slot. ctx is checked between dates, so
// a long run can be cancelled cooperatively.
func (e *Engine) Run(ctx context.Context) (*Results, error) {
	types := make([]domain.StrategyType, len(e.cfg.Strategies))
	for j, sc := range e.cfg.Strategies {
		types[j] = sc.StrategyType
	}

	results := &Results{
		RunID:            e.runID,
		PanelFingerprint: e.fingerprint,
		Symbols:          e.cfg.Panel.Symbols(),
		Dates:            e.rebalanceDates,
		Strategies:       types,
		slots:            make([][]domain.RebalanceResult, len(e.rebalanceDates)),
	}

	for di, date := range e.rebalanceDates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		window := e.cfg.Panel.Window(date)
		realized, ok := e.cfg.Panel.RowAt(date)
		if !ok {
			// Cannot happen: the schedule is built from the panel index.
			return nil, fmt.Errorf("rebalance date %d not in panel index", date)
		}

		penalty, penaltyErr := e.selectPenalty(ctx, window)

		slots := make([]domain.RebalanceResult, len(e.cfg.Strategies))
		g, gctx := errgroup.WithContext(ctx)
		for j, sc := range e.cfg.Strategies {
			g.Go(func() error {
				slots[j] = e.computeSlot(gctx, sc, window, realized, date, penalty, penaltyErr)
				return gctx.Err()
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		results.slots[di] = slots
		e.cfg.Metrics.ObserveDate()
	}

	e.cfg.Metrics.ObserveRunCompleted()
	return results, nil
}

// computeSlot produces the result for one (date, strategy) pair. Failures
// are recorded in the slot, never propagated: one bad window must not abort
// the run.
func (e *Engine) computeSlot(
	ctx context.Context,
	sc domain.StrategyConfig,
	window *domain.ReturnMatrix,
	realized []float64,
	date int64,
	penalty *domain.PenaltySpec,
	penaltyErr error,
) domain.RebalanceResult {
	started := time.Now()
	res := e.doComputeSlot(ctx, sc, window, realized, date, penalty, penaltyErr)
	e.cfg.Metrics.ObserveRebalance(string(res.StrategyType), string(res.Status), time.Since(started).Seconds())
	return res
}

func (e *Engine) doComputeSlot(
	ctx context.Context,
	sc domain.StrategyConfig,
	window *domain.ReturnMatrix,
	realized []float64,
	date int64,
	penalty *domain.PenaltySpec,
	penaltyErr error,
) domain.RebalanceResult {
	res := domain.RebalanceResult{
		RunID:        e.runID,
		StrategyType: sc.StrategyType,
		TimestampMs:  date,
	}

	if requiresCovariance(sc.StrategyType) && window.NumDates() < window.NumAssets()+1 {
		res.Status = domain.StatusInsufficientHistory
		return res
	}

	if sc.StrategyType == domain.StrategyTypeSparseHedge && penalty != nil {
		if penaltyErr != nil {
			res.Status = domain.StatusFailed
			res.FailureReason = fmt.Sprintf("penalty selection: %v", penaltyErr)
			return res
		}
		sc.Penalty = *penalty
	}

	computer, err := allocation.FromConfig(sc)
	if err != nil {
		res.Status = domain.StatusFailed
		res.FailureReason = err.Error()
		return res
	}

	weights, err := computer.ComputeWeights(ctx, window)
	if err != nil {
		res.Status = domain.StatusFailed
		res.FailureReason = err.Error()
		return res
	}

	if sc.StrategyType == domain.StrategyTypeSparseHedge {
		// One hedge regression per asset.
		e.cfg.Metrics.ObserveRegressions(window.NumAssets())
	}

	var ret float64
	for i, w := range weights {
		ret += w * realized[i]
	}

	res.Status = domain.StatusOK
	res.Weights = weights
	res.RealizedReturn = ret
	return res
}

// selectPenalty runs the penalty policy once per window when one is
// configured and any strategy consumes it.
func (e *Engine) selectPenalty(ctx context.Context, window *domain.ReturnMatrix) (*domain.PenaltySpec, error) {
	if e.cfg.PenaltyPolicy == nil {
		return nil, nil
	}
	needed := false
	for _, sc := range e.cfg.Strategies {
		if sc.StrategyType == domain.StrategyTypeSparseHedge {
			needed = true
		}
	}
	if !needed {
		return nil, nil
	}

	spec, err := e.cfg.PenaltyPolicy.Select(ctx, window)
	if err != nil {
		return &domain.PenaltySpec{}, err
	}
	e.cfg.Metrics.ObservePenaltySelection()
	return &spec, nil
}

// requiresCovariance reports whether a strategy needs a full-rank-ish
// training window.
func requiresCovariance(st domain.StrategyType) bool {
	return st == domain.StrategyTypeShrunkMinVar || st == domain.StrategyTypeSparseHedge
}

// firstPenalty returns the first sparse-hedge penalty for run-ID purposes.
func firstPenalty(strategies []domain.StrategyConfig) domain.PenaltySpec {
	for _, sc := range strategies {
		if sc.StrategyType == domain.StrategyTypeSparseHedge {
			return sc.Penalty
		}
	}
	return domain.PenaltySpec{}
}

// Run describes the completed run for persistence.
func (r *Results) Run(separationDateMs, createdAtMs int64, penalty domain.PenaltySpec) *domain.BacktestRun {
	return &domain.BacktestRun{
		RunID:            r.RunID,
		CreatedAtMs:      createdAtMs,
		Symbols:          r.Symbols,
		SeparationDateMs: separationDateMs,
		NumDates:         len(r.Dates),
		Strategies:       r.Strategies,
		Penalty:          penalty,
		PanelFingerprint: r.PanelFingerprint,
	}
}
