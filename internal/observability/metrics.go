// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Backtest metrics
	RebalancesProcessed *prometheus.CounterVec // by strategy, status
	RebalanceDuration   *prometheus.HistogramVec
	BacktestRunsTotal   prometheus.Counter
	DatesProcessed      prometheus.Counter

	// Solver metrics
	RegressionsFitted prometheus.Counter
	PenaltySelections prometheus.Counter

	// Ingestion metrics
	ReturnPointsIngested prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "alloc_lab"
	}

	return &Metrics{
		RebalancesProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "rebalances_processed_total",
			Help:      "Total (date, strategy) rebalance computations by outcome",
		}, []string{"strategy", "status"}),
		RebalanceDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "rebalance_duration_seconds",
			Help:      "Duration of one weight computation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"strategy"}),
		BacktestRunsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total completed backtest runs",
		}),
		DatesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "dates_processed_total",
			Help:      "Total rebalancing dates processed",
		}),
		RegressionsFitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "regressions_fitted_total",
			Help:      "Total elastic-net regressions fitted",
		}),
		PenaltySelections: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "penalty_selections_total",
			Help:      "Total per-window penalty policy selections",
		}),
		ReturnPointsIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "return_points_total",
			Help:      "Total return points ingested",
		}),
	}
}

// ObserveRebalance records one (date, strategy) computation outcome.
func (m *Metrics) ObserveRebalance(strategy, status string, seconds float64) {
	if m == nil {
		return
	}
	m.RebalancesProcessed.WithLabelValues(strategy, status).Inc()
	m.RebalanceDuration.WithLabelValues(strategy).Observe(seconds)
}

// ObserveDate records one processed rebalancing date.
func (m *Metrics) ObserveDate() {
	if m == nil {
		return
	}
	m.DatesProcessed.Inc()
}

// ObserveRunCompleted records one completed backtest run.
func (m *Metrics) ObserveRunCompleted() {
	if m == nil {
		return
	}
	m.BacktestRunsTotal.Inc()
}

// ObserveIngested records a batch of ingested return points.
func (m *Metrics) ObserveIngested(n int) {
	if m == nil {
		return
	}
	m.ReturnPointsIngested.Add(float64(n))
}

// ObserveRegressions records elastic-net regressions fitted in one slot.
func (m *Metrics) ObserveRegressions(n int) {
	if m == nil {
		return
	}
	m.RegressionsFitted.Add(float64(n))
}

// ObservePenaltySelection records one penalty policy selection.
func (m *Metrics) ObservePenaltySelection() {
	if m == nil {
		return
	}
	m.PenaltySelections.Inc()
}

// Handler returns an HTTP handler exposing the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
