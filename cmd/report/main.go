package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"alloc-lab/internal/decision"
	"alloc-lab/internal/domain"
	"alloc-lab/internal/metrics"
	"alloc-lab/internal/reporting"
	pgstore "alloc-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	runID := flag.String("run-id", "", "Run ID to report on (required)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (required)")
	format := flag.String("format", "markdown", "Output format: markdown, csv, or json")
	outputPath := flag.String("output", "", "Output file (default: stdout)")
	periodsPerYear := flag.Float64("periods-per-year", metrics.PeriodsPerYearDaily, "Annualization factor")
	gate := flag.Bool("gate", false, "Append GO/NO-GO gate: SPARSE_HEDGE vs EQUAL_WEIGHT")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[report] ", log.LstdFlags)

	if *runID == "" {
		logger.Fatal("--run-id is required")
	}
	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}

	*format = strings.ToLower(*format)
	if *format != "markdown" && *format != "csv" && *format != "json" {
		logger.Fatalf("Invalid format: %s. Must be markdown, csv, or json", *format)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Connect storage
	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("connect to postgres: %v", err)
	}
	defer pool.Close()

	runStore := pgstore.NewBacktestRunStore(pool)
	resultStore := pgstore.NewRebalanceResultStore(pool)

	// Generate report
	generator := reporting.NewGenerator(runStore, resultStore).
		WithPeriodsPerYear(*periodsPerYear)

	report, err := generator.Generate(ctx, *runID)
	if err != nil {
		logger.Fatalf("generate report: %v", err)
	}

	var rendered string
	switch *format {
	case "markdown":
		rendered = reporting.RenderMarkdown(report)
	case "csv":
		rendered = reporting.RenderCSV(report.StrategyMetrics)
	case "json":
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			logger.Fatalf("marshal report: %v", err)
		}
		rendered = string(data) + "\n"
	}

	// Optional decision gate, markdown only
	if *gate {
		if *format != "markdown" {
			logger.Fatal("--gate requires --format markdown")
		}
		gateSection, err := renderGate(ctx, runStore, resultStore, *runID, *periodsPerYear)
		if err != nil {
			logger.Fatalf("evaluate gate: %v", err)
		}
		rendered += "\n" + gateSection
	}

	// Write output
	if *outputPath == "" {
		fmt.Print(rendered)
		return
	}
	if err := os.WriteFile(*outputPath, []byte(rendered), 0o644); err != nil {
		logger.Fatalf("write output: %v", err)
	}
	logger.Printf("Wrote %s report to %s", *format, *outputPath)
}

// renderGate loads the stored results and evaluates the hedge strategy
// against the equal-weight baseline.
func renderGate(ctx context.Context, runStore *pgstore.BacktestRunStore, resultStore *pgstore.RebalanceResultStore, runID string, periodsPerYear float64) (string, error) {
	results, err := resultStore.GetByRunID(ctx, runID)
	if err != nil {
		return "", err
	}

	input, err := buildGateInput(results, periodsPerYear)
	if err != nil {
		return "", err
	}

	result := decision.NewEvaluator().Evaluate(*input)
	return decision.RenderMarkdown(result), nil
}

// buildGateInput computes gate metrics from stored rebalance results.
func buildGateInput(results []*domain.RebalanceResult, periodsPerYear float64) (*decision.DecisionInput, error) {
	var candidateReturns, baselineReturns []float64
	input := &decision.DecisionInput{
		CandidateStrategy: string(domain.StrategyTypeSparseHedge),
		BaselineStrategy:  string(domain.StrategyTypeEqualWeight),
	}

	for _, r := range results {
		switch r.StrategyType {
		case domain.StrategyTypeSparseHedge:
			input.TotalSlots++
			switch r.Status {
			case domain.StatusOK:
				input.OKCount++
				candidateReturns = append(candidateReturns, r.RealizedReturn)
			case domain.StatusInsufficientHistory:
				input.InsufficientCount++
			case domain.StatusFailed:
				input.FailedCount++
			}
		case domain.StrategyTypeEqualWeight:
			if r.Status == domain.StatusOK {
				baselineReturns = append(baselineReturns, r.RealizedReturn)
			}
		}
	}

	if input.TotalSlots == 0 || len(baselineReturns) == 0 {
		return nil, fmt.Errorf("run lacks SPARSE_HEDGE or EQUAL_WEIGHT results")
	}

	candidateStats := metrics.Compute(candidateReturns, periodsPerYear)
	baselineStats := metrics.Compute(baselineReturns, periodsPerYear)

	input.CandidateVol = candidateStats.AnnualizedVolatility
	input.BaselineVol = baselineStats.AnnualizedVolatility
	input.CandidateSharpe = candidateStats.Sharpe
	input.CandidateDrawdown = candidateStats.MaxDrawdown
	input.BaselineDrawdown = baselineStats.MaxDrawdown

	return input, nil
}
