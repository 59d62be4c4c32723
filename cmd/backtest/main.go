package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"alloc-lab/internal/allocation"
	"alloc-lab/internal/backtest"
	"alloc-lab/internal/domain"
	"alloc-lab/internal/metrics"
	"alloc-lab/internal/observability"
	"alloc-lab/internal/panel"
	"alloc-lab/internal/pipeline"
	"alloc-lab/internal/storage"
	chstore "alloc-lab/internal/storage/clickhouse"
	"alloc-lab/internal/storage/memory"
	"alloc-lab/internal/storage/migrations"
	pgstore "alloc-lab/internal/storage/postgres"
)

func main() {
	// Input
	inputPath := flag.String("input", "", "CSV input file: symbol,timestamp_ms,return (alternative to --clickhouse-dsn)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string for return points")
	symbolsFlag := flag.String("symbols", "", "Comma-separated asset universe (default: all symbols in input)")

	// Run configuration
	separationMs := flag.Int64("separation-ms", 0, "Separation date in Unix ms (required)")
	strategiesFlag := flag.String("strategies", "EQUAL_WEIGHT,SHRUNK_MIN_VARIANCE,SPARSE_HEDGE", "Comma-separated strategies")
	alpha := flag.Float64("alpha", 0.5, "Elastic-net mixing parameter for SPARSE_HEDGE")
	lambda := flag.Float64("lambda", 0.1, "Elastic-net penalty strength for SPARSE_HEDGE")
	shrinkage := flag.Float64("shrinkage", domain.DefaultCovShrinkage, "Diagonal covariance shrinkage for SHRUNK_MIN_VARIANCE")
	varianceFloor := flag.Float64("variance-floor", 0, "Residual variance floor for SPARSE_HEDGE (0 disables)")
	cvLambdas := flag.String("cv-lambdas", "", "Comma-separated lambda grid for cross-validated penalty selection")
	cvFolds := flag.Int("cv-folds", 3, "Number of contiguous time folds for cross-validation")

	// Persistence
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string for run persistence")
	persist := flag.Bool("persist", false, "Persist run and results to PostgreSQL")

	// Output
	outputJSON := flag.Bool("json", false, "Output as JSON")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

	if *separationMs == 0 {
		logger.Fatal("--separation-ms is required")
	}
	if *inputPath == "" && *clickhouseDSN == "" {
		logger.Fatal("one of --input or --clickhouse-dsn is required")
	}

	var obs *observability.Metrics
	if *metricsAddr != "" {
		obs = observability.NewMetrics("")
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
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

	// Load return points
	store, closeStore, err := openReturnStore(ctx, *inputPath, *clickhouseDSN)
	if err != nil {
		logger.Fatalf("open return store: %v", err)
	}
	defer closeStore()

	symbols, err := resolveSymbols(ctx, store, *symbolsFlag)
	if err != nil {
		logger.Fatalf("resolve symbols: %v", err)
	}
	logger.Printf("Universe: %v", symbols)

	points, err := loadReturnPoints(ctx, store, symbols)
	if err != nil {
		logger.Fatalf("load return points: %v", err)
	}

	// Build the aligned panel
	returnPanel, err := panel.NewBuilder().Build(points, symbols)
	if err != nil {
		logger.Fatalf("build panel: %v", err)
	}
	logger.Printf("Panel: %d dates x %d assets", returnPanel.NumDates(), returnPanel.NumAssets())

	// Sufficiency checks
	sufficiency := pipeline.NewSufficiencyChecker(returnPanel, *separationMs).Check()
	for _, check := range sufficiency.Checks {
		status := "PASS"
		if !check.Pass {
			status = "FAIL"
		}
		logger.Printf("Sufficiency: %-36s %s (threshold %s, actual %s)", check.Name, status, check.Threshold, check.Actual)
	}
	if !sufficiency.AllPass {
		logger.Print("Sufficiency checks failed: expect INSUFFICIENT_HISTORY markers")
	}

	// Strategy configs
	penalty := domain.PenaltySpec{Alpha: *alpha, Lambda: *lambda}
	strategies, err := buildStrategies(*strategiesFlag, penalty, *shrinkage, *varianceFloor)
	if err != nil {
		logger.Fatalf("build strategies: %v", err)
	}

	// Optional cross-validated penalty selection
	var policy allocation.PenaltyPolicy
	if *cvLambdas != "" {
		grid, err := parsePenaltyGrid(*cvLambdas, *alpha)
		if err != nil {
			logger.Fatalf("parse --cv-lambdas: %v", err)
		}
		policy = allocation.NewCrossValidatedPenalty(grid, *cvFolds)
		logger.Printf("Cross-validating lambda over %d grid points, %d folds", len(grid), *cvFolds)
	}

	engine, err := backtest.NewEngine(backtest.Config{
		Panel:            returnPanel,
		SeparationDateMs: *separationMs,
		Strategies:       strategies,
		PenaltyPolicy:    policy,
		Metrics:          obs,
	})
	if err != nil {
		logger.Fatalf("configure engine: %v", err)
	}

	logger.Printf("Run %s: %d rebalancing dates", engine.RunID(), len(engine.RebalanceDates()))

	start := time.Now()
	results, err := engine.Run(ctx)
	if err != nil {
		logger.Fatalf("backtest failed: %v", err)
	}
	logger.Printf("Completed in %s", time.Since(start).Round(time.Millisecond))

	run := results.Run(*separationMs, time.Now().UnixMilli(), penalty)

	// Persist
	if *persist {
		if *postgresDSN == "" {
			logger.Fatal("--postgres-dsn is required with --persist")
		}
		if err := persistRun(ctx, *postgresDSN, run, results); err != nil {
			logger.Fatalf("persist run: %v", err)
		}
		logger.Printf("Persisted run %s", run.RunID)
	}

	// Output
	if *outputJSON {
		printJSON(run, results)
	} else {
		printSummary(run, results)
	}
}

// openReturnStore returns a populated store: in-memory when reading a CSV
// file, ClickHouse-backed otherwise.
func openReturnStore(ctx context.Context, inputPath, dsn string) (storage.ReturnPointStore, func(), error) {
	if inputPath != "" {
		store := memory.NewReturnPointStore()
		points, err := loadCSVReturns(inputPath)
		if err != nil {
			return nil, nil, err
		}
		if err := store.InsertBulk(ctx, points); err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}

	conn, err := chstore.NewConn(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	return chstore.NewReturnPointStore(conn), func() { conn.Close() }, nil
}

func resolveSymbols(ctx context.Context, store storage.ReturnPointStore, symbolsFlag string) ([]string, error) {
	if symbolsFlag != "" {
		parts := strings.Split(symbolsFlag, ",")
		symbols := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				symbols = append(symbols, s)
			}
		}
		if len(symbols) == 0 {
			return nil, fmt.Errorf("empty --symbols")
		}
		return symbols, nil
	}
	return store.Symbols(ctx)
}

func loadReturnPoints(ctx context.Context, store storage.ReturnPointStore, symbols []string) ([]*domain.ReturnPoint, error) {
	var points []*domain.ReturnPoint
	for _, s := range symbols {
		ps, err := store.GetBySymbol(ctx, s)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", s, err)
		}
		points = append(points, ps...)
	}
	return points, nil
}

// loadCSVReturns parses symbol,timestamp_ms,return rows, skipping an
// optional header.
func loadCSVReturns(path string) ([]*domain.ReturnPoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 3

	var points []*domain.ReturnPoint
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++

		if line == 1 && strings.EqualFold(record[0], "symbol") {
			continue
		}

		ts, err := strconv.ParseInt(strings.TrimSpace(record[1]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad timestamp %q: %w", line, record[1], err)
		}
		ret, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad return %q: %w", line, record[2], err)
		}

		points = append(points, &domain.ReturnPoint{
			Symbol:      strings.TrimSpace(record[0]),
			TimestampMs: ts,
			Return:      ret,
		})
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("no data rows in input")
	}
	return points, nil
}

// buildStrategies creates strategy configs from the CLI flag list.
func buildStrategies(list string, penalty domain.PenaltySpec, shrinkage, varianceFloor float64) ([]domain.StrategyConfig, error) {
	var configs []domain.StrategyConfig
	for _, part := range strings.Split(list, ",") {
		name := domain.StrategyType(strings.ToUpper(strings.TrimSpace(part)))
		if name == "" {
			continue
		}
		cfg := domain.StrategyConfig{StrategyType: name}
		switch name {
		case domain.StrategyTypeShrunkMinVar:
			cfg.CovShrinkage = shrinkage
		case domain.StrategyTypeSparseHedge:
			cfg.Penalty = penalty
			cfg.VarianceFloor = varianceFloor
		case domain.StrategyTypeEqualWeight:
			// no parameters
		default:
			return nil, fmt.Errorf("unknown strategy %q", name)
		}
		configs = append(configs, cfg)
	}
	if len(configs) == 0 {
		return nil, fmt.Errorf("empty --strategies")
	}
	return configs, nil
}

func parsePenaltyGrid(list string, alpha float64) ([]domain.PenaltySpec, error) {
	var grid []domain.PenaltySpec
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lambda, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("bad lambda %q: %w", part, err)
		}
		grid = append(grid, domain.PenaltySpec{Alpha: alpha, Lambda: lambda})
	}
	if len(grid) == 0 {
		return nil, fmt.Errorf("empty grid")
	}
	return grid, nil
}

// persistRun writes the run and its results to PostgreSQL.
func persistRun(ctx context.Context, dsn string, run *domain.BacktestRun, results *backtest.Results) error {
	pool, err := pgstore.NewPool(ctx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		return fmt.Errorf("postgres migrations: %w", err)
	}

	if err := pgstore.NewBacktestRunStore(pool).Insert(ctx, run); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if err := pgstore.NewRebalanceResultStore(pool).InsertBulk(ctx, results.Flatten()); err != nil {
		return fmt.Errorf("insert results: %w", err)
	}
	return nil
}

func printJSON(run *domain.BacktestRun, results *backtest.Results) {
	out := struct {
		Run     *domain.BacktestRun       `json:"run"`
		Results []*domain.RebalanceResult `json:"results"`
	}{
		Run:     run,
		Results: results.Flatten(),
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(data))
}

func printSummary(run *domain.BacktestRun, results *backtest.Results) {
	fmt.Println()
	fmt.Println("=== Backtest Result ===")
	fmt.Printf("Run ID:             %s\n", run.RunID)
	fmt.Printf("Universe:           %s\n", strings.Join(run.Symbols, ", "))
	fmt.Printf("Rebalancing Dates:  %d\n", run.NumDates)
	fmt.Printf("Separation Date:    %s\n", time.UnixMilli(run.SeparationDateMs).UTC().Format(time.RFC3339))
	fmt.Printf("Panel Fingerprint:  %s\n", run.PanelFingerprint)
	fmt.Println()

	for _, st := range results.Strategies {
		stats := metrics.Compute(results.RealizedReturns(st), metrics.PeriodsPerYearDaily)
		counts := results.StatusCounts(st)

		fmt.Printf("%s:\n", st)
		fmt.Printf("  Slots:            %d OK, %d insufficient, %d failed\n",
			counts[domain.StatusOK], counts[domain.StatusInsufficientHistory], counts[domain.StatusFailed])
		fmt.Printf("  Cumulative:       %.4f\n", stats.CumulativeReturn)
		fmt.Printf("  Ann. Return:      %.4f\n", stats.AnnualizedReturn)
		fmt.Printf("  Ann. Volatility:  %.4f\n", stats.AnnualizedVolatility)
		fmt.Printf("  Sharpe:           %.4f\n", stats.Sharpe)
		fmt.Printf("  Max Drawdown:     %.4f\n", stats.MaxDrawdown)
		fmt.Printf("  Hit Rate:         %.4f\n", stats.HitRate)
		fmt.Println()
	}
}
