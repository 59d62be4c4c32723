package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"alloc-lab/internal/domain"
	"alloc-lab/internal/observability"
	"alloc-lab/internal/panel"
	"alloc-lab/internal/storage"
	chstore "alloc-lab/internal/storage/clickhouse"
	"alloc-lab/internal/storage/memory"
	"alloc-lab/internal/storage/migrations"
)

func main() {
	// Parse flags
	inputPath := flag.String("input", "", "CSV input file: symbol,timestamp_ms,value (required)")
	format := flag.String("format", "returns", "Input format: returns or prices")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage (dry run)")
	batchSize := flag.Int("batch-size", 1000, "Insert batch size")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[ingest] ", log.LstdFlags)

	if *inputPath == "" {
		logger.Fatal("--input is required")
	}

	*format = strings.ToLower(*format)
	if *format != "returns" && *format != "prices" {
		logger.Fatalf("Invalid format: %s. Must be returns or prices", *format)
	}

	var metrics *observability.Metrics
	if *metricsAddr != "" {
		metrics = observability.NewMetrics("")
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

	// Create store
	var store storage.ReturnPointStore = memory.NewReturnPointStore()
	if !*useMemory {
		if *clickhouseDSN == "" {
			logger.Fatal("--clickhouse-dsn is required when not using --use-memory")
		}
		conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("clickhouse migrations: %v", err)
		}
		defer conn.Close()

		store = chstore.NewReturnPointStore(conn)
	}

	// Load input
	points, err := loadPoints(*inputPath, *format)
	if err != nil {
		logger.Fatalf("load input: %v", err)
	}
	logger.Printf("Parsed %d return points from %s", len(points), *inputPath)

	// Insert in batches
	inserted := 0
	for start := 0; start < len(points); start += *batchSize {
		end := start + *batchSize
		if end > len(points) {
			end = len(points)
		}
		if err := store.InsertBulk(ctx, points[start:end]); err != nil {
			logger.Fatalf("insert batch [%d:%d]: %v", start, end, err)
		}
		inserted += end - start
		metrics.ObserveIngested(end - start)
	}

	logger.Printf("Ingested %d return points", inserted)
	fmt.Printf("ok: %d points\n", inserted)
}

// loadPoints reads and parses the CSV input file.
func loadPoints(path, format string) ([]*domain.ReturnPoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := parseCSV(f)
	if err != nil {
		return nil, err
	}

	if format == "returns" {
		points := make([]*domain.ReturnPoint, len(rows))
		for i, r := range rows {
			points[i] = &domain.ReturnPoint{Symbol: r.symbol, TimestampMs: r.timestampMs, Return: r.value}
		}
		return points, nil
	}

	// Price input: convert per-symbol price series to simple returns.
	bySymbol := make(map[string][]panel.PricePoint)
	for _, r := range rows {
		bySymbol[r.symbol] = append(bySymbol[r.symbol], panel.PricePoint{
			Symbol:      r.symbol,
			TimestampMs: r.timestampMs,
			Price:       r.value,
		})
	}

	symbols := make([]string, 0, len(bySymbol))
	for s := range bySymbol {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	var points []*domain.ReturnPoint
	for _, s := range symbols {
		prices := bySymbol[s]
		sort.Slice(prices, func(i, j int) bool { return prices[i].TimestampMs < prices[j].TimestampMs })
		returns, err := panel.ReturnsFromPrices(prices)
		if err != nil {
			return nil, fmt.Errorf("convert prices for %s: %w", s, err)
		}
		points = append(points, returns...)
	}
	return points, nil
}

type csvRow struct {
	symbol      string
	timestampMs int64
	value       float64
}

// parseCSV reads symbol,timestamp_ms,value rows, skipping an optional header.
func parseCSV(r io.Reader) ([]csvRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3

	var rows []csvRow
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
		val, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad value %q: %w", line, record[2], err)
		}

		rows = append(rows, csvRow{
			symbol:      strings.TrimSpace(record[0]),
			timestampMs: ts,
			value:       val,
		})
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("no data rows in input")
	}
	return rows, nil
}
