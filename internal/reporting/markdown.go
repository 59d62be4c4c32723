package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Backtest Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Strategies: %d\n\n", r.StrategyCount))

	// Run Summary
	sb.WriteString("## Run Summary\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Run ID | %s |\n", r.RunSummary.RunID))
	sb.WriteString(fmt.Sprintf("| Created At (ms) | %d |\n", r.RunSummary.CreatedAtMs))
	sb.WriteString(fmt.Sprintf("| Universe | %s |\n", strings.Join(r.RunSummary.Symbols, ", ")))
	sb.WriteString(fmt.Sprintf("| Panel Dates | %d |\n", r.RunSummary.NumDates))
	sb.WriteString(fmt.Sprintf("| Separation Date (ms) | %d |\n", r.RunSummary.SeparationDateMs))
	sb.WriteString(fmt.Sprintf("| Strategies | %s |\n", strings.Join(r.RunSummary.Strategies, ", ")))
	sb.WriteString(fmt.Sprintf("| Penalty | alpha=%g, lambda=%g |\n", r.RunSummary.PenaltyAlpha, r.RunSummary.PenaltyLambda))
	sb.WriteString(fmt.Sprintf("| Panel Fingerprint | %s |\n", r.RunSummary.PanelFingerprint))
	sb.WriteString("\n")

	// Data Quality
	if len(r.DataQuality.SufficiencyChecks) > 0 {
		sb.WriteString("## Data Quality\n\n")
		sb.WriteString("| Check | Threshold | Actual | Status |\n")
		sb.WriteString("|-------|-----------|--------|--------|\n")
		for _, check := range r.DataQuality.SufficiencyChecks {
			status := "FAIL"
			if check.Pass {
				status = "PASS"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				check.Name, check.Threshold, check.Actual, status))
		}
		sb.WriteString("\n")

		if r.DataQuality.AllChecksPassed {
			sb.WriteString("**All checks passed.**\n\n")
		} else {
			sb.WriteString("**Some checks failed.** Results include INSUFFICIENT_HISTORY markers.\n\n")
		}
	}

	// Strategy Metrics
	sb.WriteString("## Strategy Metrics\n\n")
	if len(r.StrategyMetrics) > 0 {
		sb.WriteString("| Strategy | Periods | CumRet | AnnRet | AnnVol | Sharpe | MaxDD | HitRate | OK | Insufficient | Failed |\n")
		sb.WriteString("|----------|---------|--------|--------|--------|--------|-------|---------|----|--------------|--------|\n")
		for _, m := range r.StrategyMetrics {
			sb.WriteString(fmt.Sprintf("| %s | %d | %.4f | %.4f | %.4f | %.4f | %.4f | %.4f | %d | %d | %d |\n",
				m.StrategyID, m.Periods, m.CumulativeReturn, m.AnnualizedReturn,
				m.AnnualizedVolatility, m.Sharpe, m.MaxDrawdown, m.HitRate,
				m.OKCount, m.InsufficientCount, m.FailedCount))
		}
	} else {
		sb.WriteString("No strategy metrics available.\n")
	}
	sb.WriteString("\n")

	// Failures
	sb.WriteString("## Non-OK Slots\n\n")
	if len(r.Failures) > 0 {
		sb.WriteString("| Strategy | Timestamp (ms) | Status | Reason |\n")
		sb.WriteString("|----------|----------------|--------|--------|\n")
		for _, f := range r.Failures {
			sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s |\n",
				f.StrategyID, f.TimestampMs, f.Status, f.Reason))
		}
	} else {
		sb.WriteString("All slots computed successfully.\n")
	}
	sb.WriteString("\n")

	// Final Weights
	sb.WriteString("## Final Weights\n\n")
	if len(r.WeightSnapshots) > 0 {
		sb.WriteString("| Strategy | Timestamp (ms) | Weights |\n")
		sb.WriteString("|----------|----------------|--------|\n")
		for _, w := range r.WeightSnapshots {
			parts := make([]string, len(w.Weights))
			for i, v := range w.Weights {
				parts[i] = fmt.Sprintf("%.4f", v)
			}
			sb.WriteString(fmt.Sprintf("| %s | %d | %s |\n",
				w.StrategyID, w.TimestampMs, strings.Join(parts, ", ")))
		}
	} else {
		sb.WriteString("No successful rebalances recorded.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
