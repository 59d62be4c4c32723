package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders strategy metrics as CSV string.
func RenderCSV(metrics []StrategyMetricRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("strategy_id,periods,cumulative_return,annualized_return,annualized_volatility,")
	sb.WriteString("sharpe,max_drawdown,hit_rate,ok_count,insufficient_count,failed_count\n")

	// Rows
	for _, m := range metrics {
		sb.WriteString(fmt.Sprintf("%s,%d,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%d,%d,%d\n",
			m.StrategyID,
			m.Periods,
			m.CumulativeReturn,
			m.AnnualizedReturn,
			m.AnnualizedVolatility,
			m.Sharpe,
			m.MaxDrawdown,
			m.HitRate,
			m.OKCount,
			m.InsufficientCount,
			m.FailedCount,
		))
	}

	return sb.String()
}
