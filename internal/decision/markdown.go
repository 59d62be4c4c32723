package decision

import (
	"fmt"
	"strings"
)

// RenderMarkdown renders a DecisionResult as a Markdown report.
func RenderMarkdown(result *DecisionResult) string {
	var sb strings.Builder

	in := result.Input
	fmt.Fprintf(&sb, "# Decision Gate: %s vs %s\n\n", in.CandidateStrategy, in.BaselineStrategy)
	fmt.Fprintf(&sb, "**Decision: %s**\n\n", result.Decision)
	fmt.Fprintf(&sb, "Candidate covered %d of %d rebalancing slots (%d failed, %d with insufficient history).\n\n",
		in.OKCount, in.TotalSlots, in.FailedCount, in.InsufficientCount)

	sb.WriteString("## GO Criteria\n\n")
	sb.WriteString("| Criterion | Threshold | Actual | Pass |\n")
	sb.WriteString("|-----------|-----------|--------|------|\n")
	goPassed := 0
	for _, c := range result.GOCriteria {
		passStr := "FAIL"
		if c.Pass {
			passStr = "PASS"
			goPassed++
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n", c.Name, c.Threshold, c.Actual, passStr)
	}
	fmt.Fprintf(&sb, "\nGO Criteria: %d/%d passed\n\n", goPassed, len(result.GOCriteria))

	sb.WriteString("## NO-GO Triggers\n\n")
	sb.WriteString("| Trigger | Condition | Actual | Status |\n")
	sb.WriteString("|---------|-----------|--------|--------|\n")
	triggered := 0
	for _, c := range result.NOGOChecks {
		statusStr := "NOT TRIGGERED"
		if !c.Pass { // Pass=false means triggered
			statusStr = "TRIGGERED"
			triggered++
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n", c.Name, c.Threshold, c.Actual, statusStr)
	}
	fmt.Fprintf(&sb, "\nNO-GO Triggers: %d/%d triggered\n", triggered, len(result.NOGOChecks))

	if result.Decision == DecisionNOGO {
		sb.WriteString("\n## Blocking Findings\n\n")
		for _, c := range result.GOCriteria {
			if !c.Pass {
				fmt.Fprintf(&sb, "- %s missed its threshold (%s, actual %s)\n", c.Name, c.Threshold, c.Actual)
			}
		}
		for _, c := range result.NOGOChecks {
			if !c.Pass {
				fmt.Fprintf(&sb, "- %s fired (%s, actual %s)\n", c.Name, c.Threshold, c.Actual)
			}
		}
	}

	return sb.String()
}
