package pipeline

import (
	"fmt"

	"alloc-lab/internal/domain"
)

// SufficiencyCheck represents one data sufficiency criterion.
type SufficiencyCheck struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// SufficiencyResult contains all checks.
type SufficiencyResult struct {
	Checks  []SufficiencyCheck
	AllPass bool
}

// SufficiencyChecker validates the return panel before a backtest run.
// A failed check means the run would produce mostly INSUFFICIENT_HISTORY
// markers or no rebalance dates at all.
type SufficiencyChecker struct {
	panel            *domain.ReturnMatrix
	separationDateMs int64
}

// NewSufficiencyChecker creates a new sufficiency checker.
func NewSufficiencyChecker(panel *domain.ReturnMatrix, separationDateMs int64) *SufficiencyChecker {
	return &SufficiencyChecker{
		panel:            panel,
		separationDateMs: separationDateMs,
	}
}

// Check performs all 4 sufficiency checks.
func (c *SufficiencyChecker) Check() *SufficiencyResult {
	result := &SufficiencyResult{
		Checks:  make([]SufficiencyCheck, 0, 4),
		AllPass: true,
	}

	checks := []SufficiencyCheck{
		c.checkUniverseSize(),
		c.checkPanelLength(),
		c.checkTrainingRows(),
		c.checkRebalanceDates(),
	}

	for _, check := range checks {
		result.Checks = append(result.Checks, check)
		if !check.Pass {
			result.AllPass = false
		}
	}

	return result
}

// checkUniverseSize: at least 2 assets, below that hedging and covariance
// strategies are meaningless.
func (c *SufficiencyChecker) checkUniverseSize() SufficiencyCheck {
	n := c.panel.NumAssets()
	return SufficiencyCheck{
		Name:      "Universe size",
		Threshold: ">= 2 assets",
		Actual:    fmt.Sprintf("%d", n),
		Pass:      n >= 2,
	}
}

// checkPanelLength: enough dates for at least one full training window plus
// one out-of-sample date.
func (c *SufficiencyChecker) checkPanelLength() SufficiencyCheck {
	required := c.panel.NumAssets() + 2
	actual := c.panel.NumDates()
	return SufficiencyCheck{
		Name:      "Panel length",
		Threshold: fmt.Sprintf(">= %d dates", required),
		Actual:    fmt.Sprintf("%d dates", actual),
		Pass:      actual >= required,
	}
}

// checkTrainingRows: covariance strategies need more training rows than
// assets at the first rebalance date, otherwise every early date is marked
// INSUFFICIENT_HISTORY.
func (c *SufficiencyChecker) checkTrainingRows() SufficiencyCheck {
	required := c.panel.NumAssets() + 1
	training := c.panel.Window(c.separationDateMs).NumDates()
	return SufficiencyCheck{
		Name:      "Training rows before separation",
		Threshold: fmt.Sprintf(">= %d rows", required),
		Actual:    fmt.Sprintf("%d rows", training),
		Pass:      training >= required,
	}
}

// checkRebalanceDates: at least one date strictly after separation.
func (c *SufficiencyChecker) checkRebalanceDates() SufficiencyCheck {
	count := 0
	for _, d := range c.panel.Dates() {
		if d > c.separationDateMs {
			count++
		}
	}
	return SufficiencyCheck{
		Name:      "Rebalance dates after separation",
		Threshold: ">= 1",
		Actual:    fmt.Sprintf("%d", count),
		Pass:      count >= 1,
	}
}
