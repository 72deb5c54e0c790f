// Package pipeline implements the data-cleaning pipeline: OHLC validation,
// gap and outlier diagnostics, multivariate imputation, timezone/session
// normalization and the orchestrator composing them.
package pipeline

import (
	"math"

	"github.com/quantworks/workbench/internal/contracts"
)

// Validate checks OHLC logical consistency and price positivity over a bar
// sequence. It produces a per-bar validity mask and per-rule violation counts.
// Violations are recorded, never raised; nothing is mutated.
func Validate(s *contracts.Series) *contracts.ValidationReport {
	report := &contracts.ValidationReport{
		Valid:      make([]bool, len(s.Bars)),
		Violations: make(map[contracts.Rule]int),
	}
	for _, rule := range contracts.Rules {
		report.Violations[rule] = 0
	}

	for i := range s.Bars {
		b := &s.Bars[i]
		valid := true

		if b.HasNaN() {
			report.Violations[contracts.RuleMissingPresent]++
			valid = false
		}

		// NaN comparisons are false, so a missing field never double-counts
		// as a consistency violation.
		if b.High < b.Low {
			report.Violations[contracts.RuleHighBelowLow]++
			valid = false
		}
		if b.High < b.Open || b.High < b.Close {
			report.Violations[contracts.RuleHighBelowBody]++
			valid = false
		}
		if b.Low > b.Open || b.Low > b.Close {
			report.Violations[contracts.RuleLowAboveBody]++
			valid = false
		}
		if nonPositive(b.Open) || nonPositive(b.High) || nonPositive(b.Low) || nonPositive(b.Close) {
			report.Violations[contracts.RuleNonPositive]++
			valid = false
		}

		report.Valid[i] = valid
	}

	return report
}

func nonPositive(v float64) bool {
	return !math.IsNaN(v) && v <= 0
}
