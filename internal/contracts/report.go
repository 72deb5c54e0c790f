package contracts

import "time"

// Rule identifies one OHLC validation rule.
type Rule string

const (
	RuleHighBelowLow   Rule = "high_below_low"
	RuleHighBelowBody  Rule = "high_below_body" // high < max(open, close)
	RuleLowAboveBody   Rule = "low_above_body"  // low > min(open, close)
	RuleNonPositive    Rule = "non_positive_price"
	RuleMissingPresent Rule = "nan_present"
)

// Rules lists all validation rules in reporting order.
var Rules = []Rule{
	RuleHighBelowLow, RuleHighBelowBody, RuleLowAboveBody,
	RuleNonPositive, RuleMissingPresent,
}

// ValidationReport holds the per-bar validity mask and per-rule violation
// counts. Violations are recorded, never acted on here.
type ValidationReport struct {
	Valid      []bool       `json:"-"`
	Violations map[Rule]int `json:"violations"`
}

// ValidCount returns the number of bars passing every rule.
func (r *ValidationReport) ValidCount() int {
	n := 0
	for _, ok := range r.Valid {
		if ok {
			n++
		}
	}
	return n
}

// TotalViolations returns the sum of all rule violation counts.
func (r *ValidationReport) TotalViolations() int {
	n := 0
	for _, c := range r.Violations {
		n += c
	}
	return n
}

// GapReport summarizes bar continuity within an already-filtered sequence.
// Purely informational; a gap never blocks the pipeline.
type GapReport struct {
	ExpectedBars int           `json:"expected_bars"`
	ActualBars   int           `json:"actual_bars"`
	GapPercent   float64       `json:"gap_percent"`
	GapCount     int           `json:"gap_count"`   // gaps exceeding one nominal interval
	LargestGap   time.Duration `json:"largest_gap"` // longest above-interval distance; zero when gapless
}

// MissingReport holds the missing-value percentage per OHLCV field.
type MissingReport struct {
	Percent map[Field]float64 `json:"percent"`
	Total   int               `json:"total"` // total NaN cells across all fields
}

// MaxPercent returns the largest per-field missing percentage.
func (r *MissingReport) MaxPercent() float64 {
	max := 0.0
	for _, p := range r.Percent {
		if p > max {
			max = p
		}
	}
	return max
}

// OutlierReport holds outlier indices per field for each detection method.
// The two methods are reported separately so callers can see disagreement.
type OutlierReport struct {
	MAD map[Field][]int `json:"mad"`
	IQR map[Field][]int `json:"iqr"`
}

// Counts returns the per-field union-free counts keyed as "<field>_mad" and
// "<field>_iqr".
func (r *OutlierReport) Counts() map[string]int {
	counts := make(map[string]int)
	for f, idx := range r.MAD {
		if len(idx) > 0 {
			counts[string(f)+"_mad"] = len(idx)
		}
	}
	for f, idx := range r.IQR {
		if len(idx) > 0 {
			counts[string(f)+"_iqr"] = len(idx)
		}
	}
	return counts
}

// DiagnosticReport bundles the non-authoritative diagnostics computed at one
// point in the pipeline. Recomputed each run, never persisted.
type DiagnosticReport struct {
	Gaps     GapReport     `json:"gaps"`
	Missing  MissingReport `json:"missing"`
	Outliers OutlierReport `json:"outliers"`
}

// Metadata is the single surface for everything a pipeline run found or did.
// No silent data loss: every non-fatal finding lands here.
type Metadata struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`

	RawBars   int `json:"raw_bars"`
	CleanBars int `json:"clean_bars"`

	// GapRawPercent spans unfiltered wall-clock time and is context only; the
	// authoritative figure is GapCleanPercent, computed after hours filtering.
	GapRawPercent   float64 `json:"gap_raw_percent"`
	GapCleanPercent float64 `json:"gap_clean_percent"`

	MissingPercent  map[Field]float64 `json:"missing_percent"`
	OutlierCounts   map[string]int    `json:"outlier_counts"`
	ViolationCounts map[Rule]int      `json:"violation_counts"`

	ImputedBars  int  `json:"imputed_bars"`
	NewsFiltered int  `json:"news_filtered"`
	NewsSkipped  bool `json:"news_skipped"` // filter requested but list unavailable

	DataQuality float64 `json:"data_quality"` // 100 * (1 - remaining invalid-or-missing / total)

	Timezone string    `json:"timezone"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`

	Warnings []string `json:"warnings,omitempty"`
}

// Warn appends a data-quality warning to the metadata record.
func (m *Metadata) Warn(msg string) {
	m.Warnings = append(m.Warnings, msg)
}
