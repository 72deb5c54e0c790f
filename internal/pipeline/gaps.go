package pipeline

import (
	"time"

	"github.com/quantworks/workbench/internal/contracts"
)

// AnalyzeGaps computes bar continuity from elapsed-time arithmetic within the
// sequence itself: expected = floor(span/interval)+1. It never enumerates a
// wall-clock grid, so it cannot conflate "market closed" with "data missing" —
// but on an unfiltered sequence the result still counts closed hours as gaps
// and is context only. The authoritative figure comes from
// SessionSeries.Gaps, which only accepts hours-filtered data.
func AnalyzeGaps(s *contracts.Series, interval time.Duration) contracts.GapReport {
	report := contracts.GapReport{ActualBars: s.Len()}
	if s.Len() < 2 || interval <= 0 {
		report.ExpectedBars = s.Len()
		return report
	}

	span := s.Span()
	report.ExpectedBars = int(span/interval) + 1
	if report.ExpectedBars > 0 {
		missing := float64(report.ExpectedBars - report.ActualBars)
		report.GapPercent = 100 * missing / float64(report.ExpectedBars)
	}
	if report.GapPercent < 0 {
		// More bars than the grid implies (sub-interval duplicates); clamp.
		report.GapPercent = 0
	}

	for i := 1; i < len(s.Bars); i++ {
		delta := s.Bars[i].Timestamp.Sub(s.Bars[i-1].Timestamp)
		if delta <= interval {
			continue
		}
		report.GapCount++
		if delta > report.LargestGap {
			report.LargestGap = delta
		}
	}

	return report
}

// AnalyzeMissing computes the NaN percentage per OHLCV field.
func AnalyzeMissing(s *contracts.Series) contracts.MissingReport {
	report := contracts.MissingReport{Percent: make(map[contracts.Field]float64, len(contracts.Fields))}
	n := s.Len()
	if n == 0 {
		for _, f := range contracts.Fields {
			report.Percent[f] = 0
		}
		return report
	}

	for _, f := range contracts.Fields {
		missing := 0
		for i := range s.Bars {
			if isNaN(s.Bars[i].Value(f)) {
				missing++
			}
		}
		report.Percent[f] = 100 * float64(missing) / float64(n)
		report.Total += missing
	}

	return report
}
