package contracts

import (
	"math"
	"sort"
	"strings"
	"time"
)

// Bar is a single OHLCV observation. Prices and volume are float64 so that
// missing values can be carried as NaN through the pipeline until imputation.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Field names one of the five OHLCV columns.
type Field string

const (
	FieldOpen   Field = "open"
	FieldHigh   Field = "high"
	FieldLow    Field = "low"
	FieldClose  Field = "close"
	FieldVolume Field = "volume"
)

// Fields lists all OHLCV fields in column order.
var Fields = []Field{FieldOpen, FieldHigh, FieldLow, FieldClose, FieldVolume}

// Value returns the bar's value for the given field.
func (b *Bar) Value(f Field) float64 {
	switch f {
	case FieldOpen:
		return b.Open
	case FieldHigh:
		return b.High
	case FieldLow:
		return b.Low
	case FieldClose:
		return b.Close
	case FieldVolume:
		return b.Volume
	}
	return math.NaN()
}

// SetValue sets the bar's value for the given field.
func (b *Bar) SetValue(f Field, v float64) {
	switch f {
	case FieldOpen:
		b.Open = v
	case FieldHigh:
		b.High = v
	case FieldLow:
		b.Low = v
	case FieldClose:
		b.Close = v
	case FieldVolume:
		b.Volume = v
	}
}

// HasNaN reports whether any OHLCV field of the bar is NaN.
func (b *Bar) HasNaN() bool {
	return math.IsNaN(b.Open) || math.IsNaN(b.High) || math.IsNaN(b.Low) ||
		math.IsNaN(b.Close) || math.IsNaN(b.Volume)
}

// Series is an ordered-by-timestamp bar sequence for one (symbol, timeframe)
// pair. One bar per timestamp; the pipeline owns the slice end to end.
type Series struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
	Bars      []Bar  `json:"bars"`
}

// Len returns the number of bars in the series.
func (s *Series) Len() int { return len(s.Bars) }

// Clone returns a deep copy of the series. Stages that transform data operate
// on a copy so the caller's input is never aliased.
func (s *Series) Clone() *Series {
	out := &Series{Symbol: s.Symbol, Timeframe: s.Timeframe}
	out.Bars = make([]Bar, len(s.Bars))
	copy(out.Bars, s.Bars)
	return out
}

// Sort orders bars by their underlying instant, ascending. Ordering compares
// instants, not wall-clock labels, so fall-back duplicates keep their order.
func (s *Series) Sort() {
	sort.SliceStable(s.Bars, func(i, j int) bool {
		return s.Bars[i].Timestamp.Before(s.Bars[j].Timestamp)
	})
}

// Span returns the elapsed time between the first and last bar.
func (s *Series) Span() time.Duration {
	if len(s.Bars) < 2 {
		return 0
	}
	return s.Bars[len(s.Bars)-1].Timestamp.Sub(s.Bars[0].Timestamp)
}

// Start returns the first bar's timestamp, or the zero time for an empty series.
func (s *Series) Start() time.Time {
	if len(s.Bars) == 0 {
		return time.Time{}
	}
	return s.Bars[0].Timestamp
}

// End returns the last bar's timestamp, or the zero time for an empty series.
func (s *Series) End() time.Time {
	if len(s.Bars) == 0 {
		return time.Time{}
	}
	return s.Bars[len(s.Bars)-1].Timestamp
}

// timeframeIntervals maps supported timeframes to their nominal bar interval.
var timeframeIntervals = map[string]time.Duration{
	"m1":  time.Minute,
	"m5":  5 * time.Minute,
	"m15": 15 * time.Minute,
	"h1":  time.Hour,
	"d1":  24 * time.Hour,
}

// TimeframeInterval returns the nominal interval for a timeframe label
// (m1, m5, m15, h1, d1).
func TimeframeInterval(timeframe string) (time.Duration, bool) {
	d, ok := timeframeIntervals[strings.ToLower(timeframe)]
	return d, ok
}
