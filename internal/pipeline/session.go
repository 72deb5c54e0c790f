package pipeline

import (
	"time"

	"github.com/quantworks/workbench/internal/contracts"
	"github.com/quantworks/workbench/internal/symbols"
)

// Localize returns a new series with every timestamp expressed in loc's
// wall-clock time. The conversion is per-instant, so each timestamp carries
// its own seasonal offset: a UTC instant inside the spring-forward gap maps
// past the skipped hour, and the two instants of a fall-back hour keep
// distinct offsets (and ordering) behind identical clock labels. Bar count is
// unchanged — conversion never drops or duplicates bars.
func Localize(s *contracts.Series, loc *time.Location) *contracts.Series {
	out := s.Clone()
	for i := range out.Bars {
		out.Bars[i].Timestamp = out.Bars[i].Timestamp.In(loc)
	}
	return out
}

// Session is the trading-hours window for one symbol: local open/close times,
// weekday trading and an excluded-holiday list.
type Session struct {
	Location   *time.Location
	Open       symbols.ClockTime
	Close      symbols.ClockTime
	Holidays   map[string]struct{} // local dates, "2006-01-02"
	AlwaysOpen bool
}

// NewSession builds a Session from symbol metadata.
func NewSession(info symbols.Info, holidays []string) (Session, error) {
	loc, err := info.Location()
	if err != nil {
		return Session{}, err
	}
	sess := Session{
		Location:   loc,
		Open:       info.MarketOpen,
		Close:      info.MarketClose,
		AlwaysOpen: info.AlwaysOpen(),
		Holidays:   make(map[string]struct{}, len(holidays)),
	}
	for _, d := range holidays {
		sess.Holidays[d] = struct{}{}
	}
	return sess, nil
}

// SessionSeries is a bar sequence restricted to trading hours. It is produced
// only by Session.Filter, and it is the only input the authoritative gap
// report accepts — gap diagnostics on unfiltered data cannot be mistaken for
// the real thing.
type SessionSeries struct {
	series *contracts.Series
}

// Series returns the underlying filtered series.
func (ss SessionSeries) Series() *contracts.Series { return ss.series }

// Gaps computes the authoritative gap report over the session-filtered
// sequence.
func (ss SessionSeries) Gaps(interval time.Duration) contracts.GapReport {
	return AnalyzeGaps(ss.series, interval)
}

// Filter retains only bars whose local time-of-day lies within
// [open, close] inclusive on a weekday that is not a holiday. Always-open
// markets pass through untouched. The input series must already be localized
// to the session's zone.
func (sess Session) Filter(s *contracts.Series) SessionSeries {
	if sess.AlwaysOpen {
		return SessionSeries{series: s.Clone()}
	}

	out := &contracts.Series{Symbol: s.Symbol, Timeframe: s.Timeframe}
	openMin := sess.Open.Minutes()
	closeMin := sess.Close.Minutes()

	for _, bar := range s.Bars {
		local := bar.Timestamp.In(sess.Location)

		wd := local.Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			continue
		}
		if _, holiday := sess.Holidays[local.Format("2006-01-02")]; holiday {
			continue
		}

		minutes := local.Hour()*60 + local.Minute()
		if minutes < openMin || minutes > closeMin {
			continue
		}

		out.Bars = append(out.Bars, bar)
	}

	return SessionSeries{series: out}
}
