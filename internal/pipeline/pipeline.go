package pipeline

import (
	"fmt"
	"time"

	"github.com/quantworks/workbench/internal/contracts"
	"github.com/quantworks/workbench/internal/symbols"
	"github.com/quantworks/workbench/pkg/logger"
)

// Config is the immutable per-run pipeline configuration, supplied by the
// caller. Nothing here is process-wide state; concurrent runs with different
// configs need no coordination.
type Config struct {
	Symbol      string
	Timeframe   string
	LocalTime   bool // express output timestamps in the symbol's zone
	ExcludeNews bool

	Info     symbols.Info // calendar metadata for the symbol
	Holidays []string     // local dates, "2006-01-02"

	MADMultiplier       float64
	IQRMultiplier       float64
	GapTolerancePercent float64
	ImputeMaxIterations int
	ImputeSeed          int64
}

// DateFilter is the excluded-dates list consulted by the news filter. A nil
// filter means the list is unavailable; the pipeline skips filtering and
// says so in metadata rather than failing.
type DateFilter interface {
	Excluded(t time.Time) (string, bool)
}

// Pipeline composes the cleaning stages in their one fixed order:
// validate → diagnose (context) → localize → hours filter → diagnose gaps
// (authoritative) → impute → news filter. It is the only component that
// sequences the stages; each stage remains independently callable.
type Pipeline struct {
	cfg    Config
	news   DateFilter
	logger *logger.Logger

	interval time.Duration
	location *time.Location
}

// New validates the configuration and builds a pipeline. Configuration
// errors (unknown timeframe, unresolvable zone) are fatal here, before any
// data is touched.
func New(cfg Config, news DateFilter, log *logger.Logger) (*Pipeline, error) {
	interval, ok := contracts.TimeframeInterval(cfg.Timeframe)
	if !ok {
		return nil, fmt.Errorf("%w: %q", contracts.ErrUnknownTimeframe, cfg.Timeframe)
	}

	loc, err := cfg.Info.Location()
	if err != nil {
		return nil, err
	}

	if cfg.MADMultiplier <= 0 {
		cfg.MADMultiplier = DefaultMADMultiplier
	}
	if cfg.IQRMultiplier <= 0 {
		cfg.IQRMultiplier = DefaultIQRMultiplier
	}
	if cfg.GapTolerancePercent <= 0 {
		cfg.GapTolerancePercent = 30.0
	}
	if cfg.ImputeMaxIterations <= 0 {
		cfg.ImputeMaxIterations = DefaultImputeIterations
	}

	return &Pipeline{
		cfg:      cfg,
		news:     news,
		logger:   log,
		interval: interval,
		location: loc,
	}, nil
}

// Run transforms a raw bar sequence into an analysis-ready one plus the
// metadata record carrying every non-fatal finding. The input is never
// mutated.
func (p *Pipeline) Run(raw *contracts.Series) (*contracts.Series, *contracts.Metadata, error) {
	if raw == nil || raw.Len() == 0 {
		return nil, nil, fmt.Errorf("%s %s: %w", p.cfg.Symbol, p.cfg.Timeframe, contracts.ErrEmptyInput)
	}

	meta := &contracts.Metadata{
		Symbol:    p.cfg.Symbol,
		Timeframe: p.cfg.Timeframe,
		RawBars:   raw.Len(),
		Timezone:  "UTC",
	}

	work := raw.Clone()
	work.Sort()
	work = dedupe(work, meta)

	// Stage 1: validation. Violations are recorded, never fatal.
	validation := Validate(work)
	meta.ViolationCounts = validation.Violations
	if n := validation.TotalViolations(); n > 0 {
		meta.Warn(fmt.Sprintf("%d OHLC rule violations across %d bars", n, work.Len()-validation.ValidCount()))
		p.logger.WithFields(map[string]interface{}{
			"symbol":     p.cfg.Symbol,
			"violations": n,
		}).Warn("OHLC validation found violations")
	}

	// Stage 2: pre-filter diagnostics. The raw gap percentage spans closed
	// market hours and is context only.
	meta.GapRawPercent = AnalyzeGaps(work, p.interval).GapPercent
	outliers := DetectOutliers(work, p.cfg.MADMultiplier, p.cfg.IQRMultiplier)
	meta.OutlierCounts = outliers.Counts()

	// Stage 3: localize. Session filtering needs local wall-clock time, so
	// conversion always happens here; the output zone is decided at the end.
	localized := Localize(work, p.location)

	// Stage 4: market-hours filter. Always-open markets pass through.
	sess, err := NewSession(p.cfg.Info, p.cfg.Holidays)
	if err != nil {
		return nil, nil, err
	}
	filtered := sess.Filter(localized)

	// Stage 5: authoritative gap diagnostics, on the filtered sequence only.
	cleanGaps := filtered.Gaps(p.interval)
	meta.GapCleanPercent = cleanGaps.GapPercent

	clean := filtered.Series()
	if clean.Len() == 0 {
		meta.Warn("no bars remain after session filtering")
		meta.MissingPercent = AnalyzeMissing(clean).Percent
		return clean, meta, nil
	}

	// Stage 6: imputation, only when something is missing. Above-tolerance
	// missingness degrades reliability but never drops data.
	missing := AnalyzeMissing(clean)
	meta.MissingPercent = missing.Percent
	for _, f := range contracts.Fields {
		if pct := missing.Percent[f]; pct > p.cfg.GapTolerancePercent {
			meta.Warn(fmt.Sprintf("%s: %.1f%% missing exceeds %.1f%% tolerance, imputation reliability degraded",
				f, pct, p.cfg.GapTolerancePercent))
		}
	}

	if missing.Total > 0 {
		imputer := NewImputer(p.cfg.ImputeMaxIterations, p.cfg.ImputeSeed)
		imputed, nBars, err := imputer.Impute(clean)
		if err != nil {
			return nil, nil, fmt.Errorf("impute %s %s: %w", p.cfg.Symbol, p.cfg.Timeframe, err)
		}
		clean = imputed
		meta.ImputedBars = nBars
	} else {
		clean = clean.Clone()
		EnforceConsistency(clean)
	}

	// Stage 7: news filter, local dates. Unavailable list is a warning, not
	// a failure.
	if p.cfg.ExcludeNews {
		if p.news == nil {
			meta.NewsSkipped = true
			meta.Warn("news calendar unavailable, filter skipped")
		} else {
			clean, meta.NewsFiltered = filterNewsDates(clean, p.news)
		}
	}

	// Output zone per configuration.
	if p.cfg.LocalTime {
		meta.Timezone = p.cfg.Info.Timezone
	} else {
		clean = Localize(clean, time.UTC)
	}

	meta.CleanBars = clean.Len()
	meta.Start = clean.Start()
	meta.End = clean.End()
	meta.DataQuality = dataQuality(clean)

	p.logger.WithFields(map[string]interface{}{
		"symbol":    p.cfg.Symbol,
		"timeframe": p.cfg.Timeframe,
		"raw":       meta.RawBars,
		"clean":     meta.CleanBars,
		"gap_pct":   meta.GapCleanPercent,
		"quality":   meta.DataQuality,
	}).Info("Pipeline run complete")

	return clean, meta, nil
}

// dedupe enforces one bar per timestamp, keeping the first occurrence. The
// input must be sorted.
func dedupe(s *contracts.Series, meta *contracts.Metadata) *contracts.Series {
	out := &contracts.Series{Symbol: s.Symbol, Timeframe: s.Timeframe, Bars: s.Bars[:0:0]}
	var last time.Time
	dropped := 0
	for i, bar := range s.Bars {
		if i > 0 && bar.Timestamp.Equal(last) {
			dropped++
			continue
		}
		out.Bars = append(out.Bars, bar)
		last = bar.Timestamp
	}
	if dropped > 0 {
		meta.Warn(fmt.Sprintf("%d duplicate-timestamp bars dropped", dropped))
	}
	return out
}

// filterNewsDates drops every bar whose local calendar date is excluded.
func filterNewsDates(s *contracts.Series, news DateFilter) (*contracts.Series, int) {
	out := &contracts.Series{Symbol: s.Symbol, Timeframe: s.Timeframe}
	removed := 0
	for _, bar := range s.Bars {
		if _, excluded := news.Excluded(bar.Timestamp); excluded {
			removed++
			continue
		}
		out.Bars = append(out.Bars, bar)
	}
	return out, removed
}

// dataQuality is 100 * (1 - remaining invalid-or-missing bars / total).
func dataQuality(s *contracts.Series) float64 {
	if s.Len() == 0 {
		return 0
	}
	report := Validate(s)
	bad := s.Len() - report.ValidCount()
	return 100 * (1 - float64(bad)/float64(s.Len()))
}
