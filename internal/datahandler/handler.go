// Package datahandler is the top-level facade: one call takes a symbol,
// timeframe and date range and returns analysis-ready bars plus the cleaning
// metadata. It wires the repository, the cleaning pipeline, the news calendar
// and the optional result cache together.
package datahandler

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"strings"
	"time"

	"github.com/quantworks/workbench/internal/calendar"
	"github.com/quantworks/workbench/internal/contracts"
	"github.com/quantworks/workbench/internal/pipeline"
	"github.com/quantworks/workbench/internal/symbols"
	"github.com/quantworks/workbench/pkg/config"
	"github.com/quantworks/workbench/pkg/logger"
	"github.com/quantworks/workbench/pkg/redis"
)

// BarFetcher supplies raw bars. *marketdata.Repository is the production
// implementation; tests substitute their own.
type BarFetcher interface {
	FetchOHLCV(ctx context.Context, symbol, timeframe string, start, end time.Time) (*contracts.Series, error)
}

// Options are the per-request cleaning switches.
type Options struct {
	LocalTime   bool // express output timestamps in the symbol's zone
	ExcludeNews bool // drop bars on excluded news dates
}

// Handler cleans market data on demand.
type Handler struct {
	fetcher  BarFetcher
	registry *symbols.Registry
	cache    *redis.Cache // nil disables caching
	cleaning config.CleaningConfig
	news     *calendar.Calendar // nil when the list is unavailable
	logger   *logger.Logger
}

// New builds a handler. The news calendar is loaded from cfg.Calendar.File
// once, here; a missing file degrades to no news filtering.
func New(fetcher BarFetcher, registry *symbols.Registry, cache *redis.Cache, cfg *config.Config, log *logger.Logger) *Handler {
	h := &Handler{
		fetcher:  fetcher,
		registry: registry,
		cache:    cache,
		cleaning: cfg.Cleaning,
		logger:   log,
	}

	cal, err := calendar.LoadCSV(cfg.Calendar.File)
	switch {
	case err == nil:
		h.news = cal
		log.WithField("dates", cal.Len()).Debug("Loaded news calendar")
	case os.IsNotExist(err):
		log.WithField("file", cfg.Calendar.File).Warn("News calendar file not found, filter will be skipped")
	default:
		log.WithError(err).Warn("News calendar unreadable, filter will be skipped")
	}

	return h
}

// cachedResult is the cache payload: the cleaned bars together with the
// metadata describing how they were produced.
type cachedResult struct {
	Series   *contracts.Series   `json:"series"`
	Metadata *contracts.Metadata `json:"metadata"`
}

// GetCleanMarketData fetches, cleans and returns bars for the requested
// window. The returned metadata carries every non-fatal finding; errors are
// reserved for configuration mistakes and unrecoverable transformations.
func (h *Handler) GetCleanMarketData(ctx context.Context, symbol, timeframe string, start, end time.Time, opts Options) (*contracts.Series, *contracts.Metadata, error) {
	info, err := h.registry.Get(symbol)
	if err != nil {
		return nil, nil, err
	}
	if _, ok := contracts.TimeframeInterval(timeframe); !ok {
		return nil, nil, fmt.Errorf("%w: %q", contracts.ErrUnknownTimeframe, timeframe)
	}

	preWarnings, err := validateDateRange(start, end)
	if err != nil {
		return nil, nil, err
	}

	key := redis.CleanSeriesKey(symbol, timeframe, start, end, h.configHash(opts))
	if h.cache != nil {
		var cached cachedResult
		hit, err := h.cache.Get(ctx, key, &cached)
		if err != nil {
			h.logger.WithError(err).Warn("Cache read failed")
		} else if hit {
			series, err := rezone(cached.Series, opts.LocalTime, info)
			if err != nil {
				return nil, nil, err
			}
			h.logger.WithField("key", key).Debug("Clean series cache hit")
			return series, cached.Metadata, nil
		}
	}

	raw, err := h.fetcher.FetchOHLCV(ctx, symbol, timeframe, start, end)
	if err != nil {
		return nil, nil, err
	}

	p, err := pipeline.New(pipeline.Config{
		Symbol:              symbol,
		Timeframe:           timeframe,
		LocalTime:           opts.LocalTime,
		ExcludeNews:         opts.ExcludeNews,
		Info:                info,
		Holidays:            h.cleaning.MarketHolidays,
		MADMultiplier:       h.cleaning.MADMultiplier,
		IQRMultiplier:       h.cleaning.IQRMultiplier,
		GapTolerancePercent: h.cleaning.GapTolerancePercent,
		ImputeMaxIterations: h.cleaning.ImputeMaxIterations,
		ImputeSeed:          h.cleaning.ImputeSeed,
	}, h.newsFilter(), h.logger)
	if err != nil {
		return nil, nil, err
	}

	clean, meta, err := p.Run(raw)
	if err != nil {
		return nil, nil, err
	}

	for _, w := range preWarnings {
		meta.Warn(w)
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, key, cachedResult{Series: clean, Metadata: meta}, redis.TTLLong); err != nil {
			h.logger.WithError(err).Warn("Cache write failed")
		}
	}

	return clean, meta, nil
}

// rezone re-expresses timestamps in the requested output zone. The cache
// round-trip decodes timestamps into fixed-offset zones, and a hit must be
// indistinguishable from a miss.
func rezone(s *contracts.Series, localTime bool, info symbols.Info) (*contracts.Series, error) {
	loc := time.UTC
	if localTime {
		var err error
		if loc, err = info.Location(); err != nil {
			return nil, err
		}
	}
	return pipeline.Localize(s, loc), nil
}

// newsFilter adapts the loaded calendar to the pipeline's filter interface.
// A nil calendar must stay a nil interface, not a typed nil.
func (h *Handler) newsFilter() pipeline.DateFilter {
	if h.news == nil {
		return nil
	}
	return h.news
}

// earliestPlausible guards against obviously wrong start dates; requests
// before it proceed with a warning.
var earliestPlausible = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// validateDateRange rejects inverted ranges and flags suspicious ones.
func validateDateRange(start, end time.Time) ([]string, error) {
	if start.After(end) {
		return nil, fmt.Errorf("%w: %s > %s", contracts.ErrInvalidDateRange,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	var warnings []string
	if start.Equal(end) {
		warnings = append(warnings, "start equals end, window covers a single instant")
	}
	if start.Before(earliestPlausible) {
		warnings = append(warnings, fmt.Sprintf("start %s predates available history",
			start.Format("2006-01-02")))
	}
	return warnings, nil
}

// configHash fingerprints the cleaning parameters so cached results from
// different configurations never collide.
func (h *Handler) configHash(opts Options) string {
	hash := fnv.New64a()
	fmt.Fprintf(hash, "%v|%v|%v|%d|%d|%t|%t|%s",
		h.cleaning.MADMultiplier,
		h.cleaning.IQRMultiplier,
		h.cleaning.GapTolerancePercent,
		h.cleaning.ImputeMaxIterations,
		h.cleaning.ImputeSeed,
		opts.LocalTime,
		opts.ExcludeNews,
		strings.Join(h.cleaning.MarketHolidays, ","),
	)
	return fmt.Sprintf("%x", hash.Sum64())
}
