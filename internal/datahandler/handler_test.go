package datahandler

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantworks/workbench/internal/contracts"
	"github.com/quantworks/workbench/internal/symbols"
	"github.com/quantworks/workbench/pkg/config"
	"github.com/quantworks/workbench/pkg/logger"
)

// fakeFetcher serves a canned series and records the request.
type fakeFetcher struct {
	series *contracts.Series
	err    error

	symbol    string
	timeframe string
}

func (f *fakeFetcher) FetchOHLCV(_ context.Context, symbol, timeframe string, _, _ time.Time) (*contracts.Series, error) {
	f.symbol = symbol
	f.timeframe = timeframe
	if f.err != nil {
		return nil, f.err
	}
	return f.series, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Calendar: config.CalendarConfig{
			File: filepath.Join(t.TempDir(), "absent.csv"),
		},
		Cleaning: config.CleaningConfig{
			MADMultiplier:       3.0,
			IQRMultiplier:       1.5,
			GapTolerancePercent: 30.0,
			ImputeMaxIterations: 10,
			ImputeSeed:          42,
		},
	}
}

func cannedSeries(n int) *contracts.Series {
	s := &contracts.Series{Symbol: "ethusdt", Timeframe: "m5"}
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		price := 100 + 0.1*float64(i%7)
		s.Bars = append(s.Bars, contracts.Bar{
			Timestamp: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:      price,
			High:      price + 0.5,
			Low:       price - 0.5,
			Close:     price + 0.1,
			Volume:    1000,
		})
	}
	return s
}

func TestGetCleanMarketData(t *testing.T) {
	fetcher := &fakeFetcher{series: cannedSeries(100)}
	h := New(fetcher, symbols.Default(), nil, testConfig(t), logger.NewNop())

	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

	clean, meta, err := h.GetCleanMarketData(context.Background(), "ethusdt", "m5", start, end, Options{})
	require.NoError(t, err)

	assert.Equal(t, "ethusdt", fetcher.symbol)
	assert.Equal(t, "m5", fetcher.timeframe)
	assert.Equal(t, 100, clean.Len())
	assert.Equal(t, 100, meta.CleanBars)
	assert.Equal(t, 100.0, meta.DataQuality)
}

func TestGetCleanMarketDataImputes(t *testing.T) {
	s := cannedSeries(100)
	s.Bars[5].Close = math.NaN()
	s.Bars[50].Close = math.NaN()

	fetcher := &fakeFetcher{series: s}
	h := New(fetcher, symbols.Default(), nil, testConfig(t), logger.NewNop())

	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

	clean, meta, err := h.GetCleanMarketData(context.Background(), "ethusdt", "m5", start, end, Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, meta.ImputedBars)
	for i := range clean.Bars {
		assert.False(t, clean.Bars[i].HasNaN(), "bar %d", i)
	}
}

func TestGetCleanMarketDataUnknownSymbol(t *testing.T) {
	h := New(&fakeFetcher{}, symbols.Default(), nil, testConfig(t), logger.NewNop())

	_, _, err := h.GetCleanMarketData(context.Background(), "nope", "m5",
		time.Now().Add(-time.Hour), time.Now(), Options{})

	assert.ErrorIs(t, err, contracts.ErrUnknownSymbol)
}

func TestGetCleanMarketDataUnknownTimeframe(t *testing.T) {
	h := New(&fakeFetcher{}, symbols.Default(), nil, testConfig(t), logger.NewNop())

	_, _, err := h.GetCleanMarketData(context.Background(), "ethusdt", "m30",
		time.Now().Add(-time.Hour), time.Now(), Options{})

	assert.ErrorIs(t, err, contracts.ErrUnknownTimeframe)
}

func TestGetCleanMarketDataInvalidRange(t *testing.T) {
	h := New(&fakeFetcher{series: cannedSeries(10)}, symbols.Default(), nil, testConfig(t), logger.NewNop())

	end := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	start := end.Add(time.Hour) // inverted

	_, _, err := h.GetCleanMarketData(context.Background(), "ethusdt", "m5", start, end, Options{})
	assert.ErrorIs(t, err, contracts.ErrInvalidDateRange)
}

func TestGetCleanMarketDataSuspiciousRangeWarnsOnly(t *testing.T) {
	fetcher := &fakeFetcher{series: cannedSeries(20)}
	h := New(fetcher, symbols.Default(), nil, testConfig(t), logger.NewNop())

	// Pre-2000 start: proceed, but flag it.
	start := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

	_, meta, err := h.GetCleanMarketData(context.Background(), "ethusdt", "m5", start, end, Options{})
	require.NoError(t, err)
	assert.NotEmpty(t, meta.Warnings)
}

func TestGetCleanMarketDataFetchError(t *testing.T) {
	wantErr := errors.New("connection refused")
	h := New(&fakeFetcher{err: wantErr}, symbols.Default(), nil, testConfig(t), logger.NewNop())

	_, _, err := h.GetCleanMarketData(context.Background(), "ethusdt", "m5",
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Options{})

	assert.ErrorIs(t, err, wantErr)
}

func TestGetCleanMarketDataNewsSkippedWithoutCalendar(t *testing.T) {
	fetcher := &fakeFetcher{series: cannedSeries(50)}
	h := New(fetcher, symbols.Default(), nil, testConfig(t), logger.NewNop())

	_, meta, err := h.GetCleanMarketData(context.Background(), "ethusdt", "m5",
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Options{ExcludeNews: true})
	require.NoError(t, err)

	assert.True(t, meta.NewsSkipped)
}

func TestGetCleanMarketDataNewsFiltered(t *testing.T) {
	cfg := testConfig(t)
	cfg.Calendar.File = filepath.Join(t.TempDir(), "calendar.csv")
	require.NoError(t, os.WriteFile(cfg.Calendar.File,
		[]byte("date,label\n2024-01-02,CPI\n"), 0o644))

	fetcher := &fakeFetcher{series: cannedSeries(50)}
	h := New(fetcher, symbols.Default(), nil, cfg, logger.NewNop())

	clean, meta, err := h.GetCleanMarketData(context.Background(), "ethusdt", "m5",
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Options{ExcludeNews: true})
	require.NoError(t, err)

	// All 50 bars fall on the excluded date.
	assert.Equal(t, 50, meta.NewsFiltered)
	assert.Equal(t, 0, clean.Len())
	assert.False(t, meta.NewsSkipped)
}

// nySessionBars builds 5-minute bars inside the New York session (15:00 UTC
// is 10:00 EST) on each of the given winter days.
func nySessionBars(days ...int) *contracts.Series {
	s := &contracts.Series{Symbol: "usa500idxusd", Timeframe: "m5"}
	for _, day := range days {
		start := time.Date(2024, 1, day, 15, 0, 0, 0, time.UTC)
		for i := 0; i < 10; i++ {
			s.Bars = append(s.Bars, contracts.Bar{
				Timestamp: start.Add(time.Duration(i) * 5 * time.Minute),
				Open:      100, High: 101, Low: 99, Close: 100.5, Volume: 1000,
			})
		}
	}
	return s
}

func TestGetCleanMarketDataExcludesHolidays(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cleaning.MarketHolidays = []string{"2024-01-15"} // MLK day

	// Monday the 15th (holiday) and Tuesday the 16th, both in session hours.
	fetcher := &fakeFetcher{series: nySessionBars(15, 16)}
	h := New(fetcher, symbols.Default(), nil, cfg, logger.NewNop())

	clean, meta, err := h.GetCleanMarketData(context.Background(), "usa500idxusd", "m5",
		time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC), Options{})
	require.NoError(t, err)

	assert.Equal(t, 10, meta.CleanBars)
	require.Equal(t, 10, clean.Len())
	for _, b := range clean.Bars {
		assert.Equal(t, 16, b.Timestamp.Day())
	}
}

func TestGetCleanMarketDataWithoutHolidaysKeepsAll(t *testing.T) {
	fetcher := &fakeFetcher{series: nySessionBars(15, 16)}
	h := New(fetcher, symbols.Default(), nil, testConfig(t), logger.NewNop())

	clean, _, err := h.GetCleanMarketData(context.Background(), "usa500idxusd", "m5",
		time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC), Options{})
	require.NoError(t, err)

	assert.Equal(t, 20, clean.Len())
}

func TestRezoneRestoresNamedZones(t *testing.T) {
	// JSON round-trips carry only the fixed offset; the output contract is
	// the named zone (or UTC), same as an uncached run.
	info, err := symbols.Default().Get("usa500idxusd")
	require.NoError(t, err)

	est := time.FixedZone("", -5*3600)
	s := &contracts.Series{Bars: []contracts.Bar{
		{Timestamp: time.Date(2024, 1, 16, 10, 0, 0, 0, est), Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 1},
	}}

	local, err := rezone(s, true, info)
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", local.Bars[0].Timestamp.Location().String())
	assert.True(t, local.Bars[0].Timestamp.Equal(s.Bars[0].Timestamp))

	utc, err := rezone(s, false, info)
	require.NoError(t, err)
	assert.Equal(t, "UTC", utc.Bars[0].Timestamp.Location().String())
	assert.True(t, utc.Bars[0].Timestamp.Equal(s.Bars[0].Timestamp))
}

func TestConfigHashVariesWithHolidays(t *testing.T) {
	plain := New(&fakeFetcher{}, symbols.Default(), nil, testConfig(t), logger.NewNop())

	cfg := testConfig(t)
	cfg.Cleaning.MarketHolidays = []string{"2024-01-15"}
	withHolidays := New(&fakeFetcher{}, symbols.Default(), nil, cfg, logger.NewNop())

	assert.NotEqual(t, plain.configHash(Options{}), withHolidays.configHash(Options{}))
}

func TestConfigHashVariesWithOptions(t *testing.T) {
	h := New(&fakeFetcher{}, symbols.Default(), nil, testConfig(t), logger.NewNop())

	plain := h.configHash(Options{})
	news := h.configHash(Options{ExcludeNews: true})
	local := h.configHash(Options{LocalTime: true})

	assert.NotEqual(t, plain, news)
	assert.NotEqual(t, plain, local)
	assert.NotEqual(t, news, local)
}
