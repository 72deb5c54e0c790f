// Package symbols holds the typed per-symbol calendar metadata: IANA zone,
// market open/close times and asset classification. The registry is validated
// once at construction so a bad entry fails fast, not mid-pipeline.
package symbols

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/quantworks/workbench/internal/contracts"
)

// AssetClass distinguishes symbols whose table naming and session handling differ.
type AssetClass string

const (
	AssetTradFi AssetClass = "tradfi"
	AssetCrypto AssetClass = "crypto"
)

// ClockTime is a local wall-clock time of day.
type ClockTime struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// Minutes returns the time of day in minutes since midnight.
func (c ClockTime) Minutes() int { return c.Hour*60 + c.Minute }

func (c ClockTime) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// Info is the calendar metadata for one symbol.
type Info struct {
	Symbol      string     `json:"symbol"`
	Name        string     `json:"name"`
	AssetClass  AssetClass `json:"asset_class"`
	Timezone    string     `json:"timezone"`
	MarketOpen  ClockTime  `json:"market_open"`
	MarketClose ClockTime  `json:"market_close"`
}

// AlwaysOpen reports whether the market has no session window (forex, crypto).
// Such symbols skip the market-hours filter entirely.
func (i Info) AlwaysOpen() bool {
	return i.MarketOpen == (ClockTime{0, 0}) && i.MarketClose == (ClockTime{23, 59})
}

// Location resolves the symbol's IANA zone.
func (i Info) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(i.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q for %s", contracts.ErrUnknownTimezone, i.Timezone, i.Symbol)
	}
	return loc, nil
}

// Registry maps lowercase symbol names to their metadata.
type Registry struct {
	infos map[string]Info
}

// NewRegistry builds a registry from the given entries, validating each one:
// the zone must resolve and the session window must be a valid time of day.
func NewRegistry(entries []Info) (*Registry, error) {
	r := &Registry{infos: make(map[string]Info, len(entries))}
	for _, info := range entries {
		key := strings.ToLower(info.Symbol)
		if key == "" {
			return nil, fmt.Errorf("symbol registry: entry with empty symbol")
		}
		if _, err := time.LoadLocation(info.Timezone); err != nil {
			return nil, fmt.Errorf("symbol registry: %s: %w: %q", key, contracts.ErrUnknownTimezone, info.Timezone)
		}
		if !validClock(info.MarketOpen) || !validClock(info.MarketClose) {
			return nil, fmt.Errorf("symbol registry: %s: invalid market hours %s-%s",
				key, info.MarketOpen, info.MarketClose)
		}
		if info.MarketOpen.Minutes() > info.MarketClose.Minutes() {
			return nil, fmt.Errorf("symbol registry: %s: market open %s after close %s",
				key, info.MarketOpen, info.MarketClose)
		}
		info.Symbol = key
		r.infos[key] = info
	}
	return r, nil
}

func validClock(c ClockTime) bool {
	return c.Hour >= 0 && c.Hour < 24 && c.Minute >= 0 && c.Minute < 60
}

// Get returns the metadata for a symbol.
func (r *Registry) Get(symbol string) (Info, error) {
	info, ok := r.infos[strings.ToLower(symbol)]
	if !ok {
		return Info{}, fmt.Errorf("%w: %q (known: %d symbols)", contracts.ErrUnknownSymbol, symbol, len(r.infos))
	}
	return info, nil
}

// List returns all registered symbols sorted by name.
func (r *Registry) List() []Info {
	out := make([]Info, 0, len(r.infos))
	for _, info := range r.infos {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// TableName derives the OHLCV table for a symbol/timeframe pair.
// TradFi: {symbol}_{timeframe}_tradfi_ohlcv
// Crypto: {symbol}_{timeframe}_{exchange}_crypto_ohlcv (exchange defaults to binance)
func (r *Registry) TableName(symbol, timeframe, exchange string) (string, error) {
	info, err := r.Get(symbol)
	if err != nil {
		return "", err
	}
	tf := strings.ToLower(timeframe)
	if _, ok := contracts.TimeframeInterval(tf); !ok {
		return "", fmt.Errorf("%w: %q", contracts.ErrUnknownTimeframe, timeframe)
	}
	switch info.AssetClass {
	case AssetCrypto:
		if exchange == "" {
			exchange = "binance"
		}
		return fmt.Sprintf("%s_%s_%s_crypto_ohlcv", info.Symbol, tf, strings.ToLower(exchange)), nil
	default:
		return fmt.Sprintf("%s_%s_tradfi_ohlcv", info.Symbol, tf), nil
	}
}

// Default returns the registry of symbols backed by the research database.
func Default() *Registry {
	r, err := NewRegistry(defaultEntries)
	if err != nil {
		// Default entries are compiled in; a failure here is a programming error.
		panic(err)
	}
	return r
}

var defaultEntries = []Info{
	// Indices
	{Symbol: "deuidxeur", Name: "DAX Index", AssetClass: AssetTradFi, Timezone: "Europe/Berlin",
		MarketOpen: ClockTime{9, 0}, MarketClose: ClockTime{17, 30}},
	{Symbol: "usa500idxusd", Name: "S&P 500", AssetClass: AssetTradFi, Timezone: "America/New_York",
		MarketOpen: ClockTime{9, 30}, MarketClose: ClockTime{16, 0}},
	{Symbol: "usatechidxusd", Name: "Nasdaq 100", AssetClass: AssetTradFi, Timezone: "America/New_York",
		MarketOpen: ClockTime{9, 30}, MarketClose: ClockTime{16, 0}},
	{Symbol: "usa30idxusd", Name: "Dow Jones 30", AssetClass: AssetTradFi, Timezone: "America/New_York",
		MarketOpen: ClockTime{9, 30}, MarketClose: ClockTime{16, 0}},

	// Forex (session-less, always open)
	{Symbol: "eurusd", Name: "Euro/US Dollar", AssetClass: AssetTradFi, Timezone: "Europe/London",
		MarketOpen: ClockTime{0, 0}, MarketClose: ClockTime{23, 59}},
	{Symbol: "eurjpy", Name: "Euro/Japanese Yen", AssetClass: AssetTradFi, Timezone: "Europe/London",
		MarketOpen: ClockTime{0, 0}, MarketClose: ClockTime{23, 59}},
	{Symbol: "usdcad", Name: "US Dollar/Canadian Dollar", AssetClass: AssetTradFi, Timezone: "America/Toronto",
		MarketOpen: ClockTime{0, 0}, MarketClose: ClockTime{23, 59}},
	{Symbol: "nzdcad", Name: "New Zealand Dollar/Canadian Dollar", AssetClass: AssetTradFi, Timezone: "Pacific/Auckland",
		MarketOpen: ClockTime{0, 0}, MarketClose: ClockTime{23, 59}},
	{Symbol: "gbpusd", Name: "British Pound/US Dollar", AssetClass: AssetTradFi, Timezone: "Europe/London",
		MarketOpen: ClockTime{0, 0}, MarketClose: ClockTime{23, 59}},

	// Commodities
	{Symbol: "xauusd", Name: "Spot Gold", AssetClass: AssetTradFi, Timezone: "America/New_York",
		MarketOpen: ClockTime{0, 0}, MarketClose: ClockTime{23, 59}},
	{Symbol: "xagusd", Name: "Spot Silver", AssetClass: AssetTradFi, Timezone: "America/New_York",
		MarketOpen: ClockTime{0, 0}, MarketClose: ClockTime{23, 59}},
	{Symbol: "lightcmdusd", Name: "Light Crude Oil (WTI)", AssetClass: AssetTradFi, Timezone: "America/New_York",
		MarketOpen: ClockTime{0, 0}, MarketClose: ClockTime{23, 59}},

	// Crypto
	{Symbol: "ethusdt", Name: "Ethereum/Tether", AssetClass: AssetCrypto, Timezone: "UTC",
		MarketOpen: ClockTime{0, 0}, MarketClose: ClockTime{23, 59}},
	{Symbol: "btcusdt", Name: "Bitcoin/Tether", AssetClass: AssetCrypto, Timezone: "UTC",
		MarketOpen: ClockTime{0, 0}, MarketClose: ClockTime{23, 59}},
}
