package contracts

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarValueSetValue(t *testing.T) {
	b := Bar{Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100}

	for _, f := range Fields {
		b.SetValue(f, b.Value(f)*2)
	}

	assert.Equal(t, 2.0, b.Open)
	assert.Equal(t, 4.0, b.High)
	assert.Equal(t, 1.0, b.Low)
	assert.Equal(t, 3.0, b.Close)
	assert.Equal(t, 200.0, b.Volume)
}

func TestBarHasNaN(t *testing.T) {
	b := Bar{Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100}
	assert.False(t, b.HasNaN())

	b.Close = math.NaN()
	assert.True(t, b.HasNaN())
}

func TestSeriesSortStable(t *testing.T) {
	base := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	s := &Series{Bars: []Bar{
		{Timestamp: base.Add(10 * time.Minute), Open: 3},
		{Timestamp: base, Open: 1},
		{Timestamp: base.Add(5 * time.Minute), Open: 2},
	}}

	s.Sort()

	require.Equal(t, 3, s.Len())
	assert.Equal(t, 1.0, s.Bars[0].Open)
	assert.Equal(t, 2.0, s.Bars[1].Open)
	assert.Equal(t, 3.0, s.Bars[2].Open)
	assert.Equal(t, 10*time.Minute, s.Span())
}

func TestSeriesSortComparesInstantsNotLabels(t *testing.T) {
	// The two 02:30 wall-clock labels of the fall-back hour are distinct
	// instants and must keep their chronological order.
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	first := time.Date(2024, 10, 27, 0, 30, 0, 0, time.UTC).In(berlin)  // 02:30 CEST
	second := time.Date(2024, 10, 27, 1, 30, 0, 0, time.UTC).In(berlin) // 02:30 CET
	require.Equal(t, first.Format("15:04"), second.Format("15:04"))

	s := &Series{Bars: []Bar{
		{Timestamp: second, Open: 2},
		{Timestamp: first, Open: 1},
	}}
	s.Sort()

	assert.Equal(t, 1.0, s.Bars[0].Open)
	assert.Equal(t, 2.0, s.Bars[1].Open)
}

func TestSeriesClone(t *testing.T) {
	s := &Series{Symbol: "eurusd", Timeframe: "m5", Bars: []Bar{
		{Timestamp: time.Now(), Open: 1},
	}}

	c := s.Clone()
	c.Bars[0].Open = 99

	assert.Equal(t, 1.0, s.Bars[0].Open)
	assert.Equal(t, s.Symbol, c.Symbol)
	assert.Equal(t, s.Timeframe, c.Timeframe)
}

func TestTimeframeInterval(t *testing.T) {
	tests := []struct {
		timeframe string
		want      time.Duration
		ok        bool
	}{
		{"m1", time.Minute, true},
		{"m5", 5 * time.Minute, true},
		{"m15", 15 * time.Minute, true},
		{"h1", time.Hour, true},
		{"d1", 24 * time.Hour, true},
		{"H1", time.Hour, true}, // case-insensitive
		{"m30", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.timeframe, func(t *testing.T) {
			got, ok := TimeframeInterval(tt.timeframe)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestSeriesEmptyBounds(t *testing.T) {
	s := &Series{}
	assert.True(t, s.Start().IsZero())
	assert.True(t, s.End().IsZero())
	assert.Equal(t, time.Duration(0), s.Span())
}
