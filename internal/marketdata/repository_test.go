package marketdata

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantworks/workbench/internal/symbols"
	"github.com/quantworks/workbench/pkg/logger"
)

// testPool connects to the research database, skipping when none is
// configured. These are integration tests against real OHLCV tables.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	pool, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestListOHLCVTables(t *testing.T) {
	pool := testPool(t)
	repo := NewRepository(pool, symbols.Default(), logger.NewNop())

	tables, err := repo.ListOHLCVTables(context.Background())
	require.NoError(t, err)

	for _, table := range tables {
		assert.Contains(t, table, "_ohlcv")
	}
}

func TestFetchOHLCVOrdering(t *testing.T) {
	pool := testPool(t)
	repo := NewRepository(pool, symbols.Default(), logger.NewNop())
	ctx := context.Background()

	available, err := repo.CheckAvailability(ctx, "eurusd", "h1")
	require.NoError(t, err)
	if !available {
		t.Skip("eurusd h1 not loaded")
	}

	start, end, err := repo.GetDateRange(ctx, "eurusd", "h1")
	require.NoError(t, err)
	require.False(t, start.After(end))

	series, err := repo.FetchOHLCV(ctx, "eurusd", "h1", start, start.Add(7*24*time.Hour))
	require.NoError(t, err)
	require.NotZero(t, series.Len())

	for i := 1; i < series.Len(); i++ {
		assert.True(t, series.Bars[i-1].Timestamp.Before(series.Bars[i].Timestamp),
			"bars out of order at %d", i)
	}
	assert.Equal(t, "UTC", series.Bars[0].Timestamp.Location().String())
}

func TestFetchOHLCVUnknownSymbol(t *testing.T) {
	repo := NewRepository(nil, symbols.Default(), logger.NewNop())

	_, err := repo.FetchOHLCV(context.Background(), "nope", "m5", time.Now(), time.Now())
	assert.Error(t, err)
}
