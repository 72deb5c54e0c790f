// Package marketdata is the boundary to the raw data source: OHLCV bars
// stored in PostgreSQL, one table per (symbol, timeframe) pair, timestamps in
// UTC. Bars come back exactly as stored; cleaning happens downstream.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantworks/workbench/internal/contracts"
	"github.com/quantworks/workbench/internal/symbols"
	"github.com/quantworks/workbench/pkg/logger"
)

// Repository reads OHLCV data and symbol metadata from PostgreSQL.
type Repository struct {
	pool     *pgxpool.Pool
	registry *symbols.Registry
	logger   *logger.Logger
}

// NewRepository creates a new market data repository.
func NewRepository(pool *pgxpool.Pool, registry *symbols.Registry, log *logger.Logger) *Repository {
	return &Repository{
		pool:     pool,
		registry: registry,
		logger:   log,
	}
}

// FetchOHLCV retrieves raw bars for a symbol/timeframe within [start, end],
// sorted ascending, timestamps in UTC. NULL cells come back as NaN so the
// imputer can see them.
func (r *Repository) FetchOHLCV(ctx context.Context, symbol, timeframe string, start, end time.Time) (*contracts.Series, error) {
	table, err := r.registry.TableName(symbol, timeframe, "")
	if err != nil {
		return nil, err
	}

	// Table names are derived from the validated registry, never from raw
	// caller input, so interpolation is safe here.
	query := fmt.Sprintf(`
		SELECT timestamp, open, high, low, close, volume
		FROM %s
		WHERE timestamp >= $1 AND timestamp <= $2
		ORDER BY timestamp ASC
	`, table)

	rows, err := r.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch ohlcv %s: %w", table, err)
	}
	defer rows.Close()

	series := &contracts.Series{Symbol: symbol, Timeframe: timeframe}
	for rows.Next() {
		var ts time.Time
		var open, high, low, close_, volume *float64
		if err := rows.Scan(&ts, &open, &high, &low, &close_, &volume); err != nil {
			return nil, fmt.Errorf("scan ohlcv row: %w", err)
		}
		series.Bars = append(series.Bars, contracts.Bar{
			Timestamp: ts.UTC(),
			Open:      deref(open),
			High:      deref(high),
			Low:       deref(low),
			Close:     deref(close_),
			Volume:    deref(volume),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch ohlcv %s: %w", table, err)
	}

	r.logger.WithFields(map[string]interface{}{
		"symbol":    symbol,
		"timeframe": timeframe,
		"bars":      series.Len(),
	}).Debug("Fetched raw bars")

	return series, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// SymbolMetadata is the symbol_metadata row for one symbol.
type SymbolMetadata struct {
	Symbol                 string    `json:"symbol"`
	AssetType              string    `json:"asset_type"`
	TotalRecords           int64     `json:"total_records"`
	LastAvailableTimestamp time.Time `json:"last_available_timestamp"`
	CanUpdateFrom          time.Time `json:"can_update_from"`
}

// GetSymbolMetadata fetches the metadata row for a symbol.
func (r *Repository) GetSymbolMetadata(ctx context.Context, symbol string) (*SymbolMetadata, error) {
	info, err := r.registry.Get(symbol)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT symbol, asset_type, total_records, last_available_timestamp, can_update_from
		FROM symbol_metadata
		WHERE symbol = $1
	`

	var m SymbolMetadata
	err = r.pool.QueryRow(ctx, query, info.Symbol).Scan(
		&m.Symbol, &m.AssetType, &m.TotalRecords, &m.LastAvailableTimestamp, &m.CanUpdateFrom,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q not in symbol_metadata", contracts.ErrUnknownSymbol, symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch symbol metadata %s: %w", symbol, err)
	}
	return &m, nil
}

// CheckAvailability reports whether the OHLCV table for a symbol/timeframe
// exists and holds at least one row.
func (r *Repository) CheckAvailability(ctx context.Context, symbol, timeframe string) (bool, error) {
	table, err := r.registry.TableName(symbol, timeframe, "")
	if err != nil {
		return false, err
	}

	var exists bool
	err = r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)
	`, table).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", table, err)
	}
	if !exists {
		return false, nil
	}

	var count int64
	if err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
		return false, fmt.Errorf("count %s: %w", table, err)
	}
	return count > 0, nil
}

// ListOHLCVTables returns every OHLCV table in the database, sorted.
func (r *Repository) ListOHLCVTables(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name LIKE '%_ohlcv'
		ORDER BY table_name
	`)
	if err != nil {
		return nil, fmt.Errorf("list ohlcv tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// GetDateRange returns the available [start, end] range for a
// symbol/timeframe.
func (r *Repository) GetDateRange(ctx context.Context, symbol, timeframe string) (time.Time, time.Time, error) {
	table, err := r.registry.TableName(symbol, timeframe, "")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	query := fmt.Sprintf(`SELECT MIN(timestamp), MAX(timestamp) FROM %s`, table)

	var start, end *time.Time
	if err := r.pool.QueryRow(ctx, query).Scan(&start, &end); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("date range %s: %w", table, err)
	}
	if start == nil || end == nil {
		return time.Time{}, time.Time{}, fmt.Errorf("no data for %s %s", symbol, timeframe)
	}
	return start.UTC(), end.UTC(), nil
}
