package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantworks/workbench/internal/marketdata"
	"github.com/quantworks/workbench/internal/symbols"
	"github.com/quantworks/workbench/pkg/config"
	"github.com/quantworks/workbench/pkg/database"
	"github.com/quantworks/workbench/pkg/logger"
)

var dataCheckTimeframe string

// dataCheckCmd represents the data-check command
var dataCheckCmd = &cobra.Command{
	Use:   "data-check",
	Short: "Check OHLCV data availability",
	Long: `Checks what data the database actually holds: lists the OHLCV
tables and, for each configured symbol, whether the requested timeframe
is available and over which date range.

Example:
  go run ./cmd/workbench data-check
  go run ./cmd/workbench data-check --timeframe h1`,
	RunE: runDataCheck,
}

func init() {
	dataCheckCmd.Flags().StringVar(&dataCheckTimeframe, "timeframe", "m5", "timeframe to probe per symbol")
	rootCmd.AddCommand(dataCheckCmd)
}

func runDataCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	ctx := context.Background()
	db, err := database.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	registry := symbols.Default()
	repo := marketdata.NewRepository(db.Pool, registry, log)

	fmt.Println("=== Data Check ===")

	tables, err := repo.ListOHLCVTables(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\nOHLCV tables: %d\n", len(tables))
	if verbose {
		for _, t := range tables {
			fmt.Printf("  %s\n", t)
		}
	}

	fmt.Printf("\n%-16s %-12s %s\n", "SYMBOL", "AVAILABLE", "RANGE")
	for _, info := range registry.List() {
		available, err := repo.CheckAvailability(ctx, info.Symbol, dataCheckTimeframe)
		if err != nil {
			fmt.Printf("%-16s error: %v\n", info.Symbol, err)
			continue
		}
		if !available {
			fmt.Printf("%-16s %-12s -\n", info.Symbol, "no")
			continue
		}

		start, end, err := repo.GetDateRange(ctx, info.Symbol, dataCheckTimeframe)
		if err != nil {
			fmt.Printf("%-16s %-12s error: %v\n", info.Symbol, "yes", err)
			continue
		}
		fmt.Printf("%-16s %-12s %s .. %s\n", info.Symbol, "yes",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	return nil
}
