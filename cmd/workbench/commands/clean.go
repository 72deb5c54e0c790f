package commands

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantworks/workbench/internal/contracts"
	"github.com/quantworks/workbench/internal/datahandler"
	"github.com/quantworks/workbench/internal/marketdata"
	"github.com/quantworks/workbench/internal/symbols"
	"github.com/quantworks/workbench/pkg/config"
	"github.com/quantworks/workbench/pkg/database"
	"github.com/quantworks/workbench/pkg/logger"
	"github.com/quantworks/workbench/pkg/redis"
)

var (
	cleanStart       string
	cleanEnd         string
	cleanLocalTime   bool
	cleanExcludeNews bool
	cleanOutput      string
)

// cleanCmd represents the clean command
var cleanCmd = &cobra.Command{
	Use:   "clean <symbol> <timeframe>",
	Short: "Fetch and clean OHLCV bars",
	Long: `Runs the full cleaning pipeline for one symbol and timeframe:
validation, diagnostics, imputation, session filtering and optional
news-date exclusion. Prints the cleaning metadata; --output writes the
cleaned bars to a CSV file.

Example:
  go run ./cmd/workbench clean usa500idxusd m5 --start 2024-01-01 --end 2024-06-30
  go run ./cmd/workbench clean ethusdt h1 --start 2024-01-01 --end 2024-03-01 --exclude-news -o eth.csv`,
	Args: cobra.ExactArgs(2),
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().StringVar(&cleanStart, "start", "", "range start, YYYY-MM-DD (required)")
	cleanCmd.Flags().StringVar(&cleanEnd, "end", "", "range end, YYYY-MM-DD (required)")
	cleanCmd.Flags().BoolVar(&cleanLocalTime, "local-time", false, "output timestamps in the symbol's market zone")
	cleanCmd.Flags().BoolVar(&cleanExcludeNews, "exclude-news", false, "drop bars on excluded news dates")
	cleanCmd.Flags().StringVarP(&cleanOutput, "output", "o", "", "write cleaned bars to this CSV file")
	_ = cleanCmd.MarkFlagRequired("start")
	_ = cleanCmd.MarkFlagRequired("end")
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	symbol, timeframe := args[0], args[1]

	start, err := time.Parse("2006-01-02", cleanStart)
	if err != nil {
		return fmt.Errorf("parse --start: %w", err)
	}
	end, err := time.Parse("2006-01-02", cleanEnd)
	if err != nil {
		return fmt.Errorf("parse --end: %w", err)
	}
	// Inclusive end date: cover the whole final day.
	end = end.Add(24*time.Hour - time.Nanosecond)

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

	rdb, err := redis.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer rdb.Close()

	registry := symbols.Default()
	repo := marketdata.NewRepository(db.Pool, registry, log)
	handler := datahandler.New(repo, registry, redis.NewCache(rdb, "workbench"), cfg, log)

	clean, meta, err := handler.GetCleanMarketData(ctx, symbol, timeframe, start, end, datahandler.Options{
		LocalTime:   cleanLocalTime,
		ExcludeNews: cleanExcludeNews,
	})
	if err != nil {
		return err
	}

	fmt.Printf("=== %s %s ===\n", meta.Symbol, meta.Timeframe)
	fmt.Printf("Raw bars:        %d\n", meta.RawBars)
	fmt.Printf("Clean bars:      %d\n", meta.CleanBars)
	fmt.Printf("Gap (raw):       %.2f%%\n", meta.GapRawPercent)
	fmt.Printf("Gap (clean):     %.2f%%\n", meta.GapCleanPercent)
	fmt.Printf("Imputed bars:    %d\n", meta.ImputedBars)
	fmt.Printf("News filtered:   %d\n", meta.NewsFiltered)
	fmt.Printf("Data quality:    %.2f%%\n", meta.DataQuality)
	fmt.Printf("Timezone:        %s\n", meta.Timezone)
	if !meta.Start.IsZero() {
		fmt.Printf("Range:           %s .. %s\n",
			meta.Start.Format(time.RFC3339), meta.End.Format(time.RFC3339))
	}
	for _, w := range meta.Warnings {
		fmt.Printf("⚠️  %s\n", w)
	}

	if cleanOutput != "" {
		if err := writeBarsCSV(cleanOutput, clean); err != nil {
			return fmt.Errorf("write %s: %w", cleanOutput, err)
		}
		fmt.Printf("✅ Wrote %d bars to %s\n", clean.Len(), cleanOutput)
	}

	return nil
}

func writeBarsCSV(path string, s *contracts.Series) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	for _, bar := range s.Bars {
		record := []string{
			bar.Timestamp.Format(time.RFC3339),
			formatFloat(bar.Open),
			formatFloat(bar.High),
			formatFloat(bar.Low),
			formatFloat(bar.Close),
			formatFloat(bar.Volume),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
