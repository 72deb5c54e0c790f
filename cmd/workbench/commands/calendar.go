package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantworks/workbench/internal/calendar"
	"github.com/quantworks/workbench/pkg/config"
	"github.com/quantworks/workbench/pkg/httputil"
	"github.com/quantworks/workbench/pkg/logger"
)

// calendarCmd represents the calendar command group
var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Manage the excluded news dates list",
}

// calendarShowCmd lists the currently configured excluded dates
var calendarShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the excluded dates in the calendar file",
	RunE:  runCalendarShow,
}

// calendarFetchCmd scrapes the configured economic calendar page
var calendarFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the calendar from NEWS_CALENDAR_URL and write the CSV",
	Long: `Downloads the configured HTML economic calendar, extracts event
dates and rewrites the local calendar CSV.

Example:
  go run ./cmd/workbench calendar fetch`,
	RunE: runCalendarFetch,
}

func init() {
	calendarCmd.AddCommand(calendarShowCmd)
	calendarCmd.AddCommand(calendarFetchCmd)
	rootCmd.AddCommand(calendarCmd)
}

func runCalendarShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cal, err := calendar.LoadCSV(cfg.Calendar.File)
	if err != nil {
		return fmt.Errorf("load %s: %w", cfg.Calendar.File, err)
	}

	fmt.Printf("%d excluded dates in %s\n", cal.Len(), cfg.Calendar.File)
	for _, d := range cal.Dates() {
		fmt.Println(d)
	}
	return nil
}

func runCalendarFetch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	if cfg.Calendar.URL == "" {
		return fmt.Errorf("NEWS_CALENDAR_URL is not configured")
	}

	client := httputil.New(log).WithRateLimit(cfg.Calendar.RequestsPerSec)
	fetcher := calendar.NewFetcher(client, log, cfg.Calendar.URL)

	cal, err := fetcher.Fetch(context.Background())
	if err != nil {
		return err
	}

	if err := cal.WriteCSV(cfg.Calendar.File); err != nil {
		return fmt.Errorf("write %s: %w", cfg.Calendar.File, err)
	}

	fmt.Printf("✅ Wrote %d excluded dates to %s\n", cal.Len(), cfg.Calendar.File)
	return nil
}
