package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	env     string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "workbench",
	Short: "Market data cleaning workbench",
	Long: `Workbench CLI

Fetches raw OHLCV bars from PostgreSQL and turns them into
analysis-ready sequences: validation, gap and outlier diagnostics,
regression imputation, session filtering and news-date exclusion.

Usage:
  go run ./cmd/workbench [command]

Examples:
  go run ./cmd/workbench clean usa500idxusd m5 --start 2024-01-01 --end 2024-06-30
  go run ./cmd/workbench symbols
  go run ./cmd/workbench data-check
  go run ./cmd/workbench test-db`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
