package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantworks/workbench/internal/symbols"
)

// symbolsCmd represents the symbols command
var symbolsCmd = &cobra.Command{
	Use:   "symbols",
	Short: "List configured symbols",
	Long: `Shows every symbol the workbench knows about, with asset class,
market timezone and trading session.

Example:
  go run ./cmd/workbench symbols`,
	RunE: runSymbols,
}

func init() {
	rootCmd.AddCommand(symbolsCmd)
}

func runSymbols(cmd *cobra.Command, args []string) error {
	registry := symbols.Default()

	fmt.Printf("%-16s %-8s %-20s %s\n", "SYMBOL", "CLASS", "TIMEZONE", "SESSION")
	for _, info := range registry.List() {
		session := "24/7"
		if !info.AlwaysOpen() {
			session = fmt.Sprintf("%s-%s", info.MarketOpen, info.MarketClose)
		}
		fmt.Printf("%-16s %-8s %-20s %s\n", info.Symbol, info.AssetClass, info.Timezone, session)
	}
	return nil
}
