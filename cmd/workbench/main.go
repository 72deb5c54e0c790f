package main

import (
	"os"

	"github.com/quantworks/workbench/cmd/workbench/commands"
)

// main is the entry point for the workbench CLI
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
