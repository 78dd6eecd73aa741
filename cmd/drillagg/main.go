// Package main is the drillagg command line tool. It aggregates the
// "Hole Number" tables of a directory of workbooks into one output file,
// lists the workbooks a run would read, or serves the HTTP API.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"drillagg/internal/config"
	"drillagg/internal/infrastructure"
	"drillagg/pkg/contracts"
)

const appName = "drillagg"

var (
	configPath string

	cfg    *config.Config
	logger *slog.Logger

	colorRed    = color.New(color.FgRed, color.Bold)
	colorGreen  = color.New(color.FgGreen, color.Bold)
	colorYellow = color.New(color.FgYellow)
	colorCyan   = color.New(color.FgCyan)
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		colorRed.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Aggregate drill hole tables from a directory of workbooks",
		Long: `drillagg reads every .xlsx workbook in a directory, extracts the table
between the "Hole Number" header and the "Sub-Totals" row, and writes all
records to one file with the date cell of each workbook appended.

Examples:
  # Aggregate a directory into a CSV file
  drillagg run --input ./logs --output combined.csv --format csv

  # Repeat the previous run
  drillagg run

  # Show the workbooks a run would read
  drillagg list --input ./logs

  # Serve the HTTP API
  drillagg serve`,
		Version:       contracts.GetFullVersionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = infrastructure.CloseLogFile()
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: $DRILLAGG_CONFIG or drillagg.yaml)")

	root.AddCommand(newRunCmd(), newListCmd(), newServeCmd())
	return root
}

// setup loads configuration and initializes the global logger
func setup() error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = loaded

	l, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger = infrastructure.WithComponent(l, "cli")
	return nil
}

func printSeparator() {
	fmt.Fprintln(os.Stderr, strings.Repeat("-", 60))
}
