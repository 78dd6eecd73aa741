package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"drillagg/internal/config"
	"drillagg/internal/exporter"
	"drillagg/internal/services"
	"drillagg/internal/storage"
)

// stdoutPath passed to --output prints records even when an output file is
// configured.
const stdoutPath = "-"

type runFlags struct {
	input       string
	output      string
	format      string
	bom         bool
	strict      bool
	remarksMode string
	workers     int
	sheet       string
	dbTable     string
	dbTruncate  bool
}

func newRunCmd() *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Aggregate every workbook of a directory",
		Long: `Aggregate every workbook of a directory into one record stream.

The records go to --output, else to the configured output file, else to
stdout. Pass --output - to print them whatever is configured.

Without --input the configured directory is used. With neither, the
previous run is repeated: its directory and, unless --output is given,
its output file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAggregate(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.input, "input", "i", "", "directory holding the workbooks")
	flags.StringVarP(&f.output, "output", "o", "", "output file (truncated), - for stdout")
	flags.StringVarP(&f.format, "format", "f", "", "output format: lines or csv")
	flags.BoolVar(&f.bom, "bom", false, "prefix CSV output with a UTF-8 byte order mark")
	flags.BoolVar(&f.strict, "strict", false, "fail when a document's table width differs from the header")
	flags.StringVar(&f.remarksMode, "remarks-mode", "", "marker-only or suppress-trailing")
	flags.IntVarP(&f.workers, "workers", "w", 0, "documents decoded concurrently")
	flags.StringVar(&f.sheet, "sheet", "", "worksheet to read from every workbook")
	flags.StringVar(&f.dbTable, "db-table", "", "also load records into this PostgreSQL table")
	flags.BoolVar(&f.dbTruncate, "db-truncate", false, "empty the PostgreSQL table before loading")

	return cmd
}

func runAggregate(cmd *cobra.Command, f runFlags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	statePath, err := config.DefaultStatePath()
	if err != nil {
		logger.WarnContext(ctx, "Run state disabled", "error", err.Error())
	}
	last := lastRun(statePath)

	input := fallback(f.input, cfg.Aggregate.InputDir)
	output := fallback(f.output, cfg.Aggregate.OutputFile)
	if input == "" {
		input = last.InputDir
		output = fallback(output, last.OutputFile)
	}

	aggCfg := cfg.Aggregate
	if output == stdoutPath {
		output = ""
		aggCfg.OutputFile = ""
	}

	req := services.AggregateRequest{
		InputDir:    input,
		OutputFile:  output,
		Format:      f.format,
		RemarksMode: f.remarksMode,
		Workers:     f.workers,
		Sheet:       f.sheet,
		DBTable:     f.dbTable,
		DBTruncate:  f.dbTruncate,
	}
	if cmd.Flags().Changed("bom") {
		req.BOM = &f.bom
	}
	if cmd.Flags().Changed("strict") {
		req.Strict = &f.strict
	}
	if req.InputDir == "" {
		return fmt.Errorf("no input directory: pass --input or set aggregate.input_dir")
	}

	opts := []services.AggregateOption{services.WithStatePath(statePath)}
	if cfg.Database.URL != "" && (f.dbTable != "" || cfg.Database.Enabled()) {
		pool, err := storage.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return err
		}
		defer pool.Close()
		opts = append(opts, services.WithDatabase(pool, cfg.Database.Table))
	}

	svc := services.NewAggregateService(aggCfg, logger, opts...)

	colorCyan.Fprintf(os.Stderr, "Aggregating %s\n", req.InputDir)
	result, err := svc.Run(ctx, req)
	if err != nil {
		if result != nil && result.Report != nil {
			printSummary(result)
		}
		return err
	}

	if result.Preview != nil {
		if err := writePreview(cmd.OutOrStdout(), result.Preview); err != nil {
			return err
		}
	}
	printSummary(result)
	return nil
}

// lastRun returns the previous run, or an empty one when there is none
func lastRun(statePath string) config.LastRun {
	if statePath == "" {
		return config.LastRun{}
	}
	st, err := config.LoadState(statePath)
	if err != nil || st.LastRun == nil {
		return config.LastRun{}
	}
	return *st.LastRun
}

// fallback returns the first non-empty value
func fallback(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// writePreview prints records kept in memory as plain lines
func writePreview(w io.Writer, p *services.Preview) error {
	sink := exporter.NewLineSink(w)
	if p.Header != nil {
		if err := sink.WriteHeader(p.Header); err != nil {
			return err
		}
	}
	for _, record := range p.Records {
		if err := sink.WriteRecord(record); err != nil {
			return err
		}
	}
	return nil
}

func printSummary(result *services.AggregateResult) {
	report := result.Report

	printSeparator()
	colorGreen.Fprintf(os.Stderr, "Records written: %d\n", report.RecordsWritten)
	colorCyan.Fprintf(os.Stderr, "Documents read:  %d\n", len(report.Documents))
	if report.HeaderSource != "" {
		colorCyan.Fprintf(os.Stderr, "Header from:     %s\n", report.HeaderSource)
	} else {
		colorYellow.Fprintln(os.Stderr, "No header row found")
	}
	if result.OutputFile != "" {
		colorCyan.Fprintf(os.Stderr, "Output:          %s\n", result.OutputFile)
	}
	if result.DBTable != "" {
		colorCyan.Fprintf(os.Stderr, "Loaded %d rows into %s\n", result.DBLoaded, result.DBTable)
	}
	if d := report.Duration(); d > 0 {
		colorCyan.Fprintf(os.Stderr, "Duration:        %s\n", d.Round(time.Millisecond))
	}

	for _, doc := range report.Documents {
		if doc.SchemaMismatch {
			colorYellow.Fprintf(os.Stderr, "Width mismatch:  %s (%d columns)\n", doc.Label, doc.Width)
		}
	}
	if len(report.Skipped) > 0 {
		colorRed.Fprintf(os.Stderr, "Skipped %d documents:\n", len(report.Skipped))
		for _, s := range report.Skipped {
			colorRed.Fprintf(os.Stderr, "  %s: %s\n", s.Path, s.Reason)
		}
	}
	printSeparator()
}
