package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/applytrack/internal/export"
	"github.com/jonathan/applytrack/internal/observability"
	"github.com/jonathan/applytrack/internal/types"
)

var consolidateCommand = &cobra.Command{
	Use:   "consolidate",
	Short: "Consolidate previously extracted records without fetching mail",
	Long: `Runs the consolidation pipeline over a JSON file of raw extraction records: normalize -> match -> merge -> resolve addresses -> save.

Useful for re-processing saved extractions or for feeding extractions produced elsewhere.`,
	RunE: consolidateCmd,
}

var (
	consolidateConfigPath  string
	consolidateInput       string
	consolidateOutput      string
	consolidateDatabaseURL string
	consolidateInteractive bool
	consolidateVerbose     bool
)

func init() {
	consolidateCommand.Flags().StringVar(&consolidateConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	consolidateCommand.Flags().StringVar(&consolidateInput, "input", "", "Path to a JSON array of raw extraction records (required)")
	consolidateCommand.Flags().StringVarP(&consolidateOutput, "output", "o", "", "Output xlsx path (empty skips export)")
	consolidateCommand.Flags().StringVar(&consolidateDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	consolidateCommand.Flags().BoolVarP(&consolidateInteractive, "interactive", "i", false, "Prompt for ambiguous matches and missing addresses")
	consolidateCommand.Flags().BoolVarP(&consolidateVerbose, "verbose", "v", false, "Print detailed debug information")

	_ = consolidateCommand.MarkFlagRequired("input")

	rootCmd.AddCommand(consolidateCommand)
}

func consolidateCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := loadMergedConfig(consolidateConfigPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = consolidateDatabaseURL
	}
	if cmd.Flags().Changed("output") {
		cfg.OutputPath = consolidateOutput
	}
	if cmd.Flags().Changed("interactive") {
		cfg.Interactive = consolidateInteractive
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = consolidateVerbose
	}
	cfg.Parallelism = max(cfg.Parallelism, 1)

	raws, err := readRawExtractions(consolidateInput)
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d raw extraction records from %s\n", len(raws), consolidateInput)

	st, cleanup, err := openStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := consolidate(ctx, raws, cfg, st)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("output") && cfg.OutputPath != "" {
		fmt.Printf("Writing %s...\n", cfg.OutputPath)
		if err := export.WriteWorkbook(cfg.OutputPath, result.State.Applications, result.State.Unresolved); err != nil {
			return err
		}
	}

	if cfg.Verbose {
		printer := observability.NewPrinter(os.Stdout)
		printer.PrintApplications(result.State.Applications)
		printer.PrintUnresolved(result.State.Unresolved)
	}
	return nil
}

func readRawExtractions(path string) ([]types.RawExtraction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file %s: %w", path, err)
	}
	var raws []types.RawExtraction
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("failed to parse input JSON: %w", err)
	}
	return raws, nil
}
