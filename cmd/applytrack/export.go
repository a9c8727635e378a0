package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/applytrack/internal/export"
)

var exportCommand = &cobra.Command{
	Use:   "export",
	Short: "Export the stored application state to an Excel workbook",
	RunE:  exportCmd,
}

var (
	exportConfigPath  string
	exportOutput      string
	exportDatabaseURL string
)

func init() {
	exportCommand.Flags().StringVar(&exportConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	exportCommand.Flags().StringVarP(&exportOutput, "output", "o", "", "Output xlsx path")
	exportCommand.Flags().StringVar(&exportDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")

	rootCmd.AddCommand(exportCommand)
}

func exportCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := loadMergedConfig(exportConfigPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("output") {
		cfg.OutputPath = exportOutput
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = exportDatabaseURL
	}
	cfg = cfg.MergeWithDefaults(defaultConfig())

	st, cleanup, err := openStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer cleanup()

	state, err := st.LoadState(ctx)
	if err != nil {
		return fmt.Errorf("loading application store: %w", err)
	}

	if err := export.WriteWorkbook(cfg.OutputPath, state.Applications, state.Unresolved); err != nil {
		return err
	}
	fmt.Printf("Wrote %d applications to %s\n", len(state.Applications), cfg.OutputPath)
	return nil
}
