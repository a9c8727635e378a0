package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/applytrack/internal/store"
)

var migrateCommand = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long:  "Creates the applications, address_records, unresolved_items, override_events and register_companies tables. All statements are idempotent, so migrate can be run repeatedly.",
	RunE:  migrateCmd,
}

var (
	migrateConfigPath  string
	migrateDatabaseURL string
)

func init() {
	migrateCommand.Flags().StringVar(&migrateConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	migrateCommand.Flags().StringVar(&migrateDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")

	rootCmd.AddCommand(migrateCommand)
}

func migrateCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := loadMergedConfig(migrateConfigPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = migrateDatabaseURL
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("database URL is required (via --db-url, config, or DATABASE_URL)")
	}

	st, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return err
	}
	fmt.Println("Schema is up to date.")
	return nil
}
