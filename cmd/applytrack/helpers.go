package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jonathan/applytrack/internal/config"
	"github.com/jonathan/applytrack/internal/store"
)

// defaultConfig holds the baseline values merged in after config file and
// flags.
func defaultConfig() config.Config {
	return config.Config{
		IMAPFolder:  "INBOX",
		SearchTerms: []string{"Bewerbung", "application"},
		OutputPath:  "applications.xlsx",
		Parallelism: 4,
	}
}

// envFallbacks fills credentials from the environment when neither config
// file nor flags provided them.
func envFallbacks(cfg *config.Config) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.IMAPHost == "" {
		cfg.IMAPHost = os.Getenv("IMAP_HOST")
	}
	if cfg.IMAPUser == "" {
		cfg.IMAPUser = os.Getenv("IMAP_USER")
	}
	if cfg.IMAPPassword == "" {
		cfg.IMAPPassword = os.Getenv("IMAP_PASSWORD")
	}
}

// loadMergedConfig loads the config file (when given), validates it and
// applies environment fallbacks and defaults.
func loadMergedConfig(path string) (config.Config, error) {
	var cfg config.Config
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
		if err := loaded.Validate(); err != nil {
			return cfg, err
		}
		cfg = *loaded
	}
	envFallbacks(&cfg)
	return cfg, nil
}

// openStore connects to Postgres and takes the exclusive run lock. The
// returned cleanup releases the lock and closes the pool.
func openStore(ctx context.Context, databaseURL string) (*store.Store, func(), error) {
	if databaseURL == "" {
		return nil, nil, fmt.Errorf("database URL is required (via --db-url, config, or DATABASE_URL)")
	}
	st, err := store.Connect(ctx, databaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := st.AcquireRunLock(ctx); err != nil {
		st.Close()
		return nil, nil, err
	}
	cleanup := func() {
		_ = st.ReleaseRunLock(ctx)
		st.Close()
	}
	return st, cleanup, nil
}
