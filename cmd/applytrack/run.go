package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/applytrack/internal/address"
	"github.com/jonathan/applytrack/internal/config"
	"github.com/jonathan/applytrack/internal/export"
	"github.com/jonathan/applytrack/internal/llm"
	"github.com/jonathan/applytrack/internal/mail"
	"github.com/jonathan/applytrack/internal/match"
	"github.com/jonathan/applytrack/internal/observability"
	"github.com/jonathan/applytrack/internal/pipeline"
	"github.com/jonathan/applytrack/internal/prompt"
	"github.com/jonathan/applytrack/internal/types"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Fetch, extract and consolidate job application emails end-to-end",
	Long: `Runs the full tracker: IMAP fetch -> LLM extraction -> consolidation -> address resolution -> Excel export.

Configuration can be loaded from a JSON file using --config. Command-line arguments override config file values.`,
	RunE: runCmd,
}

var (
	runConfigPath  string
	runIMAPHost    string
	runIMAPUser    string
	runIMAPFolder  string
	runSince       string
	runOutput      string
	runAPIKey      string
	runDatabaseURL string
	runInteractive bool
	runVerbose     bool
)

func init() {
	runCommand.Flags().StringVar(&runConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	runCommand.Flags().StringVar(&runIMAPHost, "imap-host", "", "IMAP server host:port (defaults to IMAP_HOST env var)")
	runCommand.Flags().StringVar(&runIMAPUser, "imap-user", "", "IMAP account (defaults to IMAP_USER env var)")
	runCommand.Flags().StringVar(&runIMAPFolder, "imap-folder", "", "IMAP folder to search (default INBOX)")
	runCommand.Flags().StringVar(&runSince, "since", "", "Only fetch mail since this date (YYYY-MM-DD)")
	runCommand.Flags().StringVarP(&runOutput, "output", "o", "", "Output xlsx path")
	runCommand.Flags().BoolVarP(&runInteractive, "interactive", "i", false, "Prompt for ambiguous matches and missing addresses")
	runCommand.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print detailed debug information")

	// API key can be passed as a flag, or read from env var GEMINI_API_KEY
	runCommand.Flags().StringVar(&runAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")

	runCommand.Flags().StringVar(&runDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")

	rootCmd.AddCommand(runCommand)
}

func runCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := loadMergedConfig(runConfigPath)
	if err != nil {
		return err
	}
	applyRunFlags(cmd, &cfg)
	cfg = cfg.MergeWithDefaults(defaultConfig())

	if cfg.APIKey == "" {
		return fmt.Errorf("Gemini API key is required (via --api-key, config, or GEMINI_API_KEY)")
	}
	since, err := cfg.Since()
	if err != nil {
		return err
	}

	st, cleanup, err := openStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer cleanup()

	// Fetch.
	fmt.Printf("Fetching mail from %s...\n", cfg.IMAPHost)
	fetcher, err := mail.Connect(mail.ProviderConfig{
		Host:     cfg.IMAPHost,
		User:     cfg.IMAPUser,
		Password: cfg.IMAPPassword,
		Folder:   cfg.IMAPFolder,
	})
	if err != nil {
		return err
	}
	uids, err := fetcher.Search(cfg.SearchTerms, since)
	if err != nil {
		_ = fetcher.Close()
		return err
	}
	items, failed, err := fetcher.FetchAll(uids)
	_ = fetcher.Close()
	if err != nil {
		return err
	}
	for _, uid := range failed {
		fmt.Printf("Warning: message %d could not be parsed, skipped\n", uid)
	}
	fmt.Printf("Fetched %d messages\n", len(items))

	// Extract.
	client, err := llm.NewGeminiClient(ctx, cfg.APIKey, "")
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()
	extractor, err := llm.NewExtractor(client)
	if err != nil {
		return err
	}

	fmt.Printf("Extracting %d messages...\n", len(items))
	raws := make([]types.RawExtraction, 0, len(items))
	for _, item := range items {
		raw := extractor.Extract(ctx, mail.FormatForExtraction(item), item.MessageID, item.ReceivedAt)
		if raw.FailureNote != "" {
			fmt.Printf("Warning: extraction failed for %s: %s\n", item.MessageID, raw.FailureNote)
		}
		raws = append(raws, raw)
	}

	result, err := consolidate(ctx, raws, cfg, st)
	if err != nil {
		return err
	}

	fmt.Printf("Writing %s...\n", cfg.OutputPath)
	if err := export.WriteWorkbook(cfg.OutputPath, result.State.Applications, result.State.Unresolved); err != nil {
		return err
	}

	if cfg.Verbose {
		printer := observability.NewPrinter(os.Stdout)
		printer.PrintApplications(result.State.Applications)
		printer.PrintUnresolved(result.State.Unresolved)
	}
	return nil
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("imap-host") {
		cfg.IMAPHost = runIMAPHost
	}
	if cmd.Flags().Changed("imap-user") {
		cfg.IMAPUser = runIMAPUser
	}
	if cmd.Flags().Changed("imap-folder") {
		cfg.IMAPFolder = runIMAPFolder
	}
	if cmd.Flags().Changed("since") {
		cfg.SinceDate = runSince
	}
	if cmd.Flags().Changed("output") {
		cfg.OutputPath = runOutput
	}
	if cmd.Flags().Changed("api-key") {
		cfg.APIKey = runAPIKey
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = runDatabaseURL
	}
	if cmd.Flags().Changed("interactive") {
		cfg.Interactive = runInteractive
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = runVerbose
	}
}

// consolidate wires the pipeline collaborators and runs one consolidation
// pass over the raw extractions.
func consolidate(ctx context.Context, raws []types.RawExtraction, cfg config.Config, st pipelineStore) (*pipeline.Result, error) {
	var addrPrompter address.Prompter
	var matchPrompter pipeline.MatchPrompter
	if cfg.Interactive {
		console := prompt.NewConsole(os.Stdin, os.Stdout)
		addrPrompter = console
		matchPrompter = console
	}

	chain := address.NewChain(st, st, addrPrompter, cfg.Addresses, os.Stdout)
	pipeline.SeedInlineAddresses(chain, raws)

	return pipeline.Run(ctx, raws, pipeline.Options{
		Matcher:     match.New(cfg.Matching),
		Chain:       chain,
		Store:       st,
		Prompter:    matchPrompter,
		Parallelism: cfg.Parallelism,
		Verbose:     cfg.Verbose,
		Out:         os.Stdout,
	})
}

// pipelineStore is everything the consolidation pass needs from persistence.
type pipelineStore interface {
	pipeline.Store
	address.OverrideStore
	address.RegisterLookup
}
