package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/applytrack/internal/merge"
	"github.com/jonathan/applytrack/internal/normalize"
	"github.com/jonathan/applytrack/internal/pipeline"
	"github.com/jonathan/applytrack/internal/prompt"
	"github.com/jonathan/applytrack/internal/store"
	"github.com/jonathan/applytrack/internal/types"
)

var resolveCommand = &cobra.Command{
	Use:   "resolve",
	Short: "Work through pending review items interactively",
	Long: `Walks the pending review queue: ambiguous matches are assigned to an application of your choice, missing addresses are entered by hand.

Confirmed addresses are recorded in the manual override table, so later runs resolve them automatically.`,
	RunE: resolveCmd,
}

var (
	resolveConfigPath  string
	resolveDatabaseURL string
)

func init() {
	resolveCommand.Flags().StringVar(&resolveConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	resolveCommand.Flags().StringVar(&resolveDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")

	rootCmd.AddCommand(resolveCommand)
}

func resolveCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := loadMergedConfig(resolveConfigPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = resolveDatabaseURL
	}

	st, cleanup, err := openStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer cleanup()

	state, err := st.LoadState(ctx)
	if err != nil {
		return fmt.Errorf("loading application store: %w", err)
	}

	console := prompt.NewConsole(os.Stdin, os.Stdout)
	resolved := 0
	for i := range state.Unresolved {
		item := &state.Unresolved[i]
		if item.Resolved {
			continue
		}
		var done bool
		var err error
		switch item.Kind {
		case types.UnresolvedAmbiguousMatch:
			done, err = resolveAmbiguous(ctx, console, item, state)
		case types.UnresolvedMissingAddress:
			done, err = resolveMissingAddress(ctx, console, st, item, state)
		}
		if err != nil {
			return err
		}
		if done {
			item.Resolved = true
			resolved++
		}
	}

	if err := st.SaveState(ctx, state); err != nil {
		return fmt.Errorf("saving application store: %w", err)
	}
	fmt.Printf("Resolved %d items, %d still pending.\n", resolved, pendingItems(state.Unresolved))
	return nil
}

// resolveAmbiguous lets the user pick the application the held-back record
// belongs to, then merges it.
func resolveAmbiguous(ctx context.Context, console *prompt.Console, item *types.UnresolvedItem, state *pipeline.State) (bool, error) {
	id, picked, err := console.PickApplication(ctx, *item)
	if err != nil {
		return false, err
	}
	if !picked {
		return false, nil
	}
	if item.Record == nil {
		// Old items without a preserved record can only be dismissed.
		fmt.Printf("Item has no record to merge, marking resolved.\n")
		return true, nil
	}
	for i := range state.Applications {
		if state.Applications[i].ID == id {
			state.Applications[i] = merge.Apply(state.Applications[i], *item.Record, true)
			return true, nil
		}
	}
	fmt.Printf("Warning: chosen application no longer exists, leaving item pending.\n")
	return false, nil
}

// resolveMissingAddress asks for the address, attaches it to the application
// and records it as a manual override for future runs.
func resolveMissingAddress(ctx context.Context, console *prompt.Console, st *store.Store, item *types.UnresolvedItem, state *pipeline.State) (bool, error) {
	rec, err := console.ResolveAddress(ctx, *item)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}

	employer := normalize.Company(item.Employer)
	rec.Employer = employer
	rec.Provenance = types.ProvenanceInteractiveConfirmed
	if rec.Confidence == 0 {
		rec.Confidence = 1
	}

	saved := *rec
	saved.Provenance = types.ProvenanceManual
	if err := st.Append(ctx, saved); err != nil {
		fmt.Printf("Warning: saving manual override for %q failed: %v\n", item.Employer, err)
	}

	for i := range state.Applications {
		if state.Applications[i].Employer == employer {
			state.Applications[i].Address = rec
		}
	}
	upsertAddress(state, *rec)
	return true, nil
}

func upsertAddress(state *pipeline.State, rec types.AddressRecord) {
	for i := range state.Addresses {
		if state.Addresses[i].Employer == rec.Employer {
			state.Addresses[i] = rec
			return
		}
	}
	state.Addresses = append(state.Addresses, rec)
}

func pendingItems(items []types.UnresolvedItem) int {
	n := 0
	for _, item := range items {
		if !item.Resolved {
			n++
		}
	}
	return n
}
