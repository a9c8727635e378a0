// Package pipeline provides the high-level orchestration for one
// consolidation run: normalize -> group -> merge -> resolve addresses ->
// finalize. The orchestrator owns the Application set and the address cache
// for the run's lifetime; the persisted store is the source of truth
// between runs.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/applytrack/internal/address"
	"github.com/jonathan/applytrack/internal/match"
	"github.com/jonathan/applytrack/internal/merge"
	"github.com/jonathan/applytrack/internal/normalize"
	"github.com/jonathan/applytrack/internal/types"
)

// State is the whole persisted state: the canonical Application set, the
// resolved address cache and the pending review queue. It round-trips
// through the store without loss.
type State struct {
	Applications []types.Application    `json:"applications"`
	Addresses    []types.AddressRecord  `json:"addresses"`
	Unresolved   []types.UnresolvedItem `json:"unresolved"`
}

// Store persists the whole state: loaded at run start, written back at run
// end.
type Store interface {
	LoadState(ctx context.Context) (*State, error)
	SaveState(ctx context.Context, state *State) error
}

// MatchPrompter is the interactive collaborator for ambiguous identity
// matches. picked=false means the user skipped; the item stays pending.
type MatchPrompter interface {
	PickApplication(ctx context.Context, item types.UnresolvedItem) (id uuid.UUID, picked bool, err error)
}

// Options configures one consolidation run.
type Options struct {
	Matcher  *match.Matcher
	Chain    *address.Chain
	Store    Store
	Prompter MatchPrompter // optional; nil leaves ambiguous matches pending

	// Parallelism bounds concurrent normalization. Normalization is pure,
	// so parallelizing it cannot affect grouping: the errgroup wait is a
	// merge barrier before grouping, and grouping runs in canonical order.
	Parallelism int
	Verbose     bool
	Out         io.Writer
}

// Result is what a finalized run hands to the export collaborator.
type Result struct {
	State    *State
	Final    RunState
	Dropped  int
	Skipped  int
	NewApps  int
	MergedIn int
}

// Run executes one consolidation run over the given raw extractions.
// Per-record failures are logged and skipped; only persisted-state
// corruption is fatal, and it aborts before any write.
func Run(ctx context.Context, raws []types.RawExtraction, opts Options) (*Result, error) {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	if opts.Matcher == nil {
		opts.Matcher = match.New(match.DefaultConfig())
	}

	res := &Result{Final: StateLoaded}

	fmt.Fprintf(out, "Step 1/5: Loading persisted state...\n")
	state, err := opts.Store.LoadState(ctx)
	if err != nil {
		res.Final = StateError
		return res, &CorruptStateError{Message: "loading application store", Cause: err}
	}
	if state == nil {
		state = &State{}
	}
	res.State = state
	fmt.Fprintf(out, "Loaded %d applications, %d addresses, %d pending items\n",
		len(state.Applications), len(state.Addresses), len(state.Unresolved))

	res.Final = StateNormalizing
	fmt.Fprintf(out, "Step 2/5: Normalizing %d extraction records...\n", len(raws))
	records := normalizeAll(ctx, raws, &opts, out, res)

	// Canonical processing order: by event time, then source email id.
	// This keeps grouping deterministic regardless of arrival order.
	sort.SliceStable(records, func(i, j int) bool {
		ti, tj := records[i].When(), records[j].When()
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return records[i].EmailID < records[j].EmailID
	})

	res.Final = StateGrouping
	fmt.Fprintf(out, "Step 3/5: Grouping and merging %d records...\n", len(records))
	res.Final = StateMerging
	groupAndMerge(ctx, records, state, &opts, out, res)

	res.Final = StateResolvingAddresses
	fmt.Fprintf(out, "Step 4/5: Resolving employer addresses...\n")
	resolveAddresses(ctx, state, &opts)

	// Deterministic output order: oldest application first.
	sort.SliceStable(state.Applications, func(i, j int) bool {
		if !state.Applications[i].FirstContact.Equal(state.Applications[j].FirstContact) {
			return state.Applications[i].FirstContact.Before(state.Applications[j].FirstContact)
		}
		return state.Applications[i].Employer < state.Applications[j].Employer
	})

	fmt.Fprintf(out, "Step 5/5: Saving state...\n")
	if err := opts.Store.SaveState(ctx, state); err != nil {
		res.Final = StateError
		return res, fmt.Errorf("saving application store: %w", err)
	}

	res.Final = StateFinalized
	fmt.Fprintf(out, "Done. %d applications (%d new), %d records merged, %d dropped, %d pending review.\n",
		len(state.Applications), res.NewApps, res.MergedIn, res.Dropped, pendingCount(state.Unresolved))
	return res, nil
}

// normalizeAll normalizes records concurrently when Parallelism > 1.
func normalizeAll(ctx context.Context, raws []types.RawExtraction, opts *Options, out io.Writer, res *Result) []types.ExtractionRecord {
	slots := make([]*types.ExtractionRecord, len(raws))
	errs := make([]error, len(raws))

	g, _ := errgroup.WithContext(ctx)
	limit := opts.Parallelism
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for i := range raws {
		g.Go(func() error {
			rec, err := normalize.Normalize(raws[i])
			if err != nil {
				errs[i] = err
				return nil
			}
			slots[i] = &rec
			return nil
		})
	}
	// Per-record errors land in errs; the wait itself cannot fail.
	_ = g.Wait()

	records := make([]types.ExtractionRecord, 0, len(raws))
	for i := range slots {
		if errs[i] != nil {
			res.Dropped++
			fmt.Fprintf(out, "Warning: dropping record: %v\n", errs[i])
			continue
		}
		records = append(records, *slots[i])
	}
	return records
}

func groupAndMerge(ctx context.Context, records []types.ExtractionRecord, state *State, opts *Options, out io.Writer, res *Result) {
	for _, rec := range records {
		if contributed(state.Applications, rec.EmailID) {
			res.Skipped++
			continue
		}

		result := opts.Matcher.Match(appRefs(state.Applications), rec)
		switch result.Decision {
		case match.DecisionNew:
			app := merge.NewApplication(rec)
			state.Applications = append(state.Applications, app)
			res.NewApps++
			if opts.Verbose {
				fmt.Fprintf(out, "  new application: %s / %s\n", app.EmployerDisplay(), app.RoleDisplay())
			}

		case match.DecisionMatch, match.DecisionLowConfidence:
			low := result.Decision == match.DecisionLowConfidence
			idx := indexByID(state.Applications, result.ApplicationID)
			if idx < 0 {
				continue
			}
			state.Applications[idx] = merge.Apply(state.Applications[idx], rec, low)
			res.MergedIn++
			if opts.Verbose {
				fmt.Fprintf(out, "  merged email %s into %s (score %.2f)\n",
					rec.EmailID, state.Applications[idx].EmployerDisplay(), result.Score)
			}

		case match.DecisionAmbiguous:
			item := ambiguousItem(rec, result.Candidates)
			if opts.Prompter != nil {
				id, picked, err := opts.Prompter.PickApplication(ctx, item)
				if err != nil {
					fmt.Fprintf(out, "Warning: match prompt for email %s failed: %v\n", rec.EmailID, err)
				} else if picked {
					if idx := indexByID(state.Applications, id); idx >= 0 {
						state.Applications[idx] = merge.Apply(state.Applications[idx], rec, true)
						res.MergedIn++
						continue
					}
				}
			}
			if !hasPendingForEmail(state.Unresolved, rec.EmailID) {
				state.Unresolved = append(state.Unresolved, item)
			}
			fmt.Fprintf(out, "Warning: ambiguous match for email %s (%s), left for review\n",
				rec.EmailID, rec.EmployerDisplay)
		}
	}
}

func resolveAddresses(ctx context.Context, state *State, opts *Options) {
	if opts.Chain == nil {
		return
	}

	// Seed the run cache with persisted records and with addresses already
	// attached to applications, so repeat runs never re-query the register.
	for _, rec := range state.Addresses {
		opts.Chain.Seed(rec)
	}
	for i := range state.Applications {
		app := &state.Applications[i]
		if app.Address != nil && app.Address.Complete() {
			opts.Chain.Seed(*app.Address)
		}
	}

	// Deterministic resolution order.
	order := make([]int, len(state.Applications))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return state.Applications[order[a]].Employer < state.Applications[order[b]].Employer
	})

	for _, idx := range order {
		app := &state.Applications[idx]
		if app.Address != nil && app.Address.Complete() &&
			app.Address.Provenance != types.ProvenanceInteractiveUnconfirmed {
			continue
		}
		rec, item := opts.Chain.Resolve(ctx, app.Employer, app.EmployerDisplay())
		if rec != nil {
			app.Address = rec
		}
		if item != nil {
			item.ApplicationID = app.ID
			item.Role = app.RoleDisplay()
			if !hasPendingAddress(state.Unresolved, app.Employer) {
				state.Unresolved = append(state.Unresolved, *item)
			}
		} else {
			markAddressResolved(state.Unresolved, app.Employer)
		}
	}

	state.Addresses = opts.Chain.Cache().Records()
}

// SeedInlineAddresses feeds addresses the extractor found inside email
// bodies to the chain as unconfirmed candidates, before Run starts.
func SeedInlineAddresses(chain *address.Chain, raws []types.RawExtraction) {
	for _, raw := range raws {
		if raw.PostalAddress == "" || raw.EmployerName == "" {
			continue
		}
		rec, ok := ParseOneLineAddress(raw.PostalAddress)
		if !ok {
			continue
		}
		rec.Employer = normalize.Company(raw.EmployerName)
		rec.Provenance = types.ProvenanceInteractiveUnconfirmed
		chain.Seed(rec)
	}
}

// ParseOneLineAddress splits "<street> <no>, <postal_code> <city>" into its
// components. Returns ok=false when the line does not fit that shape.
func ParseOneLineAddress(line string) (types.AddressRecord, bool) {
	parts := strings.SplitN(line, ",", 2)
	if len(parts) != 2 {
		return types.AddressRecord{}, false
	}
	street := strings.TrimSpace(parts[0])
	rest := strings.Fields(strings.TrimSpace(parts[1]))
	if street == "" || len(rest) < 2 {
		return types.AddressRecord{}, false
	}
	return types.AddressRecord{
		Street:     street,
		PostalCode: rest[0],
		City:       strings.Join(rest[1:], " "),
	}, true
}

func ambiguousItem(rec types.ExtractionRecord, candidates []match.Scored) types.UnresolvedItem {
	item := types.UnresolvedItem{
		ID:        uuid.New(),
		Kind:      types.UnresolvedAmbiguousMatch,
		Employer:  rec.EmployerDisplay,
		Role:      rec.RoleDisplay,
		EmailID:   rec.EmailID,
		Record:    &rec,
		CreatedAt: time.Now().UTC(),
	}
	for _, cand := range candidates {
		item.Candidates = append(item.Candidates, types.Candidate{
			ApplicationID: cand.ApplicationID,
			Label:         fmt.Sprintf("%s / %s", cand.Employer, cand.Role),
			Score:         cand.Score,
		})
	}
	return item
}

func appRefs(apps []types.Application) []*types.Application {
	refs := make([]*types.Application, len(apps))
	for i := range apps {
		refs[i] = &apps[i]
	}
	return refs
}

func indexByID(apps []types.Application, id uuid.UUID) int {
	for i := range apps {
		if apps[i].ID == id {
			return i
		}
	}
	return -1
}

func contributed(apps []types.Application, emailID string) bool {
	for i := range apps {
		if apps[i].HasEmail(emailID) {
			return true
		}
	}
	return false
}

func hasPendingForEmail(items []types.UnresolvedItem, emailID string) bool {
	for _, item := range items {
		if !item.Resolved && item.Kind == types.UnresolvedAmbiguousMatch && item.EmailID == emailID {
			return true
		}
	}
	return false
}

func hasPendingAddress(items []types.UnresolvedItem, employer string) bool {
	for _, item := range items {
		if !item.Resolved && item.Kind == types.UnresolvedMissingAddress &&
			normalize.Company(item.Employer) == employer {
			return true
		}
	}
	return false
}

func markAddressResolved(items []types.UnresolvedItem, employer string) {
	for i := range items {
		if items[i].Kind == types.UnresolvedMissingAddress &&
			normalize.Company(items[i].Employer) == employer {
			items[i].Resolved = true
		}
	}
}

func pendingCount(items []types.UnresolvedItem) int {
	n := 0
	for _, item := range items {
		if !item.Resolved {
			n++
		}
	}
	return n
}
