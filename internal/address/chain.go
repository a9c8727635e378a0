// Package address resolves missing employer postal addresses through an
// ordered fallback chain: manual override table, external register dataset,
// interactive prompt. Resolution is best-effort; a resolver failure is
// treated as "no match" and never aborts a run.
package address

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/applytrack/internal/types"
)

// OverrideStore is the user-maintained manual address table. It is
// append-only: confirmations are recorded as events, and Lookup returns the
// latest entry per employer.
type OverrideStore interface {
	Lookup(ctx context.Context, employer string) (*types.AddressRecord, error)
	Append(ctx context.Context, rec types.AddressRecord) error
}

// RegisterCandidate is one hit from the open-register dataset, scored by
// name similarity against the queried employer.
type RegisterCandidate struct {
	Name       string
	Record     types.AddressRecord
	Similarity float64
}

// RegisterLookup queries the locally-held open-register dataset by
// normalized company name.
type RegisterLookup interface {
	Candidates(ctx context.Context, employer string) ([]RegisterCandidate, error)
}

// Prompter is the interactive fallback collaborator. A nil record with a
// nil error means the user chose to skip and leave the item pending.
type Prompter interface {
	ResolveAddress(ctx context.Context, item types.UnresolvedItem) (*types.AddressRecord, error)
}

// ChainConfig holds the register acceptance policy.
type ChainConfig struct {
	// RegisterThreshold is the minimum name similarity for a register hit
	// to be considered at all.
	RegisterThreshold float64 `json:"register_threshold"`
	// RegisterMargin: a leader must beat the runner-up by more than this
	// to be accepted without confirmation.
	RegisterMargin float64 `json:"register_margin"`
}

// DefaultChainConfig returns the baseline register acceptance policy.
func DefaultChainConfig() ChainConfig {
	return ChainConfig{RegisterThreshold: 0.85, RegisterMargin: 0.05}
}

// Chain runs the ordered resolver sequence and caches results for the run.
type Chain struct {
	overrides OverrideStore
	register  RegisterLookup
	prompter  Prompter
	cfg       ChainConfig
	cache     *Cache
	out       io.Writer
}

// NewChain assembles the resolution chain. register and prompter may be nil,
// in which case those stages are skipped.
func NewChain(overrides OverrideStore, register RegisterLookup, prompter Prompter, cfg ChainConfig, out io.Writer) *Chain {
	if cfg.RegisterThreshold == 0 {
		cfg = DefaultChainConfig()
	}
	return &Chain{
		overrides: overrides,
		register:  register,
		prompter:  prompter,
		cfg:       cfg,
		cache:     NewCache(),
		out:       out,
	}
}

// Cache exposes the run-scoped resolution context for persistence at run end.
func (c *Chain) Cache() *Cache {
	return c.cache
}

// Seed pre-loads the cache, e.g. with persisted records from earlier runs or
// with addresses the extractor found inline in an email. Provenance ordering
// still applies, so a seeded low-tier record gives way to better answers.
func (c *Chain) Seed(rec types.AddressRecord) {
	c.cache.Put(rec)
}

// Resolve returns a confident AddressRecord for the employer, or an
// UnresolvedItem carrying whatever near-miss candidates were found. When only
// an unconfirmed inline address exists, both are returned: the record is
// usable for export and the item keeps the confirmation pending.
func (c *Chain) Resolve(ctx context.Context, employer, display string) (*types.AddressRecord, *types.UnresolvedItem) {
	if rec, ok := c.cache.Get(employer); ok && rec.Provenance != types.ProvenanceInteractiveUnconfirmed {
		return &rec, nil
	}

	// 1. Manual override table: always wins when present.
	if c.overrides != nil {
		rec, err := c.overrides.Lookup(ctx, employer)
		if err != nil {
			c.warnf("address override lookup for %q failed: %v", display, err)
		} else if rec != nil {
			rec.Employer = employer
			rec.Provenance = types.ProvenanceManual
			c.cache.Put(*rec)
			return rec, nil
		}
	}

	// 2. Register dataset, accepted only above the similarity threshold
	// and only with an unambiguous leader.
	var nearMisses []RegisterCandidate
	if c.register != nil {
		rec, misses := c.resolveRegister(ctx, employer, display)
		nearMisses = misses
		if rec != nil {
			c.cache.Put(*rec)
			return rec, nil
		}
	}

	// An unconfirmed inline address is better than nothing, but it still
	// goes through the interactive stage for confirmation when possible.
	seeded, hasSeed := c.cache.Get(employer)

	item := &types.UnresolvedItem{
		ID:        uuid.New(),
		Kind:      types.UnresolvedMissingAddress,
		Employer:  display,
		CreatedAt: time.Now().UTC(),
	}
	for _, miss := range nearMisses {
		rec := miss.Record
		item.Candidates = append(item.Candidates, types.Candidate{
			Label:   miss.Name,
			Score:   miss.Similarity,
			Address: &rec,
		})
	}
	if hasSeed {
		rec := seeded
		item.Candidates = append(item.Candidates, types.Candidate{
			Label:   "extracted from email",
			Address: &rec,
		})
	}

	// 3. Interactive fallback. A confirmed answer is appended to the
	// manual override table so future runs short-circuit at stage 1.
	if c.prompter != nil {
		answer, err := c.prompter.ResolveAddress(ctx, *item)
		if err != nil {
			c.warnf("interactive address prompt for %q failed: %v", display, err)
		} else if answer != nil {
			answer.Employer = employer
			answer.Provenance = types.ProvenanceInteractiveConfirmed
			if answer.Confidence == 0 {
				answer.Confidence = 1
			}
			c.cache.Put(*answer)
			if c.overrides != nil {
				saved := *answer
				saved.Provenance = types.ProvenanceManual
				if err := c.overrides.Append(ctx, saved); err != nil {
					c.warnf("saving manual override for %q failed: %v", display, err)
				}
			}
			return answer, nil
		}
	}

	if hasSeed {
		// Keep the unconfirmed record usable for export, but still surface
		// the item so the user can confirm it later.
		return &seeded, item
	}
	return nil, item
}

// resolveRegister picks a confident register hit or returns the plausible
// near-misses for human review.
func (c *Chain) resolveRegister(ctx context.Context, employer, display string) (*types.AddressRecord, []RegisterCandidate) {
	candidates, err := c.register.Candidates(ctx, employer)
	if err != nil {
		c.warnf("register lookup for %q failed: %v", display, err)
		return nil, nil
	}

	var plausible []RegisterCandidate
	for _, cand := range candidates {
		if cand.Similarity >= c.cfg.RegisterThreshold {
			plausible = append(plausible, cand)
		}
	}
	if len(plausible) == 0 {
		return nil, nil
	}
	sort.Slice(plausible, func(i, j int) bool {
		if plausible[i].Similarity != plausible[j].Similarity {
			return plausible[i].Similarity > plausible[j].Similarity
		}
		return plausible[i].Name < plausible[j].Name
	})
	if len(plausible) > 1 && plausible[1].Similarity > plausible[0].Similarity-c.cfg.RegisterMargin {
		// Multiple plausible companies: not confident, fall through.
		return nil, plausible
	}

	rec := plausible[0].Record
	rec.Employer = employer
	rec.Provenance = types.ProvenanceRegister
	rec.Confidence = plausible[0].Similarity
	return &rec, nil
}

func (c *Chain) warnf(format string, args ...any) {
	if c.out != nil {
		fmt.Fprintf(c.out, "Warning: "+format+"\n", args...)
	}
}
