package types

import (
	"time"

	"github.com/google/uuid"
)

// UnresolvedKind classifies what a human needs to decide.
type UnresolvedKind string

const (
	// UnresolvedAmbiguousMatch means several existing Applications scored
	// within the decision margin of each other for one record.
	UnresolvedAmbiguousMatch UnresolvedKind = "ambiguous-match"
	// UnresolvedMissingAddress means no resolver produced a confident
	// address for an employer.
	UnresolvedMissingAddress UnresolvedKind = "missing-address"
)

// Candidate is one option presented to the user for disambiguation.
type Candidate struct {
	// ApplicationID is set for ambiguous-match candidates.
	ApplicationID uuid.UUID `json:"application_id,omitempty"`
	Label         string    `json:"label"`
	Score         float64   `json:"score,omitempty"`
	// Address is set for missing-address candidates that were found but
	// not confident enough to accept automatically.
	Address *AddressRecord `json:"address,omitempty"`
}

// UnresolvedItem is a pending decision requiring human input. It is not an
// error: the run completes and the item is carried on the needs-review list
// until the user resolves it or it is answered on a later run.
type UnresolvedItem struct {
	ID            uuid.UUID      `json:"id"`
	Kind          UnresolvedKind `json:"kind"`
	Employer      string         `json:"employer"`
	Role          string         `json:"role,omitempty"`
	EmailID       string         `json:"email_id,omitempty"`
	ApplicationID uuid.UUID      `json:"application_id,omitempty"`
	Candidates    []Candidate    `json:"candidates,omitempty"`
	// Record preserves the normalized extraction behind an ambiguous match
	// so a later resolution can still merge it.
	Record    *ExtractionRecord `json:"record,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	Resolved  bool              `json:"resolved"`
}
