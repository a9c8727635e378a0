package types

import "time"

// RawExtraction is the untrusted per-email payload produced by the LLM
// adapter. All field values are free-form strings exactly as the model
// returned them; any of them may be empty.
type RawExtraction struct {
	EmailID        string    `json:"email_id"`
	IngestedAt     time.Time `json:"ingested_at"`
	EmployerName   string    `json:"employer_name"`
	RoleTitle      string    `json:"role_title"`
	ContactPerson  string    `json:"contact_person"`
	ContactChannel string    `json:"contact_channel"`
	StatusPhrase   string    `json:"status_phrase"`
	EventDate      string    `json:"event_date"`
	PostalAddress  string    `json:"postal_address"`
	Snippet        string    `json:"snippet"`
	FailureNote    string    `json:"failure_note,omitempty"`
}

// ExtractionRecord is the normalized form of one RawExtraction. It is
// immutable once created; the consolidation pipeline only reads it.
type ExtractionRecord struct {
	EmailID    string    `json:"email_id"`
	IngestedAt time.Time `json:"ingested_at"`

	// Employer and role carry both a comparison-friendly normal form
	// (lowercase, whitespace-collapsed, legal suffix stripped) and the
	// original display spelling.
	Employer        string `json:"employer"`
	EmployerDisplay string `json:"employer_display"`
	Role            string `json:"role"`
	RoleDisplay     string `json:"role_display"`

	ContactPerson  string `json:"contact_person,omitempty"`
	ContactChannel string `json:"contact_channel,omitempty"`

	Status    Status    `json:"status"`
	EventDate time.Time `json:"event_date"`
	// DateKnown is false when the raw date phrase could not be parsed;
	// EventDate then falls back to the ingestion timestamp.
	DateKnown bool `json:"date_known"`

	PostalAddress string `json:"postal_address,omitempty"`
	Snippet       string `json:"snippet,omitempty"`

	// ReviewFlags records normalization oddities (unmapped status phrase,
	// unparsable date) so nothing is silently dropped.
	ReviewFlags []string `json:"review_flags,omitempty"`
}

// When returns the best-known event time for ordering: the parsed event
// date when available, otherwise the ingestion timestamp.
func (r *ExtractionRecord) When() time.Time {
	if r.DateKnown {
		return r.EventDate
	}
	return r.IngestedAt
}
