package types

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StatusEvent is one entry in an Application's status history.
type StatusEvent struct {
	Status Status    `json:"status"`
	Date   time.Time `json:"date"`
	// EmailID identifies the email the event was extracted from.
	EmailID string `json:"email_id"`
	// LowConfidence marks events merged in via a low-confidence identity
	// match (score between the low and high thresholds).
	LowConfidence bool `json:"low_confidence,omitempty"`
}

// NameVariant tracks one observed spelling of an employer or role name.
// Count is the number of contributing emails that used it; Seen is the
// arrival order used to break count ties (first seen wins).
type NameVariant struct {
	Value string `json:"value"`
	Count int    `json:"count"`
	Seen  int    `json:"seen"`
}

// Application is the canonical, persisted record of one real-world
// application process. Its identity signature (Employer, Role normal forms)
// is stable once assigned; merges add evidence but never silently rename it.
type Application struct {
	ID uuid.UUID `json:"id"`

	// Identity signature (normal forms).
	Employer string `json:"employer"`
	Role     string `json:"role"`

	// Observed display spellings with occurrence counts. The canonical
	// display name is the most frequent variant; ties go to the earliest.
	EmployerVariants []NameVariant `json:"employer_variants"`
	RoleVariants     []NameVariant `json:"role_variants"`

	CurrentStatus Status        `json:"current_status"`
	History       []StatusEvent `json:"history"`

	// ContactPersons is deduplicated by case/whitespace-insensitive name.
	ContactPersons []string `json:"contact_persons,omitempty"`
	ContactChannel string   `json:"contact_channel,omitempty"`

	Address *AddressRecord `json:"address,omitempty"`

	// EmailIDs is the set of contributing source emails. Invariant: never
	// empty for a persisted Application.
	EmailIDs []string `json:"email_ids"`

	// SignatureNotes records any change affecting the identity signature
	// (e.g. an alias promoted to canonical display form).
	SignatureNotes []string `json:"signature_notes,omitempty"`

	FirstContact time.Time `json:"first_contact"`
	LastUpdated  time.Time `json:"last_updated"`
}

// EmployerDisplay returns the canonical display spelling of the employer.
func (a *Application) EmployerDisplay() string {
	return bestVariant(a.EmployerVariants)
}

// RoleDisplay returns the canonical display spelling of the role title.
func (a *Application) RoleDisplay() string {
	return bestVariant(a.RoleVariants)
}

// EmployerAliases returns every observed employer spelling except the
// canonical one, for matching and audit purposes.
func (a *Application) EmployerAliases() []string {
	display := a.EmployerDisplay()
	var aliases []string
	for _, v := range a.EmployerVariants {
		if v.Value != display {
			aliases = append(aliases, v.Value)
		}
	}
	return aliases
}

// HasEmail reports whether the given source email already contributed to
// this Application.
func (a *Application) HasEmail(emailID string) bool {
	for _, id := range a.EmailIDs {
		if id == emailID {
			return true
		}
	}
	return false
}

// SortHistory orders the status history by event date, breaking same-day
// ties by severity so a decisive outcome sorts after the states it
// supersedes. Entries are only reordered, never dropped.
func (a *Application) SortHistory() {
	sort.SliceStable(a.History, func(i, j int) bool {
		di, dj := dayOf(a.History[i].Date), dayOf(a.History[j].Date)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return a.History[i].Status.Severity() < a.History[j].Status.Severity()
	})
	if n := len(a.History); n > 0 {
		a.CurrentStatus = a.History[n-1].Status
	}
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func bestVariant(variants []NameVariant) string {
	best := ""
	bestCount := -1
	bestSeen := 0
	for _, v := range variants {
		if v.Count > bestCount || (v.Count == bestCount && v.Seen < bestSeen) {
			best = v.Value
			bestCount = v.Count
			bestSeen = v.Seen
		}
	}
	return best
}

// NormalizeContactName reduces a contact person name to its dedup key.
func NormalizeContactName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
