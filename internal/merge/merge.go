// Package merge folds matched extraction records into canonical
// Applications. Updates are pure functional: the input Application is never
// mutated, and no previously merged information is ever deleted;
// conflicting values become variants or history entries.
package merge

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/applytrack/internal/types"
)

// NewApplication creates a canonical Application from its first extraction
// record. The record's (employer, role) normal forms become the identity
// signature, which stays stable for the Application's lifetime.
func NewApplication(rec types.ExtractionRecord) types.Application {
	app := types.Application{
		ID:       uuid.New(),
		Employer: rec.Employer,
		Role:     rec.Role,
	}
	return Apply(app, rec, false)
}

// Apply merges one extraction record into an Application and returns the
// updated copy. Re-applying a record whose email id already contributed is
// a no-op, which makes consolidation idempotent across runs.
func Apply(app types.Application, rec types.ExtractionRecord, lowConfidence bool) types.Application {
	if app.HasEmail(rec.EmailID) {
		return app
	}

	out := clone(app)
	out.EmailIDs = append(out.EmailIDs, rec.EmailID)

	out.History = append(out.History, types.StatusEvent{
		Status:        rec.Status,
		Date:          rec.When(),
		EmailID:       rec.EmailID,
		LowConfidence: lowConfidence,
	})
	out.SortHistory()

	out.EmployerVariants = addVariant(out.EmployerVariants, rec.EmployerDisplay)
	out.RoleVariants = addVariant(out.RoleVariants, rec.RoleDisplay)

	if rec.ContactPerson != "" {
		out.ContactPersons = addContact(out.ContactPersons, rec.ContactPerson)
	}
	if out.ContactChannel == "" {
		out.ContactChannel = rec.ContactChannel
	}

	// The signature never changes, but evidence arriving under a different
	// normalized employer name is worth an audit trail entry.
	if rec.Employer != out.Employer {
		out.SignatureNotes = append(out.SignatureNotes,
			fmt.Sprintf("email %s matched under employer variant %q", rec.EmailID, rec.Employer))
	}

	when := rec.When()
	if out.FirstContact.IsZero() || when.Before(out.FirstContact) {
		out.FirstContact = when
	}
	if rec.IngestedAt.After(out.LastUpdated) {
		out.LastUpdated = rec.IngestedAt
	}

	return out
}

// clone copies an Application deeply enough that appending to the copy's
// slices cannot alias the original.
func clone(app types.Application) types.Application {
	out := app
	out.EmployerVariants = append([]types.NameVariant(nil), app.EmployerVariants...)
	out.RoleVariants = append([]types.NameVariant(nil), app.RoleVariants...)
	out.History = append([]types.StatusEvent(nil), app.History...)
	out.ContactPersons = append([]string(nil), app.ContactPersons...)
	out.EmailIDs = append([]string(nil), app.EmailIDs...)
	out.SignatureNotes = append([]string(nil), app.SignatureNotes...)
	return out
}

// addVariant counts one more occurrence of a display spelling. The first
// time a spelling appears it gets the next arrival index, which breaks
// count ties in favor of the earliest variant.
func addVariant(variants []types.NameVariant, value string) []types.NameVariant {
	if value == "" {
		return variants
	}
	for i := range variants {
		if variants[i].Value == value {
			variants[i].Count++
			return variants
		}
	}
	return append(variants, types.NameVariant{Value: value, Count: 1, Seen: len(variants)})
}

// addContact unions a contact person into the set, deduplicating by the
// case/whitespace-insensitive normal form.
func addContact(contacts []string, name string) []string {
	key := types.NormalizeContactName(name)
	for _, existing := range contacts {
		if types.NormalizeContactName(existing) == key {
			return contacts
		}
	}
	return append(contacts, name)
}
