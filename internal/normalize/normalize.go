// Package normalize canonicalizes raw LLM extractions into the fixed
// ExtractionRecord schema. Normalization is pure and tolerant: missing or
// malformed fields degrade to unknown values, and only a record with no
// employer name at all is rejected.
package normalize

import (
	"strings"

	"github.com/jonathan/applytrack/internal/types"
)

// legalSuffixes are company-form suffixes stripped from the comparison form
// of employer names so "Acme GmbH" and "Acme" group together. Multi-word
// suffixes must precede their single-word components.
var legalSuffixes = []string{
	"gmbh & co. kg", "gmbh & co kg", "se & co. kg",
	"gmbh", "mbh", "ag", "kg", "ohg", "ug", "se", "e.v.", "ev", "eg",
	"inc.", "inc", "incorporated", "corp.", "corp", "corporation",
	"ltd.", "ltd", "limited", "llc", "l.l.c.", "plc", "co.", "co",
	"s.a.", "sa", "sarl", "s.a.r.l.", "bv", "b.v.", "nv", "n.v.",
	"oy", "ab", "as", "aps",
}

// Company reduces an employer name to its comparison-friendly normal form:
// lowercase, whitespace collapsed, legal suffixes stripped. The display
// spelling is preserved separately by the caller.
func Company(name string) string {
	text := strings.ToLower(strings.Join(strings.Fields(name), " "))
	text = strings.Trim(text, " ,.")
	stripped := text
	for changed := true; changed; {
		changed = false
		for _, suffix := range legalSuffixes {
			if strings.HasSuffix(stripped, " "+suffix) {
				stripped = strings.Trim(strings.TrimSuffix(stripped, " "+suffix), " ,.")
				changed = true
			}
		}
	}
	// A name consisting only of a legal form keeps its full spelling.
	if stripped == "" {
		return text
	}
	return stripped
}

// Role reduces a role title to its comparison form: lowercase, whitespace
// collapsed, gender markers like "(m/w/d)" removed.
func Role(title string) string {
	text := strings.ToLower(strings.Join(strings.Fields(title), " "))
	for _, marker := range []string{"(m/w/d)", "(m/f/d)", "(w/m/d)", "(f/m/d)", "(m/w/x)", "(all genders)"} {
		text = strings.ReplaceAll(text, marker, "")
	}
	return strings.TrimSpace(strings.Join(strings.Fields(text), " "))
}

// Normalize converts one raw extraction into an ExtractionRecord. It fails
// only with MalformedExtractionError when no employer name is present; every
// other defect is kept on the record as a review flag.
func Normalize(raw types.RawExtraction) (types.ExtractionRecord, error) {
	employerDisplay := strings.TrimSpace(raw.EmployerName)
	if employerDisplay == "" {
		return types.ExtractionRecord{}, &MalformedExtractionError{
			EmailID: raw.EmailID,
			Message: "no employer name",
		}
	}

	rec := types.ExtractionRecord{
		EmailID:         raw.EmailID,
		IngestedAt:      raw.IngestedAt,
		Employer:        Company(employerDisplay),
		EmployerDisplay: employerDisplay,
		RoleDisplay:     strings.TrimSpace(raw.RoleTitle),
		ContactPerson:   strings.TrimSpace(raw.ContactPerson),
		ContactChannel:  strings.TrimSpace(raw.ContactChannel),
		PostalAddress:   strings.TrimSpace(raw.PostalAddress),
		Snippet:         strings.TrimSpace(raw.Snippet),
	}
	rec.Role = Role(rec.RoleDisplay)

	status, mapped := MapStatus(raw.StatusPhrase)
	rec.Status = status
	if !mapped && strings.TrimSpace(raw.StatusPhrase) != "" {
		rec.ReviewFlags = append(rec.ReviewFlags, "unmapped status phrase: "+strings.TrimSpace(raw.StatusPhrase))
	}

	if date, ok := ParseDate(raw.EventDate); ok {
		rec.EventDate = date
		rec.DateKnown = true
	} else {
		rec.EventDate = raw.IngestedAt
		if strings.TrimSpace(raw.EventDate) != "" {
			rec.ReviewFlags = append(rec.ReviewFlags, "unparsable event date: "+strings.TrimSpace(raw.EventDate))
		}
	}

	if raw.FailureNote != "" {
		rec.ReviewFlags = append(rec.ReviewFlags, "extraction: "+raw.FailureNote)
	}

	return rec, nil
}
