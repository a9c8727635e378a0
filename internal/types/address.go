package types

import "strings"

// Provenance identifies the trust tier an address came from. Higher tiers
// always override lower ones.
type Provenance string

const (
	ProvenanceManual                 Provenance = "manual"
	ProvenanceRegister               Provenance = "register"
	ProvenanceInteractiveConfirmed   Provenance = "interactive-confirmed"
	ProvenanceInteractiveUnconfirmed Provenance = "interactive-unconfirmed"
)

var provenanceRank = map[Provenance]int{
	ProvenanceManual:                 3,
	ProvenanceRegister:               2,
	ProvenanceInteractiveConfirmed:   1,
	ProvenanceInteractiveUnconfirmed: 0,
}

// Rank returns the trust tier of the provenance; unknown values rank lowest.
func (p Provenance) Rank() int {
	return provenanceRank[p]
}

// Outranks reports whether p may replace other in the address cache.
// Equal provenance is allowed to replace (last writer wins within a tier).
func (p Provenance) Outranks(other Provenance) bool {
	return p.Rank() >= other.Rank()
}

// AddressRecord is a resolved postal address for one employer, keyed by the
// employer's normalized name. At most one record exists per employer.
type AddressRecord struct {
	Employer   string     `json:"employer"`
	Street     string     `json:"street"`
	PostalCode string     `json:"postal_code"`
	City       string     `json:"city"`
	Country    string     `json:"country,omitempty"`
	Provenance Provenance `json:"provenance"`
	Confidence float64    `json:"confidence"`
}

// OneLine renders the address as a single "<street>, <postal_code> <city>"
// line for spreadsheet output.
func (a *AddressRecord) OneLine() string {
	var sb strings.Builder
	sb.WriteString(a.Street)
	if a.PostalCode != "" || a.City != "" {
		sb.WriteString(", ")
		sb.WriteString(strings.TrimSpace(a.PostalCode + " " + a.City))
	}
	return sb.String()
}

// Complete reports whether the record carries the minimum usable fields.
func (a *AddressRecord) Complete() bool {
	return a.Street != "" && a.PostalCode != "" && a.City != ""
}
