// Package types provides type definitions for structured data used throughout the applytrack system.
package types

// Status is the closed set of application states derived from email content.
type Status string

const (
	StatusApplied      Status = "applied"
	StatusAcknowledged Status = "acknowledged"
	StatusInvited      Status = "invited"
	StatusRejected     Status = "rejected"
	StatusOffer        Status = "offer"
	StatusWithdrawn    Status = "withdrawn"
	StatusUnknown      Status = "unknown"
)

// statusSeverity orders statuses for same-day tie-breaking. A decisive
// outcome (rejection, offer, withdrawal) outranks an invitation, which
// outranks an acknowledgement, which outranks the initial application.
var statusSeverity = map[Status]int{
	StatusRejected:     4,
	StatusOffer:        4,
	StatusWithdrawn:    4,
	StatusInvited:      3,
	StatusAcknowledged: 2,
	StatusApplied:      1,
	StatusUnknown:      0,
}

// Severity returns the tie-break rank of a status. Unrecognized values rank
// lowest, same as StatusUnknown.
func (s Status) Severity() int {
	return statusSeverity[s]
}

// Valid reports whether s is one of the closed enumeration values.
func (s Status) Valid() bool {
	_, ok := statusSeverity[s]
	return ok
}
