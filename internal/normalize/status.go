package normalize

import (
	"strings"

	"github.com/jonathan/applytrack/internal/types"
)

// statusPhrases maps known status wordings (English and German, as they
// appear in application emails) to the closed status enumeration.
var statusPhrases = map[string]types.Status{
	"applied":          types.StatusApplied,
	"application sent": types.StatusApplied,
	"beworben":         types.StatusApplied,

	"acknowledged":          types.StatusAcknowledged,
	"received":              types.StatusAcknowledged,
	"under review":          types.StatusAcknowledged,
	"in review":             types.StatusAcknowledged,
	"zwischenstand":         types.StatusAcknowledged,
	"eingangsbestaetigung":  types.StatusAcknowledged,
	"eingangsbestätigung":   types.StatusAcknowledged,
	"bewerbung eingegangen": types.StatusAcknowledged,

	"invited":    types.StatusInvited,
	"invitation": types.StatusInvited,
	"interview":  types.StatusInvited,
	"einladung":  types.StatusInvited,

	"rejected":  types.StatusRejected,
	"rejection": types.StatusRejected,
	"declined":  types.StatusRejected,
	"absage":    types.StatusRejected,

	"offer":           types.StatusOffer,
	"angebot":         types.StatusOffer,
	"vertragsangebot": types.StatusOffer,

	"withdrawn":      types.StatusWithdrawn,
	"zurueckgezogen": types.StatusWithdrawn,
	"zurückgezogen":  types.StatusWithdrawn,
}

// MapStatus maps a free-form status phrase to the closed enumeration.
// Unmapped phrases return StatusUnknown with ok=false so the caller can
// flag the record for review instead of dropping it.
func MapStatus(phrase string) (types.Status, bool) {
	key := strings.ToLower(strings.Join(strings.Fields(phrase), " "))
	if key == "" {
		return types.StatusUnknown, false
	}
	if status, found := statusPhrases[key]; found {
		return status, true
	}
	// The model sometimes returns the enum value directly.
	if s := types.Status(key); s.Valid() {
		return s, true
	}
	return types.StatusUnknown, false
}
