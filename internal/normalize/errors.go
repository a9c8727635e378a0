package normalize

import "fmt"

// MalformedExtractionError reports a raw extraction that cannot be minimally
// normalized (no employer name at all). Callers log the reason and skip the
// record; it is never fatal to a run.
type MalformedExtractionError struct {
	EmailID string
	Message string
}

func (e *MalformedExtractionError) Error() string {
	if e.EmailID != "" {
		return fmt.Sprintf("malformed extraction from email %s: %s", e.EmailID, e.Message)
	}
	return fmt.Sprintf("malformed extraction: %s", e.Message)
}
