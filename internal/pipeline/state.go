package pipeline

import "fmt"

// RunState tracks the orchestrator's progress through one consolidation run.
type RunState string

const (
	StateLoaded             RunState = "LOADED"
	StateNormalizing        RunState = "NORMALIZING"
	StateGrouping           RunState = "GROUPING"
	StateMerging            RunState = "MERGING"
	StateResolvingAddresses RunState = "RESOLVING_ADDRESSES"
	StateFinalized          RunState = "FINALIZED"
	StateError              RunState = "ERROR"
)

// CorruptStateError reports an unrecoverable defect in the persisted store.
// It is the only error class that aborts a run, and it does so before any
// write to avoid propagating corruption.
type CorruptStateError struct {
	Message string
	Cause   error
}

func (e *CorruptStateError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("persisted state corrupt: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("persisted state corrupt: %s", e.Message)
}

func (e *CorruptStateError) Unwrap() error {
	return e.Cause
}
