package schedule

import "fmt"

// ConfigurationError reports a Request that violates its invariants.
// The request is rejected before any computation begins; the engine
// never repairs malformed constraints silently.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid slot request: %s %s", e.Field, e.Reason)
}

// InputDataError reports a malformed busy interval. The whole call is
// rejected rather than dropping the bad interval, since silently
// ignoring busy time risks proposing a conflicting slot.
type InputDataError struct {
	Index  int
	Reason string
}

func (e *InputDataError) Error() string {
	return fmt.Sprintf("invalid busy interval at index %d: %s", e.Index, e.Reason)
}
