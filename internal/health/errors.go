package health

import "fmt"

// ComputationError reports malformed engine input: a negative amount, an
// unknown transaction type, an invalid date or a malformed budget month.
// The engine fails fast on bad records instead of guessing or skipping, so
// callers are expected to validate input at their own boundary. Policy
// branches for zero income, zero targets and zero caps are not errors.
type ComputationError struct {
	// Component is the sub-score label of the calculator that rejected the
	// input.
	Component string

	// Reason describes the offending record.
	Reason string
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("health: %s: %s", e.Component, e.Reason)
}

func newComputationError(component, format string, args ...any) error {
	return &ComputationError{Component: component, Reason: fmt.Sprintf(format, args...)}
}
