package sim

import "fmt"

// ValidationError reports a configuration problem caught before any
// simulation work or random draws happen.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// EvaluationError reports an arithmetic failure during stepping. It carries
// enough context to locate the offending step; the underlying cause (usually
// an expr.DomainError) is available via Unwrap.
type EvaluationError struct {
	Scenario int
	Step     int     // index of the step being computed, 1-based over time points
	Time     float64 // time at the start of the failing step
	Err      error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("scenario %d, step %d (t=%g): %v", e.Scenario, e.Step, e.Time, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }
