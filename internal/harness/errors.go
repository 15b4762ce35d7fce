package harness

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// AssertionError reports one failed invariant with the literal expected
// and actual values. This is the dominant failure in the harness; it must
// be loud and specific, never summarized.
type AssertionError struct {
	// Check names the invariant that failed.
	Check Check

	// Expected describes the required relationship.
	Expected string

	// Actual describes what was observed.
	Actual string

	// Paths lists the files involved, for context.
	Paths []string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "assertion failed: %s\n", e.Check)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	if len(e.Paths) > 0 {
		fmt.Fprintf(&buf, "\n  Files: %s", strings.Join(e.Paths, ", "))
	}
	return buf.String()
}

// IsAssertion returns true if the error is an assertion failure.
// Uses errors.As to handle wrapped errors.
func IsAssertion(err error) bool {
	var ae *AssertionError
	return errors.As(err, &ae)
}

// TimeoutError reports a scenario exceeding its wall-clock budget.
// Timeouts are hard failures and are never retried.
type TimeoutError struct {
	Scenario string
	Budget   time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("scenario %s exceeded its %s budget", e.Scenario, e.Budget)
}

// IsTimeout returns true if the error is a scenario timeout.
// Uses errors.As to handle wrapped errors.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
