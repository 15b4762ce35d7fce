package harness

import (
	"github.com/roach88/tagproof/internal/digest"
)

// State is a scenario's position in its lifecycle state machine.
type State string

const (
	// StateInit is the starting state: fixtures resolved, nothing tagged.
	StateInit State = "INIT"

	// StateTagged means at least one tagged output has been produced.
	StateTagged State = "TAGGED"

	// StateRetagged is the branch taken by chained-tagging checks.
	StateRetagged State = "RETAGGED"

	// StateVerified means every check passed its assertions.
	StateVerified State = "VERIFIED"

	// StateCleaned is terminal: artifacts removed, backups restored.
	StateCleaned State = "CLEANED"

	// StateFailed is terminal for aborted scenarios. Cleanup still ran.
	StateFailed State = "FAILED"
)

// TraceEvent records one step of a scenario run, in execution order.
type TraceEvent struct {
	// Seq orders events within the run.
	Seq int64 `json:"seq"`

	// Kind is the operation: "write", "read", "delete", "move",
	// "digest", or "check".
	Kind string `json:"kind"`

	// Check names the invariant being exercised, when applicable.
	Check string `json:"check,omitempty"`

	// Path is the file operated on, relative to the scenario dir.
	Path string `json:"path,omitempty"`

	// Digest is the content digest observed at this step.
	Digest string `json:"digest,omitempty"`

	// Note carries any extra detail ("not asserted for pdf").
	Note string `json:"note,omitempty"`
}

// Result is the outcome of one scenario run.
type Result struct {
	// Scenario is the scenario name.
	Scenario string `json:"scenario"`

	// Pass is overall success: every check's assertions held.
	Pass bool `json:"pass"`

	// FinalState is the state machine's resting state
	// (CLEANED on success, FAILED otherwise).
	FinalState State `json:"final_state"`

	// Trace contains every operation in order, for reporting and golden
	// comparison.
	Trace []TraceEvent `json:"trace"`

	// Errors holds assertion and tool failures, with literal
	// expected/actual values. Empty when Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result for a scenario.
func NewResult(scenario string) *Result {
	return &Result{
		Scenario: scenario,
		Pass:     true,
		Trace:    []TraceEvent{},
		Errors:   []string{},
	}
}

// AddError records a failure and marks the result failed.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}

// AddEvent appends a trace event.
func (r *Result) AddEvent(event TraceEvent) {
	r.Trace = append(r.Trace, event)
}

// Digests returns the digest observed for each traced path, last write
// wins. Convenience for tests and reporting.
func (r *Result) Digests() map[string]digest.Digest {
	out := make(map[string]digest.Digest)
	for _, event := range r.Trace {
		if event.Digest != "" && event.Path != "" {
			out[event.Path] = digest.Digest(event.Digest)
		}
	}
	return out
}
