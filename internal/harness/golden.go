package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tagproof/internal/digest"
)

// TraceSnapshot captures a scenario run's full trace for golden-file
// comparison. Serialized as canonical JSON so key ordering never churns
// the fixtures.
type TraceSnapshot struct {
	Scenario   string
	FinalState State
	Trace      []TraceEvent
}

// toCanonicalMap converts the snapshot into the plain map form
// digest.MarshalCanonical accepts.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"seq":  event.Seq,
			"kind": event.Kind,
		}
		if event.Check != "" {
			eventMap["check"] = event.Check
		}
		if event.Path != "" {
			eventMap["path"] = event.Path
		}
		if event.Digest != "" {
			eventMap["digest"] = event.Digest
		}
		if event.Note != "" {
			eventMap["note"] = event.Note
		}
		traceList[i] = eventMap
	}

	return map[string]any{
		"scenario":    s.Scenario,
		"final_state": string(s.FinalState),
		"trace":       traceList,
	}
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// Golden comparison requires a fully deterministic run: pin the
// scenario's identity value and drive the runner with a deterministic
// Tagger (testutil.FakeTagger). Regenerate fixtures with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, r *Runner, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := r.Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result's trace against the golden
// file named after the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		Scenario:   result.Scenario,
		FinalState: result.FinalState,
		Trace:      result.Trace,
	}
	traceJSON, err := digest.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
