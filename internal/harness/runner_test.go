package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tagproof/internal/exiftool"
	"github.com/roach88/tagproof/internal/fileops"
	"github.com/roach88/tagproof/internal/store"
	"github.com/roach88/tagproof/internal/testutil"
)

// pngMagic is a valid PNG signature so format detection sees a real PNG.
var pngMagic = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

// newScenario builds an in-memory scenario over a fresh PNG fixture.
func newScenario(t *testing.T, name string, checks ...Check) *Scenario {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "SAMPLE_PNG.png")
	content := append(append([]byte(nil), pngMagic...), []byte("pixels")...)
	require.NoError(t, os.WriteFile(input, content, 0644))

	return &Scenario{
		Name:        name,
		Description: "test scenario",
		Input:       input,
		Identity:    "11111111-2222-3333-4444-555555555555",
		Signature:   "dummySig",
		Checks:      checks,
	}
}

// newPDFScenario is newScenario over a PDF fixture.
func newPDFScenario(t *testing.T, name string, checks ...Check) *Scenario {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "SAMPLE_PDF.pdf")
	require.NoError(t, os.WriteFile(input, []byte("%PDF-1.7\nbody"), 0644))

	return &Scenario{
		Name:        name,
		Description: "test scenario",
		Input:       input,
		Identity:    "11111111-2222-3333-4444-555555555555",
		Signature:   "dummySig",
		Checks:      checks,
	}
}

func newTestRunner() *Runner {
	return NewRunner(&testutil.FakeTagger{})
}

func TestRun_AllChecksPass(t *testing.T) {
	scenario := newScenario(t, "png_all", AllChecks...)
	result, err := newTestRunner().Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, StateCleaned, result.FinalState)
	assert.Empty(t, result.Errors)
	assert.NotEmpty(t, result.Trace)
}

func TestRun_CleansArtifacts(t *testing.T) {
	scenario := newScenario(t, "png_clean", CheckSameTags, CheckTagDeletion)
	_, err := newTestRunner().Run(context.Background(), scenario)
	require.NoError(t, err)

	artifacts, err := fileops.ListArtifacts(filepath.Dir(scenario.Input))
	require.NoError(t, err)
	assert.Empty(t, artifacts)

	// Fixture survives cleanup untouched.
	_, err = os.Stat(scenario.Input)
	require.NoError(t, err)
}

func TestRun_PDFSkipsPolicyExemptAssertions(t *testing.T) {
	scenario := newPDFScenario(t, "pdf_policy", CheckTaggingChangesContent, CheckTagDeletion)
	result, err := newTestRunner().Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)

	// The trace records the skipped assertions explicitly.
	var notes []string
	for _, event := range result.Trace {
		if event.Note != "" {
			notes = append(notes, event.Note)
		}
	}
	assert.Contains(t, notes, "not asserted for pdf")
}

func TestRun_TraceSequencesAreMonotonic(t *testing.T) {
	scenario := newScenario(t, "png_trace", CheckSameTags, CheckRelocation)
	result, err := newTestRunner().Run(context.Background(), scenario)
	require.NoError(t, err)

	var prev int64
	for _, event := range result.Trace {
		assert.Greater(t, event.Seq, prev)
		prev = event.Seq
	}
}

func TestRun_ToolFailureAbortsScenario(t *testing.T) {
	fake := &testutil.FakeTagger{
		WriteErr: &exiftool.ToolError{Op: "write", Output: "simulated failure"},
	}
	scenario := newScenario(t, "png_toolfail", CheckSameTags, CheckRelocation)

	result, err := NewRunner(fake).Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Equal(t, StateFailed, result.FinalState)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "simulated failure")
}

func TestRun_Timeout(t *testing.T) {
	scenario := newScenario(t, "png_timeout", CheckSameTags)
	scenario.Timeout = 1 // 1ns: expired before the first check runs

	result, err := newTestRunner().Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "exceeded its")
}

func TestRun_UnreadableFixtureIsInfrastructureError(t *testing.T) {
	scenario := newScenario(t, "png_missing", CheckSameTags)
	scenario.Input = filepath.Join(t.TempDir(), "gone.png")

	_, err := newTestRunner().Run(context.Background(), scenario)
	require.Error(t, err)
}

func TestRun_FreshIdentityWhenUnpinned(t *testing.T) {
	scenario := newScenario(t, "png_fresh", CheckRoundTrip)
	scenario.Identity = ""

	result, err := newTestRunner().Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_RecordsToLedger(t *testing.T) {
	ledger, err := store.Open(":memory:")
	require.NoError(t, err)
	defer ledger.Close()

	runner := NewRunner(&testutil.FakeTagger{}, WithLedger(ledger))
	scenario := newScenario(t, "png_ledger", CheckSameTags)

	result, err := runner.Run(context.Background(), scenario)
	require.NoError(t, err)
	require.True(t, result.Pass)

	runs, err := ledger.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "png_ledger", runs[0].Scenario)
	assert.True(t, runs[0].Pass)

	got, err := ledger.GetRun(context.Background(), runs[0].ID)
	require.NoError(t, err)
	assert.Len(t, got.Events, len(result.Trace))
}

func TestRunAll_IndependentScenarios(t *testing.T) {
	failing := newScenario(t, "png_fail", CheckSameTags)
	passing := newScenario(t, "png_pass", CheckSameTags)

	// Force the first scenario to fail without breaking the shared tagger.
	failing.Checks = []Check{Check("bogus")}

	results, err := newTestRunner().RunAll(context.Background(), []*Scenario{failing, passing})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.False(t, results[0].Pass)
	assert.True(t, results[1].Pass, "errors: %v", results[1].Errors)
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Check:    CheckSameTags,
		Expected: "identical digests for identical tags: abc",
		Actual:   "digests differ: abc vs def",
		Paths:    []string{"OUT1.png", "OUT2.png"},
	}

	msg := err.Error()
	assert.Contains(t, msg, "same_tags")
	assert.Contains(t, msg, "Expected: identical digests")
	assert.Contains(t, msg, "Actual: digests differ")
	assert.Contains(t, msg, "OUT1.png")
	assert.True(t, IsAssertion(err))
}

func TestTimeoutError(t *testing.T) {
	err := &TimeoutError{Scenario: "png_slow", Budget: DefaultTimeout}
	assert.Contains(t, err.Error(), "png_slow")
	assert.True(t, IsTimeout(err))
	assert.False(t, IsTimeout(assert.AnError))
}
