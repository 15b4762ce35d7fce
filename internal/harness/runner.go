package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/tagproof/internal/digest"
	"github.com/roach88/tagproof/internal/exiftool"
	"github.com/roach88/tagproof/internal/fileops"
	"github.com/roach88/tagproof/internal/media"
	"github.com/roach88/tagproof/internal/store"
	"github.com/roach88/tagproof/internal/testutil"
)

// Tagger is the narrow contract the runner needs from the external
// metadata tool. exiftool.Session implements it; tests substitute
// testutil.FakeTagger.
type Tagger interface {
	Write(ctx context.Context, inputPath string, tags exiftool.TagSet, outputPath string) error
	Read(ctx context.Context, path string) (*exiftool.Metadata, error)
	DeleteAll(ctx context.Context, path string) error
}

// Runner executes verification scenarios against a Tagger.
//
// The Tagger is injected, not global: one tool session serves the whole
// test session and is owned by the caller (started lazily, closed once).
// The runner itself holds no cross-scenario state beyond the trace clock.
type Runner struct {
	tagger   Tagger
	identity testutil.IdentityGenerator
	clock    *testutil.SequenceClock
	logger   *slog.Logger
	ledger   *store.Ledger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithIdentityGenerator overrides how identity tag values are generated
// for scenarios that do not pin one. Tests use a fixed generator for
// golden-trace determinism.
func WithIdentityGenerator(gen testutil.IdentityGenerator) Option {
	return func(r *Runner) { r.identity = gen }
}

// WithLedger records every run into a durable ledger.
func WithLedger(ledger *store.Ledger) Option {
	return func(r *Runner) { r.ledger = ledger }
}

// NewRunner creates a Runner around the given Tagger.
func NewRunner(tagger Tagger, opts ...Option) *Runner {
	r := &Runner{
		tagger:   tagger,
		identity: testutil.UUIDGenerator{},
		clock:    testutil.NewSequenceClock(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one scenario through its full lifecycle and returns the
// result. Assertion and tool failures land in the result; the returned
// error is reserved for infrastructure problems (unreadable fixture,
// ledger write failure).
//
// Cleanup always runs, even after failures, so shared fixtures are
// repaired before the next scenario.
func (r *Runner) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	mf, err := media.Stat(scenario.Input)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	r.clock.Reset()
	result := NewResult(scenario.Name)

	identity := scenario.Identity
	if identity == "" {
		identity = r.identity.Generate()
	}

	sc := &scenarioRun{
		runner:   r,
		scenario: scenario,
		file:     mf,
		policy:   media.PolicyFor(mf.Format),
		result:   result,
		identity: identity,
		state:    StateInit,
	}

	budget := scenario.EffectiveTimeout()
	runCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	r.logger.Info("scenario started",
		"scenario", scenario.Name,
		"input", scenario.Input,
		"format", mf.Format,
		"checks", len(scenario.Checks),
	)

	for _, check := range scenario.Checks {
		if err := sc.runCheck(runCtx, check); err != nil {
			if runCtx.Err() == context.DeadlineExceeded {
				err = &TimeoutError{Scenario: scenario.Name, Budget: budget}
			}
			result.AddError(err.Error())
			sc.state = StateFailed
			r.logger.Error("check failed", "scenario", scenario.Name, "check", check, "error", err)
			break
		}
	}

	if sc.state != StateFailed {
		sc.state = StateVerified
	}

	// Teardown runs regardless of failure. Cleanup uses a fresh context:
	// an expired scenario budget must not leave artifacts behind.
	sc.cleanup(context.WithoutCancel(ctx))

	if sc.state == StateFailed {
		result.FinalState = StateFailed
	} else {
		result.FinalState = StateCleaned
	}

	if r.ledger != nil {
		if err := r.ledger.RecordRun(context.WithoutCancel(ctx), toRunRecord(result)); err != nil {
			return result, fmt.Errorf("scenario %s: record run: %w", scenario.Name, err)
		}
	}

	r.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"state", result.FinalState,
	)
	return result, nil
}

// RunAll executes scenarios sequentially. One scenario's failure does not
// block the others; session teardown sweeps every scenario directory for
// leftover artifacts afterwards.
func (r *Runner) RunAll(ctx context.Context, scenarios []*Scenario) ([]*Result, error) {
	results := make([]*Result, 0, len(scenarios))
	dirs := make(map[string]bool)

	for _, scenario := range scenarios {
		dirs[filepath.Dir(scenario.Input)] = true
		result, err := r.Run(ctx, scenario)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}

	for dir := range dirs {
		if err := fileops.CleanArtifacts(dir); err != nil {
			return results, fmt.Errorf("session teardown: %w", err)
		}
	}
	return results, nil
}

// toRunRecord converts a harness result to the ledger's record types.
func toRunRecord(result *Result) store.RunRecord {
	record := store.RunRecord{
		Scenario:   result.Scenario,
		Pass:       result.Pass,
		FinalState: string(result.FinalState),
		Errors:     strings.Join(result.Errors, "\n"),
	}
	for _, event := range result.Trace {
		record.Events = append(record.Events, store.EventRecord{
			Seq:    event.Seq,
			Kind:   event.Kind,
			Check:  event.Check,
			Path:   event.Path,
			Digest: event.Digest,
			Note:   event.Note,
		})
	}
	return record
}

// scenarioRun carries one scenario's execution state.
type scenarioRun struct {
	runner   *Runner
	scenario *Scenario
	file     *media.MediaFile
	policy   media.Policy
	result   *Result
	identity string
	state    State

	// outputs tracks artifacts this scenario created, for cleanup.
	outputs []string
	// currentCheck labels trace events while a check runs.
	currentCheck Check
}

// tags returns the scenario's base tag fixture.
func (sc *scenarioRun) tags() exiftool.TagSet {
	return exiftool.TagSet{Identity: sc.identity, Signature: sc.scenario.Signature}
}

// altTags returns a tag fixture guaranteed to differ from tags() in both
// fields, for the retag branch.
func (sc *scenarioRun) altTags() exiftool.TagSet {
	return exiftool.TagSet{Identity: sc.identity + "-alt", Signature: sc.scenario.Signature + "-alt"}
}

// outPath builds an artifact path following the naming convention:
// <input-base>_<scenario>_OUT<label><ext>, in the input's directory.
func (sc *scenarioRun) outPath(label string) string {
	dir := filepath.Dir(sc.file.Path)
	ext := filepath.Ext(sc.file.Path)
	base := strings.TrimSuffix(filepath.Base(sc.file.Path), ext)
	return filepath.Join(dir, fmt.Sprintf("%s_%s_OUT%s%s", base, sc.scenario.Name, label, ext))
}

// event appends a trace event stamped with the next sequence number.
func (sc *scenarioRun) event(kind, path string, d digest.Digest, note string) {
	sc.result.AddEvent(TraceEvent{
		Seq:    sc.runner.clock.Next(),
		Kind:   kind,
		Check:  string(sc.currentCheck),
		Path:   filepath.Base(path),
		Digest: string(d),
		Note:   note,
	})
}

// runCheck dispatches one named check.
func (sc *scenarioRun) runCheck(ctx context.Context, check Check) error {
	sc.currentCheck = check
	defer func() { sc.currentCheck = "" }()

	switch check {
	case CheckRoundTrip:
		return sc.checkRoundTrip(ctx)
	case CheckSameTags:
		return sc.checkSameTags(ctx)
	case CheckDifferentIdentity:
		return sc.checkDifferentIdentity(ctx)
	case CheckDifferentSignature:
		return sc.checkDifferentSignature(ctx)
	case CheckTaggingChangesContent:
		return sc.checkTaggingChangesContent(ctx)
	case CheckChainedRetag:
		return sc.checkChainedRetag(ctx)
	case CheckTagDeletion:
		return sc.checkTagDeletion(ctx)
	case CheckRelocation:
		return sc.checkRelocation(ctx)
	case CheckReadAccess:
		return sc.checkReadAccess(ctx)
	default:
		return fmt.Errorf("unknown check %q", check)
	}
}

// write produces a tagged artifact and returns its path and digest.
// Advances the state machine: first write leaves INIT for TAGGED;
// writing from an already-tagged artifact enters RETAGGED.
func (sc *scenarioRun) write(ctx context.Context, inputPath string, tags exiftool.TagSet, label string) (string, digest.Digest, error) {
	out := sc.outPath(label)
	if err := sc.runner.tagger.Write(ctx, inputPath, tags, out); err != nil {
		return "", "", err
	}
	sc.outputs = append(sc.outputs, out)

	if sc.state == StateInit {
		sc.state = StateTagged
	} else if inputPath != sc.file.Path {
		sc.state = StateRetagged
	}

	d, err := digest.File(out)
	if err != nil {
		return "", "", err
	}
	sc.event("write", out, d, "")
	return out, d, nil
}

// digestOf digests a file and records it in the trace.
func (sc *scenarioRun) digestOf(path string) (digest.Digest, error) {
	d, err := digest.File(path)
	if err != nil {
		return "", err
	}
	sc.event("digest", path, d, "")
	return d, nil
}

// read reads tags back and records the read in the trace.
func (sc *scenarioRun) read(ctx context.Context, path string) (*exiftool.Metadata, error) {
	meta, err := sc.runner.tagger.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	sc.event("read", path, "", "")
	return meta, nil
}

// copyArtifact duplicates a file into the artifact namespace so checks
// can mutate a fixture's bytes without touching the fixture.
func (sc *scenarioRun) copyArtifact(src, label string) (string, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return "", &digest.FileAccessError{Path: src, Op: "read", Err: err}
	}
	out := sc.outPath(label)
	if err := os.WriteFile(out, data, 0644); err != nil {
		return "", &digest.FileAccessError{Path: out, Op: "write", Err: err}
	}
	sc.outputs = append(sc.outputs, out)
	sc.event("copy", out, digest.Bytes(data), "")
	return out, nil
}

// cleanup deletes this scenario's artifacts and any tool backups of
// them. Runs in every terminal state.
func (sc *scenarioRun) cleanup(ctx context.Context) {
	_ = ctx
	for _, out := range sc.outputs {
		if err := fileops.Delete(exiftool.BackupPath(out)); err != nil {
			sc.runner.logger.Error("cleanup failed", "path", out, "error", err)
		}
		if err := fileops.Delete(out); err != nil {
			sc.runner.logger.Error("cleanup failed", "path", out, "error", err)
		}
	}
	// The input fixture itself is never edited in place by checks, but a
	// failed run may still have left a tool backup next to it.
	if err := fileops.RestoreBackup(sc.file.Path); err != nil {
		sc.runner.logger.Error("cleanup failed", "path", sc.file.Path, "error", err)
	}
	if sc.state != StateFailed {
		sc.state = StateCleaned
	}
	sc.event("clean", sc.file.Path, "", "")
}
