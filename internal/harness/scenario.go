package harness

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

// cuePathScenario locates the schema definition inside the embedded file.
var cuePathScenario = cue.ParsePath("#Scenario")

//go:embed scenario_schema.cue
var scenarioSchemaCUE string

// Check names the individual invariants a scenario can exercise.
type Check string

const (
	// CheckRoundTrip verifies tags read back exactly as written.
	CheckRoundTrip Check = "round_trip"

	// CheckSameTags verifies two independent writes with identical tags
	// produce byte-identical outputs.
	CheckSameTags Check = "same_tags"

	// CheckDifferentIdentity verifies outputs with different identity
	// values have different digests.
	CheckDifferentIdentity Check = "different_identity"

	// CheckDifferentSignature verifies outputs with different signature
	// values have different digests.
	CheckDifferentSignature Check = "different_signature"

	// CheckTaggingChangesContent verifies tagging changes the digest
	// relative to the untagged input, where format policy requires it.
	CheckTaggingChangesContent Check = "tagging_changes_content"

	// CheckChainedRetag verifies input->OUT1(T1)->OUT2(T2)->OUT3(T1)
	// ends with digest(OUT1) == digest(OUT3), both differing from OUT2.
	CheckChainedRetag Check = "chained_retag"

	// CheckTagDeletion verifies deleting all tags canonicalizes tagged
	// and untagged derivatives to identical bytes, where policy requires.
	CheckTagDeletion Check = "tag_deletion"

	// CheckRelocation verifies moving a tagged output leaves its digest
	// unchanged.
	CheckRelocation Check = "relocation"

	// CheckReadAccess verifies opening a tagged output for read leaves
	// the digest unchanged even as the OS access timestamp advances.
	CheckReadAccess Check = "read_access"
)

// AllChecks lists every check in canonical execution order.
var AllChecks = []Check{
	CheckRoundTrip,
	CheckSameTags,
	CheckDifferentIdentity,
	CheckDifferentSignature,
	CheckTaggingChangesContent,
	CheckChainedRetag,
	CheckTagDeletion,
	CheckRelocation,
	CheckReadAccess,
}

// DefaultTimeout bounds a scenario's wall clock when the YAML does not.
const DefaultTimeout = 30 * time.Second

// Scenario defines one self-contained verification case.
type Scenario struct {
	// Name uniquely identifies the scenario. It becomes part of every
	// generated output filename, which is what isolates scenarios from
	// each other.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Input is the fixture file path, resolved relative to the scenario
	// file when loaded from disk.
	Input string `yaml:"input"`

	// Identity optionally pins the identity tag value. Empty means a
	// fresh UUID per run; pin it for deterministic golden traces.
	Identity string `yaml:"identity,omitempty"`

	// Signature is the signature tag fixture value.
	Signature string `yaml:"signature"`

	// Checks lists the invariants to exercise, in order.
	Checks []Check `yaml:"checks"`

	// Timeout is the scenario's wall-clock budget (Go duration string,
	// e.g. "30s"). Zero means DefaultTimeout. Exceeding it is a hard
	// failure, not retried.
	Timeout Duration `yaml:"timeout,omitempty"`
}

// Duration is a time.Duration that YAML-decodes from strings like "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// LoadScenario reads, schema-validates, and parses a scenario YAML file.
// The input path is resolved relative to the scenario file's directory.
// Returns an error for malformed YAML, unknown fields (typos), schema
// violations, or a missing input fixture.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	// Resolve the input fixture relative to the scenario file.
	if !filepath.IsAbs(scenario.Input) {
		scenario.Input = filepath.Join(filepath.Dir(path), scenario.Input)
	}
	if _, err := os.Stat(scenario.Input); err != nil {
		return nil, fmt.Errorf("invalid scenario: input fixture not found: %s", scenario.Input)
	}

	return scenario, nil
}

// ParseScenario validates raw scenario YAML against the embedded CUE
// schema and decodes it. Fixture existence is the caller's concern.
func ParseScenario(data []byte) (*Scenario, error) {
	if err := validateAgainstSchema(data); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	// Strict decode catches typos the schema's optional fields would let
	// slide (e.g. "check:" vs "checks:").
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateAgainstSchema unifies the decoded YAML with the embedded CUE
// schema. CUE gives field-level diagnostics (allowed check names, name
// pattern) that a hand-rolled validator would duplicate badly.
func validateAgainstSchema(data []byte) error {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	cuectx := cuecontext.New()
	schema := cuectx.CompileString(scenarioSchemaCUE)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("internal schema error: %w", err)
	}
	schema = schema.LookupPath(cuePathScenario)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("internal schema error: %w", err)
	}

	value := cuectx.Encode(doc)
	if err := value.Err(); err != nil {
		return fmt.Errorf("failed to encode scenario: %w", err)
	}

	unified := schema.Unify(value)
	// Concrete: required fields must be present, not just satisfiable.
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema violation: %s", cueerrors.Details(err, nil))
	}
	return nil
}

// validateScenario checks constraints the schema cannot express.
func validateScenario(s *Scenario) error {
	if s.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}

	seen := make(map[Check]bool, len(s.Checks))
	for i, check := range s.Checks {
		if seen[check] {
			return fmt.Errorf("checks[%d]: duplicate check %q", i, check)
		}
		seen[check] = true
	}
	return nil
}

// EffectiveTimeout returns the scenario budget, defaulted.
func (s *Scenario) EffectiveTimeout() time.Duration {
	if s.Timeout == 0 {
		return DefaultTimeout
	}
	return time.Duration(s.Timeout)
}
