package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tagproof/internal/exiftool"
	"github.com/roach88/tagproof/internal/fileops"
	"github.com/roach88/tagproof/internal/harness"
	"github.com/roach88/tagproof/internal/store"
	"github.com/roach88/tagproof/internal/testutil"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string // optional run ledger
	Filter   string // scenario filter (glob pattern)
	Tool     string // metadata tool binary
	Fake     bool   // use the in-process deterministic tagger
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	State  string   `json:"state,omitempty"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// RunSummary holds the overall run result.
type RunSummary struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenarios-dir>",
		Short: "Run verification scenarios",
		Long: `Run tagging verification scenarios from a directory.

Each YAML scenario names an input fixture, the tag values to embed, and
the checks to perform. One metadata tool session serves the whole run;
artifacts are cleaned up after every scenario.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, tool unavailable, etc.)

Examples:
  tagproof run ./scenarios
  tagproof run ./scenarios --filter "png_*"
  tagproof run ./scenarios --db ./runs.db --format json
  tagproof run ./scenarios --fake`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "record runs into a SQLite ledger at this path")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.Tool, "tool", exiftool.DefaultBinary, "metadata tool binary")
	cmd.Flags().BoolVar(&opts.Fake, "fake", false, "use the in-process deterministic tagger instead of the external tool")

	return cmd
}

func runScenarios(opts *RunOptions, scenariosDir string, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd)

	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	scenarioFiles, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	if len(scenarioFiles) == 0 {
		if opts.Format == "json" {
			return outputRunJSON(cmd, RunSummary{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	tagger, teardown, err := newTagger(opts.Fake, opts.Tool, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "metadata tool unavailable", err)
	}
	defer teardown()

	runnerOpts := []harness.Option{harness.WithLogger(logger)}
	if opts.Database != "" {
		ledger, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open ledger", err)
		}
		defer func() {
			if closeErr := ledger.Close(); closeErr != nil {
				logger.Error("error closing ledger", "error", closeErr)
			}
		}()
		runnerOpts = append(runnerOpts, harness.WithLedger(ledger))
	}
	runner := harness.NewRunner(tagger, runnerOpts...)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	summary := RunSummary{
		Scenarios: make([]ScenarioResult, 0, len(scenarioFiles)),
		Total:     len(scenarioFiles),
	}
	dirs := make(map[string]bool)

	for _, scenarioFile := range scenarioFiles {
		result := runScenarioFile(ctx, runner, scenarioFile, opts, cmd, dirs)
		summary.Scenarios = append(summary.Scenarios, result)
		if result.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}

	// Session teardown: sweep every touched fixture directory for leftovers.
	for dir := range dirs {
		if err := fileops.CleanArtifacts(dir); err != nil {
			return WrapExitError(ExitCommandError, "session teardown failed", err)
		}
	}

	if opts.Format == "json" {
		if err := outputRunJSON(cmd, summary); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d passed, %d failed, %d total\n",
			summary.Passed, summary.Failed, summary.Total)
	}

	if summary.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", summary.Failed))
	}
	return nil
}

// runScenarioFile loads and executes one scenario file.
func runScenarioFile(ctx context.Context, runner *harness.Runner, scenarioFile string, opts *RunOptions, cmd *cobra.Command, dirs map[string]bool) ScenarioResult {
	w := cmd.OutOrStdout()

	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		if opts.Format != "json" {
			fmt.Fprintf(w, "✗ %s\n", filepath.Base(scenarioFile))
			fmt.Fprintf(w, "  Load error: %v\n", err)
		}
		return ScenarioResult{
			Name:   filepath.Base(scenarioFile),
			Pass:   false,
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}
	dirs[filepath.Dir(scenario.Input)] = true

	result, err := runner.Run(ctx, scenario)
	if err != nil {
		if opts.Format != "json" {
			fmt.Fprintf(w, "✗ %s\n", scenario.Name)
			fmt.Fprintf(w, "  Execution error: %v\n", err)
		}
		return ScenarioResult{
			Name:   scenario.Name,
			Pass:   false,
			Errors: []string{fmt.Sprintf("execution failed: %v", err)},
		}
	}

	if opts.Format != "json" {
		if result.Pass {
			fmt.Fprintf(w, "✓ %s\n", scenario.Name)
		} else {
			fmt.Fprintf(w, "✗ %s\n", scenario.Name)
			for _, msg := range result.Errors {
				for _, line := range strings.Split(msg, "\n") {
					fmt.Fprintf(w, "  %s\n", line)
				}
			}
		}
	}

	return ScenarioResult{
		Name:   scenario.Name,
		State:  string(result.FinalState),
		Pass:   result.Pass,
		Errors: result.Errors,
	}
}

// newTagger builds the tagger a command will use. The fake tagger is an
// in-process stand-in for environments without the external tool.
func newTagger(fake bool, tool string, logger *slog.Logger) (harness.Tagger, func(), error) {
	if fake {
		return &testutil.FakeTagger{}, func() {}, nil
	}

	session, err := exiftool.Open(exiftool.Options{Binary: tool, Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	teardown := func() {
		if closeErr := session.Close(); closeErr != nil {
			logger.Error("error closing tool session", "error", closeErr)
		}
	}
	return session, teardown, nil
}

// newLogger builds the command logger from the global flags. JSON output
// keeps stdout clean, so diagnostics always go to stderr.
func newLogger(opts *RootOptions, cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if !opts.Verbose {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// findScenarioFiles finds all YAML scenario files in a directory.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		// Only process .yaml and .yml files
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		// Apply filter if specified
		if filter != "" {
			base := filepath.Base(path)
			name := strings.TrimSuffix(base, ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

func outputRunJSON(cmd *cobra.Command, summary RunSummary) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(summary)
}
