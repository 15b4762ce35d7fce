package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tagproof/internal/store"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	Database string
	Limit    int
}

// RunReport is the JSON shape of one recorded run.
type RunReport struct {
	ID         string        `json:"id"`
	Scenario   string        `json:"scenario"`
	Pass       bool          `json:"pass"`
	FinalState string        `json:"final_state"`
	RecordedAt string        `json:"recorded_at"`
	Errors     string        `json:"errors,omitempty"`
	Events     []EventReport `json:"events,omitempty"`
}

// EventReport is the JSON shape of one trace event.
type EventReport struct {
	Seq    int64  `json:"seq"`
	Kind   string `json:"kind"`
	Check  string `json:"check,omitempty"`
	Path   string `json:"path,omitempty"`
	Digest string `json:"digest,omitempty"`
	Note   string `json:"note,omitempty"`
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report [run-id]",
		Short: "Report recorded verification runs",
		Long: `Report verification runs recorded in a ledger.

Without arguments, lists recorded runs newest first. With a run ID,
prints that run's full trace.

Examples:
  tagproof report --db ./runs.db
  tagproof report --db ./runs.db --limit 10
  tagproof report --db ./runs.db 4c0b19af... --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runReport(opts, runID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite ledger (required)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs to list (0 = all)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runReport(opts *ReportOptions, runID string, cmd *cobra.Command) error {
	if _, err := os.Stat(opts.Database); err != nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("ledger not found: %s", opts.Database))
	}

	ledger, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open ledger", err)
	}
	defer ledger.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if runID != "" {
		return reportRun(ctx, ledger, runID, opts, cmd)
	}
	return reportList(ctx, ledger, opts, cmd)
}

func reportList(ctx context.Context, ledger *store.Ledger, opts *ReportOptions, cmd *cobra.Command) error {
	runs, err := ledger.ListRuns(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	if opts.Format == "json" {
		reports := make([]RunReport, 0, len(runs))
		for _, run := range runs {
			reports = append(reports, toRunReport(run, false))
		}
		return outputReportJSON(cmd, reports)
	}

	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, run := range runs {
		status := "✓"
		if !run.Pass {
			status = "✗"
		}
		fmt.Fprintf(w, "%s %s  %s  %s  %s\n",
			status, run.RecordedAt.Format(time.RFC3339), run.Scenario, run.FinalState, run.ID)
	}
	return nil
}

func reportRun(ctx context.Context, ledger *store.Ledger, runID string, opts *ReportOptions, cmd *cobra.Command) error {
	run, err := ledger.GetRun(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load run", err)
	}

	if opts.Format == "json" {
		return outputReportJSON(cmd, toRunReport(*run, true))
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run %s\n", run.ID)
	fmt.Fprintf(w, "  scenario: %s\n", run.Scenario)
	fmt.Fprintf(w, "  pass:     %t\n", run.Pass)
	fmt.Fprintf(w, "  state:    %s\n", run.FinalState)
	fmt.Fprintf(w, "  recorded: %s\n", run.RecordedAt.Format(time.RFC3339))
	if run.Errors != "" {
		fmt.Fprintf(w, "  errors:   %s\n", run.Errors)
	}
	for _, event := range run.Events {
		fmt.Fprintf(w, "  [%d] %-6s %-24s %s", event.Seq, event.Kind, event.Check, event.Path)
		if event.Digest != "" {
			fmt.Fprintf(w, " %s", event.Digest)
		}
		if event.Note != "" {
			fmt.Fprintf(w, " (%s)", event.Note)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func toRunReport(run store.RunRecord, withEvents bool) RunReport {
	report := RunReport{
		ID:         run.ID,
		Scenario:   run.Scenario,
		Pass:       run.Pass,
		FinalState: run.FinalState,
		RecordedAt: run.RecordedAt.Format(time.RFC3339),
		Errors:     run.Errors,
	}
	if withEvents {
		for _, event := range run.Events {
			report.Events = append(report.Events, EventReport{
				Seq:    event.Seq,
				Kind:   event.Kind,
				Check:  event.Check,
				Path:   event.Path,
				Digest: event.Digest,
				Note:   event.Note,
			})
		}
	}
	return report
}

func outputReportJSON(cmd *cobra.Command, data interface{}) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
