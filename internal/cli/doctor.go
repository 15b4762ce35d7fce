package cli

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/roach88/tagproof/internal/exiftool"
)

// DoctorOptions holds flags for the doctor command.
type DoctorOptions struct {
	*RootOptions
	Tool string
}

// DoctorReport describes the health of the tool environment.
type DoctorReport struct {
	Binary  string `json:"binary"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
	OK      bool   `json:"ok"`
	Problem string `json:"problem,omitempty"`
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DoctorOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the metadata tool environment",
		Long: `Check that the external metadata tool is installed and usable.

Locates the binary, starts a session, and queries its version. A
failing doctor means run/tag/read will fail too (unless using --fake).

Examples:
  tagproof doctor
  tagproof doctor --tool /opt/exiftool/exiftool --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Tool, "tool", exiftool.DefaultBinary, "metadata tool binary")

	return cmd
}

func runDoctor(opts *DoctorOptions, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd)
	report := DoctorReport{Binary: opts.Tool}

	path, err := exec.LookPath(opts.Tool)
	if err != nil {
		report.Problem = fmt.Sprintf("binary not found: %v", err)
		return outputDoctor(opts, cmd, report)
	}
	report.Path = path

	session, err := exiftool.Open(exiftool.Options{Binary: opts.Tool, Logger: logger})
	if err != nil {
		report.Problem = fmt.Sprintf("failed to open session: %v", err)
		return outputDoctor(opts, cmd, report)
	}
	defer session.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	version, err := session.Version(ctx)
	if err != nil {
		report.Problem = fmt.Sprintf("session unusable: %v", err)
		return outputDoctor(opts, cmd, report)
	}
	report.Version = version
	report.OK = true

	return outputDoctor(opts, cmd, report)
}

func outputDoctor(opts *DoctorOptions, cmd *cobra.Command, report DoctorReport) error {
	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
		if err := formatter.Success(report); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "binary:  %s\n", report.Binary)
		if report.Path != "" {
			fmt.Fprintf(w, "path:    %s\n", report.Path)
		}
		if report.Version != "" {
			fmt.Fprintf(w, "version: %s (minimum %.1f)\n", report.Version, exiftool.DefaultMinVersion)
		}
		if report.OK {
			fmt.Fprintln(w, "ok")
		} else {
			fmt.Fprintf(w, "problem: %s\n", report.Problem)
		}
	}

	if !report.OK {
		return NewExitError(ExitCommandError, "metadata tool environment is not usable")
	}
	return nil
}
