package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tagproof/internal/fileops"
)

// CleanOptions holds flags for the clean command.
type CleanOptions struct {
	*RootOptions
	DryRun bool
}

// CleanResult is the payload reported after sweeping a directory.
type CleanResult struct {
	Dir       string   `json:"dir"`
	Artifacts []string `json:"artifacts"`
	Removed   bool     `json:"removed"`
}

// NewCleanCommand creates the clean command.
func NewCleanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CleanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "clean <dir>",
		Short: "Remove leftover verification artifacts",
		Long: `Remove leftover verification artifacts from a fixture directory.

Artifacts are the generated output files (names containing "OUT") and
the backup files the metadata tool leaves behind. Tool backups of the
original fixtures are restored, not deleted, so an interrupted run
never loses fixture bytes.

Examples:
  tagproof clean ./fixtures
  tagproof clean ./fixtures --dry-run`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "list artifacts without removing them")

	return cmd
}

func runClean(opts *CleanOptions, dir string, cmd *cobra.Command) error {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("directory not found: %s", dir))
	}

	artifacts, err := fileops.ListArtifacts(dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list artifacts", err)
	}

	if !opts.DryRun {
		if err := fileops.CleanArtifacts(dir); err != nil {
			return WrapExitError(ExitFailure, "cleanup failed", err)
		}
	}

	result := CleanResult{Dir: dir, Artifacts: artifacts, Removed: !opts.DryRun}
	if result.Artifacts == nil {
		result.Artifacts = []string{}
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	if len(result.Artifacts) == 0 {
		fmt.Fprintf(w, "No artifacts in %s\n", dir)
		return nil
	}
	verb := "Removed"
	if opts.DryRun {
		verb = "Would remove"
	}
	for _, artifact := range result.Artifacts {
		fmt.Fprintf(w, "%s %s\n", verb, artifact)
	}
	return nil
}
