package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/tagproof/internal/digest"
	"github.com/roach88/tagproof/internal/exiftool"
	"github.com/roach88/tagproof/internal/media"
)

// TagOptions holds flags for the tag command.
type TagOptions struct {
	*RootOptions
	Identity  string
	Signature string
	Tool      string
	Fake      bool
}

// TagResult is the payload reported after a one-shot tag write.
type TagResult struct {
	Input     string `json:"input"`
	Output    string `json:"output"`
	Format    string `json:"format"`
	Identity  string `json:"identity"`
	Signature string `json:"signature"`
	Digest    string `json:"digest"`
}

// NewTagCommand creates the tag command.
func NewTagCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TagOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "tag <input> <output>",
		Short: "Write identity and signature tags into a file",
		Long: `Write identity and signature tags into a copy of a file.

The input is never modified; the tagged bytes land at the output path,
replacing any file already there. Prints the output's content digest.

Examples:
  tagproof tag photo.jpg photo_tagged.jpg --signature deadbeef
  tagproof tag doc.pdf out.pdf --identity 4c0b... --signature deadbeef --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTag(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Identity, "identity", "", "identity tag value (default: fresh UUID)")
	cmd.Flags().StringVar(&opts.Signature, "signature", "", "signature tag value (required)")
	cmd.Flags().StringVar(&opts.Tool, "tool", exiftool.DefaultBinary, "metadata tool binary")
	cmd.Flags().BoolVar(&opts.Fake, "fake", false, "use the in-process deterministic tagger instead of the external tool")
	_ = cmd.MarkFlagRequired("signature")

	return cmd
}

func runTag(opts *TagOptions, inputPath, outputPath string, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd)

	mf, err := media.Stat(inputPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot tag input", err)
	}

	identity := opts.Identity
	if identity == "" {
		identity = uuid.NewString()
	}
	tags := exiftool.TagSet{Identity: identity, Signature: opts.Signature}.Normalize()

	tagger, teardown, err := newTagger(opts.Fake, opts.Tool, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "metadata tool unavailable", err)
	}
	defer teardown()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := tagger.Write(ctx, inputPath, tags, outputPath); err != nil {
		return WrapExitError(ExitFailure, "tag write failed", err)
	}

	d, err := digest.File(outputPath)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to digest output", err)
	}

	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}
	if opts.Format == "json" {
		return formatter.Success(TagResult{
			Input:     inputPath,
			Output:    outputPath,
			Format:    string(mf.Format),
			Identity:  identity,
			Signature: opts.Signature,
			Digest:    string(d),
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Tagged %s -> %s\n", inputPath, outputPath)
	fmt.Fprintf(cmd.OutOrStdout(), "  identity:  %s\n", identity)
	fmt.Fprintf(cmd.OutOrStdout(), "  signature: %s\n", opts.Signature)
	fmt.Fprintf(cmd.OutOrStdout(), "  sha512:    %s\n", d)
	return nil
}
