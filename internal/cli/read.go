package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/tagproof/internal/digest"
	"github.com/roach88/tagproof/internal/exiftool"
	"github.com/roach88/tagproof/internal/media"
)

// ReadOptions holds flags for the read command.
type ReadOptions struct {
	*RootOptions
	Tool string
	Fake bool
	All  bool
}

// ReadResult is the payload reported for a file's tags.
type ReadResult struct {
	Path      string            `json:"path"`
	Format    string            `json:"format"`
	Identity  string            `json:"identity,omitempty"`
	Signature string            `json:"signature,omitempty"`
	Digest    string            `json:"digest"`
	Raw       map[string]string `json:"raw,omitempty"`
}

// NewReadCommand creates the read command.
func NewReadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "read <file>",
		Short: "Read the tags embedded in a file",
		Long: `Read the identity and signature tags embedded in a file, plus its
content digest. Reading never modifies the file's bytes.

Examples:
  tagproof read photo_tagged.jpg
  tagproof read photo_tagged.jpg --all --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRead(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Tool, "tool", exiftool.DefaultBinary, "metadata tool binary")
	cmd.Flags().BoolVar(&opts.Fake, "fake", false, "use the in-process deterministic tagger instead of the external tool")
	cmd.Flags().BoolVar(&opts.All, "all", false, "include every raw tag the tool reports")

	return cmd
}

func runRead(opts *ReadOptions, path string, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd)

	mf, err := media.Stat(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot read file", err)
	}

	tagger, teardown, err := newTagger(opts.Fake, opts.Tool, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "metadata tool unavailable", err)
	}
	defer teardown()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	meta, err := tagger.Read(ctx, path)
	if err != nil {
		return WrapExitError(ExitFailure, "tag read failed", err)
	}

	d, err := digest.File(path)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to digest file", err)
	}

	result := ReadResult{
		Path:      path,
		Format:    string(mf.Format),
		Identity:  meta.Tags.Identity,
		Signature: meta.Tags.Signature,
		Digest:    string(d),
	}
	if opts.All {
		result.Raw = meta.Raw
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s (%s)\n", path, mf.Format)
	if meta.Tags.Empty() {
		fmt.Fprintln(w, "  no tags")
	} else {
		fmt.Fprintf(w, "  identity:  %s\n", meta.Tags.Identity)
		fmt.Fprintf(w, "  signature: %s\n", meta.Tags.Signature)
	}
	fmt.Fprintf(w, "  sha512:    %s\n", d)
	if opts.All {
		names := make([]string, 0, len(meta.Raw))
		for name := range meta.Raw {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %s: %s\n", name, meta.Raw[name])
		}
	}
	return nil
}
