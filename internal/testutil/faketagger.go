package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/roach88/tagproof/internal/digest"
	"github.com/roach88/tagproof/internal/exiftool"
)

// tagBlockMarker introduces the fake's appended metadata block.
// Anything after the marker is the canonical JSON of the tag set.
var tagBlockMarker = []byte("\n%%TAGBLOCK%%")

// FakeTagger is an in-process stand-in for the external metadata tool.
//
// Its write operation is a pure function of (input bytes, tag values): it
// strips any existing tag block and appends a canonical block for the new
// tags. That gives the fake exactly the invariants the harness verifies
// against the real tool:
//
//   - identical tags produce byte-identical outputs (determinism),
//   - different tags produce different outputs,
//   - retagging with earlier tags returns to the earlier byte layout,
//   - deleting all tags canonicalizes to the never-tagged byte layout,
//     leaving a "<path>_original" backup like the real tool does.
//
// Tests use it so scenario logic can be exercised without the binary.
type FakeTagger struct {
	// WriteErr, ReadErr, DeleteErr force the corresponding operation to
	// fail, for failure-path tests.
	WriteErr  error
	ReadErr   error
	DeleteErr error
}

// Write emits input's content with the tag block replaced at outputPath.
// The input file is never modified. An empty tag set appends no block.
func (f *FakeTagger) Write(ctx context.Context, inputPath string, tags exiftool.TagSet, outputPath string) error {
	if f.WriteErr != nil {
		return f.WriteErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return &exiftool.ToolError{Op: "write", Output: inputPath, Err: err}
	}

	base, _ := splitTagBlock(data)
	out := append([]byte(nil), base...)
	if !tags.Empty() {
		block, err := marshalTagBlock(tags.Normalize())
		if err != nil {
			return &exiftool.ToolError{Op: "write", Err: err}
		}
		out = append(out, block...)
	}

	if err := os.WriteFile(outputPath, out, 0644); err != nil {
		return &exiftool.ToolError{Op: "write", Output: outputPath, Err: err}
	}
	return nil
}

// Read parses the tag block (if any) and reports the file's tags.
// AccessTime reflects the read itself, mirroring the OS-level side effect
// the harness asserts against.
func (f *FakeTagger) Read(ctx context.Context, path string) (*exiftool.Metadata, error) {
	if f.ReadErr != nil {
		return nil, f.ReadErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &exiftool.ToolError{Op: "read", Output: path, Err: err}
	}

	meta := &exiftool.Metadata{
		Raw:        map[string]string{},
		AccessTime: time.Now(),
	}
	if _, tags := splitTagBlock(data); tags != nil {
		meta.Tags = *tags
		if tags.Identity != "" {
			meta.Raw[exiftool.FieldIdentity] = tags.Identity
		}
		if tags.Signature != "" {
			meta.Raw[exiftool.FieldSignature] = tags.Signature
		}
	}
	return meta, nil
}

// DeleteAll strips the tag block in place, preserving the pre-deletion
// bytes as a "<path>_original" sibling exactly like the real tool.
func (f *FakeTagger) DeleteAll(ctx context.Context, path string) error {
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return &exiftool.ToolError{Op: "delete", Output: path, Err: err}
	}

	if err := os.Rename(path, exiftool.BackupPath(path)); err != nil {
		return &exiftool.ToolError{Op: "delete", Output: path, Err: err}
	}

	base, _ := splitTagBlock(data)
	if err := os.WriteFile(path, base, 0644); err != nil {
		return &exiftool.ToolError{Op: "delete", Output: path, Err: err}
	}
	return nil
}

// marshalTagBlock renders the canonical appended block for a tag set.
func marshalTagBlock(tags exiftool.TagSet) ([]byte, error) {
	payload, err := digest.MarshalCanonical(map[string]any{
		"identity":  tags.Identity,
		"signature": tags.Signature,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal tag block: %w", err)
	}
	return append(append([]byte(nil), tagBlockMarker...), payload...), nil
}

// splitTagBlock separates content bytes from a trailing tag block.
// Returns (content, nil) when no block is present.
func splitTagBlock(data []byte) ([]byte, *exiftool.TagSet) {
	idx := bytes.LastIndex(data, tagBlockMarker)
	if idx < 0 {
		return data, nil
	}

	payload := data[idx+len(tagBlockMarker):]
	tags := &exiftool.TagSet{}
	var parsed struct {
		Identity  string `json:"identity"`
		Signature string `json:"signature"`
	}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		// Not a block we wrote; treat the whole file as content.
		return data, nil
	}
	tags.Identity = parsed.Identity
	tags.Signature = parsed.Signature
	return data[:idx], tags
}
