package exiftool

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newSession opens a session against the real tool, skipping the test
// when the binary is not installed.
func newSession(t *testing.T) *Session {
	t.Helper()
	if _, err := exec.LookPath(DefaultBinary); err != nil {
		t.Skipf("%s not installed, test skipped", DefaultBinary)
	}
	s, err := Open(Options{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// writePNGFixture encodes a tiny valid PNG into dir and returns its path.
func writePNGFixture(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func TestOpen_MissingBinary(t *testing.T) {
	_, err := Open(Options{Binary: "definitely-not-a-real-tool-4711"})
	require.Error(t, err)
	assert.True(t, IsToolError(err))
}

func TestSession_CloseBeforeStart(t *testing.T) {
	if _, err := exec.LookPath(DefaultBinary); err != nil {
		t.Skipf("%s not installed, test skipped", DefaultBinary)
	}
	s, err := Open(Options{})
	require.NoError(t, err)

	// Never started: Close must be a no-op, and twice is fine.
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Version(context.Background())
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestSession_VersionCheck(t *testing.T) {
	s := newSession(t)

	ver, err := s.Version(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, ver)
}

func TestSession_VersionTooOld(t *testing.T) {
	if _, err := exec.LookPath(DefaultBinary); err != nil {
		t.Skipf("%s not installed, test skipped", DefaultBinary)
	}
	s, err := Open(Options{MinVersion: 9999})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Version(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "older than required")
}

func TestSession_WriteReadRoundTrip(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()
	dir := t.TempDir()

	input := writePNGFixture(t, dir, "SAMPLE_PNG.png")
	output := filepath.Join(dir, "SAMPLE_PNG_OUT1.png")

	tags := TagSet{Identity: "11111111-2222-3333-4444-555555555555", Signature: "dummySig"}
	require.NoError(t, s.Write(ctx, input, tags, output))

	// Input untouched.
	inputMeta, err := s.Read(ctx, input)
	require.NoError(t, err)
	_, ok := inputMeta.Tag(FieldIdentity)
	assert.False(t, ok)

	// Output carries both fields verbatim.
	outputMeta, err := s.Read(ctx, output)
	require.NoError(t, err)
	assert.True(t, tags.Equal(outputMeta.Tags))
	assert.False(t, outputMeta.AccessTime.IsZero())
}

func TestSession_WriteReplacesExistingOutput(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()
	dir := t.TempDir()

	input := writePNGFixture(t, dir, "SAMPLE_PNG.png")
	output := filepath.Join(dir, "SAMPLE_PNG_OUT1.png")
	require.NoError(t, os.WriteFile(output, []byte("stale"), 0644))

	require.NoError(t, s.Write(ctx, input, TagSet{Identity: "id-1"}, output))

	meta, err := s.Read(ctx, output)
	require.NoError(t, err)
	assert.Equal(t, "id-1", meta.Tags.Identity)
}

func TestSession_WriteMissingInput(t *testing.T) {
	s := newSession(t)
	dir := t.TempDir()

	err := s.Write(context.Background(),
		filepath.Join(dir, "missing.png"),
		TagSet{Identity: "id-1"},
		filepath.Join(dir, "missing_OUT1.png"))
	require.Error(t, err)
	assert.True(t, IsToolError(err))
}

func TestSession_DeleteAllCreatesBackup(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()
	dir := t.TempDir()

	input := writePNGFixture(t, dir, "SAMPLE_PNG.png")
	tagged := filepath.Join(dir, "SAMPLE_PNG_OUT1.png")
	require.NoError(t, s.Write(ctx, input, TagSet{Identity: "id-1", Signature: "dummySig"}, tagged))

	require.NoError(t, s.DeleteAll(ctx, tagged))

	// Tool preserves the pre-deletion bytes as a sibling backup.
	_, err := os.Stat(BackupPath(tagged))
	require.NoError(t, err)

	meta, err := s.Read(ctx, tagged)
	require.NoError(t, err)
	_, ok := meta.Tag(FieldIdentity)
	assert.False(t, ok)
}
