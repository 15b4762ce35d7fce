package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanCommandRemovesArtifacts(t *testing.T) {
	dir := t.TempDir()
	fixture := filepath.Join(dir, "SAMPLE_PNG.png")
	artifact := filepath.Join(dir, "SAMPLE_PNG_png_same_tags_OUTst1.png")
	require.NoError(t, os.WriteFile(fixture, []byte("pixels"), 0644))
	require.NoError(t, os.WriteFile(artifact, []byte("tagged"), 0644))
	// A tool backup of the fixture must be restored, not deleted.
	require.NoError(t, os.WriteFile(fixture+"_original", []byte("original pixels"), 0644))

	buf := &bytes.Buffer{}
	cmd := NewCleanCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{dir})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Removed")

	_, err := os.Stat(artifact)
	assert.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(fixture)
	require.NoError(t, err)
	assert.Equal(t, []byte("original pixels"), data)
}

func TestCleanCommandDryRun(t *testing.T) {
	dir := t.TempDir()
	artifact := filepath.Join(dir, "SAMPLE_PNG_OUT1.png")
	require.NoError(t, os.WriteFile(artifact, []byte("tagged"), 0644))

	buf := &bytes.Buffer{}
	cmd := NewCleanCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{dir, "--dry-run"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Would remove")

	_, err := os.Stat(artifact)
	require.NoError(t, err)
}

func TestCleanCommandEmptyDir(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCleanCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{t.TempDir()})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "No artifacts")
}

func TestCleanCommandMissingDir(t *testing.T) {
	cmd := NewCleanCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"/nonexistent/fixtures"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
