package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNGFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "SAMPLE_PNG.png")
	content := append(append([]byte(nil), pngMagic...), []byte("pixels")...)
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

func TestTagCommandMissingSignature(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewTagCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"in.png", "out.png", "--fake"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signature")
}

func TestTagCommandWritesOutput(t *testing.T) {
	input := writePNGFixture(t)
	output := filepath.Join(filepath.Dir(input), "SAMPLE_PNG_OUT1.png")

	buf := &bytes.Buffer{}
	cmd := NewTagCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{input, output, "--fake", "--signature", "dummySig"})

	require.NoError(t, cmd.Execute())

	_, err := os.Stat(output)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "signature: dummySig")
	assert.Contains(t, buf.String(), "sha512:")

	// The input fixture is untouched.
	data, err := os.ReadFile(input)
	require.NoError(t, err)
	assert.Equal(t, append(append([]byte(nil), pngMagic...), []byte("pixels")...), data)
}

func TestTagCommandJSON(t *testing.T) {
	input := writePNGFixture(t)
	output := filepath.Join(filepath.Dir(input), "SAMPLE_PNG_OUT1.png")

	buf := &bytes.Buffer{}
	cmd := NewTagCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{input, output, "--fake",
		"--identity", "11111111-2222-3333-4444-555555555555",
		"--signature", "dummySig"})

	require.NoError(t, cmd.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", data["identity"])
	assert.Equal(t, "png", data["format"])
	assert.Len(t, data["digest"], 128)
}

func TestTagCommandMissingInput(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewTagCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "gone.png"), "out.png", "--fake", "--signature", "s"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
