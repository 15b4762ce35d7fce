package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCommandUntaggedFile(t *testing.T) {
	input := writePNGFixture(t)

	buf := &bytes.Buffer{}
	cmd := NewReadCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{input, "--fake"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "no tags")
	assert.Contains(t, buf.String(), "sha512:")
}

func TestReadCommandRoundTrip(t *testing.T) {
	input := writePNGFixture(t)
	tagged := filepath.Join(filepath.Dir(input), "SAMPLE_PNG_OUT1.png")

	tagCmd := NewTagCommand(&RootOptions{Format: "text"})
	tagCmd.SetOut(&bytes.Buffer{})
	tagCmd.SetErr(&bytes.Buffer{})
	tagCmd.SetArgs([]string{input, tagged, "--fake",
		"--identity", "11111111-2222-3333-4444-555555555555",
		"--signature", "dummySig"})
	require.NoError(t, tagCmd.Execute())

	buf := &bytes.Buffer{}
	readCmd := NewReadCommand(&RootOptions{Format: "json"})
	readCmd.SetOut(buf)
	readCmd.SetErr(&bytes.Buffer{})
	readCmd.SetArgs([]string{tagged, "--fake"})
	require.NoError(t, readCmd.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", data["identity"])
	assert.Equal(t, "dummySig", data["signature"])
}

func TestReadCommandMissingFile(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewReadCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "gone.png"), "--fake"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
