package fileops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tagproof/internal/digest"
)

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

func TestMove_PreservesDigest(t *testing.T) {
	dir := t.TempDir()
	content := []byte("pixel data that must survive relocation")
	src := writeFile(t, dir, "SAMPLE_PNG_OUT1.png", content)

	before, err := digest.File(src)
	require.NoError(t, err)

	dst := filepath.Join(dir, "renamed_OUT1.png")
	require.NoError(t, Move(src, dst))

	after, err := digest.File(dst)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))
}

func TestMove_IntoSubdirectory(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "doc_OUT1.pdf", []byte("%PDF-1.4"))
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0755))

	dst := filepath.Join(sub, "doc_OUT1.pdf")
	require.NoError(t, Move(src, dst))

	_, err := os.Stat(dst)
	require.NoError(t, err)
}

func TestDelete(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "x_OUT1.png", []byte("x"))

	require.NoError(t, Delete(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Deleting again is not an error.
	require.NoError(t, Delete(path))
}

func TestIsArtifact(t *testing.T) {
	assert.True(t, IsArtifact("SAMPLE_PNG_OUT1.png"))
	assert.True(t, IsArtifact("/some/dir/chain_OUT3.jpg"))
	assert.True(t, IsArtifact("SAMPLE_PNG_OUT1.png_original"))
	assert.False(t, IsArtifact("SAMPLE_PNG.png"))
	assert.False(t, IsArtifact("input.pdf"))
}

func TestListArtifacts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "SAMPLE_PNG.png", []byte("input"))
	out1 := writeFile(t, dir, "SAMPLE_PNG_OUT1.png", []byte("a"))
	out2 := writeFile(t, dir, "SAMPLE_PNG_OUT2.png", []byte("b"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "OUT_dir"), 0755))

	artifacts, err := ListArtifacts(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{out1, out2}, artifacts)
}

func TestRestoreBackup(t *testing.T) {
	dir := t.TempDir()
	original := []byte("original bytes")
	edited := []byte("edited in place")

	path := writeFile(t, dir, "SAMPLE_PNG.png", edited)
	writeFile(t, dir, "SAMPLE_PNG.png_original", original)

	require.NoError(t, RestoreBackup(path))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, got)

	_, err = os.Stat(path + "_original")
	assert.True(t, os.IsNotExist(err))
}

func TestRestoreBackup_NoBackup(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "SAMPLE_PNG.png", []byte("untouched"))

	require.NoError(t, RestoreBackup(path))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("untouched"), got)
}

func TestCleanArtifacts(t *testing.T) {
	dir := t.TempDir()

	// Fixture input, edited in place with a backup left behind.
	fixture := writeFile(t, dir, "SAMPLE_PNG.png", []byte("stripped"))
	writeFile(t, dir, "SAMPLE_PNG.png_original", []byte("pristine"))

	// Generated artifacts.
	writeFile(t, dir, "SAMPLE_PNG_OUT1.png", []byte("a"))
	writeFile(t, dir, "SAMPLE_PNG_OUT2.png", []byte("b"))

	require.NoError(t, CleanArtifacts(dir))

	// Fixture restored from backup.
	got, err := os.ReadFile(fixture)
	require.NoError(t, err)
	assert.Equal(t, []byte("pristine"), got)

	// All artifacts gone, fixture remains.
	artifacts, err := ListArtifacts(dir)
	require.NoError(t, err)
	assert.Empty(t, artifacts)
	_, err = os.Stat(fixture)
	require.NoError(t, err)
}
