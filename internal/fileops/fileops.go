// Package fileops provides the scoped filesystem operations the harness
// uses between checksum assertions: relocation, deletion, and cleanup of
// generated artifacts.
//
// None of these operations transform content; relocating a file must leave
// its content digest byte-identical. The artifact naming convention
// (output names containing "OUT") is what isolates scenarios from each
// other, so cleanup is driven by that convention rather than bookkeeping.
package fileops

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
)

// artifactPattern matches generated output filenames. Every TagWriter
// output follows the convention of embedding "OUT" in the name; fixture
// inputs never do.
var artifactPattern = regexp.MustCompile(`OUT`)

// backupSuffix is appended by the external tool when it edits in place.
const backupSuffix = "_original"

// Move relocates a file. Falls back to copy+delete when rename crosses
// filesystems. Content bytes are never transformed.
func Move(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}

	// EXDEV and friends: copy then delete.
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("move %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("move %s -> %s: %w", src, dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("move %s -> %s: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("move %s -> %s: %w", src, dst, err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("move %s: remove source: %w", src, err)
	}
	return nil
}

// Delete removes a file. Missing files are not an error; cleanup paths
// call Delete unconditionally.
func Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// IsArtifact reports whether a filename follows the generated-output
// naming convention.
func IsArtifact(name string) bool {
	return artifactPattern.MatchString(filepath.Base(name))
}

// ListArtifacts returns the paths in dir whose names follow the
// generated-output naming convention, including tool backups of
// artifacts. Non-recursive: scenarios write outputs next to their inputs.
func ListArtifacts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	var artifacts []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if IsArtifact(entry.Name()) {
			artifacts = append(artifacts, filepath.Join(dir, entry.Name()))
		}
	}
	return artifacts, nil
}

// RestoreBackup undoes the external tool's in-place edit side effect:
// if "<path>_original" exists it is moved back over path. No-op when no
// backup exists.
func RestoreBackup(path string) error {
	backup := path + backupSuffix
	if _, err := os.Stat(backup); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("restore %s: %w", path, err)
	}
	if err := Move(backup, path); err != nil {
		return fmt.Errorf("restore %s: %w", path, err)
	}
	return nil
}

// CleanArtifacts restores tool backups for every file in dir, then
// deletes all generated artifacts. Runs in teardown even after scenario
// failures so shared fixtures are repaired before the next session.
func CleanArtifacts(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("clean %s: %w", dir, err)
	}

	// Restore first: a backup of a fixture must win over the edited copy.
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if len(name) > len(backupSuffix) && name[len(name)-len(backupSuffix):] == backupSuffix {
			original := filepath.Join(dir, name[:len(name)-len(backupSuffix)])
			if err := RestoreBackup(original); err != nil {
				return err
			}
		}
	}

	artifacts, err := ListArtifacts(dir)
	if err != nil {
		return err
	}
	for _, artifact := range artifacts {
		if err := Delete(artifact); err != nil {
			return err
		}
	}
	return nil
}
