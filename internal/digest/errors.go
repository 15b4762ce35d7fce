package digest

import (
	"errors"
	"fmt"
)

// FileAccessError reports a failure to read file content for digesting.
// It carries the path and operation so the harness can report the literal
// failure site rather than a bare errno.
type FileAccessError struct {
	// Path is the file that could not be accessed.
	Path string

	// Op is the failing operation ("open", "read", "stat").
	Op string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *FileAccessError) Error() string {
	return fmt.Sprintf("file access failed: %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *FileAccessError) Unwrap() error {
	return e.Err
}

// IsFileAccess returns true if the error is a file access failure.
// Uses errors.As to handle wrapped errors.
func IsFileAccess(err error) bool {
	var fe *FileAccessError
	return errors.As(err, &fe)
}
