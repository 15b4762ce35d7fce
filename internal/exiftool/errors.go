package exiftool

import (
	"errors"
	"fmt"
	"strings"
)

// ToolError reports a failed external-tool invocation: non-zero outcome,
// an Error line in the tool's output, or output the wrapper could not
// parse. Callers must not assume the output file was created when a write
// fails with ToolError.
type ToolError struct {
	// Op is the logical operation ("write", "read", "delete", "version").
	Op string

	// Args are the tool arguments for the failing command.
	Args []string

	// Output is the tool's diagnostic output (stderr, or the offending
	// stdout fragment for parse failures).
	Output string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "exiftool %s failed", e.Op)
	if len(e.Args) > 0 {
		fmt.Fprintf(&buf, " (args: %s)", strings.Join(e.Args, " "))
	}
	if e.Output != "" {
		fmt.Fprintf(&buf, ": %s", strings.TrimSpace(e.Output))
	}
	if e.Err != nil {
		fmt.Fprintf(&buf, ": %v", e.Err)
	}
	return buf.String()
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *ToolError) Unwrap() error {
	return e.Err
}

// IsToolError returns true if the error is an external-tool failure.
// Uses errors.As to handle wrapped errors.
func IsToolError(err error) bool {
	var te *ToolError
	return errors.As(err, &te)
}

// ErrSessionClosed is returned when a command is issued after Close.
var ErrSessionClosed = errors.New("exiftool session is closed")
