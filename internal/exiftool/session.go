package exiftool

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultBinary is the tool binary resolved on PATH when Options.Binary
// is empty.
const DefaultBinary = "exiftool"

// DefaultMinVersion is the oldest tool version the harness accepts.
// Older releases lack the -api Compact write options the writer relies on.
const DefaultMinVersion = 12.0

// readySentinel terminates each command's output in -stay_open mode.
const readySentinel = "{ready}"

// accessTimeLayout matches the -d strftime format passed to read commands.
const accessTimeLayout = "2006-01-02T15:04:05-0700"

// Options configures a Session.
type Options struct {
	// Binary is the tool executable; resolved on PATH when not absolute.
	// Defaults to DefaultBinary.
	Binary string

	// MinVersion is the minimum accepted tool version.
	// Defaults to DefaultMinVersion.
	MinVersion float64

	// Logger receives session lifecycle and command logs.
	// Defaults to a discard logger.
	Logger *slog.Logger
}

// Session is the process-scoped handle to the external metadata tool.
//
// One Session serves a whole test session: the tool process is started
// lazily on first use (in -stay_open mode, so repeated invocations reuse
// one process), version-checked when started, and terminated exactly once
// by Close. Sessions are safe for sequential use; commands serialize on an
// internal mutex because the tool reads one command at a time.
type Session struct {
	binary     string
	minVersion float64
	logger     *slog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  *bufio.Reader
	stderr  *stderrBuffer
	version string
	started bool
	closed  bool

	closeOnce sync.Once
	closeErr  error
}

// Open resolves the tool binary and returns an unstarted Session.
// The process itself is not launched until the first command; a missing
// binary is reported here so sessions fail fast at setup.
func Open(opts Options) (*Session, error) {
	binary := opts.Binary
	if binary == "" {
		binary = DefaultBinary
	}
	resolved, err := exec.LookPath(binary)
	if err != nil {
		return nil, &ToolError{Op: "lookup", Output: binary, Err: err}
	}

	minVersion := opts.MinVersion
	if minVersion == 0 {
		minVersion = DefaultMinVersion
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Session{
		binary:     resolved,
		minVersion: minVersion,
		logger:     logger,
	}, nil
}

// Version returns the tool version string, starting the process if needed.
func (s *Session) Version(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureStarted(ctx); err != nil {
		return "", err
	}
	return s.version, nil
}

// Write embeds the tag set into inputPath's content and emits the result
// at outputPath. inputPath is never modified. A pre-existing outputPath is
// replaced. Compact encoding options keep the write limited to the two
// custom XMP fields so the output layout is a deterministic function of
// (input bytes, tag values).
//
// On ToolError the caller must not assume outputPath was created.
func (s *Session) Write(ctx context.Context, inputPath string, tags TagSet, outputPath string) error {
	if _, err := os.Stat(inputPath); err != nil {
		return &ToolError{Op: "write", Output: inputPath, Err: err}
	}
	// The tool refuses -o to an existing file; replacement is our contract.
	if err := os.Remove(outputPath); err != nil && !os.IsNotExist(err) {
		return &ToolError{Op: "write", Output: outputPath, Err: err}
	}

	tags = tags.Normalize()
	args := []string{"-api", "Compact=NoPadding,Shorthand"}
	if tags.Identity != "" {
		args = append(args, "-XMP-dc:"+FieldIdentity+"="+tags.Identity)
	}
	if tags.Signature != "" {
		args = append(args, "-XMP-xmpRights:"+FieldSignature+"="+tags.Signature)
	}
	args = append(args, "-o", outputPath, inputPath)

	s.mu.Lock()
	_, err := s.command(ctx, "write", args)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if _, err := os.Stat(outputPath); err != nil {
		return &ToolError{Op: "write", Args: args, Output: "tool reported success but output is missing", Err: err}
	}

	s.logger.Info("tags written", "input", inputPath, "output", outputPath)
	return nil
}

// Read returns all embedded tags plus filesystem-level metadata for path.
// The harness's own fields come back zero-valued when absent.
func (s *Session) Read(ctx context.Context, path string) (*Metadata, error) {
	args := []string{
		"-json",
		"-d", "%Y-%m-%dT%H:%M:%S%z",
		path,
	}

	s.mu.Lock()
	out, err := s.command(ctx, "read", args)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var records []map[string]any
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		return nil, &ToolError{Op: "read", Args: args, Output: out, Err: err}
	}
	if len(records) == 0 {
		return nil, &ToolError{Op: "read", Args: args, Output: "tool returned no records"}
	}

	meta := &Metadata{Raw: make(map[string]string, len(records[0]))}
	for key, val := range records[0] {
		meta.Raw[key] = fmt.Sprint(val)
	}
	meta.Tags = TagSet{
		Identity:  meta.Raw[FieldIdentity],
		Signature: meta.Raw[FieldSignature],
	}

	// Access time is best-effort: format drift must not fail the read.
	if raw, ok := meta.Raw["FileAccessDate"]; ok {
		if ts, err := time.Parse(accessTimeLayout, raw); err == nil {
			meta.AccessTime = ts
		}
	}

	return meta, nil
}

// DeleteAll strips every tag from path in place. Side effect: the tool
// preserves the pre-deletion bytes as a sibling "<path>_original" backup,
// which cleanup must restore or remove (see fileops.RestoreBackup).
func (s *Session) DeleteAll(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return &ToolError{Op: "delete", Output: path, Err: err}
	}

	args := []string{"-all=", path}

	s.mu.Lock()
	_, err := s.command(ctx, "delete", args)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.logger.Info("all tags deleted", "path", path, "backup", BackupPath(path))
	return nil
}

// BackupPath returns the sibling backup the tool creates for in-place
// edits such as DeleteAll.
func BackupPath(path string) string {
	return path + "_original"
}

// Close terminates the tool process exactly once.
// Safe to call on a session that never started, and safe to call twice;
// later commands fail with ErrSessionClosed.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.closed = true
		if !s.started {
			return
		}

		// Ask the tool to exit, then reap it.
		fmt.Fprint(s.stdin, "-stay_open\nFalse\n")
		s.stdin.Close()

		done := make(chan error, 1)
		go func() { done <- s.cmd.Wait() }()
		select {
		case err := <-done:
			s.closeErr = err
		case <-time.After(5 * time.Second):
			s.cmd.Process.Kill()
			s.closeErr = <-done
		}
		s.logger.Info("session closed", "version", s.version)
	})
	return s.closeErr
}

// ensureStarted launches the tool process in -stay_open mode and performs
// the session-start version check. Caller holds s.mu.
func (s *Session) ensureStarted(ctx context.Context) error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.started {
		return nil
	}

	cmd := exec.Command(s.binary, "-stay_open", "True", "-@", "-")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &ToolError{Op: "start", Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &ToolError{Op: "start", Err: err}
	}
	stderr := &stderrBuffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return &ToolError{Op: "start", Err: err}
	}

	s.cmd = cmd
	s.stdin = stdin
	s.stdout = bufio.NewReader(stdout)
	s.stderr = stderr
	s.started = true

	ver, err := s.rawCommand(ctx, "version", []string{"-ver"})
	if err != nil {
		return err
	}
	s.version = strings.TrimSpace(ver)

	parsed, err := strconv.ParseFloat(s.version, 64)
	if err != nil {
		return &ToolError{Op: "version", Output: s.version, Err: err}
	}
	if parsed < s.minVersion {
		return &ToolError{
			Op:     "version",
			Output: fmt.Sprintf("version %s is older than required %.1f", s.version, s.minVersion),
		}
	}

	s.logger.Info("session started", "binary", s.binary, "version", s.version)
	return nil
}

// command starts the session if needed and runs one tool command.
// Caller holds s.mu.
func (s *Session) command(ctx context.Context, op string, args []string) (string, error) {
	if err := s.ensureStarted(ctx); err != nil {
		return "", err
	}
	return s.rawCommand(ctx, op, args)
}

// rawCommand writes one argfile command and reads output up to the ready
// sentinel. Caller holds s.mu and guarantees the process is running.
func (s *Session) rawCommand(ctx context.Context, op string, args []string) (string, error) {
	s.stderr.Reset()

	var req strings.Builder
	for _, arg := range args {
		req.WriteString(arg)
		req.WriteByte('\n')
	}
	req.WriteString("-execute\n")
	if _, err := io.WriteString(s.stdin, req.String()); err != nil {
		return "", &ToolError{Op: op, Args: args, Err: err}
	}

	out, err := s.readUntilReady(ctx)
	if err != nil {
		return "", &ToolError{Op: op, Args: args, Output: out, Err: err}
	}

	if diag := s.stderr.String(); strings.Contains(diag, "Error") {
		return "", &ToolError{Op: op, Args: args, Output: diag}
	}
	return out, nil
}

// readUntilReady collects stdout lines until the ready sentinel, honoring
// context cancellation. A cancelled read leaves the pipe mid-stream, so
// the session cannot be reused afterwards; the harness treats that as a
// hard scenario failure anyway.
func (s *Session) readUntilReady(ctx context.Context) (string, error) {
	type lineResult struct {
		line string
		err  error
	}
	lines := make(chan lineResult, 1)

	var buf bytes.Buffer
	for {
		go func() {
			line, err := s.stdout.ReadString('\n')
			lines <- lineResult{line: line, err: err}
		}()

		select {
		case <-ctx.Done():
			return buf.String(), ctx.Err()
		case res := <-lines:
			if strings.TrimSpace(res.line) == readySentinel {
				return buf.String(), nil
			}
			buf.WriteString(res.line)
			if res.err != nil {
				return buf.String(), res.err
			}
		}
	}
}

// stderrBuffer is a mutex-guarded bytes.Buffer usable as cmd.Stderr while
// commands read it between invocations.
type stderrBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *stderrBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *stderrBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *stderrBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}
