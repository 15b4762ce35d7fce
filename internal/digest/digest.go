// Package digest computes content checksums for the tagging harness.
//
// Two families of digest live here:
//
//   - File/Bytes: SHA-512 over raw file content, hex-encoded. This is the
//     checksum the harness compares to prove byte-level equality or
//     difference between tagged outputs.
//   - EventID: SHA-256 content addressing with domain separation, used by
//     the run ledger to give trace events stable identities.
//
// Both are deterministic: identical input bytes always produce the same
// digest string.
package digest

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Digest is a hex-encoded checksum compared via exact string equality.
type Digest string

// HexLen is the length of a hex-encoded SHA-512 file digest.
const HexLen = sha512.Size * 2

// Domain prefixes for content-addressed event identity.
// Version suffix enables future algorithm migration.
const (
	DomainRun   = "tagproof/run/v1"
	DomainEvent = "tagproof/event/v1"
)

// Bytes computes the SHA-512 digest of an in-memory buffer.
func Bytes(data []byte) Digest {
	sum := sha512.Sum512(data)
	return Digest(hex.EncodeToString(sum[:]))
}

// File computes the SHA-512 digest of a file's full byte content.
// The file is streamed, not slurped, so large fixtures are fine.
// I/O failures surface as *FileAccessError and are never recovered.
func File(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &FileAccessError{Path: path, Op: "open", Err: err}
	}
	defer f.Close()

	h := sha512.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", &FileAccessError{Path: path, Op: "read", Err: err}
	}
	return Digest(hex.EncodeToString(h.Sum(nil))), nil
}

// EventID computes a content-addressed ID for a ledger record.
// Format: SHA256(domain + 0x00 + canonicalJSON(payload)), hex-encoded.
// The null byte separator prevents domain/data boundary ambiguity.
// Returns an error if the payload cannot be canonically marshaled.
func EventID(domain string, payload map[string]any) (string, error) {
	canonical, err := MarshalCanonical(payload)
	if err != nil {
		return "", fmt.Errorf("EventID: failed to marshal: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// MustEventID is like EventID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustEventID(domain string, payload map[string]any) string {
	id, err := EventID(domain, payload)
	if err != nil {
		panic(err)
	}
	return id
}
