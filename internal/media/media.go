// Package media models the input files the tagging harness operates on.
//
// A MediaFile is a path plus a detected container format. Format detection
// reads magic bytes first and falls back to the file extension, since
// fixtures occasionally arrive with misleading names.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format identifies a supported container format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

// ErrUnsupportedFormat is returned when a file is neither PDF, JPEG nor PNG.
var ErrUnsupportedFormat = errors.New("unsupported media format")

// Magic byte prefixes for the supported formats.
var (
	magicPDF  = []byte("%PDF-")
	magicJPEG = []byte{0xff, 0xd8, 0xff}
	magicPNG  = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
)

// MediaFile is an existing on-disk input of a supported format.
type MediaFile struct {
	Path   string
	Format Format
	Size   int64
}

// Stat opens path, detects its format, and returns a MediaFile.
// Returns ErrUnsupportedFormat (wrapped with the path) when the content
// matches no supported container.
func Stat(path string) (*MediaFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	return &MediaFile{
		Path:   path,
		Format: format,
		Size:   info.Size(),
	}, nil
}

// DetectFormat sniffs the first bytes of path and classifies the container.
// Falls back to the extension when the file is too short to carry magic
// bytes (empty fixtures used in failure-path tests).
func DetectFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	header := make([]byte, 8)
	n, err := f.Read(header)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	header = header[:n]

	switch {
	case bytes.HasPrefix(header, magicPNG):
		return FormatPNG, nil
	case bytes.HasPrefix(header, magicJPEG):
		return FormatJPEG, nil
	case bytes.HasPrefix(header, magicPDF):
		return FormatPDF, nil
	}

	if format, ok := formatFromExtension(path); ok {
		return format, nil
	}
	return "", fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
}

// formatFromExtension maps well-known extensions to formats.
func formatFromExtension(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return FormatPDF, true
	case ".jpg", ".jpeg":
		return FormatJPEG, true
	case ".png":
		return FormatPNG, true
	}
	return "", false
}
