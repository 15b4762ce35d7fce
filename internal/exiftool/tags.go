// Package exiftool wraps the external metadata tool behind a narrow
// write/read/delete contract.
//
// The harness only cares about two custom XMP fields (identity and
// signature); everything else the tool can do is out of scope. The tool
// runs as a single long-lived process per session (see Session), shared
// across scenarios and injected explicitly rather than held as a global.
package exiftool

import (
	"time"

	"golang.org/x/text/unicode/norm"
)

// XMP field names carrying the harness's two custom values.
// Identity lands in XMP-dc:Identifier, signature in XMP-xmpRights:Certificate.
const (
	FieldIdentity  = "Identifier"
	FieldSignature = "Certificate"
)

// TagSet is the pair of custom values written into a file.
// Values round-trip exactly modulo the tool's recognized escaping, so
// comparisons normalize to NFC first.
type TagSet struct {
	Identity  string
	Signature string
}

// Normalize returns the TagSet with both values NFC-normalized.
// The tool may re-encode strings on write; comparing normalized forms is
// what "round-trips exactly" means for this harness.
func (t TagSet) Normalize() TagSet {
	return TagSet{
		Identity:  norm.NFC.String(t.Identity),
		Signature: norm.NFC.String(t.Signature),
	}
}

// Empty reports whether the TagSet carries no values at all.
func (t TagSet) Empty() bool {
	return t.Identity == "" && t.Signature == ""
}

// Equal compares two TagSets after normalization.
func (t TagSet) Equal(other TagSet) bool {
	a, b := t.Normalize(), other.Normalize()
	return a.Identity == b.Identity && a.Signature == b.Signature
}

// Metadata is everything Read returns for a file: the harness's own tags
// (zero-valued fields when absent), the full raw tag map, and the
// filesystem-level access time. Access time is exposed so the harness can
// assert that opening a file for read moves the OS timestamp without
// moving the content digest.
type Metadata struct {
	Tags       TagSet
	Raw        map[string]string
	AccessTime time.Time
}

// Tag returns a raw tag value by name, with ok=false when absent.
// Previously-written fields that have since been removed are absent, not
// empty strings.
func (m *Metadata) Tag(name string) (string, bool) {
	v, ok := m.Raw[name]
	return v, ok
}
