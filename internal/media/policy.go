package media

// Policy describes which checksum invariants hold for a format.
//
// Container behavior under tagging is NOT uniform: embedding XMP into PNG
// and JPEG always rewrites bytes, so the output digest must differ from
// the input. PDF incremental updates can leave the digest relationship
// unspecified, so the harness must not assert a change there. The same
// split applies to tag deletion: stripping tags from PNG/JPEG is
// canonicalizing (tagged-then-stripped equals never-tagged-then-stripped),
// while PDF is exempt.
type Policy struct {
	// TaggingChangesDigest is true when writing a non-empty tag set must
	// produce a digest different from the untagged input.
	TaggingChangesDigest bool

	// DeletionCanonicalizes is true when deleting all tags from a tagged
	// derivative and from the pristine input must converge on identical
	// digests.
	DeletionCanonicalizes bool
}

// policies is the per-format invariant table.
var policies = map[Format]Policy{
	FormatPNG:  {TaggingChangesDigest: true, DeletionCanonicalizes: true},
	FormatJPEG: {TaggingChangesDigest: true, DeletionCanonicalizes: true},
	FormatPDF:  {TaggingChangesDigest: false, DeletionCanonicalizes: false},
}

// PolicyFor returns the invariant policy for a format.
// Unknown formats get the weakest policy (assert nothing format-specific).
func PolicyFor(format Format) Policy {
	return policies[format]
}
