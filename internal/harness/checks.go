package harness

import (
	"context"
	"fmt"

	"github.com/roach88/tagproof/internal/fileops"
)

// checkRoundTrip writes the tag fixture and reads it back, asserting the
// values survive unchanged (modulo NFC normalization).
func (sc *scenarioRun) checkRoundTrip(ctx context.Context) error {
	tags := sc.tags()
	out, _, err := sc.write(ctx, sc.file.Path, tags, "rt1")
	if err != nil {
		return err
	}

	meta, err := sc.read(ctx, out)
	if err != nil {
		return err
	}
	if !tags.Equal(meta.Tags) {
		return &AssertionError{
			Check:    CheckRoundTrip,
			Expected: fmt.Sprintf("identity=%q signature=%q", tags.Identity, tags.Signature),
			Actual:   fmt.Sprintf("identity=%q signature=%q", meta.Tags.Identity, meta.Tags.Signature),
			Paths:    []string{out},
		}
	}
	return nil
}

// checkSameTags performs two independent writes with the identical tag
// set and asserts the outputs are byte-identical: tagging is a
// deterministic, idempotent function of (input bytes, tag values).
func (sc *scenarioRun) checkSameTags(ctx context.Context) error {
	tags := sc.tags()
	out1, d1, err := sc.write(ctx, sc.file.Path, tags, "st1")
	if err != nil {
		return err
	}
	out2, d2, err := sc.write(ctx, sc.file.Path, tags, "st2")
	if err != nil {
		return err
	}

	if d1 != d2 {
		return &AssertionError{
			Check:    CheckSameTags,
			Expected: fmt.Sprintf("identical digests for identical tags: %s", d1),
			Actual:   fmt.Sprintf("digests differ: %s vs %s", d1, d2),
			Paths:    []string{out1, out2},
		}
	}
	return nil
}

// checkDifferentIdentity asserts two outputs with different identity
// values (same signature) have different digests.
func (sc *scenarioRun) checkDifferentIdentity(ctx context.Context) error {
	base := sc.tags()
	alt := base
	alt.Identity = base.Identity + "-alt"

	out1, d1, err := sc.write(ctx, sc.file.Path, base, "di1")
	if err != nil {
		return err
	}
	out2, d2, err := sc.write(ctx, sc.file.Path, alt, "di2")
	if err != nil {
		return err
	}

	if d1 == d2 {
		return &AssertionError{
			Check:    CheckDifferentIdentity,
			Expected: "different digests for different identity values",
			Actual:   fmt.Sprintf("both outputs digest to %s", d1),
			Paths:    []string{out1, out2},
		}
	}
	return nil
}

// checkDifferentSignature asserts two outputs with different signature
// values (same identity) have different digests.
func (sc *scenarioRun) checkDifferentSignature(ctx context.Context) error {
	sig1 := sc.tags()
	sig1.Signature = sc.scenario.Signature + "-1"
	sig2 := sc.tags()
	sig2.Signature = sc.scenario.Signature + "-2"

	out1, d1, err := sc.write(ctx, sc.file.Path, sig1, "ds1")
	if err != nil {
		return err
	}
	out2, d2, err := sc.write(ctx, sc.file.Path, sig2, "ds2")
	if err != nil {
		return err
	}

	if d1 == d2 {
		return &AssertionError{
			Check:    CheckDifferentSignature,
			Expected: "different digests for different signature values",
			Actual:   fmt.Sprintf("both outputs digest to %s", d1),
			Paths:    []string{out1, out2},
		}
	}
	return nil
}

// checkTaggingChangesContent asserts a non-empty tag set changes the
// digest relative to the untagged input. PDF is exempt by format policy:
// the relationship is recorded but not asserted.
func (sc *scenarioRun) checkTaggingChangesContent(ctx context.Context) error {
	din, err := sc.digestOf(sc.file.Path)
	if err != nil {
		return err
	}
	out, dout, err := sc.write(ctx, sc.file.Path, sc.tags(), "tc1")
	if err != nil {
		return err
	}

	if !sc.policy.TaggingChangesDigest {
		sc.event("check", out, "", fmt.Sprintf("not asserted for %s", sc.file.Format))
		return nil
	}

	if din == dout {
		return &AssertionError{
			Check:    CheckTaggingChangesContent,
			Expected: fmt.Sprintf("tagged output digest differs from input digest %s", din),
			Actual:   fmt.Sprintf("output digests to the same value %s", dout),
			Paths:    []string{sc.file.Path, out},
		}
	}
	return nil
}

// checkChainedRetag runs input -> OUT1(T1) -> OUT2(T2) -> OUT3(T1) and
// asserts OUT1 and OUT3 are byte-identical while OUT2 differs from both:
// retagging returns to the same canonical byte layout for identical tag
// content.
func (sc *scenarioRun) checkChainedRetag(ctx context.Context) error {
	t1 := sc.tags()
	t2 := sc.altTags()

	out1, d1, err := sc.write(ctx, sc.file.Path, t1, "cr1")
	if err != nil {
		return err
	}
	out2, d2, err := sc.write(ctx, out1, t2, "cr2")
	if err != nil {
		return err
	}
	out3, d3, err := sc.write(ctx, out2, t1, "cr3")
	if err != nil {
		return err
	}

	if d1 != d3 {
		return &AssertionError{
			Check:    CheckChainedRetag,
			Expected: fmt.Sprintf("retagging with the original tags returns to digest %s", d1),
			Actual:   fmt.Sprintf("final output digests to %s", d3),
			Paths:    []string{out1, out3},
		}
	}
	if d1 == d2 {
		return &AssertionError{
			Check:    CheckChainedRetag,
			Expected: "intermediate tags produce a different digest",
			Actual:   fmt.Sprintf("intermediate output digests to the same value %s", d2),
			Paths:    []string{out1, out2},
		}
	}
	return nil
}

// checkTagDeletion strips all tags from a tagged derivative and from an
// untagged copy of the input, asserting both converge on identical
// bytes. Exempt for PDF by format policy.
func (sc *scenarioRun) checkTagDeletion(ctx context.Context) error {
	if !sc.policy.DeletionCanonicalizes {
		sc.event("check", sc.file.Path, "", fmt.Sprintf("not asserted for %s", sc.file.Format))
		return nil
	}

	tagged, _, err := sc.write(ctx, sc.file.Path, sc.tags(), "td1")
	if err != nil {
		return err
	}
	untagged, err := sc.copyArtifact(sc.file.Path, "td2")
	if err != nil {
		return err
	}

	if err := sc.runner.tagger.DeleteAll(ctx, tagged); err != nil {
		return err
	}
	sc.event("delete", tagged, "", "")
	if err := sc.runner.tagger.DeleteAll(ctx, untagged); err != nil {
		return err
	}
	sc.event("delete", untagged, "", "")

	dTagged, err := sc.digestOf(tagged)
	if err != nil {
		return err
	}
	dUntagged, err := sc.digestOf(untagged)
	if err != nil {
		return err
	}

	if dTagged != dUntagged {
		return &AssertionError{
			Check:    CheckTagDeletion,
			Expected: "tag deletion canonicalizes tagged and untagged derivatives to identical digests",
			Actual:   fmt.Sprintf("digests differ: %s vs %s", dTagged, dUntagged),
			Paths:    []string{tagged, untagged},
		}
	}
	return nil
}

// checkRelocation moves a tagged output and asserts the digest is
// byte-identical before and after.
func (sc *scenarioRun) checkRelocation(ctx context.Context) error {
	out, before, err := sc.write(ctx, sc.file.Path, sc.tags(), "rl1")
	if err != nil {
		return err
	}

	moved := sc.outPath("rl1moved")
	if err := fileops.Move(out, moved); err != nil {
		return err
	}
	sc.outputs = append(sc.outputs, moved)
	sc.event("move", moved, "", "")

	after, err := sc.digestOf(moved)
	if err != nil {
		return err
	}
	if before != after {
		return &AssertionError{
			Check:    CheckRelocation,
			Expected: fmt.Sprintf("digest unchanged by relocation: %s", before),
			Actual:   fmt.Sprintf("digest after move: %s", after),
			Paths:    []string{out, moved},
		}
	}
	return nil
}

// checkReadAccess opens a tagged output for read twice and asserts the
// content digest never moves, while the OS-level access timestamp does
// not run backwards. Content identity and access metadata are distinct;
// the harness must assert exactly that distinction.
func (sc *scenarioRun) checkReadAccess(ctx context.Context) error {
	out, before, err := sc.write(ctx, sc.file.Path, sc.tags(), "ra1")
	if err != nil {
		return err
	}

	first, err := sc.read(ctx, out)
	if err != nil {
		return err
	}
	second, err := sc.read(ctx, out)
	if err != nil {
		return err
	}

	after, err := sc.digestOf(out)
	if err != nil {
		return err
	}
	if before != after {
		return &AssertionError{
			Check:    CheckReadAccess,
			Expected: fmt.Sprintf("digest unchanged by read access: %s", before),
			Actual:   fmt.Sprintf("digest after reads: %s", after),
			Paths:    []string{out},
		}
	}
	if second.AccessTime.Before(first.AccessTime) {
		return &AssertionError{
			Check:    CheckReadAccess,
			Expected: fmt.Sprintf("access timestamp advances monotonically from %s", first.AccessTime),
			Actual:   fmt.Sprintf("access timestamp moved back to %s", second.AccessTime),
			Paths:    []string{out},
		}
	}
	return nil
}
