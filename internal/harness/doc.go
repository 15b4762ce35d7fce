// Package harness runs metadata-tagging verification scenarios.
//
// A scenario binds one input file, a tag fixture, and a list of named
// checks. The runner drives each scenario through a small state machine
// (INIT -> TAGGED -> VERIFIED -> CLEANED, with a RETAGGED branch for
// chained tagging), invoking the external metadata tool through the
// Tagger interface and comparing content digests around every operation.
//
// The checks encode the harness's core invariants:
//
//   - writing identical tags twice yields byte-identical outputs,
//   - writing different identity or signature values yields different
//     outputs,
//   - a retag chain T1 -> T2 -> T1 returns to the first byte layout,
//   - deleting all tags canonicalizes tagged and untagged derivatives to
//     the same bytes (PNG/JPEG only; PDF is exempt by policy),
//   - relocation and read access never move the content digest.
//
// Scenarios are isolated by naming convention: every generated output
// embeds the scenario name and "OUT" in its filename, and teardown
// removes everything matching the convention (restoring the external
// tool's "_original" backups first). Assertion failures abort the failing
// scenario with literal expected/actual values; independent scenarios
// keep running.
package harness
