// Package store persists scenario runs to a SQLite run ledger.
//
// Every harness session can record its runs here: one row per scenario
// run plus one row per trace event, with content-addressed event IDs so
// re-recording an identical run is idempotent. The ledger is append-only
// from the harness's perspective; the CLI's report command reads it.
package store
