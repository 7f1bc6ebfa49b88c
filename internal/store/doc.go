// Package store persists session snapshots and navigation traces in SQLite.
//
// The database holds one row per session with its latest snapshot, and an
// append-only event log of processed navigation requests. Snapshots carry
// their canonical hash so a reload can detect corruption and a resumed
// session can be compared bit-for-bit against the state that was saved.
//
// SQLite runs in WAL mode with a single writer connection. All writes are
// idempotent: saving the same snapshot twice upserts, and appending an event
// with an already-recorded (session, seq) pair is a no-op.
package store
