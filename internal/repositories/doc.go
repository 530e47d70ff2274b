// Package repositories implements SQLite persistence for run history.
//
// The device itself is the record of what has been synced. These repositories only describe what each run
// attempted, so losing the database never causes a file to be re-sent or skipped.
//
// Key Implementations:
//   - [RunRepository] : Sync runs and their per-item outcomes
//
// Sequence numbers provide stable, human-readable ordering (e.g., run #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
