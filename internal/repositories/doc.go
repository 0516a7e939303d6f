// Package repositories implements SQLite persistence for the local analysis cache.
//
// Key Implementations:
//   - [AnalysisRepository] : CRUD over analysis snapshots with lookups by backend analysis ID
//   - [CacheAdapter] : tasks.SnapshotCacher that upserts every snapshot a poller observes
//
// Records support soft deletes via deleted_at timestamps and deleted records are excluded from queries by default.
// Sequence numbers provide stable, human-readable ordering independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
