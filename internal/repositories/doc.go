// Package repositories implements SQLite persistence for the content index.
//
// The index records every playlist and segment file stored for a cached resource so the cache can report
// sizes, skip files already fetched and delete a resource's files on removal.
//
// Key Implementations:
//   - [CachedFileRepository] : Stored file persistence with per-resource lookups and statistics
//
// Sequence numbers provide stable insertion ordering independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
