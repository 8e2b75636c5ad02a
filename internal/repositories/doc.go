// Package repositories implements SQLite persistence for all domain entities.
//
// Each repository handles one table family over a shared [database/sql.DB]:
//   - [SongRepository] : songs with JSON array columns for multi-value fields
//   - [CategoryRepository] : the categories_metadata index
//   - [ChangeRepository] : the song change outbox
//   - [PlaylistRepository] : playlists and their ordered song membership
//   - [UserRepository] : accounts and custom claims
//
// [Store] bundles them into a [store.Store].
//
// Songs and playlists support soft deletes via deleted_at timestamps and exclude deleted records from queries.
// Every song write inserts a song_changes row in the same transaction, so a committed
// edit always has a pending change event.
//
// Sequence numbers provide stable insertion ordering independent of UUIDs and creation timestamps.
// [NextSequence] atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
