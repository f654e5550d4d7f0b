// Package repositories implements SQLite persistence for all domain entities.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// All repositories support soft deletes via deleted_at timestamps and exclude deleted records from queries by default.
// Queries are assembled with squirrel so optional list criteria translate directly into WHERE clauses.
//
// Key Implementations:
//   - [UserRepository] : accounts with email lookups and the active-account check used by session verification
//   - [PlaylistRepository] : user-owned playlists; deleting one soft-deletes its songs
//   - [SongRepository] : songs whose ownership is resolved through their playlist
//
// Missing rows surface as [shared.ErrNotFound] and unique-constraint violations as [shared.ErrConflict].
package repositories
