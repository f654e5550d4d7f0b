// Package models defines domain entities and persistence interfaces for the playlist service.
//
// Persistent entities embed a common record carrying the UUID, the per-table sequence number,
// timestamps and the soft-delete marker:
//   - [User] : accounts with a bcrypt password hash and an active flag
//   - [Playlist] : user-owned playlists
//   - [Song] : tracks saved into a playlist
//
// [SearchResult] is the normalized shape produced by every external search provider and is
// also the payload stored for a [Song].
//
// The [Repository] interface defines standard CRUD operations for database access.
package models
