package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/desertthunder/tunegate/internal/models"
	"github.com/desertthunder/tunegate/internal/shared"
)

var songColumns = []string{
	"s.id", "s.sequence", "s.playlist_id", "s.name", "s.author", "s.album", "s.bitrate",
	"s.duration_text", "s.duration", "s.album_cover_url", "s.url", "s.created_at", "s.updated_at", "s.deleted_at",
}

// SongRepository implements models.Repository[*models.Song].
//
// Ownership of a song is derived from its playlist.
type SongRepository struct {
	db *sql.DB
}

// NewSongRepository creates a new SongRepository with the given database connection
func NewSongRepository(db *sql.DB) *SongRepository {
	return &SongRepository{db: db}
}

// Create inserts a new song into the database with generated ID and sequence
func (r *SongRepository) Create(ctx context.Context, song *models.Song) error {
	if err := song.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "songs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	song.SetID(shared.GenerateID())
	song.SetSequence(sequence)

	t := song.Track()
	query, args, err := sqb.Insert("songs").
		Columns("id", "sequence", "playlist_id", "name", "author", "album", "bitrate",
			"duration_text", "duration", "album_cover_url", "url", "created_at", "updated_at").
		Values(song.ID(), sequence, song.PlaylistID(), t.Name, t.Author, t.Album, t.Bitrate,
			t.DurationText, t.Duration, t.AlbumCoverURL, t.URL, song.CreatedAt(), song.UpdatedAt()).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert song: %w", err)
	}

	return nil
}

// Get retrieves a song by ID, excluding soft-deleted songs
func (r *SongRepository) Get(ctx context.Context, id string) (*models.Song, error) {
	return r.getOne(ctx, sq.Eq{"s.id": id}, id)
}

// GetOwned retrieves a song by ID only when its playlist belongs to userID.
func (r *SongRepository) GetOwned(ctx context.Context, id, userID string) (*models.Song, error) {
	return r.getOne(ctx, sq.Eq{"s.id": id, "p.user_id": userID, "p.deleted_at": nil}, id)
}

// Update modifies an existing song in the database
func (r *SongRepository) Update(ctx context.Context, song *models.Song) error {
	if err := song.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	song.SetUpdatedAt(now)

	t := song.Track()
	b := sqb.Update("songs").
		Set("playlist_id", song.PlaylistID()).
		Set("name", t.Name).
		Set("author", t.Author).
		Set("album", t.Album).
		Set("bitrate", t.Bitrate).
		Set("duration_text", t.DurationText).
		Set("duration", t.Duration).
		Set("album_cover_url", t.AlbumCoverURL).
		Set("url", t.URL).
		Set("updated_at", now).
		Where(sq.Eq{"id": song.ID(), "deleted_at": nil})

	return execAffectingOne(ctx, r.db, b, "song", song.ID())
}

// Delete soft-deletes a song by ID
func (r *SongRepository) Delete(ctx context.Context, id string) error {
	b := sqb.Update("songs").
		Set("deleted_at", time.Now().UTC()).
		Where(sq.Eq{"id": id, "deleted_at": nil})

	return execAffectingOne(ctx, r.db, b, "song", id)
}

// List retrieves all songs matching the given criteria, excluding soft-deleted songs.
//
// Supported criteria: "playlist_id" and "user_id" (string).
func (r *SongRepository) List(ctx context.Context, criteria map[string]any) ([]*models.Song, error) {
	qb := r.selectSongs().Where(sq.Eq{"s.deleted_at": nil, "p.deleted_at": nil})

	if playlistID, ok := criteria["playlist_id"].(string); ok && playlistID != "" {
		qb = qb.Where(sq.Eq{"s.playlist_id": playlistID})
	}
	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		qb = qb.Where(sq.Eq{"p.user_id": userID})
	}

	query, args, err := qb.OrderBy("s.sequence ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query songs: %w", err)
	}
	defer rows.Close()

	var songs []*models.Song
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, err
		}
		songs = append(songs, song)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return songs, nil
}

func (r *SongRepository) selectSongs() sq.SelectBuilder {
	return sqb.Select(songColumns...).From("songs s").Join("playlists p ON p.id = s.playlist_id")
}

func (r *SongRepository) getOne(ctx context.Context, where sq.Eq, key string) (*models.Song, error) {
	where["s.deleted_at"] = nil

	query, args, err := r.selectSongs().Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	song, err := scanSong(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, notFoundOr(err, "song", key)
	}
	return song, nil
}

func scanSong(row scanner) (*models.Song, error) {
	var (
		id         string
		sequence   int
		playlistID string
		t          models.SearchResult
		createdAt  time.Time
		updatedAt  time.Time
		deletedAt  sql.NullTime
	)

	err := row.Scan(&id, &sequence, &playlistID, &t.Name, &t.Author, &t.Album, &t.Bitrate,
		&t.DurationText, &t.Duration, &t.AlbumCoverURL, &t.URL, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan song: %w", err)
	}

	song := models.NewSong(sequence, playlistID, t)
	song.SetID(id)
	song.SetCreatedAt(createdAt)
	song.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		song.SetDeletedAt(&deletedAt.Time)
	}

	return song, nil
}
