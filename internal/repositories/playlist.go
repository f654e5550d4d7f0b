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

var playlistColumns = []string{
	"id", "sequence", "user_id", "name", "description", "created_at", "updated_at", "deleted_at",
}

// PlaylistRepository implements models.Repository[*models.Playlist].
//
// Handles playlist CRUD operations with soft delete support and owner-scoped lookups.
type PlaylistRepository struct {
	db *sql.DB
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// Create inserts a new playlist into the database with generated ID and sequence
func (r *PlaylistRepository) Create(ctx context.Context, playlist *models.Playlist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "playlists")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	playlist.SetID(shared.GenerateID())
	playlist.SetSequence(sequence)

	query, args, err := sqb.Insert("playlists").
		Columns("id", "sequence", "user_id", "name", "description", "created_at", "updated_at").
		Values(playlist.ID(), sequence, playlist.UserID(), playlist.Name(), playlist.Description(), playlist.CreatedAt(), playlist.UpdatedAt()).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}

	return nil
}

// Get retrieves a playlist by ID, excluding soft-deleted playlists
func (r *PlaylistRepository) Get(ctx context.Context, id string) (*models.Playlist, error) {
	return r.getOne(ctx, sq.Eq{"id": id}, id)
}

// GetOwned retrieves a playlist by ID only when it belongs to userID.
func (r *PlaylistRepository) GetOwned(ctx context.Context, id, userID string) (*models.Playlist, error) {
	return r.getOne(ctx, sq.Eq{"id": id, "user_id": userID}, id)
}

// Update modifies an existing playlist in the database
func (r *PlaylistRepository) Update(ctx context.Context, playlist *models.Playlist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	playlist.SetUpdatedAt(now)

	b := sqb.Update("playlists").
		Set("name", playlist.Name()).
		Set("description", playlist.Description()).
		Set("updated_at", now).
		Where(sq.Eq{"id": playlist.ID(), "deleted_at": nil})

	return execAffectingOne(ctx, r.db, b, "playlist", playlist.ID())
}

// Delete soft-deletes a playlist and every song in it.
func (r *PlaylistRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	query, args, err := sqb.Update("playlists").
		Set("deleted_at", now).
		Where(sq.Eq{"id": id, "deleted_at": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: playlist %s", shared.ErrNotFound, id)
	}

	query, args, err = sqb.Update("songs").
		Set("deleted_at", now).
		Where(sq.Eq{"playlist_id": id, "deleted_at": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build song delete: %w", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete playlist songs: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit playlist delete: %w", err)
	}

	return nil
}

// List retrieves all playlists matching the given criteria, excluding soft-deleted playlists.
//
// Supported criteria: "user_id" (string).
func (r *PlaylistRepository) List(ctx context.Context, criteria map[string]any) ([]*models.Playlist, error) {
	qb := sqb.Select(playlistColumns...).From("playlists").Where(sq.Eq{"deleted_at": nil})

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		qb = qb.Where(sq.Eq{"user_id": userID})
	}

	query, args, err := qb.OrderBy("sequence ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*models.Playlist
	for rows.Next() {
		playlist, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, playlist)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return playlists, nil
}

func (r *PlaylistRepository) getOne(ctx context.Context, where sq.Eq, key string) (*models.Playlist, error) {
	where["deleted_at"] = nil

	query, args, err := sqb.Select(playlistColumns...).From("playlists").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	playlist, err := scanPlaylist(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, notFoundOr(err, "playlist", key)
	}
	return playlist, nil
}

func scanPlaylist(row scanner) (*models.Playlist, error) {
	var (
		id          string
		sequence    int
		userID      string
		name        string
		description string
		createdAt   time.Time
		updatedAt   time.Time
		deletedAt   sql.NullTime
	)

	if err := row.Scan(&id, &sequence, &userID, &name, &description, &createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}

	playlist := models.NewPlaylist(sequence, userID, name, description)
	playlist.SetID(id)
	playlist.SetCreatedAt(createdAt)
	playlist.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		playlist.SetDeletedAt(&deletedAt.Time)
	}

	return playlist, nil
}
