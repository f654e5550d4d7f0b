package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/desertthunder/tunegate/internal/models"
	"github.com/desertthunder/tunegate/internal/shared"
)

var userColumns = []string{
	"id", "sequence", "username", "email", "password_hash", "is_active", "created_at", "updated_at", "deleted_at",
}

// UserRepository implements [models.Repository] for user [models.User] persistence.
//
// It is also the credential store accessor consulted on every session verification.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user into the database with generated ID and sequence.
//
// A duplicate email or username yields [shared.ErrConflict].
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "users")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	user.SetID(shared.GenerateID())
	user.SetSequence(sequence)

	query, args, err := sqb.Insert("users").
		Columns("id", "sequence", "username", "email", "password_hash", "is_active", "created_at", "updated_at").
		Values(user.ID(), sequence, user.Username(), user.Email(), user.PasswordHash(), user.IsActive(), user.CreatedAt(), user.UpdatedAt()).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: email or username already registered", shared.ErrConflict)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// Get retrieves a user by ID, excluding soft-deleted users
func (r *UserRepository) Get(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, sq.Eq{"id": id}, id)
}

// GetByEmail retrieves a user by email, excluding soft-deleted users
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, sq.Eq{"email": strings.ToLower(strings.TrimSpace(email))}, email)
}

// GetActive retrieves a user by ID only if the account is active and not deleted.
//
// Unknown, deleted and deactivated accounts all yield [shared.ErrNotFound].
func (r *UserRepository) GetActive(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, sq.Eq{"id": id, "is_active": true}, id)
}

// Update modifies an existing user in the database
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	user.SetUpdatedAt(now)

	b := sqb.Update("users").
		Set("username", user.Username()).
		Set("email", user.Email()).
		Set("password_hash", user.PasswordHash()).
		Set("is_active", user.IsActive()).
		Set("updated_at", now).
		Where(sq.Eq{"id": user.ID(), "deleted_at": nil})

	return execAffectingOne(ctx, r.db, b, "user", user.ID())
}

// SetActive flips the active flag; deactivation revokes every outstanding session on next verify.
func (r *UserRepository) SetActive(ctx context.Context, id string, active bool) error {
	b := sqb.Update("users").
		Set("is_active", active).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id, "deleted_at": nil})

	return execAffectingOne(ctx, r.db, b, "user", id)
}

// Delete soft-deletes a user by ID
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	b := sqb.Update("users").
		Set("deleted_at", time.Now().UTC()).
		Where(sq.Eq{"id": id, "deleted_at": nil})

	return execAffectingOne(ctx, r.db, b, "user", id)
}

// List retrieves all users matching the given criteria, excluding soft-deleted users.
//
// Supported criteria: "email", "username" (string) and "active" (bool).
func (r *UserRepository) List(ctx context.Context, criteria map[string]any) ([]*models.User, error) {
	qb := sqb.Select(userColumns...).From("users").Where(sq.Eq{"deleted_at": nil})

	if email, ok := criteria["email"].(string); ok && email != "" {
		qb = qb.Where(sq.Eq{"email": email})
	}
	if username, ok := criteria["username"].(string); ok && username != "" {
		qb = qb.Where(sq.Eq{"username": username})
	}
	if active, ok := criteria["active"].(bool); ok {
		qb = qb.Where(sq.Eq{"is_active": active})
	}

	query, args, err := qb.OrderBy("sequence ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return users, nil
}

func (r *UserRepository) getOne(ctx context.Context, where sq.Eq, key string) (*models.User, error) {
	where["deleted_at"] = nil

	query, args, err := sqb.Select(userColumns...).From("users").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	user, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, notFoundOr(err, "user", key)
	}
	return user, nil
}

func scanUser(row scanner) (*models.User, error) {
	var (
		id           string
		sequence     int
		username     string
		email        string
		passwordHash string
		active       bool
		createdAt    time.Time
		updatedAt    time.Time
		deletedAt    sql.NullTime
	)

	if err := row.Scan(&id, &sequence, &username, &email, &passwordHash, &active, &createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	user := models.NewUser(sequence, username, email, passwordHash)
	user.SetID(id)
	user.SetActive(active)
	user.SetCreatedAt(createdAt)
	user.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		user.SetDeletedAt(&deletedAt.Time)
	}

	return user, nil
}
