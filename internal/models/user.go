package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/desertthunder/tunegate/internal/shared"
)

// User is an account that can log in and own playlists.
//
// Deactivated users keep their data but every outstanding session token stops verifying.
type User struct {
	record
	username     string
	email        string
	passwordHash string
	active       bool
}

// NewUser creates an active [User] with the given sequence, username, email and bcrypt hash.
func NewUser(sequence int, username, email, passwordHash string) *User {
	return &User{
		record:       newRecord(sequence),
		username:     username,
		email:        strings.ToLower(strings.TrimSpace(email)),
		passwordHash: passwordHash,
		active:       true,
	}
}

func (u *User) Username() string     { return u.username }
func (u *User) Email() string        { return u.email }
func (u *User) PasswordHash() string { return u.passwordHash }
func (u *User) IsActive() bool       { return u.active }

func (u *User) SetUsername(username string) { u.username = username }
func (u *User) SetEmail(email string)       { u.email = strings.ToLower(strings.TrimSpace(email)) }
func (u *User) SetPasswordHash(h string)    { u.passwordHash = h }
func (u *User) SetActive(active bool)       { u.active = active }

// Validate checks required fields.
func (u *User) Validate() error {
	if u.username == "" {
		return shared.NewValidationError("username", "field 'username' is required")
	}
	if u.email == "" {
		return shared.NewValidationError("email", "field 'email' is required")
	}
	if u.passwordHash == "" {
		return shared.NewValidationError("password", "field 'password' is required")
	}
	return nil
}

// MarshalJSON renders the public view of a user; the password hash is never serialized.
func (u *User) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID        string    `json:"id"`
		Username  string    `json:"username"`
		Email     string    `json:"email"`
		IsActive  bool      `json:"is_active"`
		CreatedAt time.Time `json:"created_at"`
	}{u.id, u.username, u.email, u.active, u.createdAt})
}
