package models

import (
	"encoding/json"
	"time"

	"github.com/desertthunder/tunegate/internal/shared"
)

// Playlist is a named, user-owned collection of songs.
type Playlist struct {
	record
	userID      string
	name        string
	description string
}

// NewPlaylist creates a [Playlist] owned by userID.
func NewPlaylist(sequence int, userID, name, description string) *Playlist {
	return &Playlist{
		record:      newRecord(sequence),
		userID:      userID,
		name:        name,
		description: description,
	}
}

func (p *Playlist) UserID() string      { return p.userID }
func (p *Playlist) Name() string        { return p.name }
func (p *Playlist) Description() string { return p.description }

func (p *Playlist) SetName(name string)               { p.name = name }
func (p *Playlist) SetDescription(description string) { p.description = description }

// Validate checks required fields.
func (p *Playlist) Validate() error {
	if p.userID == "" {
		return shared.NewValidationError("user_id", "field 'user_id' is required")
	}
	if p.name == "" {
		return shared.NewValidationError("name", "field 'name' is required")
	}
	return nil
}

func (p *Playlist) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID          string    `json:"id"`
		Name        string    `json:"name"`
		Description string    `json:"description,omitempty"`
		UserID      string    `json:"user_id"`
		CreatedAt   time.Time `json:"created_at"`
	}{p.id, p.name, p.description, p.userID, p.createdAt})
}
