package models

import (
	"encoding/json"

	"github.com/desertthunder/tunegate/internal/shared"
)

// Song is a saved track inside a playlist.
//
// Its fields mirror [SearchResult] so a search hit can be stored as-is.
type Song struct {
	record
	playlistID string
	track      SearchResult
}

// NewSong creates a [Song] in the given playlist from a normalized track.
func NewSong(sequence int, playlistID string, track SearchResult) *Song {
	return &Song{record: newRecord(sequence), playlistID: playlistID, track: track}
}

func (s *Song) PlaylistID() string      { return s.playlistID }
func (s *Song) Track() SearchResult     { return s.track }
func (s *Song) Name() string            { return s.track.Name }
func (s *Song) SetName(name string)     { s.track.Name = name }
func (s *Song) SetPlaylistID(id string) { s.playlistID = id }

// Validate checks required fields.
func (s *Song) Validate() error {
	switch {
	case s.playlistID == "":
		return shared.NewValidationError("playlist_id", "field 'playlist_id' is required")
	case s.track.Name == "":
		return shared.NewValidationError("name", "field 'name' is required")
	case s.track.URL == "":
		return shared.NewValidationError("url", "field 'url' is required")
	case s.track.DurationText == "":
		return shared.NewValidationError("duration_text", "field 'duration_text' is required")
	case s.track.Duration < 0:
		return shared.NewValidationError("duration", "field 'duration' must not be negative")
	}
	return nil
}

func (s *Song) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID         string `json:"id"`
		PlaylistID string `json:"playlist_id"`
		SearchResult
	}{s.id, s.playlistID, s.track})
}
