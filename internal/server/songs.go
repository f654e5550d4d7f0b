package server

import (
	"errors"
	"net/http"

	"github.com/desertthunder/tunegate/internal/auth"
	"github.com/desertthunder/tunegate/internal/models"
	"github.com/desertthunder/tunegate/internal/repositories"
	"github.com/desertthunder/tunegate/internal/shared"
)

// songRequest is a normalized search result plus the target playlist.
type songRequest struct {
	PlaylistID    string `json:"playlist_id" validate:"required"`
	Name          string `json:"name" validate:"required"`
	Author        string `json:"author"`
	Album         string `json:"album"`
	Bitrate       int    `json:"bitrate" validate:"gte=0"`
	DurationText  string `json:"duration_text" validate:"required"`
	Duration      int    `json:"duration" validate:"gte=0"`
	AlbumCoverURL string `json:"album_cover_url"`
	URL           string `json:"url" validate:"required,url"`
}

type songPatch struct {
	Name string `json:"name" validate:"required"`
}

// SongHandler serves songs scoped to playlists the caller owns.
type SongHandler struct {
	playlists   *repositories.PlaylistRepository
	songs       *repositories.SongRepository
	rw          *responder
	requireAuth Middleware
}

func NewSongHandler(playlists *repositories.PlaylistRepository, songs *repositories.SongRepository, rw *responder, requireAuth Middleware) *SongHandler {
	return &SongHandler{playlists: playlists, songs: songs, rw: rw, requireAuth: requireAuth}
}

func (h *SongHandler) Routes() []Route {
	mw := []Middleware{h.requireAuth}
	return []Route{
		{Method: http.MethodGet, Path: "/songs", Handler: http.HandlerFunc(h.list), Middleware: mw},
		{Method: http.MethodPost, Path: "/songs", Handler: http.HandlerFunc(h.create), Middleware: mw},
		{Method: http.MethodGet, Path: "/songs/{id}", Handler: http.HandlerFunc(h.get), Middleware: mw},
		{Method: http.MethodPatch, Path: "/songs/{id}", Handler: http.HandlerFunc(h.update), Middleware: mw},
		{Method: http.MethodDelete, Path: "/songs/{id}", Handler: http.HandlerFunc(h.delete), Middleware: mw},
	}
}

func (h *SongHandler) list(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	songs, err := h.songs.List(r.Context(), map[string]any{"user_id": user.ID()})
	if err != nil {
		h.rw.error(w, r, err)
		return
	}
	if songs == nil {
		songs = []*models.Song{}
	}
	h.rw.json(w, http.StatusOK, songs)
}

func (h *SongHandler) create(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var req songRequest
	if err := decodeJSON(r, &req); err != nil {
		h.rw.error(w, r, err)
		return
	}

	if _, err := h.playlists.GetOwned(r.Context(), req.PlaylistID, user.ID()); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			err = newAPIError(http.StatusNotFound, "Playlist not found or does not belong to the user")
		}
		h.rw.error(w, r, err)
		return
	}

	song := models.NewSong(0, req.PlaylistID, models.SearchResult{
		Name:          req.Name,
		Author:        req.Author,
		Album:         req.Album,
		Bitrate:       req.Bitrate,
		DurationText:  req.DurationText,
		Duration:      req.Duration,
		AlbumCoverURL: req.AlbumCoverURL,
		URL:           req.URL,
	})
	if err := h.songs.Create(r.Context(), song); err != nil {
		h.rw.error(w, r, err)
		return
	}
	h.rw.json(w, http.StatusCreated, song)
}

func (h *SongHandler) get(w http.ResponseWriter, r *http.Request) {
	if song, ok := h.owned(w, r); ok {
		h.rw.json(w, http.StatusOK, song)
	}
}

func (h *SongHandler) update(w http.ResponseWriter, r *http.Request) {
	song, ok := h.owned(w, r)
	if !ok {
		return
	}

	var req songPatch
	if err := decodeJSON(r, &req); err != nil {
		h.rw.error(w, r, err)
		return
	}
	song.SetName(req.Name)

	if err := h.songs.Update(r.Context(), song); err != nil {
		h.rw.error(w, r, err)
		return
	}
	h.rw.json(w, http.StatusOK, song)
}

func (h *SongHandler) delete(w http.ResponseWriter, r *http.Request) {
	song, ok := h.owned(w, r)
	if !ok {
		return
	}

	if err := h.songs.Delete(r.Context(), song.ID()); err != nil {
		h.rw.error(w, r, err)
		return
	}
	h.rw.json(w, http.StatusOK, map[string]string{"deleted": "Song deleted"})
}

func (h *SongHandler) owned(w http.ResponseWriter, r *http.Request) (*models.Song, bool) {
	user, _ := auth.UserFromContext(r.Context())

	song, err := h.songs.GetOwned(r.Context(), r.PathValue("id"), user.ID())
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			err = newAPIError(http.StatusNotFound, "Song not found")
		}
		h.rw.error(w, r, err)
		return nil, false
	}
	return song, true
}
