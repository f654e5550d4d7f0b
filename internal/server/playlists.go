package server

import (
	"errors"
	"net/http"

	"github.com/desertthunder/tunegate/internal/auth"
	"github.com/desertthunder/tunegate/internal/models"
	"github.com/desertthunder/tunegate/internal/repositories"
	"github.com/desertthunder/tunegate/internal/shared"
)

type playlistRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

type playlistPatch struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

// PlaylistHandler serves the owner-scoped playlist routes.
type PlaylistHandler struct {
	playlists   *repositories.PlaylistRepository
	songs       *repositories.SongRepository
	rw          *responder
	requireAuth Middleware
}

func NewPlaylistHandler(playlists *repositories.PlaylistRepository, songs *repositories.SongRepository, rw *responder, requireAuth Middleware) *PlaylistHandler {
	return &PlaylistHandler{playlists: playlists, songs: songs, rw: rw, requireAuth: requireAuth}
}

func (h *PlaylistHandler) Routes() []Route {
	mw := []Middleware{h.requireAuth}
	return []Route{
		{Method: http.MethodGet, Path: "/playlists", Handler: http.HandlerFunc(h.list), Middleware: mw},
		{Method: http.MethodPost, Path: "/playlists", Handler: http.HandlerFunc(h.create), Middleware: mw},
		{Method: http.MethodGet, Path: "/playlists/{id}", Handler: http.HandlerFunc(h.get), Middleware: mw},
		{Method: http.MethodPatch, Path: "/playlists/{id}", Handler: http.HandlerFunc(h.update), Middleware: mw},
		{Method: http.MethodDelete, Path: "/playlists/{id}", Handler: http.HandlerFunc(h.delete), Middleware: mw},
	}
}

func (h *PlaylistHandler) list(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	playlists, err := h.playlists.List(r.Context(), map[string]any{"user_id": user.ID()})
	if err != nil {
		h.rw.error(w, r, err)
		return
	}
	if playlists == nil {
		playlists = []*models.Playlist{}
	}
	h.rw.json(w, http.StatusOK, playlists)
}

func (h *PlaylistHandler) create(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var req playlistRequest
	if err := decodeJSON(r, &req); err != nil {
		h.rw.error(w, r, err)
		return
	}

	playlist := models.NewPlaylist(0, user.ID(), req.Name, req.Description)
	if err := h.playlists.Create(r.Context(), playlist); err != nil {
		h.rw.error(w, r, err)
		return
	}
	h.rw.json(w, http.StatusCreated, playlist)
}

// get returns the playlist together with its songs.
func (h *PlaylistHandler) get(w http.ResponseWriter, r *http.Request) {
	playlist, ok := h.owned(w, r)
	if !ok {
		return
	}

	songs, err := h.songs.List(r.Context(), map[string]any{"playlist_id": playlist.ID()})
	if err != nil {
		h.rw.error(w, r, err)
		return
	}
	if songs == nil {
		songs = []*models.Song{}
	}

	h.rw.json(w, http.StatusOK, map[string]any{"playlist": playlist, "songs": songs})
}

func (h *PlaylistHandler) update(w http.ResponseWriter, r *http.Request) {
	playlist, ok := h.owned(w, r)
	if !ok {
		return
	}

	var req playlistPatch
	if err := decodeJSON(r, &req); err != nil {
		h.rw.error(w, r, err)
		return
	}
	if req.Name != nil {
		playlist.SetName(*req.Name)
	}
	if req.Description != nil {
		playlist.SetDescription(*req.Description)
	}

	if err := h.playlists.Update(r.Context(), playlist); err != nil {
		h.rw.error(w, r, err)
		return
	}
	h.rw.json(w, http.StatusOK, playlist)
}

func (h *PlaylistHandler) delete(w http.ResponseWriter, r *http.Request) {
	playlist, ok := h.owned(w, r)
	if !ok {
		return
	}

	if err := h.playlists.Delete(r.Context(), playlist.ID()); err != nil {
		h.rw.error(w, r, err)
		return
	}
	h.rw.json(w, http.StatusOK, map[string]string{"deleted": "Playlist deleted"})
}

// owned loads the playlist named in the path if it belongs to the caller, writing a 404 otherwise.
func (h *PlaylistHandler) owned(w http.ResponseWriter, r *http.Request) (*models.Playlist, bool) {
	user, _ := auth.UserFromContext(r.Context())

	playlist, err := h.playlists.GetOwned(r.Context(), r.PathValue("id"), user.ID())
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			err = newAPIError(http.StatusNotFound, "Playlist not found")
		}
		h.rw.error(w, r, err)
		return nil, false
	}
	return playlist, true
}
