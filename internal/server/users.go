package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/tunegate/internal/auth"
	"github.com/desertthunder/tunegate/internal/models"
	"github.com/desertthunder/tunegate/internal/repositories"
	"github.com/desertthunder/tunegate/internal/shared"
)

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=25"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
}

// UserHandler serves registration and the cookie session endpoints.
type UserHandler struct {
	users       *repositories.UserRepository
	tokens      *auth.Manager
	rw          *responder
	requireAuth Middleware
}

func NewUserHandler(users *repositories.UserRepository, tokens *auth.Manager, rw *responder, requireAuth Middleware) *UserHandler {
	return &UserHandler{users: users, tokens: tokens, rw: rw, requireAuth: requireAuth}
}

func (h *UserHandler) Routes() []Route {
	return []Route{
		{Method: http.MethodPost, Path: "/users", Handler: http.HandlerFunc(h.register)},
		{Method: http.MethodPost, Path: "/users/token", Handler: http.HandlerFunc(h.login)},
		{Method: http.MethodPost, Path: "/users/logout", Handler: http.HandlerFunc(h.logout)},
		{Method: http.MethodPost, Path: "/users/refresh-token", Handler: http.HandlerFunc(h.refresh)},
		{Method: http.MethodGet, Path: "/users/me", Handler: http.HandlerFunc(h.me), Middleware: []Middleware{h.requireAuth}},
	}
}

func (h *UserHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		h.rw.error(w, r, err)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := h.users.GetByEmail(r.Context(), email); err == nil {
		h.rw.error(w, r, newAPIError(http.StatusBadRequest, "Email already registered"))
		return
	} else if !errors.Is(err, shared.ErrNotFound) {
		h.rw.error(w, r, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.rw.error(w, r, err)
		return
	}

	user := models.NewUser(0, req.Username, email, hash)
	if err := h.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, shared.ErrConflict) {
			err = newAPIError(http.StatusBadRequest, "Username already registered")
		}
		h.rw.error(w, r, err)
		return
	}

	h.rw.json(w, http.StatusCreated, user)
}

// login accepts an OAuth2 password-style form where username carries the email.
func (h *UserHandler) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.rw.error(w, r, fmt.Errorf("%w: invalid form: %v", shared.ErrValidation, err))
		return
	}

	req := loginRequest{Username: r.PostForm.Get("username"), Password: r.PostForm.Get("password")}
	if err := shared.ValidateStruct(req); err != nil {
		h.rw.error(w, r, err)
		return
	}

	user, err := h.tokens.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.rw.error(w, r, err)
		return
	}

	pair, err := h.tokens.IssuePair(user)
	if err != nil {
		h.rw.error(w, r, err)
		return
	}

	h.tokens.SetSessionCookies(w, pair)
	h.rw.json(w, http.StatusOK, detail("ok"))
}

func (h *UserHandler) logout(w http.ResponseWriter, r *http.Request) {
	h.tokens.ClearSessionCookies(w)
	h.rw.json(w, http.StatusOK, detail("ok"))
}

func (h *UserHandler) refresh(w http.ResponseWriter, r *http.Request) {
	cred := auth.Extract(r)
	if cred.Refresh == "" {
		h.rw.error(w, r, newAPIError(http.StatusUnauthorized, "Missing refresh token"))
		return
	}

	access, _, err := h.tokens.Rotate(r.Context(), cred.Refresh)
	if err != nil {
		h.rw.error(w, r, err)
		return
	}

	h.tokens.SetAccessCookie(w, access)
	h.rw.json(w, http.StatusOK, detail("ok"))
}

func (h *UserHandler) me(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.rw.error(w, r, shared.ErrMissingCredential)
		return
	}
	h.rw.json(w, http.StatusOK, user)
}
