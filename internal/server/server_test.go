package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/tunegate/internal/auth"
	"github.com/desertthunder/tunegate/internal/models"
	"github.com/desertthunder/tunegate/internal/ratelimit"
	"github.com/desertthunder/tunegate/internal/repositories"
	"github.com/desertthunder/tunegate/internal/services"
	"github.com/desertthunder/tunegate/internal/shared"
	"github.com/desertthunder/tunegate/internal/store"
	tu "github.com/desertthunder/tunegate/internal/testing"
)

const (
	testOrigin = "http://localhost:5173"
	password   = "correct-horse"
)

var engel = models.SearchResult{
	Name:         "Engel",
	Author:       "Rammstein",
	Album:        "Sehnsucht",
	DurationText: "04:24",
	Duration:     264,
	URL:          "https://example.com/engel.mp3",
}

type env struct {
	srv     *httptest.Server
	handler http.Handler
	clock   *tu.Clock
	users   *repositories.UserRepository
	cache   *store.MemoryStore
}

type envOptions struct {
	limit     int
	providers []services.Provider
}

func newEnv(t *testing.T, opts envOptions) *env {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	require.NoError(t, err)
	require.NoError(t, shared.RunMigrations(db))
	t.Cleanup(func() { db.Close() })

	logger := shared.NewLogger(&bytes.Buffer{})
	clock := tu.NewClock(time.Now())
	ms := store.NewMemoryStoreWithClock(clock.Now)

	users := repositories.NewUserRepository(db)
	tokens, err := auth.NewManager("test-secret", 30*time.Minute, 7*24*time.Hour, users, auth.WithClock(clock.Now))
	require.NoError(t, err)

	if opts.limit == 0 {
		opts.limit = 1000
	}
	limiter, err := ratelimit.New(ms, ratelimit.Options{Limit: opts.limit, Window: time.Minute, FailOpen: true, Logger: logger})
	require.NoError(t, err)

	if opts.providers == nil {
		opts.providers = []services.Provider{&tu.MockProvider{ProviderName: services.MailRu, Results: []models.SearchResult{engel}}}
	}
	reg := services.Registry{}
	for _, p := range opts.providers {
		reg[p.Name()] = p
	}

	s := New(shared.ServerConfig{AllowedOrigin: testOrigin}, Deps{
		Users:      users,
		Playlists:  repositories.NewPlaylistRepository(db),
		Songs:      repositories.NewSongRepository(db),
		Tokens:     tokens,
		Limiter:    limiter,
		Aggregator: services.NewAggregator(ms, reg, time.Hour, logger),
		Logger:     logger,
	})

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	return &env{srv: srv, handler: s.Handler(), clock: clock, users: users, cache: ms}
}

func (e *env) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

type response struct {
	status int
	header http.Header
	body   string
}

func (r response) detail(t *testing.T) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(r.body), &body), r.body)
	d, _ := body["detail"].(string)
	return d
}

func (e *env) do(t *testing.T, c *http.Client, method, path string, body any) response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{status: resp.StatusCode, header: resp.Header, body: string(data)}
}

func (e *env) register(t *testing.T, c *http.Client, username, email string) response {
	t.Helper()
	return e.do(t, c, http.MethodPost, "/users", map[string]string{"username": username, "email": email, "password": password})
}

func (e *env) login(t *testing.T, c *http.Client, email, pass string) response {
	t.Helper()
	resp, err := c.PostForm(e.srv.URL+"/users/token", url.Values{"username": {email}, "password": {pass}})
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{status: resp.StatusCode, header: resp.Header, body: string(data)}
}

// session registers and logs in a fresh user, returning a client holding the cookies.
func (e *env) session(t *testing.T, username, email string) *http.Client {
	t.Helper()
	c := e.client(t)
	require.Equal(t, http.StatusCreated, e.register(t, c, username, email).status)
	require.Equal(t, http.StatusOK, e.login(t, c, email, password).status)
	return c
}

func TestRoot(t *testing.T) {
	e := newEnv(t, envOptions{})

	r := e.do(t, e.client(t), http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, r.status)
	assert.JSONEq(t, `{"detail":"Modern music API. See /search?q=Rammstein"}`, r.body)
	assert.Equal(t, testOrigin, r.header.Get("Access-Control-Allow-Origin"))

	r = e.do(t, e.client(t), http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, r.status)
}

func TestSessionLifecycle(t *testing.T) {
	e := newEnv(t, envOptions{})
	c := e.client(t)

	r := e.register(t, c, "till", "Till@Example.com")
	require.Equal(t, http.StatusCreated, r.status, r.body)
	assert.Contains(t, r.body, `"email":"till@example.com"`)
	assert.NotContains(t, r.body, "password")

	t.Run("wrong password", func(t *testing.T) {
		r := e.login(t, c, "till@example.com", "wrong-password")
		assert.Equal(t, http.StatusUnauthorized, r.status)
		assert.Equal(t, "Incorrect email or password", r.detail(t))
		assert.Equal(t, "Bearer", r.header.Get("WWW-Authenticate"))
	})

	t.Run("unknown email", func(t *testing.T) {
		r := e.login(t, c, "nobody@example.com", password)
		assert.Equal(t, http.StatusUnauthorized, r.status)
		assert.Equal(t, "Incorrect email or password", r.detail(t))
	})

	t.Run("missing form field", func(t *testing.T) {
		r := e.login(t, c, "till@example.com", "")
		assert.Equal(t, http.StatusUnprocessableEntity, r.status)
	})

	r = e.do(t, c, http.MethodGet, "/users/me", nil)
	require.Equal(t, http.StatusUnauthorized, r.status)
	assert.Equal(t, "Missing access token", r.detail(t))

	r = e.login(t, c, "till@example.com", password)
	require.Equal(t, http.StatusOK, r.status, r.body)
	assert.JSONEq(t, `{"detail":"ok"}`, r.body)

	cookies := map[string]*http.Cookie{}
	for _, ck := range (&http.Response{Header: r.header}).Cookies() {
		cookies[ck.Name] = ck
	}
	require.Contains(t, cookies, auth.AccessCookie)
	require.Contains(t, cookies, auth.RefreshCookie)
	assert.True(t, cookies[auth.AccessCookie].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[auth.RefreshCookie].SameSite)

	r = e.do(t, c, http.MethodGet, "/users/me", nil)
	require.Equal(t, http.StatusOK, r.status, r.body)
	assert.Contains(t, r.body, `"username":"till"`)

	e.clock.Advance(31 * time.Minute)

	r = e.do(t, c, http.MethodGet, "/users/me", nil)
	require.Equal(t, http.StatusUnauthorized, r.status)
	assert.Equal(t, "Token has expired", r.detail(t))

	r = e.do(t, c, http.MethodPost, "/users/refresh-token", nil)
	require.Equal(t, http.StatusOK, r.status, r.body)

	r = e.do(t, c, http.MethodGet, "/users/me", nil)
	assert.Equal(t, http.StatusOK, r.status, "rotated access token should verify")

	t.Run("deactivated account", func(t *testing.T) {
		user, err := e.users.GetByEmail(context.Background(), "till@example.com")
		require.NoError(t, err)
		require.NoError(t, e.users.SetActive(context.Background(), user.ID(), false))
		t.Cleanup(func() { e.users.SetActive(context.Background(), user.ID(), true) })

		r := e.do(t, c, http.MethodGet, "/users/me", nil)
		assert.Equal(t, http.StatusUnauthorized, r.status)
		assert.Equal(t, "Could not validate credentials", r.detail(t))

		r = e.do(t, c, http.MethodPost, "/users/refresh-token", nil)
		assert.Equal(t, http.StatusUnauthorized, r.status, "refresh must not outlive the account")
	})

	r = e.do(t, c, http.MethodPost, "/users/logout", nil)
	assert.Equal(t, http.StatusOK, r.status)

	r = e.do(t, c, http.MethodGet, "/users/me", nil)
	assert.Equal(t, http.StatusUnauthorized, r.status)
	assert.Equal(t, "Missing access token", r.detail(t))

	r = e.do(t, c, http.MethodPost, "/users/refresh-token", nil)
	assert.Equal(t, http.StatusUnauthorized, r.status)
	assert.Equal(t, "Missing refresh token", r.detail(t))
}

func TestCredentialOutcomes(t *testing.T) {
	e := newEnv(t, envOptions{})

	t.Run("refresh only", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
		req.AddCookie(&http.Cookie{Name: auth.RefreshCookie, Value: "anything"})
		w := httptest.NewRecorder()
		e.handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"detail":"Missing access token, but refresh token found"}`, w.Body.String())
	})

	t.Run("garbage access token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
		req.AddCookie(&http.Cookie{Name: auth.AccessCookie, Value: "not-a-jwt"})
		w := httptest.NewRecorder()
		e.handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"detail":"Could not validate credentials"}`, w.Body.String())
		assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
	})

	t.Run("garbage refresh token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/users/refresh-token", nil)
		req.AddCookie(&http.Cookie{Name: auth.RefreshCookie, Value: "not-a-jwt"})
		w := httptest.NewRecorder()
		e.handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, w.Result().Cookies(), "no access cookie on failed rotation")
	})
}

func TestRegister(t *testing.T) {
	e := newEnv(t, envOptions{})
	c := e.client(t)

	require.Equal(t, http.StatusCreated, e.register(t, c, "flake", "flake@example.com").status)

	tests := []struct {
		name   string
		body   any
		status int
		detail string
	}{
		{
			name:   "duplicate email",
			body:   map[string]string{"username": "other", "email": "FLAKE@example.com", "password": password},
			status: http.StatusBadRequest,
			detail: "Email already registered",
		},
		{
			name:   "duplicate username",
			body:   map[string]string{"username": "flake", "email": "new@example.com", "password": password},
			status: http.StatusBadRequest,
			detail: "Username already registered",
		},
		{
			name:   "short password",
			body:   map[string]string{"username": "shorty", "email": "s@example.com", "password": "123"},
			status: http.StatusUnprocessableEntity,
			detail: "field 'password' must be at least 8 characters long",
		},
		{
			name:   "bad email",
			body:   map[string]string{"username": "bademail", "email": "not-an-email", "password": password},
			status: http.StatusUnprocessableEntity,
			detail: "field 'email' must be a valid email address",
		},
		{
			name:   "not json",
			body:   "plain string",
			status: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := e.do(t, c, http.MethodPost, "/users", tt.body)
			assert.Equal(t, tt.status, r.status, r.body)
			if tt.detail != "" {
				assert.Contains(t, r.detail(t), tt.detail)
			}
		})
	}
}

func TestSearch(t *testing.T) {
	t.Run("requires a session", func(t *testing.T) {
		e := newEnv(t, envOptions{})
		r := e.do(t, e.client(t), http.MethodGet, "/search?q=Rammstein", nil)
		assert.Equal(t, http.StatusUnauthorized, r.status)
	})

	t.Run("single provider caches results", func(t *testing.T) {
		mailru := &tu.MockProvider{ProviderName: services.MailRu, Results: []models.SearchResult{engel}}
		e := newEnv(t, envOptions{providers: []services.Provider{mailru}})
		c := e.session(t, "richard", "richard@example.com")

		for range 2 {
			r := e.do(t, c, http.MethodGet, "/search?q=Rammstein&mcount=5", nil)
			require.Equal(t, http.StatusOK, r.status, r.body)

			var results []models.SearchResult
			require.NoError(t, json.Unmarshal([]byte(r.body), &results))
			require.Len(t, results, 1)
			assert.Equal(t, "Engel", results[0].Name)
		}

		assert.Equal(t, 1, mailru.Calls(), "second request should be served from cache")
		q, limit := mailru.LastCall()
		assert.Equal(t, "Rammstein", q)
		assert.Equal(t, 5, limit)
	})

	t.Run("empty query", func(t *testing.T) {
		mailru := &tu.MockProvider{ProviderName: services.MailRu}
		e := newEnv(t, envOptions{providers: []services.Provider{mailru}})
		c := e.session(t, "oliver", "oliver@example.com")

		r := e.do(t, c, http.MethodGet, "/search?q=%20%20", nil)
		require.Equal(t, http.StatusOK, r.status)
		assert.JSONEq(t, `[]`, r.body)
		assert.Zero(t, mailru.Calls())
	})

	t.Run("both providers", func(t *testing.T) {
		mailru := &tu.MockProvider{ProviderName: services.MailRu, Results: []models.SearchResult{engel}}
		spotify := &tu.MockProvider{ProviderName: services.Spotify}
		e := newEnv(t, envOptions{providers: []services.Provider{mailru, spotify}})
		c := e.session(t, "paul", "paul@example.com")

		r := e.do(t, c, http.MethodGet, "/search?q=Rammstein&spotify=true&scount=20", nil)
		require.Equal(t, http.StatusOK, r.status, r.body)

		var body map[string][]models.SearchResult
		require.NoError(t, json.Unmarshal([]byte(r.body), &body))
		assert.Len(t, body[services.MailRu], 1)
		assert.NotNil(t, body[services.Spotify])
		assert.Empty(t, body[services.Spotify])

		_, limit := spotify.LastCall()
		assert.Equal(t, 20, limit)
		_, limit = mailru.LastCall()
		assert.Equal(t, 100, limit, "count defaults to 100")
	})

	t.Run("upstream failure maps to 502", func(t *testing.T) {
		failing := &tu.MockProvider{ProviderName: services.MailRu, Err: errors.New("connection reset")}
		e := newEnv(t, envOptions{providers: []services.Provider{failing}})
		c := e.session(t, "schneider", "schneider@example.com")

		r := e.do(t, c, http.MethodGet, "/search?q=Rammstein", nil)
		assert.Equal(t, http.StatusBadGateway, r.status)
		assert.Equal(t, "External service error", r.detail(t))

		key := services.MakeKey("Rammstein", 100, services.MailRu)
		_, ok, err := e.cache.Get(context.Background(), key)
		require.NoError(t, err)
		assert.False(t, ok, "failed fetch must not be cached")
	})

	t.Run("invalid parameters", func(t *testing.T) {
		e := newEnv(t, envOptions{})
		c := e.session(t, "christoph", "christoph@example.com")

		for _, path := range []string{
			"/search",
			"/search?q=x&mcount=0",
			"/search?q=x&mcount=301",
			"/search?q=x&mcount=abc",
			"/search?q=x&mailru=maybe",
			"/search?q=x&mailru=false",
			"/search?q=x&spotify=true",
		} {
			r := e.do(t, c, http.MethodGet, path, nil)
			assert.Equal(t, http.StatusUnprocessableEntity, r.status, path)
		}

		r := e.do(t, c, http.MethodGet, "/search?q=x&mcount=300", nil)
		assert.Equal(t, http.StatusOK, r.status)
	})
}

func TestRateLimit(t *testing.T) {
	e := newEnv(t, envOptions{limit: 3})
	c := e.client(t)

	for range 3 {
		require.Equal(t, http.StatusOK, e.do(t, c, http.MethodGet, "/", nil).status)
	}

	r := e.do(t, c, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusTooManyRequests, r.status)
	assert.Equal(t, "Too many requests", r.detail(t))
	assert.Equal(t, testOrigin, r.header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", r.header.Get("Access-Control-Allow-Credentials"))

	r = e.do(t, c, http.MethodOptions, "/search", nil)
	assert.Equal(t, http.StatusNoContent, r.status, "pre-flights are not throttled")
	assert.Equal(t, testOrigin, r.header.Get("Access-Control-Allow-Origin"))

	r = e.login(t, c, "x@example.com", password)
	assert.Equal(t, http.StatusTooManyRequests, r.status, "limiter runs before authentication")

	e.clock.Advance(61 * time.Second)
	assert.Equal(t, http.StatusOK, e.do(t, c, http.MethodGet, "/", nil).status)
}

func TestPlaylistsAndSongs(t *testing.T) {
	e := newEnv(t, envOptions{})
	owner := e.session(t, "owner", "owner@example.com")
	other := e.session(t, "other", "other@example.com")

	r := e.do(t, owner, http.MethodPost, "/playlists", map[string]string{"name": "Mutter"})
	require.Equal(t, http.StatusCreated, r.status, r.body)

	var playlist struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal([]byte(r.body), &playlist))
	require.NotEmpty(t, playlist.ID)

	song := map[string]any{
		"playlist_id":   playlist.ID,
		"name":          engel.Name,
		"author":        engel.Author,
		"duration_text": engel.DurationText,
		"duration":      engel.Duration,
		"url":           engel.URL,
	}
	r = e.do(t, owner, http.MethodPost, "/songs", song)
	require.Equal(t, http.StatusCreated, r.status, r.body)

	var created struct {
		ID         string `json:"id"`
		PlaylistID string `json:"playlist_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(r.body), &created))
	assert.Equal(t, playlist.ID, created.PlaylistID)

	t.Run("list", func(t *testing.T) {
		r := e.do(t, owner, http.MethodGet, "/playlists", nil)
		require.Equal(t, http.StatusOK, r.status)
		assert.Contains(t, r.body, "Mutter")

		r = e.do(t, other, http.MethodGet, "/playlists", nil)
		require.Equal(t, http.StatusOK, r.status)
		assert.JSONEq(t, `[]`, r.body)

		r = e.do(t, owner, http.MethodGet, "/songs", nil)
		require.Equal(t, http.StatusOK, r.status)
		assert.Contains(t, r.body, "Engel")
	})

	t.Run("get with songs", func(t *testing.T) {
		r := e.do(t, owner, http.MethodGet, "/playlists/"+playlist.ID, nil)
		require.Equal(t, http.StatusOK, r.status)

		var body struct {
			Playlist map[string]any   `json:"playlist"`
			Songs    []map[string]any `json:"songs"`
		}
		require.NoError(t, json.Unmarshal([]byte(r.body), &body))
		assert.Equal(t, "Mutter", body.Playlist["name"])
		assert.Len(t, body.Songs, 1)
	})

	t.Run("foreign access is not found", func(t *testing.T) {
		r := e.do(t, other, http.MethodGet, "/playlists/"+playlist.ID, nil)
		assert.Equal(t, http.StatusNotFound, r.status)
		assert.Equal(t, "Playlist not found", r.detail(t))

		r = e.do(t, other, http.MethodGet, "/songs/"+created.ID, nil)
		assert.Equal(t, http.StatusNotFound, r.status)

		r = e.do(t, other, http.MethodPost, "/songs", song)
		assert.Equal(t, http.StatusNotFound, r.status)
		assert.Equal(t, "Playlist not found or does not belong to the user", r.detail(t))
	})

	t.Run("invalid song", func(t *testing.T) {
		bad := map[string]any{"playlist_id": playlist.ID, "name": "x", "duration_text": "00:01", "url": "not a url"}
		r := e.do(t, owner, http.MethodPost, "/songs", bad)
		assert.Equal(t, http.StatusUnprocessableEntity, r.status)
	})

	t.Run("rename", func(t *testing.T) {
		r := e.do(t, owner, http.MethodPatch, "/playlists/"+playlist.ID, map[string]string{"name": "Reise, Reise"})
		require.Equal(t, http.StatusOK, r.status, r.body)
		assert.Contains(t, r.body, "Reise, Reise")

		r = e.do(t, owner, http.MethodPatch, "/songs/"+created.ID, map[string]string{"name": "Engel (Live)"})
		require.Equal(t, http.StatusOK, r.status, r.body)
		assert.Contains(t, r.body, "Engel (Live)")

		r = e.do(t, owner, http.MethodPatch, "/songs/"+created.ID, map[string]string{})
		assert.Equal(t, http.StatusUnprocessableEntity, r.status)
	})

	t.Run("delete cascades", func(t *testing.T) {
		r := e.do(t, other, http.MethodDelete, "/playlists/"+playlist.ID, nil)
		assert.Equal(t, http.StatusNotFound, r.status)

		r = e.do(t, owner, http.MethodDelete, "/playlists/"+playlist.ID, nil)
		require.Equal(t, http.StatusOK, r.status)
		assert.JSONEq(t, `{"deleted":"Playlist deleted"}`, r.body)

		r = e.do(t, owner, http.MethodGet, "/songs/"+created.ID, nil)
		assert.Equal(t, http.StatusNotFound, r.status)
		assert.Equal(t, "Song not found", r.detail(t))
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
		detail string
	}{
		{shared.NewValidationError("q", "field 'q' is required"), http.StatusUnprocessableEntity, "validation failed: field 'q' is required"},
		{shared.ErrCredentialInvalid, http.StatusUnauthorized, "Incorrect email or password"},
		{shared.ErrTokenExpired, http.StatusUnauthorized, "Token has expired"},
		{shared.ErrTokenMalformed, http.StatusUnauthorized, "Could not validate credentials"},
		{shared.ErrSubjectInactive, http.StatusUnauthorized, "Could not validate credentials"},
		{shared.ErrMissingCredential, http.StatusUnauthorized, "Missing access token"},
		{shared.ErrAccessMissingRefreshPresent, http.StatusUnauthorized, "Missing access token, but refresh token found"},
		{shared.ErrRateLimitExceeded, http.StatusTooManyRequests, "Too many requests"},
		{shared.NewExternalServiceError("mailru", "search", errors.New("boom")), http.StatusBadGateway, "External service error"},
		{shared.ErrStoreUnavailable, http.StatusServiceUnavailable, "Service unavailable"},
		{shared.ErrNotFound, http.StatusNotFound, "Not found"},
		{shared.ErrConflict, http.StatusBadRequest, "Already exists"},
		{newAPIError(http.StatusTeapot, "short and stout"), http.StatusTeapot, "short and stout"},
		{errors.New("database is locked"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status, detail := statusFor(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.detail, detail)
		})
	}
}

func TestMiddleware(t *testing.T) {
	var logs bytes.Buffer
	logger := shared.NewLogger(&logs)
	rw := &responder{logger: logger}

	t.Run("recover", func(t *testing.T) {
		router := NewBasicRouter()
		router.Use(Recover(rw))
		router.Handle(http.MethodGet, "/boom", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("kaboom")
		}))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"detail":"Internal server error"}`, w.Body.String())
		assert.Contains(t, logs.String(), "kaboom")
	})

	t.Run("access log", func(t *testing.T) {
		logs.Reset()
		h := AccessLog(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/logged", nil))
		assert.Contains(t, logs.String(), "/logged")
		assert.Contains(t, logs.String(), "202")
	})

	t.Run("cors", func(t *testing.T) {
		h := CORS(testOrigin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/search", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")

		w = httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, testOrigin, w.Header().Get("Access-Control-Allow-Origin"))

		w = httptest.NewRecorder()
		CORS("")(http.NotFoundHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("route middleware order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mark("global-1"), mark("global-2"))
		router.Handle(http.MethodGet, "/ordered", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}), mark("route"))

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ordered", nil))
		assert.Equal(t, []string{"global-1", "global-2", "route", "handler"}, order)

		order = nil
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ordered", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
		assert.Equal(t, []string{"global-1", "global-2"}, order)
	})
}

func TestServe(t *testing.T) {
	logger := shared.NewLogger(&bytes.Buffer{})
	s := New(shared.ServerConfig{Host: "127.0.0.1", Port: 0, ShutdownTimeoutSeconds: 1}, Deps{Logger: logger})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "Modern music API")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
