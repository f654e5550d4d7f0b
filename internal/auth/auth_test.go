package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/tunegate/internal/models"
	"github.com/desertthunder/tunegate/internal/shared"
	tu "github.com/desertthunder/tunegate/internal/testing"
)

const testSecret = "test-secret-key"

// accounts is an in-memory [AccountStore] that counts GetActive lookups.
type accounts struct {
	mu      sync.Mutex
	byID    map[string]*models.User
	lookups int
	err     error
}

func newAccounts(users ...*models.User) *accounts {
	a := &accounts{byID: make(map[string]*models.User)}
	for _, u := range users {
		a.byID[u.ID()] = u
	}
	return a
}

func (a *accounts) GetByEmail(_ context.Context, email string) (*models.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	for _, u := range a.byID {
		if u.Email() == strings.ToLower(email) {
			return u, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (a *accounts) GetActive(_ context.Context, id string) (*models.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lookups++
	if a.err != nil {
		return nil, a.err
	}
	u, ok := a.byID[id]
	if !ok || !u.IsActive() {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

func newUser(t *testing.T, id, email, password string) *models.User {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	u := models.NewUser(1, "tester", email, hash)
	u.SetID(id)
	return u
}

func newTestManager(t *testing.T, store AccountStore, clock *tu.Clock) *Manager {
	t.Helper()
	m, err := NewManager(testSecret, 30*time.Minute, 7*24*time.Hour, store, WithClock(clock.Now))
	require.NoError(t, err)
	return m
}

func TestNewManager(t *testing.T) {
	_, err := NewManager("", time.Minute, time.Hour, newAccounts())
	assert.ErrorIs(t, err, shared.ErrInvalidConfig)

	_, err = NewManager(testSecret, 0, time.Hour, newAccounts())
	assert.ErrorIs(t, err, shared.ErrInvalidConfig)

	cfg := shared.DefaultConfig().Auth
	cfg.SecretKey = testSecret
	m, err := NewManagerFromConfig(cfg, newAccounts())
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, m.accessTTL)
	assert.Equal(t, 7*24*time.Hour, m.refreshTTL)
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("valid token of active subject", func(t *testing.T) {
		clock := tu.NewClock(start)
		user := newUser(t, "user-1", "a@example.com", "password123")
		store := newAccounts(user)
		m := newTestManager(t, store, clock)

		token, expires, err := m.IssueAccess(user.ID(), user.Username())
		require.NoError(t, err)
		assert.Equal(t, start.Add(30*time.Minute), expires)

		got, err := m.Verify(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, user.ID(), got.ID())
		assert.Equal(t, 1, store.lookups, "verify performs exactly one account lookup")
	})

	t.Run("deactivated subject", func(t *testing.T) {
		clock := tu.NewClock(start)
		user := newUser(t, "user-1", "a@example.com", "password123")
		m := newTestManager(t, newAccounts(user), clock)

		token, _, err := m.IssueAccess(user.ID(), "")
		require.NoError(t, err)

		user.SetActive(false)

		_, err = m.Verify(ctx, token)
		assert.ErrorIs(t, err, shared.ErrSubjectInactive)
	})

	t.Run("unknown subject", func(t *testing.T) {
		clock := tu.NewClock(start)
		m := newTestManager(t, newAccounts(), clock)

		token, _, err := m.IssueAccess("ghost", "")
		require.NoError(t, err)

		_, err = m.Verify(ctx, token)
		assert.ErrorIs(t, err, shared.ErrSubjectInactive)
	})

	t.Run("expired token", func(t *testing.T) {
		clock := tu.NewClock(start)
		user := newUser(t, "user-1", "a@example.com", "password123")
		store := newAccounts(user)
		m := newTestManager(t, store, clock)

		token, _, err := m.IssueAccess(user.ID(), "")
		require.NoError(t, err)

		clock.Advance(31 * time.Minute)

		_, err = m.Verify(ctx, token)
		assert.ErrorIs(t, err, shared.ErrTokenExpired)
		assert.Zero(t, store.lookups, "expired tokens never reach the account store")
	})

	t.Run("expired token of deactivated subject is still expired", func(t *testing.T) {
		clock := tu.NewClock(start)
		user := newUser(t, "user-1", "a@example.com", "password123")
		m := newTestManager(t, newAccounts(user), clock)

		token, _, err := m.IssueAccess(user.ID(), "")
		require.NoError(t, err)

		user.SetActive(false)
		clock.Advance(time.Hour)

		_, err = m.Verify(ctx, token)
		assert.ErrorIs(t, err, shared.ErrTokenExpired)
	})

	t.Run("malformed", func(t *testing.T) {
		clock := tu.NewClock(start)
		user := newUser(t, "user-1", "a@example.com", "password123")
		m := newTestManager(t, newAccounts(user), clock)

		other, err := NewManager("another-secret", time.Minute, time.Hour, newAccounts(user), WithClock(clock.Now))
		require.NoError(t, err)
		foreign, _, err := other.IssueAccess(user.ID(), "")
		require.NoError(t, err)

		none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   user.ID(),
				ExpiresAt: jwt.NewNumericDate(start.Add(time.Hour)),
			},
		})
		unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		noSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(start.Add(time.Hour))},
		})
		anonymous, err := noSubject.SignedString([]byte(testSecret))
		require.NoError(t, err)

		noExpiry := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: user.ID()},
		})
		eternal, err := noExpiry.SignedString([]byte(testSecret))
		require.NoError(t, err)

		tests := []struct {
			name  string
			token string
		}{
			{"garbage", "not-a-jwt"},
			{"empty", ""},
			{"wrong signature", foreign},
			{"alg none", unsigned},
			{"no subject", anonymous},
			{"no expiry", eternal},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := m.Verify(ctx, tt.token)
				assert.ErrorIs(t, err, shared.ErrTokenMalformed)
			})
		}
	})

	t.Run("store failure is not an auth failure", func(t *testing.T) {
		clock := tu.NewClock(start)
		store := newAccounts()
		store.err = errors.New("database is locked")
		m := newTestManager(t, store, clock)

		token, _, err := m.IssueAccess("user-1", "")
		require.NoError(t, err)

		_, err = m.Verify(ctx, token)
		require.Error(t, err)
		assert.NotErrorIs(t, err, shared.ErrSubjectInactive)
		assert.NotErrorIs(t, err, shared.ErrTokenMalformed)
	})
}

func TestRotate(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("issues fresh access token", func(t *testing.T) {
		clock := tu.NewClock(start)
		user := newUser(t, "user-1", "a@example.com", "password123")
		m := newTestManager(t, newAccounts(user), clock)

		pair, err := m.IssuePair(user)
		require.NoError(t, err)
		assert.True(t, pair.RefreshExpires.After(pair.AccessExpires))

		clock.Advance(time.Hour)

		_, err = m.Verify(ctx, pair.Access)
		require.ErrorIs(t, err, shared.ErrTokenExpired)

		access, expires, err := m.Rotate(ctx, pair.Refresh)
		require.NoError(t, err)
		assert.NotEqual(t, pair.Access, access)
		assert.Equal(t, clock.Now().Add(30*time.Minute), expires)

		got, err := m.Verify(ctx, access)
		require.NoError(t, err)
		assert.Equal(t, user.ID(), got.ID())
	})

	t.Run("refresh keeps its original expiry", func(t *testing.T) {
		clock := tu.NewClock(start)
		user := newUser(t, "user-1", "a@example.com", "password123")
		m := newTestManager(t, newAccounts(user), clock)

		pair, err := m.IssuePair(user)
		require.NoError(t, err)

		clock.Advance(6 * 24 * time.Hour)
		_, _, err = m.Rotate(ctx, pair.Refresh)
		require.NoError(t, err)

		clock.Advance(2 * 24 * time.Hour)
		_, _, err = m.Rotate(ctx, pair.Refresh)
		assert.ErrorIs(t, err, shared.ErrTokenExpired)
	})

	t.Run("deactivated subject cannot rotate", func(t *testing.T) {
		clock := tu.NewClock(start)
		user := newUser(t, "user-1", "a@example.com", "password123")
		m := newTestManager(t, newAccounts(user), clock)

		pair, err := m.IssuePair(user)
		require.NoError(t, err)

		user.SetActive(false)
		_, _, err = m.Rotate(ctx, pair.Refresh)
		assert.ErrorIs(t, err, shared.ErrSubjectInactive)
	})
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	clock := tu.NewClock(time.Now())
	user := newUser(t, "user-1", "a@example.com", "password123")
	inactive := newUser(t, "user-2", "b@example.com", "password123")
	inactive.SetActive(false)
	m := newTestManager(t, newAccounts(user, inactive), clock)

	got, err := m.Authenticate(ctx, "a@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, user.ID(), got.ID())

	tests := []struct {
		name, email, password string
	}{
		{"wrong password", "a@example.com", "wrong-password"},
		{"unknown email", "nobody@example.com", "password123"},
		{"inactive account", "b@example.com", "password123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Authenticate(ctx, tt.email, tt.password)
			assert.Equal(t, shared.ErrCredentialInvalid, err, "failures must be indistinguishable")
		})
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-password")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-password", hash)
	assert.True(t, CheckPassword(hash, "s3cret-password"))
	assert.False(t, CheckPassword(hash, "other"))
	assert.False(t, CheckPassword("not-a-hash", "s3cret-password"))
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		cookies []*http.Cookie
		want    Outcome
		err     error
	}{
		{"absent", nil, CredentialAbsent, shared.ErrMissingCredential},
		{"refresh only", []*http.Cookie{{Name: RefreshCookie, Value: "r"}}, CredentialRefreshOnly, shared.ErrAccessMissingRefreshPresent},
		{"access only", []*http.Cookie{{Name: AccessCookie, Value: "a"}}, CredentialPresent, nil},
		{"both", []*http.Cookie{{Name: AccessCookie, Value: "a"}, {Name: RefreshCookie, Value: "r"}}, CredentialPresent, nil},
		{"empty access", []*http.Cookie{{Name: AccessCookie, Value: ""}}, CredentialAbsent, shared.ErrMissingCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/users/me", nil)
			for _, c := range tt.cookies {
				r.AddCookie(c)
			}

			c := Extract(r)
			assert.Equal(t, tt.want, c.Outcome, c.Outcome.String())
			if tt.err == nil {
				assert.NoError(t, c.Err())
			} else {
				assert.ErrorIs(t, c.Err(), tt.err)
			}
		})
	}
}

func TestCookies(t *testing.T) {
	clock := tu.NewClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	user := newUser(t, "user-1", "a@example.com", "password123")
	m := newTestManager(t, newAccounts(user), clock)

	t.Run("session cookies", func(t *testing.T) {
		pair, err := m.IssuePair(user)
		require.NoError(t, err)

		w := httptest.NewRecorder()
		m.SetSessionCookies(w, pair)

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 2)

		byName := map[string]*http.Cookie{}
		for _, c := range cookies {
			byName[c.Name] = c
			assert.True(t, c.HttpOnly)
			assert.Equal(t, "/", c.Path)
			assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
		}

		assert.Equal(t, pair.Access, byName[AccessCookie].Value)
		assert.Equal(t, 1800, byName[AccessCookie].MaxAge)
		assert.Equal(t, pair.Refresh, byName[RefreshCookie].Value)
		assert.Equal(t, 7*24*3600, byName[RefreshCookie].MaxAge)
	})

	t.Run("clear", func(t *testing.T) {
		w := httptest.NewRecorder()
		m.ClearSessionCookies(w)

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 2)
		for _, c := range cookies {
			assert.Empty(t, c.Value)
			assert.Equal(t, -1, c.MaxAge)
		}
	})
}

func TestMiddleware(t *testing.T) {
	clock := tu.NewClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	user := newUser(t, "user-1", "a@example.com", "password123")
	m := newTestManager(t, newAccounts(user), clock)

	var failure error
	onError := func(w http.ResponseWriter, _ *http.Request, err error) {
		failure = err
		w.WriteHeader(http.StatusUnauthorized)
	}

	handler := Middleware(m, onError)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFromContext(r.Context())
		if !ok {
			t.Error("expected user in context")
			return
		}
		w.Write([]byte(u.ID()))
	}))

	t.Run("authorized", func(t *testing.T) {
		failure = nil
		token, _, err := m.IssueAccess(user.ID(), "")
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/users/me", nil)
		r.AddCookie(&http.Cookie{Name: AccessCookie, Value: token})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, user.ID(), w.Body.String())
		assert.NoError(t, failure)
	})

	t.Run("refresh only", func(t *testing.T) {
		failure = nil
		r := httptest.NewRequest(http.MethodGet, "/users/me", nil)
		r.AddCookie(&http.Cookie{Name: RefreshCookie, Value: "whatever"})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.ErrorIs(t, failure, shared.ErrAccessMissingRefreshPresent)
	})

	t.Run("absent", func(t *testing.T) {
		failure = nil
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/me", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.ErrorIs(t, failure, shared.ErrMissingCredential)
	})

	t.Run("no user in bare context", func(t *testing.T) {
		_, ok := UserFromContext(context.Background())
		assert.False(t, ok)
	})
}
