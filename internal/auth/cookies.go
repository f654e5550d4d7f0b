package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/desertthunder/tunegate/internal/models"
	"github.com/desertthunder/tunegate/internal/shared"
)

const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
)

// Outcome classifies the session material found on a request.
type Outcome int

const (
	// CredentialAbsent means neither session cookie was sent.
	CredentialAbsent Outcome = iota
	// CredentialRefreshOnly means the access cookie expired client-side but the refresh cookie remains.
	CredentialRefreshOnly
	// CredentialPresent means an access token was sent; it has not been verified yet.
	CredentialPresent
)

func (o Outcome) String() string {
	switch o {
	case CredentialPresent:
		return "present"
	case CredentialRefreshOnly:
		return "refresh-only"
	default:
		return "absent"
	}
}

// Credential is the session material extracted from a request.
type Credential struct {
	Outcome Outcome
	Access  string
	Refresh string
}

// Extract reads the session cookies from r.
func Extract(r *http.Request) Credential {
	var c Credential
	if ck, err := r.Cookie(AccessCookie); err == nil && ck.Value != "" {
		c.Access = ck.Value
	}
	if ck, err := r.Cookie(RefreshCookie); err == nil && ck.Value != "" {
		c.Refresh = ck.Value
	}

	switch {
	case c.Access != "":
		c.Outcome = CredentialPresent
	case c.Refresh != "":
		c.Outcome = CredentialRefreshOnly
	default:
		c.Outcome = CredentialAbsent
	}
	return c
}

// Err is the error for a credential that cannot be verified as-is.
func (c Credential) Err() error {
	switch c.Outcome {
	case CredentialRefreshOnly:
		return shared.ErrAccessMissingRefreshPresent
	case CredentialAbsent:
		return shared.ErrMissingCredential
	}
	return nil
}

// Authorize extracts the access cookie from r and verifies it.
func (m *Manager) Authorize(r *http.Request) (*models.User, error) {
	c := Extract(r)
	if err := c.Err(); err != nil {
		return nil, err
	}
	return m.Verify(r.Context(), c.Access)
}

// SetSessionCookies writes both session cookies.
func (m *Manager) SetSessionCookies(w http.ResponseWriter, p Pair) {
	http.SetCookie(w, m.cookie(AccessCookie, p.Access, m.accessTTL))
	http.SetCookie(w, m.cookie(RefreshCookie, p.Refresh, m.refreshTTL))
}

// SetAccessCookie writes a new access cookie and leaves the refresh cookie alone.
func (m *Manager) SetAccessCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, m.cookie(AccessCookie, token, m.accessTTL))
}

// ClearSessionCookies expires both session cookies on the client.
func (m *Manager) ClearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		c := m.cookie(name, "", 0)
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		http.SetCookie(w, c)
	}
}

func (m *Manager) cookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Expires:  m.now().Add(ttl),
		HttpOnly: true,
		Secure:   m.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

type userKey struct{}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the authenticated user attached by [Middleware].
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userKey{}).(*models.User)
	return user, ok && user != nil
}

// Middleware rejects requests without a verified access token through onError
// and attaches the account to the request context otherwise.
func Middleware(m *Manager, onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := m.Authorize(r)
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}
