// Package auth issues, verifies and rotates the signed session tokens carried in cookies.
//
// Access and refresh tokens share one claim layout and differ only in lifetime.
// Verification checks signature and expiry, then performs one active-account lookup,
// so deactivating an account revokes all of its outstanding tokens on the next request.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/desertthunder/tunegate/internal/models"
	"github.com/desertthunder/tunegate/internal/shared"
)

// AccountStore resolves accounts for login and session verification.
type AccountStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetActive(ctx context.Context, id string) (*models.User, error)
}

// Claims are the JWT claims of both token kinds. The subject is the user ID.
type Claims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
}

// Pair is the result of a successful login.
type Pair struct {
	Access         string
	AccessExpires  time.Time
	Refresh        string
	RefreshExpires time.Time
}

// Manager is the token lifecycle manager.
type Manager struct {
	secret        []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	secureCookies bool
	accounts      AccountStore
	now           func() time.Time
}

// Option configures a [Manager].
type Option func(*Manager)

// WithClock replaces the wall clock used for issuing and verifying tokens.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithSecureCookies marks session cookies Secure.
func WithSecureCookies(secure bool) Option {
	return func(m *Manager) { m.secureCookies = secure }
}

// NewManager creates a [Manager] signing with HS256 under secret.
func NewManager(secret string, accessTTL, refreshTTL time.Duration, accounts AccountStore, opts ...Option) (*Manager, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: secret key is required", shared.ErrInvalidConfig)
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, fmt.Errorf("%w: token lifetimes must be positive", shared.ErrInvalidConfig)
	}

	m := &Manager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		accounts:   accounts,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// NewManagerFromConfig creates a [Manager] from the [auth] config section.
func NewManagerFromConfig(cfg shared.AuthConfig, accounts AccountStore, opts ...Option) (*Manager, error) {
	opts = append([]Option{WithSecureCookies(cfg.SecureCookies)}, opts...)
	return NewManager(cfg.SecretKey, cfg.AccessTTL(), cfg.RefreshTTL(), accounts, opts...)
}

// IssueAccess signs a short-lived token for subject.
func (m *Manager) IssueAccess(subject, name string) (string, time.Time, error) {
	return m.issue(subject, name, m.accessTTL)
}

// IssueRefresh signs a long-lived token for subject.
func (m *Manager) IssueRefresh(subject, name string) (string, time.Time, error) {
	return m.issue(subject, name, m.refreshTTL)
}

// IssuePair signs an access and a refresh token for user.
func (m *Manager) IssuePair(user *models.User) (Pair, error) {
	access, accessExp, err := m.IssueAccess(user.ID(), user.Username())
	if err != nil {
		return Pair{}, err
	}
	refresh, refreshExp, err := m.IssueRefresh(user.ID(), user.Username())
	if err != nil {
		return Pair{}, err
	}
	return Pair{Access: access, AccessExpires: accessExp, Refresh: refresh, RefreshExpires: refreshExp}, nil
}

func (m *Manager) issue(subject, name string, ttl time.Duration) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, fmt.Errorf("%w: subject", shared.ErrMissingArgument)
	}

	now := m.now()
	expires := now.Add(ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        shared.GenerateID(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Name: name,
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expires, nil
}

// Parse checks signature and expiry without consulting the account store.
func (m *Manager) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, shared.ErrTokenExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %v", shared.ErrTokenMalformed, err)
	case claims.Subject == "":
		return nil, fmt.Errorf("%w: token has no subject", shared.ErrTokenMalformed)
	}

	return claims, nil
}

// Verify parses tokenString and resolves its subject to an active account.
//
// Fails with [shared.ErrTokenExpired], [shared.ErrTokenMalformed] or [shared.ErrSubjectInactive].
func (m *Manager) Verify(ctx context.Context, tokenString string) (*models.User, error) {
	claims, err := m.Parse(tokenString)
	if err != nil {
		return nil, err
	}

	user, err := m.accounts.GetActive(ctx, claims.Subject)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", shared.ErrSubjectInactive, claims.Subject)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	return user, nil
}

// Rotate verifies a refresh token and issues a new access token for the same subject.
//
// The refresh token is not renewed and keeps its original expiry.
func (m *Manager) Rotate(ctx context.Context, refresh string) (string, time.Time, error) {
	user, err := m.Verify(ctx, refresh)
	if err != nil {
		return "", time.Time{}, err
	}
	return m.IssueAccess(user.ID(), user.Username())
}

// Authenticate checks an email and password pair against the account store.
//
// Unknown email, wrong password and inactive account all fail with [shared.ErrCredentialInvalid].
func (m *Manager) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := m.accounts.GetByEmail(ctx, email)
	if errors.Is(err, shared.ErrNotFound) {
		CheckPassword(string(dummyHash), password)
		return nil, shared.ErrCredentialInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if !CheckPassword(user.PasswordHash(), password) || !user.IsActive() {
		return nil, shared.ErrCredentialInvalid
	}

	return user, nil
}
