package services

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/tunegate/internal/models"
	"github.com/desertthunder/tunegate/internal/shared"
)

const (
	MailRu  = "mailru"
	Spotify = "spotify"
)

// Provider is an external music catalog.
//
// Search accepts a free-text query and a result-count hint and returns zero or more
// normalized results. Every failure is a [*shared.ExternalServiceError].
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error)
}

// Registry holds the enabled providers by name.
type Registry map[string]Provider

// Get returns the provider registered under name.
func (r Registry) Get(name string) (Provider, error) {
	p, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrUnknownProvider, name)
	}
	return p, nil
}

// Names returns the registered provider names in sorted order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewRegistry builds every provider enabled in cfg, each wrapped in a [Breaker].
func NewRegistry(cfg shared.ProvidersConfig, client *http.Client, logger *log.Logger) (Registry, error) {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	reg := Registry{}

	if cfg.MailRu.Enabled {
		reg[MailRu] = NewBreaker(NewMailRuProvider(cfg.MailRu, client), logger)
	}

	if cfg.Spotify.Enabled {
		sp, err := NewSpotifyProvider(cfg.Spotify)
		if err != nil {
			return nil, err
		}
		reg[Spotify] = NewBreaker(sp, logger)
	}

	if len(reg) == 0 {
		return nil, fmt.Errorf("%w: no search providers enabled", shared.ErrInvalidConfig)
	}

	return reg, nil
}
