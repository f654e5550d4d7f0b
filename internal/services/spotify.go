// Spotify Web API implementation of [Provider]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/search
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/desertthunder/tunegate/internal/models"
	"github.com/desertthunder/tunegate/internal/shared"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// spotifyMaxLimit is the largest page the search endpoint accepts.
	spotifyMaxLimit = 50
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyArtist represents a simplified Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyAlbum represents a simplified Spotify album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []SpotifyArtist `json:"artists"`
	Album        SpotifyAlbum    `json:"album"`
	DurationMS   *int            `json:"duration_ms"`
	PreviewURL   string          `json:"preview_url"`
	ExternalURLs externalURLs    `json:"external_urls"`
	URI          string          `json:"uri"`
}

// spotifySearchResponse is the body of GET /search?type=track.
type spotifySearchResponse struct {
	Tracks *struct {
		Items []SpotifyTrack `json:"items"`
		Total int            `json:"total"`
	} `json:"tracks"`
}

// SpotifyProvider searches the Spotify catalog with an app-level client-credentials token.
//
// The [oauth2] transport fetches and renews the token on demand; no user login is involved.
type SpotifyProvider struct {
	api    *APIClient
	market string
}

// NewSpotifyProvider creates a [SpotifyProvider] from config.
func NewSpotifyProvider(cfg shared.SpotifyConfig) (*SpotifyProvider, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: spotify client_id", shared.ErrMissingConfig)
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_secret", shared.ErrMissingConfig)
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = spotifyTokenURL
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = spotifyBaseURL
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
	}

	// Token requests run on their own bounded client, outside the search request's context.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: timeout})

	return &SpotifyProvider{
		api:    NewAPIClient(Spotify, baseURL, creds.Client(tokenCtx), timeout, cfg.RequestsPerSecond),
		market: cfg.Market,
	}, nil
}

func (p *SpotifyProvider) Name() string { return Spotify }

func (p *SpotifyProvider) Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	if query == "" {
		return []models.SearchResult{}, nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", strconv.Itoa(min(max(limit, 1), spotifyMaxLimit)))
	if p.market != "" {
		params.Set("market", p.market)
	}

	var resp spotifySearchResponse
	if err := p.api.GetJSON(ctx, "/search", params, &resp); err != nil {
		return nil, err
	}
	if resp.Tracks == nil {
		return nil, shared.NewExternalServiceError(Spotify, "decode response", fmt.Errorf("unexpected envelope: tracks missing"))
	}

	results := make([]models.SearchResult, 0, len(resp.Tracks.Items))
	for i, t := range resp.Tracks.Items {
		r, err := t.normalize()
		if err != nil {
			return nil, shared.NewExternalServiceError(Spotify, "decode response", fmt.Errorf("item %d: %w", i, err))
		}
		results = append(results, r)
	}
	return results, nil
}

// normalize maps a track onto a [models.SearchResult], falling back to the preview URL.
// A track without a name, duration or any URL is rejected.
func (t SpotifyTrack) normalize() (models.SearchResult, error) {
	link := t.ExternalURLs.Spotify
	if link == "" {
		link = t.PreviewURL
	}

	switch {
	case t.Name == "":
		return models.SearchResult{}, fmt.Errorf("missing name")
	case link == "":
		return models.SearchResult{}, fmt.Errorf("missing external_urls.spotify and preview_url")
	case t.DurationMS == nil:
		return models.SearchResult{}, fmt.Errorf("missing duration_ms")
	}

	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}

	var cover string
	if len(t.Album.Images) > 0 {
		cover = t.Album.Images[0].URL
	}

	seconds := *t.DurationMS / 1000
	return models.SearchResult{
		Name:          t.Name,
		Author:        strings.Join(artists, ", "),
		Album:         t.Album.Name,
		DurationText:  shared.FormatDuration(seconds),
		Duration:      seconds,
		AlbumCoverURL: cover,
		URL:           link,
	}, nil
}
