package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/tunegate/internal/models"
	"github.com/desertthunder/tunegate/internal/shared"
	"github.com/desertthunder/tunegate/internal/store"
)

// Aggregator is a cache-aside front for the registered providers.
//
// A hit returns the cached results verbatim. A miss calls the provider and caches
// the results, including empty ones, before returning. Failed fetches are never cached.
type Aggregator struct {
	cache     store.Cache
	providers Registry
	ttl       time.Duration
	logger    *log.Logger
}

// NewAggregator creates an [Aggregator] caching results in cache for ttl.
func NewAggregator(cache store.Cache, providers Registry, ttl time.Duration, logger *log.Logger) *Aggregator {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Aggregator{cache: cache, providers: providers, ttl: ttl, logger: logger}
}

// Providers returns the registry searched by the aggregator.
func (a *Aggregator) Providers() Registry { return a.providers }

// MakeKey digests the normalized (query, limit, provider) tuple into a cache key.
func MakeKey(query string, limit int, provider string) string {
	tuple, _ := json.Marshal([]any{shared.NormalizeQuery(query), limit, provider})
	sum := sha256.Sum256(tuple)
	return "search:" + hex.EncodeToString(sum[:])
}

// Get returns cached results for key. Read and decode failures count as a miss.
func (a *Aggregator) Get(ctx context.Context, key string) ([]models.SearchResult, bool) {
	data, ok, err := a.cache.Get(ctx, key)
	if err != nil {
		a.logger.Warn("cache read failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var results []models.SearchResult
	if err := json.Unmarshal(data, &results); err != nil {
		a.logger.Warn("discarding undecodable cache entry", "key", key, "error", err)
		return nil, false
	}
	if results == nil {
		results = []models.SearchResult{}
	}
	return results, true
}

// Set overwrites key with results for the configured TTL.
func (a *Aggregator) Set(ctx context.Context, key string, results []models.SearchResult) error {
	if results == nil {
		results = []models.SearchResult{}
	}
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	return a.cache.Set(ctx, key, data, a.ttl)
}

// Search returns up to limit results for query from provider.
//
// An empty query returns an empty list without touching the cache or the provider.
// Provider failures are returned as [*shared.ExternalServiceError].
func (a *Aggregator) Search(ctx context.Context, query string, limit int, provider string) ([]models.SearchResult, error) {
	query = shared.NormalizeQuery(query)
	if query == "" {
		return []models.SearchResult{}, nil
	}

	p, err := a.providers.Get(provider)
	if err != nil {
		return nil, err
	}

	key := MakeKey(query, limit, provider)
	if results, ok := a.Get(ctx, key); ok {
		a.logger.Debug("cache hit", "provider", provider, "query", query, "limit", limit)
		return results, nil
	}
	a.logger.Debug("cache miss", "provider", provider, "query", query, "limit", limit)

	results, err := p.Search(ctx, query, limit)
	if err != nil {
		if !shared.IsExternal(err) {
			err = shared.NewExternalServiceError(provider, "search", err)
		}
		a.logger.Warn("provider search failed", "provider", provider, "query", query, "error", err)
		return nil, err
	}
	if results == nil {
		results = []models.SearchResult{}
	}

	if err := a.Set(ctx, key, results); err != nil {
		a.logger.Warn("cache write failed", "key", key, "error", err)
	}

	return results, nil
}

// SearchAll searches several providers concurrently, each with its own limit.
//
// Any provider failure fails the whole call.
func (a *Aggregator) SearchAll(ctx context.Context, query string, limits map[string]int) (map[string][]models.SearchResult, error) {
	var mu sync.Mutex
	out := make(map[string][]models.SearchResult, len(limits))

	g, gctx := errgroup.WithContext(ctx)
	for provider, limit := range limits {
		g.Go(func() error {
			results, err := a.Search(gctx, query, limit, provider)
			if err != nil {
				return err
			}
			mu.Lock()
			out[provider] = results
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
