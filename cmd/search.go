package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tunegate/internal/formatter"
	"github.com/desertthunder/tunegate/internal/services"
	"github.com/desertthunder/tunegate/internal/shared"
	"github.com/desertthunder/tunegate/internal/store"
)

// Search runs one provider through the aggregator backed by an in-memory cache.
//
// Only the selected provider is enabled, regardless of the config file.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(cmd.StringArg("query"))
	if query == "" {
		return fmt.Errorf("%w: search query is required", shared.ErrMissingArgument)
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	limit := int(cmd.Int("limit"))
	if limit <= 0 {
		return fmt.Errorf("%w: --limit must be positive", shared.ErrInvalidArgument)
	}

	config, err := r.configure(cmd)
	if err != nil {
		return err
	}

	provider := cmd.String("provider")
	aggregator, err := r.aggregatorFor(config, provider)
	if err != nil {
		return err
	}

	r.logger.Debug("searching", "provider", provider, "query", query, "limit", limit)
	results, err := aggregator.Search(ctx, query, limit, provider)
	if err != nil {
		return err
	}

	title := fmt.Sprintf("%s results for %q", provider, query)
	if path := cmd.String("output"); path != "" {
		written, err := formatter.WriteFile(path, format, title, results)
		if err != nil {
			return err
		}
		r.logger.Info("results written", "path", written, "count", len(results))
		return nil
	}

	return formatter.Write(r.output, format, title, results)
}

// aggregatorFor builds an aggregator over a fresh in-memory cache with only provider enabled.
func (r *Runner) aggregatorFor(config *shared.Config, provider string) (*services.Aggregator, error) {
	providers := config.Providers
	switch provider {
	case services.MailRu:
		providers.MailRu.Enabled, providers.Spotify.Enabled = true, false
	case services.Spotify:
		providers.MailRu.Enabled, providers.Spotify.Enabled = false, true
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", shared.ErrInvalidArgument, provider)
	}

	registry, err := r.registry(providers)
	if err != nil {
		return nil, err
	}
	return services.NewAggregator(store.NewMemoryStore(), registry, config.Cache.TTL(), r.logger), nil
}
