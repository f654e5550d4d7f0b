package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tunegate/internal/auth"
	"github.com/desertthunder/tunegate/internal/ratelimit"
	"github.com/desertthunder/tunegate/internal/repositories"
	"github.com/desertthunder/tunegate/internal/server"
	"github.com/desertthunder/tunegate/internal/services"
	"github.com/desertthunder/tunegate/internal/shared"
	"github.com/desertthunder/tunegate/internal/store"
)

// Serve wires the store, providers, limiter and session manager into the HTTP server
// and runs it until SIGINT or SIGTERM.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.configure(cmd)
	if err != nil {
		return err
	}
	if host := cmd.String("host"); host != "" {
		config.Server.Host = host
	}
	if port := cmd.Int("port"); port > 0 {
		config.Server.Port = int(port)
	}
	if err := config.Validate(); err != nil {
		return err
	}

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	st, err := store.New(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", config.Store.Backend, err)
	}
	defer st.Close()

	providers, err := r.registry(config.Providers)
	if err != nil {
		return err
	}

	limiter, err := ratelimit.NewFromConfig(st, config.Throttle, shared.WithLogger(r.logger, "component", "ratelimit"))
	if err != nil {
		return err
	}

	users := repositories.NewUserRepository(db)
	tokens, err := auth.NewManagerFromConfig(config.Auth, users)
	if err != nil {
		return err
	}

	aggregator := services.NewAggregator(st, providers, config.Cache.TTL(), shared.WithLogger(r.logger, "component", "aggregator"))

	srv := server.New(config.Server, server.Deps{
		Users:      users,
		Playlists:  repositories.NewPlaylistRepository(db),
		Songs:      repositories.NewSongRepository(db),
		Tokens:     tokens,
		Limiter:    limiter,
		Aggregator: aggregator,
		Logger:     shared.WithLogger(r.logger, "component", "http"),
	})

	r.logger.Info("starting server",
		"addr", config.Server.Addr(),
		"store", config.Store.Backend,
		"providers", providers.Names(),
		"fail_open", config.Throttle.FailOpen,
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Start(ctx)
}

func (r *Runner) registry(cfg shared.ProvidersConfig) (services.Registry, error) {
	if r.providers != nil {
		return r.providers, nil
	}
	return services.NewRegistry(cfg, r.httpClient, shared.WithLogger(r.logger, "component", "providers"))
}
