package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/tunegate/internal/auth"
	"github.com/desertthunder/tunegate/internal/ratelimit"
	"github.com/desertthunder/tunegate/internal/repositories"
	"github.com/desertthunder/tunegate/internal/services"
	"github.com/desertthunder/tunegate/internal/shared"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, authentication, CORS, rate limiting, etc.
type Middleware func(http.Handler) http.Handler

// Route binds a method and path pattern to a handler with route-specific middleware.
type Route struct {
	Method     string
	Path       string
	Handler    http.Handler
	Middleware []Middleware
}

// Handler groups related routes so they can be registered together.
type Handler interface {
	Routes() []Route // Routes returns the routes this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
// Implementations register handlers, apply middleware, and configure the HTTP server.
type Router interface {
	Use(middleware ...Middleware)                                               // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler, middleware ...Middleware) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                                                    // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request)                           // ServeHTTP implements http.Handler for the entire router
}

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Users      *repositories.UserRepository
	Playlists  *repositories.PlaylistRepository
	Songs      *repositories.SongRepository
	Tokens     *auth.Manager
	Limiter    *ratelimit.Limiter
	Aggregator *services.Aggregator
	Logger     *log.Logger
}

// Server is the HTTP front door.
type Server struct {
	cfg    shared.ServerConfig
	router *BasicRouter
	logger *log.Logger
}

// New builds the router: recover, access log, CORS and rate limiting on every request,
// and the session check on protected routes.
func New(cfg shared.ServerConfig, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	rw := &responder{logger: logger}
	requireAuth := Middleware(auth.Middleware(deps.Tokens, rw.error))

	router := NewBasicRouter()
	router.Use(Recover(rw), AccessLog(logger), CORS(cfg.AllowedOrigin))
	if deps.Limiter != nil {
		router.Use(deps.Limiter.Middleware(cfg.AllowedOrigin))
	}

	router.Handle(http.MethodGet, "/{$}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw.json(w, http.StatusOK, detail("Modern music API. See /search?q=Rammstein"))
	}))
	router.Handler(NewUserHandler(deps.Users, deps.Tokens, rw, requireAuth))
	router.Handler(NewSearchHandler(deps.Aggregator, rw, requireAuth))
	router.Handler(NewPlaylistHandler(deps.Playlists, deps.Songs, rw, requireAuth))
	router.Handler(NewSongHandler(deps.Playlists, deps.Songs, rw, requireAuth))

	return &Server{cfg: cfg, router: router, logger: logger}
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves on the configured address until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  seconds(s.cfg.ReadTimeoutSeconds, 15),
		WriteTimeout: seconds(s.cfg.WriteTimeoutSeconds, 30),
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), seconds(s.cfg.ShutdownTimeoutSeconds, 10))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func seconds(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}
