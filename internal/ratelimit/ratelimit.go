// Package ratelimit enforces a fixed-window request budget per client address.
//
// Each request increments "throttle:{client}" in the shared counter store; the first
// increment of a window arms the expiry, and a post-increment count above the limit is
// rejected. Rejected requests still count. When the store is unreachable the limiter
// applies one configured policy: admit everything (fail-open) or reject everything (fail-closed).
package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/tunegate/internal/shared"
	"github.com/desertthunder/tunegate/internal/store"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed bool
	Count   int64
	// Degraded is set when the counter store failed and the fail-open policy admitted the request.
	Degraded bool
}

// Limiter admits at most Limit requests per client per Window.
type Limiter struct {
	counter  store.Counter
	limit    int64
	window   time.Duration
	failOpen bool
	logger   *log.Logger
}

// Options configures a [Limiter].
type Options struct {
	Limit    int
	Window   time.Duration
	FailOpen bool
	Logger   *log.Logger
}

// New creates a [Limiter] backed by counter.
func New(counter store.Counter, opts Options) (*Limiter, error) {
	if opts.Limit <= 0 || opts.Window <= 0 {
		return nil, fmt.Errorf("%w: throttle limit and window must be positive", shared.ErrInvalidConfig)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Limiter{
		counter:  counter,
		limit:    int64(opts.Limit),
		window:   opts.Window,
		failOpen: opts.FailOpen,
		logger:   opts.Logger,
	}, nil
}

// NewFromConfig creates a [Limiter] from the [throttle] config section.
func NewFromConfig(counter store.Counter, cfg shared.ThrottleConfig, logger *log.Logger) (*Limiter, error) {
	return New(counter, Options{Limit: cfg.Limit, Window: cfg.Window(), FailOpen: cfg.FailOpen, Logger: logger})
}

// Allow counts one request from client.
//
// The error is non-nil only when the request must be rejected:
// [shared.ErrRateLimitExceeded] over the limit, or [shared.ErrStoreUnavailable] when failing closed.
func (l *Limiter) Allow(ctx context.Context, client string) (Decision, error) {
	n, err := l.counter.Incr(ctx, store.ThrottleKey(client), l.window)
	if err != nil {
		l.logger.Warn("counter store unavailable", "client", client, "fail_open", l.failOpen, "error", err)
		if l.failOpen {
			return Decision{Allowed: true, Degraded: true}, nil
		}
		if !errors.Is(err, shared.ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
		}
		return Decision{}, err
	}

	if n > l.limit {
		return Decision{Count: n}, shared.ErrRateLimitExceeded
	}
	return Decision{Allowed: true, Count: n}, nil
}

// ClientIP is the client identity of r: the host part of the transport source address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware throttles every request except OPTIONS pre-flights.
//
// Rejections carry the CORS headers for allowedOrigin so a credentialed browser client can read them.
func (l *Limiter) Middleware(allowedOrigin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			client := ClientIP(r)
			_, err := l.Allow(r.Context(), client)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, shared.ErrRateLimitExceeded):
				l.logger.Info("rate limit exceeded", "client", client, "path", r.URL.Path)
				reject(w, allowedOrigin, http.StatusTooManyRequests, "Too many requests")
			default:
				reject(w, allowedOrigin, http.StatusServiceUnavailable, "Rate limiter unavailable")
			}
		})
	}
}

func reject(w http.ResponseWriter, allowedOrigin string, status int, detail string) {
	h := w.Header()
	if allowedOrigin != "" {
		h.Set("Access-Control-Allow-Origin", allowedOrigin)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Add("Vary", "Origin")
	}
	h.Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
