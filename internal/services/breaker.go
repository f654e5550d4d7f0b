package services

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sony/gobreaker"

	"github.com/desertthunder/tunegate/internal/models"
	"github.com/desertthunder/tunegate/internal/shared"
)

// Breaker decorates a [Provider] with a circuit breaker.
//
// After repeated upstream failures the circuit opens and calls fail fast with
// [shared.ErrExternalService] until the cool-down elapses.
type Breaker struct {
	next Provider
	cb   *gobreaker.CircuitBreaker
}

// BreakerSettings tunes when the circuit trips and how long it stays open.
type BreakerSettings struct {
	MinRequests  uint32
	FailureRatio float64
	Interval     time.Duration
	Timeout      time.Duration
}

// DefaultBreakerSettings trips at 60% failures over at least 5 calls and re-probes after 30s.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{MinRequests: 5, FailureRatio: 0.6, Interval: time.Minute, Timeout: 30 * time.Second}
}

// NewBreaker wraps next with [DefaultBreakerSettings].
func NewBreaker(next Provider, logger *log.Logger) *Breaker {
	return NewBreakerWithSettings(next, DefaultBreakerSettings(), logger)
}

// NewBreakerWithSettings wraps next with s.
func NewBreakerWithSettings(next Provider, s BreakerSettings, logger *log.Logger) *Breaker {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: 1,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= s.MinRequests && failureRatio >= s.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("provider circuit state changed", "provider", name, "from", from.String(), "to", to.String())
		},
	})

	return &Breaker{next: next, cb: cb}
}

func (b *Breaker) Name() string { return b.next.Name() }

// State reports the circuit state.
func (b *Breaker) State() gobreaker.State { return b.cb.State() }

func (b *Breaker) Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return b.next.Search(ctx, query, limit)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, shared.NewExternalServiceError(b.next.Name(), "search", err)
	}
	if err != nil {
		return nil, err
	}
	return out.([]models.SearchResult), nil
}
