// Package breaker guards calls to external model services and webhook
// endpoints so a failing backend is skipped quickly instead of stalling
// every turn on its timeout.
package breaker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrOpen is returned by Do while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker open")

// Config holds the parameters for a breaker. A zero FailureThreshold
// disables tripping.
type Config struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	HalfOpenMaxAttempts int
}

// Breaker trips after FailureThreshold consecutive failures, rejects calls
// for ResetTimeout, then lets HalfOpenMaxAttempts probes through.
type Breaker struct {
	cb *gobreaker.CircuitBreaker[struct{}]
}

// New creates a breaker named after the backend it guards.
func New(name string, cfg Config) *Breaker {
	probes := max(cfg.HalfOpenMaxAttempts, 1)
	return &Breaker{cb: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(probes),
		Timeout:     cfg.ResetTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return cfg.FailureThreshold > 0 && c.ConsecutiveFailures >= uint32(cfg.FailureThreshold)
		},
		// A caller hanging up says nothing about the backend.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})}
}

// Name returns the guarded backend name.
func (b *Breaker) Name() string { return b.cb.Name() }

// State returns "closed", "open" or "half-open".
func (b *Breaker) State() string { return b.cb.State().String() }

// Do runs fn unless the breaker is open. A nil Breaker always runs fn.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if b == nil {
		return fn(ctx)
	}
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrOpen
	}
	return err
}
