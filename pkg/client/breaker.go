// Package client is the mission control client for a flight server. Calls
// go through a circuit breaker with bounded retries so a dead server fails
// fast instead of stalling the operator.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/opd-ai/go-orbit/pkg/config"
	"github.com/opd-ai/go-orbit/pkg/logging"
)

// Operation is one attempt at a server call.
type Operation func(ctx context.Context) error

// Breaker wraps server calls with a circuit breaker and retry loop.
type Breaker struct {
	breaker    *gobreaker.CircuitBreaker
	logger     *logging.Logger
	maxRetries int
	retryDelay time.Duration
}

// NewBreaker configures the breaker from the client settings. Only
// transport failures and 5xx responses count against the circuit.
func NewBreaker(cfg config.ClientConfig, logger *logging.Logger) *Breaker {
	if logger == nil {
		logger = logging.NewLogger()
	}
	logger = logger.Component("client")

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	settings := gobreaker.Settings{
		Name:        "orbit-mission-control",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !retryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info(context.Background(), "circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	retries := cfg.MaxRetries
	if retries < 1 {
		retries = 1
	}
	return &Breaker{
		breaker:    gobreaker.NewCircuitBreaker(settings),
		logger:     logger,
		maxRetries: retries,
		retryDelay: cfg.RetryDelay,
	}
}

// Execute runs op once through the circuit breaker.
func (b *Breaker) Execute(ctx context.Context, op Operation) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, op(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("circuit breaker: %w", err)
		}
		return err
	}
	return nil
}

// ExecuteWithRetry runs op up to maxRetries times with linear backoff.
// Rejections by the server and an open circuit are returned immediately.
func (b *Breaker) ExecuteWithRetry(ctx context.Context, op Operation) error {
	var err error
	for attempt := 0; attempt < b.maxRetries; attempt++ {
		err = b.Execute(ctx, op)
		if err == nil {
			return nil
		}
		if !retryable(err) || ctx.Err() != nil {
			return err
		}
		if b.breaker.State() == gobreaker.StateOpen {
			b.logger.Warn(ctx, "circuit breaker is open, skipping retries",
				"attempt", attempt+1,
				"max_retries", b.maxRetries,
			)
			return err
		}
		if attempt == b.maxRetries-1 {
			break
		}

		delay := time.Duration(attempt+1) * b.retryDelay
		b.logger.Warn(ctx, "request failed, retrying",
			"attempt", attempt+1,
			"max_retries", b.maxRetries,
			"delay", delay,
			"error", err,
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		}
	}
	return fmt.Errorf("max retries (%d) exceeded: %w", b.maxRetries, err)
}

// State returns the circuit state.
func (b *Breaker) State() gobreaker.State {
	return b.breaker.State()
}

// Counts returns the breaker's request counts for the current interval.
func (b *Breaker) Counts() gobreaker.Counts {
	return b.breaker.Counts()
}

// retryable reports whether err is worth another attempt. API rejections
// below 500 are final.
func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return !errors.Is(err, gobreaker.ErrOpenState) && !errors.Is(err, gobreaker.ErrTooManyRequests)
}
