package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/go-orbit/pkg/config"
	"github.com/opd-ai/go-orbit/pkg/logging"
)

func testClientConfig() config.ClientConfig {
	return config.ClientConfig{
		ServerURL:       "http://127.0.0.1:1",
		Timeout:         2 * time.Second,
		MaxRetries:      3,
		RetryDelay:      time.Millisecond,
		BreakerFailures: 3,
		BreakerTimeout:  100 * time.Millisecond,
	}
}

func newTestBreaker(cfg config.ClientConfig) *Breaker {
	return NewBreaker(cfg, logging.NewLoggerWithWriter(io.Discard, slog.LevelError))
}

func TestBreaker_Execute(t *testing.T) {
	b := newTestBreaker(testClientConfig())
	ctx := context.Background()

	require.NoError(t, b.Execute(ctx, func(context.Context) error { return nil }))
	assert.Equal(t, gobreaker.StateClosed, b.State())

	boom := errors.New("boom")
	assert.ErrorIs(t, b.Execute(ctx, func(context.Context) error { return boom }), boom)
	assert.Equal(t, gobreaker.StateClosed, b.State())
	assert.Equal(t, uint32(1), b.Counts().ConsecutiveFailures)
}

func TestBreaker_TripsAndRecovers(t *testing.T) {
	b := newTestBreaker(testClientConfig())
	ctx := context.Background()
	boom := errors.New("connection refused")

	for i := 0; i < 3; i++ {
		_ = b.Execute(ctx, func(context.Context) error { return boom })
	}
	require.Equal(t, gobreaker.StateOpen, b.State())

	called := false
	err := b.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.False(t, called)

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, gobreaker.StateHalfOpen, b.State())
	require.NoError(t, b.Execute(ctx, func(context.Context) error { return nil }))
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreaker_ClientErrorsDoNotTrip(t *testing.T) {
	b := newTestBreaker(testClientConfig())
	ctx := context.Background()
	rejected := &APIError{StatusCode: http.StatusBadRequest, Message: "bad script"}

	for i := 0; i < 10; i++ {
		err := b.Execute(ctx, func(context.Context) error { return rejected })
		assert.ErrorIs(t, err, rejected)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreaker_ExecuteWithRetry(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		err       error
		wantCalls int
		wantErr   bool
	}{
		{"first attempt succeeds", 0, nil, 1, false},
		{"recovers on third attempt", 2, errors.New("reset"), 3, false},
		{"gives up after max retries", 5, errors.New("reset"), 3, true},
		{"server error is retried", 1, &APIError{StatusCode: http.StatusServiceUnavailable}, 2, false},
		{"client error is final", 5, &APIError{StatusCode: http.StatusConflict}, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testClientConfig()
			cfg.BreakerFailures = 10
			b := newTestBreaker(cfg)

			calls := 0
			err := b.ExecuteWithRetry(context.Background(), func(context.Context) error {
				calls++
				if calls <= tt.failures {
					return tt.err
				}
				return nil
			})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr {
				assert.ErrorIs(t, err, tt.err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBreaker_ExecuteWithRetry_StopsWhenOpen(t *testing.T) {
	cfg := testClientConfig()
	cfg.BreakerFailures = 2
	cfg.MaxRetries = 5
	b := newTestBreaker(cfg)

	calls := 0
	err := b.ExecuteWithRetry(context.Background(), func(context.Context) error {
		calls++
		return errors.New("refused")
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, gobreaker.StateOpen, b.State())
}

func TestBreaker_ExecuteWithRetry_Cancelled(t *testing.T) {
	cfg := testClientConfig()
	cfg.RetryDelay = time.Hour
	b := newTestBreaker(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := b.ExecuteWithRetry(ctx, func(context.Context) error { return errors.New("refused") })
	assert.ErrorIs(t, err, context.Canceled)
}
