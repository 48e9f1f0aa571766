package resource

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck_Name(t *testing.T) {
	assert.Equal(t, "resource", NewHealthCheck(newTestManager(10, 1000)).Name())
}

func TestHealthCheck_Check(t *testing.T) {
	ballast := make([]byte, 8<<20)
	for i := range ballast {
		ballast[i] = 1
	}
	defer runtime.KeepAlive(ballast)

	t.Run("healthy", func(t *testing.T) {
		check := NewHealthCheck(newTestManager(100, 100000))
		assert.NoError(t, check.Check(context.Background()))
	})

	t.Run("memory over limit", func(t *testing.T) {
		check := NewHealthCheck(newTestManager(100, 1))
		assert.ErrorIs(t, check.Check(context.Background()), ErrMemoryLimit)
	})

	t.Run("goroutines near limit", func(t *testing.T) {
		m := newTestManager(5, 100000)
		release := make(chan struct{})
		for i := 0; i < 5; i++ {
			require.NoError(t, m.Go(context.Background(), "stream", func(context.Context) { <-release }))
		}

		err := NewHealthCheck(m).Check(context.Background())
		assert.ErrorContains(t, err, "tracked goroutines")

		close(release)
		require.NoError(t, m.Shutdown(context.Background()))
		assert.NoError(t, NewHealthCheck(m).Check(context.Background()))
	})
}
