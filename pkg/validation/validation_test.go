package validation

import (
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateScript(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "single command", input: "ignite", want: "ignite"},
		{name: "multi line with tabs", input: "throttle 1\n\tignite\nwait 5", want: "throttle 1\n\tignite\nwait 5"},
		{name: "windows line endings", input: "ignite\r\nwait 2\r\n", want: "ignite\nwait 2\n"},
		{name: "lone carriage return kept", input: "ignite\rcut", want: "ignite\rcut"},
		{name: "empty", input: "", wantErr: ErrInvalidScript},
		{name: "only whitespace", input: " \n\t\n", wantErr: ErrInvalidScript},
		{name: "invalid utf8", input: "ignite\xff", wantErr: ErrInvalidScript},
		{name: "nul byte", input: "ignite\x00", wantErr: ErrInvalidScript},
		{name: "escape sequence", input: "\x1b[2Jignite", wantErr: ErrInvalidScript},
		{name: "too many bytes", input: strings.Repeat("a", MaxScriptSize+1), wantErr: ErrScriptTooLarge},
		{name: "too many lines", input: strings.Repeat("\n", MaxScriptLines) + "ignite", wantErr: ErrScriptTooLarge},
		{name: "line limit exactly", input: strings.Repeat("cut\n", MaxScriptLines-1) + "cut", want: strings.Repeat("cut\n", MaxScriptLines-1) + "cut"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateScript(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateThrottle(t *testing.T) {
	tests := []struct {
		value   float64
		wantErr bool
	}{
		{0, false},
		{0.5, false},
		{1, false},
		{-0.01, true},
		{1.01, true},
		{math.NaN(), true},
		{math.Inf(1), true},
	}

	for _, tt := range tests {
		err := ValidateThrottle(tt.value)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidValue, "value %v", tt.value)
		} else {
			assert.NoError(t, err, "value %v", tt.value)
		}
	}
}

func TestValidateTimeWarp(t *testing.T) {
	assert.NoError(t, ValidateTimeWarp(1))
	assert.NoError(t, ValidateTimeWarp(1000))
	assert.ErrorIs(t, ValidateTimeWarp(0.5), ErrInvalidValue)
	assert.ErrorIs(t, ValidateTimeWarp(math.NaN()), ErrInvalidValue)
	assert.ErrorIs(t, ValidateTimeWarp(math.Inf(1)), ErrInvalidValue)
}

func TestValidateFlightID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"6ba7b810-9dad-11d1-80b4-00c04fd430c8", false},
		{"6BA7B810-9DAD-11D1-80B4-00C04FD430C8", false},
		{"", true},
		{"6ba7b810", true},
		{"6ba7b810-9dad-11d1-80b4-00c04fd430cz", true},
		{"6ba7b810x9dad-11d1-80b4-00c04fd430c8", true},
		{"../../../../etc/passwd-aaaaaaaaaaaaa", true},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := ValidateFlightID(tt.id)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidValue)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRateLimiter_BurstThenRefill(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	rl := newRateLimiter(2, 3, clock.Now)
	defer rl.Close()

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("a"), "burst request %d", i)
	}
	assert.False(t, rl.Allow("a"))

	clock.Advance(250 * time.Millisecond)
	assert.False(t, rl.Allow("a"), "half a token is not enough")

	clock.Advance(250 * time.Millisecond)
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))

	clock.Advance(time.Hour)
	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("a"), "refill is capped at burst")
	}
	assert.False(t, rl.Allow("a"))
}

func TestRateLimiter_ClientsAreIndependent(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	rl := newRateLimiter(1, 1, clock.Now)
	defer rl.Close()

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
	assert.Equal(t, 2, rl.Clients())
}

func TestRateLimiter_RemoveIdle(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	rl := newRateLimiter(1, 5, clock.Now)
	defer rl.Close()

	rl.Allow("old")
	clock.Advance(8 * time.Second)
	rl.Allow("recent")
	clock.Advance(5 * time.Second)

	rl.removeIdle()
	assert.Equal(t, 1, rl.Clients())
	assert.True(t, rl.Allow("recent"))
}

func TestRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	defer rl.Close()

	assert.Equal(t, 1.0, rl.rate)
	assert.Equal(t, 1.0, rl.burst)
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
}

func TestRateLimiter_CloseTwice(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	rl.Close()
	assert.NotPanics(t, rl.Close)
}

func TestRateLimiter_Concurrent(t *testing.T) {
	rl := NewRateLimiter(0.001, 50)
	defer rl.Close()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.Allow("shared") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}
