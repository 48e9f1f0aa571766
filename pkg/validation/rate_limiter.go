package validation

import (
	"sync"
	"time"
)

// RateLimiter is a per-client token bucket. Each client starts with burst
// tokens, which refill continuously at rate tokens per second.
type RateLimiter struct {
	rate    float64
	burst   float64
	clients map[string]*bucket
	mu      sync.Mutex
	now     func() time.Time

	cleanupTick *time.Ticker
	done        chan struct{}
	closeOnce   sync.Once
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// idleBuckets is how many full refills a client may stay idle before its
// bucket is dropped.
const idleBuckets = 2

// NewRateLimiter creates a limiter allowing rate requests per second with
// bursts of up to burst requests.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	return newRateLimiter(rate, burst, time.Now)
}

func newRateLimiter(rate float64, burst int, now func() time.Time) *RateLimiter {
	if rate <= 0 {
		rate = 1
	}
	if burst < 1 {
		burst = 1
	}
	rl := &RateLimiter{
		rate:    rate,
		burst:   float64(burst),
		clients: make(map[string]*bucket),
		now:     now,
		done:    make(chan struct{}),
	}

	rl.cleanupTick = time.NewTicker(rl.refillPeriod())
	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) refillPeriod() time.Duration {
	d := time.Duration(rl.burst / rl.rate * float64(time.Second))
	if d < time.Second {
		d = time.Second
	}
	return d
}

// Allow consumes one token for clientID and reports whether it was available.
func (rl *RateLimiter) Allow(clientID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.clients[clientID]
	if !ok {
		b = &bucket{tokens: rl.burst, lastSeen: now}
		rl.clients[clientID] = b
	}

	if elapsed := now.Sub(b.lastSeen).Seconds(); elapsed > 0 {
		b.tokens = min(rl.burst, b.tokens+elapsed*rl.rate)
	}
	b.lastSeen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Clients returns the number of tracked clients.
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func (rl *RateLimiter) cleanup() {
	for {
		select {
		case <-rl.cleanupTick.C:
			rl.removeIdle()
		case <-rl.done:
			return
		}
	}
}

// removeIdle drops clients whose bucket has long been full again.
func (rl *RateLimiter) removeIdle() {
	cutoff := rl.now().Add(-idleBuckets * rl.refillPeriod())

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for id, b := range rl.clients {
		if b.lastSeen.Before(cutoff) {
			delete(rl.clients, id)
		}
	}
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() {
		close(rl.done)
		rl.cleanupTick.Stop()
	})
}
