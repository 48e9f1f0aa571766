// Package resource bounds the goroutines and memory a server process may
// use and waits for tracked work on shutdown.
package resource

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opd-ai/go-orbit/pkg/config"
	"github.com/opd-ai/go-orbit/pkg/logging"
)

var (
	// ErrGoroutineLimit is returned by Go when the tracked goroutine budget is spent.
	ErrGoroutineLimit = errors.New("goroutine limit reached")
	// ErrMemoryLimit is returned when heap usage exceeds the configured limit.
	ErrMemoryLimit = errors.New("memory limit exceeded")
	// ErrAlreadyRunning is returned by Start on a running manager.
	ErrAlreadyRunning = errors.New("resource manager already running")
)

// Manager tracks server goroutines (telemetry streams, flight log writers)
// and samples heap usage on an interval.
type Manager struct {
	maxMemoryMB   int64
	maxGoroutines int64
	checkInterval time.Duration

	active   atomic.Int64
	memoryMB atomic.Int64
	wg       sync.WaitGroup

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}
	lastCheck time.Time

	logger *logging.Logger
}

// Stats is a point-in-time view of resource usage.
type Stats struct {
	Goroutines    int64     `json:"goroutines"`
	MaxGoroutines int64     `json:"max_goroutines"`
	MemoryMB      int64     `json:"memory_mb"`
	MaxMemoryMB   int64     `json:"max_memory_mb"`
	LastCheck     time.Time `json:"last_check"`
}

// NewManager creates a manager from the resource limits.
func NewManager(cfg config.ResourceConfig, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewLogger()
	}
	interval := cfg.CheckInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Manager{
		maxMemoryMB:   cfg.MaxMemoryMB,
		maxGoroutines: int64(cfg.MaxGoroutines),
		checkInterval: interval,
		logger:        logger.Component("resource"),
	}
}

// Start begins periodic memory sampling.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.running = true
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.monitor(ctx, m.done)

	m.logger.Info(ctx, "Resource manager started",
		"max_memory_mb", m.maxMemoryMB,
		"max_goroutines", m.maxGoroutines,
		"check_interval", m.checkInterval,
	)
	return nil
}

// Go runs fn on a tracked goroutine. It refuses when the limit is reached
// and recovers panics so one failed stream cannot take the server down.
func (m *Manager) Go(ctx context.Context, name string, fn func(context.Context)) error {
	for {
		current := m.active.Load()
		if m.maxGoroutines > 0 && current >= m.maxGoroutines {
			m.logger.Warn(ctx, "Goroutine limit reached", "name", name, "limit", m.maxGoroutines)
			return fmt.Errorf("%w: %d/%d", ErrGoroutineLimit, current, m.maxGoroutines)
		}
		if m.active.CompareAndSwap(current, current+1) {
			break
		}
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.active.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error(ctx, "Goroutine panic", fmt.Errorf("panic: %v", r), "name", name)
			}
		}()
		fn(ctx)
	}()
	return nil
}

// CheckMemoryUsage samples the heap and compares it to the limit.
func (m *Manager) CheckMemoryUsage() error {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	mb := int64(ms.Alloc / 1024 / 1024)
	m.memoryMB.Store(mb)
	m.mu.Lock()
	m.lastCheck = time.Now()
	m.mu.Unlock()

	if m.maxMemoryMB > 0 && mb > m.maxMemoryMB {
		return fmt.Errorf("%w: %dMB > %dMB", ErrMemoryLimit, mb, m.maxMemoryMB)
	}
	return nil
}

// Stats returns current usage.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	last := m.lastCheck
	m.mu.Unlock()
	return Stats{
		Goroutines:    m.active.Load(),
		MaxGoroutines: m.maxGoroutines,
		MemoryMB:      m.memoryMB.Load(),
		MaxMemoryMB:   m.maxMemoryMB,
		LastCheck:     last,
	}
}

// Shutdown stops sampling and waits for tracked goroutines until ctx is done.
// Tracked functions are expected to watch their own context.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.running = false
		m.cancel()
		done := m.done
		m.mu.Unlock()
		<-done
	} else {
		m.mu.Unlock()
	}

	finished := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		m.logger.Info(ctx, "All tracked goroutines finished")
		return nil
	case <-ctx.Done():
		remaining := m.active.Load()
		m.logger.Warn(ctx, "Shutdown timed out", "remaining", remaining)
		return fmt.Errorf("shutdown timeout: %d goroutines still running: %w", remaining, ctx.Err())
	}
}

func (m *Manager) monitor(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := m.CheckMemoryUsage(); err != nil {
				m.logger.Error(ctx, "Memory limit exceeded", err)
			}
			m.logger.Debug(ctx, "Resource usage",
				"goroutines", m.active.Load(),
				"memory_mb", m.memoryMB.Load(),
			)
		case <-ctx.Done():
			return
		}
	}
}
