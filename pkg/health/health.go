// Package health provides liveness and readiness probes for the flight
// server. Readiness aggregates named checks over the simulation loop, the
// flight log database and process resources.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Status values.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// readinessTimeout bounds one readiness probe.
const readinessTimeout = 5 * time.Second

// HealthCheck is a single named probe.
type HealthCheck interface {
	// Name returns the unique name of this health check
	Name() string
	// Check returns an error if the component is unhealthy
	Check(ctx context.Context) error
}

// HealthStatus is the aggregated result.
type HealthStatus struct {
	Status string                     `json:"status"`
	Checks map[string]ComponentHealth `json:"checks"`
}

// ComponentHealth is the result of one check.
type ComponentHealth struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration"`
}

// HealthChecker manages and executes health checks.
type HealthChecker struct {
	checks map[string]HealthCheck
	mu     sync.RWMutex
}

// NewHealthChecker creates an empty checker.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		checks: make(map[string]HealthCheck),
	}
}

// AddCheck registers a check, replacing any check with the same name.
func (hc *HealthChecker) AddCheck(check HealthCheck) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks[check.Name()] = check
}

// RemoveCheck removes a health check by name.
func (hc *HealthChecker) RemoveCheck(name string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	delete(hc.checks, name)
}

// CheckHealth runs every check. The overall status is healthy only if all
// checks pass. Checks run outside the registry lock.
func (hc *HealthChecker) CheckHealth(ctx context.Context) HealthStatus {
	hc.mu.RLock()
	checks := make(map[string]HealthCheck, len(hc.checks))
	for name, check := range hc.checks {
		checks[name] = check
	}
	hc.mu.RUnlock()

	status := HealthStatus{
		Status: StatusHealthy,
		Checks: make(map[string]ComponentHealth, len(checks)),
	}
	for name, check := range checks {
		start := time.Now()
		err := check.Check(ctx)
		result := ComponentHealth{
			Status:   StatusHealthy,
			Duration: time.Since(start).String(),
		}
		if err != nil {
			status.Status = StatusUnhealthy
			result.Status = StatusUnhealthy
			result.Message = err.Error()
		}
		status.Checks[name] = result
	}
	return status
}

// LivenessHandler returns 200 while the process can serve requests.
func (hc *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ReadinessHandler runs every check and returns 200 when all pass, 503
// otherwise.
func (hc *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	health := hc.CheckHealth(ctx)
	code := http.StatusOK
	if health.Status != StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, health)
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// SimulationHealthCheck fails when the tick loop is stopped or stalled.
type SimulationHealthCheck struct {
	running      func() bool
	lastTick     func() time.Time
	maxStaleness time.Duration
}

// NewSimulationHealthCheck creates a check over the game loop. A tick older
// than maxStaleness marks the loop as stalled.
func NewSimulationHealthCheck(running func() bool, lastTick func() time.Time, maxStaleness time.Duration) *SimulationHealthCheck {
	return &SimulationHealthCheck{
		running:      running,
		lastTick:     lastTick,
		maxStaleness: maxStaleness,
	}
}

// Name returns the name of this health check.
func (s *SimulationHealthCheck) Name() string {
	return "simulation"
}

// Check verifies the loop is running and ticking.
func (s *SimulationHealthCheck) Check(ctx context.Context) error {
	if !s.running() {
		return errors.New("simulation loop is not running")
	}
	if age := time.Since(s.lastTick()); s.maxStaleness > 0 && age > s.maxStaleness {
		return fmt.Errorf("last tick %s ago exceeds %s", age.Round(time.Millisecond), s.maxStaleness)
	}
	return nil
}

// Pinger is implemented by the flight log store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StorageHealthCheck pings the flight log database.
type StorageHealthCheck struct {
	store Pinger
}

// NewStorageHealthCheck creates a storage check.
func NewStorageHealthCheck(store Pinger) *StorageHealthCheck {
	return &StorageHealthCheck{store: store}
}

// Name returns the name of this health check.
func (s *StorageHealthCheck) Name() string {
	return "storage"
}

// Check pings the store.
func (s *StorageHealthCheck) Check(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("flight log unavailable: %w", err)
	}
	return nil
}
