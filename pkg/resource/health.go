package resource

import (
	"context"
	"fmt"
)

// goroutineWarnRatio is the share of the goroutine budget above which the
// check reports unhealthy.
const goroutineWarnRatio = 0.8

// HealthCheck reports resource pressure to the health checker.
type HealthCheck struct {
	manager *Manager
}

// NewHealthCheck wraps a manager.
func NewHealthCheck(manager *Manager) *HealthCheck {
	return &HealthCheck{manager: manager}
}

// Name returns the check name.
func (h *HealthCheck) Name() string {
	return "resource"
}

// Check samples memory and fails above the memory limit or near the
// goroutine limit.
func (h *HealthCheck) Check(ctx context.Context) error {
	if err := h.manager.CheckMemoryUsage(); err != nil {
		return err
	}
	stats := h.manager.Stats()
	if stats.MaxGoroutines <= 0 {
		return nil
	}
	threshold := int64(float64(stats.MaxGoroutines) * goroutineWarnRatio)
	if stats.Goroutines > threshold {
		return fmt.Errorf("%d tracked goroutines above %d of %d", stats.Goroutines, threshold, stats.MaxGoroutines)
	}
	return nil
}
