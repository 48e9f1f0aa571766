// Package render draws flight telemetry for operators without a graphical
// display.
package render

import (
	"context"

	"github.com/opd-ai/go-orbit/pkg/engine"
	"github.com/opd-ai/go-orbit/pkg/logging"
	"github.com/opd-ai/go-orbit/pkg/orbit"
)

// Renderer draws one frame of a flight.
type Renderer interface {
	Render(tel engine.Telemetry, traj orbit.Trajectory) error
}

// NullRenderer logs frames at debug level instead of drawing them.
type NullRenderer struct {
	logger *logging.Logger
}

// NewNullRenderer creates a NullRenderer. A nil logger uses the default.
func NewNullRenderer(logger *logging.Logger) *NullRenderer {
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &NullRenderer{logger: logger.Component("render")}
}

// Render implements Renderer.
func (d *NullRenderer) Render(tel engine.Telemetry, traj orbit.Trajectory) error {
	ctx := logging.WithFlightID(context.Background(), tel.FlightID)
	d.logger.Debug(ctx, "Frame",
		"status", tel.Status,
		"altitude", tel.Altitude,
		"speed", tel.Speed,
		"trajectory_points", len(traj.Points),
	)
	return nil
}
