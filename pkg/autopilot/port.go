// Package autopilot implements the line-oriented flight script language and
// the polling step queue that executes it against an EnginePort.
package autopilot

import "github.com/opd-ai/go-orbit/pkg/flight"

// EnginePort is everything the autopilot needs from the game. Any engine
// that implements it can be flown by a script.
type EnginePort interface {
	SetThrottle(value float64)
	IgniteEngines()
	CutEngines()
	PerformStaging()
	SetAutopilotHold(mode flight.HoldMode)
	SetAutopilotTargetAngle(angle float64)
	SetGameSpeed(speed float64)

	Altitude() float64
	ApoapsisAltitude() float64
	PeriapsisAltitude() float64
	RadialVelocity() float64
	CurrentTWR() float64
	ActiveStageFuel() float64
	IsEngineOn() bool
}
