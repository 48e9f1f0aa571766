// pkg/flight/guidance.go
package flight

import (
	"math"
	"strings"

	"github.com/opd-ai/go-orbit/pkg/physics"
)

// HoldMode is the autopilot attitude hold.
type HoldMode string

// Attitude hold modes.
const (
	HoldNone       HoldMode = "none"
	HoldUp         HoldMode = "up"
	HoldPrograde   HoldMode = "prograde"
	HoldRetrograde HoldMode = "retrograde"
	HoldTarget     HoldMode = "target"
)

// ParseHoldMode maps a case-insensitive name to a HoldMode.
func ParseHoldMode(name string) (HoldMode, bool) {
	switch m := HoldMode(strings.ToLower(strings.TrimSpace(name))); m {
	case HoldNone, HoldUp, HoldPrograde, HoldRetrograde, HoldTarget:
		return m, true
	}
	return HoldNone, false
}

// Gravity turn blend band and guidance tuning.
const (
	GravityTurnStart      = 2000.0  // m, fully vertical below
	GravityTurnEnd        = 15000.0 // m, fully prograde above
	minHeadingSpeed       = 0.5     // m/s
	turnDeadZone          = 0.02    // rad
	angularVelocityCutoff = 1e-4    // rad/s
	visualSmoothingRate   = 10.0
)

// GuidanceConfig holds the attitude controller limits. MaxTurnRate is in
// rad/s, AngularAcceleration in rad/s^2 and Damping is applied once per tick
// without input.
type GuidanceConfig struct {
	MaxTurnRate         float64 `json:"max_turn_rate" mapstructure:"max_turn_rate"`
	AngularAcceleration float64 `json:"angular_acceleration" mapstructure:"angular_acceleration"`
	Damping             float64 `json:"damping" mapstructure:"damping"`
}

// DefaultGuidanceConfig returns the stock controller limits.
func DefaultGuidanceConfig() GuidanceConfig {
	return GuidanceConfig{
		MaxTurnRate:         0.12,
		AngularAcceleration: 0.3,
		Damping:             0.98,
	}
}

// GuidanceInput is the attitude state and commands for one tick. TurnInput
// is -1, 0 or +1; positive turns left (increases rotation).
type GuidanceInput struct {
	Rotation        float64
	AngularVelocity float64
	TurnInput       float64
	Hold            HoldMode
	TargetAngle     float64
	Position        physics.Vector2D
	Velocity        physics.Vector2D
	Altitude        float64
	Config          GuidanceConfig
}

// GuidanceResult is the integrated attitude.
type GuidanceResult struct {
	Rotation        float64
	AngularVelocity float64
	TargetRotation  float64
	Turn            float64
}

// UpdateGuidance integrates attitude for dt seconds. Manual input always
// overrides the autopilot hold.
func UpdateGuidance(in GuidanceInput, dt float64) GuidanceResult {
	cfg := in.Config
	if cfg.MaxTurnRate <= 0 {
		cfg = DefaultGuidanceConfig()
	}

	out := GuidanceResult{
		Rotation:        in.Rotation,
		AngularVelocity: in.AngularVelocity,
		TargetRotation:  in.Rotation,
	}

	switch {
	case in.TurnInput != 0:
		out.Turn = math.Copysign(1, in.TurnInput)
	case in.Hold != "" && in.Hold != HoldNone:
		out.TargetRotation = holdTarget(in)
		diff := physics.NormalizeAngle(out.TargetRotation - in.Rotation)
		if math.Abs(diff) > turnDeadZone {
			out.Turn = math.Copysign(1, diff)
		}
	}

	if out.Turn != 0 {
		out.AngularVelocity += out.Turn * cfg.AngularAcceleration * dt
		out.AngularVelocity = math.Max(-cfg.MaxTurnRate, math.Min(cfg.MaxTurnRate, out.AngularVelocity))
	} else {
		out.AngularVelocity *= cfg.Damping
		if math.Abs(out.AngularVelocity) < angularVelocityCutoff {
			out.AngularVelocity = 0
		}
	}

	out.Rotation = physics.NormalizeAngle(in.Rotation + out.AngularVelocity*dt)
	return out
}

// holdTarget returns the rotation the hold mode is steering toward.
func holdTarget(in GuidanceInput) float64 {
	switch in.Hold {
	case HoldUp:
		return 0
	case HoldTarget:
		return physics.NormalizeAngle(in.TargetAngle)
	case HoldPrograde, HoldRetrograde:
		if in.Velocity.Length() < minHeadingSpeed {
			return in.Rotation
		}
		heading := physics.AngleBetween(in.Position.Normalize(), in.Velocity)
		if in.Hold == HoldRetrograde {
			heading = physics.NormalizeAngle(heading + math.Pi)
		}
		return heading * GravityTurnWeight(in.Altitude)
	}
	return in.Rotation
}

// GravityTurnWeight is the smoothstep blend from vertical to prograde
// between GravityTurnStart and GravityTurnEnd.
func GravityTurnWeight(altitude float64) float64 {
	t := (altitude - GravityTurnStart) / (GravityTurnEnd - GravityTurnStart)
	t = math.Max(0, math.Min(1, t))
	return t * t * (3 - 2*t)
}

// UpdateVisualGuidance eases a display rotation toward the physical one.
// It never feeds back into physics.
func UpdateVisualGuidance(visual, physical, dt float64) float64 {
	rate := 1 - math.Exp(-visualSmoothingRate*dt)
	return physics.NormalizeAngle(visual + physics.NormalizeAngle(physical-visual)*rate)
}
