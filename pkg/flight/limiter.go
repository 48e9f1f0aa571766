// pkg/flight/limiter.go
package flight

import (
	"math"
	"math/rand/v2"

	"github.com/opd-ai/go-orbit/pkg/physics"
)

// Limiter tuning.
const (
	BurnUpHeat              = 100.0
	vacuumCoolingRate       = 10.0 // heat units/s above the atmosphere
	atmosphereCoolingRate   = 15.0 // heat units/s below the soft limit
	speedLimitMultiplier    = 1.35
	speedLimitBuffer        = 50.0 // m/s
	nearLimitRatio          = 0.85
	structuralRatio         = 1.2
	structuralGracePeriod   = 1.0 // s of continuous overspeed before rolling
	maxFailuresPerSecond    = 0.9
	burnUpReason            = "Thermal failure (overheating)"
	structuralFailureReason = "Structural failure (aerodynamic overload)"
)

// RandomSource supplies uniform draws in [0, 1). *rand.Rand satisfies it.
type RandomSource interface {
	Float64() float64
}

type randomFunc func() float64

func (f randomFunc) Float64() float64 { return f() }

var defaultRandom RandomSource = randomFunc(rand.Float64)

// LimiterInput is everything the limiter reads. Accumulators (Heat, Glow,
// OverspeedTime, HasBurnedUp) are owned by the caller and threaded through
// LimiterResult.
type LimiterInput struct {
	Altitude        float64
	Velocity        physics.Vector2D
	Mass            float64
	Density         float64
	SurfaceDensity  float64
	DragCoefficient float64
	Area            float64
	Gravity         float64

	Heat          float64
	Glow          float64
	OverspeedTime float64
	HasBurnedUp   bool
	GameOver      bool

	Random RandomSource
}

// LimiterResult is the updated state after one limiter pass.
type LimiterResult struct {
	Velocity      physics.Vector2D
	Heat          float64
	Glow          float64
	OverspeedTime float64
	HasBurnedUp   bool
	SpeedLimit    float64

	Explode bool
	Destroy bool
	Reason  string
}

// EnforceAtmosphericLimits applies soft speed limiting, heating, burn-up and
// the random structural failure roll. It has no hidden state.
func EnforceAtmosphericLimits(in LimiterInput, dt float64) LimiterResult {
	out := LimiterResult{
		Velocity:      in.Velocity,
		Heat:          in.Heat,
		Glow:          in.Glow,
		OverspeedTime: in.OverspeedTime,
		HasBurnedUp:   in.HasBurnedUp,
		SpeedLimit:    math.Inf(1),
	}

	if in.Altitude >= physics.AtmosphereLimitAltitude {
		out.Heat = math.Max(0, in.Heat-vacuumCoolingRate*dt)
		out.OverspeedTime = 0
		return out
	}

	densityNorm := 0.0
	if in.SurfaceDensity > 0 {
		densityNorm = math.Min(1, in.Density/in.SurfaceDensity)
	}

	vt := physics.TerminalVelocity(in.Mass, in.Density, in.DragCoefficient, in.Area, in.Gravity)
	vMax := vt*speedLimitMultiplier + speedLimitBuffer
	out.SpeedLimit = vMax

	speed := in.Velocity.Length()
	ratio := speed / vMax

	switch {
	case speed > vMax:
		decel := (1.5 + 8*densityNorm) * math.Pow(ratio-1, 0.7)
		newSpeed := math.Max(0, speed-decel*dt)
		out.Velocity = in.Velocity.Scale(newSpeed / speed)
		out.Heat += (ratio - 1) * (0.4 + 0.8*densityNorm) * 50 * dt
	case ratio > nearLimitRatio:
		out.Heat += (ratio - nearLimitRatio) * 20 * densityNorm * dt
	default:
		out.Heat = math.Max(0, out.Heat-atmosphereCoolingRate*dt)
	}

	out.Glow = math.Max(in.Glow, math.Min(1, densityNorm*speed/(vMax+1)))

	if !out.HasBurnedUp && out.Heat >= BurnUpHeat {
		out.HasBurnedUp = true
		if !in.GameOver {
			out.Explode = true
			out.Destroy = true
			out.Reason = burnUpReason
		}
		return out
	}

	if in.GameOver || math.IsInf(vMax, 0) || speed <= vMax*structuralRatio {
		out.OverspeedTime = 0
		return out
	}

	out.OverspeedTime += dt
	if out.OverspeedTime <= structuralGracePeriod {
		return out
	}

	pps := math.Min(maxFailuresPerSecond, (ratio-structuralRatio)*(ratio-structuralRatio)*(0.35+0.65*densityNorm))
	p := 1 - math.Exp(-pps*dt)
	rng := in.Random
	if rng == nil {
		rng = defaultRandom
	}
	if rng.Float64() < p {
		out.Explode = true
		out.Destroy = true
		out.Reason = structuralFailureReason
	}
	return out
}
