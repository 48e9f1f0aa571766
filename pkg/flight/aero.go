// pkg/flight/aero.go
package flight

import (
	"math"

	"github.com/opd-ai/go-orbit/pkg/physics"
)

// Aerodynamic model constants.
const (
	minAirSpeed         = 0.01 // m/s, below this there is no aerodynamic effect
	sideAreaMultiplier  = 6.0  // side-on area relative to front-on
	sideDragGrowth      = 4.0  // extra Cd at 90 degrees angle of attack
	transonicStart      = 0.8
	transonicPeak       = 2.5
	transonicEnd        = 1.2
	supersonicFactorLow = 1.2
	supersonicFactorEnd = 1.1
	supersonicLimit     = 3.0
)

// AeroState is the effective aerodynamic state of one tick. When the rocket
// is in space or barely moving through the air, DragCoefficient and Area hold
// the configuration base values and Drag is zero.
type AeroState struct {
	AirVelocity     physics.Vector2D `json:"airVelocity"`
	Mach            float64          `json:"mach"`
	AngleOfAttack   float64          `json:"angleOfAttack"`
	DragCoefficient float64          `json:"dragCoefficient"`
	Area            float64          `json:"area"`
	Density         float64          `json:"density"`
	DynamicPressure float64          `json:"dynamicPressure"`
	Drag            physics.Vector2D `json:"drag"`
}

// ComputeAero evaluates the attitude and Mach dependent drag model at the
// given state.
func ComputeAero(world physics.WorldParameters, position, velocity physics.Vector2D, rotation, baseCd, baseArea float64) AeroState {
	altitude := world.Altitude(position.Length())
	air := velocity.Sub(world.GroundVelocity(position))
	speed := air.Length()

	state := AeroState{
		AirVelocity:     air,
		DragCoefficient: baseCd,
		Area:            baseArea,
	}
	if world.IsInSpace(altitude) || speed < minAirSpeed {
		return state
	}

	forward := position.Normalize().Rotate(rotation)
	oncoming := air.Scale(-1 / speed)
	cos := math.Max(-1, math.Min(1, forward.Dot(oncoming)))
	aoa := math.Acos(cos)
	sin2 := math.Sin(aoa) * math.Sin(aoa)

	state.AngleOfAttack = aoa
	state.Mach = physics.MachNumber(speed, world.SpeedOfSound(altitude))
	state.Area = baseArea * (1 + (sideAreaMultiplier-1)*sin2)
	state.DragCoefficient = baseCd * (1 + sideDragGrowth*sin2) * MachFactor(state.Mach)
	state.Density = world.AtmosphericDensity(altitude)
	state.DynamicPressure = physics.DynamicPressure(state.Density, speed)
	state.Drag = physics.DragForce(air, state.Density, state.DragCoefficient, state.Area)
	return state
}

// MachFactor is the transonic drag multiplier: 1 below Mach 0.8, a
// triangular bump peaking at 2.5 at Mach 1, then easing from 1.2 at Mach 1.2
// to 1.1 at Mach 3 and holding there.
func MachFactor(mach float64) float64 {
	switch {
	case mach < transonicStart:
		return 1
	case mach <= 1:
		return 1 + (transonicPeak-1)*(mach-transonicStart)/(1-transonicStart)
	case mach <= transonicEnd:
		return transonicPeak - (transonicPeak-supersonicFactorLow)*(mach-1)/(transonicEnd-1)
	case mach <= supersonicLimit:
		return supersonicFactorLow - (supersonicFactorLow-supersonicFactorEnd)*(mach-transonicEnd)/(supersonicLimit-transonicEnd)
	default:
		return supersonicFactorEnd
	}
}
