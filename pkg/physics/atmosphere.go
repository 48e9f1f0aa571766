package physics

import "math"

// Sutton-Graves constant for an Earth-like atmosphere, kg^0.5/m.
const suttonGravesConstant = 1.7415e-4

// DragForce returns a force of magnitude 0.5*rho*|v|^2*Cd*A directed against
// velocity. A zero velocity yields the zero vector.
func DragForce(velocity Vector2D, density, dragCoefficient, area float64) Vector2D {
	speed := velocity.Length()
	if speed == 0 {
		return Vector2D{}
	}
	magnitude := 0.5 * density * speed * speed * dragCoefficient * area
	return velocity.Scale(-magnitude / speed)
}

// DynamicPressure returns q = 0.5*rho*v^2 in pascals.
func DynamicPressure(density, speed float64) float64 {
	return 0.5 * density * speed * speed
}

// TerminalVelocity returns the speed at which drag balances weight. It is
// +Inf when there is no air or no drag area.
func TerminalVelocity(mass, density, dragCoefficient, area, gravity float64) float64 {
	denominator := density * dragCoefficient * area
	if denominator <= 0 {
		return math.Inf(1)
	}
	return math.Sqrt(2 * mass * gravity / denominator)
}

// HeatFlux returns the stagnation-point convective heat flux in W/m^2
// (Sutton-Graves) for a nose of the given radius.
func HeatFlux(density, speed, noseRadius float64) float64 {
	if density <= 0 || noseRadius <= 0 {
		return 0
	}
	return suttonGravesConstant * math.Sqrt(density/noseRadius) * speed * speed * speed
}

// HeatBuildup integrates a heat flux over dt, less radiative/conductive
// cooling proportional to the stored heat.
func HeatBuildup(heat, flux, coolingRate, dt float64) float64 {
	next := heat + (flux-coolingRate*heat)*dt
	if next < 0 {
		return 0
	}
	return next
}

// MachNumber returns speed divided by the local speed of sound.
func MachNumber(speed, speedOfSound float64) float64 {
	if speedOfSound <= 0 {
		return 0
	}
	return speed / speedOfSound
}
