// Package orbit derives two-body orbital elements from an instantaneous
// state and projects the coasting trajectory forward.
package orbit

import (
	"math"

	"github.com/opd-ai/go-orbit/pkg/physics"
)

// StablePeriapsisAltitude is the minimum periapsis altitude for an orbit to
// count as stable. It is deliberately separate from
// physics.AtmosphereLimitAltitude, which governs drag and heating.
const StablePeriapsisAltitude = 70000.0

// Elements is a snapshot of the osculating orbit. It is computed on demand
// and never stored beyond one query.
type Elements struct {
	SpecificEnergy     float64          `json:"specificEnergy"`
	AngularMomentum    float64          `json:"angularMomentum"`
	Eccentricity       float64          `json:"eccentricity"`
	EccentricityVector physics.Vector2D `json:"eccentricityVector"`
	SemiMajorAxis      float64          `json:"semiMajorAxis"`
	ApoapsisRadius     float64          `json:"apoapsisRadius"`
	PeriapsisRadius    float64          `json:"periapsisRadius"`
	ApoapsisAltitude   float64          `json:"apoapsisAltitude"`
	PeriapsisAltitude  float64          `json:"periapsisAltitude"`
	Escape             bool             `json:"escape"`
}

// ComputeApoPeri derives the orbital elements of (position, velocity) around
// a body with gravitational parameter mu and the given radius. On escape
// trajectories the apoapsis is +Inf and only the periapsis is meaningful.
func ComputeApoPeri(position, velocity physics.Vector2D, mu, planetRadius float64) Elements {
	r := position.Length()
	if r == 0 || mu <= 0 {
		return Elements{ApoapsisAltitude: -planetRadius, PeriapsisAltitude: -planetRadius}
	}

	v2 := velocity.LengthSquared()
	energy := v2/2 - mu/r
	h := math.Abs(position.Cross(velocity))

	eVec := position.Scale(v2 - mu/r).Sub(velocity.Scale(position.Dot(velocity))).Scale(1 / mu)
	e := math.Sqrt(math.Max(0, 1+2*energy*h*h/(mu*mu)))

	el := Elements{
		SpecificEnergy:     energy,
		AngularMomentum:    h,
		Eccentricity:       e,
		EccentricityVector: eVec,
	}

	if energy >= 0 {
		el.Escape = true
		el.SemiMajorAxis = math.Inf(1)
		if energy > 0 {
			el.SemiMajorAxis = -mu / (2 * energy)
		}
		el.ApoapsisRadius = math.Inf(1)
		el.PeriapsisRadius = h * h / (mu * (1 + e))
	} else {
		a := -mu / (2 * energy)
		el.SemiMajorAxis = a
		el.ApoapsisRadius = a * (1 + e)
		el.PeriapsisRadius = a * (1 - e)
	}

	el.ApoapsisAltitude = el.ApoapsisRadius - planetRadius
	el.PeriapsisAltitude = el.PeriapsisRadius - planetRadius
	return el
}

// IsHyperbolic reports an open (parabolic or hyperbolic) trajectory.
func (el Elements) IsHyperbolic() bool {
	return el.Escape || el.Eccentricity >= 1
}

// IsStable reports a closed orbit whose periapsis clears
// StablePeriapsisAltitude.
func (el Elements) IsStable() bool {
	return !el.IsHyperbolic() && el.PeriapsisAltitude > StablePeriapsisAltitude
}

// Period returns the orbital period in seconds, or +Inf on escape.
func (el Elements) Period(mu float64) float64 {
	if el.IsHyperbolic() || el.SemiMajorAxis <= 0 {
		return math.Inf(1)
	}
	a := el.SemiMajorAxis
	return 2 * math.Pi * math.Sqrt(a*a*a/mu)
}

// RadialVelocity is the component of velocity along the outward radial.
// It is positive while climbing toward apoapsis.
func RadialVelocity(position, velocity physics.Vector2D) float64 {
	return position.Normalize().Dot(velocity)
}

// EscapeVelocity returns sqrt(2*mu/r).
func EscapeVelocity(r, mu float64) float64 {
	return math.Sqrt(2 * mu / r)
}

// CircularVelocity returns sqrt(mu/r).
func CircularVelocity(r, mu float64) float64 {
	return math.Sqrt(mu / r)
}

// IsStableOrbit is shorthand for ComputeApoPeri(...).IsStable().
func IsStableOrbit(position, velocity physics.Vector2D, mu, planetRadius float64) bool {
	return ComputeApoPeri(position, velocity, mu, planetRadius).IsStable()
}
