package physics

import (
	"fmt"
	"math"
)

// AtmosphereLimitAltitude is the altitude above which the simulation treats
// the rocket as being in space: no drag, no speed limiting, heat decays.
const AtmosphereLimitAltitude = 80000.0

// Tutorial planet defaults.
const (
	DefaultPlanetRadius          = 350000.0
	DefaultSurfaceGravity        = 9.81
	DefaultAtmosphereScaleHeight = 7000.0
	DefaultSurfaceDensity        = 1.2
	DefaultRotationRate          = 7.2921159e-5
)

// Temperature model used for the local speed of sound.
const (
	surfaceTemperature = 288.15 // K
	lapseRate          = 0.0065 // K/m
	minTemperature     = 216.65 // K
	heatCapacityRatio  = 1.4    // dry air
	specificGasConst   = 287.05 // J/(kg*K)
)

// WorldParameters describes the planet. It is built once per game session
// and never mutated.
type WorldParameters struct {
	PlanetRadius           float64 `json:"planetRadius"`
	SurfaceGravity         float64 `json:"surfaceGravity"`
	GravitationalParameter float64 `json:"gravitationalParameter"`
	AtmosphereScaleHeight  float64 `json:"atmosphereScaleHeight"`
	SurfaceDensity         float64 `json:"surfaceDensity"`
	RotationRate           float64 `json:"rotationRate"`
}

// NewWorldParameters derives the gravitational parameter from surface
// gravity and radius.
func NewWorldParameters(radius, surfaceGravity, scaleHeight, surfaceDensity, rotationRate float64) (WorldParameters, error) {
	if radius <= 0 {
		return WorldParameters{}, fmt.Errorf("planet radius must be positive, got %g", radius)
	}
	if surfaceGravity <= 0 {
		return WorldParameters{}, fmt.Errorf("surface gravity must be positive, got %g", surfaceGravity)
	}
	if scaleHeight <= 0 {
		return WorldParameters{}, fmt.Errorf("atmosphere scale height must be positive, got %g", scaleHeight)
	}
	if surfaceDensity < 0 {
		return WorldParameters{}, fmt.Errorf("surface density cannot be negative, got %g", surfaceDensity)
	}
	return WorldParameters{
		PlanetRadius:           radius,
		SurfaceGravity:         surfaceGravity,
		GravitationalParameter: surfaceGravity * radius * radius,
		AtmosphereScaleHeight:  scaleHeight,
		SurfaceDensity:         surfaceDensity,
		RotationRate:           rotationRate,
	}, nil
}

// DefaultWorld returns the tutorial planet.
func DefaultWorld() WorldParameters {
	w, _ := NewWorldParameters(
		DefaultPlanetRadius,
		DefaultSurfaceGravity,
		DefaultAtmosphereScaleHeight,
		DefaultSurfaceDensity,
		DefaultRotationRate,
	)
	return w
}

// Altitude converts a distance from the planet center to height above the surface.
func (w WorldParameters) Altitude(distance float64) float64 {
	return distance - w.PlanetRadius
}

// AtmosphericDensity returns the exponential-atmosphere density at altitude.
// The result is positive and never exactly zero at finite altitude.
func (w WorldParameters) AtmosphericDensity(altitude float64) float64 {
	return w.SurfaceDensity * math.Exp(-altitude/w.AtmosphereScaleHeight)
}

// GravitationalAcceleration returns mu/distance^2. distance must be non-zero.
func (w WorldParameters) GravitationalAcceleration(distance float64) float64 {
	return w.GravitationalParameter / (distance * distance)
}

// GravityAt returns the gravitational acceleration vector at position.
// It is the single force law shared by live physics and trajectory projection.
func (w WorldParameters) GravityAt(position Vector2D) Vector2D {
	r := position.Length()
	return position.Normalize().Scale(-w.GravitationalAcceleration(r))
}

// IsInSpace reports whether the altitude is at or above the atmosphere limit.
func (w WorldParameters) IsInSpace(altitude float64) bool {
	return altitude >= AtmosphereLimitAltitude
}

// IsInAtmosphere reports whether the altitude is above ground and below the
// atmosphere limit.
func (w WorldParameters) IsInAtmosphere(altitude float64) bool {
	return altitude >= 0 && altitude < AtmosphereLimitAltitude
}

// IsBelowSurface reports whether a point at distance from the center is
// inside the planet.
func (w WorldParameters) IsBelowSurface(distance float64) bool {
	return distance < w.PlanetRadius
}

// GroundVelocity is the velocity of the co-rotating surface frame at
// position. The planet spins clockwise, so the ground under the pad at
// (0, R) moves toward +X (east).
func (w WorldParameters) GroundVelocity(position Vector2D) Vector2D {
	return Vector2D{
		X: w.RotationRate * position.Y,
		Y: -w.RotationRate * position.X,
	}
}

// SpeedOfSound returns the local speed of sound using a linear lapse-rate
// troposphere capped at a stratospheric floor temperature.
func (w WorldParameters) SpeedOfSound(altitude float64) float64 {
	t := surfaceTemperature - lapseRate*math.Max(altitude, 0)
	if t < minTemperature {
		t = minTemperature
	}
	return math.Sqrt(heatCapacityRatio * specificGasConst * t)
}

// SurfaceSpeed returns the rotational speed of the equatorial surface.
func (w WorldParameters) SurfaceSpeed() float64 {
	return math.Abs(w.RotationRate) * w.PlanetRadius
}
