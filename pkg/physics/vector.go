// pkg/physics/vector.go
package physics

import "math"

// Up is the direction returned when a zero-length vector is normalized.
// A rocket sitting exactly at rest is a routine state, so normalization
// never fails.
var Up = Vector2D{X: 0, Y: 1}

// Vector2D is a 2D vector in meters or meters per second, world frame,
// origin at the planet center.
type Vector2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns v + other.
func (v Vector2D) Add(other Vector2D) Vector2D {
	return Vector2D{X: v.X + other.X, Y: v.Y + other.Y}
}

// Sub returns v - other.
func (v Vector2D) Sub(other Vector2D) Vector2D {
	return Vector2D{X: v.X - other.X, Y: v.Y - other.Y}
}

// Scale multiplies the vector by a scalar.
func (v Vector2D) Scale(factor float64) Vector2D {
	return Vector2D{X: v.X * factor, Y: v.Y * factor}
}

// Length returns the magnitude of the vector.
func (v Vector2D) Length() float64 {
	return math.Hypot(v.X, v.Y)
}

// LengthSquared returns the squared magnitude.
func (v Vector2D) LengthSquared() float64 {
	return v.X*v.X + v.Y*v.Y
}

// Normalize returns the unit vector in the same direction, or Up for a
// zero-length vector.
func (v Vector2D) Normalize() Vector2D {
	length := v.Length()
	if length == 0 {
		return Up
	}
	return Vector2D{X: v.X / length, Y: v.Y / length}
}

// IsZero reports whether both components are exactly zero.
func (v Vector2D) IsZero() bool {
	return v.X == 0 && v.Y == 0
}

// Dot returns the dot product.
func (v Vector2D) Dot(other Vector2D) float64 {
	return v.X*other.X + v.Y*other.Y
}

// Cross returns the scalar 2D cross product v.X*other.Y - v.Y*other.X.
func (v Vector2D) Cross(other Vector2D) float64 {
	return v.X*other.Y - v.Y*other.X
}

// Rotate rotates the vector counter-clockwise by angle radians.
func (v Vector2D) Rotate(angle float64) Vector2D {
	sin, cos := math.Sincos(angle)
	return Vector2D{
		X: v.X*cos - v.Y*sin,
		Y: v.X*sin + v.Y*cos,
	}
}

// Angle returns the polar angle of the vector in radians.
func (v Vector2D) Angle() float64 {
	return math.Atan2(v.Y, v.X)
}

// Distance returns the distance between two points.
func (v Vector2D) Distance(other Vector2D) float64 {
	return v.Sub(other).Length()
}

// FromAngle creates a vector from a polar angle and magnitude.
func FromAngle(angle, magnitude float64) Vector2D {
	sin, cos := math.Sincos(angle)
	return Vector2D{X: magnitude * cos, Y: magnitude * sin}
}

// AngleBetween returns the signed angle that rotates from onto to, in (-pi, pi].
func AngleBetween(from, to Vector2D) float64 {
	return math.Atan2(from.Cross(to), from.Dot(to))
}

// NormalizeAngle wraps an angle into (-pi, pi].
func NormalizeAngle(angle float64) float64 {
	a := math.Mod(angle+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}
