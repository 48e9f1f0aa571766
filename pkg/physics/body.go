package physics

// RigidBody holds the rocket's kinematic state. Rotation is measured in
// radians from the local "up" direction; positive values turn left
// (counter-clockwise).
type RigidBody struct {
	Position        Vector2D
	Velocity        Vector2D
	Rotation        float64
	AngularVelocity float64
	Mass            float64

	force Vector2D
}

// NewRigidBody creates a body at rest.
func NewRigidBody(position Vector2D, mass float64) *RigidBody {
	return &RigidBody{Position: position, Mass: mass}
}

// ApplyForce adds a force to the accumulator.
func (b *RigidBody) ApplyForce(f Vector2D) {
	b.force = b.force.Add(f)
}

// ClearForces resets the accumulator.
func (b *RigidBody) ClearForces() {
	b.force = Vector2D{}
}

// Force returns the accumulated force.
func (b *RigidBody) Force() Vector2D {
	return b.force
}

// Acceleration returns F/m, or zero for a massless body.
func (b *RigidBody) Acceleration() Vector2D {
	if b.Mass <= 0 {
		return Vector2D{}
	}
	return b.force.Scale(1 / b.Mass)
}

// Integrate advances the body by dt with semi-implicit Euler: velocity
// first, then position from the updated velocity.
func (b *RigidBody) Integrate(dt float64) {
	b.Velocity = b.Velocity.Add(b.Acceleration().Scale(dt))
	b.Position = b.Position.Add(b.Velocity.Scale(dt))
}

// LocalUp returns the outward radial unit vector at the body's position.
func (b *RigidBody) LocalUp() Vector2D {
	return b.Position.Normalize()
}

// Forward returns the body's nose direction in world coordinates.
func (b *RigidBody) Forward() Vector2D {
	return b.LocalUp().Rotate(b.Rotation)
}
