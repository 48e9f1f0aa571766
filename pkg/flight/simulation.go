// pkg/flight/simulation.go
package flight

import (
	"fmt"

	"github.com/opd-ai/go-orbit/pkg/physics"
	"github.com/opd-ai/go-orbit/pkg/rocket"
)

// Ground interaction constants.
const (
	NozzleClearance     = 0.5  // m between nozzle plane and pad
	GroundContactHeight = 1.5  // m, bottom altitude treated as touching ground
	LiftoffTWR          = 1.01 // TWR hysteresis band for leaving the ground
	HardImpactSpeed     = 15.0 // m/s ground-relative, above this a landing is fatal
	LandingSnapHeight   = 0.01 // m above the surface after a soft landing
	RestContactSpeed    = 1.0  // m/s ground-relative, below this a rocket in ground contact settles
)

// Hooks receives destructive outcomes from the simulation. Destruction is a
// game-state transition, not an error.
type Hooks interface {
	Explode(position physics.Vector2D)
	DestroyRocket(reason string)
}

// StepResult reports the notable transitions of a single step.
type StepResult struct {
	Released bool // pad clamps let go this step
	FlameOut bool // engine auto-cut on fuel exhaustion
	Landed   bool // soft ground contact
	Impact   bool // destructive ground contact
}

// Simulation integrates one rocket around one planet. It is not safe for
// concurrent use; the owner serialises all calls.
type Simulation struct {
	World  physics.WorldParameters
	Rocket *rocket.Configuration
	Body   *physics.RigidBody

	Throttle float64
	EngineOn bool
	Launched bool

	// Aero holds the effective aerodynamic values of the last step.
	Aero AeroState

	resting bool
	hooks   Hooks
}

// NewSimulation places the rocket on the pad at the top of the planet.
func NewSimulation(world physics.WorldParameters, config *rocket.Configuration, hooks Hooks) *Simulation {
	pad := physics.Vector2D{X: 0, Y: world.PlanetRadius + NozzleClearance}
	body := physics.NewRigidBody(pad, config.CurrentMass())
	body.Velocity = world.GroundVelocity(pad)

	return &Simulation{
		World:  world,
		Rocket: config,
		Body:   body,
		Aero: AeroState{
			DragCoefficient: config.DragCoefficient,
			Area:            config.CrossSectionalArea,
		},
		hooks: hooks,
	}
}

// Altitude returns the height of the rocket base above the surface.
func (s *Simulation) Altitude() float64 {
	return s.World.Altitude(s.Body.Position.Length())
}

// LocalGravity returns the gravitational acceleration magnitude at the rocket.
func (s *Simulation) LocalGravity() float64 {
	return s.World.GravitationalAcceleration(s.Body.Position.Length())
}

// CurrentThrust returns the thrust actually produced given engine state.
func (s *Simulation) CurrentThrust() float64 {
	if !s.EngineOn {
		return 0
	}
	return s.Rocket.CurrentThrust() * s.Throttle
}

// TWR returns the current thrust-to-weight ratio.
func (s *Simulation) TWR() float64 {
	weight := s.Rocket.CurrentMass() * s.LocalGravity()
	if weight <= 0 {
		return 0
	}
	return s.CurrentThrust() / weight
}

// Resting reports whether the rocket is pinned to the ground.
func (s *Simulation) Resting() bool {
	return !s.Launched || s.resting
}

// Step advances the simulation by dt seconds.
func (s *Simulation) Step(dt float64) StepResult {
	var result StepResult
	if dt <= 0 {
		return result
	}

	if !s.Launched {
		if s.TWR() <= 1 {
			s.holdOnPad(dt)
			return result
		}
		s.Launched = true
		s.resting = true
		result.Released = true
	}

	// A rocket still moving faster than RestContactSpeed is left to the
	// collision check so hard impacts inside the contact band are not lost.
	if s.Altitude() <= GroundContactHeight && s.TWR() <= LiftoffTWR &&
		(s.resting || s.groundRelativeSpeed() <= RestContactSpeed) {
		if !s.resting {
			s.resting = true
			result.Landed = true
		}
		s.restOnGround(dt)
		return result
	}
	s.resting = false

	b := s.Body
	b.ClearForces()
	b.Mass = s.Rocket.CurrentMass()
	b.ApplyForce(s.World.GravityAt(b.Position).Scale(b.Mass))

	if s.EngineOn && s.Throttle > 0 {
		if thrust := s.Rocket.CurrentThrust(); thrust > 0 {
			b.ApplyForce(b.Forward().Scale(thrust * s.Throttle))
		}
		if !s.Rocket.ConsumeFuel(dt, s.Throttle) || s.Rocket.CurrentThrust() == 0 {
			s.EngineOn = false
			result.FlameOut = true
		}
	}

	if s.World.IsInSpace(s.Altitude()) {
		s.Aero = AeroState{
			AirVelocity:     b.Velocity.Sub(s.World.GroundVelocity(b.Position)),
			DragCoefficient: s.Rocket.DragCoefficient,
			Area:            s.Rocket.CrossSectionalArea,
		}
	} else {
		s.Aero = ComputeAero(s.World, b.Position, b.Velocity, b.Rotation, s.Rocket.DragCoefficient, s.Rocket.CrossSectionalArea)
		b.ApplyForce(s.Aero.Drag)
	}

	b.Mass = s.Rocket.CurrentMass()
	b.Integrate(dt)

	if s.World.IsBelowSurface(b.Position.Length()) {
		if s.resolveGroundCollision() {
			result.Impact = true
		} else {
			result.Landed = true
		}
	}
	return result
}

// holdOnPad keeps the clamped rocket co-rotating with the pad.
func (s *Simulation) holdOnPad(dt float64) {
	b := s.Body
	b.ClearForces()
	b.Mass = s.Rocket.CurrentMass()
	radius := s.World.PlanetRadius + NozzleClearance
	b.Position = b.Position.Normalize().Scale(radius).Rotate(-s.World.RotationRate * dt)
	b.Velocity = s.World.GroundVelocity(b.Position)
	b.AngularVelocity = 0
}

func (s *Simulation) groundRelativeSpeed() float64 {
	b := s.Body
	return b.Velocity.Sub(s.World.GroundVelocity(b.Position)).Length()
}

// restOnGround pins a landed rocket to the rotating surface.
func (s *Simulation) restOnGround(dt float64) {
	b := s.Body
	b.ClearForces()
	b.Mass = s.Rocket.CurrentMass()
	b.Position = b.Position.Rotate(-s.World.RotationRate * dt)
	b.Velocity = s.World.GroundVelocity(b.Position)
}

// resolveGroundCollision reports true when the contact destroyed the rocket.
func (s *Simulation) resolveGroundCollision() bool {
	b := s.Body
	impact := s.groundRelativeSpeed()
	if impact > HardImpactSpeed {
		if s.hooks != nil {
			s.hooks.Explode(b.Position)
			s.hooks.DestroyRocket(fmt.Sprintf("Ground impact at %.1f m/s", impact))
		}
		return true
	}

	b.Velocity = physics.Vector2D{}
	if r := b.Position.Length(); r < s.World.PlanetRadius {
		b.Position = b.Position.Normalize().Scale(s.World.PlanetRadius + LandingSnapHeight)
	}
	s.resting = true
	return false
}
