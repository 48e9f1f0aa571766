package engine

import (
	"github.com/EngoEngine/ecs"

	"github.com/opd-ai/go-orbit/pkg/event"
	"github.com/opd-ai/go-orbit/pkg/flight"
	"github.com/opd-ai/go-orbit/pkg/orbit"
)

// System priorities. ecs runs higher priorities first, which yields the
// per-tick order guidance, physics, autopilot, limiter, navigation.
const (
	PriorityGuidance   = 50
	PriorityPhysics    = 40
	PriorityAutopilot  = 30
	PriorityLimiter    = 20
	PriorityNavigation = 10
)

const flameOutReason = "Fuel exhausted"

// rocketTracker is implemented by every system that follows the rocket
// entity.
type rocketTracker interface {
	Add(basic *ecs.BasicEntity)
}

// rocketSystem holds the shared entity bookkeeping. A system with no
// entity is idle; destruction removes the entity from every system.
type rocketSystem struct {
	game   *Game
	entity *ecs.BasicEntity
}

// Add attaches the rocket entity.
func (s *rocketSystem) Add(basic *ecs.BasicEntity) {
	s.entity = basic
}

// Remove satisfies the ecs.System interface
func (s *rocketSystem) Remove(basic ecs.BasicEntity) {
	if s.entity != nil && s.entity.ID() == basic.ID() {
		s.entity = nil
	}
}

func (s *rocketSystem) idle() bool {
	return s.entity == nil
}

// GuidanceSystem integrates attitude from manual input or the autopilot hold.
type GuidanceSystem struct{ rocketSystem }

// Priority implements ecs.Prioritizer.
func (*GuidanceSystem) Priority() int { return PriorityGuidance }

// Update ignores the float32 ecs dt; the game's float64 sub-step is used.
func (s *GuidanceSystem) Update(float32) {
	if s.idle() {
		return
	}
	g := s.game
	b := g.sim.Body
	res := flight.UpdateGuidance(flight.GuidanceInput{
		Rotation:        b.Rotation,
		AngularVelocity: b.AngularVelocity,
		TurnInput:       g.turnInput,
		Hold:            g.hold,
		TargetAngle:     g.targetAngle,
		Position:        b.Position,
		Velocity:        b.Velocity,
		Altitude:        g.sim.Altitude(),
		Config:          g.guidance,
	}, g.stepDT)
	b.Rotation = res.Rotation
	b.AngularVelocity = res.AngularVelocity
	g.visualRotation = flight.UpdateVisualGuidance(g.visualRotation, b.Rotation, g.stepDT)
}

// PhysicsSystem steps forces, integration and ground contact.
type PhysicsSystem struct{ rocketSystem }

// Priority implements ecs.Prioritizer.
func (*PhysicsSystem) Priority() int { return PriorityPhysics }

// Update runs one simulation step.
func (s *PhysicsSystem) Update(float32) {
	if s.idle() {
		return
	}
	g := s.game
	res := g.sim.Step(g.stepDT)
	if g.destroyed {
		return
	}
	if g.sim.Launched {
		g.missionTime += g.stepDT
	}

	switch {
	case res.Released:
		g.logger.Info(g.ctx(), "Liftoff", "twr", g.sim.TWR())
	case res.Landed:
		g.landed = true
		g.publishFlight(event.RocketLanded, "")
		g.logger.Info(g.ctx(), "Touchdown")
	case !g.sim.Resting():
		g.landed = false
	}
	if res.FlameOut {
		g.projector.Invalidate()
		g.publishFlight(event.EngineCut, flameOutReason)
	}
}

// AutopilotSystem ticks the head of the script queue.
type AutopilotSystem struct{ rocketSystem }

// Priority implements ecs.Prioritizer.
func (*AutopilotSystem) Priority() int { return PriorityAutopilot }

// Update advances the autopilot.
func (s *AutopilotSystem) Update(float32) {
	if s.idle() {
		return
	}
	s.game.pilot.Update(s.game.stepDT)
}

// LimiterSystem enforces the atmospheric speed limit, heating and
// structural failure.
type LimiterSystem struct{ rocketSystem }

// Priority implements ecs.Prioritizer.
func (*LimiterSystem) Priority() int { return PriorityLimiter }

// Update threads the limiter accumulators through one pass.
func (s *LimiterSystem) Update(float32) {
	if s.idle() {
		return
	}
	g := s.game
	sim := g.sim
	b := sim.Body
	alt := sim.Altitude()

	res := flight.EnforceAtmosphericLimits(flight.LimiterInput{
		Altitude:        alt,
		Velocity:        b.Velocity,
		Mass:            sim.Rocket.CurrentMass(),
		Density:         g.World.AtmosphericDensity(alt),
		SurfaceDensity:  g.World.SurfaceDensity,
		DragCoefficient: sim.Aero.DragCoefficient,
		Area:            sim.Aero.Area,
		Gravity:         sim.LocalGravity(),
		Heat:            g.heat,
		Glow:            g.glow,
		OverspeedTime:   g.overspeedTime,
		HasBurnedUp:     g.hasBurnedUp,
		GameOver:        g.destroyed,
		Random:          g.rng,
	}, g.stepDT)

	b.Velocity = res.Velocity
	g.heat = res.Heat
	g.glow = res.Glow
	g.overspeedTime = res.OverspeedTime
	g.hasBurnedUp = res.HasBurnedUp
	g.speedLimit = res.SpeedLimit

	if res.Explode {
		g.explode(b.Position)
	}
	if res.Destroy {
		g.destroy(res.Reason)
	}
}

// NavigationSystem refreshes orbital elements, detects orbit insertion and
// keeps the trajectory projection current.
type NavigationSystem struct{ rocketSystem }

// Priority implements ecs.Prioritizer.
func (*NavigationSystem) Priority() int { return PriorityNavigation }

// Update recomputes elements every sub-step and the projection once per frame.
func (s *NavigationSystem) Update(float32) {
	if s.idle() {
		return
	}
	g := s.game
	sim := g.sim
	g.elements = g.currentElements()

	alt := sim.Altitude()
	if !g.orbitAchieved && sim.Launched && g.World.IsInSpace(alt) && g.elements.IsStable() {
		g.orbitAchieved = true
		g.publishFlight(event.OrbitAchieved, "")
		g.logger.Info(g.ctx(), "Stable orbit achieved",
			"apoapsis", g.elements.ApoapsisAltitude,
			"periapsis", g.elements.PeriapsisAltitude,
		)
	}

	if g.lastSubstep {
		g.projector.Update(orbit.ProjectorState{
			Position:   sim.Body.Position,
			Velocity:   sim.Body.Velocity,
			Thrusting:  sim.CurrentThrust() > 0,
			StageIndex: sim.Rocket.ActiveStageIndex(),
			InSpace:    g.World.IsInSpace(alt),
		}, g.frameDT)
	}
}

// initSystems registers the flight systems with the ecs world.
func (g *Game) initSystems() {
	g.systems = &ecs.World{}
	base := rocketSystem{game: g}

	guidance := &GuidanceSystem{base}
	physics := &PhysicsSystem{base}
	pilot := &AutopilotSystem{base}
	limiter := &LimiterSystem{base}
	navigation := &NavigationSystem{base}

	// Execution order comes from Priority, not registration order.
	g.systems.AddSystem(navigation)
	g.systems.AddSystem(limiter)
	g.systems.AddSystem(guidance)
	g.systems.AddSystem(pilot)
	g.systems.AddSystem(physics)

	g.tracked = []rocketTracker{guidance, physics, pilot, limiter, navigation}
}
