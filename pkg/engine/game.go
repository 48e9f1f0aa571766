// pkg/engine/game.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/EngoEngine/ecs"
	"github.com/google/uuid"

	"github.com/opd-ai/go-orbit/pkg/autopilot"
	"github.com/opd-ai/go-orbit/pkg/config"
	"github.com/opd-ai/go-orbit/pkg/event"
	"github.com/opd-ai/go-orbit/pkg/flight"
	"github.com/opd-ai/go-orbit/pkg/logging"
	"github.com/opd-ai/go-orbit/pkg/orbit"
	"github.com/opd-ai/go-orbit/pkg/physics"
)

// Frame and log limits.
const (
	MaxFrameTime   = 0.1 // s of wall time consumed per frame
	logHistory     = 100
	telemetryLines = 10
	hotStagingText = "Hot staging (separated while engines were firing)"
)

var (
	// ErrRocketDestroyed is returned by controls issued after destruction.
	ErrRocketDestroyed = errors.New("rocket destroyed")
	// ErrCannotStage is returned when no further stage is available.
	ErrCannotStage = errors.New("no stage to separate")
	// ErrNoThrust is returned by Ignite when no stage can fire.
	ErrNoThrust = errors.New("no stage can produce thrust")
)

// Game owns one flight: world, rocket, simulation, autopilot and the
// accumulators the atmosphere limiter threads between ticks. All exported
// methods are safe for concurrent use. Event handlers run while the game
// lock is held and must not call back into the Game.
type Game struct {
	Config   *config.GameConfig
	World    physics.WorldParameters
	EventBus *event.Bus

	StateLock   sync.RWMutex
	Running     bool
	CurrentTick uint64
	LastUpdate  time.Time

	flightID  string
	sim       *flight.Simulation
	pilot     *autopilot.Autopilot
	projector *orbit.Projector
	guidance  flight.GuidanceConfig
	rng       *rand.Rand
	logger    *logging.Logger

	systems *ecs.World
	rocket  ecs.BasicEntity
	tracked []rocketTracker

	turnInput   float64
	hold        flight.HoldMode
	targetAngle float64
	gameSpeed   float64
	timeWarp    float64

	heat          float64
	glow          float64
	overspeedTime float64
	hasBurnedUp   bool
	speedLimit    float64

	stepDT         float64
	frameDT        float64
	lastSubstep    bool
	missionTime    float64
	visualRotation float64
	elements       orbit.Elements

	destroyed     bool
	destroyReason string
	landed        bool
	orbitAchieved bool
	logLines      []string
}

// NewGame creates a game on the pad from the given configuration
func NewGame(cfg *config.GameConfig, logger *logging.Logger) (*Game, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	world, err := cfg.World.Parameters()
	if err != nil {
		return nil, logging.WrapError(err, "invalid world")
	}
	if logger == nil {
		logger = logging.NewLogger()
	}

	seed := uint64(cfg.Simulation.Seed)
	if cfg.Simulation.Seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	g := &Game{
		Config:     cfg,
		World:      world,
		EventBus:   event.NewEventBus(),
		LastUpdate: time.Now(),
		guidance:   cfg.Simulation.Guidance,
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		logger:     logger.Component("engine"),
		projector: orbit.NewProjector(world, orbit.Options{
			MaxDuration: cfg.Simulation.ProjectionHorizon.Seconds(),
			MaxPoints:   cfg.Simulation.ProjectionPoints,
		}),
	}
	g.initSystems()
	if err := g.resetFlight(); err != nil {
		return nil, err
	}
	return g, nil
}

// resetFlight builds a fresh rocket on the pad under a new flight ID.
func (g *Game) resetFlight() error {
	vehicle, err := g.Config.Rocket.Build()
	if err != nil {
		return logging.WrapError(err, "invalid rocket")
	}

	if g.pilot != nil {
		g.pilot.Stop()
	}
	g.systems.RemoveEntity(g.rocket)

	g.flightID = uuid.NewString()
	g.sim = flight.NewSimulation(g.World, vehicle, hooks{g})
	g.pilot = autopilot.New(port{g}, g.autopilotLog)
	g.projector.Invalidate()

	g.turnInput = 0
	g.hold = flight.HoldNone
	g.targetAngle = 0
	g.gameSpeed = autopilot.NormalGameSpeed
	g.timeWarp = 1
	g.heat, g.glow, g.overspeedTime = 0, 0, 0
	g.hasBurnedUp = false
	g.speedLimit = math.Inf(1)
	g.missionTime = 0
	g.visualRotation = 0
	g.destroyed, g.destroyReason = false, ""
	g.landed = false
	g.orbitAchieved = false
	g.logLines = nil
	g.elements = g.currentElements()

	g.rocket = ecs.NewBasic()
	for _, s := range g.tracked {
		s.Add(&g.rocket)
	}
	return nil
}

// Start marks the game as running and announces the current flight
func (g *Game) Start() {
	g.StateLock.Lock()
	defer g.StateLock.Unlock()

	g.Running = true
	g.LastUpdate = time.Now()
	g.publishFlight(event.GameStarted, "")
	g.logger.Info(g.ctx(), "Flight ready on pad", "rocket", g.Config.Rocket.Name)
}

// Stop marks the game as stopped
func (g *Game) Stop() {
	g.StateLock.Lock()
	defer g.StateLock.Unlock()
	g.Running = false
}

// IsRunning reports whether the tick loop is active.
func (g *Game) IsRunning() bool {
	g.StateLock.RLock()
	defer g.StateLock.RUnlock()
	return g.Running
}

// LastTick returns the wall time of the most recent Update.
func (g *Game) LastTick() time.Time {
	g.StateLock.RLock()
	defer g.StateLock.RUnlock()
	return g.LastUpdate
}

// FlightID returns the identifier of the current flight.
func (g *Game) FlightID() string {
	g.StateLock.RLock()
	defer g.StateLock.RUnlock()
	return g.flightID
}

// Run ticks the game every interval until ctx is cancelled
func (g *Game) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	g.Start()
	defer g.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			g.Update()
		}
	}
}

// Update advances the game by the wall time since the previous update
func (g *Game) Update() {
	g.StateLock.Lock()
	defer g.StateLock.Unlock()
	g.advance(g.calculateDeltaTime())
}

// Advance steps the game by frameTime seconds of wall time. It is the
// deterministic entry point used by headless runs and tests.
func (g *Game) Advance(frameTime float64) {
	g.StateLock.Lock()
	defer g.StateLock.Unlock()
	g.LastUpdate = time.Now()
	g.advance(frameTime)
}

// calculateDeltaTime returns the time since last update
func (g *Game) calculateDeltaTime() float64 {
	now := time.Now()
	deltaTime := now.Sub(g.LastUpdate).Seconds()
	g.LastUpdate = now
	return deltaTime
}

// advance scales the frame by game speed and time warp and runs the
// systems once per sub-step, so physics and script timers consume
// identical dt.
func (g *Game) advance(frameTime float64) {
	frameTime = math.Min(math.Max(frameTime, 0), MaxFrameTime)
	g.CurrentTick++
	if frameTime == 0 || g.destroyed {
		return
	}

	total := frameTime * g.gameSpeed * g.timeWarp
	n := int(math.Ceil(total / g.Config.Simulation.MaxSubstep))
	if n < 1 {
		n = 1
	}
	g.frameDT = frameTime
	g.stepDT = total / float64(n)

	for i := 0; i < n && !g.destroyed; i++ {
		g.lastSubstep = i == n-1
		g.systems.Update(float32(g.stepDT))
	}
}

// Snapshot returns the current telemetry.
func (g *Game) Snapshot() Telemetry {
	g.StateLock.RLock()
	defer g.StateLock.RUnlock()
	return g.telemetry()
}

// Trajectory returns the cached coasting projection.
func (g *Game) Trajectory() orbit.Trajectory {
	g.StateLock.RLock()
	defer g.StateLock.RUnlock()
	return g.projector.Current()
}

// Ignite lights the engines of the active stage.
func (g *Game) Ignite() error {
	g.StateLock.Lock()
	defer g.StateLock.Unlock()
	return g.ignite()
}

// Cut shuts the engines down.
func (g *Game) Cut() error {
	g.StateLock.Lock()
	defer g.StateLock.Unlock()
	if g.destroyed {
		return ErrRocketDestroyed
	}
	g.cut()
	return nil
}

// Stage separates the active stage. Separating while thrust is produced
// destroys the rocket; that is reported through events and telemetry, not
// as an error.
func (g *Game) Stage() error {
	g.StateLock.Lock()
	defer g.StateLock.Unlock()
	return g.stage()
}

// SetThrottle sets the throttle, clamped to [0, 1].
func (g *Game) SetThrottle(value float64) error {
	g.StateLock.Lock()
	defer g.StateLock.Unlock()
	if g.destroyed {
		return ErrRocketDestroyed
	}
	g.setThrottle(value)
	return nil
}

// SetTurn sets manual turn input; only the sign matters.
func (g *Game) SetTurn(input float64) {
	g.StateLock.Lock()
	defer g.StateLock.Unlock()
	switch {
	case input > 0:
		g.turnInput = 1
	case input < 0:
		g.turnInput = -1
	default:
		g.turnInput = 0
	}
}

// SetTimeWarp sets the player time warp, clamped to [1, MaxTimeWarp], and
// returns the value applied.
func (g *Game) SetTimeWarp(factor float64) float64 {
	g.StateLock.Lock()
	defer g.StateLock.Unlock()
	if math.IsNaN(factor) {
		factor = 1
	}
	g.timeWarp = math.Max(1, math.Min(g.Config.Simulation.MaxTimeWarp, factor))
	return g.timeWarp
}

// LoadScript replaces the autopilot queue with script.
func (g *Game) LoadScript(script string) error {
	g.StateLock.Lock()
	defer g.StateLock.Unlock()
	if g.destroyed {
		return ErrRocketDestroyed
	}
	return g.pilot.Run(script)
}

// AbortScript stops the autopilot.
func (g *Game) AbortScript() {
	g.StateLock.Lock()
	defer g.StateLock.Unlock()
	g.pilot.Stop()
	g.gameSpeed = autopilot.NormalGameSpeed
}

// Restart discards the current flight and puts a new rocket on the pad.
func (g *Game) Restart() error {
	g.StateLock.Lock()
	defer g.StateLock.Unlock()

	g.publishFlight(event.GameRestarted, "")
	if err := g.resetFlight(); err != nil {
		return err
	}
	g.publishFlight(event.GameStarted, "")
	g.logger.Info(g.ctx(), "Flight restarted")
	return nil
}

func (g *Game) ignite() error {
	if g.destroyed {
		return ErrRocketDestroyed
	}
	if g.sim.Rocket.CurrentThrust() <= 0 {
		return ErrNoThrust
	}
	if g.sim.EngineOn {
		return nil
	}
	g.sim.EngineOn = true
	g.projector.Invalidate()
	g.publishFlight(event.EngineIgnited, "")
	return nil
}

func (g *Game) cut() {
	if !g.sim.EngineOn {
		return
	}
	g.sim.EngineOn = false
	g.projector.Invalidate()
	g.publishFlight(event.EngineCut, "")
}

func (g *Game) stage() error {
	if g.destroyed {
		return ErrRocketDestroyed
	}
	if !g.sim.Rocket.CanStage() {
		return ErrCannotStage
	}
	if g.sim.Rocket.WouldExplodeOnStaging(g.sim.CurrentThrust()) {
		g.explode(g.sim.Body.Position)
		g.destroy(hotStagingText)
		return nil
	}
	g.sim.Rocket.PerformStaging()
	g.projector.Invalidate()
	g.publishFlight(event.StageSeparated, g.sim.Rocket.ActiveStage().Name)
	return nil
}

func (g *Game) setThrottle(value float64) {
	if math.IsNaN(value) {
		value = 0
	}
	g.sim.Throttle = math.Max(0, math.Min(1, value))
}

// explode publishes a visual explosion at position.
func (g *Game) explode(position physics.Vector2D) {
	e := g.flightEvent(event.Explosion, "")
	e.Source = position
	g.EventBus.Publish(e)
}

// destroy ends the flight. Only the first reason is kept.
func (g *Game) destroy(reason string) {
	if g.destroyed {
		return
	}
	g.destroyed = true
	g.destroyReason = reason
	g.sim.EngineOn = false
	g.pilot.Stop()
	g.gameSpeed = autopilot.NormalGameSpeed
	g.systems.RemoveEntity(g.rocket)
	g.publishFlight(event.RocketDestroyed, reason)
	g.logger.Warn(g.ctx(), "Rocket destroyed", "reason", reason, "altitude", g.sim.Altitude())
}

func (g *Game) autopilotLog(line string) {
	g.logLines = append(g.logLines, line)
	if len(g.logLines) > logHistory {
		g.logLines = g.logLines[len(g.logLines)-logHistory:]
	}
	isError := strings.HasPrefix(line, "ERR:")
	g.EventBus.Publish(event.NewLogEvent(g, g.flightID, line, isError))
	g.logger.Debug(g.ctx(), "Autopilot", "line", line)
}

func (g *Game) ctx() context.Context {
	return logging.WithFlightID(context.Background(), g.flightID)
}

func (g *Game) flightEvent(t event.Type, reason string) *event.FlightEvent {
	e := event.NewFlightEvent(t, g, g.flightID)
	e.Reason = reason
	e.Stage = g.sim.Rocket.ActiveStageIndex()
	e.Altitude = g.sim.Altitude()
	e.Speed = g.sim.Body.Velocity.Length()
	e.ApoapsisAltitude = g.elements.ApoapsisAltitude
	e.PeriapsisAltitude = g.elements.PeriapsisAltitude
	e.MissionTime = g.missionTime
	return e
}

func (g *Game) publishFlight(t event.Type, reason string) {
	g.EventBus.Publish(g.flightEvent(t, reason))
}

func (g *Game) currentElements() orbit.Elements {
	b := g.sim.Body
	return orbit.ComputeApoPeri(b.Position, b.Velocity, g.World.GravitationalParameter, g.World.PlanetRadius)
}

func (g *Game) status() string {
	switch {
	case g.destroyed:
		return StatusDestroyed
	case !g.sim.Launched:
		return StatusPrelaunch
	case g.landed && g.sim.Resting():
		return StatusLanded
	case g.orbitAchieved && g.elements.IsStable():
		return StatusOrbit
	default:
		return StatusFlight
	}
}

func (g *Game) telemetry() Telemetry {
	s := g.sim
	b := s.Body
	v := s.Rocket

	alt := s.Altitude()
	densityRatio := g.World.AtmosphericDensity(alt) / g.World.SurfaceDensity
	stages := make([]StageTelemetry, len(v.Stages))
	active := v.ActiveStageIndex()
	for i, st := range v.Stages {
		stages[i] = StageTelemetry{
			Name:            st.Name,
			Active:          st.IsActive,
			Attached:        active < 0 || i >= active,
			Fuel:            st.FuelRemaining,
			Capacity:        st.PropellantMass,
			Thrust:          st.Thrust,
			SpecificImpulse: st.EffectiveIsp(densityRatio),
		}
	}

	logTail := g.logLines
	if len(logTail) > telemetryLines {
		logTail = logTail[len(logTail)-telemetryLines:]
	}

	return Telemetry{
		FlightID:      g.flightID,
		Tick:          g.CurrentTick,
		MissionTime:   g.missionTime,
		Status:        g.status(),
		DestroyReason: g.destroyReason,

		Position:        b.Position,
		Velocity:        b.Velocity,
		Altitude:        alt,
		Speed:           b.Velocity.Length(),
		AirSpeed:        s.Aero.AirVelocity.Length(),
		VerticalSpeed:   orbit.RadialVelocity(b.Position, b.Velocity),
		Rotation:        b.Rotation,
		VisualRotation:  g.visualRotation,
		AngularVelocity: b.AngularVelocity,

		EngineOn:    s.EngineOn,
		Throttle:    s.Throttle,
		Thrust:      s.CurrentThrust(),
		Mass:        v.CurrentMass(),
		TWR:         s.TWR(),
		DeltaV:      v.RemainingDeltaV(),
		ActiveStage: active,
		Stages:      stages,

		Mach:            s.Aero.Mach,
		AngleOfAttack:   s.Aero.AngleOfAttack,
		DragCoefficient: s.Aero.DragCoefficient,
		Area:            s.Aero.Area,
		DynamicPressure: s.Aero.DynamicPressure,
		Density:         g.World.AtmosphericDensity(alt),
		Heat:            g.heat,
		Glow:            g.glow,
		SpeedLimit:      Float(g.speedLimit),

		Apoapsis:     Float(g.elements.ApoapsisAltitude),
		Periapsis:    Float(g.elements.PeriapsisAltitude),
		Eccentricity: g.elements.Eccentricity,
		Escape:       g.elements.IsHyperbolic(),
		StableOrbit:  g.elements.IsStable(),

		Hold:             string(g.hold),
		TargetAngle:      g.targetAngle,
		GameSpeed:        g.gameSpeed,
		TimeWarp:         g.timeWarp,
		AutopilotRunning: g.pilot.IsRunning(),
		AutopilotQueue:   g.pilot.Pending(),
		Log:              append([]string(nil), logTail...),
	}
}

// hooks routes simulation outcomes into the game.
type hooks struct{ g *Game }

func (h hooks) Explode(position physics.Vector2D) { h.g.explode(position) }
func (h hooks) DestroyRocket(reason string)        { h.g.destroy(reason) }

// port is the autopilot's view of the game. It is only called from inside
// the tick, with the game lock already held.
type port struct{ g *Game }

func (p port) SetThrottle(value float64) { p.g.setThrottle(value) }
func (p port) IgniteEngines() {
	if err := p.g.ignite(); err != nil {
		p.g.autopilotLog(fmt.Sprintf("ERR: ignition failed: %v", err))
	}
}
func (p port) CutEngines() { p.g.cut() }
func (p port) PerformStaging() {
	if err := p.g.stage(); err != nil {
		p.g.autopilotLog(fmt.Sprintf("ERR: staging failed: %v", err))
	}
}
func (p port) SetAutopilotHold(mode flight.HoldMode) { p.g.hold = mode }
func (p port) SetAutopilotTargetAngle(angle float64) { p.g.targetAngle = angle }
func (p port) SetGameSpeed(speed float64) {
	if speed <= 0 || math.IsNaN(speed) {
		speed = autopilot.NormalGameSpeed
	}
	p.g.gameSpeed = speed
}

func (p port) Altitude() float64          { return p.g.sim.Altitude() }
func (p port) ApoapsisAltitude() float64  { return p.g.currentElements().ApoapsisAltitude }
func (p port) PeriapsisAltitude() float64 { return p.g.currentElements().PeriapsisAltitude }
func (p port) RadialVelocity() float64 {
	b := p.g.sim.Body
	return orbit.RadialVelocity(b.Position, b.Velocity)
}
func (p port) CurrentTWR() float64      { return p.g.sim.TWR() }
func (p port) ActiveStageFuel() float64 { return p.g.sim.Rocket.ActiveStageFuel() }
func (p port) IsEngineOn() bool         { return p.g.sim.EngineOn }

var (
	_ autopilot.EnginePort = port{}
	_ flight.Hooks         = hooks{}
)
