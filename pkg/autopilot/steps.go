package autopilot

import (
	"fmt"
	"math"

	"github.com/opd-ai/go-orbit/pkg/flight"
)

// Time compression used while coasting to apoapsis.
const (
	CoastGameSpeed  = 10.0
	NormalGameSpeed = 1.0
	emptyStageFuel  = 1.0 // kg
)

// step is one queued polling unit. tick is called once per game tick while
// the step is at the head of the queue and returns true when done.
type step struct {
	label      string
	tick       func(dt float64) bool
	onStop     func()
	onComplete func(remaining int)
}

// compile turns a command into a step bound to the port.
func (a *Autopilot) compile(cmd Command) *step {
	port := a.port
	s := &step{label: cmd.String()}

	switch c := cmd.(type) {
	case Ignite:
		s.tick = a.once(func() { port.IgniteEngines() }, "Ignition")
	case Cut:
		s.tick = a.once(func() { port.CutEngines() }, "Engine cut")
	case Stage:
		s.tick = a.once(func() { port.PerformStaging() }, "Staging")
	case SetThrottle:
		s.tick = a.once(func() { port.SetThrottle(c.Value) }, fmt.Sprintf("Throttle %.0f%%", c.Value*100))
	case Hold:
		s.tick = a.once(func() { port.SetAutopilotHold(c.Mode) }, "Hold "+string(c.Mode))
	case Pitch:
		s.tick = a.once(func() {
			port.SetAutopilotTargetAngle(c.Angle())
			port.SetAutopilotHold(flight.HoldTarget)
		}, fmt.Sprintf("Pitch %s", c))
	case Wait:
		remaining := c.Seconds
		s.tick = func(dt float64) bool {
			remaining -= dt
			return remaining <= 0
		}
	case WaitUntil:
		a.compileWaitUntil(s, c)
	case UntilOrbit:
		a.compileUntilOrbit(s, c)
	case UntilTWR:
		s.tick = func(float64) bool {
			if c.HasThrottle {
				port.SetThrottle(c.Throttle)
			}
			twr := port.CurrentTWR()
			if c.Op == CompareAtMost {
				return twr <= c.Value
			}
			return twr >= c.Value
		}
	default:
		msg := fmt.Sprintf("unsupported command %T", cmd)
		s.tick = func(float64) bool {
			a.logf("ERR: %s", msg)
			return true
		}
	}
	return s
}

// once wraps a one-tick action.
func (a *Autopilot) once(action func(), message string) func(float64) bool {
	return func(float64) bool {
		action()
		a.logf("%s", message)
		return true
	}
}

func (a *Autopilot) compileWaitUntil(s *step, c WaitUntil) {
	port := a.port
	switch c.Condition {
	case UntilApoapsis:
		started := false
		s.tick = func(float64) bool {
			if !started {
				started = true
				port.SetGameSpeed(CoastGameSpeed)
			}
			if port.RadialVelocity() <= 0 {
				port.SetGameSpeed(NormalGameSpeed)
				a.logf("Reached apoapsis")
				return true
			}
			return false
		}
		s.onStop = func() { port.SetGameSpeed(NormalGameSpeed) }
	case UntilPeriapsis:
		s.tick = func(float64) bool { return port.RadialVelocity() >= 0 }
	case UntilAltitude:
		s.tick = func(float64) bool { return port.Altitude() >= c.Value }
	case UntilStageEmpty:
		s.tick = func(float64) bool { return port.ActiveStageFuel() <= emptyStageFuel }
	}
}

// compileUntilOrbit builds a continuous burn that tracks apoapsis or
// periapsis toward a target. The first tick records a baseline; when the
// value already sits past the target the step completes as soon as it moves
// further away or falls back across the target. A started-past step does not
// burn on its baseline tick, and an unbounded value (escape) counts as moving
// away.
func (a *Autopilot) compileUntilOrbit(s *step, c UntilOrbit) {
	port := a.port
	read := port.ApoapsisAltitude
	if c.Quantity == Periapsis {
		read = port.PeriapsisAltitude
	}

	var (
		started     bool
		rising      bool // complete when value >= target
		startedPast bool
		prev        float64
	)

	s.tick = func(float64) bool {
		value := read()
		done := false
		baseline := !started

		if baseline {
			started = true
			switch c.Op {
			case CompareAtLeast:
				rising = true
			case CompareAtMost:
				rising = false
			default:
				rising = value < c.Target
			}
			if rising {
				startedPast = value >= c.Target
			} else {
				startedPast = value <= c.Target
			}
		}

		switch {
		case startedPast && rising:
			done = math.IsInf(value, 1) || (!baseline && (value > prev || value <= c.Target))
		case startedPast:
			done = math.IsInf(value, -1) || (!baseline && (value < prev || value >= c.Target))
		case rising:
			done = value >= c.Target
		default:
			done = value <= c.Target
		}
		prev = value

		if done {
			a.logf("%s %s reached (%.0f m)", capitalize(string(c.Quantity)), c.Op, finiteOr(value, c.Target))
			return true
		}
		if startedPast && baseline {
			return false
		}

		if c.HasThrottle {
			port.SetThrottle(c.Throttle)
		}
		if (!c.HasThrottle || c.Throttle > 0) && !port.IsEngineOn() {
			port.IgniteEngines()
		}
		return false
	}

	s.onComplete = func(remaining int) {
		if remaining == 0 {
			port.CutEngines()
		}
	}
}

func finiteOr(v, fallback float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return fallback
	}
	return v
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
