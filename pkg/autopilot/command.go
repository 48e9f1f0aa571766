package autopilot

import (
	"fmt"
	"math"

	"github.com/opd-ai/go-orbit/pkg/flight"
)

// Command is one parsed script instruction. The concrete types below are the
// complete set.
type Command interface {
	fmt.Stringer
	command()
}

// Comparison is the relational operator of an until condition.
type Comparison int

// Comparisons. CompareEqual picks its direction from the first sample.
const (
	CompareAtLeast Comparison = iota
	CompareAtMost
	CompareEqual
)

func (c Comparison) String() string {
	switch c {
	case CompareAtMost:
		return "<="
	case CompareEqual:
		return "="
	default:
		return ">="
	}
}

// Quantity is an orbital value an until step tracks.
type Quantity string

// Tracked quantities.
const (
	Apoapsis  Quantity = "apoapsis"
	Periapsis Quantity = "periapsis"
)

// Condition is what a WaitUntil polls for.
type Condition string

// Wait conditions.
const (
	UntilApoapsis   Condition = "apoapsis"
	UntilPeriapsis  Condition = "periapsis"
	UntilAltitude   Condition = "altitude"
	UntilStageEmpty Condition = "stage empty"
)

// Ignite starts the engines.
type Ignite struct{}

// Cut shuts the engines down.
type Cut struct{}

// Stage separates the active stage.
type Stage struct{}

// SetThrottle sets the throttle. Value is already clamped to [0, 1].
type SetThrottle struct{ Value float64 }

// Wait pauses for a span of simulated time.
type Wait struct{ Seconds float64 }

// WaitUntil polls a condition. Value is only used by UntilAltitude.
type WaitUntil struct {
	Condition Condition
	Value     float64
}

// Hold sets the attitude hold.
type Hold struct{ Mode flight.HoldMode }

// Pitch holds an explicit angle. Degrees is measured from vertical toward
// the named direction.
type Pitch struct {
	East    bool
	Degrees float64
}

// Angle returns the hold rotation in radians; east is negative.
func (p Pitch) Angle() float64 {
	rad := p.Degrees * math.Pi / 180
	if p.East {
		return -rad
	}
	return rad
}

// UntilOrbit burns until an orbital quantity crosses Target (meters). When
// HasThrottle is set the throttle is applied on every tick.
type UntilOrbit struct {
	Quantity    Quantity
	Op          Comparison
	Target      float64
	Throttle    float64
	HasThrottle bool
	Burn        bool
}

// UntilTWR polls thrust-to-weight ratio.
type UntilTWR struct {
	Op          Comparison
	Value       float64
	Throttle    float64
	HasThrottle bool
}

func (Ignite) command()      {}
func (Cut) command()         {}
func (Stage) command()       {}
func (SetThrottle) command() {}
func (Wait) command()        {}
func (WaitUntil) command()   {}
func (Hold) command()        {}
func (Pitch) command()       {}
func (UntilOrbit) command()  {}
func (UntilTWR) command()    {}

func (Ignite) String() string        { return "ignite" }
func (Cut) String() string           { return "cut" }
func (Stage) String() string         { return "stage" }
func (c SetThrottle) String() string { return fmt.Sprintf("throttle %g", c.Value) }
func (c Wait) String() string        { return fmt.Sprintf("wait %g", c.Seconds) }
func (c Hold) String() string        { return "hold " + string(c.Mode) }

func (c WaitUntil) String() string {
	if c.Condition == UntilAltitude {
		return fmt.Sprintf("wait until altitude %g", c.Value)
	}
	return "wait until " + string(c.Condition)
}

func (c Pitch) String() string {
	dir := "west"
	if c.East {
		dir = "east"
	}
	return fmt.Sprintf("pitch %s %g", dir, c.Degrees)
}

func (c UntilOrbit) String() string {
	verb := "until"
	if c.Burn {
		verb = "burn_until"
	}
	s := fmt.Sprintf("%s %s %s %g", verb, c.Quantity, c.Op, c.Target)
	if c.HasThrottle {
		s += fmt.Sprintf(" throttle %g", c.Throttle)
	}
	return s
}

func (c UntilTWR) String() string {
	s := fmt.Sprintf("until twr %s %g", c.Op, c.Value)
	if c.HasThrottle {
		s += fmt.Sprintf(" throttle %g", c.Throttle)
	}
	return s
}
