// pkg/rocket/stage.go
package rocket

import (
	"errors"
	"fmt"
	"math"
)

// StandardGravity converts specific impulse in seconds to exhaust velocity.
const StandardGravity = 9.81

// ErrInvalidStage is returned when a stage definition is not physical.
var ErrInvalidStage = errors.New("invalid stage")

// Stage is a single rocket stage. FuelRemaining never exceeds PropellantMass
// and never goes below zero.
type Stage struct {
	Name            string  `json:"name"`
	Thrust          float64 `json:"thrust"`          // N
	SpecificImpulse float64 `json:"specificImpulse"` // s
	SeaLevelIsp     float64 `json:"seaLevelIsp,omitempty"`
	VacuumIsp       float64 `json:"vacuumIsp,omitempty"`
	PropellantMass  float64 `json:"propellantMass"` // kg
	DryMass         float64 `json:"dryMass"`        // kg
	IsActive        bool    `json:"isActive"`
	FuelRemaining   float64 `json:"fuelRemaining"` // kg
}

// NewStage creates a fully fuelled, inactive stage. The specific impulse
// used for mass flow is the vacuum value.
func NewStage(name string, thrust, seaLevelIsp, vacuumIsp, propellantMass, dryMass float64) Stage {
	return Stage{
		Name:            name,
		Thrust:          thrust,
		SpecificImpulse: vacuumIsp,
		SeaLevelIsp:     seaLevelIsp,
		VacuumIsp:       vacuumIsp,
		PropellantMass:  propellantMass,
		DryMass:         dryMass,
		FuelRemaining:   propellantMass,
	}
}

// Mass returns dry mass plus remaining propellant.
func (s Stage) Mass() float64 {
	return s.DryMass + s.FuelRemaining
}

// HasFuel reports whether the stage can still produce thrust.
func (s Stage) HasFuel() bool {
	return s.FuelRemaining > 0
}

// Firing reports whether the stage contributes thrust.
func (s Stage) Firing() bool {
	return s.IsActive && s.HasFuel()
}

// MassFlow returns the propellant mass flow in kg/s at the given throttle.
func (s Stage) MassFlow(throttle float64) float64 {
	if s.SpecificImpulse <= 0 {
		return 0
	}
	return s.Thrust * throttle / (s.SpecificImpulse * StandardGravity)
}

// EffectiveIsp blends sea-level and vacuum specific impulse by the ratio of
// ambient density to surface density. Stages without both values fall back
// to SpecificImpulse.
func (s Stage) EffectiveIsp(densityRatio float64) float64 {
	if s.SeaLevelIsp <= 0 || s.VacuumIsp <= 0 {
		return s.SpecificImpulse
	}
	r := math.Max(0, math.Min(1, densityRatio))
	return s.VacuumIsp + (s.SeaLevelIsp-s.VacuumIsp)*r
}

// Validate checks the stage for non-physical values.
func (s Stage) Validate() error {
	switch {
	case s.Thrust < 0:
		return fmt.Errorf("%w %q: thrust cannot be negative", ErrInvalidStage, s.Name)
	case s.SpecificImpulse <= 0:
		return fmt.Errorf("%w %q: specific impulse must be positive", ErrInvalidStage, s.Name)
	case s.PropellantMass < 0:
		return fmt.Errorf("%w %q: propellant mass cannot be negative", ErrInvalidStage, s.Name)
	case s.DryMass < 0:
		return fmt.Errorf("%w %q: dry mass cannot be negative", ErrInvalidStage, s.Name)
	case s.FuelRemaining < 0 || s.FuelRemaining > s.PropellantMass:
		return fmt.Errorf("%w %q: fuel remaining %.1f outside [0, %.1f]", ErrInvalidStage, s.Name, s.FuelRemaining, s.PropellantMass)
	}
	return nil
}
