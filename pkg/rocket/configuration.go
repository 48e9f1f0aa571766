// pkg/rocket/configuration.go
package rocket

import (
	"fmt"
	"math"
)

// Configuration is an ordered stack of stages plus payload and the base
// aerodynamic values. Stage 0 burns first. All derived quantities are
// recomputed from stage state on every call.
type Configuration struct {
	Stages             []Stage `json:"stages"`
	PayloadMass        float64 `json:"payloadMass"`
	DragCoefficient    float64 `json:"dragCoefficient"`
	CrossSectionalArea float64 `json:"crossSectionalArea"`
	Height             float64 `json:"height"`
}

// NewConfiguration builds a configuration and activates the first stage.
func NewConfiguration(stages []Stage, payloadMass, dragCoefficient, area, height float64) (*Configuration, error) {
	c := &Configuration{
		Stages:             append([]Stage(nil), stages...),
		PayloadMass:        payloadMass,
		DragCoefficient:    dragCoefficient,
		CrossSectionalArea: area,
		Height:             height,
	}
	for i := range c.Stages {
		c.Stages[i].IsActive = i == 0
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks every stage and the vehicle-level values.
func (c *Configuration) Validate() error {
	if len(c.Stages) == 0 {
		return fmt.Errorf("%w: rocket has no stages", ErrInvalidStage)
	}
	if c.PayloadMass < 0 {
		return fmt.Errorf("payload mass cannot be negative, got %g", c.PayloadMass)
	}
	if c.DragCoefficient < 0 || c.CrossSectionalArea < 0 {
		return fmt.Errorf("drag coefficient and area cannot be negative")
	}
	active := 0
	for _, s := range c.Stages {
		if err := s.Validate(); err != nil {
			return err
		}
		if s.IsActive {
			active++
		}
	}
	if active > 1 {
		return fmt.Errorf("%w: %d stages active, at most one allowed", ErrInvalidStage, active)
	}
	return nil
}

// Clone returns a deep copy.
func (c *Configuration) Clone() *Configuration {
	out := *c
	out.Stages = append([]Stage(nil), c.Stages...)
	return &out
}

// ActiveStageIndex returns the index of the active stage, or -1.
func (c *Configuration) ActiveStageIndex() int {
	for i, s := range c.Stages {
		if s.IsActive {
			return i
		}
	}
	return -1
}

// ActiveStage returns the active stage, or nil.
func (c *Configuration) ActiveStage() *Stage {
	if i := c.ActiveStageIndex(); i >= 0 {
		return &c.Stages[i]
	}
	return nil
}

// ActiveStageFuel returns the propellant left in the active stage.
func (c *Configuration) ActiveStageFuel() float64 {
	if s := c.ActiveStage(); s != nil {
		return s.FuelRemaining
	}
	return 0
}

// TotalFuel returns the propellant left in every attached stage.
func (c *Configuration) TotalFuel() float64 {
	total := 0.0
	for i := c.firstAttached(); i < len(c.Stages); i++ {
		total += c.Stages[i].FuelRemaining
	}
	return total
}

// firstAttached is the lowest stage index still bolted to the vehicle.
func (c *Configuration) firstAttached() int {
	if i := c.ActiveStageIndex(); i >= 0 {
		return i
	}
	return 0
}

// CurrentMass returns payload plus every attached stage.
func (c *Configuration) CurrentMass() float64 {
	mass := c.PayloadMass
	for i := c.firstAttached(); i < len(c.Stages); i++ {
		mass += c.Stages[i].Mass()
	}
	return mass
}

// CurrentThrust sums thrust over stages that are active and have fuel.
func (c *Configuration) CurrentThrust() float64 {
	thrust := 0.0
	for _, s := range c.Stages {
		if s.Firing() {
			thrust += s.Thrust
		}
	}
	return thrust
}

// CurrentSpecificImpulse returns the thrust-weighted Isp of firing stages,
// or 0 when nothing can fire.
func (c *Configuration) CurrentSpecificImpulse() float64 {
	var thrust, weighted float64
	for _, s := range c.Stages {
		if s.Firing() {
			thrust += s.Thrust
			weighted += s.Thrust * s.SpecificImpulse
		}
	}
	if thrust == 0 {
		return 0
	}
	return weighted / thrust
}

// ConsumeFuel burns propellant from every active stage for dt seconds at
// the given throttle. It reports whether any active stage had fuel to burn.
func (c *Configuration) ConsumeFuel(dt, throttle float64) bool {
	throttle = math.Max(0, math.Min(1, throttle))
	dt = math.Max(0, dt)

	consumed := false
	for i := range c.Stages {
		s := &c.Stages[i]
		if !s.Firing() {
			continue
		}
		consumed = true
		s.FuelRemaining = math.Max(0, s.FuelRemaining-s.MassFlow(throttle)*dt)
	}
	return consumed
}

// PerformStaging deactivates the active stage and activates the next one.
// It returns false when there is no active stage or it is the last. Fuel
// and thrust are not checked here; see WouldExplodeOnStaging.
func (c *Configuration) PerformStaging() bool {
	i := c.ActiveStageIndex()
	if i < 0 || i >= len(c.Stages)-1 {
		return false
	}
	c.Stages[i].IsActive = false
	c.Stages[i+1].IsActive = true
	return true
}

// CanStage reports whether a further stage is available.
func (c *Configuration) CanStage() bool {
	i := c.ActiveStageIndex()
	return i >= 0 && i < len(c.Stages)-1
}

// WouldExplodeOnStaging reports whether separating while producing the
// given thrust destroys the vehicle. Any thrust at all is fatal.
func (c *Configuration) WouldExplodeOnStaging(currentThrust float64) bool {
	return currentThrust > 0
}

// RemainingDeltaV sums the Tsiolkovsky delta-v of the active stage and
// every stage above it, dropping each stage's dry mass at separation.
func (c *Configuration) RemainingDeltaV() float64 {
	start := c.ActiveStageIndex()
	if start < 0 {
		return 0
	}

	total := 0.0
	for i := start; i < len(c.Stages); i++ {
		s := c.Stages[i]
		m0 := c.PayloadMass
		for j := i; j < len(c.Stages); j++ {
			m0 += c.Stages[j].Mass()
		}
		mf := m0 - s.FuelRemaining
		if s.FuelRemaining <= 0 || mf <= 0 || s.SpecificImpulse <= 0 {
			continue
		}
		total += s.SpecificImpulse * StandardGravity * math.Log(m0/mf)
	}
	return total
}

// TWR returns the thrust-to-weight ratio at the given throttle and local
// gravity.
func (c *Configuration) TWR(throttle, gravity float64) float64 {
	weight := c.CurrentMass() * gravity
	if weight <= 0 {
		return 0
	}
	return c.CurrentThrust() * throttle / weight
}
