package rocket

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTutorialRocket(t *testing.T) {
	r := TutorialRocket()

	require.Len(t, r.Stages, 2)
	assert.Equal(t, 0, r.ActiveStageIndex())
	assert.Equal(t, 35200.0, r.CurrentMass())
	assert.Equal(t, 480000.0, r.CurrentThrust())
	assert.Equal(t, 300.0, r.CurrentSpecificImpulse())
	assert.Equal(t, 30000.0, r.TotalFuel())
	assert.Greater(t, r.TWR(1, 9.81), 1.0)
}

func TestConsumeFuel_Monotonic(t *testing.T) {
	tests := []struct {
		name     string
		dt       float64
		throttle float64
	}{
		{"zero_dt", 0, 1},
		{"zero_throttle", 1, 0},
		{"half_throttle", 0.1, 0.5},
		{"full_throttle", 0.1, 1},
		{"negative_dt_is_ignored", -5, 1},
		{"overdriven_throttle_is_clamped", 1, 50},
		{"huge_step_clamps_at_zero", 1e6, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := TutorialRocket()
			before := r.ActiveStageFuel()

			r.ConsumeFuel(tt.dt, tt.throttle)

			after := r.ActiveStageFuel()
			assert.LessOrEqual(t, after, before)
			assert.GreaterOrEqual(t, after, 0.0)
		})
	}
}

func TestConsumeFuel_MassFlow(t *testing.T) {
	r := TutorialRocket()

	ok := r.ConsumeFuel(1, 1)

	require.True(t, ok)
	flow := 480000 / (300 * StandardGravity)
	assert.InDelta(t, 25000-flow, r.ActiveStageFuel(), 1e-9)
}

func TestConsumeFuel_ReportsEmptyStage(t *testing.T) {
	r := TutorialRocket()
	r.Stages[0].FuelRemaining = 0

	assert.False(t, r.ConsumeFuel(1, 1))
	assert.Zero(t, r.CurrentThrust())
	assert.Zero(t, r.CurrentSpecificImpulse())
}

func TestPerformStaging(t *testing.T) {
	r := TutorialRocket()

	require.True(t, r.PerformStaging())
	assert.False(t, r.Stages[0].IsActive)
	assert.True(t, r.Stages[1].IsActive)
	assert.Equal(t, 1000.0+6200.0, r.CurrentMass(), "spent booster is dropped")

	// Last stage cannot be staged, and the booster never comes back.
	assert.False(t, r.PerformStaging())
	assert.False(t, r.CanStage())
	for i := 0; i < 5; i++ {
		r.ConsumeFuel(1, 1)
		r.PerformStaging()
		assert.False(t, r.Stages[0].IsActive)
	}
}

func TestPerformStaging_AllowedWithFuel(t *testing.T) {
	r := TutorialRocket()

	assert.True(t, r.WouldExplodeOnStaging(r.CurrentThrust()))
	assert.False(t, r.WouldExplodeOnStaging(0))
	assert.True(t, r.PerformStaging(), "staging itself never checks fuel")
}

func TestPerformStaging_NoActiveStage(t *testing.T) {
	r := TutorialRocket()
	r.Stages[0].IsActive = false

	assert.False(t, r.PerformStaging())
	assert.Zero(t, r.RemainingDeltaV())
}

func TestRemainingDeltaV(t *testing.T) {
	r := TutorialRocket()

	m0 := 35200.0
	dv1 := 300 * StandardGravity * math.Log(m0/(m0-25000))
	dv2 := 335 * StandardGravity * math.Log(7200.0/2200.0)
	assert.InDelta(t, dv1+dv2, r.RemainingDeltaV(), 1e-6)

	prev := r.RemainingDeltaV()
	for i := 0; i < 20; i++ {
		r.ConsumeFuel(2, 1)
		dv := r.RemainingDeltaV()
		assert.GreaterOrEqual(t, dv, 0.0)
		if r.ActiveStageFuel() > 0 {
			assert.Less(t, dv, prev)
		}
		prev = dv
	}
}

func TestRemainingDeltaV_EmptyIsZero(t *testing.T) {
	r := TutorialRocket()
	for i := range r.Stages {
		r.Stages[i].FuelRemaining = 0
	}
	assert.Zero(t, r.RemainingDeltaV())
}

func TestNewConfiguration_Validation(t *testing.T) {
	tests := []struct {
		name   string
		stages []Stage
	}{
		{"no_stages", nil},
		{"negative_thrust", []Stage{NewStage("bad", -1, 200, 250, 10, 10)}},
		{"zero_isp", []Stage{NewStage("bad", 100, 0, 0, 10, 10)}},
		{"negative_dry_mass", []Stage{NewStage("bad", 100, 200, 250, 10, -1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfiguration(tt.stages, 100, 0.3, 1, 10)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidStage))
		})
	}
}

func TestStage_EffectiveIsp(t *testing.T) {
	s := NewStage("s", 1000, 265, 300, 10, 1)

	assert.Equal(t, 265.0, s.EffectiveIsp(1))
	assert.Equal(t, 300.0, s.EffectiveIsp(0))
	assert.InDelta(t, 282.5, s.EffectiveIsp(0.5), 1e-9)
	assert.Equal(t, 265.0, s.EffectiveIsp(3), "ratio is clamped")

	bare := Stage{SpecificImpulse: 200}
	assert.Equal(t, 200.0, bare.EffectiveIsp(0.5))
}

func TestClone_IsIndependent(t *testing.T) {
	r := TutorialRocket()
	c := r.Clone()

	c.ConsumeFuel(10, 1)
	c.PerformStaging()

	assert.Equal(t, 25000.0, r.ActiveStageFuel())
	assert.Equal(t, 0, r.ActiveStageIndex())
}
