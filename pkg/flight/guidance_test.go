package flight

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opd-ai/go-orbit/pkg/physics"
)

func TestUpdateGuidance_TurnRateClamp(t *testing.T) {
	for _, input := range []float64{1, -1} {
		in := GuidanceInput{TurnInput: input, Config: DefaultGuidanceConfig()}
		for i := 0; i < 400; i++ {
			out := UpdateGuidance(in, 0.05)
			assert.LessOrEqual(t, math.Abs(out.AngularVelocity), 0.12+1e-12)
			in.Rotation = out.Rotation
			in.AngularVelocity = out.AngularVelocity
		}
		assert.InDelta(t, 0.12*input, in.AngularVelocity, 1e-12)
	}
}

func TestUpdateGuidance_DampingSnapsToZero(t *testing.T) {
	in := GuidanceInput{AngularVelocity: 0.1}
	for i := 0; i < 1000; i++ {
		out := UpdateGuidance(in, 0.016)
		assert.LessOrEqual(t, math.Abs(out.AngularVelocity), math.Abs(in.AngularVelocity))
		in.Rotation = out.Rotation
		in.AngularVelocity = out.AngularVelocity
	}
	assert.Equal(t, 0.0, in.AngularVelocity)
}

func TestUpdateGuidance_HoldModes(t *testing.T) {
	pos := physics.Vector2D{Y: 400000}
	east := physics.Vector2D{X: 1000}

	tests := []struct {
		name     string
		in       GuidanceInput
		target   float64
		wantTurn float64
	}{
		{
			name:     "up_from_tilted",
			in:       GuidanceInput{Hold: HoldUp, Rotation: 0.5, Position: pos},
			target:   0,
			wantTurn: -1,
		},
		{
			name:     "target_angle",
			in:       GuidanceInput{Hold: HoldTarget, TargetAngle: 0.3, Position: pos},
			target:   0.3,
			wantTurn: 1,
		},
		{
			name:     "prograde_high_altitude",
			in:       GuidanceInput{Hold: HoldPrograde, Position: pos, Velocity: east, Altitude: 50000},
			target:   -math.Pi / 2,
			wantTurn: -1,
		},
		{
			name:     "prograde_near_pad_stays_vertical",
			in:       GuidanceInput{Hold: HoldPrograde, Position: pos, Velocity: east, Altitude: 1000},
			target:   0,
			wantTurn: 0,
		},
		{
			name:     "retrograde_high_altitude",
			in:       GuidanceInput{Hold: HoldRetrograde, Position: pos, Velocity: east, Altitude: 50000},
			target:   math.Pi / 2,
			wantTurn: 1,
		},
		{
			name:     "prograde_without_velocity_keeps_rotation",
			in:       GuidanceInput{Hold: HoldPrograde, Rotation: 0.2, Position: pos, Velocity: physics.Vector2D{X: 0.1}, Altitude: 50000},
			target:   0.2,
			wantTurn: 0,
		},
		{
			name:     "inside_dead_zone",
			in:       GuidanceInput{Hold: HoldTarget, TargetAngle: 0.01, Position: pos},
			target:   0.01,
			wantTurn: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := UpdateGuidance(tt.in, 0.05)
			assert.InDelta(t, tt.target, out.TargetRotation, 1e-9)
			assert.Equal(t, tt.wantTurn, out.Turn)
		})
	}
}

func TestUpdateGuidance_ManualOverridesHold(t *testing.T) {
	in := GuidanceInput{Hold: HoldUp, Rotation: 0.5, TurnInput: 1}

	out := UpdateGuidance(in, 0.05)

	assert.Equal(t, 1.0, out.Turn)
	assert.Greater(t, out.AngularVelocity, 0.0)
}

func TestUpdateGuidance_HoldConverges(t *testing.T) {
	in := GuidanceInput{Hold: HoldTarget, TargetAngle: -0.4, Position: physics.Vector2D{Y: 1}}
	for i := 0; i < 2000; i++ {
		out := UpdateGuidance(in, 0.05)
		in.Rotation = out.Rotation
		in.AngularVelocity = out.AngularVelocity
	}
	assert.InDelta(t, -0.4, in.Rotation, 0.05)
}

func TestGravityTurnWeight(t *testing.T) {
	assert.Zero(t, GravityTurnWeight(0))
	assert.Zero(t, GravityTurnWeight(GravityTurnStart))
	assert.InDelta(t, 0.5, GravityTurnWeight((GravityTurnStart+GravityTurnEnd)/2), 1e-12)
	assert.Equal(t, 1.0, GravityTurnWeight(GravityTurnEnd))
	assert.Equal(t, 1.0, GravityTurnWeight(1e6))
}

func TestUpdateVisualGuidance(t *testing.T) {
	visual := 0.0
	for i := 0; i < 100; i++ {
		next := UpdateVisualGuidance(visual, 1, 0.016)
		assert.Greater(t, next, visual)
		assert.Less(t, next, 1.0)
		visual = next
	}
	assert.InDelta(t, 1, visual, 1e-3)

	assert.InDelta(t, 1-math.Exp(-0.1), UpdateVisualGuidance(0, 1, 0.01), 1e-12)
}

func TestParseHoldMode(t *testing.T) {
	m, ok := ParseHoldMode(" Prograde ")
	assert.True(t, ok)
	assert.Equal(t, HoldPrograde, m)

	_, ok = ParseHoldMode("sideways")
	assert.False(t, ok)
}
