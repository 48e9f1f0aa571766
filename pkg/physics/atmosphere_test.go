package physics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDragForce(t *testing.T) {
	t.Run("opposes_velocity", func(t *testing.T) {
		v := Vector2D{X: 30, Y: 40}
		f := DragForce(v, 1.2, 0.5, 2)

		expected := 0.5 * 1.2 * 2500 * 0.5 * 2
		assert.InDelta(t, expected, f.Length(), 1e-9)
		assert.InDelta(t, -1, f.Normalize().Dot(v.Normalize()), 1e-12)
	})

	t.Run("zero_velocity_is_zero_for_any_parameters", func(t *testing.T) {
		params := [][3]float64{{1.2, 0.5, 10}, {0, 0, 0}, {1e6, 100, 1e6}, {-1, -1, -1}}
		for _, p := range params {
			f := DragForce(Vector2D{}, p[0], p[1], p[2])
			assert.Equal(t, Vector2D{}, f)
			assert.False(t, math.IsNaN(f.X) || math.IsNaN(f.Y))
		}
	})
}

func TestDynamicPressure(t *testing.T) {
	assert.InDelta(t, 60000.0, DynamicPressure(1.2, 316.227766), 1)
	assert.Zero(t, DynamicPressure(0, 1000))
}

func TestTerminalVelocity(t *testing.T) {
	v := TerminalVelocity(1000, 1.2, 0.5, 2, 9.81)
	assert.InDelta(t, math.Sqrt(2*1000*9.81/(1.2*0.5*2)), v, 1e-9)

	// At terminal velocity drag equals weight.
	drag := DragForce(Vector2D{Y: -v}, 1.2, 0.5, 2)
	assert.InDelta(t, 1000*9.81, drag.Length(), 1e-6)

	assert.True(t, math.IsInf(TerminalVelocity(1000, 0, 0.5, 2, 9.81), 1))
	assert.True(t, math.IsInf(TerminalVelocity(1000, 1.2, 0, 2, 9.81), 1))
}

func TestHeatFlux(t *testing.T) {
	slow := HeatFlux(0.01, 1000, 1)
	fast := HeatFlux(0.01, 2000, 1)
	assert.InDelta(t, 8, fast/slow, 1e-9, "flux scales with v^3")
	assert.Zero(t, HeatFlux(0, 7000, 1))
	assert.Zero(t, HeatFlux(1, 7000, 0))
}

func TestHeatBuildup(t *testing.T) {
	assert.InDelta(t, 10.0, HeatBuildup(0, 100, 0, 0.1), 1e-12)
	assert.InDelta(t, 45.0, HeatBuildup(50, 0, 1, 0.1), 1e-12)
	assert.Zero(t, HeatBuildup(1, 0, 100, 1))
}

func TestMachNumber(t *testing.T) {
	assert.InDelta(t, 2.0, MachNumber(680, 340), 1e-12)
	assert.Zero(t, MachNumber(680, 0))
}

func TestRigidBody_Integrate(t *testing.T) {
	b := NewRigidBody(Vector2D{X: 0, Y: 100}, 2)
	b.ApplyForce(Vector2D{X: 4, Y: 0})
	b.ApplyForce(Vector2D{X: 0, Y: -2})
	assert.Equal(t, Vector2D{X: 4, Y: -2}, b.Force())

	b.Integrate(1)

	// Semi-implicit Euler moves position with the updated velocity.
	assert.Equal(t, Vector2D{X: 2, Y: -1}, b.Velocity)
	assert.Equal(t, Vector2D{X: 2, Y: 99}, b.Position)

	b.ClearForces()
	assert.Equal(t, Vector2D{}, b.Force())
	assert.Equal(t, Vector2D{}, (&RigidBody{}).Acceleration())
}

func TestRigidBody_Forward(t *testing.T) {
	b := NewRigidBody(Vector2D{X: 0, Y: 1000}, 1)
	assert.InDelta(t, 1, b.Forward().Y, 1e-12)

	b.Rotation = -math.Pi / 2
	f := b.Forward()
	assert.InDelta(t, 1, f.X, 1e-12, "negative rotation turns east")
	assert.InDelta(t, 0, f.Y, 1e-12)
}
