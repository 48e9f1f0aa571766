// pkg/physics/vector_test.go
package physics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

const eps = 1e-9

func TestVector2D_Arithmetic(t *testing.T) {
	tests := []struct {
		name     string
		got      Vector2D
		expected Vector2D
	}{
		{"add_positive", Vector2D{X: 3, Y: 4}.Add(Vector2D{X: 1, Y: 2}), Vector2D{X: 4, Y: 6}},
		{"add_mixed_signs", Vector2D{X: 5, Y: -3}.Add(Vector2D{X: -2, Y: 7}), Vector2D{X: 3, Y: 4}},
		{"sub_negative_result", Vector2D{X: 2, Y: 3}.Sub(Vector2D{X: 5, Y: 7}), Vector2D{X: -3, Y: -4}},
		{"sub_self", Vector2D{X: 4, Y: 6}.Sub(Vector2D{X: 4, Y: 6}), Vector2D{}},
		{"scale_up", Vector2D{X: 1.5, Y: -2}.Scale(2), Vector2D{X: 3, Y: -4}},
		{"scale_zero", Vector2D{X: 9, Y: 9}.Scale(0), Vector2D{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.got)
		})
	}
}

func TestVector2D_ValueSemantics(t *testing.T) {
	v := Vector2D{X: 1, Y: 2}
	_ = v.Add(Vector2D{X: 10, Y: 10})
	_ = v.Scale(5)
	_ = v.Rotate(1)
	assert.Equal(t, Vector2D{X: 1, Y: 2}, v, "operations must not mutate the receiver")
}

func TestVector2D_Length(t *testing.T) {
	assert.InDelta(t, 5.0, Vector2D{X: 3, Y: 4}.Length(), eps)
	assert.InDelta(t, 25.0, Vector2D{X: -3, Y: 4}.LengthSquared(), eps)
	assert.Zero(t, Vector2D{}.Length())
}

func TestVector2D_Normalize(t *testing.T) {
	t.Run("unit_length", func(t *testing.T) {
		n := Vector2D{X: 30, Y: -40}.Normalize()
		assert.InDelta(t, 1.0, n.Length(), eps)
		assert.InDelta(t, 0.6, n.X, eps)
		assert.InDelta(t, -0.8, n.Y, eps)
	})

	t.Run("zero_vector_falls_back_to_up", func(t *testing.T) {
		n := Vector2D{}.Normalize()
		assert.Equal(t, Up, n)
		assert.False(t, math.IsNaN(n.X) || math.IsNaN(n.Y))
	})
}

func TestVector2D_DotAndCross(t *testing.T) {
	a := Vector2D{X: 1, Y: 0}
	b := Vector2D{X: 0, Y: 1}

	assert.Zero(t, a.Dot(b))
	assert.Equal(t, 1.0, a.Cross(b))
	assert.Equal(t, -1.0, b.Cross(a))
	assert.Equal(t, 11.0, Vector2D{X: 1, Y: 2}.Dot(Vector2D{X: 3, Y: 4}))
}

func TestVector2D_Rotate(t *testing.T) {
	tests := []struct {
		name     string
		angle    float64
		expected Vector2D
	}{
		{"quarter_turn_left", math.Pi / 2, Vector2D{X: -1, Y: 0}},
		{"quarter_turn_right", -math.Pi / 2, Vector2D{X: 1, Y: 0}},
		{"half_turn", math.Pi, Vector2D{X: 0, Y: -1}},
		{"full_turn", 2 * math.Pi, Vector2D{X: 0, Y: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Up.Rotate(tt.angle)
			assert.InDelta(t, tt.expected.X, r.X, eps)
			assert.InDelta(t, tt.expected.Y, r.Y, eps)
		})
	}
}

func TestAngleBetween(t *testing.T) {
	assert.InDelta(t, math.Pi/2, AngleBetween(Vector2D{X: 1}, Vector2D{Y: 1}), eps)
	assert.InDelta(t, -math.Pi/2, AngleBetween(Vector2D{Y: 1}, Vector2D{X: 1}), eps)

	// Rotating the source by the returned angle lands on the target direction.
	from := Vector2D{X: 2, Y: 1}
	to := Vector2D{X: -1, Y: 3}
	rotated := from.Normalize().Rotate(AngleBetween(from, to))
	assert.InDelta(t, to.Normalize().X, rotated.X, eps)
	assert.InDelta(t, to.Normalize().Y, rotated.Y, eps)
}

func TestNormalizeAngle(t *testing.T) {
	tests := []struct {
		in, out float64
	}{
		{0, 0},
		{math.Pi, math.Pi},
		{-math.Pi, math.Pi},
		{3 * math.Pi / 2, -math.Pi / 2},
		{-3 * math.Pi / 2, math.Pi / 2},
		{7 * math.Pi / 2, -math.Pi / 2},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.out, NormalizeAngle(tt.in), 1e-9, "NormalizeAngle(%v)", tt.in)
	}
}

func TestFromAngle(t *testing.T) {
	v := FromAngle(math.Pi/3, 2)
	assert.InDelta(t, 1.0, v.X, eps)
	assert.InDelta(t, math.Sqrt(3), v.Y, eps)
	assert.InDelta(t, math.Pi/3, v.Angle(), eps)
	assert.InDelta(t, 2.0, v.Distance(Vector2D{}), eps)
}
