package orbit

import (
	"math"

	"github.com/opd-ai/go-orbit/pkg/physics"
)

// Projection limits.
const (
	DefaultMaxDuration  = 8 * 3600.0 // s
	DefaultMaxPoints    = 512
	escapeRadiusFactor  = 6.0
	fullRevolution      = 2 * math.Pi
	recomputeInterval   = 1.0  // s
	coastingInterval    = 10.0 // s
	speedChangeTrigger  = 0.5  // m/s
	headingChangeDegree = 0.5
)

// stepFor returns the integration step for elapsed projection time t.
func stepFor(t float64) float64 {
	switch {
	case t < 3600:
		return 1
	case t < 3*3600:
		return 5
	case t < 6*3600:
		return 15
	default:
		return 30
	}
}

// Options bounds a projection.
type Options struct {
	MaxDuration float64
	MaxPoints   int
}

func (o Options) withDefaults() Options {
	if o.MaxDuration <= 0 {
		o.MaxDuration = DefaultMaxDuration
	}
	if o.MaxPoints < 2 {
		o.MaxPoints = DefaultMaxPoints
	}
	return o
}

// Trajectory is a decimated coasting path in world coordinates.
type Trajectory struct {
	Points   []physics.Vector2D `json:"points"`
	Duration float64            `json:"duration"`
	Impact   bool               `json:"impact"`
	Escape   bool               `json:"escape"`
	Closed   bool               `json:"closed"`
	Elements Elements           `json:"-"`
}

// Project integrates a drag-free, thrust-free two-body path from the given
// state with the same semi-implicit Euler scheme as live physics, using
// coarser steps the further it looks ahead. It stops on surface impact, on
// an escape path leaving 6 planet radii, or once a stable orbit has swept a
// full revolution.
func Project(position, velocity physics.Vector2D, world physics.WorldParameters, opts Options) Trajectory {
	opts = opts.withDefaults()

	el := ComputeApoPeri(position, velocity, world.GravitationalParameter, world.PlanetRadius)
	traj := Trajectory{Elements: el}
	stable := el.IsStable()
	escaping := el.IsHyperbolic()
	escapeRadius := escapeRadiusFactor * world.PlanetRadius

	points := []physics.Vector2D{position}
	p, v := position, velocity
	prevAngle := p.Angle()
	sweep := 0.0
	t := 0.0

	for t < opts.MaxDuration {
		dt := stepFor(t)
		v = v.Add(world.GravityAt(p).Scale(dt))
		p = p.Add(v.Scale(dt))
		t += dt
		points = append(points, p)

		angle := p.Angle()
		sweep += math.Abs(physics.NormalizeAngle(angle - prevAngle))
		prevAngle = angle

		r := p.Length()
		if r <= world.PlanetRadius {
			traj.Impact = true
			break
		}
		if escaping && r > escapeRadius {
			traj.Escape = true
			break
		}
		if stable && sweep >= fullRevolution {
			traj.Closed = true
			break
		}
	}

	traj.Duration = t
	traj.Points = decimate(points, opts.MaxPoints)
	return traj
}

// decimate keeps at most limit points, always including the first and last.
func decimate(points []physics.Vector2D, limit int) []physics.Vector2D {
	if len(points) <= limit {
		return points
	}
	stride := int(math.Ceil(float64(len(points)-1) / float64(limit-1)))
	out := make([]physics.Vector2D, 0, limit)
	for i := 0; i < len(points)-1; i += stride {
		out = append(out, points[i])
	}
	return append(out, points[len(points)-1])
}

// ProjectorState is the live input to a Projector.
type ProjectorState struct {
	Position   physics.Vector2D
	Velocity   physics.Vector2D
	Thrusting  bool
	StageIndex int
	InSpace    bool
}

// Projector caches a Trajectory and decides when it is worth recomputing.
// It is not safe for concurrent use.
type Projector struct {
	world physics.WorldParameters
	opts  Options

	current       Trajectory
	valid         bool
	sinceLast     float64
	lastVelocity  physics.Vector2D
	lastThrusting bool
	lastStage     int
}

// NewProjector creates a projector for the given world.
func NewProjector(world physics.WorldParameters, opts Options) *Projector {
	return &Projector{world: world, opts: opts.withDefaults()}
}

// Invalidate forces the next Update to recompute.
func (p *Projector) Invalidate() {
	p.valid = false
}

// Current returns the cached trajectory.
func (p *Projector) Current() Trajectory {
	return p.current
}

// Update advances the projector's clock by dt wall seconds and returns the
// trajectory, recomputing it when a thrust or stage transition happened, or
// when the rate limit has elapsed and velocity changed noticeably. The
// second return value reports whether a recomputation happened.
func (p *Projector) Update(state ProjectorState, dt float64) (Trajectory, bool) {
	p.sinceLast += dt

	if p.valid && state.Thrusting == p.lastThrusting && state.StageIndex == p.lastStage {
		interval := recomputeInterval
		if !state.Thrusting && state.InSpace {
			interval = coastingInterval
		}
		if p.sinceLast < interval || !p.velocityChanged(state.Velocity) {
			return p.current, false
		}
	}

	p.current = Project(state.Position, state.Velocity, p.world, p.opts)
	p.valid = true
	p.sinceLast = 0
	p.lastVelocity = state.Velocity
	p.lastThrusting = state.Thrusting
	p.lastStage = state.StageIndex
	return p.current, true
}

func (p *Projector) velocityChanged(v physics.Vector2D) bool {
	if math.Abs(v.Length()-p.lastVelocity.Length()) > speedChangeTrigger {
		return true
	}
	if v.IsZero() || p.lastVelocity.IsZero() {
		return false
	}
	turn := math.Abs(physics.AngleBetween(p.lastVelocity, v))
	return turn > headingChangeDegree*math.Pi/180
}
