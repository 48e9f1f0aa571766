package engine

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"github.com/opd-ai/go-orbit/pkg/physics"
)

// Float is a float64 that encodes non-finite values as JSON null. A null
// decodes back to +Inf, which is how an escape apoapsis or an unbounded
// speed limit is represented.
type Float float64

// MarshalJSON implements json.Marshaler.
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Float) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*f = Float(math.Inf(1))
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// IsFinite reports whether f is a real number.
func (f Float) IsFinite() bool {
	return !math.IsInf(float64(f), 0) && !math.IsNaN(float64(f))
}

// Flight status values reported in Telemetry.Status.
const (
	StatusPrelaunch = "prelaunch"
	StatusFlight    = "flight"
	StatusLanded    = "landed"
	StatusOrbit     = "orbit"
	StatusDestroyed = "destroyed"
)

// StageTelemetry is the fuel state of one stage.
type StageTelemetry struct {
	Name            string  `json:"name"`
	Active          bool    `json:"active"`
	Attached        bool    `json:"attached"`
	Fuel            float64 `json:"fuel"`
	Capacity        float64 `json:"capacity"`
	Thrust          float64 `json:"thrust"`
	SpecificImpulse float64 `json:"specific_impulse"`
}

// Telemetry is a consistent snapshot of the flight taken under the game lock.
type Telemetry struct {
	FlightID      string  `json:"flight_id"`
	Tick          uint64  `json:"tick"`
	MissionTime   float64 `json:"mission_time"`
	Status        string  `json:"status"`
	DestroyReason string  `json:"destroy_reason,omitempty"`

	Position        physics.Vector2D `json:"position"`
	Velocity        physics.Vector2D `json:"velocity"`
	Altitude        float64          `json:"altitude"`
	Speed           float64          `json:"speed"`
	AirSpeed        float64          `json:"air_speed"`
	VerticalSpeed   float64          `json:"vertical_speed"`
	Rotation        float64          `json:"rotation"`
	VisualRotation  float64          `json:"visual_rotation"`
	AngularVelocity float64          `json:"angular_velocity"`

	EngineOn    bool             `json:"engine_on"`
	Throttle    float64          `json:"throttle"`
	Thrust      float64          `json:"thrust"`
	Mass        float64          `json:"mass"`
	TWR         float64          `json:"twr"`
	DeltaV      float64          `json:"delta_v"`
	ActiveStage int              `json:"active_stage"`
	Stages      []StageTelemetry `json:"stages"`

	Mach            float64 `json:"mach"`
	AngleOfAttack   float64 `json:"angle_of_attack"`
	DragCoefficient float64 `json:"drag_coefficient"`
	Area            float64 `json:"area"`
	DynamicPressure float64 `json:"dynamic_pressure"`
	Density         float64 `json:"density"`
	Heat            float64 `json:"heat"`
	Glow            float64 `json:"glow"`
	SpeedLimit      Float   `json:"speed_limit"`

	Apoapsis     Float   `json:"apoapsis"`
	Periapsis    Float   `json:"periapsis"`
	Eccentricity float64 `json:"eccentricity"`
	Escape       bool    `json:"escape"`
	StableOrbit  bool    `json:"stable_orbit"`

	Hold             string   `json:"hold"`
	TargetAngle      float64  `json:"target_angle"`
	GameSpeed        float64  `json:"game_speed"`
	TimeWarp         float64  `json:"time_warp"`
	AutopilotRunning bool     `json:"autopilot_running"`
	AutopilotQueue   []string `json:"autopilot_queue"`
	Log              []string `json:"log"`
}
