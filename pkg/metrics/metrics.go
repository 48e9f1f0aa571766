// Package metrics exports flight telemetry and milestones to Prometheus.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/opd-ai/go-orbit/pkg/engine"
	"github.com/opd-ai/go-orbit/pkg/event"
)

const namespace = "orbit"

// Recorder owns the flight collectors, registered on the Registerer passed
// to NewRecorder.
type Recorder struct {
	altitude        prometheus.Gauge
	speed           prometheus.Gauge
	verticalSpeed   prometheus.Gauge
	mass            prometheus.Gauge
	thrust          prometheus.Gauge
	throttle        prometheus.Gauge
	twr             prometheus.Gauge
	deltaV          prometheus.Gauge
	mach            prometheus.Gauge
	angleOfAttack   prometheus.Gauge
	dragCoefficient prometheus.Gauge
	dynamicPressure prometheus.Gauge
	density         prometheus.Gauge
	heat            prometheus.Gauge
	glow            prometheus.Gauge
	apoapsis        prometheus.Gauge
	periapsis       prometheus.Gauge
	eccentricity    prometheus.Gauge
	missionTime     prometheus.Gauge
	engineOn        prometheus.Gauge
	stageFuel       *prometheus.GaugeVec

	flights      prometheus.Counter
	destructions *prometheus.CounterVec
	stagings     prometheus.Counter
	orbits       prometheus.Counter
	logLines     *prometheus.CounterVec
}

func gauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "rocket",
		Name:      name,
		Help:      help,
	})
}

// NewRecorder creates the collectors and registers them on reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		altitude:        gauge("altitude_meters", "Height of the rocket base above the surface."),
		speed:           gauge("speed_mps", "Inertial speed."),
		verticalSpeed:   gauge("vertical_speed_mps", "Radial velocity component."),
		mass:            gauge("mass_kg", "Current vehicle mass."),
		thrust:          gauge("thrust_newton", "Thrust currently produced."),
		throttle:        gauge("throttle_ratio", "Throttle setting in [0, 1]."),
		twr:             gauge("twr_ratio", "Thrust-to-weight ratio."),
		deltaV:          gauge("delta_v_mps", "Remaining delta-v of the active and upper stages."),
		mach:            gauge("mach", "Mach number of the air-relative velocity."),
		angleOfAttack:   gauge("angle_of_attack_radians", "Angle between nose and air-relative velocity."),
		dragCoefficient: gauge("drag_coefficient", "Effective drag coefficient."),
		dynamicPressure: gauge("dynamic_pressure_pascal", "Dynamic pressure."),
		density:         gauge("air_density_kg_per_m3", "Atmospheric density at the rocket."),
		heat:            gauge("heat", "Accumulated heat."),
		glow:            gauge("glow_ratio", "Reentry glow intensity."),
		apoapsis:        gauge("apoapsis_meters", "Apoapsis altitude; +Inf on escape."),
		periapsis:       gauge("periapsis_meters", "Periapsis altitude."),
		eccentricity:    gauge("eccentricity", "Orbital eccentricity."),
		missionTime:     gauge("mission_time_seconds", "Simulated time since liftoff."),
		engineOn:        gauge("engine_status", "1 while the engines are lit."),
		stageFuel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rocket",
			Name:      "stage_fuel_kg",
			Help:      "Remaining propellant of each stage.",
		}, []string{"stage"}),

		flights: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flights_total",
			Help:      "Flights started.",
		}),
		destructions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "destructions_total",
			Help:      "Rockets destroyed, by cause.",
		}, []string{"cause"}),
		stagings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stagings_total",
			Help:      "Stage separations.",
		}),
		orbits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orbits_total",
			Help:      "Flights that reached a stable orbit.",
		}),
		logLines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "autopilot_log_lines_total",
			Help:      "Autopilot log lines, by level.",
		}, []string{"level"}),
	}

	collectors := []prometheus.Collector{
		r.altitude, r.speed, r.verticalSpeed, r.mass, r.thrust, r.throttle,
		r.twr, r.deltaV, r.mach, r.angleOfAttack, r.dragCoefficient,
		r.dynamicPressure, r.density, r.heat, r.glow, r.apoapsis, r.periapsis,
		r.eccentricity, r.missionTime, r.engineOn, r.stageFuel,
		r.flights, r.destructions, r.stagings, r.orbits, r.logLines,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ObserveTelemetry sets every gauge from a snapshot.
func (r *Recorder) ObserveTelemetry(t engine.Telemetry) {
	r.altitude.Set(t.Altitude)
	r.speed.Set(t.Speed)
	r.verticalSpeed.Set(t.VerticalSpeed)
	r.mass.Set(t.Mass)
	r.thrust.Set(t.Thrust)
	r.throttle.Set(t.Throttle)
	r.twr.Set(t.TWR)
	r.deltaV.Set(t.DeltaV)
	r.mach.Set(t.Mach)
	r.angleOfAttack.Set(t.AngleOfAttack)
	r.dragCoefficient.Set(t.DragCoefficient)
	r.dynamicPressure.Set(t.DynamicPressure)
	r.density.Set(t.Density)
	r.heat.Set(t.Heat)
	r.glow.Set(t.Glow)
	r.apoapsis.Set(float64(t.Apoapsis))
	r.periapsis.Set(float64(t.Periapsis))
	r.eccentricity.Set(t.Eccentricity)
	r.missionTime.Set(t.MissionTime)

	if t.EngineOn {
		r.engineOn.Set(1)
	} else {
		r.engineOn.Set(0)
	}
	for _, s := range t.Stages {
		r.stageFuel.WithLabelValues(s.Name).Set(s.Fuel)
	}
}

// Subscribe counts milestones published on bus.
func (r *Recorder) Subscribe(bus *event.Bus) []event.SubscriptionID {
	ids := bus.SubscribeAll(r.handleFlight,
		event.GameStarted, event.RocketDestroyed, event.StageSeparated, event.OrbitAchieved,
	)
	return append(ids, bus.Subscribe(event.AutopilotLog, r.handleLog))
}

func (r *Recorder) handleFlight(e event.Event) {
	switch e.GetType() {
	case event.GameStarted:
		r.flights.Inc()
	case event.StageSeparated:
		r.stagings.Inc()
	case event.OrbitAchieved:
		r.orbits.Inc()
	case event.RocketDestroyed:
		cause := "unknown"
		if fe, ok := e.(*event.FlightEvent); ok {
			cause = Cause(fe.Reason)
		}
		r.destructions.WithLabelValues(cause).Inc()
	}
}

func (r *Recorder) handleLog(e event.Event) {
	level := "info"
	if le, ok := e.(*event.LogEvent); ok && le.IsError {
		level = "error"
	}
	r.logLines.WithLabelValues(level).Inc()
}

// Cause maps a destruction reason to a low-cardinality label value.
func Cause(reason string) string {
	switch {
	case strings.HasPrefix(reason, "Ground impact"):
		return "impact"
	case strings.HasPrefix(reason, "Hot staging"):
		return "hot_staging"
	case strings.HasPrefix(reason, "Thermal failure"):
		return "thermal"
	case strings.HasPrefix(reason, "Structural failure"):
		return "structural"
	default:
		return "other"
	}
}
