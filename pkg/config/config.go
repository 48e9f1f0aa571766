// pkg/config/config.go
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/opd-ai/go-orbit/pkg/flight"
	"github.com/opd-ai/go-orbit/pkg/physics"
	"github.com/opd-ai/go-orbit/pkg/rocket"
)

// EnvPrefix is prepended to every environment override, e.g. ORBIT_SERVER_ADDRESS.
const EnvPrefix = "ORBIT"

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// GameConfig contains configuration for an orbit server or client
type GameConfig struct {
	World      WorldConfig      `json:"world" mapstructure:"world"`
	Rocket     RocketConfig     `json:"rocket" mapstructure:"rocket"`
	Simulation SimulationConfig `json:"simulation" mapstructure:"simulation"`
	Server     ServerConfig     `json:"server" mapstructure:"server"`
	Storage    StorageConfig    `json:"storage" mapstructure:"storage"`
	Client     ClientConfig     `json:"client" mapstructure:"client"`
	Resources  ResourceConfig   `json:"resources" mapstructure:"resources"`
	LogLevel   string           `json:"log_level" mapstructure:"log_level"`
}

// WorldConfig describes the planet
type WorldConfig struct {
	PlanetRadius          float64 `json:"planet_radius" mapstructure:"planet_radius"`
	SurfaceGravity        float64 `json:"surface_gravity" mapstructure:"surface_gravity"`
	AtmosphereScaleHeight float64 `json:"atmosphere_scale_height" mapstructure:"atmosphere_scale_height"`
	SurfaceDensity        float64 `json:"surface_density" mapstructure:"surface_density"`
	RotationRate          float64 `json:"rotation_rate" mapstructure:"rotation_rate"`
}

// RocketConfig describes the launch vehicle
type RocketConfig struct {
	Name               string        `json:"name" mapstructure:"name"`
	PayloadMass        float64       `json:"payload_mass" mapstructure:"payload_mass"`
	DragCoefficient    float64       `json:"drag_coefficient" mapstructure:"drag_coefficient"`
	CrossSectionalArea float64       `json:"cross_sectional_area" mapstructure:"cross_sectional_area"`
	Height             float64       `json:"height" mapstructure:"height"`
	Stages             []StageConfig `json:"stages" mapstructure:"stages"`
}

// StageConfig describes one stage, bottom stage first
type StageConfig struct {
	Name           string  `json:"name" mapstructure:"name"`
	Thrust         float64 `json:"thrust" mapstructure:"thrust"`
	SeaLevelIsp    float64 `json:"sea_level_isp" mapstructure:"sea_level_isp"`
	VacuumIsp      float64 `json:"vacuum_isp" mapstructure:"vacuum_isp"`
	PropellantMass float64 `json:"propellant_mass" mapstructure:"propellant_mass"`
	DryMass        float64 `json:"dry_mass" mapstructure:"dry_mass"`
}

// SimulationConfig contains tick loop settings
type SimulationConfig struct {
	TickRate          int                   `json:"tick_rate" mapstructure:"tick_rate"`
	MaxSubstep        float64               `json:"max_substep" mapstructure:"max_substep"`
	MaxTimeWarp       float64               `json:"max_time_warp" mapstructure:"max_time_warp"`
	Seed              int64                 `json:"seed" mapstructure:"seed"`
	ProjectionHorizon time.Duration         `json:"projection_horizon" mapstructure:"projection_horizon"`
	ProjectionPoints  int                   `json:"projection_points" mapstructure:"projection_points"`
	TelemetryInterval time.Duration         `json:"telemetry_interval" mapstructure:"telemetry_interval"`
	Guidance          flight.GuidanceConfig `json:"guidance" mapstructure:"guidance"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address         string        `json:"address" mapstructure:"address"`
	ReadTimeout     time.Duration `json:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	AllowedOrigin   string        `json:"allowed_origin" mapstructure:"allowed_origin"`
	ScriptRate      float64       `json:"script_rate" mapstructure:"script_rate"`
	ScriptBurst     int           `json:"script_burst" mapstructure:"script_burst"`
}

// StorageConfig selects the flight log database. An empty Path keeps the
// log in memory.
type StorageConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" mapstructure:"path"`
}

// ClientConfig contains mission client settings
type ClientConfig struct {
	ServerURL       string        `json:"server_url" mapstructure:"server_url"`
	Timeout         time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxRetries      int           `json:"max_retries" mapstructure:"max_retries"`
	RetryDelay      time.Duration `json:"retry_delay" mapstructure:"retry_delay"`
	BreakerFailures uint32        `json:"breaker_failures" mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `json:"breaker_timeout" mapstructure:"breaker_timeout"`
}

// ResourceConfig bounds server resource usage
type ResourceConfig struct {
	MaxMemoryMB   int64         `json:"max_memory_mb" mapstructure:"max_memory_mb"`
	MaxGoroutines int           `json:"max_goroutines" mapstructure:"max_goroutines"`
	CheckInterval time.Duration `json:"check_interval" mapstructure:"check_interval"`
}

// DefaultConfig returns the tutorial planet and rocket with local server defaults
func DefaultConfig() *GameConfig {
	stages := rocket.TutorialStages()
	stageConfigs := make([]StageConfig, len(stages))
	for i, s := range stages {
		stageConfigs[i] = StageConfig{
			Name:           s.Name,
			Thrust:         s.Thrust,
			SeaLevelIsp:    s.SeaLevelIsp,
			VacuumIsp:      s.VacuumIsp,
			PropellantMass: s.PropellantMass,
			DryMass:        s.DryMass,
		}
	}

	return &GameConfig{
		World: WorldConfig{
			PlanetRadius:          physics.DefaultPlanetRadius,
			SurfaceGravity:        physics.DefaultSurfaceGravity,
			AtmosphereScaleHeight: physics.DefaultAtmosphereScaleHeight,
			SurfaceDensity:        physics.DefaultSurfaceDensity,
			RotationRate:          physics.DefaultRotationRate,
		},
		Rocket: RocketConfig{
			Name:               "Tutorial",
			PayloadMass:        rocket.TutorialPayloadMass,
			DragCoefficient:    rocket.TutorialDragCoefficient,
			CrossSectionalArea: rocket.TutorialCrossSectionalArea,
			Height:             rocket.TutorialHeight,
			Stages:             stageConfigs,
		},
		Simulation: SimulationConfig{
			TickRate:          60,
			MaxSubstep:        0.05,
			MaxTimeWarp:       50,
			Seed:              0,
			ProjectionHorizon: 8 * time.Hour,
			ProjectionPoints:  512,
			TelemetryInterval: 100 * time.Millisecond,
			Guidance:          flight.DefaultGuidanceConfig(),
		},
		Server: ServerConfig{
			Address:         "localhost:8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			AllowedOrigin:   "*",
			ScriptRate:      1,
			ScriptBurst:     5,
		},
		Storage: StorageConfig{
			Enabled: true,
			Path:    "orbit_flights.db",
		},
		Client: ClientConfig{
			ServerURL:       "http://localhost:8080",
			Timeout:         5 * time.Second,
			MaxRetries:      3,
			RetryDelay:      200 * time.Millisecond,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Resources: ResourceConfig{
			MaxMemoryMB:   512,
			MaxGoroutines: 256,
			CheckInterval: 10 * time.Second,
		},
		LogLevel: "info",
	}
}

// LoadConfig builds a configuration from defaults, an optional file and
// ORBIT_* environment variables, in increasing order of precedence. An empty
// path skips the file.
func LoadConfig(path string) (*GameConfig, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg GameConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *GameConfig) {
	v.SetDefault("log_level", d.LogLevel)

	v.SetDefault("world.planet_radius", d.World.PlanetRadius)
	v.SetDefault("world.surface_gravity", d.World.SurfaceGravity)
	v.SetDefault("world.atmosphere_scale_height", d.World.AtmosphereScaleHeight)
	v.SetDefault("world.surface_density", d.World.SurfaceDensity)
	v.SetDefault("world.rotation_rate", d.World.RotationRate)

	v.SetDefault("rocket.name", d.Rocket.Name)
	v.SetDefault("rocket.payload_mass", d.Rocket.PayloadMass)
	v.SetDefault("rocket.drag_coefficient", d.Rocket.DragCoefficient)
	v.SetDefault("rocket.cross_sectional_area", d.Rocket.CrossSectionalArea)
	v.SetDefault("rocket.height", d.Rocket.Height)
	stages := make([]map[string]any, len(d.Rocket.Stages))
	for i, s := range d.Rocket.Stages {
		stages[i] = map[string]any{
			"name":            s.Name,
			"thrust":          s.Thrust,
			"sea_level_isp":   s.SeaLevelIsp,
			"vacuum_isp":      s.VacuumIsp,
			"propellant_mass": s.PropellantMass,
			"dry_mass":        s.DryMass,
		}
	}
	v.SetDefault("rocket.stages", stages)

	v.SetDefault("simulation.tick_rate", d.Simulation.TickRate)
	v.SetDefault("simulation.max_substep", d.Simulation.MaxSubstep)
	v.SetDefault("simulation.max_time_warp", d.Simulation.MaxTimeWarp)
	v.SetDefault("simulation.seed", d.Simulation.Seed)
	v.SetDefault("simulation.projection_horizon", d.Simulation.ProjectionHorizon)
	v.SetDefault("simulation.projection_points", d.Simulation.ProjectionPoints)
	v.SetDefault("simulation.telemetry_interval", d.Simulation.TelemetryInterval)
	v.SetDefault("simulation.guidance.max_turn_rate", d.Simulation.Guidance.MaxTurnRate)
	v.SetDefault("simulation.guidance.angular_acceleration", d.Simulation.Guidance.AngularAcceleration)
	v.SetDefault("simulation.guidance.damping", d.Simulation.Guidance.Damping)

	v.SetDefault("server.address", d.Server.Address)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.allowed_origin", d.Server.AllowedOrigin)
	v.SetDefault("server.script_rate", d.Server.ScriptRate)
	v.SetDefault("server.script_burst", d.Server.ScriptBurst)

	v.SetDefault("storage.enabled", d.Storage.Enabled)
	v.SetDefault("storage.path", d.Storage.Path)

	v.SetDefault("client.server_url", d.Client.ServerURL)
	v.SetDefault("client.timeout", d.Client.Timeout)
	v.SetDefault("client.max_retries", d.Client.MaxRetries)
	v.SetDefault("client.retry_delay", d.Client.RetryDelay)
	v.SetDefault("client.breaker_failures", d.Client.BreakerFailures)
	v.SetDefault("client.breaker_timeout", d.Client.BreakerTimeout)

	v.SetDefault("resources.max_memory_mb", d.Resources.MaxMemoryMB)
	v.SetDefault("resources.max_goroutines", d.Resources.MaxGoroutines)
	v.SetDefault("resources.check_interval", d.Resources.CheckInterval)
}

// SaveConfig saves a configuration to a file as indented JSON
func SaveConfig(config *GameConfig, path string) error {
	if config == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate rejects configurations that cannot describe a physical flight.
func (c *GameConfig) Validate() error {
	if _, err := c.World.Parameters(); err != nil {
		return fmt.Errorf("%w: world: %w", ErrInvalidConfig, err)
	}
	if _, err := c.Rocket.Build(); err != nil {
		return fmt.Errorf("%w: rocket: %w", ErrInvalidConfig, err)
	}

	s := c.Simulation
	switch {
	case s.TickRate <= 0:
		return fmt.Errorf("%w: simulation.tick_rate must be positive", ErrInvalidConfig)
	case s.MaxSubstep <= 0:
		return fmt.Errorf("%w: simulation.max_substep must be positive", ErrInvalidConfig)
	case s.MaxTimeWarp < 1:
		return fmt.Errorf("%w: simulation.max_time_warp must be at least 1", ErrInvalidConfig)
	case s.ProjectionPoints < 2:
		return fmt.Errorf("%w: simulation.projection_points must be at least 2", ErrInvalidConfig)
	case s.Guidance.MaxTurnRate <= 0 || s.Guidance.AngularAcceleration <= 0:
		return fmt.Errorf("%w: simulation.guidance rates must be positive", ErrInvalidConfig)
	case s.Guidance.Damping <= 0 || s.Guidance.Damping > 1:
		return fmt.Errorf("%w: simulation.guidance.damping must be in (0, 1]", ErrInvalidConfig)
	}

	if c.Server.ScriptRate <= 0 || c.Server.ScriptBurst <= 0 {
		return fmt.Errorf("%w: server script rate limits must be positive", ErrInvalidConfig)
	}
	if c.Client.MaxRetries < 0 {
		return fmt.Errorf("%w: client.max_retries cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// Parameters converts the world section into physics parameters.
func (w WorldConfig) Parameters() (physics.WorldParameters, error) {
	return physics.NewWorldParameters(
		w.PlanetRadius,
		w.SurfaceGravity,
		w.AtmosphereScaleHeight,
		w.SurfaceDensity,
		w.RotationRate,
	)
}

// Build returns a freshly fuelled rocket with its first stage active.
func (r RocketConfig) Build() (*rocket.Configuration, error) {
	if len(r.Stages) == 0 {
		return nil, fmt.Errorf("rocket %q has no stages", r.Name)
	}
	stages := make([]rocket.Stage, len(r.Stages))
	for i, s := range r.Stages {
		stages[i] = rocket.NewStage(s.Name, s.Thrust, s.SeaLevelIsp, s.VacuumIsp, s.PropellantMass, s.DryMass)
	}
	return rocket.NewConfiguration(stages, r.PayloadMass, r.DragCoefficient, r.CrossSectionalArea, r.Height)
}

// TickInterval is the wall time between simulation ticks.
func (s SimulationConfig) TickInterval() time.Duration {
	if s.TickRate <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(s.TickRate)
}
