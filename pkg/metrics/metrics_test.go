package metrics

import (
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/go-orbit/pkg/config"
	"github.com/opd-ai/go-orbit/pkg/engine"
	"github.com/opd-ai/go-orbit/pkg/event"
	"github.com/opd-ai/go-orbit/pkg/logging"
)

func TestNewRecorder_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewRecorder(reg)
	require.NoError(t, err)

	_, err = NewRecorder(reg)
	assert.Error(t, err, "duplicate registration is rejected")
}

func TestRecorder_ObserveTelemetry(t *testing.T) {
	r, err := NewRecorder(prometheus.NewRegistry())
	require.NoError(t, err)

	r.ObserveTelemetry(engine.Telemetry{
		Altitude:  1500,
		Speed:     320,
		Mass:      30000,
		Throttle:  0.75,
		EngineOn:  true,
		Apoapsis:  engine.Float(math.Inf(1)),
		Periapsis: 95000,
		Stages: []engine.StageTelemetry{
			{Name: "Booster", Fuel: 12000},
			{Name: "Upper", Fuel: 5000},
		},
	})

	assert.Equal(t, 1500.0, testutil.ToFloat64(r.altitude))
	assert.Equal(t, 320.0, testutil.ToFloat64(r.speed))
	assert.Equal(t, 0.75, testutil.ToFloat64(r.throttle))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.engineOn))
	assert.True(t, math.IsInf(testutil.ToFloat64(r.apoapsis), 1))
	assert.Equal(t, 95000.0, testutil.ToFloat64(r.periapsis))
	assert.Equal(t, 12000.0, testutil.ToFloat64(r.stageFuel.WithLabelValues("Booster")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.stageFuel))

	r.ObserveTelemetry(engine.Telemetry{})
	assert.Equal(t, 0.0, testutil.ToFloat64(r.engineOn))
}

func TestRecorder_CountsGameEvents(t *testing.T) {
	r, err := NewRecorder(prometheus.NewRegistry())
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Simulation.Seed = 11
	game, err := engine.NewGame(cfg, logging.NewLoggerWithWriter(io.Discard, slog.LevelError))
	require.NoError(t, err)
	ids := r.Subscribe(game.EventBus)
	assert.Len(t, ids, 5)

	game.Start()
	require.NoError(t, game.LoadScript("stage\nstage"))
	for i := 0; i < 3; i++ {
		game.Advance(0.1)
	}
	require.NoError(t, game.Restart())

	assert.Equal(t, 2.0, testutil.ToFloat64(r.flights))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.stagings))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.logLines.WithLabelValues("error")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(r.logLines.WithLabelValues("info")), 3.0)
}

func TestRecorder_DestructionCause(t *testing.T) {
	r, err := NewRecorder(prometheus.NewRegistry())
	require.NoError(t, err)
	bus := event.NewEventBus()
	r.Subscribe(bus)

	for _, reason := range []string{
		"Ground impact at 80.0 m/s",
		"Thermal failure (overheating)",
		"Ground impact at 20.1 m/s",
	} {
		e := event.NewFlightEvent(event.RocketDestroyed, nil, "f")
		e.Reason = reason
		bus.Publish(e)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(r.destructions.WithLabelValues("impact")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.destructions.WithLabelValues("thermal")))
}

func TestCause(t *testing.T) {
	tests := []struct {
		reason string
		want   string
	}{
		{"Ground impact at 45.0 m/s", "impact"},
		{"Hot staging (separated while engines were firing)", "hot_staging"},
		{"Thermal failure (overheating)", "thermal"},
		{"Structural failure (aerodynamic overload)", "structural"},
		{"", "other"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Cause(tt.reason))
		})
	}
}
