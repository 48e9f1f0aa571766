package storage

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/go-orbit/pkg/config"
	"github.com/opd-ai/go-orbit/pkg/engine"
	"github.com/opd-ai/go-orbit/pkg/event"
	"github.com/opd-ai/go-orbit/pkg/logging"
)

func newLoggedGame(t *testing.T) (*engine.Game, *FlightLog, *Store) {
	t.Helper()
	logger := logging.NewLoggerWithWriter(io.Discard, slog.LevelError)
	cfg := config.DefaultConfig()
	cfg.Simulation.Seed = 3

	game, err := engine.NewGame(cfg, logger)
	require.NoError(t, err)

	store := openTestStore(t)
	fl := NewFlightLog(store, cfg.Rocket.Name, logger)
	fl.Subscribe(game.EventBus)
	t.Cleanup(func() { _ = fl.Close(context.Background()) })
	return game, fl, store
}

func flush(t *testing.T, fl *FlightLog) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, fl.Flush(ctx))
}

func TestFlightLog_RecordsDestruction(t *testing.T) {
	game, fl, store := newLoggedGame(t)
	ctx := context.Background()

	game.Start()
	flush(t, fl)

	rec, err := store.GetFlight(ctx, game.FlightID())
	require.NoError(t, err)
	assert.Equal(t, OutcomeInProgress, rec.Outcome)

	require.NoError(t, game.SetThrottle(1))
	require.NoError(t, game.Ignite())
	for i := 0; i < 20; i++ {
		game.Advance(0.1)
	}
	fl.Observe(game.Snapshot())
	require.NoError(t, game.Stage())
	flush(t, fl)

	rec, err = store.GetFlight(ctx, game.FlightID())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDestroyed, rec.Outcome)
	assert.True(t, strings.HasPrefix(rec.Reason, "Hot staging"))
	assert.Equal(t, 1, rec.Ignitions)
	assert.Greater(t, rec.MaxAltitude, 0.0)
	assert.Greater(t, rec.MissionTime, 1.9)
	require.NotNil(t, rec.EndedAt)
}

func TestFlightLog_RestartAbortsOpenFlight(t *testing.T) {
	game, fl, store := newLoggedGame(t)
	ctx := context.Background()

	game.Start()
	first := game.FlightID()
	require.NoError(t, game.Restart())
	second := game.FlightID()
	flush(t, fl)

	rec, err := store.GetFlight(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAborted, rec.Outcome)
	assert.Equal(t, "Restarted", rec.Reason)

	rec, err = store.GetFlight(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInProgress, rec.Outcome)

	recs, err := store.ListFlights(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestFlightLog_CountsLogLinesAndStaging(t *testing.T) {
	game, fl, store := newLoggedGame(t)

	game.Start()
	require.NoError(t, game.LoadScript("stage"))
	game.Advance(0.1)
	flush(t, fl)

	current, ok := fl.Current()
	require.True(t, ok)
	assert.Equal(t, 1, current.Stagings)
	assert.GreaterOrEqual(t, current.LogLines, 3)

	rec, err := store.GetFlight(context.Background(), game.FlightID())
	require.NoError(t, err)
	assert.Equal(t, current.LogLines, rec.LogLines)
}

func TestFlightLog_OrbitThenDestroyed(t *testing.T) {
	store := openTestStore(t)
	fl := NewFlightLog(store, "Test", logging.NewLoggerWithWriter(io.Discard, slog.LevelError))
	bus := event.NewEventBus()
	fl.Subscribe(bus)

	orbit := event.NewFlightEvent(event.OrbitAchieved, nil, "f1")
	orbit.Altitude = 90000
	orbit.ApoapsisAltitude = 120000
	orbit.PeriapsisAltitude = 85000
	bus.Publish(orbit)
	flush(t, fl)

	rec, err := store.GetFlight(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeOrbit, rec.Outcome)
	assert.Nil(t, rec.EndedAt)

	destroyed := event.NewFlightEvent(event.RocketDestroyed, nil, "f1")
	destroyed.Reason = "Burned up on reentry"
	bus.Publish(destroyed)
	require.NoError(t, fl.Close(context.Background()))

	rec, err = store.GetFlight(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDestroyed, rec.Outcome)
	assert.Equal(t, 90000.0, rec.MaxAltitude)

	bus.Publish(event.NewFlightEvent(event.GameStarted, nil, "f2"))
	_, err = store.GetFlight(context.Background(), "f2")
	assert.ErrorIs(t, err, ErrFlightNotFound, "closed log ignores events")
	assert.NoError(t, fl.Flush(context.Background()))
}
