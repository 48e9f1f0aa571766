package storage

import (
	"context"
	"sync"
	"time"

	"github.com/opd-ai/go-orbit/pkg/engine"
	"github.com/opd-ai/go-orbit/pkg/event"
	"github.com/opd-ai/go-orbit/pkg/logging"
)

const (
	writeQueueSize = 64
	writeTimeout   = 5 * time.Second
)

// FlightLog follows the event bus and keeps a FlightRecord per flight. Bus
// handlers only update memory and queue a copy; a single writer goroutine
// persists the copies, so handlers never block on the database.
type FlightLog struct {
	store  *Store
	rocket string
	logger *logging.Logger

	mu      sync.Mutex
	current *FlightRecord
	subs    []event.SubscriptionID
	bus     *event.Bus

	writes chan writeJob
	done   chan struct{}
	closed bool
	once   sync.Once
}

// writeJob persists rec when set and then closes ack when set.
type writeJob struct {
	rec *FlightRecord
	ack chan struct{}
}

// NewFlightLog starts the writer goroutine. rocket names the vehicle in new
// records.
func NewFlightLog(store *Store, rocket string, logger *logging.Logger) *FlightLog {
	if logger == nil {
		logger = logging.NewLogger()
	}
	fl := &FlightLog{
		store:  store,
		rocket: rocket,
		logger: logger.Component("flightlog"),
		writes: make(chan writeJob, writeQueueSize),
		done:   make(chan struct{}),
	}
	go fl.writer()
	return fl
}

// Subscribe attaches the log to bus.
func (fl *FlightLog) Subscribe(bus *event.Bus) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	fl.bus = bus
	fl.subs = append(fl.subs,
		bus.SubscribeAll(fl.handleFlight,
			event.GameStarted, event.GameRestarted, event.EngineIgnited,
			event.StageSeparated, event.RocketDestroyed, event.RocketLanded,
			event.OrbitAchieved,
		)...,
	)
	fl.subs = append(fl.subs, bus.Subscribe(event.AutopilotLog, fl.handleLog))
}

// Observe folds a telemetry snapshot into the open record. It does not
// write to the database.
func (fl *FlightLog) Observe(t engine.Telemetry) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	rec := fl.record(t.FlightID, time.Now())
	if rec == nil {
		return
	}
	rec.MissionTime = t.MissionTime
	rec.FinalAltitude = t.Altitude
	rec.MaxAltitude = max(rec.MaxAltitude, t.Altitude)
	rec.MaxSpeed = max(rec.MaxSpeed, t.Speed)
	rec.SetOrbit(float64(t.Apoapsis), float64(t.Periapsis))
}

// Current returns a copy of the open record, if any.
func (fl *FlightLog) Current() (FlightRecord, bool) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.current == nil {
		return FlightRecord{}, false
	}
	return *fl.current, true
}

func (fl *FlightLog) handleFlight(e event.Event) {
	fe, ok := e.(*event.FlightEvent)
	if !ok {
		return
	}

	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fe.GetType() == event.GameRestarted {
		if fl.current != nil && fl.current.ID == fe.FlightID && fl.current.Outcome == OutcomeInProgress {
			fl.fold(fe)
			fl.finish(OutcomeAborted, "Restarted", fe.Timestamp)
			fl.enqueue()
		}
		return
	}

	rec := fl.record(fe.FlightID, fe.Timestamp)
	fl.fold(fe)

	switch fe.GetType() {
	case event.GameStarted:
		fl.enqueue()
	case event.EngineIgnited:
		rec.Ignitions++
	case event.StageSeparated:
		rec.Stagings++
	case event.OrbitAchieved:
		if rec.Outcome == OutcomeInProgress {
			rec.Outcome = OutcomeOrbit
		}
		fl.enqueue()
	case event.RocketLanded:
		fl.finish(OutcomeLanded, "", fe.Timestamp)
		fl.enqueue()
	case event.RocketDestroyed:
		fl.finish(OutcomeDestroyed, fe.Reason, fe.Timestamp)
		fl.enqueue()
	}
}

func (fl *FlightLog) handleLog(e event.Event) {
	le, ok := e.(*event.LogEvent)
	if !ok {
		return
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if rec := fl.record(le.FlightID, time.Now()); rec != nil {
		rec.LogLines++
	}
}

// record returns the open record for id, starting a new one when the flight
// changed.
func (fl *FlightLog) record(id string, at time.Time) *FlightRecord {
	if id == "" {
		return nil
	}
	if fl.current == nil || fl.current.ID != id {
		fl.current = &FlightRecord{
			ID:        id,
			Rocket:    fl.rocket,
			Outcome:   OutcomeInProgress,
			StartedAt: at,
		}
	}
	return fl.current
}

func (fl *FlightLog) fold(fe *event.FlightEvent) {
	rec := fl.current
	if rec == nil {
		return
	}
	rec.MissionTime = max(rec.MissionTime, fe.MissionTime)
	rec.FinalAltitude = fe.Altitude
	rec.MaxAltitude = max(rec.MaxAltitude, fe.Altitude)
	rec.MaxSpeed = max(rec.MaxSpeed, fe.Speed)
	rec.SetOrbit(fe.ApoapsisAltitude, fe.PeriapsisAltitude)
}

// finish closes the record. A landing after orbit or a destruction after
// landing replaces the earlier outcome.
func (fl *FlightLog) finish(outcome, reason string, at time.Time) {
	rec := fl.current
	rec.Outcome = outcome
	rec.Reason = reason
	ended := at
	rec.EndedAt = &ended
}

func (fl *FlightLog) enqueue() {
	if fl.closed {
		return
	}
	snapshot := *fl.current
	select {
	case fl.writes <- writeJob{rec: &snapshot}:
	default:
		fl.logger.Warn(context.Background(), "Flight log queue full, dropping write", "flight_id", snapshot.ID)
	}
}

func (fl *FlightLog) writer() {
	defer close(fl.done)
	for job := range fl.writes {
		if job.rec != nil {
			fl.persist(job.rec)
		}
		if job.ack != nil {
			close(job.ack)
		}
	}
}

func (fl *FlightLog) persist(rec *FlightRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	ctx = logging.WithFlightID(ctx, rec.ID)
	if err := fl.store.SaveFlight(ctx, rec); err != nil {
		fl.logger.Error(ctx, "Failed to save flight", err)
		return
	}
	fl.logger.Debug(ctx, "Flight saved", "outcome", rec.Outcome)
}

// Flush persists the open record and waits until every write queued before
// it has completed or ctx is done.
func (fl *FlightLog) Flush(ctx context.Context) error {
	fl.mu.Lock()
	if fl.closed {
		fl.mu.Unlock()
		return nil
	}
	job := writeJob{ack: make(chan struct{})}
	if fl.current != nil {
		snapshot := *fl.current
		job.rec = &snapshot
	}
	// The send happens under the lock so Close cannot close the channel
	// underneath it; the writer never takes fl.mu.
	select {
	case fl.writes <- job:
	case <-ctx.Done():
		fl.mu.Unlock()
		return ctx.Err()
	}
	fl.mu.Unlock()

	select {
	case <-job.ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close unsubscribes, persists the open record and stops the writer after
// draining the queue.
func (fl *FlightLog) Close(ctx context.Context) error {
	fl.once.Do(func() {
		fl.mu.Lock()
		if fl.bus != nil {
			for _, id := range fl.subs {
				fl.bus.Unsubscribe(id)
			}
		}
		fl.subs = nil
		if fl.current != nil {
			fl.enqueue()
		}
		fl.closed = true
		close(fl.writes)
		fl.mu.Unlock()
	})

	select {
	case <-fl.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
