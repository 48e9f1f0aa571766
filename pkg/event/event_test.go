// pkg/event/event_test.go
package event

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestNewEventBus_Creation_ReturnsInitializedBus(t *testing.T) {
	bus := NewEventBus()

	if bus == nil {
		t.Fatal("NewEventBus() returned nil")
	}
	if bus.handlers == nil {
		t.Error("handlers map not initialized")
	}
	if bus.nextID != 1 {
		t.Errorf("expected nextID to be 1, got %d", bus.nextID)
	}
}

func TestBaseEvent_GetType_ReturnsCorrectType(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		source    interface{}
	}{
		{"engine ignited", EngineIgnited, "game"},
		{"stage separated", StageSeparated, 1},
		{"nil source", GameStarted, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &BaseEvent{EventType: tt.eventType, Source: tt.source}
			if e.GetType() != tt.eventType {
				t.Errorf("GetType() = %v, want %v", e.GetType(), tt.eventType)
			}
			if e.GetSource() != tt.source {
				t.Errorf("GetSource() = %v, want %v", e.GetSource(), tt.source)
			}
		})
	}
}

func TestBusSubscribe_MultipleHandlers_UniqueIDs(t *testing.T) {
	bus := NewEventBus()
	noop := func(Event) {}

	id1 := bus.Subscribe(EngineIgnited, noop)
	id2 := bus.Subscribe(EngineIgnited, noop)
	id3 := bus.Subscribe(EngineCut, noop)

	if id1 == 0 || id1 == id2 || id2 == id3 {
		t.Errorf("expected unique non-zero IDs, got %d %d %d", id1, id2, id3)
	}
	if n := len(bus.handlers[EngineIgnited]); n != 2 {
		t.Errorf("expected 2 handlers for %s, got %d", EngineIgnited, n)
	}
}

func TestBusPublish_WithSubscribers_CallsMatchingHandlers(t *testing.T) {
	bus := NewEventBus()
	var ignitions, cuts int

	bus.Subscribe(EngineIgnited, func(Event) { ignitions++ })
	bus.Subscribe(EngineIgnited, func(Event) { ignitions++ })
	bus.Subscribe(EngineCut, func(Event) { cuts++ })

	bus.Publish(&BaseEvent{EventType: EngineIgnited})

	if ignitions != 2 {
		t.Errorf("expected 2 ignition handler calls, got %d", ignitions)
	}
	if cuts != 0 {
		t.Errorf("expected cut handler not to run, got %d calls", cuts)
	}
}

func TestBusPublish_NoSubscribers_NoPanic(t *testing.T) {
	NewEventBus().Publish(&BaseEvent{EventType: Explosion})
}

func TestBusUnsubscribe_ValidID_RemovesOnlyThatHandler(t *testing.T) {
	bus := NewEventBus()
	var first, second int

	id := bus.Subscribe(RocketLanded, func(Event) { first++ })
	bus.Subscribe(RocketLanded, func(Event) { second++ })

	if !bus.Unsubscribe(id) {
		t.Fatal("Unsubscribe() = false for a registered id")
	}
	bus.Publish(&BaseEvent{EventType: RocketLanded})

	if first != 0 || second != 1 {
		t.Errorf("expected only the remaining handler to run, got first=%d second=%d", first, second)
	}
	if bus.Unsubscribe(id) {
		t.Error("Unsubscribe() twice should report false")
	}
}

func TestBusUnsubscribe_LastHandler_DeletesType(t *testing.T) {
	bus := NewEventBus()
	id := bus.Subscribe(OrbitAchieved, func(Event) {})
	bus.Unsubscribe(id)

	if _, ok := bus.handlers[OrbitAchieved]; ok {
		t.Error("expected empty handler list to be removed")
	}
}

func TestBusSubscribeAll_RegistersEveryType(t *testing.T) {
	bus := NewEventBus()
	var seen []Type

	ids := bus.SubscribeAll(func(e Event) { seen = append(seen, e.GetType()) }, RocketDestroyed, RocketLanded)
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %d", len(ids))
	}

	bus.Publish(&BaseEvent{EventType: RocketLanded})
	bus.Publish(&BaseEvent{EventType: RocketDestroyed})
	bus.Publish(&BaseEvent{EventType: EngineCut})

	if len(seen) != 2 || seen[0] != RocketLanded || seen[1] != RocketDestroyed {
		t.Errorf("unexpected delivery order %v", seen)
	}
}

func TestBusPublish_HandlerUnsubscribesItself_NoDeadlock(t *testing.T) {
	bus := NewEventBus()
	var calls int
	var id SubscriptionID
	id = bus.Subscribe(AutopilotLog, func(Event) {
		calls++
		bus.Unsubscribe(id)
	})

	bus.Publish(NewLogEvent(nil, "f", "Ignition", false))
	bus.Publish(NewLogEvent(nil, "f", "Ignition", false))

	if calls != 1 {
		t.Errorf("expected handler to run once, got %d", calls)
	}
}

func TestBus_ConcurrentPublishAndSubscribe(t *testing.T) {
	bus := NewEventBus()
	var count atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			id := bus.Subscribe(Explosion, func(Event) { count.Add(1) })
			bus.Unsubscribe(id)
		}()
		go func() {
			defer wg.Done()
			bus.Publish(&BaseEvent{EventType: Explosion})
		}()
	}
	wg.Wait()
}

func TestNewFlightEvent_SetsFields(t *testing.T) {
	e := NewFlightEvent(RocketDestroyed, "game", "abc")
	e.Reason = "Ground impact at 40.0 m/s"

	if e.GetType() != RocketDestroyed {
		t.Errorf("GetType() = %v, want %v", e.GetType(), RocketDestroyed)
	}
	if e.FlightID != "abc" {
		t.Errorf("FlightID = %q, want %q", e.FlightID, "abc")
	}
	if e.Timestamp.IsZero() {
		t.Error("expected Timestamp to be set")
	}
}

func TestNewLogEvent_UsesAutopilotLogType(t *testing.T) {
	e := NewLogEvent("autopilot", "abc", "ERR: line 1: unknown command: \"launch\"", true)

	if e.GetType() != AutopilotLog {
		t.Errorf("GetType() = %v, want %v", e.GetType(), AutopilotLog)
	}
	if !e.IsError {
		t.Error("expected IsError to be true")
	}
}
