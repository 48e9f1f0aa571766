// pkg/event/event.go
package event

import (
	"sync"
	"time"
)

// Type represents the type of event
type Type string

// Flight event types
const (
	GameStarted     Type = "game_started"
	GameRestarted   Type = "game_restarted"
	EngineIgnited   Type = "engine_ignited"
	EngineCut       Type = "engine_cut"
	StageSeparated  Type = "stage_separated"
	Explosion       Type = "explosion"
	RocketDestroyed Type = "rocket_destroyed"
	RocketLanded    Type = "rocket_landed"
	OrbitAchieved   Type = "orbit_achieved"
	AutopilotLog    Type = "autopilot_log"
)

// Event is the base interface for all events
type Event interface {
	GetType() Type
	GetSource() interface{}
}

// BaseEvent provides common functionality for all events
type BaseEvent struct {
	EventType Type
	Source    interface{}
}

// GetType returns the event type
func (e *BaseEvent) GetType() Type {
	return e.EventType
}

// GetSource returns the event source
func (e *BaseEvent) GetSource() interface{} {
	return e.Source
}

// Handler is a function that handles events
type Handler func(Event)

// SubscriptionID identifies a registered handler.
type SubscriptionID uint64

type subscription struct {
	id      SubscriptionID
	handler Handler
}

// Bus manages event subscriptions and dispatching. Handlers run
// synchronously on the publishing goroutine.
type Bus struct {
	handlers map[Type][]subscription
	nextID   SubscriptionID
	mu       sync.RWMutex
}

// NewEventBus creates a new event bus
func NewEventBus() *Bus {
	return &Bus{
		handlers: make(map[Type][]subscription),
		nextID:   1,
	}
}

// Subscribe registers a handler for a specific event type
func (b *Bus) Subscribe(eventType Type, handler Handler) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers[eventType] = append(b.handlers[eventType], subscription{id: id, handler: handler})
	return id
}

// SubscribeAll registers handler for every listed event type and returns
// one id per type.
func (b *Bus) SubscribeAll(handler Handler, types ...Type) []SubscriptionID {
	ids := make([]SubscriptionID, 0, len(types))
	for _, t := range types {
		ids = append(ids, b.Subscribe(t, handler))
	}
	return ids
}

// Unsubscribe removes the handler registered under id. It reports whether
// anything was removed.
func (b *Bus) Unsubscribe(id SubscriptionID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.handlers {
		for i, s := range subs {
			if s.id != id {
				continue
			}
			rest := make([]subscription, 0, len(subs)-1)
			rest = append(rest, subs[:i]...)
			rest = append(rest, subs[i+1:]...)
			if len(rest) == 0 {
				delete(b.handlers, eventType)
			} else {
				b.handlers[eventType] = rest
			}
			return true
		}
	}
	return false
}

// Publish sends an event to all subscribed handlers
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	subs := b.handlers[event.GetType()]
	b.mu.RUnlock()

	for _, s := range subs {
		s.handler(event)
	}
}

// Specific event implementations

// FlightEvent carries the rocket state at the moment of a flight milestone.
type FlightEvent struct {
	BaseEvent
	FlightID          string
	Reason            string
	Stage             int
	Altitude          float64
	Speed             float64
	ApoapsisAltitude  float64
	PeriapsisAltitude float64
	MissionTime       float64
	Timestamp         time.Time
}

// NewFlightEvent creates a flight event stamped with the current time.
func NewFlightEvent(eventType Type, source interface{}, flightID string) *FlightEvent {
	return &FlightEvent{
		BaseEvent: BaseEvent{
			EventType: eventType,
			Source:    source,
		},
		FlightID:  flightID,
		Timestamp: time.Now(),
	}
}

// LogEvent contains one autopilot log line.
type LogEvent struct {
	BaseEvent
	FlightID string
	Line     string
	IsError  bool
}

// NewLogEvent creates a new autopilot log event
func NewLogEvent(source interface{}, flightID, line string, isError bool) *LogEvent {
	return &LogEvent{
		BaseEvent: BaseEvent{
			EventType: AutopilotLog,
			Source:    source,
		},
		FlightID: flightID,
		Line:     line,
		IsError:  isError,
	}
}
