package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opd-ai/go-orbit/pkg/engine"
	"github.com/opd-ai/go-orbit/pkg/event"
	"github.com/opd-ai/go-orbit/pkg/logging"
)

const (
	writeWait      = 10 * time.Second
	streamBuffer   = 64
	streamInterval = 100 * time.Millisecond
)

// Stream message types.
const (
	MessageTelemetry = "telemetry"
	MessageLog       = "log"
	MessageEvent     = "event"
)

// StreamMessage is one websocket frame. Exactly one payload field is set,
// selected by Type.
type StreamMessage struct {
	Type  string            `json:"type"`
	Data  *engine.Telemetry `json:"data,omitempty"`
	Log   *LogLine          `json:"log,omitempty"`
	Event *FlightMilestone  `json:"event,omitempty"`
}

// LogLine is an autopilot log line.
type LogLine struct {
	Line  string `json:"line"`
	Error bool   `json:"error"`
}

// FlightMilestone is a flight event pushed to stream clients.
type FlightMilestone struct {
	Kind        string  `json:"kind"`
	Reason      string  `json:"reason,omitempty"`
	Stage       int     `json:"stage"`
	Altitude    float64 `json:"altitude"`
	MissionTime float64 `json:"mission_time"`
}

var streamedEvents = []event.Type{
	event.GameStarted,
	event.GameRestarted,
	event.EngineIgnited,
	event.EngineCut,
	event.StageSeparated,
	event.RocketDestroyed,
	event.RocketLanded,
	event.OrbitAchieved,
	event.AutopilotLog,
}

// handleStream upgrades to a websocket and pushes telemetry on an interval,
// plus log lines and milestones as they happen.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn(r.Context(), "Websocket upgrade failed", "error", err)
		return
	}

	ctx := logging.WithCorrelationID(s.ctx, logging.GetCorrelationID(r.Context()))
	run := func(ctx context.Context) { s.stream(ctx, conn) }
	if s.resources == nil {
		go run(ctx)
		return
	}
	if err := s.resources.Go(ctx, "telemetry-stream", run); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server busy"),
			time.Now().Add(writeWait))
		_ = conn.Close()
	}
}

func (s *Server) stream(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	out := make(chan StreamMessage, streamBuffer)
	ids := s.game.EventBus.SubscribeAll(func(e event.Event) {
		msg, ok := streamMessage(e)
		if !ok {
			return
		}
		select {
		case out <- msg:
		default:
		}
	}, streamedEvents...)
	defer func() {
		for _, id := range ids {
			s.game.EventBus.Unsubscribe(id)
		}
	}()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	interval := s.sim.TelemetryInterval
	if interval <= 0 {
		interval = streamInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Debug(ctx, "Telemetry stream opened", "remote", conn.RemoteAddr().String())
	defer s.logger.Debug(ctx, "Telemetry stream closed", "remote", conn.RemoteAddr().String())

	for {
		var msg StreamMessage
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		case <-closed:
			return
		case msg = <-out:
		case <-ticker.C:
			tel := s.game.Snapshot()
			msg = StreamMessage{Type: MessageTelemetry, Data: &tel}
		}

		data, err := json.Marshal(msg)
		if err != nil {
			s.logger.Error(ctx, "Encode stream message", err)
			continue
		}
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.logger.Debug(ctx, "Websocket write failed", "error", err)
			return
		}
	}
}

// streamMessage converts a bus event to a frame. Handlers run under the
// game lock, so only event fields are read here.
func streamMessage(e event.Event) (StreamMessage, bool) {
	switch ev := e.(type) {
	case *event.LogEvent:
		return StreamMessage{Type: MessageLog, Log: &LogLine{Line: ev.Line, Error: ev.IsError}}, true
	case *event.FlightEvent:
		return StreamMessage{Type: MessageEvent, Event: &FlightMilestone{
			Kind:        string(ev.GetType()),
			Reason:      ev.Reason,
			Stage:       ev.Stage,
			Altitude:    ev.Altitude,
			MissionTime: ev.MissionTime,
		}}, true
	}
	return StreamMessage{}, false
}
