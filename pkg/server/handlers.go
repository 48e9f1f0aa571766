package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/opd-ai/go-orbit/pkg/autopilot"
	"github.com/opd-ai/go-orbit/pkg/engine"
	"github.com/opd-ai/go-orbit/pkg/logging"
	"github.com/opd-ai/go-orbit/pkg/storage"
	"github.com/opd-ai/go-orbit/pkg/validation"
)

// ScriptRequest is the body of POST /api/autopilot/script.
type ScriptRequest struct {
	Script string `json:"script"`
}

// ScriptResponse acknowledges a loaded script.
type ScriptResponse struct {
	FlightID string   `json:"flight_id"`
	Queue    []string `json:"queue"`
}

// ThrottleRequest is the body of PUT /api/controls/throttle.
type ThrottleRequest struct {
	Value float64 `json:"value"`
}

// TurnRequest is the body of PUT /api/controls/turn.
type TurnRequest struct {
	Input float64 `json:"input"`
}

// WarpRequest is the body of PUT /api/controls/warp.
type WarpRequest struct {
	Factor float64 `json:"factor"`
}

// WarpResponse reports the warp factor actually applied.
type WarpResponse struct {
	Factor float64 `json:"factor"`
}

// RestartResponse names the new flight.
type RestartResponse struct {
	FlightID string `json:"flight_id"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, msg string, details ...string) {
	writeJSON(w, code, ErrorResponse{Error: msg, Details: details})
}

// decode reads a bounded JSON body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, validation.MaxRequestBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}
	return true
}

// controlStatus maps game control errors to HTTP status codes.
func controlStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrRocketDestroyed),
		errors.Is(err, engine.ErrCannotStage),
		errors.Is(err, engine.ErrNoThrust):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.game.Snapshot())
}

func (s *Server) handleTrajectory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.game.Trajectory())
}

func (s *Server) handleScript(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow(clientKey(r)) {
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "script rate limit exceeded")
		return
	}

	var req ScriptRequest
	if !decode(w, r, &req) {
		return
	}
	script, err := validation.ValidateScript(req.Script)
	if err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, validation.ErrScriptTooLarge) {
			code = http.StatusRequestEntityTooLarge
		}
		writeError(w, code, err.Error())
		return
	}

	if err := s.game.LoadScript(script); err != nil {
		if errors.Is(err, autopilot.ErrScriptRejected) {
			writeError(w, http.StatusBadRequest, autopilot.ErrScriptRejected.Error(), scriptErrors(err)...)
			return
		}
		writeError(w, controlStatus(err), err.Error())
		return
	}

	tel := s.game.Snapshot()
	s.logger.Info(r.Context(), "Autopilot script loaded", "flight_id", tel.FlightID, "steps", len(tel.AutopilotQueue))
	writeJSON(w, http.StatusAccepted, ScriptResponse{FlightID: tel.FlightID, Queue: tel.AutopilotQueue})
}

// scriptErrors flattens the per-line parse errors of a rejected script.
func scriptErrors(err error) []string {
	var out []string
	var walk func(error)
	walk = func(e error) {
		if e == autopilot.ErrScriptRejected {
			return
		}
		if multi, ok := e.(interface{ Unwrap() []error }); ok {
			for _, child := range multi.Unwrap() {
				walk(child)
			}
			return
		}
		out = append(out, e.Error())
	}
	walk(err)
	return out
}

func (s *Server) handleStopScript(w http.ResponseWriter, r *http.Request) {
	s.game.AbortScript()
	writeJSON(w, http.StatusOK, s.game.Snapshot())
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	action := mux.Vars(r)["action"]

	var err error
	switch action {
	case "ignite":
		err = s.game.Ignite()
	case "cut":
		err = s.game.Cut()
	case "stage":
		err = s.game.Stage()
	}
	if err != nil {
		writeError(w, controlStatus(err), fmt.Sprintf("%s: %v", action, err))
		return
	}
	writeJSON(w, http.StatusOK, s.game.Snapshot())
}

func (s *Server) handleThrottle(w http.ResponseWriter, r *http.Request) {
	var req ThrottleRequest
	if !decode(w, r, &req) {
		return
	}
	if err := validation.ValidateThrottle(req.Value); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.game.SetThrottle(req.Value); err != nil {
		writeError(w, controlStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.game.Snapshot())
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req TurnRequest
	if !decode(w, r, &req) {
		return
	}
	s.game.SetTurn(req.Input)
	writeJSON(w, http.StatusOK, s.game.Snapshot())
}

func (s *Server) handleWarp(w http.ResponseWriter, r *http.Request) {
	var req WarpRequest
	if !decode(w, r, &req) {
		return
	}
	if err := validation.ValidateTimeWarp(req.Factor); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, WarpResponse{Factor: s.game.SetTimeWarp(req.Factor)})
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	if err := s.game.Restart(); err != nil {
		s.logger.Error(r.Context(), "Restart failed", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, RestartResponse{FlightID: s.game.FlightID()})
}

func (s *Server) handleFlights(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "flight log disabled")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	flights, err := s.store.ListFlights(r.Context(), limit)
	if err != nil {
		s.logger.Error(r.Context(), "List flights", err)
		writeError(w, http.StatusInternalServerError, "flight log unavailable")
		return
	}
	if flights == nil {
		flights = []storage.FlightRecord{}
	}
	writeJSON(w, http.StatusOK, flights)
}

func (s *Server) handleFlight(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "flight log disabled")
		return
	}

	id := mux.Vars(r)["id"]
	if err := validation.ValidateFlightID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.store.GetFlight(r.Context(), id)
	switch {
	case errors.Is(err, storage.ErrFlightNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		s.logger.Error(logging.WithFlightID(r.Context(), id), "Get flight", err)
		writeError(w, http.StatusInternalServerError, "flight log unavailable")
	default:
		writeJSON(w, http.StatusOK, rec)
	}
}
