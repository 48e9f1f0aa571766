package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/opd-ai/go-orbit/pkg/config"
	"github.com/opd-ai/go-orbit/pkg/engine"
	"github.com/opd-ai/go-orbit/pkg/logging"
	"github.com/opd-ai/go-orbit/pkg/orbit"
	"github.com/opd-ai/go-orbit/pkg/server"
	"github.com/opd-ai/go-orbit/pkg/storage"
)

// maxResponseBody caps decoded responses.
const maxResponseBody = 4 << 20

// APIError is a non-2xx response from the flight server.
type APIError struct {
	StatusCode int
	Message    string
	Details    []string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
	if len(e.Details) > 0 {
		msg += " (" + strings.Join(e.Details, "; ") + ")"
	}
	return msg
}

// MissionClient calls the flight server REST API.
type MissionClient struct {
	baseURL string
	http    *http.Client
	breaker *Breaker
	logger  *logging.Logger
}

// New creates a client for cfg.ServerURL.
func New(cfg config.ClientConfig, logger *logging.Logger) (*MissionClient, error) {
	u, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", cfg.ServerURL)
	}
	if logger == nil {
		logger = logging.NewLogger()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MissionClient{
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    &http.Client{Timeout: timeout},
		breaker: NewBreaker(cfg, logger),
		logger:  logger.Component("client"),
	}, nil
}

// Breaker exposes the circuit breaker for status display.
func (c *MissionClient) Breaker() *Breaker {
	return c.breaker
}

// Telemetry fetches the current flight snapshot.
func (c *MissionClient) Telemetry(ctx context.Context) (engine.Telemetry, error) {
	var tel engine.Telemetry
	err := c.call(ctx, http.MethodGet, "/api/telemetry", nil, &tel)
	return tel, err
}

// Trajectory fetches the projected path.
func (c *MissionClient) Trajectory(ctx context.Context) (orbit.Trajectory, error) {
	var traj orbit.Trajectory
	err := c.call(ctx, http.MethodGet, "/api/trajectory", nil, &traj)
	return traj, err
}

// SubmitScript loads an autopilot script and returns the queued steps. A
// rejected script yields an *APIError whose Details list each bad line.
func (c *MissionClient) SubmitScript(ctx context.Context, script string) (server.ScriptResponse, error) {
	var resp server.ScriptResponse
	err := c.call(ctx, http.MethodPost, "/api/autopilot/script", server.ScriptRequest{Script: script}, &resp)
	return resp, err
}

// StopAutopilot aborts the running script.
func (c *MissionClient) StopAutopilot(ctx context.Context) (engine.Telemetry, error) {
	var tel engine.Telemetry
	err := c.call(ctx, http.MethodPost, "/api/autopilot/stop", nil, &tel)
	return tel, err
}

// Control sends ignite, cut or stage.
func (c *MissionClient) Control(ctx context.Context, action string) (engine.Telemetry, error) {
	switch action {
	case "ignite", "cut", "stage":
	default:
		return engine.Telemetry{}, fmt.Errorf("unknown control action %q", action)
	}
	var tel engine.Telemetry
	err := c.call(ctx, http.MethodPost, "/api/controls/"+action, nil, &tel)
	return tel, err
}

// SetThrottle sets the manual throttle.
func (c *MissionClient) SetThrottle(ctx context.Context, value float64) (engine.Telemetry, error) {
	var tel engine.Telemetry
	err := c.call(ctx, http.MethodPut, "/api/controls/throttle", server.ThrottleRequest{Value: value}, &tel)
	return tel, err
}

// SetTurn sets the manual turn input.
func (c *MissionClient) SetTurn(ctx context.Context, input float64) (engine.Telemetry, error) {
	var tel engine.Telemetry
	err := c.call(ctx, http.MethodPut, "/api/controls/turn", server.TurnRequest{Input: input}, &tel)
	return tel, err
}

// SetTimeWarp requests a warp factor and returns the one applied.
func (c *MissionClient) SetTimeWarp(ctx context.Context, factor float64) (float64, error) {
	var resp server.WarpResponse
	err := c.call(ctx, http.MethodPut, "/api/controls/warp", server.WarpRequest{Factor: factor}, &resp)
	return resp.Factor, err
}

// Restart puts a new rocket on the pad and returns its flight ID.
func (c *MissionClient) Restart(ctx context.Context) (string, error) {
	var resp server.RestartResponse
	err := c.call(ctx, http.MethodPost, "/api/simulation/restart", nil, &resp)
	return resp.FlightID, err
}

// Flights lists recorded flights, newest first.
func (c *MissionClient) Flights(ctx context.Context, limit int) ([]storage.FlightRecord, error) {
	path := "/api/flights"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var flights []storage.FlightRecord
	err := c.call(ctx, http.MethodGet, path, nil, &flights)
	return flights, err
}

// Flight fetches one recorded flight.
func (c *MissionClient) Flight(ctx context.Context, id string) (storage.FlightRecord, error) {
	var rec storage.FlightRecord
	err := c.call(ctx, http.MethodGet, "/api/flights/"+url.PathEscape(id), nil, &rec)
	return rec, err
}

// call performs one API request through the breaker. GET and PUT are
// retried; POST is sent once since controls are not idempotent.
func (c *MissionClient) call(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = data
	}

	op := func(ctx context.Context) error {
		return c.do(ctx, method, path, payload, out)
	}
	if method == http.MethodPost {
		return c.breaker.Execute(ctx, op)
	}
	return c.breaker.ExecuteWithRetry(ctx, op)
}

func (c *MissionClient) do(ctx context.Context, method, path string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := logging.GetCorrelationID(ctx); id != "" {
		req.Header.Set(server.CorrelationHeader, id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	reader := io.LimitReader(resp.Body, maxResponseBody)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var errBody server.ErrorResponse
		if json.NewDecoder(reader).Decode(&errBody) == nil && errBody.Error != "" {
			apiErr.Message = errBody.Error
			apiErr.Details = errBody.Details
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(reader).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}
