// Package server exposes a running flight over HTTP: a REST control API, a
// websocket telemetry stream, Prometheus metrics and health probes.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opd-ai/go-orbit/pkg/config"
	"github.com/opd-ai/go-orbit/pkg/engine"
	"github.com/opd-ai/go-orbit/pkg/health"
	"github.com/opd-ai/go-orbit/pkg/logging"
	"github.com/opd-ai/go-orbit/pkg/metrics"
	"github.com/opd-ai/go-orbit/pkg/resource"
	"github.com/opd-ai/go-orbit/pkg/storage"
	"github.com/opd-ai/go-orbit/pkg/validation"
)

// minStaleness is the shortest tick age the readiness probe tolerates.
const minStaleness = time.Second

// Options carries the optional collaborators of a Server. Game is required.
type Options struct {
	Game      *engine.Game
	Store     *storage.Store
	FlightLog *storage.FlightLog
	Recorder  *metrics.Recorder
	Gatherer  prometheus.Gatherer
	Resources *resource.Manager
	Logger    *logging.Logger
}

// Server owns the HTTP surface of one game.
type Server struct {
	game      *engine.Game
	cfg       config.ServerConfig
	sim       config.SimulationConfig
	store     *storage.Store
	flightLog *storage.FlightLog
	recorder  *metrics.Recorder
	resources *resource.Manager
	health    *health.HealthChecker
	limiter   *validation.RateLimiter
	upgrader  websocket.Upgrader
	router    *mux.Router
	logger    *logging.Logger

	// ctx is cancelled on shutdown; telemetry streams watch it.
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	addr net.Addr
}

// New wires a server from configuration. Collectors default to a fresh
// registry when no Gatherer is supplied.
func New(cfg *config.GameConfig, opts Options) (*Server, error) {
	if opts.Game == nil {
		return nil, errors.New("server needs a game")
	}
	if cfg == nil {
		cfg = opts.Game.Config
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLogger()
	}

	gatherer := opts.Gatherer
	if opts.Recorder == nil {
		reg := prometheus.NewRegistry()
		rec, err := metrics.NewRecorder(reg)
		if err != nil {
			return nil, err
		}
		opts.Recorder = rec
		rec.Subscribe(opts.Game.EventBus)
		gatherer = reg
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		game:      opts.Game,
		cfg:       cfg.Server,
		sim:       cfg.Simulation,
		store:     opts.Store,
		flightLog: opts.FlightLog,
		recorder:  opts.Recorder,
		resources: opts.Resources,
		health:    health.NewHealthChecker(),
		limiter:   validation.NewRateLimiter(cfg.Server.ScriptRate, cfg.Server.ScriptBurst),
		logger:    logger.Component("server"),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}

	staleness := max(minStaleness, 10*cfg.Simulation.TickInterval())
	s.health.AddCheck(health.NewSimulationHealthCheck(s.game.IsRunning, s.game.LastTick, staleness))
	if s.store != nil {
		s.health.AddCheck(health.NewStorageHealthCheck(s.store))
	}
	if s.resources != nil {
		s.health.AddCheck(resource.NewHealthCheck(s.resources))
	}

	s.routes(gatherer)
	return s, nil
}

func (s *Server) routes(gatherer prometheus.Gatherer) {
	r := mux.NewRouter()
	r.Use(s.correlationMiddleware, s.corsMiddleware)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/telemetry", s.handleTelemetry).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/trajectory", s.handleTrajectory).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/autopilot/script", s.handleScript).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/autopilot/stop", s.handleStopScript).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/controls/{action:ignite|cut|stage}", s.handleControl).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/controls/throttle", s.handleThrottle).Methods(http.MethodPut, http.MethodOptions)
	api.HandleFunc("/controls/turn", s.handleTurn).Methods(http.MethodPut, http.MethodOptions)
	api.HandleFunc("/controls/warp", s.handleWarp).Methods(http.MethodPut, http.MethodOptions)
	api.HandleFunc("/simulation/restart", s.handleRestart).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/flights", s.handleFlights).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/flights/{id}", s.handleFlight).Methods(http.MethodGet, http.MethodOptions)

	r.HandleFunc("/ws/telemetry", s.handleStream).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/health", s.health.LivenessHandler).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.health.ReadinessHandler).Methods(http.MethodGet)

	s.router = r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the listening address once Run has bound it.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Run starts the tick loop, the telemetry observer and the HTTP listener,
// and blocks until ctx is cancelled or the listener fails. It then shuts
// everything down within the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Address, err)
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	if s.resources != nil {
		if err := s.resources.Start(); err != nil && !errors.Is(err, resource.ErrAlreadyRunning) {
			_ = ln.Close()
			return err
		}
	}

	httpServer := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return s.ctx },
	}

	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = s.game.Run(loopCtx, s.sim.TickInterval())
	}()
	go func() {
		defer wg.Done()
		s.observe(loopCtx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(ln)
	}()
	s.logger.Info(ctx, "Flight server listening", "address", ln.Addr().String())

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("serve: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.shutdown(shutdownCtx, httpServer)
	stopLoop()
	wg.Wait()
	return runErr
}

func (s *Server) shutdown(ctx context.Context, httpServer *http.Server) {
	s.logger.Info(ctx, "Shutting down flight server")
	if err := httpServer.Shutdown(ctx); err != nil {
		s.logger.Error(ctx, "HTTP shutdown", err)
	}
	s.Close()
	if s.resources != nil {
		if err := s.resources.Shutdown(ctx); err != nil {
			s.logger.Error(ctx, "Resource shutdown", err)
		}
	}
}

// Close cancels telemetry streams and stops the rate limiter.
func (s *Server) Close() {
	s.cancel()
	s.limiter.Close()
}

// observe feeds telemetry snapshots to the metrics recorder and flight log.
func (s *Server) observe(ctx context.Context) {
	interval := s.sim.TelemetryInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tel := s.game.Snapshot()
			s.recorder.ObserveTelemetry(tel)
			if s.flightLog != nil {
				s.flightLog.Observe(tel)
			}
		}
	}
}
