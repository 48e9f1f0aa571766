// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/opd-ai/go-orbit/pkg/config"
	"github.com/opd-ai/go-orbit/pkg/engine"
	"github.com/opd-ai/go-orbit/pkg/logging"
	"github.com/opd-ai/go-orbit/pkg/metrics"
	"github.com/opd-ai/go-orbit/pkg/resource"
	"github.com/opd-ai/go-orbit/pkg/server"
	"github.com/opd-ai/go-orbit/pkg/storage"
)

const flushTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to configuration file (JSON, YAML or TOML)")
	createDefault := flag.String("default", "", "Write the default configuration to this path and exit")
	flag.Parse()

	ctx := context.Background()
	logger := logging.NewLogger()

	if *createDefault != "" {
		if err := config.SaveConfig(config.DefaultConfig(), *createDefault); err != nil {
			logger.Error(ctx, "Failed to create default configuration", err, "config_path", *createDefault)
			os.Exit(1)
		}
		logger.Info(ctx, "Created default configuration file", "config_path", *createDefault)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Error(ctx, "Failed to load configuration", err, "config_path", *configPath)
		os.Exit(1)
	}
	logger = logging.NewLoggerWithWriter(os.Stdout, logging.ParseLevel(cfg.LogLevel))

	if err := run(cfg, logger); err != nil {
		logger.Error(ctx, "Server stopped with error", err)
		os.Exit(1)
	}
}

func run(cfg *config.GameConfig, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	game, err := engine.NewGame(cfg, logger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder, err := metrics.NewRecorder(reg)
	if err != nil {
		return err
	}
	recorder.Subscribe(game.EventBus)

	opts := server.Options{
		Game:      game,
		Recorder:  recorder,
		Gatherer:  reg,
		Resources: resource.NewManager(cfg.Resources, logger),
		Logger:    logger,
	}

	if cfg.Storage.Enabled {
		store, err := storage.Open(cfg.Storage.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		flightLog := storage.NewFlightLog(store, cfg.Rocket.Name, logger)
		flightLog.Subscribe(game.EventBus)
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			defer cancel()
			if err := flightLog.Close(flushCtx); err != nil {
				logger.Error(flushCtx, "Flight log flush failed", err)
			}
		}()

		opts.Store = store
		opts.FlightLog = flightLog
		logger.Info(ctx, "Flight log enabled", "path", cfg.Storage.Path)
	}

	srv, err := server.New(cfg, opts)
	if err != nil {
		return err
	}

	logger.Info(ctx, "Starting orbit server",
		"address", cfg.Server.Address,
		"rocket", cfg.Rocket.Name,
		"tick_rate", cfg.Simulation.TickRate,
	)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info(context.Background(), "Server stopped")
	return nil
}
