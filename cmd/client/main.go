// cmd/client/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/opd-ai/go-orbit/pkg/client"
	"github.com/opd-ai/go-orbit/pkg/config"
	"github.com/opd-ai/go-orbit/pkg/logging"
	"github.com/opd-ai/go-orbit/pkg/orbit"
	"github.com/opd-ai/go-orbit/pkg/physics"
	"github.com/opd-ai/go-orbit/pkg/render"
	"github.com/opd-ai/go-orbit/pkg/server"
)

// trajectoryRefresh bounds how often -watch refetches the projected path.
const trajectoryRefresh = time.Second

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	serverURL := flag.String("server", "", "Server URL (overrides config)")
	scriptFile := flag.String("script", "", "Load an autopilot script from this file")
	scriptText := flag.String("e", "", "Load an autopilot script given inline; ';' separates lines")
	stopScript := flag.Bool("stop", false, "Stop the running autopilot script")
	action := flag.String("action", "", "Flight action: ignite, cut, stage or restart")
	throttle := flag.Float64("throttle", -1, "Set the throttle in [0, 1]")
	warp := flag.Float64("warp", 0, "Set the time warp factor")
	watch := flag.Bool("watch", false, "Stream telemetry and draw the flight")
	width := flag.Int("width", 80, "Map width in columns (-watch -plain)")
	height := flag.Int("height", 30, "Map height in rows (-watch -plain)")
	plain := flag.Bool("plain", false, "Draw -watch frames as plain text on stdout instead of full-screen")
	flights := flag.Bool("flights", false, "List recorded flights")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *serverURL != "" {
		cfg.Client.ServerURL = *serverURL
	}

	logger := logging.NewTextLogger(os.Stderr, logging.ParseLevel(cfg.LogLevel))
	mc, err := client.New(cfg.Client, logger)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithCorrelationID(ctx, logging.GenerateCorrelationID())

	did := false
	step := func(name string, fn func() error) {
		did = true
		if err := fn(); err != nil {
			log.Fatalf("%s: %v", name, err)
		}
	}

	if *stopScript {
		step("stop", func() error {
			_, err := mc.StopAutopilot(ctx)
			return err
		})
		fmt.Println("Autopilot stopped")
	}
	if *throttle >= 0 {
		step("throttle", func() error {
			tel, err := mc.SetThrottle(ctx, *throttle)
			if err == nil {
				fmt.Printf("Throttle %.0f%%\n", tel.Throttle*100)
			}
			return err
		})
	}
	if *warp > 0 {
		step("warp", func() error {
			applied, err := mc.SetTimeWarp(ctx, *warp)
			if err == nil {
				fmt.Printf("Time warp x%g\n", applied)
			}
			return err
		})
	}
	if *action != "" {
		step(*action, func() error { return runAction(ctx, mc, *action) })
	}
	if *scriptFile != "" || *scriptText != "" {
		step("script", func() error { return submitScript(ctx, mc, *scriptFile, *scriptText) })
	}
	if *flights {
		step("flights", func() error { return listFlights(ctx, mc) })
	}
	if *watch {
		step("watch", func() error {
			opts := render.TerminalOptions{
				Width:            *width,
				Height:           *height,
				PlanetRadius:     cfg.World.PlanetRadius,
				AtmosphereHeight: physics.AtmosphereLimitAltitude,
				ClearScreen:      true,
			}
			if *plain {
				return watchFlight(ctx, mc, render.NewTerminalRenderer(os.Stdout, opts))
			}
			return watchScreen(ctx, mc, opts)
		})
	}

	if !did {
		step("telemetry", func() error {
			tel, err := mc.Telemetry(ctx)
			if err != nil {
				return err
			}
			for _, line := range render.Panel(tel) {
				fmt.Println(line)
			}
			return nil
		})
	}
}

func runAction(ctx context.Context, mc *client.MissionClient, action string) error {
	if action == "restart" {
		id, err := mc.Restart(ctx)
		if err == nil {
			fmt.Printf("New flight %s\n", id)
		}
		return err
	}
	tel, err := mc.Control(ctx, action)
	if err == nil {
		fmt.Printf("%s: %s\n", action, tel.Status)
	}
	return err
}

func submitScript(ctx context.Context, mc *client.MissionClient, path, inline string) error {
	script := strings.ReplaceAll(inline, ";", "\n")
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		script = string(data)
	}

	resp, err := mc.SubmitScript(ctx, script)
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && len(apiErr.Details) > 0 {
		for _, d := range apiErr.Details {
			fmt.Fprintln(os.Stderr, "ERR:", d)
		}
	}
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d steps for flight %s\n", len(resp.Queue), resp.FlightID)
	for i, s := range resp.Queue {
		fmt.Printf("%3d  %s\n", i+1, s)
	}
	return nil
}

func listFlights(ctx context.Context, mc *client.MissionClient) error {
	records, err := mc.Flights(ctx, 20)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No flights recorded")
		return nil
	}
	fmt.Printf("%-36s  %-19s  %-11s  %10s  %10s  %s\n", "ID", "STARTED", "OUTCOME", "MAX ALT", "T+", "REASON")
	for _, r := range records {
		fmt.Printf("%-36s  %-19s  %-11s  %10s  %10s  %s\n",
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Outcome,
			render.Distance(r.MaxAltitude),
			render.MissionClock(r.MissionTime),
			r.Reason,
		)
	}
	return nil
}

// watchScreen takes over the terminal until the stream ends or the operator
// quits.
func watchScreen(ctx context.Context, mc *client.MissionClient, opts render.TerminalOptions) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	r, err := render.NewScreenRenderer(screen, opts)
	if err != nil {
		return err
	}
	defer r.Close()

	ctx, cancel := r.WatchKeys(ctx)
	defer cancel()
	return watchFlight(ctx, mc, r)
}

func watchFlight(ctx context.Context, mc *client.MissionClient, r render.Renderer) error {
	var traj orbit.Trajectory
	var fetched time.Time
	err := mc.Watch(ctx, func(msg server.StreamMessage) bool {
		if msg.Type != server.MessageTelemetry || msg.Data == nil {
			return true
		}
		if time.Since(fetched) >= trajectoryRefresh {
			if t, err := mc.Trajectory(ctx); err == nil {
				traj = t
			}
			fetched = time.Now()
		}
		if err := r.Render(*msg.Data, traj); err != nil {
			return false
		}
		return true
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
