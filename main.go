package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/ambleworks/crowd/config"
	"github.com/ambleworks/crowd/feed"
	"github.com/ambleworks/crowd/recorder"
	"github.com/ambleworks/crowd/scenario"
	"github.com/ambleworks/crowd/sim"
	"github.com/ambleworks/crowd/telemetry"
	"github.com/ambleworks/crowd/viewer"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	scenarioPath := flag.String("scenario", "", "Path to scenario.yaml (empty = built-in hall)")
	headless := flag.Bool("headless", false, "Run without graphics")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	statsWindow := flag.Float64("stats-window", 0, "Stats window size in seconds (0 = use config)")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for snapshot files")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	tracePath := flag.String("trace", "", "Path for the compressed pose trace")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	maxTicks := flag.Int64("max-ticks", 0, "Stop after N ticks (0 = unlimited)")
	stepsPerUpdate := flag.Int("steps-per-update", 1, "Simulation ticks per update call (higher = faster headless runs)")
	serveFeed := flag.Bool("feed", false, "Serve the live WebSocket feed (overrides config)")
	record := flag.Bool("record", false, "Register the run in the SQLite run registry (overrides config)")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()
	if *serveFeed {
		cfg.Feed.Enabled = true
	}
	if *record {
		cfg.Recorder.Enabled = true
	}

	// Set up seed
	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	sc := scenario.Default()
	if *scenarioPath != "" {
		loaded, err := scenario.Load(*scenarioPath)
		if err != nil {
			slog.Error("failed to load scenario", "error", err)
			os.Exit(1)
		}
		sc = loaded
	}

	scene := sim.NewScene(rngSeed)
	if err := sim.Populate(scene, sc); err != nil {
		slog.Error("failed to populate scene", "error", err)
		os.Exit(1)
	}

	simulation, err := sim.NewSimulation(scene, sim.Options{
		Seed:           rngSeed,
		LogStats:       *logStats,
		StatsWindowSec: *statsWindow,
		OutputDir:      *outputDir,
		TracePath:      *tracePath,
		SnapshotDir:    *snapshotDir,
		StepsPerUpdate: *stepsPerUpdate,
	})
	if err != nil {
		slog.Error("failed to build simulation", "error", err)
		os.Exit(1)
	}
	defer simulation.Close()

	var registry *recorder.Registry
	var runID string
	var lastWindow telemetry.WindowStats
	var haveWindow bool
	if cfg.Recorder.Enabled {
		registry, err = recorder.Open(cfg.Recorder.Path)
		if err != nil {
			slog.Error("failed to open run registry", "error", err)
			os.Exit(1)
		}
		configYAML, err := cfg.YAML()
		if err != nil {
			slog.Error("failed to serialize config", "error", err)
			os.Exit(1)
		}
		runID, err = registry.BeginRun(recorder.RunMeta{
			Seed:       rngSeed,
			Scenario:   sc.Name,
			Agents:     len(scene.Agents()),
			ConfigYAML: string(configYAML),
		})
		if err != nil {
			slog.Error("failed to register run", "error", err)
			os.Exit(1)
		}
		slog.Info("run registered", "run", runID, "registry", cfg.Recorder.Path)
		simulation.AddStatsCallback(func(ws telemetry.WindowStats) {
			lastWindow = ws
			haveWindow = true
		})
	}

	var feedSrv *feed.Server
	if cfg.Feed.Enabled {
		feedSrv = feed.NewServer(feed.BuildWelcome(scene))
		if err := feedSrv.Start(cfg.Feed.Addr); err != nil {
			slog.Error("failed to start feed", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("starting simulation",
		"seed", rngSeed,
		"scenario", sc.Name,
		"agents", len(scene.Agents()),
		"headless", *headless,
	)

	if *headless {
		runHeadless(simulation, feedSrv, *maxTicks)
	} else {
		runWindow(simulation, feedSrv, cfg)
	}

	simulation.SaveSnapshot()

	if feedSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := feedSrv.Shutdown(ctx); err != nil {
			slog.Error("feed shutdown", "error", err)
		}
		cancel()
	}

	if registry != nil {
		var final *telemetry.WindowStats
		if haveWindow {
			final = &lastWindow
		}
		if err := registry.EndRun(runID, scene.Tick(), scene.Now(), final); err != nil {
			slog.Error("failed to finalize run", "error", err)
		}
		if err := registry.Close(); err != nil {
			slog.Error("failed to close run registry", "error", err)
		}
	}
}

// runHeadless steps as fast as the CPU allows until interrupted or the
// tick limit is reached.
func runHeadless(s *sim.Simulation, feedSrv *feed.Server, maxTicks int64) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if feedSrv == nil {
		if err := s.Run(ctx, maxTicks); err != nil {
			slog.Error("simulation run", "error", err)
		}
		return
	}

	scene := s.Scene()
	for {
		select {
		case <-ctx.Done():
			slog.Info("interrupted", "tick", scene.Tick())
			return
		default:
		}

		drainCommands(s, feedSrv)
		s.Update()
		if feedSrv.ClientCount() > 0 {
			feedSrv.Publish(feed.BuildFrame(scene, s.Paused()))
		}
		if s.Paused() {
			// Nothing advances while paused; avoid spinning the CPU.
			time.Sleep(20 * time.Millisecond)
		}
		if maxTicks > 0 && scene.Tick() >= maxTicks {
			slog.Info("max ticks reached", "tick", scene.Tick())
			return
		}
	}
}

// runWindow drives the raylib render loop.
func runWindow(s *sim.Simulation, feedSrv *feed.Server, cfg *config.Config) {
	rl.SetConfigFlags(rl.FlagWindowResizable)
	rl.InitWindow(int32(cfg.Viewer.Width), int32(cfg.Viewer.Height), "crowd")
	defer rl.CloseWindow()
	rl.SetTargetFPS(int32(cfg.Viewer.TargetFPS))

	v := viewer.New(s)
	for !rl.WindowShouldClose() {
		if feedSrv != nil {
			drainCommands(s, feedSrv)
		}
		v.Update()
		if feedSrv != nil && feedSrv.ClientCount() > 0 {
			feedSrv.Publish(feed.BuildFrame(s.Scene(), s.Paused()))
		}
		v.Draw()
	}
}

// drainCommands applies queued feed commands between ticks. The
// simulation is not concurrent-safe, so commands never touch it from
// the network goroutines.
func drainCommands(s *sim.Simulation, feedSrv *feed.Server) {
	for {
		select {
		case cmd := <-feedSrv.Commands():
			switch cmd {
			case feed.CmdPause:
				s.Pause()
			case feed.CmdResume:
				s.Resume()
			case feed.CmdStep:
				s.StepOnce()
			}
		default:
			return
		}
	}
}
