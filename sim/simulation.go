package sim

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ambleworks/crowd/components"
	"github.com/ambleworks/crowd/config"
	"github.com/ambleworks/crowd/telemetry"
)

// Options configures a simulation run.
type Options struct {
	Seed           int64
	LogStats       bool
	StatsWindowSec float64 // 0 = use config
	OutputDir      string  // empty = CSV output disabled
	TracePath      string  // empty = pose trace disabled
	SnapshotDir    string  // empty = snapshots disabled
	StepsPerUpdate int
}

// Simulation drives a scene tick by tick and wires its event stream into
// telemetry. It is not safe for concurrent use; feed commands are applied
// between ticks by the owning loop.
type Simulation struct {
	scene *Scene
	opts  Options

	collector *telemetry.Collector
	journeys  *telemetry.JourneyTracker
	perf      *telemetry.PerfCollector
	output    *telemetry.OutputManager
	trace     *telemetry.TraceWriter

	statsCallbacks []func(telemetry.WindowStats)

	lastSanitized int64
	paused        bool
	stepOnce      bool
}

// NewSimulation wraps a populated scene with telemetry wiring.
func NewSimulation(scene *Scene, opts Options) (*Simulation, error) {
	cfg := config.Cfg()

	windowSec := opts.StatsWindowSec
	if windowSec <= 0 {
		windowSec = cfg.Telemetry.StatsWindowSec
	}

	s := &Simulation{
		scene:     scene,
		opts:      opts,
		collector: telemetry.NewCollector(windowSec, scene.Timestep()),
		journeys:  telemetry.NewJourneyTracker(),
		perf:      telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
	}
	scene.SetPerfCollector(s.perf)

	for _, a := range scene.Agents() {
		ag := scene.Agent(a)
		s.journeys.Register(ag.Serial, ag.Type, scene.Tick())
	}

	output, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("output manager: %w", err)
	}
	s.output = output
	if err := s.output.WriteConfig(cfg); err != nil {
		s.output.Close()
		return nil, fmt.Errorf("writing config snapshot: %w", err)
	}

	if opts.TracePath != "" {
		trace, err := telemetry.NewTraceWriter(opts.TracePath, int64(cfg.Telemetry.TraceEvery))
		if err != nil {
			s.output.Close()
			return nil, fmt.Errorf("trace writer: %w", err)
		}
		s.trace = trace
	}

	scene.Subscribe(s.onEvent)
	return s, nil
}

// Scene returns the underlying scene.
func (s *Simulation) Scene() *Scene { return s.scene }

// AddStatsCallback registers a function invoked with every flushed window.
// Callbacks run on the stepping goroutine in registration order.
func (s *Simulation) AddStatsCallback(fn func(telemetry.WindowStats)) {
	s.statsCallbacks = append(s.statsCallbacks, fn)
}

// Paused reports whether stepping is suspended.
func (s *Simulation) Paused() bool { return s.paused }

// Pause suspends stepping until Resume.
func (s *Simulation) Pause() { s.paused = true }

// Resume re-enables stepping.
func (s *Simulation) Resume() { s.paused = false }

// TogglePause flips the paused flag.
func (s *Simulation) TogglePause() { s.paused = !s.paused }

// StepOnce queues a single tick while paused.
func (s *Simulation) StepOnce() { s.stepOnce = true }

// StepsPerUpdate reports how many ticks each Update call runs.
func (s *Simulation) StepsPerUpdate() int {
	if s.opts.StepsPerUpdate < 1 {
		return 1
	}
	return s.opts.StepsPerUpdate
}

// SetStepsPerUpdate adjusts the ticks per Update call, minimum one.
func (s *Simulation) SetStepsPerUpdate(n int) {
	if n < 1 {
		n = 1
	}
	s.opts.StepsPerUpdate = n
}

// onEvent feeds scene events into the window and journey counters.
func (s *Simulation) onEvent(ev Event) {
	switch ev.Type {
	case EventState:
		s.collector.RecordStateChange()
		s.journeys.RecordStateChange(ev.Serial)

		switch ev.NewState {
		case components.StateTalking, components.StateTellStory,
			components.StateGroupTalking, components.StateTalkingAndWalking:
			s.collector.RecordConversation()
			s.journeys.RecordConversation(ev.Serial)
		case components.StateRequestingService:
			s.collector.RecordServiceRequest()
			s.journeys.RecordServiceRequested(ev.Serial)
		case components.StateReceivingService:
			s.journeys.RecordServiceReceived(ev.Serial)
		}
		if ev.OldState == components.StateProvidingService {
			s.collector.RecordServiceCompleted()
			s.journeys.RecordServiceProvided(ev.Serial)
		}

		if s.output != nil {
			err := s.output.WriteEvent(telemetry.StateEventCSV{
				Tick:    ev.Tick,
				TimeSec: ev.Time,
				Serial:  ev.Serial,
				From:    ev.OldState.String(),
				To:      ev.NewState.String(),
			})
			if err != nil {
				slog.Error("failed to write event", "error", err)
			}
		}

	case EventDestination:
		s.collector.RecordArrival()
		s.journeys.RecordArrival(ev.Serial)

	case EventAgentAdded:
		s.journeys.Register(ev.Serial, ev.AgentType, ev.Tick)
	}
}

// Step advances the simulation one tick and runs the telemetry phase.
func (s *Simulation) Step() {
	s.perf.StartTick()
	s.scene.Step()

	s.perf.StartPhase(telemetry.PhaseTelemetry)
	s.recordTick()
	s.perf.EndTick()
}

// Update advances paused-aware by the configured steps per call. The viewer
// calls this once per frame.
func (s *Simulation) Update() {
	if s.paused {
		if !s.stepOnce {
			return
		}
		s.stepOnce = false
		s.Step()
		return
	}

	steps := s.opts.StepsPerUpdate
	if steps < 1 {
		steps = 1
	}
	for i := 0; i < steps; i++ {
		s.Step()
	}
}

// RecordFrame forwards frame timing from the viewer loop.
func (s *Simulation) RecordFrame() { s.perf.RecordFrame() }

// recordTick accumulates per-tick telemetry and flushes stats windows.
func (s *Simulation) recordTick() {
	h := s.scene.Timestep()
	for _, e := range s.scene.Agents() {
		a := s.scene.Agent(e)
		s.journeys.RecordMovement(a.Serial, a.Kin().Speed(), h)
	}

	tick := s.scene.Tick()

	if s.trace != nil && s.trace.ShouldSample(tick) {
		if err := s.trace.WriteFrame(s.buildTraceFrame()); err != nil {
			slog.Error("failed to write trace frame", "error", err)
		}
	}

	if !s.collector.ShouldFlush(tick) {
		return
	}

	sanitized := s.scene.SanitizedForces()
	delta := int(sanitized - s.lastSanitized)
	s.lastSanitized = sanitized

	stats := s.collector.Flush(tick, s.sampleAgents(), delta)
	perfStats := s.perf.Stats()

	for _, fn := range s.statsCallbacks {
		fn(stats)
	}

	if s.opts.LogStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	if s.output != nil {
		if err := s.output.WriteStats(stats); err != nil {
			slog.Error("failed to write stats", "error", err)
		}
		if err := s.output.WritePerf(perfStats, stats.WindowEndTick); err != nil {
			slog.Error("failed to write perf", "error", err)
		}
	}
}

// sampleAgents snapshots every agent for the window flush.
func (s *Simulation) sampleAgents() []telemetry.AgentObs {
	entities := s.scene.Agents()
	obs := make([]telemetry.AgentObs, 0, len(entities))
	for _, e := range entities {
		a := s.scene.Agent(e)
		obs = append(obs, telemetry.AgentObs{
			Serial: a.Serial,
			Type:   a.Type,
			State:  a.SM.State(),
			Speed:  a.Kin().Speed(),
		})
	}
	return obs
}

// buildTraceFrame snapshots every agent pose for the trace stream.
func (s *Simulation) buildTraceFrame() telemetry.TraceFrame {
	entities := s.scene.Agents()
	frame := telemetry.TraceFrame{
		Tick:   s.scene.Tick(),
		Time:   s.scene.Now(),
		Agents: make([]telemetry.TracePose, 0, len(entities)),
	}
	for _, e := range entities {
		a := s.scene.Agent(e)
		k := a.Kin()
		frame.Agents = append(frame.Agents, telemetry.TracePose{
			Serial: a.Serial,
			State:  a.SM.State().String(),
			X:      k.Pos.X,
			Y:      k.Pos.Y,
			VX:     k.Vel.X,
			VY:     k.Vel.Y,
			Dir:    k.Dir,
		})
	}
	return frame
}

// SaveSnapshot dumps the scene state into the configured snapshot directory.
// No-op when no directory was configured.
func (s *Simulation) SaveSnapshot() {
	if s.opts.SnapshotDir == "" {
		return
	}
	path, err := WriteSnapshot(BuildSnapshot(s.scene), s.opts.SnapshotDir)
	if err != nil {
		slog.Error("failed to save snapshot", "error", err)
		return
	}
	slog.Info("snapshot saved", "path", path, "tick", s.scene.Tick())
}

// Run steps headless until ctx is cancelled or maxTicks is reached
// (maxTicks <= 0 runs until cancelled).
func (s *Simulation) Run(ctx context.Context, maxTicks int64) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		s.Step()

		if maxTicks > 0 && s.scene.Tick() >= maxTicks {
			slog.Info("max ticks reached", "tick", s.scene.Tick())
			return nil
		}
	}
}

// Close writes end-of-run journey stats and releases output files.
func (s *Simulation) Close() error {
	var firstErr error

	if s.output != nil {
		tick := s.scene.Tick()
		h := s.scene.Timestep()
		rows := make([]telemetry.JourneyCSV, 0, s.journeys.Count())
		for _, js := range s.journeys.All() {
			rows = append(rows, js.ToCSV(tick, h))
		}
		if err := s.output.WriteJourneys(rows); err != nil {
			firstErr = err
		}
		if err := s.output.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if s.trace != nil {
		if err := s.trace.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
