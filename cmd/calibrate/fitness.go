package main

import (
	"math"
	"sync"

	"github.com/ambleworks/crowd/config"
	"github.com/ambleworks/crowd/scenario"
	"github.com/ambleworks/crowd/sim"
	"github.com/ambleworks/crowd/telemetry"
)

// FitnessEvaluator runs headless simulations and scores how closely the
// emergent crowd matches the configured walking-speed distribution.
type FitnessEvaluator struct {
	params      *ParamVector
	maxTicks    int64
	seeds       []int64
	layout      *scenario.Scenario
	statsWindow float64

	targetMean float64
	targetStd  float64

	mu          sync.Mutex
	bestFitness float64
	lastSpeed   float64 // mean simulated speed from the most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator. The target distribution
// comes from the base config's speeds section.
func NewFitnessEvaluator(params *ParamVector, maxTicks int64, seeds []int64, baseCfg *config.Config, layout *scenario.Scenario) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		maxTicks:    maxTicks,
		seeds:       seeds,
		layout:      layout,
		statsWindow: 10.0, // 10 seconds per window
		targetMean:  baseCfg.Speeds.WalkMean,
		targetStd:   baseCfg.Speeds.WalkStddev,
		bestFitness: math.Inf(1),
	}
}

// SetTarget overrides the target speed distribution, e.g. with moments
// derived from a recorded reference run. The spread floors at 0.05 m/s
// so the normalized error terms stay finite.
func (fe *FitnessEvaluator) SetTarget(mean, std float64) {
	fe.targetMean = mean
	fe.targetStd = math.Max(std, 0.05)
}

// LastSpeed returns the mean simulated walking speed from the most
// recent evaluation.
func (fe *FitnessEvaluator) LastSpeed() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastSpeed
}

// Scoring weights. Speed moments dominate; the sanitized-force rate
// punishes parameter sets that blow up numerically, and the flow term
// punishes crowds that jam instead of reaching their destinations.
const (
	weightSpeed     = 1.0
	weightSpread    = 0.5
	weightFlow      = 0.5
	weightSanitized = 2.0

	warmupWindows  = 2 // windows skipped before scoring
	minPedestrians = 3 // windows with fewer walkers carry no signal

	penaltyNoData = 100.0
)

// runResult holds the stats windows from a single simulation run.
type runResult struct {
	windows []telemetry.WindowStats
}

// Evaluate computes fitness for a parameter vector (lower = better,
// zero = perfect match). The simulation reads the process-global
// config, so seeds run sequentially and each evaluation rewrites the
// calibrated fields in place.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	fe.params.ApplyToConfig(config.Cfg(), x)

	var totalFitness, totalSpeed float64
	for _, seed := range fe.seeds {
		result, err := fe.runSimulation(seed)
		if err != nil {
			totalFitness += penaltyNoData
			continue
		}
		fitness, speedMean := fe.score(result.windows)
		totalFitness += fitness
		totalSpeed += speedMean
	}

	n := float64(len(fe.seeds))
	avgFitness := totalFitness / n

	fe.mu.Lock()
	if avgFitness < fe.bestFitness {
		fe.bestFitness = avgFitness
	}
	fe.lastSpeed = totalSpeed / n
	fe.mu.Unlock()

	return avgFitness
}

// runSimulation executes a single headless run to the tick limit,
// collecting window stats via the callback.
func (fe *FitnessEvaluator) runSimulation(seed int64) (*runResult, error) {
	scene := sim.NewScene(seed)
	if err := sim.Populate(scene, fe.layout); err != nil {
		return nil, err
	}
	simulation, err := sim.NewSimulation(scene, sim.Options{
		Seed:           seed,
		StatsWindowSec: fe.statsWindow,
	})
	if err != nil {
		return nil, err
	}

	result := &runResult{}
	simulation.AddStatsCallback(func(ws telemetry.WindowStats) {
		result.windows = append(result.windows, ws)
	})

	for scene.Tick() < fe.maxTicks {
		simulation.Step()
	}
	if err := simulation.Close(); err != nil {
		return nil, err
	}
	return result, nil
}

// score turns a run's stats windows into a scalar error and reports the
// mean simulated speed for progress display.
func (fe *FitnessEvaluator) score(windows []telemetry.WindowStats) (fitness, speedMean float64) {
	if len(windows) <= warmupWindows {
		return penaltyNoData, 0
	}

	var speedErr, spreadErr, flowErr, sanitizedErr float64
	var speedSum float64
	var count int

	for _, w := range windows[warmupWindows:] {
		if w.Pedestrians < minPedestrians {
			continue
		}
		count++
		speedSum += w.SpeedMean

		dMean := (w.SpeedMean - fe.targetMean) / fe.targetStd
		speedErr += dMean * dMean

		dStd := (w.SpeedStd - fe.targetStd) / fe.targetStd
		spreadErr += dStd * dStd

		// Arrivals per pedestrian per window: zero means the crowd jammed.
		arrivalRate := float64(w.Arrivals) / float64(w.Pedestrians)
		flowErr += math.Exp(-arrivalRate)

		sanitizedErr += float64(w.SanitizedForces) / float64(w.Pedestrians)
	}

	if count == 0 {
		return penaltyNoData, 0
	}

	n := float64(count)
	fitness = (weightSpeed*speedErr +
		weightSpread*spreadErr +
		weightFlow*flowErr +
		weightSanitized*sanitizedErr) / n
	return fitness, speedSum / n
}
