package telemetry

import "github.com/ambleworks/crowd/components"

// Collector accumulates events within stats windows and produces WindowStats.
type Collector struct {
	windowDurationSec   float64
	windowDurationTicks int64
	dt                  float64

	windowStartTick int64

	// Event counters for the current window
	stateChanges      int
	arrivals          int
	conversations     int
	serviceRequests   int
	servicesCompleted int
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per tick (used for tick-to-time conversion)
func NewCollector(windowDurationSec float64, dt float64) *Collector {
	ticksPerWindow := int64(windowDurationSec / dt)
	if ticksPerWindow < 1 {
		ticksPerWindow = 1
	}

	return &Collector{
		windowDurationSec:   windowDurationSec,
		windowDurationTicks: ticksPerWindow,
		dt:                  dt,
		windowStartTick:     0,
	}
}

// RecordStateChange records one behavioral state transition.
func (c *Collector) RecordStateChange() {
	c.stateChanges++
}

// RecordArrival records a completed destination.
func (c *Collector) RecordArrival() {
	c.arrivals++
}

// RecordConversation records a conversation being started.
func (c *Collector) RecordConversation() {
	c.conversations++
}

// RecordServiceRequest records a pedestrian requesting service.
func (c *Collector) RecordServiceRequest() {
	c.serviceRequests++
}

// RecordServiceCompleted records a robot finishing a service interaction.
func (c *Collector) RecordServiceCompleted() {
	c.servicesCompleted++
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int64) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Flush produces a WindowStats and resets counters for the next window.
// agents is a snapshot of every agent at window end; sanitizedForces is the
// number of invalid force results dropped during the window.
func (c *Collector) Flush(currentTick int64, agents []AgentObs, sanitizedForces int) WindowStats {
	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      float64(currentTick) * c.dt,

		StateChanges:      c.stateChanges,
		Arrivals:          c.arrivals,
		Conversations:     c.conversations,
		ServiceRequests:   c.serviceRequests,
		ServicesCompleted: c.servicesCompleted,
		SanitizedForces:   sanitizedForces,
	}

	speeds := make([]float64, 0, len(agents))
	for _, a := range agents {
		if a.Type.IsRobot() {
			stats.Robots++
		} else {
			stats.Pedestrians++
			speeds = append(speeds, a.Speed)
		}

		switch a.State.Family() {
		case components.FamilyLocomotion:
			stats.Locomotion++
		case components.FamilyWork:
			stats.Work++
		case components.FamilySocial:
			stats.Social++
		case components.FamilyService:
			stats.Service++
		default:
			stats.Idle++
		}
	}

	stats.SpeedMean, stats.SpeedStd, stats.SpeedP10, stats.SpeedP50,
		stats.SpeedP90, stats.SpeedMax = ComputeSpeedStats(speeds)

	// Reset for next window
	c.windowStartTick = currentTick
	c.stateChanges = 0
	c.arrivals = 0
	c.conversations = 0
	c.serviceRequests = 0
	c.servicesCompleted = 0

	return stats
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int64 {
	return c.windowDurationTicks
}
