package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/ambleworks/crowd/components"
)

// AgentObs is the per-agent sample handed to Flush at window end.
type AgentObs struct {
	Serial int32
	Type   components.AgentType
	State  components.StateID
	Speed  float64
}

// WindowStats holds aggregated statistics for a stats window.
type WindowStats struct {
	WindowStartTick int64   `csv:"-"`
	WindowEndTick   int64   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Population at window end
	Pedestrians int `csv:"pedestrians"`
	Robots      int `csv:"robots"`

	// State family occupancy at window end
	Idle       int `csv:"idle"`
	Locomotion int `csv:"locomotion"`
	Work       int `csv:"work"`
	Social     int `csv:"social"`
	Service    int `csv:"service"`

	// Events during the window
	StateChanges      int `csv:"state_changes"`
	Arrivals          int `csv:"arrivals"`
	Conversations     int `csv:"conversations"`
	ServiceRequests   int `csv:"service_requests"`
	ServicesCompleted int `csv:"services_completed"`
	SanitizedForces   int `csv:"sanitized_forces"`

	// Pedestrian speed distribution (sampled at window end)
	SpeedMean float64 `csv:"speed_mean"`
	SpeedStd  float64 `csv:"speed_std"`
	SpeedP10  float64 `csv:"speed_p10"`
	SpeedP50  float64 `csv:"speed_p50"`
	SpeedP90  float64 `csv:"speed_p90"`
	SpeedMax  float64 `csv:"speed_max"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeSpeedStats calculates the speed distribution from sampled values.
func ComputeSpeedStats(values []float64) (mean, std, p10, p50, p90, maxv float64) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	mean = stat.Mean(values, nil)
	if n > 1 {
		std = stat.StdDev(values, nil)
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	p10 = Percentile(sorted, 0.10)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)
	maxv = sorted[n-1]

	return mean, std, p10, p50, p90, maxv
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("window_start", s.WindowStartTick),
		slog.Int64("window_end", s.WindowEndTick),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("pedestrians", s.Pedestrians),
		slog.Int("robots", s.Robots),
		slog.Int("idle", s.Idle),
		slog.Int("locomotion", s.Locomotion),
		slog.Int("work", s.Work),
		slog.Int("social", s.Social),
		slog.Int("service", s.Service),
		slog.Int("state_changes", s.StateChanges),
		slog.Int("arrivals", s.Arrivals),
		slog.Int("conversations", s.Conversations),
		slog.Int("service_requests", s.ServiceRequests),
		slog.Int("services_completed", s.ServicesCompleted),
		slog.Int("sanitized_forces", s.SanitizedForces),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("speed_std", s.SpeedStd),
		slog.Float64("speed_p10", s.SpeedP10),
		slog.Float64("speed_p50", s.SpeedP50),
		slog.Float64("speed_p90", s.SpeedP90),
		slog.Float64("speed_max", s.SpeedMax),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"sim_time", s.SimTimeSec,
		"pedestrians", s.Pedestrians,
		"robots", s.Robots,
		"idle", s.Idle,
		"locomotion", s.Locomotion,
		"work", s.Work,
		"social", s.Social,
		"service", s.Service,
		"state_changes", s.StateChanges,
		"arrivals", s.Arrivals,
		"conversations", s.Conversations,
		"service_requests", s.ServiceRequests,
		"services_completed", s.ServicesCompleted,
		"sanitized_forces", s.SanitizedForces,
		"speed_mean", s.SpeedMean,
		"speed_std", s.SpeedStd,
		"speed_p10", s.SpeedP10,
		"speed_p50", s.SpeedP50,
		"speed_p90", s.SpeedP90,
		"speed_max", s.SpeedMax,
	)
}
