package telemetry

import (
	"math"
	"testing"

	"github.com/ambleworks/crowd/components"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		p      float64
		want   float64
	}{
		{"empty slice", []float64{}, 0.5, 0},
		{"single element", []float64{5.0}, 0.5, 5.0},
		{"p0", []float64{1, 2, 3, 4, 5}, 0.0, 1.0},
		{"p100", []float64{1, 2, 3, 4, 5}, 1.0, 5.0},
		{"p50 odd", []float64{1, 2, 3, 4, 5}, 0.5, 3.0},
		{"p50 even", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"p10", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.1, 1.9},
		{"p90", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.9, 9.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentile(tt.sorted, tt.p)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("Percentile(%v, %v) = %v, want %v", tt.sorted, tt.p, got, tt.want)
			}
		})
	}
}

func TestComputeSpeedStats(t *testing.T) {
	values := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0}
	mean, std, p10, p50, p90, maxv := ComputeSpeedStats(values)

	if math.Abs(mean-0.55) > 0.001 {
		t.Errorf("mean = %v, want 0.55", mean)
	}
	if std <= 0 {
		t.Errorf("std = %v, want > 0", std)
	}
	if math.Abs(p10-0.19) > 0.01 {
		t.Errorf("p10 = %v, want ~0.19", p10)
	}
	if math.Abs(p50-0.55) > 0.01 {
		t.Errorf("p50 = %v, want ~0.55", p50)
	}
	if math.Abs(p90-0.91) > 0.01 {
		t.Errorf("p90 = %v, want ~0.91", p90)
	}
	if maxv != 1.0 {
		t.Errorf("max = %v, want 1.0", maxv)
	}
}

func TestComputeSpeedStatsEmpty(t *testing.T) {
	mean, std, p10, p50, p90, maxv := ComputeSpeedStats(nil)

	if mean != 0 || std != 0 || p10 != 0 || p50 != 0 || p90 != 0 || maxv != 0 {
		t.Error("empty slice should return all zeros")
	}
}

func TestComputeSpeedStatsSingle(t *testing.T) {
	mean, std, _, _, _, maxv := ComputeSpeedStats([]float64{1.3})

	if mean != 1.3 || maxv != 1.3 {
		t.Errorf("single value: mean = %v, max = %v, want 1.3", mean, maxv)
	}
	if std != 0 {
		t.Errorf("single value: std = %v, want 0", std)
	}
}

func TestCollectorWindow(t *testing.T) {
	// 1s windows at 0.05s per tick = 20 ticks per window
	c := NewCollector(1.0, 0.05)

	if got := c.WindowDurationTicks(); got != 20 {
		t.Fatalf("WindowDurationTicks() = %d, want 20", got)
	}

	if c.ShouldFlush(19) {
		t.Error("should not flush before window elapses")
	}
	if !c.ShouldFlush(20) {
		t.Error("should flush once window elapses")
	}

	c.RecordStateChange()
	c.RecordStateChange()
	c.RecordArrival()
	c.RecordConversation()
	c.RecordServiceRequest()
	c.RecordServiceCompleted()

	obs := []AgentObs{
		{Serial: 0, Type: components.TypeAdult, State: components.StateWalking, Speed: 1.2},
		{Serial: 1, Type: components.TypeAdult, State: components.StateTalking, Speed: 0.0},
		{Serial: 2, Type: components.TypeElder, State: components.StateWaiting, Speed: 0.0},
		{Serial: 3, Type: components.TypeRobot, State: components.StateDriving, Speed: 1.6},
	}

	stats := c.Flush(20, obs, 3)

	if stats.WindowStartTick != 0 || stats.WindowEndTick != 20 {
		t.Errorf("window = [%d, %d], want [0, 20]", stats.WindowStartTick, stats.WindowEndTick)
	}
	if math.Abs(stats.SimTimeSec-1.0) > 1e-9 {
		t.Errorf("sim_time = %v, want 1.0", stats.SimTimeSec)
	}
	if stats.Pedestrians != 3 || stats.Robots != 1 {
		t.Errorf("population = %d peds, %d robots, want 3, 1", stats.Pedestrians, stats.Robots)
	}
	if stats.Locomotion != 2 || stats.Social != 1 || stats.Idle != 1 {
		t.Errorf("families = loco %d social %d idle %d, want 2, 1, 1",
			stats.Locomotion, stats.Social, stats.Idle)
	}
	if stats.StateChanges != 2 || stats.Arrivals != 1 || stats.Conversations != 1 {
		t.Errorf("events = %d changes, %d arrivals, %d conversations",
			stats.StateChanges, stats.Arrivals, stats.Conversations)
	}
	if stats.ServiceRequests != 1 || stats.ServicesCompleted != 1 {
		t.Errorf("service counters = %d requests, %d completed, want 1, 1",
			stats.ServiceRequests, stats.ServicesCompleted)
	}
	if stats.SanitizedForces != 3 {
		t.Errorf("sanitized = %d, want 3", stats.SanitizedForces)
	}
	// Robot speed must not enter the pedestrian distribution.
	if stats.SpeedMax != 1.2 {
		t.Errorf("speed_max = %v, want 1.2", stats.SpeedMax)
	}

	// Counters reset after flush.
	next := c.Flush(40, nil, 0)
	if next.StateChanges != 0 || next.Arrivals != 0 {
		t.Error("counters should reset after flush")
	}
	if next.WindowStartTick != 20 {
		t.Errorf("next window start = %d, want 20", next.WindowStartTick)
	}
}

func TestJourneyTracker(t *testing.T) {
	jt := NewJourneyTracker()
	jt.Register(7, components.TypeAdult, 0)
	jt.Register(8, components.TypeServiceRobot, 0)
	jt.Register(7, components.TypeAdult, 100) // duplicate register is a no-op

	if jt.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", jt.Count())
	}
	if jt.Get(7).SpawnTick != 0 {
		t.Error("duplicate Register must not overwrite")
	}

	jt.RecordArrival(7)
	jt.RecordArrival(7)
	jt.RecordStateChange(7)
	jt.RecordConversation(7)
	jt.RecordServiceRequested(7)
	jt.RecordServiceReceived(7)
	jt.RecordServiceProvided(8)
	jt.RecordMovement(7, 2.0, 0.05)
	jt.RecordMovement(7, 1.0, 0.05)
	jt.RecordArrival(99) // unknown serial is a no-op

	s := jt.Get(7)
	if s.Arrivals != 2 || s.StateChanges != 1 || s.Conversations != 1 {
		t.Errorf("counts = %d arrivals, %d changes, %d conversations",
			s.Arrivals, s.StateChanges, s.Conversations)
	}
	if math.Abs(s.Distance-0.15) > 1e-9 {
		t.Errorf("distance = %v, want 0.15", s.Distance)
	}
	if s.PeakSpeed != 2.0 {
		t.Errorf("peak speed = %v, want 2.0", s.PeakSpeed)
	}

	all := jt.All()
	if len(all) != 2 || all[0].Serial != 7 || all[1].Serial != 8 {
		t.Error("All() should preserve registration order")
	}

	row := s.ToCSV(200, 0.05) // 10s active
	if math.Abs(row.MeanSpeed-0.015) > 1e-9 {
		t.Errorf("mean speed = %v, want 0.015", row.MeanSpeed)
	}
	if row.Type != "adult" {
		t.Errorf("type = %q, want adult", row.Type)
	}
}
