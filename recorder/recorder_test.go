package recorder_test

import (
	"path/filepath"
	"testing"

	"github.com/ambleworks/crowd/recorder"
	"github.com/ambleworks/crowd/telemetry"
)

func openTestRegistry(t *testing.T) *recorder.Registry {
	t.Helper()
	r, err := recorder.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRegistry_RunRoundTrip(t *testing.T) {
	r := openTestRegistry(t)

	id, err := r.BeginRun(recorder.RunMeta{
		Seed:       42,
		Scenario:   "airport",
		Agents:     120,
		ConfigYAML: "timestep: 0.05\n",
	})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if id == "" {
		t.Fatal("empty run id")
	}

	run, err := r.Run(id)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if run.Seed != 42 || run.Scenario != "airport" || run.Agents != 120 {
		t.Errorf("run = %+v", run)
	}
	if run.FinishedAt != nil {
		t.Error("run finished before EndRun")
	}

	final := &telemetry.WindowStats{WindowEndTick: 6000, SimTimeSec: 300, Pedestrians: 118, Robots: 2}
	if err := r.EndRun(id, 6000, 300, final); err != nil {
		t.Fatalf("end: %v", err)
	}

	run, err = r.Run(id)
	if err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if run.FinishedAt == nil {
		t.Fatal("FinishedAt not set")
	}
	if run.Ticks != 6000 || run.SimTime != 300 {
		t.Errorf("ticks = %d, sim_time = %v", run.Ticks, run.SimTime)
	}
	got, err := run.FinalStats()
	if err != nil {
		t.Fatalf("final stats: %v", err)
	}
	if got == nil || got.Pedestrians != 118 || got.Robots != 2 {
		t.Errorf("final stats = %+v", got)
	}
}

func TestRegistry_EndRunUnknownID(t *testing.T) {
	r := openTestRegistry(t)
	if err := r.EndRun("no-such-run", 1, 0.05, nil); err == nil {
		t.Fatal("expected error for unknown id")
	}
}

func TestRegistry_ListRuns(t *testing.T) {
	r := openTestRegistry(t)

	first, err := r.BeginRun(recorder.RunMeta{Seed: 1, Scenario: "a"})
	if err != nil {
		t.Fatalf("begin first: %v", err)
	}
	second, err := r.BeginRun(recorder.RunMeta{Seed: 2, Scenario: "b"})
	if err != nil {
		t.Fatalf("begin second: %v", err)
	}

	runs, err := r.ListRuns(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len = %d, want 2", len(runs))
	}
	seen := map[string]bool{runs[0].ID: true, runs[1].ID: true}
	if !seen[first] || !seen[second] {
		t.Errorf("runs = %v, want both %s and %s", seen, first, second)
	}

	runs, err = r.ListRuns(1)
	if err != nil {
		t.Fatalf("list limit: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("len = %d, want 1", len(runs))
	}
}
