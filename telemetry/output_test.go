package telemetry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gocarina/gocsv"
)

func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil {
		t.Fatalf("NewOutputManager(\"\"): %v", err)
	}
	if om != nil {
		t.Fatal("empty dir must disable output")
	}
	if err := om.WriteStats(WindowStats{}); err != nil {
		t.Errorf("WriteStats on nil manager = %v, want nil", err)
	}
	if err := om.WriteJourneys([]JourneyCSV{{}}); err != nil {
		t.Errorf("WriteJourneys on nil manager = %v, want nil", err)
	}
	if om.Dir() != "" {
		t.Errorf("Dir on nil manager = %q, want empty", om.Dir())
	}
	if err := om.Close(); err != nil {
		t.Errorf("Close on nil manager = %v, want nil", err)
	}
}

func TestOutputManagerStatsCSV(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("NewOutputManager: %v", err)
	}

	w1 := WindowStats{
		WindowEndTick: 100, SimTimeSec: 5,
		Pedestrians: 12, Robots: 1,
		Locomotion: 8, Social: 2, Idle: 2,
		StateChanges: 7, Arrivals: 3,
		SpeedMean: 1.21, SpeedMax: 1.8,
	}
	w2 := WindowStats{
		WindowEndTick: 200, SimTimeSec: 10,
		Pedestrians: 12, Robots: 1,
		Arrivals: 5, SpeedMean: 1.05, SpeedMax: 1.6,
	}
	if err := om.WriteStats(w1); err != nil {
		t.Fatalf("WriteStats: %v", err)
	}
	if err := om.WriteStats(w2); err != nil {
		t.Fatalf("WriteStats: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "stats.csv"))
	if err != nil {
		t.Fatalf("opening stats.csv: %v", err)
	}
	defer f.Close()

	var rows []WindowStats
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		t.Fatalf("unmarshal stats.csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("row count = %d, want 2 with a single header", len(rows))
	}
	if rows[0].WindowEndTick != 100 || rows[1].WindowEndTick != 200 {
		t.Errorf("window ends = %d, %d, want 100, 200",
			rows[0].WindowEndTick, rows[1].WindowEndTick)
	}
	if rows[0].Pedestrians != 12 || rows[0].Arrivals != 3 {
		t.Errorf("first row = %d pedestrians, %d arrivals, want 12, 3",
			rows[0].Pedestrians, rows[0].Arrivals)
	}
	if rows[1].SpeedMean != 1.05 || rows[1].SpeedMax != 1.6 {
		t.Errorf("second row speeds = mean %v max %v, want 1.05, 1.6",
			rows[1].SpeedMean, rows[1].SpeedMax)
	}
}
