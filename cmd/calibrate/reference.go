package main

import (
	"fmt"
	"os"

	"github.com/gocarina/gocsv"

	"github.com/ambleworks/crowd/telemetry"
)

// LoadReferenceStats reads a stats.csv from a previous run and derives
// the target walking-speed distribution from it. Windows are weighted by
// pedestrian count; windows without pedestrians carry no speed signal
// and are skipped.
func LoadReferenceStats(path string) (float64, float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("opening reference stats: %w", err)
	}
	defer f.Close()

	var rows []*telemetry.WindowStats
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return 0, 0, fmt.Errorf("parsing reference stats: %w", err)
	}

	var wsum, meanSum, stdSum float64
	for _, row := range rows {
		if row.Pedestrians == 0 {
			continue
		}
		w := float64(row.Pedestrians)
		wsum += w
		meanSum += w * row.SpeedMean
		stdSum += w * row.SpeedStd
	}
	if wsum == 0 {
		return 0, 0, fmt.Errorf("reference stats %s: no windows with pedestrians", path)
	}
	return meanSum / wsum, stdSum / wsum, nil
}
