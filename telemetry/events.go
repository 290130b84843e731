// Package telemetry aggregates run statistics, per-agent journeys, timing
// data, and pose traces, and writes them as experiment output.
package telemetry

// StateEventCSV is one row of the state transition log.
type StateEventCSV struct {
	Tick    int64   `csv:"tick"`
	TimeSec float64 `csv:"time"`
	Serial  int32   `csv:"serial"`
	From    string  `csv:"from"`
	To      string  `csv:"to"`
}
