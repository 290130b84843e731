package telemetry

import "github.com/ambleworks/crowd/components"

// JourneyStats tracks one agent's cumulative activity over a run.
type JourneyStats struct {
	Serial    int32
	Type      components.AgentType
	SpawnTick int64

	// Destinations completed
	Arrivals int

	// Behavior
	StateChanges  int
	Conversations int

	// Service interactions
	ServicesRequested int
	ServicesReceived  int
	ServicesProvided  int

	// Movement
	Distance  float64
	PeakSpeed float64
}

// JourneyTracker manages per-agent journey statistics keyed by serial.
type JourneyTracker struct {
	stats map[int32]*JourneyStats
	order []int32
}

// NewJourneyTracker creates a new journey tracker.
func NewJourneyTracker() *JourneyTracker {
	return &JourneyTracker{
		stats: make(map[int32]*JourneyStats),
	}
}

// Register creates journey stats for a newly spawned agent.
func (jt *JourneyTracker) Register(serial int32, typ components.AgentType, spawnTick int64) {
	if _, ok := jt.stats[serial]; ok {
		return
	}
	jt.stats[serial] = &JourneyStats{
		Serial:    serial,
		Type:      typ,
		SpawnTick: spawnTick,
	}
	jt.order = append(jt.order, serial)
}

// Get returns the journey stats for an agent, or nil if not registered.
func (jt *JourneyTracker) Get(serial int32) *JourneyStats {
	return jt.stats[serial]
}

// RecordArrival increments the completed-destination count.
func (jt *JourneyTracker) RecordArrival(serial int32) {
	if s := jt.stats[serial]; s != nil {
		s.Arrivals++
	}
}

// RecordStateChange increments the state transition count.
func (jt *JourneyTracker) RecordStateChange(serial int32) {
	if s := jt.stats[serial]; s != nil {
		s.StateChanges++
	}
}

// RecordConversation increments the started-conversation count.
func (jt *JourneyTracker) RecordConversation(serial int32) {
	if s := jt.stats[serial]; s != nil {
		s.Conversations++
	}
}

// RecordServiceRequested increments the service request count.
func (jt *JourneyTracker) RecordServiceRequested(serial int32) {
	if s := jt.stats[serial]; s != nil {
		s.ServicesRequested++
	}
}

// RecordServiceReceived increments the received-service count.
func (jt *JourneyTracker) RecordServiceReceived(serial int32) {
	if s := jt.stats[serial]; s != nil {
		s.ServicesReceived++
	}
}

// RecordServiceProvided increments the provided-service count (robots).
func (jt *JourneyTracker) RecordServiceProvided(serial int32) {
	if s := jt.stats[serial]; s != nil {
		s.ServicesProvided++
	}
}

// RecordMovement accumulates path length and tracks peak speed.
func (jt *JourneyTracker) RecordMovement(serial int32, speed, dt float64) {
	if s := jt.stats[serial]; s != nil {
		s.Distance += speed * dt
		if speed > s.PeakSpeed {
			s.PeakSpeed = speed
		}
	}
}

// All returns all tracked stats in registration order.
func (jt *JourneyTracker) All() []*JourneyStats {
	out := make([]*JourneyStats, 0, len(jt.order))
	for _, serial := range jt.order {
		out = append(out, jt.stats[serial])
	}
	return out
}

// Count returns the number of tracked agents.
func (jt *JourneyTracker) Count() int {
	return len(jt.stats)
}

// JourneyCSV is a flat struct for CSV export of journey stats.
type JourneyCSV struct {
	Serial            int32   `csv:"serial"`
	Type              string  `csv:"type"`
	Arrivals          int     `csv:"arrivals"`
	StateChanges      int     `csv:"state_changes"`
	Conversations     int     `csv:"conversations"`
	ServicesRequested int     `csv:"services_requested"`
	ServicesReceived  int     `csv:"services_received"`
	ServicesProvided  int     `csv:"services_provided"`
	Distance          float64 `csv:"distance"`
	PeakSpeed         float64 `csv:"peak_speed"`
	MeanSpeed         float64 `csv:"mean_speed"`
}

// ToCSV converts journey stats to a flat CSV-friendly struct. endTick and dt
// are used to derive the mean speed over the agent's active time.
func (s *JourneyStats) ToCSV(endTick int64, dt float64) JourneyCSV {
	var meanSpeed float64
	if active := float64(endTick-s.SpawnTick) * dt; active > 0 {
		meanSpeed = s.Distance / active
	}
	return JourneyCSV{
		Serial:            s.Serial,
		Type:              s.Type.String(),
		Arrivals:          s.Arrivals,
		StateChanges:      s.StateChanges,
		Conversations:     s.Conversations,
		ServicesRequested: s.ServicesRequested,
		ServicesReceived:  s.ServicesReceived,
		ServicesProvided:  s.ServicesProvided,
		Distance:          s.Distance,
		PeakSpeed:         s.PeakSpeed,
		MeanSpeed:         meanSpeed,
	}
}
