package sim

import (
	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ambleworks/crowd/components"
)

// EventType identifies a change notification emitted by the scene.
type EventType uint8

const (
	EventPosition EventType = iota
	EventVelocity
	EventAcceleration
	EventForce // single named contribution
	EventAggregateForce
	EventState
	EventForceAdded
	EventForceRemoved
	EventTypeChanged
	EventWaypointAdded
	EventDestination // a planner completed its current waypoint
	EventAgentAdded
)

var eventTypeNames = []string{
	"position",
	"velocity",
	"acceleration",
	"force",
	"aggregate_force",
	"state",
	"force_added",
	"force_removed",
	"type_changed",
	"waypoint_added",
	"destination_reached",
	"agent_added",
}

func (t EventType) String() string {
	if int(t) < len(eventTypeNames) {
		return eventTypeNames[t]
	}
	return "unknown"
}

// Event is a change notification delivered synchronously to subscribers at
// the point of mutation.
type Event struct {
	Type   EventType
	Tick   int64
	Time   float64
	Entity ecs.Entity
	Serial int32

	// Vec carries the position, velocity, acceleration or force payload.
	Vec r2.Vec

	// Name carries the force name for force events, the waypoint name for
	// waypoint events.
	Name string

	OldState components.StateID
	NewState components.StateID

	AgentType components.AgentType
}

// Subscribe registers an observer. Observers are invoked synchronously in
// registration order; they must not mutate the scene.
func (s *Scene) Subscribe(fn func(Event)) {
	s.observers = append(s.observers, fn)
}

// Observing reports whether at least one observer is registered. Hot paths
// use it to skip building events nobody will see.
func (s *Scene) Observing() bool {
	return len(s.observers) > 0
}

func (s *Scene) emit(ev Event) {
	if len(s.observers) == 0 {
		return
	}
	ev.Tick = s.tick
	ev.Time = s.time
	for _, fn := range s.observers {
		fn(ev)
	}
}
