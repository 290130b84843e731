package sim

import (
	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ambleworks/crowd/components"
)

// AgentGroup is a set of agents walking together. Members share one
// destination list, advanced through a single group planner, and are pulled
// toward the group centroid by the group forces.
type AgentGroup struct {
	ID      int32
	Members []ecs.Entity

	Destinations []components.WaypointID
	destIndex    int

	// Attraction is a waypoint the whole group is currently drawn to, or
	// NoWaypoint. Members in attraction-seeking states fall back to normal
	// locomotion when it clears.
	Attraction components.WaypointID

	planner *GroupPlanner
}

func newGroup(id int32) *AgentGroup {
	return &AgentGroup{ID: id, Attraction: components.NoWaypoint}
}

// Centroid returns the mean position of all live members and their count.
func (g *AgentGroup) Centroid(s *Scene) (r2.Vec, int) {
	var sum r2.Vec
	n := 0
	for _, e := range g.Members {
		k := s.Kin(e)
		if k == nil {
			continue
		}
		sum = r2.Add(sum, k.Pos)
		n++
	}
	if n == 0 {
		return r2.Vec{}, 0
	}
	return r2.Scale(1/float64(n), sum), n
}

// Contains reports whether e is a member.
func (g *AgentGroup) Contains(e ecs.Entity) bool {
	for _, m := range g.Members {
		if m == e {
			return true
		}
	}
	return false
}

// Size returns the member count.
func (g *AgentGroup) Size() int {
	return len(g.Members)
}

// CurrentDestination returns the shared destination at the group cursor, or
// NoWaypoint when the list is empty.
func (g *AgentGroup) CurrentDestination() components.WaypointID {
	if len(g.Destinations) == 0 {
		return components.NoWaypoint
	}
	return g.Destinations[g.destIndex]
}

// NextDestination advances the shared cursor sequentially and returns the new
// destination.
func (g *AgentGroup) NextDestination() components.WaypointID {
	if len(g.Destinations) == 0 {
		return components.NoWaypoint
	}
	g.destIndex = (g.destIndex + 1) % len(g.Destinations)
	return g.Destinations[g.destIndex]
}
