package components

import "gonum.org/v1/gonum/spatial/r2"

// WaypointID is a stable scene-scoped waypoint identifier. Agents store
// waypoint relations as ids and resolve them through the Scene.
type WaypointID int64

// NoWaypoint marks an unset waypoint reference.
const NoWaypoint WaypointID = -1

// WaypointKind drives state-machine reactions when a waypoint is reached.
type WaypointKind uint8

const (
	WaypointNormal WaypointKind = iota
	WaypointShelf
	WaypointQueue
	WaypointWork
	WaypointAttraction
	WaypointService
)

var waypointKindNames = []string{"normal", "shelf", "queue", "work", "attraction", "service"}

func (k WaypointKind) String() string {
	if int(k) < len(waypointKindNames) {
		return waypointKindNames[k]
	}
	return "unknown"
}

// ParseWaypointKind maps a scenario-file spelling back to a WaypointKind.
func ParseWaypointKind(s string) (WaypointKind, bool) {
	for i, name := range waypointKindNames {
		if name == s {
			return WaypointKind(i), true
		}
	}
	return WaypointNormal, false
}

// DestMode selects how an agent traverses its destination list.
type DestMode uint8

const (
	// DestSequential cycles destinations in order, wrapping at the end.
	DestSequential DestMode = iota
	// DestRandom picks a uniformly random destination, never repeating the
	// current one when more than one exists.
	DestRandom
)

var destModeNames = []string{"sequential", "random"}

func (m DestMode) String() string {
	if int(m) < len(destModeNames) {
		return destModeNames[m]
	}
	return "unknown"
}

// ParseDestMode maps a scenario-file spelling back to a DestMode.
func ParseDestMode(s string) (DestMode, bool) {
	for i, name := range destModeNames {
		if name == s {
			return DestMode(i), true
		}
	}
	return DestSequential, false
}

// Waypoint is a destination or interaction point. StaticAngle is the facing
// an agent adopts while working at the waypoint (shelves, work posts).
type Waypoint struct {
	ID          WaypointID
	Name        string
	Pos         r2.Vec
	Radius      float64
	Kind        WaypointKind
	StaticAngle float64
}

// Contains reports whether p lies within the interaction radius.
func (w *Waypoint) Contains(p r2.Vec) bool {
	d := r2.Sub(p, w.Pos)
	return r2.Norm2(d) <= w.Radius*w.Radius
}

// IsInteractive reports whether reaching the waypoint triggers a
// state-machine reaction beyond plain destination cycling.
func (w *Waypoint) IsInteractive() bool {
	return w.Kind != WaypointNormal && w.Kind != WaypointService
}
