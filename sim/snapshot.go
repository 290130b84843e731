package sim

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds a complete scene state for offline inspection.
type Snapshot struct {
	Version int   `json:"version"`
	Seed    int64 `json:"seed"`

	Tick int64   `json:"tick"`
	Time float64 `json:"time"`

	WorldWidth  float64 `json:"world_width"`
	WorldHeight float64 `json:"world_height"`

	Waypoints []WaypointState `json:"waypoints"`
	Obstacles []ObstacleState `json:"obstacles"`
	Agents    []AgentState    `json:"agents"`
	Groups    []GroupState    `json:"groups,omitempty"`
}

// WaypointState holds one waypoint's definition.
type WaypointState struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
	Kind   string  `json:"kind"`
	Angle  float64 `json:"angle"`
}

// ObstacleState holds one obstacle segment.
type ObstacleState struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// AgentState holds one agent's pose and behavioral state.
type AgentState struct {
	Serial int32  `json:"serial"`
	Type   string `json:"type"`
	State  string `json:"state"`

	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	VX  float64 `json:"vx"`
	VY  float64 `json:"vy"`
	Dir float64 `json:"dir"`

	VMax float64 `json:"vmax"`

	Destinations []int64 `json:"destinations,omitempty"`
	DestIndex    int     `json:"dest_index"`
}

// GroupState holds one walking group's membership.
type GroupState struct {
	ID           int32   `json:"id"`
	Members      []int32 `json:"members"`
	Destinations []int64 `json:"destinations,omitempty"`
}

// BuildSnapshot captures the current scene state.
func BuildSnapshot(s *Scene) *Snapshot {
	snap := &Snapshot{
		Version:     SnapshotVersion,
		Seed:        s.seed,
		Tick:        s.tick,
		Time:        s.time,
		WorldWidth:  s.width,
		WorldHeight: s.height,
	}

	for _, id := range s.wpOrder {
		w := s.waypoints[id]
		snap.Waypoints = append(snap.Waypoints, WaypointState{
			ID:     int64(w.ID),
			Name:   w.Name,
			X:      w.Pos.X,
			Y:      w.Pos.Y,
			Radius: w.Radius,
			Kind:   w.Kind.String(),
			Angle:  w.StaticAngle,
		})
	}

	for _, o := range s.obstacles {
		snap.Obstacles = append(snap.Obstacles, ObstacleState{
			X1: o.A.X, Y1: o.A.Y, X2: o.B.X, Y2: o.B.Y,
		})
	}

	for _, e := range s.order {
		a := s.agents[e]
		k := a.Kin()
		st := AgentState{
			Serial:    a.Serial,
			Type:      a.Type.String(),
			State:     a.SM.State().String(),
			X:         k.Pos.X,
			Y:         k.Pos.Y,
			VX:        k.Vel.X,
			VY:        k.Vel.Y,
			Dir:       k.Dir,
			VMax:      k.VMax,
			DestIndex: a.destIndex,
		}
		for _, d := range a.Destinations {
			st.Destinations = append(st.Destinations, int64(d))
		}
		snap.Agents = append(snap.Agents, st)
	}

	for _, g := range s.groups {
		gs := GroupState{ID: g.ID}
		for _, m := range g.Members {
			if a := s.Agent(m); a != nil {
				gs.Members = append(gs.Members, a.Serial)
			}
		}
		for _, d := range g.Destinations {
			gs.Destinations = append(gs.Destinations, int64(d))
		}
		snap.Groups = append(snap.Groups, gs)
	}

	return snap
}

// WriteSnapshot writes a snapshot to dir as snapshot_<tick>.json.
// Returns the filepath where it was saved.
func WriteSnapshot(snap *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("snapshot_%d.json", snap.Tick))

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &snap, nil
}
