package feed

import (
	"github.com/ambleworks/crowd/sim"
)

// BuildWelcome captures the static world layout from a scene.
func BuildWelcome(s *sim.Scene) WelcomeMsg {
	ids := s.WaypointIDs()
	obstacles := s.Obstacles()
	w := WelcomeMsg{
		Seed:        s.Seed(),
		Timestep:    s.Timestep(),
		WorldWidth:  s.Width(),
		WorldHeight: s.Height(),
		Waypoints:   make([]WaypointInfo, 0, len(ids)),
		Obstacles:   make([]ObstacleInfo, 0, len(obstacles)),
	}
	for _, id := range ids {
		wp := s.Waypoint(id)
		if wp == nil {
			continue
		}
		w.Waypoints = append(w.Waypoints, WaypointInfo{
			ID:     int64(wp.ID),
			Name:   wp.Name,
			X:      wp.Pos.X,
			Y:      wp.Pos.Y,
			Radius: wp.Radius,
			Kind:   wp.Kind.String(),
		})
	}
	for _, o := range obstacles {
		w.Obstacles = append(w.Obstacles, ObstacleInfo{X1: o.A.X, Y1: o.A.Y, X2: o.B.X, Y2: o.B.Y})
	}
	return w
}

// BuildFrame captures every agent's pose for the current tick.
func BuildFrame(s *sim.Scene, paused bool) FrameMsg {
	ents := s.Agents()
	f := FrameMsg{
		Tick:   s.Tick(),
		Time:   s.Now(),
		Paused: paused,
		Agents: make([]AgentFrame, 0, len(ents)),
	}
	for _, e := range ents {
		a := s.Agent(e)
		if a == nil {
			continue
		}
		k := a.Kin()
		f.Agents = append(f.Agents, AgentFrame{
			Serial: a.Serial,
			Type:   a.Type.String(),
			State:  a.SM.State().String(),
			X:      k.Pos.X,
			Y:      k.Pos.Y,
			VX:     k.Vel.X,
			VY:     k.Vel.Y,
			Dir:    k.Dir,
		})
	}
	return f
}
