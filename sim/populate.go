package sim

import (
	"fmt"
	"math"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ambleworks/crowd/components"
	"github.com/ambleworks/crowd/config"
	"github.com/ambleworks/crowd/scenario"
	"github.com/ambleworks/crowd/systems"
)

// Populate fills an empty scene from a validated scenario: extent,
// obstacles, waypoints, then the spawn blocks. Per-agent preferred speeds
// are drawn from the configured normal distribution using the scene RNG, so
// population is part of the reproducible run.
func Populate(s *Scene, sc *scenario.Scenario) error {
	if sc.World.Width > 0 && sc.World.Height > 0 {
		s.ResizeWorld(sc.World.Width, sc.World.Height)
	}

	for _, o := range sc.Obstacles {
		s.AddObstacle(components.Obstacle{
			A: r2.Vec{X: o.X1, Y: o.Y1},
			B: r2.Vec{X: o.X2, Y: o.Y2},
		})
	}

	ids := make(map[string]components.WaypointID, len(sc.Waypoints))
	for _, w := range sc.Waypoints {
		kind := components.WaypointNormal
		if w.Kind != "" {
			kind, _ = components.ParseWaypointKind(w.Kind)
		}
		id := s.AddWaypoint(components.Waypoint{
			Name:        w.Name,
			Pos:         r2.Vec{X: w.X, Y: w.Y},
			Radius:      w.Radius,
			Kind:        kind,
			StaticAngle: systems.NormalizeDir(w.Angle),
		})
		ids[w.Name] = id
	}

	for i, b := range sc.Agents {
		typ := components.TypeAdult
		if b.Type != "" {
			typ, _ = components.ParseAgentType(b.Type)
		}
		mode := components.DestSequential
		if b.Mode != "" {
			mode, _ = components.ParseDestMode(b.Mode)
		}

		dests := make([]components.WaypointID, 0, len(b.Destinations))
		for _, name := range b.Destinations {
			id, ok := ids[name]
			if !ok {
				return fmt.Errorf("spawn block %d references unknown waypoint %q", i, name)
			}
			dests = append(dests, id)
		}

		var members []ecs.Entity
		for n := 0; n < b.Count; n++ {
			pos := r2.Vec{
				X: b.X + jitter(s, b.DX),
				Y: b.Y + jitter(s, b.DY),
			}
			dir := s.RNG().Float64() * 2 * math.Pi
			a := s.Spawn(typ, pos, dir)
			applySpawnProfile(s, a, b.RobotMode)

			if b.Group {
				members = append(members, a.Entity)
			} else {
				a.Destinations = append(a.Destinations, dests...)
				a.DestMode = mode
			}
		}
		if b.Group {
			s.NewGroup(members, dests)
		}
	}
	return nil
}

func jitter(s *Scene, spread float64) float64 {
	if spread <= 0 {
		return 0
	}
	return (s.RNG().Float64()*2 - 1) * spread
}

// applySpawnProfile draws the preferred speed and applies the per-type
// kinematic profile on top of the spawn defaults.
func applySpawnProfile(s *Scene, a *Agent, robotMode string) {
	cfg := config.Cfg()
	k := a.Kin()

	if a.Type.IsRobot() {
		if robotMode != "" {
			a.RobotMode, _ = components.ParseRobotMode(robotMode)
		}
		sd := cfg.Robot.SocialDrive
		k.VMax = sd.VMax
		k.Radius = sd.Radius
		if a.RobotMode == components.ModeSocialDrive {
			k.FactorDesired = sd.FactorDesired
			k.FactorObstacle = sd.FactorObstacle
			k.FactorSocial = cfg.Forces.FactorSocial * sd.SocialScale
		}
		a.walkSpeed = k.VMax
		return
	}

	v := cfg.Speeds.WalkMean + s.RNG().NormFloat64()*cfg.Speeds.WalkStddev
	v = systems.Clamp(v, 0.3, 2*cfg.Speeds.WalkMean)
	if a.Type == components.TypeElder && v > cfg.Speeds.ElderVMax {
		v = cfg.Speeds.ElderVMax
	}
	k.VMax = v
	a.walkSpeed = v
	if a.Type == components.TypeElder {
		k.FactorDesired = cfg.Forces.FactorDesired * cfg.Speeds.ElderDesiredScale
	}
}
