package sim

import (
	"log/slog"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ambleworks/crowd/config"
	"github.com/ambleworks/crowd/systems"
)

// Force names, used for enable/disable filtering and in event payloads.
const (
	ForceDesired        = "Desired"
	ForceSocial         = "Social"
	ForceObstacle       = "Obstacle"
	ForceKeepDistance   = "KeepDistance"
	ForceRandom         = "Random"
	ForceGroupCoherence = "GroupCoherence"
	ForceGroupRepulsion = "GroupRepulsion"
	ForceGroupGaze      = "GroupGaze"
)

// Force is a named capability producing one contribution to the agent's
// driving acceleration, given the current desired direction.
type Force interface {
	Name() string
	Compute(desiredDir r2.Vec) r2.Vec
}

// attachStandardForces appends the full force set to an agent. KeepDistance
// starts disabled; the listening states enable it. The group forces start
// disabled for agents outside a walking group.
func attachStandardForces(a *Agent) {
	a.AddForce(desiredForce{a})
	a.AddForce(socialForce{a})
	a.AddForce(obstacleForce{a})
	a.AddForce(keepDistanceForce{a})
	a.AddForce(randomForce{a})
	a.AddForce(groupCoherenceForce{a})
	a.AddForce(groupRepulsionForce{a})
	a.AddForce(groupGazeForce{a})

	a.DisableForce(ForceKeepDistance)
	if a.Group == nil {
		a.DisableForce(ForceGroupCoherence)
		a.DisableForce(ForceGroupRepulsion)
		a.DisableForce(ForceGroupGaze)
	}
}

// sumForces aggregates enabled contributions in list order. Invalid vectors
// are sanitized to zero and counted; they never reach the aggregate.
func (a *Agent) sumForces(desiredDir r2.Vec) r2.Vec {
	var sum r2.Vec
	observing := a.scene.Observing()
	for _, f := range a.forces {
		if a.disabled[f.Name()] {
			continue
		}
		v := f.Compute(desiredDir)
		if !systems.IsValidVec(v) {
			slog.Debug("invalid force contribution sanitized",
				"agent", a.Serial,
				"force", f.Name(),
			)
			a.scene.sanitized++
			v = r2.Vec{}
		}
		if observing {
			a.scene.emit(Event{Type: EventForce, Entity: a.Entity, Serial: a.Serial, Name: f.Name(), Vec: v})
		}
		sum = r2.Add(sum, v)
	}
	if observing {
		a.scene.emit(Event{Type: EventAggregateForce, Entity: a.Entity, Serial: a.Serial, Vec: sum})
	}
	return sum
}

type desiredForce struct{ a *Agent }

func (f desiredForce) Name() string { return ForceDesired }

func (f desiredForce) Compute(desiredDir r2.Vec) r2.Vec {
	k := f.a.Kin()
	hasTarget := desiredDir != (r2.Vec{})
	return r2.Scale(k.FactorDesired, systems.DesiredForce(k, hasTarget, desiredDir))
}

type socialForce struct{ a *Agent }

func (f socialForce) Name() string { return ForceSocial }

func (f socialForce) Compute(r2.Vec) r2.Vec {
	k := f.a.Kin()
	return r2.Scale(k.FactorSocial, systems.SocialForce(k, f.a.nkin))
}

type obstacleForce struct{ a *Agent }

func (f obstacleForce) Name() string { return ForceObstacle }

func (f obstacleForce) Compute(r2.Vec) r2.Vec {
	k := f.a.Kin()
	return r2.Scale(k.FactorObstacle,
		systems.ObstacleForce(k, f.a.scene.Obstacles(), config.Cfg().Forces.ObstacleSigma))
}

type keepDistanceForce struct{ a *Agent }

func (f keepDistanceForce) Name() string { return ForceKeepDistance }

func (f keepDistanceForce) Compute(r2.Vec) r2.Vec {
	k := f.a.Kin()
	return r2.Scale(config.Cfg().Forces.FactorKeepDistance,
		systems.KeepDistanceForce(k, f.a.talkCenter, f.a.keepDistance))
}

type randomForce struct{ a *Agent }

func (f randomForce) Name() string { return ForceRandom }

func (f randomForce) Compute(r2.Vec) r2.Vec {
	return r2.Scale(config.Cfg().Forces.FactorRandom, systems.RandomForce(f.a.scene.RNG()))
}

type groupCoherenceForce struct{ a *Agent }

func (f groupCoherenceForce) Name() string { return ForceGroupCoherence }

func (f groupCoherenceForce) Compute(r2.Vec) r2.Vec {
	g := f.a.Group
	if g == nil {
		return r2.Vec{}
	}
	k := f.a.Kin()
	centroid, n := g.Centroid(f.a.scene)
	return r2.Scale(config.Cfg().Group.FactorCoherence,
		systems.GroupCoherenceForce(k, centroid, n))
}

type groupRepulsionForce struct{ a *Agent }

func (f groupRepulsionForce) Name() string { return ForceGroupRepulsion }

func (f groupRepulsionForce) Compute(r2.Vec) r2.Vec {
	g := f.a.Group
	if g == nil {
		return r2.Vec{}
	}
	k := f.a.Kin()
	members := make([]systems.NeighborKin, 0, len(g.Members))
	for _, m := range g.Members {
		if m == f.a.Entity {
			continue
		}
		if mk := f.a.scene.Kin(m); mk != nil {
			members = append(members, systems.NeighborKin{Pos: mk.Pos, Vel: mk.Vel})
		}
	}
	return r2.Scale(config.Cfg().Group.FactorRepulsion,
		systems.GroupRepulsionForce(k, members, config.Cfg().Group.RepulsionRange))
}

type groupGazeForce struct{ a *Agent }

func (f groupGazeForce) Name() string { return ForceGroupGaze }

func (f groupGazeForce) Compute(r2.Vec) r2.Vec {
	g := f.a.Group
	if g == nil {
		return r2.Vec{}
	}
	k := f.a.Kin()
	centroid, n := g.Centroid(f.a.scene)
	if n < 2 {
		return r2.Vec{}
	}
	return r2.Scale(config.Cfg().Group.FactorGaze,
		systems.GroupGazeForce(k, centroid, config.Cfg().Group.VisionHalfAngle))
}
