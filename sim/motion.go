package sim

import (
	"fmt"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ambleworks/crowd/components"
	"github.com/ambleworks/crowd/config"
	"github.com/ambleworks/crowd/systems"
)

type planKind uint8

const (
	planIntegrate planKind = iota
	planPose
	planHold
)

// motionPlan is the outcome of the dispatch phase for one agent, applied
// only after every agent has planned against the pre-move snapshot.
type motionPlan struct {
	kind   planKind
	force  r2.Vec
	pos    r2.Vec
	vel    r2.Vec
	dir    float64
	hasDir bool
}

// locomotes reports whether the state steers toward a waypoint. States
// outside this set have no desired target, so the desired force brakes.
func locomotes(st components.StateID) bool {
	switch st {
	case components.StateWalking, components.StateRunning, components.StateGroupWalking,
		components.StateQueueing, components.StateShopping, components.StateDriving,
		components.StateDrivingToInteraction, components.StateTalkingAndWalking:
		return true
	}
	return false
}

// rigid reports whether a robot state pins the robot in place, bypassing
// integration entirely.
func rigid(st components.StateID) bool {
	switch st {
	case components.StateLiftingForks, components.StateLoading,
		components.StateLoweringForks, components.StateProvidingService:
		return true
	}
	return false
}

// planMotion decides this tick's motion for the agent without touching any
// kinematics, so all agents plan against the same pre-move snapshot.
func (a *Agent) planMotion(h float64) {
	st := a.SM.State()

	a.refreshNeighbors()

	switch {
	case st == components.StateReachedShelf || st == components.StateBackUp:
		a.plan = a.planScripted(h)
	case st == components.StateListeningAndWalking:
		a.plan = a.planFollowSpeaker()
	case a.Type.IsRobot():
		a.plan = a.planRobot(h, st)
	default:
		a.plan = a.planIntegrate(st)
	}
}

func (a *Agent) refreshNeighbors() {
	k := a.Kin()
	rangeR := config.Cfg().Forces.SocialRange
	a.nbuf = a.scene.grid.QueryRadiusInto(a.nbuf[:0], k.Pos.X, k.Pos.Y, rangeR, a.Entity, a.scene.kinMap)
	a.nkin = a.nkin[:0]
	for _, nb := range a.nbuf {
		if nk := a.scene.Kin(nb.E); nk != nil {
			a.nkin = append(a.nkin, systems.NeighborKin{Pos: nk.Pos, Vel: nk.Vel})
		}
	}
}

// planScripted replays the move-list sample nearest to the current time.
func (a *Agent) planScripted(h float64) motionPlan {
	sample, ok := a.nearestSample(a.scene.Now())
	if !ok {
		return motionPlan{kind: planHold}
	}
	k := a.Kin()
	vel := r2.Scale(1/h, r2.Sub(sample.Pos, k.Pos))
	return motionPlan{kind: planPose, pos: sample.Pos, vel: vel, dir: sample.Dir, hasDir: true}
}

// planFollowSpeaker pins a walking listener to a perpendicular offset from
// the speaker, copying the speaker's velocity.
func (a *Agent) planFollowSpeaker() motionPlan {
	sp := a.scene.Agent(a.ListeningTo)
	if sp == nil {
		return motionPlan{kind: planHold}
	}
	sk := sp.Kin()
	offset := r2.Scale(a.keepDistance, systems.RotateLeft(systems.DirVec(sk.Dir)))
	return motionPlan{kind: planPose, pos: r2.Add(sk.Pos, offset), vel: sk.Vel}
}

func (a *Agent) planRobot(h float64, st components.StateID) motionPlan {
	if rigid(st) {
		return motionPlan{kind: planHold}
	}
	switch a.RobotMode {
	case components.ModeTeleoperated:
		if !a.hasTeleop {
			return motionPlan{kind: planHold}
		}
		k := a.Kin()
		vel := r2.Scale(1/h, r2.Sub(a.teleopTarget, k.Pos))
		return motionPlan{kind: planPose, pos: a.teleopTarget, vel: vel}
	case components.ModeControlled:
		if a.scene.Now() < config.Cfg().Robot.WaitTime {
			return motionPlan{kind: planHold}
		}
		return a.planIntegrate(st)
	default:
		return a.planIntegrate(st)
	}
}

// planIntegrate runs the force pipeline toward the planner's waypoint, or
// with no target (braking) for stationary states.
func (a *Agent) planIntegrate(st components.StateID) motionPlan {
	return motionPlan{kind: planIntegrate, force: a.sumForces(a.desiredDirection(st))}
}

// desiredDirection returns the unit vector toward the current waypoint, or
// the zero vector when the state has no target.
func (a *Agent) desiredDirection(st components.StateID) r2.Vec {
	if !locomotes(st) {
		return r2.Vec{}
	}
	p := a.SM.ActivePlanner()
	if p == nil {
		return r2.Vec{}
	}
	w := p.CurrentWaypoint()
	if w == nil {
		return r2.Vec{}
	}
	k := a.Kin()
	return systems.SafeUnit(r2.Sub(w.Pos, k.Pos))
}

// applyMotion commits the planned motion, applies the elder reductions,
// recomputes facing and notifies observers.
func (a *Agent) applyMotion(h float64) {
	k := a.Kin()

	switch a.plan.kind {
	case planPose:
		k.Pos = a.plan.pos
		k.Vel = a.plan.vel
		k.Acc = r2.Vec{}
		if a.plan.hasDir {
			k.Dir = systems.NormalizeDir(a.plan.dir)
		}
	case planHold:
		systems.Halt(k)
	default:
		systems.Integrate(k, a.plan.force, h)
	}

	if a.Type == components.TypeElder {
		sp := config.Cfg().Speeds
		if k.VMax > sp.ElderVMax {
			k.VMax = sp.ElderVMax
		}
		limit := config.Cfg().Forces.FactorDesired * sp.ElderDesiredScale
		if k.FactorDesired > limit {
			k.FactorDesired = limit
		}
	}

	a.updateDirection()

	a.scene.emit(Event{Type: EventPosition, Entity: a.Entity, Serial: a.Serial, Vec: k.Pos})
	a.scene.emit(Event{Type: EventVelocity, Entity: a.Entity, Serial: a.Serial, Vec: k.Vel})
	a.scene.emit(Event{Type: EventAcceleration, Entity: a.Entity, Serial: a.Serial, Vec: k.Acc})
}

// updateDirection recomputes facing after motion. Scripted states keep the
// facing their move list set; interaction states face their target; the
// fork states face the interacted waypoint's static angle; everything else
// derives facing from velocity.
func (a *Agent) updateDirection() {
	k := a.Kin()
	switch a.SM.State() {
	case components.StateReachedShelf, components.StateBackUp:
		return
	case components.StateLiftingForks, components.StateLoading, components.StateLoweringForks:
		w := a.scene.Waypoint(a.LastInteracted)
		if w == nil {
			panic(fmt.Sprintf("sim: agent %d in %s without an interacted waypoint", a.Serial, a.SM.State()))
		}
		k.Dir = systems.NormalizeDir(w.StaticAngle)
	case components.StateListening:
		a.faceEntity(a.ListeningTo)
	case components.StateTalking:
		a.faceEntity(a.TalkingTo)
	case components.StateGroupTalking:
		a.facePoint(a.talkCenter)
	case components.StateReceivingService:
		a.faceEntity(a.ServedBy)
	default:
		if dir, ok := systems.Heading(k.Vel); ok {
			k.Dir = dir
		}
	}
}

func (a *Agent) faceEntity(e ecs.Entity) {
	if t := a.scene.Kin(e); t != nil {
		a.facePoint(t.Pos)
	}
}

func (a *Agent) facePoint(p r2.Vec) {
	k := a.Kin()
	if dir, ok := systems.Heading(r2.Sub(p, k.Pos)); ok {
		k.Dir = dir
	}
}
