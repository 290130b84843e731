package sim

import (
	"sort"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ambleworks/crowd/components"
	"github.com/ambleworks/crowd/systems"
)

// Agent is the behavioral side of a simulated pedestrian or robot. The hot
// kinematic state lives in the ECS as a Kinematics component; everything
// that drives behavior (state machine, destinations, relationships,
// cooldowns, forces) lives here.
type Agent struct {
	Entity ecs.Entity
	Serial int32
	Type   components.AgentType

	scene *Scene
	SM    *StateMachine

	// Destination list with cursor. The cursor always indexes a valid
	// element while the list is non-empty.
	Destinations []components.WaypointID
	destIndex    int
	prevDest     components.WaypointID
	DestMode     components.DestMode

	// Cross-agent relationships, stored as entities and resolved through
	// the scene on every use.
	TalkingTo      ecs.Entity
	ListeningTo    ecs.Entity
	Servicing      ecs.Entity
	ServedBy       ecs.Entity
	LastInteracted components.WaypointID

	// serviceDest is the synthesized rendezvous waypoint a service robot is
	// driving to, NoWaypoint otherwise.
	serviceDest components.WaypointID

	// Cooldown stamps, one per probabilistic trigger.
	lastTellStory      float64
	lastGroupTalking   float64
	lastStartTalking   float64
	lastTalkAndWalk    float64
	lastRequestService float64
	lastRunWalk        float64

	// Talk geometry for listeners: the shared center and the standoff
	// radius computed from the co-listener count.
	talkCenter   r2.Vec
	keepDistance float64

	forces   []Force
	disabled map[string]bool

	// Active scripted maneuver, timestamp-ordered, replayed by nearest
	// sample and discarded on exit from the scripted state.
	moveList []components.PoseStamped

	Group *AgentGroup

	// Robot fields, meaningful only when Type.IsRobot().
	RobotMode    components.RobotMode
	teleopTarget r2.Vec
	hasTeleop    bool

	initialPos r2.Vec
	initialDir float64

	// walkSpeed is the drawn preferred speed; Running scales VMax from it.
	walkSpeed float64

	nbuf []systems.Neighbor
	nkin []systems.NeighborKin
	plan motionPlan
}

func newAgent(s *Scene, e ecs.Entity, serial int32, typ components.AgentType) *Agent {
	a := &Agent{
		Entity:         e,
		Serial:         serial,
		Type:           typ,
		scene:          s,
		prevDest:       components.NoWaypoint,
		LastInteracted: components.NoWaypoint,
		serviceDest:    components.NoWaypoint,
		disabled:       make(map[string]bool),
		nbuf:           make([]systems.Neighbor, 0, systems.MaxQueryResults),
	}
	a.SM = newStateMachine(s, a)
	return a
}

// Kin returns the agent's kinematics component.
func (a *Agent) Kin() *components.Kinematics {
	return a.scene.Kin(a.Entity)
}

// CurrentDestination returns the destination at the cursor, or NoWaypoint
// when the list is empty.
func (a *Agent) CurrentDestination() components.WaypointID {
	if len(a.Destinations) == 0 {
		return components.NoWaypoint
	}
	return a.Destinations[a.destIndex]
}

// PreviousDestination returns the destination before the last advance, or
// NoWaypoint.
func (a *Agent) PreviousDestination() components.WaypointID {
	return a.prevDest
}

// NextDestination advances the cursor according to the traversal mode and
// returns the new destination. Random mode never repeats the current
// destination when more than one exists.
func (a *Agent) NextDestination() components.WaypointID {
	n := len(a.Destinations)
	if n == 0 {
		return components.NoWaypoint
	}
	a.prevDest = a.Destinations[a.destIndex]
	switch a.DestMode {
	case components.DestRandom:
		if n > 1 {
			next := a.scene.RNG().Intn(n - 1)
			if next >= a.destIndex {
				next++
			}
			a.destIndex = next
		}
	default:
		a.destIndex = (a.destIndex + 1) % n
	}
	return a.Destinations[a.destIndex]
}

// AddDestination appends a waypoint to the destination list.
func (a *Agent) AddDestination(id components.WaypointID) {
	a.Destinations = append(a.Destinations, id)
}

// AddForce appends a named force capability and emits a force-added event.
func (a *Agent) AddForce(f Force) {
	a.forces = append(a.forces, f)
	a.scene.emit(Event{Type: EventForceAdded, Entity: a.Entity, Serial: a.Serial, Name: f.Name()})
}

// EnableForce re-enables a previously disabled force by name.
func (a *Agent) EnableForce(name string) {
	if a.disabled[name] {
		delete(a.disabled, name)
		a.scene.emit(Event{Type: EventForceAdded, Entity: a.Entity, Serial: a.Serial, Name: name})
	}
}

// DisableForce excludes a force by name from aggregation.
func (a *Agent) DisableForce(name string) {
	if !a.disabled[name] {
		a.disabled[name] = true
		a.scene.emit(Event{Type: EventForceRemoved, Entity: a.Entity, Serial: a.Serial, Name: name})
	}
}

// ForceDisabled reports whether the named force is excluded.
func (a *Agent) ForceDisabled(name string) bool {
	return a.disabled[name]
}

// SetType changes the agent's type tag and notifies observers.
func (a *Agent) SetType(t components.AgentType) {
	if a.Type == t {
		return
	}
	a.Type = t
	if id := a.scene.Identity(a.Entity); id != nil {
		id.Type = t
	}
	a.scene.emit(Event{Type: EventTypeChanged, Entity: a.Entity, Serial: a.Serial, AgentType: t})
}

// Teleop sets the externally commanded position for a teleoperated robot.
// The position is applied on the next tick; velocity is derived so that
// neighbors perceive the motion.
func (a *Agent) Teleop(pos r2.Vec) {
	a.teleopTarget = pos
	a.hasTeleop = true
}

// KeepDistance returns the current listener standoff radius.
func (a *Agent) KeepDistance() float64 {
	return a.keepDistance
}

// TalkCenter returns the shared talk center for listener spacing.
func (a *Agent) TalkCenter() r2.Vec {
	return a.talkCenter
}

// MoveList returns the active scripted maneuver, nil when none is playing.
func (a *Agent) MoveList() []components.PoseStamped {
	return a.moveList
}

func (a *Agent) setMoveList(list []components.PoseStamped) {
	a.moveList = list
}

// nearestSample returns the move-list sample whose timestamp is nearest to
// now. ok is false when the list is empty or playback has passed the final
// sample.
func (a *Agent) nearestSample(now float64) (components.PoseStamped, bool) {
	n := len(a.moveList)
	if n == 0 {
		return components.PoseStamped{}, false
	}
	if now > a.moveList[n-1].Time {
		return components.PoseStamped{}, false
	}
	i := sort.Search(n, func(i int) bool { return a.moveList[i].Time >= now })
	if i == 0 {
		return a.moveList[0], true
	}
	if i >= n {
		return a.moveList[n-1], true
	}
	if now-a.moveList[i-1].Time <= a.moveList[i].Time-now {
		return a.moveList[i-1], true
	}
	return a.moveList[i], true
}

// moveListDone reports whether playback has consumed the whole list.
func (a *Agent) moveListDone(now float64) bool {
	n := len(a.moveList)
	return n == 0 || now > a.moveList[n-1].Time
}

func (a *Agent) clearRelationships() {
	a.TalkingTo = ecs.Entity{}
	a.ListeningTo = ecs.Entity{}
	a.Servicing = ecs.Entity{}
	a.ServedBy = ecs.Entity{}
}

// Reset returns the agent to its spawn pose with the destination cursor at
// zero and the state machine back at none. Calling it twice is a no-op the
// second time.
func (a *Agent) Reset() {
	if k := a.Kin(); k != nil {
		k.Pos = a.initialPos
		k.Vel = r2.Vec{}
		k.Acc = r2.Vec{}
		k.Dir = a.initialDir
	}
	a.destIndex = 0
	a.prevDest = components.NoWaypoint
	a.LastInteracted = components.NoWaypoint
	a.serviceDest = components.NoWaypoint
	a.clearRelationships()
	a.moveList = nil
	a.hasTeleop = false
	a.lastTellStory = 0
	a.lastGroupTalking = 0
	a.lastStartTalking = 0
	a.lastTalkAndWalk = 0
	a.lastRequestService = 0
	a.lastRunWalk = 0
	a.keepDistance = 0
	a.talkCenter = r2.Vec{}
	a.SM.reset()
}
