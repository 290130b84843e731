package sim

import (
	"fmt"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ambleworks/crowd/components"
	"github.com/ambleworks/crowd/config"
	"github.com/ambleworks/crowd/systems"
)

// StateMachine is the per-agent behavioral controller. It owns the current
// and normal states, the per-state timer, the group attraction reference and
// the four waypoint planner capabilities, of which at most one is attached
// at a time.
type StateMachine struct {
	scene *Scene
	agent *Agent

	state       components.StateID
	normalState components.StateID
	enteredAt   float64
	maxDuration float64 // 0 = no expiry

	attraction     components.WaypointID
	lostAttraction bool

	individual *IndividualPlanner
	queueing   *QueueingPlanner
	shopping   *ShoppingPlanner
	active     WaypointPlanner
}

func newStateMachine(s *Scene, a *Agent) *StateMachine {
	sm := &StateMachine{
		scene:       s,
		agent:       a,
		state:       components.StateNone,
		normalState: components.StateWalking,
		attraction:  components.NoWaypoint,
	}
	sm.individual = newIndividualPlanner(s, a)
	sm.queueing = newQueueingPlanner(s, a)
	sm.shopping = newShoppingPlanner(s, a)
	return sm
}

// State returns the current behavioral state.
func (s *StateMachine) State() components.StateID { return s.state }

// NormalState returns the fallback locomotion state.
func (s *StateMachine) NormalState() components.StateID { return s.normalState }

// SetNormalState sets the fallback locomotion state.
func (s *StateMachine) SetNormalState(st components.StateID) { s.normalState = st }

// EnteredAt returns the timestamp of the last state entry.
func (s *StateMachine) EnteredAt() float64 { return s.enteredAt }

// MaxDuration returns the randomized duration drawn for the active state,
// 0 when the state is not duration-limited.
func (s *StateMachine) MaxDuration() float64 { return s.maxDuration }

// ActivePlanner returns the attached planner capability, nil when the
// current state needs none.
func (s *StateMachine) ActivePlanner() WaypointPlanner { return s.active }

// Attraction returns the waypoint currently drawing this agent, or
// NoWaypoint.
func (s *StateMachine) Attraction() components.WaypointID { return s.attraction }

// SetAttraction points the machine at an attraction waypoint.
func (s *StateMachine) SetAttraction(id components.WaypointID) { s.attraction = id }

// LoseAttraction latches an asynchronous attraction loss. The latch is
// consumed at the start of the next transition evaluation and forces
// attraction-seeking states back to the normal state.
func (s *StateMachine) LoseAttraction() { s.lostAttraction = true }

func (s *StateMachine) reset() {
	if s.state != components.StateNone {
		s.deactivateState()
		s.state = components.StateNone
	}
	s.enteredAt = 0
	s.maxDuration = 0
	s.attraction = components.NoWaypoint
	s.lostAttraction = false
}

// randomDuration draws the active-state duration around a base time with
// symmetric jitter.
func (s *StateMachine) randomDuration(base float64) float64 {
	if base <= 0 {
		return 0
	}
	j := config.Cfg().Durations.JitterFrac
	return base * (1 - j + 2*j*s.scene.RNG().Float64())
}

// activateState leaves the current state and installs next: it detaches the
// previous planner first, records the entry timestamp, draws the randomized
// duration and performs state-specific setup.
func (s *StateMachine) activateState(next components.StateID) {
	a := s.agent
	old := s.state

	s.deactivateState()
	s.state = next
	s.enteredAt = s.scene.Now()
	s.maxDuration = s.randomDuration(config.Cfg().BaseDuration(next))

	switch next {
	case components.StateWalking, components.StateRunning,
		components.StateDriving, components.StateTalkingAndWalking:
		s.attach(s.individual)

	case components.StateDrivingToInteraction:
		s.attach(s.individual)
		if w := s.scene.Waypoint(a.serviceDest); w != nil {
			s.individual.SetDestination(w)
		}

	case components.StateGroupWalking:
		if a.Group != nil {
			s.attach(a.Group.planner)
		} else {
			s.attach(s.individual)
		}

	case components.StateQueueing:
		s.queueing.activate()
		s.attach(s.queueing)

	case components.StateShopping:
		s.shopping.activate(s.attraction)
		s.attach(s.shopping)

	case components.StateListening:
		a.EnableForce(ForceKeepDistance)
		a.adjustKeepDistance()

	case components.StateListeningAndWalking:
		a.adjustKeepDistance()

	case components.StateTellStory:
		if k := a.Kin(); k != nil {
			a.talkCenter = k.Pos
		}

	case components.StateGroupTalking:
		if k := a.Kin(); k != nil {
			a.talkCenter = k.Pos
		}
		a.EnableForce(ForceKeepDistance)

	case components.StateReachedShelf:
		s.beginApproachScript()

	case components.StateBackUp:
		a.NextDestination()
		s.beginBackUpScript()

	case components.StateLiftingForks, components.StateLoading, components.StateLoweringForks:
		if s.scene.Waypoint(a.LastInteracted) == nil {
			panic(fmt.Sprintf("sim: agent %d entered %s without an interacted waypoint", a.Serial, next))
		}
	}

	if next == components.StateRunning {
		if k := a.Kin(); k != nil {
			k.VMax = a.walkSpeed * config.Cfg().Speeds.RunScale
		}
	}

	s.scene.emit(Event{
		Type:     EventState,
		Entity:   a.Entity,
		Serial:   a.Serial,
		OldState: old,
		NewState: next,
	})
}

// deactivateState tears down the current state: detaches the planner and
// clears the relationships and resources scoped to it.
func (s *StateMachine) deactivateState() {
	a := s.agent

	switch s.state {
	case components.StateTalking, components.StateTalkingAndWalking:
		a.TalkingTo = ecs.Entity{}

	case components.StateListening, components.StateListeningAndWalking:
		a.ListeningTo = ecs.Entity{}
		a.DisableForce(ForceKeepDistance)
		a.keepDistance = 0
		a.talkCenter = r2.Vec{}

	case components.StateGroupTalking:
		a.DisableForce(ForceKeepDistance)
		a.talkCenter = r2.Vec{}

	case components.StateRunning:
		if k := a.Kin(); k != nil {
			k.VMax = a.walkSpeed
		}

	case components.StateReachedShelf, components.StateBackUp:
		a.setMoveList(nil)

	case components.StateDrivingToInteraction:
		a.serviceDest = components.NoWaypoint

	case components.StateProvidingService:
		a.Servicing = ecs.Entity{}

	case components.StateReceivingService:
		a.ServedBy = ecs.Entity{}

	case components.StateShopping:
		s.attraction = components.NoWaypoint
	}

	s.detach()
	s.maxDuration = 0
}

func (s *StateMachine) attach(p WaypointPlanner) {
	s.active = p
}

func (s *StateMachine) detach() {
	s.individual.reset()
	s.active = nil
}

// beginApproachScript synthesizes the approach-and-face move list toward the
// interacted waypoint's static angle.
func (s *StateMachine) beginApproachScript() {
	a := s.agent
	w := s.scene.Waypoint(a.LastInteracted)
	if w == nil {
		panic(fmt.Sprintf("sim: agent %d entered %s without an interacted waypoint", a.Serial, s.state))
	}
	k := a.Kin()
	start := components.PoseStamped{Time: s.scene.Now(), Pos: k.Pos, Dir: k.Dir}
	a.setMoveList(ApproachAndFace(start, w.StaticAngle, s.scene.Timestep(), scriptParams()))
}

// beginBackUpScript synthesizes the back-up-and-turn move list toward the
// next destination. With an empty destination list the turn phase is a
// no-op (target angle = current facing).
func (s *StateMachine) beginBackUpScript() {
	a := s.agent
	k := a.Kin()
	target := k.Dir
	if w := s.scene.Waypoint(a.CurrentDestination()); w != nil {
		to := r2.Sub(w.Pos, k.Pos)
		if dir, ok := systems.Heading(to); ok {
			target = dir
		}
	}
	start := components.PoseStamped{Time: s.scene.Now(), Pos: k.Pos, Dir: k.Dir}
	a.setMoveList(BackUpAndTurn(start, target, s.scene.Timestep(), scriptParams()))
}

// doStateTransition evaluates the guards for the current state in priority
// order and performs at most one transition. The attraction-loss latch is
// consumed first, then universal duration expiry, then the state-specific
// guards.
func (s *StateMachine) doStateTransition() {
	a := s.agent
	now := s.scene.Now()

	if s.lostAttraction {
		s.lostAttraction = false
		if s.state.SeeksAttraction() {
			s.activateState(s.normalState)
			return
		}
	}

	if s.maxDuration > 0 && now-s.enteredAt > s.maxDuration {
		s.expire()
		return
	}

	switch s.state {
	case components.StateNone:
		if a.Type.IsRobot() {
			s.activateState(components.StateDriving)
			return
		}
		if a.Group != nil {
			s.activateState(components.StateGroupWalking)
			return
		}
		if len(a.Destinations) == 0 {
			s.activateState(components.StateWaiting)
			return
		}
		s.activateState(s.normalState)

	case components.StateWalking, components.StateRunning:
		if next := a.someoneTalkingToMe(); next != components.StateNone {
			s.activateState(next)
			return
		}
		if a.Group != nil {
			s.activateState(components.StateGroupWalking)
			return
		}
		if s.handleDestination() {
			return
		}
		if a.tellStory() {
			s.activateState(components.StateTellStory)
			return
		}
		if a.startGroupTalking() {
			s.activateState(components.StateGroupTalking)
			return
		}
		if a.startTalking() {
			s.activateState(components.StateTalking)
			return
		}
		if a.startTalkingAndWalking() {
			s.activateState(components.StateTalkingAndWalking)
			return
		}
		if a.startRequestingService() {
			s.activateState(components.StateRequestingService)
			return
		}
		if a.switchRunningWalking() {
			if s.state == components.StateWalking {
				s.activateState(components.StateRunning)
			} else {
				s.activateState(components.StateWalking)
			}
			return
		}

	case components.StateWaiting:
		if next := a.someoneTalkingToMe(); next != components.StateNone {
			s.activateState(next)
			return
		}
		if len(a.Destinations) > 0 {
			s.activateState(s.normalState)
			return
		}

	case components.StateGroupWalking:
		if next := a.someoneTalkingToMe(); next != components.StateNone {
			s.activateState(next)
			return
		}
		if a.Group == nil || a.Group.Size() < 2 {
			s.activateState(components.StateWalking)
			return
		}
		if a.Group.Attraction != components.NoWaypoint {
			s.attraction = a.Group.Attraction
			s.activateState(components.StateShopping)
			return
		}
		if gp, ok := s.active.(*GroupPlanner); ok && gp.HasCompletedDestination() {
			if w := gp.CurrentWaypoint(); w != nil {
				s.scene.emit(Event{
					Type:      EventDestination,
					Entity:    a.Entity,
					Serial:    a.Serial,
					Name:      w.Name,
					Vec:       w.Pos,
					AgentType: a.Type,
				})
			}
			gp.Advance()
		}

	case components.StateTalking:
		if s.scene.Agent(a.TalkingTo) == nil {
			s.activateState(s.normalState)
			return
		}

	case components.StateTalkingAndWalking:
		s.handleDestination()

	case components.StateListening:
		sp := s.scene.Agent(a.ListeningTo)
		if sp == nil || !sp.SM.State().IsTalkingState() {
			s.activateState(s.normalState)
			return
		}
		a.adjustKeepDistance()

	case components.StateListeningAndWalking:
		sp := s.scene.Agent(a.ListeningTo)
		if sp == nil || sp.SM.State() != components.StateTalkingAndWalking {
			s.activateState(s.normalState)
			return
		}

	case components.StateShopping:
		// duration-limited browse; nothing beyond expiry and the latch

	case components.StateReachedShelf:
		if a.moveListDone(now) {
			if a.Type.IsRobot() {
				s.activateState(components.StateLiftingForks)
			} else {
				s.attraction = a.LastInteracted
				s.activateState(components.StateShopping)
			}
			return
		}

	case components.StateBackUp:
		if a.moveListDone(now) {
			s.activateState(s.normalState)
			return
		}

	case components.StateDriving:
		if a.Type == components.TypeServiceRobot && a.someoneIsRequestingService() {
			s.activateState(components.StateDrivingToInteraction)
			return
		}
		s.handleDestination()

	case components.StateDrivingToInteraction:
		req := s.scene.Agent(a.Servicing)
		if req == nil || !requestStillOpen(req, a.Entity) {
			a.Servicing = ecs.Entity{}
			s.activateState(components.StateDriving)
			return
		}
		if s.scene.Distance(a.Entity, a.Servicing) <= config.Cfg().Social.ServiceProximity {
			s.activateState(components.StateProvidingService)
			return
		}

	case components.StateProvidingService:
		if s.scene.Agent(a.Servicing) == nil {
			s.activateState(components.StateDriving)
			return
		}

	case components.StateRequestingService:
		if a.serviceRobotIsNear() {
			s.activateState(components.StateReceivingService)
			return
		}

	case components.StateReceivingService:
		robot := s.scene.Agent(a.ServedBy)
		if robot == nil || (robot.SM.State() != components.StateProvidingService &&
			robot.SM.State() != components.StateDrivingToInteraction) {
			s.activateState(s.normalState)
			return
		}
	}
}

// handleDestination reacts to waypoint completion for list-following states.
// It returns true when a state change happened.
func (s *StateMachine) handleDestination() bool {
	a := s.agent
	if s.active == nil {
		return false
	}
	w := s.active.CurrentWaypoint()
	if w == nil {
		if len(a.Destinations) == 0 && !a.Type.IsRobot() {
			s.activateState(components.StateWaiting)
			return true
		}
		return false
	}
	if !s.active.HasCompletedDestination() {
		return false
	}
	s.scene.emit(Event{
		Type:      EventDestination,
		Entity:    a.Entity,
		Serial:    a.Serial,
		Name:      w.Name,
		Vec:       w.Pos,
		AgentType: a.Type,
	})
	switch w.Kind {
	case components.WaypointShelf:
		a.LastInteracted = w.ID
		s.activateState(components.StateReachedShelf)
		return true
	case components.WaypointQueue:
		s.activateState(components.StateQueueing)
		return true
	case components.WaypointWork:
		a.LastInteracted = w.ID
		s.activateState(components.StateWorking)
		return true
	case components.WaypointAttraction:
		s.attraction = w.ID
		s.activateState(components.StateShopping)
		return true
	default:
		a.NextDestination()
		return false
	}
}

// expire applies the universal duration-expiry transition for the current
// state.
func (s *StateMachine) expire() {
	a := s.agent
	switch s.state {
	case components.StateLiftingForks:
		s.activateState(components.StateLoading)
	case components.StateLoading:
		s.activateState(components.StateLoweringForks)
	case components.StateLoweringForks:
		s.activateState(components.StateBackUp)
	case components.StateQueueing, components.StateWorking:
		a.NextDestination()
		s.activateState(s.normalState)
	case components.StateShopping:
		if w := s.scene.Waypoint(a.CurrentDestination()); w != nil {
			if k := a.Kin(); k != nil && w.Contains(k.Pos) {
				a.NextDestination()
			}
		}
		s.activateState(s.normalState)
	case components.StateProvidingService:
		s.activateState(components.StateDriving)
	default:
		s.activateState(s.normalState)
	}
}

// requestStillOpen reports whether the requester is still waiting for, or
// already receiving, service from the given robot.
func requestStillOpen(req *Agent, robot ecs.Entity) bool {
	switch req.SM.State() {
	case components.StateRequestingService:
		return true
	case components.StateReceivingService:
		return req.ServedBy == robot
	default:
		return false
	}
}
