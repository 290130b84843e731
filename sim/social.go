package sim

import (
	"math"

	"github.com/mlange-42/ark/ecs"

	"github.com/ambleworks/crowd/components"
	"github.com/ambleworks/crowd/config"
)

// The probabilistic triggers below share one pattern: a fixed debounce since
// the last evaluation, then a single uniform draw from the scene RNG against
// a configured probability, then the relationship mutation on success.

// cooldownPassed checks the debounce and, when it has elapsed, records this
// evaluation.
func (a *Agent) cooldownPassed(last *float64) bool {
	now := a.scene.Now()
	if now-*last < config.Cfg().Social.Cooldown {
		return false
	}
	*last = now
	return true
}

// interruptible reports whether an agent in this state can be drawn into a
// conversation.
func interruptible(st components.StateID) bool {
	switch st {
	case components.StateWalking, components.StateRunning, components.StateWaiting:
		return true
	}
	return false
}

// tellStory triggers when more than two agents are in talking range and
// nobody nearby is already telling one.
func (a *Agent) tellStory() bool {
	cfg := config.Cfg().Social
	if !a.cooldownPassed(&a.lastTellStory) {
		return false
	}
	nbs := a.scene.Neighbors(a.Entity, cfg.MaxTalkingDistance)
	if len(nbs) <= 2 {
		return false
	}
	for _, nb := range nbs {
		if o := a.scene.Agent(nb.E); o != nil && o.SM.State() == components.StateTellStory {
			return false
		}
	}
	return a.scene.RNG().Float64() < cfg.TellStoryProb
}

// startGroupTalking triggers under the same crowd-size and suppression rules
// as tellStory; the talk center becomes this agent's position on activation.
func (a *Agent) startGroupTalking() bool {
	cfg := config.Cfg().Social
	if !a.cooldownPassed(&a.lastGroupTalking) {
		return false
	}
	nbs := a.scene.Neighbors(a.Entity, cfg.MaxTalkingDistance)
	if len(nbs) <= 2 {
		return false
	}
	for _, nb := range nbs {
		if o := a.scene.Agent(nb.E); o != nil && o.SM.State() == components.StateGroupTalking {
			return false
		}
	}
	return a.scene.RNG().Float64() < cfg.GroupTalkingProb
}

// pickListener selects a uniformly random interruptible pedestrian in
// talking range, or the zero entity when none qualifies.
func (a *Agent) pickListener() ecs.Entity {
	cfg := config.Cfg().Social
	nbs := a.scene.Neighbors(a.Entity, cfg.MaxTalkingDistance)
	candidates := make([]ecs.Entity, 0, len(nbs))
	for _, nb := range nbs {
		o := a.scene.Agent(nb.E)
		if o == nil || o.Type.IsRobot() {
			continue
		}
		if interruptible(o.SM.State()) {
			candidates = append(candidates, nb.E)
		}
	}
	if len(candidates) == 0 {
		return ecs.Entity{}
	}
	return candidates[a.scene.RNG().Intn(len(candidates))]
}

// startTalking picks a random eligible listener and adopts them as the
// talked-to agent.
func (a *Agent) startTalking() bool {
	if !a.cooldownPassed(&a.lastStartTalking) {
		return false
	}
	if a.scene.RNG().Float64() >= config.Cfg().Social.TalkingProb {
		return false
	}
	target := a.pickListener()
	if target == (ecs.Entity{}) {
		return false
	}
	a.TalkingTo = target
	return true
}

// startTalkingAndWalking is startTalking for the walking variant.
func (a *Agent) startTalkingAndWalking() bool {
	if !a.cooldownPassed(&a.lastTalkAndWalk) {
		return false
	}
	if a.scene.RNG().Float64() >= config.Cfg().Social.TalkingAndWalkingProb {
		return false
	}
	target := a.pickListener()
	if target == (ecs.Entity{}) {
		return false
	}
	a.TalkingTo = target
	return true
}

// startRequestingService triggers for pedestrians when at least one service
// robot exists in the scene.
func (a *Agent) startRequestingService() bool {
	if a.Type.IsRobot() {
		return false
	}
	if !a.scene.HasServiceRobot() {
		return false
	}
	if !a.cooldownPassed(&a.lastRequestService) {
		return false
	}
	return a.scene.RNG().Float64() < config.Cfg().Social.RequestingServiceProb
}

// switchRunningWalking toggles between the two gaits.
func (a *Agent) switchRunningWalking() bool {
	if !a.cooldownPassed(&a.lastRunWalk) {
		return false
	}
	return a.scene.RNG().Float64() < config.Cfg().Social.SwitchRunningWalkingProb
}

// someoneTalkingToMe scans nearby agents every tick, no cooldown, and
// adopts a listening relationship as soon as a speaker addressing this
// agent, a story teller or a group-talk host is in range. It returns the
// listening state to enter, or StateNone.
func (a *Agent) someoneTalkingToMe() components.StateID {
	cfg := config.Cfg().Social
	nbs := a.scene.Neighbors(a.Entity, cfg.MaxTalkingDistance)
	for _, nb := range nbs {
		o := a.scene.Agent(nb.E)
		if o == nil {
			continue
		}
		switch o.SM.State() {
		case components.StateTalking:
			if o.TalkingTo == a.Entity {
				a.ListeningTo = nb.E
				if k := a.scene.Kin(nb.E); k != nil {
					a.talkCenter = k.Pos
				}
				return components.StateListening
			}
		case components.StateTellStory, components.StateGroupTalking:
			a.ListeningTo = nb.E
			a.talkCenter = o.talkCenter
			return components.StateListening
		case components.StateTalkingAndWalking:
			if o.TalkingTo == a.Entity {
				a.ListeningTo = nb.E
				return components.StateListeningAndWalking
			}
		}
	}
	return components.StateNone
}

// serviceRobotIsNear reports whether the robot assigned to this requester
// has arrived within the service proximity, adopting it as the server.
func (a *Agent) serviceRobotIsNear() bool {
	cfg := config.Cfg().Social
	nbs := a.scene.Neighbors(a.Entity, cfg.ServiceProximity)
	for _, nb := range nbs {
		o := a.scene.Agent(nb.E)
		if o == nil || o.Type != components.TypeServiceRobot {
			continue
		}
		if o.Servicing == a.Entity {
			a.ServedBy = nb.E
			return true
		}
	}
	return false
}

// someoneIsRequestingService matches the closest unclaimed requester within
// the servicing radius, synthesizes a rendezvous waypoint at their position,
// registers it with the scene and redirects this robot there.
func (a *Agent) someoneIsRequestingService() bool {
	cfg := config.Cfg().Social
	nbs := a.scene.Neighbors(a.Entity, cfg.MaxServicingRadius)
	var best ecs.Entity
	bestD := math.Inf(1)
	for _, nb := range nbs {
		o := a.scene.Agent(nb.E)
		if o == nil || o.SM.State() != components.StateRequestingService {
			continue
		}
		if a.scene.serviceClaimant(nb.E) != (ecs.Entity{}) {
			continue
		}
		if nb.DistSq < bestD {
			best = nb.E
			bestD = nb.DistSq
		}
	}
	if best == (ecs.Entity{}) {
		return false
	}
	k := a.scene.Kin(best)
	if k == nil {
		return false
	}
	id := a.scene.AddWaypoint(components.Waypoint{
		Name:   "service_destination",
		Pos:    k.Pos,
		Radius: cfg.ServiceProximity,
		Kind:   components.WaypointService,
	})
	a.serviceDest = id
	a.Servicing = best
	return true
}

// adjustKeepDistance recomputes the listener standoff radius so that all
// co-listeners of the same speaker space evenly around the shared talk
// center, floored at the minimum standoff.
func (a *Agent) adjustKeepDistance() {
	cfg := config.Cfg().Social
	count := 0
	for _, e := range a.scene.Agents() {
		o := a.scene.Agent(e)
		if o == nil {
			continue
		}
		st := o.SM.State()
		if (st == components.StateListening || st == components.StateListeningAndWalking) &&
			o.ListeningTo == a.ListeningTo {
			count++
		}
	}
	d := float64(count) * cfg.ListenerSpacing / (2 * math.Pi)
	if d < cfg.MinStandoff {
		d = cfg.MinStandoff
	}
	a.keepDistance = d
}
