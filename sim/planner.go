package sim

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ambleworks/crowd/components"
	"github.com/ambleworks/crowd/config"
	"github.com/ambleworks/crowd/systems"
)

// WaypointPlanner selects the waypoint an agent is currently steering toward.
// At most one planner is attached to an agent at a time, chosen by the
// behavioral state.
type WaypointPlanner interface {
	HasCompletedDestination() bool
	CurrentWaypoint() *components.Waypoint
	SetDestination(w *components.Waypoint)
}

// IndividualPlanner walks the agent's own destination list. A destination
// set through SetDestination (e.g. a service rendezvous) overrides the list
// until the planner is detached.
type IndividualPlanner struct {
	scene    *Scene
	agent    *Agent
	override *components.Waypoint
}

func newIndividualPlanner(s *Scene, a *Agent) *IndividualPlanner {
	return &IndividualPlanner{scene: s, agent: a}
}

func (p *IndividualPlanner) CurrentWaypoint() *components.Waypoint {
	if p.override != nil {
		return p.override
	}
	id := p.agent.CurrentDestination()
	if id == components.NoWaypoint {
		return nil
	}
	return p.scene.Waypoint(id)
}

func (p *IndividualPlanner) HasCompletedDestination() bool {
	w := p.CurrentWaypoint()
	if w == nil {
		return false
	}
	k := p.scene.Kin(p.agent.Entity)
	if k == nil {
		return false
	}
	return w.Contains(k.Pos)
}

func (p *IndividualPlanner) SetDestination(w *components.Waypoint) {
	p.override = w
}

func (p *IndividualPlanner) reset() {
	p.override = nil
}

// QueueingPlanner targets a slot behind a queue waypoint. The slot offset
// grows with the number of agents already queueing there when this agent
// joins, spaced along the waypoint's static angle.
type QueueingPlanner struct {
	scene *Scene
	agent *Agent
	slot  components.Waypoint
	valid bool
}

func newQueueingPlanner(s *Scene, a *Agent) *QueueingPlanner {
	return &QueueingPlanner{scene: s, agent: a}
}

// activate computes the slot for the agent's current destination.
func (p *QueueingPlanner) activate() {
	id := p.agent.CurrentDestination()
	w := p.scene.Waypoint(id)
	if w == nil {
		p.valid = false
		return
	}
	rank := 0
	for _, e := range p.scene.Agents() {
		other := p.scene.Agent(e)
		if other == nil || other == p.agent {
			continue
		}
		if other.SM.State() == components.StateQueueing && other.CurrentDestination() == id {
			rank++
		}
	}
	spacing := config.Cfg().Social.ListenerSpacing
	offset := r2.Scale(float64(rank)*spacing, systems.DirVec(w.StaticAngle))
	p.slot = components.Waypoint{
		ID:     w.ID,
		Name:   w.Name,
		Pos:    r2.Add(w.Pos, offset),
		Radius: w.Radius,
		Kind:   w.Kind,
	}
	p.valid = true
}

func (p *QueueingPlanner) CurrentWaypoint() *components.Waypoint {
	if !p.valid {
		return nil
	}
	return &p.slot
}

func (p *QueueingPlanner) HasCompletedDestination() bool {
	if !p.valid {
		return false
	}
	k := p.scene.Kin(p.agent.Entity)
	if k == nil {
		return false
	}
	return p.slot.Contains(k.Pos)
}

func (p *QueueingPlanner) SetDestination(w *components.Waypoint) {
	if w == nil {
		p.valid = false
		return
	}
	p.slot = *w
	p.valid = true
}

// GroupPlanner walks a group's shared destination list. Completion is judged
// by the group centroid so stragglers do not stall the cursor.
type GroupPlanner struct {
	scene *Scene
	group *AgentGroup

	lastAdvanceTick int64
}

func newGroupPlanner(s *Scene, g *AgentGroup) *GroupPlanner {
	return &GroupPlanner{scene: s, group: g, lastAdvanceTick: -1}
}

func (p *GroupPlanner) CurrentWaypoint() *components.Waypoint {
	id := p.group.CurrentDestination()
	if id == components.NoWaypoint {
		return nil
	}
	return p.scene.Waypoint(id)
}

func (p *GroupPlanner) HasCompletedDestination() bool {
	w := p.CurrentWaypoint()
	if w == nil {
		return false
	}
	c, n := p.group.Centroid(p.scene)
	if n == 0 {
		return false
	}
	return w.Contains(c)
}

// Advance moves the shared cursor at most once per tick, no matter how many
// members observe completion in the same pass.
func (p *GroupPlanner) Advance() {
	if p.scene.Tick() == p.lastAdvanceTick {
		return
	}
	p.lastAdvanceTick = p.scene.Tick()
	p.group.NextDestination()
}

func (p *GroupPlanner) SetDestination(w *components.Waypoint) {
	// Group destinations come from the shared list; a direct redirect is
	// modeled as a group attraction instead.
	if w != nil {
		p.group.Attraction = w.ID
	}
}

// ShoppingPlanner steers toward an attraction: the state machine's group
// attraction if set, otherwise the nearest shelf-kind waypoint.
type ShoppingPlanner struct {
	scene  *Scene
	agent  *Agent
	target *components.Waypoint
}

func newShoppingPlanner(s *Scene, a *Agent) *ShoppingPlanner {
	return &ShoppingPlanner{scene: s, agent: a}
}

func (p *ShoppingPlanner) activate(attraction components.WaypointID) {
	if attraction != components.NoWaypoint {
		p.target = p.scene.Waypoint(attraction)
		return
	}
	k := p.scene.Kin(p.agent.Entity)
	if k == nil {
		p.target = nil
		return
	}
	var best *components.Waypoint
	bestD := 0.0
	for _, id := range p.scene.WaypointIDs() {
		w := p.scene.Waypoint(id)
		if w == nil || w.Kind != components.WaypointShelf {
			continue
		}
		d := r2.Norm(r2.Sub(w.Pos, k.Pos))
		if best == nil || d < bestD {
			best = w
			bestD = d
		}
	}
	p.target = best
}

func (p *ShoppingPlanner) CurrentWaypoint() *components.Waypoint {
	return p.target
}

func (p *ShoppingPlanner) HasCompletedDestination() bool {
	if p.target == nil {
		return false
	}
	k := p.scene.Kin(p.agent.Entity)
	if k == nil {
		return false
	}
	return p.target.Contains(k.Pos)
}

func (p *ShoppingPlanner) SetDestination(w *components.Waypoint) {
	p.target = w
}
