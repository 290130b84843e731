// Package sim implements the crowd simulation core: the scene registry, the
// per-agent behavioral state machine, motion dispatch over forces and
// scripted maneuvers, and the social coordination predicates.
package sim

import (
	"math"
	"math/rand"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ambleworks/crowd/components"
	"github.com/ambleworks/crowd/config"
	"github.com/ambleworks/crowd/systems"
	"github.com/ambleworks/crowd/telemetry"
)

// Scene is the shared registry of agents, waypoints and obstacles, and the
// synchronous tick driver. All iteration runs over insertion-order slices so
// a run is reproducible for a given seed.
type Scene struct {
	world  *ecs.World
	mapper *ecs.Map2[components.Identity, components.Kinematics]
	kinMap *ecs.Map1[components.Kinematics]
	idMap  *ecs.Map1[components.Identity]

	agents map[ecs.Entity]*Agent
	order  []ecs.Entity

	waypoints map[components.WaypointID]*components.Waypoint
	wpOrder   []components.WaypointID
	nextWp    components.WaypointID

	obstacles []components.Obstacle
	groups    []*AgentGroup

	grid *systems.SpatialGrid
	nbuf []systems.Neighbor

	rng  *rand.Rand
	seed int64
	tick int64
	time float64
	h    float64

	width, height float64

	observers []func(Event)
	perf      *telemetry.PerfCollector

	serial        int32
	serviceRobots int
	sanitized     int64
}

// NewScene creates an empty scene sized from the loaded configuration,
// owning the process RNG seeded with seed.
func NewScene(seed int64) *Scene {
	cfg := config.Cfg()
	world := ecs.NewWorld()
	s := &Scene{
		world:     world,
		mapper:    ecs.NewMap2[components.Identity, components.Kinematics](world),
		kinMap:    ecs.NewMap1[components.Kinematics](world),
		idMap:     ecs.NewMap1[components.Identity](world),
		agents:    make(map[ecs.Entity]*Agent),
		waypoints: make(map[components.WaypointID]*components.Waypoint),
		rng:       rand.New(rand.NewSource(seed)),
		seed:      seed,
		h:         cfg.Sim.Timestep,
		width:     cfg.World.Width,
		height:    cfg.World.Height,
		nbuf:      make([]systems.Neighbor, 0, systems.MaxQueryResults),
	}
	s.grid = systems.NewSpatialGrid(s.width, s.height, cfg.Sim.GridCellSize)
	return s
}

// ResizeWorld replaces the world extent and rebuilds the spatial grid.
// Intended for scenario loading, before the first step.
func (s *Scene) ResizeWorld(width, height float64) {
	s.width = width
	s.height = height
	s.grid = systems.NewSpatialGrid(width, height, config.Cfg().Sim.GridCellSize)
}

// SetPerfCollector attaches an optional phase-timing collector.
func (s *Scene) SetPerfCollector(p *telemetry.PerfCollector) { s.perf = p }

// Now returns the current simulation time in seconds.
func (s *Scene) Now() float64 { return s.time }

// Tick returns the current tick index.
func (s *Scene) Tick() int64 { return s.tick }

// Seed returns the seed the scene RNG was created with.
func (s *Scene) Seed() int64 { return s.seed }

// Timestep returns the fixed seconds-per-tick.
func (s *Scene) Timestep() float64 { return s.h }

// RNG returns the process-wide random source. It is owned by the scene and
// must not be reseeded mid-run.
func (s *Scene) RNG() *rand.Rand { return s.rng }

// Width returns the world extent along x.
func (s *Scene) Width() float64 { return s.width }

// Height returns the world extent along y.
func (s *Scene) Height() float64 { return s.height }

// SanitizedForces returns the cumulative count of force contributions that
// were sanitized to zero.
func (s *Scene) SanitizedForces() int64 { return s.sanitized }

// Agents returns all agent entities in spawn order. The slice is shared;
// callers must not mutate it.
func (s *Scene) Agents() []ecs.Entity { return s.order }

// Agent resolves an entity to its behavioral agent, nil when the reference
// is unset or stale.
func (s *Scene) Agent(e ecs.Entity) *Agent {
	if e == (ecs.Entity{}) || !s.world.Alive(e) {
		return nil
	}
	return s.agents[e]
}

// Kin returns the kinematics component for an entity, nil when the
// reference is unset or stale.
func (s *Scene) Kin(e ecs.Entity) *components.Kinematics {
	if e == (ecs.Entity{}) || !s.world.Alive(e) {
		return nil
	}
	return s.kinMap.Get(e)
}

// Identity returns the identity component for an entity, nil when the
// reference is unset or stale.
func (s *Scene) Identity(e ecs.Entity) *components.Identity {
	if e == (ecs.Entity{}) || !s.world.Alive(e) {
		return nil
	}
	return s.idMap.Get(e)
}

// Distance returns the distance between two agents, +Inf when either
// reference is stale.
func (s *Scene) Distance(a, b ecs.Entity) float64 {
	ka := s.Kin(a)
	kb := s.Kin(b)
	if ka == nil || kb == nil {
		return math.Inf(1)
	}
	return r2.Norm(r2.Sub(ka.Pos, kb.Pos))
}

// HasServiceRobot reports whether any service robot was spawned.
func (s *Scene) HasServiceRobot() bool { return s.serviceRobots > 0 }

// Spawn creates an agent of the given type at pos with the configured
// defaults and the standard force set attached.
func (s *Scene) Spawn(typ components.AgentType, pos r2.Vec, dir float64) *Agent {
	cfg := config.Cfg()
	s.serial++
	id := components.Identity{Serial: s.serial, Type: typ}
	k := components.Kinematics{
		Pos:            pos,
		Dir:            systems.NormalizeDir(dir),
		VMax:           cfg.Speeds.WalkMean,
		Radius:         cfg.Speeds.Radius,
		RelaxTime:      cfg.Forces.RelaxTime,
		FactorDesired:  cfg.Forces.FactorDesired,
		FactorSocial:   cfg.Forces.FactorSocial,
		FactorObstacle: cfg.Forces.FactorObstacle,
	}
	e := s.mapper.NewEntity(&id, &k)

	a := newAgent(s, e, s.serial, typ)
	a.initialPos = pos
	a.initialDir = systems.NormalizeDir(dir)
	a.walkSpeed = cfg.Speeds.WalkMean
	if typ.IsRobot() {
		a.SM.SetNormalState(components.StateDriving)
		a.RobotMode = cfg.Derived.RobotMode
	}
	s.agents[e] = a
	s.order = append(s.order, e)
	if typ == components.TypeServiceRobot {
		s.serviceRobots++
	}
	s.emit(Event{Type: EventAgentAdded, Entity: e, Serial: a.Serial, AgentType: typ, Vec: pos})
	attachStandardForces(a)
	return a
}

// AddWaypoint registers a waypoint and returns its assigned id. Adding is
// safe while agents iterate waypoints within the same tick.
func (s *Scene) AddWaypoint(w components.Waypoint) components.WaypointID {
	s.nextWp++
	w.ID = s.nextWp
	stored := w
	s.waypoints[w.ID] = &stored
	s.wpOrder = append(s.wpOrder, w.ID)
	s.emit(Event{Type: EventWaypointAdded, Name: w.Name})
	return w.ID
}

// Waypoint resolves a waypoint id, nil for NoWaypoint or an unknown id.
func (s *Scene) Waypoint(id components.WaypointID) *components.Waypoint {
	if id == components.NoWaypoint {
		return nil
	}
	return s.waypoints[id]
}

// WaypointIDs returns all waypoint ids in registration order. The slice is
// shared; callers must not mutate it.
func (s *Scene) WaypointIDs() []components.WaypointID { return s.wpOrder }

// AddObstacle registers a line obstacle.
func (s *Scene) AddObstacle(o components.Obstacle) {
	s.obstacles = append(s.obstacles, o)
}

// Obstacles returns all obstacles. The slice is shared; callers must not
// mutate it.
func (s *Scene) Obstacles() []components.Obstacle { return s.obstacles }

// Groups returns all walking groups.
func (s *Scene) Groups() []*AgentGroup { return s.groups }

// NewGroup forms a walking group over the given members with a shared
// destination list, enabling the group forces on every member.
func (s *Scene) NewGroup(members []ecs.Entity, destinations []components.WaypointID) *AgentGroup {
	g := newGroup(int32(len(s.groups) + 1))
	g.Members = append(g.Members, members...)
	g.Destinations = append(g.Destinations, destinations...)
	g.planner = newGroupPlanner(s, g)
	s.groups = append(s.groups, g)
	for _, e := range members {
		a := s.Agent(e)
		if a == nil {
			continue
		}
		a.Group = g
		a.SM.SetNormalState(components.StateGroupWalking)
		a.EnableForce(ForceGroupCoherence)
		a.EnableForce(ForceGroupRepulsion)
		a.EnableForce(ForceGroupGaze)
	}
	return g
}

// Neighbors queries the spatial grid around an agent using the shared
// scratch buffer. The result is valid until the next call.
func (s *Scene) Neighbors(e ecs.Entity, radius float64) []systems.Neighbor {
	k := s.Kin(e)
	if k == nil {
		return nil
	}
	s.nbuf = s.grid.QueryRadiusInto(s.nbuf[:0], k.Pos.X, k.Pos.Y, radius, e, s.kinMap)
	return s.nbuf
}

// serviceClaimant returns the robot already assigned to the requester, or
// the zero entity.
func (s *Scene) serviceClaimant(requester ecs.Entity) ecs.Entity {
	for _, e := range s.order {
		a := s.agents[e]
		if a.Type == components.TypeServiceRobot && a.Servicing == requester {
			return e
		}
	}
	return ecs.Entity{}
}

// Step advances the simulation one tick: rebuild the spatial snapshot, run
// every state machine, plan every agent's motion against the pre-move
// snapshot, then commit all plans.
func (s *Scene) Step() {
	s.tick++
	s.time = float64(s.tick) * s.h

	if s.perf != nil {
		s.perf.StartPhase(telemetry.PhaseSpatialGrid)
	}
	s.grid.Clear()
	for _, e := range s.order {
		k := s.kinMap.Get(e)
		s.grid.Insert(e, k.Pos.X, k.Pos.Y)
	}

	if s.perf != nil {
		s.perf.StartPhase(telemetry.PhaseTransitions)
	}
	for _, e := range s.order {
		s.agents[e].SM.doStateTransition()
	}

	if s.perf != nil {
		s.perf.StartPhase(telemetry.PhaseForces)
	}
	for _, e := range s.order {
		s.agents[e].planMotion(s.h)
	}

	if s.perf != nil {
		s.perf.StartPhase(telemetry.PhaseCommit)
	}
	for _, e := range s.order {
		s.agents[e].applyMotion(s.h)
	}
}
