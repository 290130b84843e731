package sim

import (
	"math"
	"testing"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ambleworks/crowd/components"
	"github.com/ambleworks/crowd/config"
	"github.com/ambleworks/crowd/systems"
)

func init() { config.MustInit("") }

// stepN advances the scene n ticks.
func stepN(s *Scene, n int) {
	for i := 0; i < n; i++ {
		s.Step()
	}
}

// ---------- Spawning ----------

func TestSpawn_AdultDefaults(t *testing.T) {
	s := NewScene(1)
	a := s.Spawn(components.TypeAdult, r2.Vec{X: 5, Y: 5}, 0)

	if a.Serial != 1 {
		t.Errorf("Serial = %d, want 1", a.Serial)
	}
	k := a.Kin()
	if k.VMax != 1.34 {
		t.Errorf("VMax = %v, want 1.34", k.VMax)
	}
	if k.Radius != 0.35 {
		t.Errorf("Radius = %v, want 0.35", k.Radius)
	}
	if k.RelaxTime != 0.5 {
		t.Errorf("RelaxTime = %v, want 0.5", k.RelaxTime)
	}
	if k.FactorDesired != 1.0 || k.FactorSocial != 2.1 || k.FactorObstacle != 10 {
		t.Errorf("factors = (%v, %v, %v), want (1, 2.1, 10)",
			k.FactorDesired, k.FactorSocial, k.FactorObstacle)
	}
	if a.SM.State() != components.StateNone {
		t.Errorf("initial state = %v, want none", a.SM.State())
	}
	if a.SM.NormalState() != components.StateWalking {
		t.Errorf("normal state = %v, want walking", a.SM.NormalState())
	}

	if len(a.forces) != 8 {
		t.Errorf("force count = %d, want 8", len(a.forces))
	}
	if !a.ForceDisabled(ForceKeepDistance) {
		t.Error("keep-distance must start disabled")
	}
	for _, name := range []string{ForceGroupCoherence, ForceGroupRepulsion, ForceGroupGaze} {
		if !a.ForceDisabled(name) {
			t.Errorf("%s must start disabled outside a group", name)
		}
	}
	if a.ForceDisabled(ForceDesired) || a.ForceDisabled(ForceSocial) {
		t.Error("locomotion forces must start enabled")
	}
}

func TestSpawn_Robot(t *testing.T) {
	s := NewScene(2)
	r := s.Spawn(components.TypeRobot, r2.Vec{X: 1, Y: 1}, 0)

	if r.SM.NormalState() != components.StateDriving {
		t.Errorf("robot normal state = %v, want driving", r.SM.NormalState())
	}
	if r.RobotMode != components.ModeSocialDrive {
		t.Errorf("robot mode = %v, want configured social-drive", r.RobotMode)
	}
	if s.HasServiceRobot() {
		t.Error("a plain robot must not count as a service robot")
	}

	s.Spawn(components.TypeServiceRobot, r2.Vec{X: 2, Y: 2}, 0)
	if !s.HasServiceRobot() {
		t.Error("HasServiceRobot = false after spawning one")
	}
}

func TestSpawn_SerialsIncrement(t *testing.T) {
	s := NewScene(3)
	a := s.Spawn(components.TypeAdult, r2.Vec{X: 1, Y: 1}, 0)
	b := s.Spawn(components.TypeElder, r2.Vec{X: 2, Y: 2}, 0)

	if a.Serial != 1 || b.Serial != 2 {
		t.Errorf("serials = %d, %d, want 1, 2", a.Serial, b.Serial)
	}
	if len(s.Agents()) != 2 {
		t.Errorf("agent count = %d, want 2", len(s.Agents()))
	}
}

// ---------- Registry lookups ----------

func TestWaypointRegistry(t *testing.T) {
	s := NewScene(4)
	w1 := s.AddWaypoint(components.Waypoint{Name: "a", Pos: r2.Vec{X: 1, Y: 1}, Radius: 1})
	w2 := s.AddWaypoint(components.Waypoint{Name: "b", Pos: r2.Vec{X: 2, Y: 2}, Radius: 1})

	if got := s.Waypoint(w1); got == nil || got.Name != "a" {
		t.Errorf("Waypoint(w1) = %+v, want name a", got)
	}
	if got := s.Waypoint(components.NoWaypoint); got != nil {
		t.Errorf("Waypoint(NoWaypoint) = %+v, want nil", got)
	}
	ids := s.WaypointIDs()
	if len(ids) != 2 || ids[0] != w1 || ids[1] != w2 {
		t.Errorf("WaypointIDs = %v, want [%v %v] in registration order", ids, w1, w2)
	}
}

func TestDistance(t *testing.T) {
	s := NewScene(5)
	a := s.Spawn(components.TypeAdult, r2.Vec{X: 1, Y: 2}, 0)
	b := s.Spawn(components.TypeAdult, r2.Vec{X: 4, Y: 6}, 0)

	if got := s.Distance(a.Entity, b.Entity); math.Abs(got-5) > 1e-12 {
		t.Errorf("Distance = %v, want 5", got)
	}
	if got := s.Distance(a.Entity, ecs.Entity{}); !math.IsInf(got, 1) {
		t.Errorf("Distance to a stale reference = %v, want +Inf", got)
	}
}

func TestLookupsRejectStaleReferences(t *testing.T) {
	s := NewScene(6)
	if s.Agent(ecs.Entity{}) != nil {
		t.Error("Agent(zero) must be nil")
	}
	if s.Kin(ecs.Entity{}) != nil {
		t.Error("Kin(zero) must be nil")
	}
	if s.Identity(ecs.Entity{}) != nil {
		t.Error("Identity(zero) must be nil")
	}
}

// ---------- Neighbors ----------

func TestNeighbors(t *testing.T) {
	s := NewScene(7)
	a := s.Spawn(components.TypeAdult, r2.Vec{X: 5, Y: 5}, 0)
	b := s.Spawn(components.TypeAdult, r2.Vec{X: 6, Y: 5}, 0)

	// The grid is only populated by stepping.
	if got := s.Neighbors(a.Entity, 5); len(got) != 0 {
		t.Errorf("neighbors before the first step = %d, want 0", len(got))
	}

	s.Step()

	nbs := s.Neighbors(a.Entity, 5)
	if len(nbs) != 1 {
		t.Fatalf("neighbor count = %d, want 1", len(nbs))
	}
	if nbs[0].E != b.Entity {
		t.Errorf("neighbor = %v, want %v", nbs[0].E, b.Entity)
	}

	if got := s.Neighbors(a.Entity, 0.5); len(got) != 0 {
		t.Errorf("neighbors within 0.5 = %d, want 0 at distance 1", len(got))
	}
}

// ---------- Walking to destinations ----------

func TestWalkArrival(t *testing.T) {
	s := NewScene(8)
	east := s.AddWaypoint(components.Waypoint{Name: "east", Pos: r2.Vec{X: 18, Y: 5}, Radius: 1.5})
	west := s.AddWaypoint(components.Waypoint{Name: "west", Pos: r2.Vec{X: 2, Y: 5}, Radius: 1.5})

	a := s.Spawn(components.TypeAdult, r2.Vec{X: 5, Y: 5}, 0)
	a.AddDestination(east)
	a.AddDestination(west)

	var reached []string
	s.Subscribe(func(ev Event) {
		if ev.Type == EventDestination {
			reached = append(reached, ev.Name)
		}
	})

	for i := 0; i < 600 && len(reached) == 0; i++ {
		s.Step()
	}

	if len(reached) == 0 {
		t.Fatal("agent never reached its first destination")
	}
	if reached[0] != "east" {
		t.Errorf("first arrival = %q, want east", reached[0])
	}
	if a.CurrentDestination() != west {
		t.Errorf("cursor = %v, want advance to west after arrival", a.CurrentDestination())
	}
	if a.PreviousDestination() != east {
		t.Errorf("previous destination = %v, want east", a.PreviousDestination())
	}
}

// ---------- Reset ----------

func TestReset(t *testing.T) {
	s := NewScene(9)
	dest := s.AddWaypoint(components.Waypoint{Name: "target", Pos: r2.Vec{X: 15, Y: 5}, Radius: 1})
	a := s.Spawn(components.TypeAdult, r2.Vec{X: 5, Y: 5}, 1.0)
	a.AddDestination(dest)

	stepN(s, 50)

	k := a.Kin()
	if k.Pos == (r2.Vec{X: 5, Y: 5}) {
		t.Fatal("agent did not move during the run")
	}

	a.Reset()

	if k.Pos != (r2.Vec{X: 5, Y: 5}) {
		t.Errorf("Pos = %+v, want spawn position", k.Pos)
	}
	if k.Vel != (r2.Vec{}) || k.Acc != (r2.Vec{}) {
		t.Errorf("Vel, Acc = %+v, %+v, want zero", k.Vel, k.Acc)
	}
	if k.Dir != 1.0 {
		t.Errorf("Dir = %v, want spawn facing 1.0", k.Dir)
	}
	if a.SM.State() != components.StateNone {
		t.Errorf("state = %v, want none", a.SM.State())
	}
	if a.SM.MaxDuration() != 0 {
		t.Errorf("MaxDuration = %v, want 0", a.SM.MaxDuration())
	}
	if a.CurrentDestination() != dest {
		t.Errorf("cursor = %v, want back at the first destination", a.CurrentDestination())
	}

	// A second reset is a no-op.
	a.Reset()
	if k.Pos != (r2.Vec{X: 5, Y: 5}) || k.Dir != 1.0 || a.SM.State() != components.StateNone {
		t.Errorf("second Reset changed state: pos=%+v dir=%v state=%v", k.Pos, k.Dir, a.SM.State())
	}
}

// ---------- Force sanitization ----------

type nanForce struct{}

func (nanForce) Name() string          { return "Broken" }
func (nanForce) Compute(r2.Vec) r2.Vec { return r2.Vec{X: math.NaN()} }

func TestStep_SanitizesInvalidForce(t *testing.T) {
	s := NewScene(10)
	a := s.Spawn(components.TypeAdult, r2.Vec{X: 5, Y: 5}, 0)
	a.AddForce(nanForce{})

	s.Step()

	if got := s.SanitizedForces(); got != 1 {
		t.Errorf("SanitizedForces = %d, want 1", got)
	}
	k := a.Kin()
	if !systems.IsValidVec(k.Pos) || !systems.IsValidVec(k.Vel) || !systems.IsValidVec(k.Acc) {
		t.Errorf("kinematics corrupted: pos=%+v vel=%+v acc=%+v", k.Pos, k.Vel, k.Acc)
	}

	s.Step()
	if got := s.SanitizedForces(); got != 2 {
		t.Errorf("SanitizedForces after two ticks = %d, want 2", got)
	}
}
