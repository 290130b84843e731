package sim

import (
	"math"
	"testing"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ambleworks/crowd/components"
)

// ---------- Initial dispatch ----------

func TestInitialTransition(t *testing.T) {
	t.Run("walker with destinations", func(t *testing.T) {
		s := NewScene(11)
		w := s.AddWaypoint(components.Waypoint{Name: "out", Pos: r2.Vec{X: 15, Y: 5}, Radius: 1})
		a := s.Spawn(components.TypeAdult, r2.Vec{X: 5, Y: 5}, 0)
		a.AddDestination(w)
		s.Step()
		if a.SM.State() != components.StateWalking {
			t.Errorf("state = %v, want walking", a.SM.State())
		}
	})

	t.Run("no destinations", func(t *testing.T) {
		s := NewScene(12)
		a := s.Spawn(components.TypeAdult, r2.Vec{X: 5, Y: 5}, 0)
		s.Step()
		if a.SM.State() != components.StateWaiting {
			t.Errorf("state = %v, want waiting", a.SM.State())
		}
	})

	t.Run("robot", func(t *testing.T) {
		s := NewScene(13)
		r := s.Spawn(components.TypeRobot, r2.Vec{X: 5, Y: 5}, 0)
		s.Step()
		if r.SM.State() != components.StateDriving {
			t.Errorf("state = %v, want driving", r.SM.State())
		}
	})

	t.Run("group member", func(t *testing.T) {
		s := NewScene(14)
		w := s.AddWaypoint(components.Waypoint{Name: "out", Pos: r2.Vec{X: 15, Y: 5}, Radius: 1})
		a := s.Spawn(components.TypeAdult, r2.Vec{X: 5, Y: 5}, 0)
		b := s.Spawn(components.TypeAdult, r2.Vec{X: 6, Y: 5}, 0)
		s.NewGroup([]ecs.Entity{a.Entity, b.Entity}, []components.WaypointID{w})
		s.Step()
		if a.SM.State() != components.StateGroupWalking || b.SM.State() != components.StateGroupWalking {
			t.Errorf("states = %v, %v, want group-walking for both members",
				a.SM.State(), b.SM.State())
		}
	})
}

// ---------- Waiting expiry ----------

func TestWaitingExpiryCycle(t *testing.T) {
	s := NewScene(21)
	a := s.Spawn(components.TypeAdult, r2.Vec{X: 5, Y: 5}, 0)

	var log []components.StateID
	s.Subscribe(func(ev Event) {
		if ev.Type == EventState {
			log = append(log, ev.NewState)
		}
	})

	s.Step()
	if a.SM.State() != components.StateWaiting {
		t.Fatalf("state = %v, want waiting", a.SM.State())
	}
	md := a.SM.MaxDuration()
	if md < 4.5-1e-9 || md > 5.5+1e-9 {
		t.Errorf("waiting duration = %v, want within 10%% of the 5s base", md)
	}

	stepN(s, 299)

	// A destination-less walker oscillates: waiting expires into walking,
	// which immediately falls back to waiting.
	if len(log) < 3 {
		t.Fatalf("observed %d transitions in 15s, want at least 3", len(log))
	}
	for i, st := range log {
		want := components.StateWaiting
		if i%2 == 1 {
			want = components.StateWalking
		}
		if st != want {
			t.Errorf("transition %d = %v, want %v", i, st, want)
		}
	}
}

func TestWaitingPicksUpNewDestination(t *testing.T) {
	s := NewScene(22)
	a := s.Spawn(components.TypeAdult, r2.Vec{X: 5, Y: 5}, 0)
	w := s.AddWaypoint(components.Waypoint{Name: "out", Pos: r2.Vec{X: 15, Y: 5}, Radius: 1})

	s.Step()
	if a.SM.State() != components.StateWaiting {
		t.Fatalf("state = %v, want waiting", a.SM.State())
	}

	a.AddDestination(w)
	s.Step()

	if a.SM.State() != components.StateWalking {
		t.Errorf("state = %v, want walking once a destination exists", a.SM.State())
	}
}

// ---------- Waypoint-kind dispatch ----------

func TestShelfDispatch(t *testing.T) {
	s := NewScene(31)
	shelf := s.AddWaypoint(components.Waypoint{
		Name: "counter", Pos: r2.Vec{X: 5, Y: 5}, Radius: 1,
		Kind: components.WaypointShelf, StaticAngle: math.Pi / 2,
	})
	a := s.Spawn(components.TypeAdult, r2.Vec{X: 5, Y: 5}, 0)
	a.AddDestination(shelf)

	s.Step()
	if a.SM.State() != components.StateWalking {
		t.Fatalf("state after dispatch = %v, want walking", a.SM.State())
	}
	s.Step()
	if a.SM.State() != components.StateReachedShelf {
		t.Fatalf("state at the shelf = %v, want reached-shelf", a.SM.State())
	}
	if a.LastInteracted != shelf {
		t.Errorf("LastInteracted = %v, want the shelf", a.LastInteracted)
	}
	if len(a.MoveList()) == 0 {
		t.Fatal("no approach script was synthesized")
	}

	for i := 0; i < 400 && a.SM.State() != components.StateShopping; i++ {
		s.Step()
	}
	if a.SM.State() != components.StateShopping {
		t.Fatalf("state after the approach = %v, want shopping", a.SM.State())
	}
	if a.SM.Attraction() != shelf {
		t.Errorf("attraction = %v, want the interacted shelf", a.SM.Attraction())
	}
}

func TestQueueSlots(t *testing.T) {
	s := NewScene(41)
	q := s.AddWaypoint(components.Waypoint{
		Name: "till", Pos: r2.Vec{X: 10, Y: 5}, Radius: 1,
		Kind: components.WaypointQueue, StaticAngle: 0,
	})
	a1 := s.Spawn(components.TypeAdult, r2.Vec{X: 10, Y: 5}, 0)
	a1.AddDestination(q)
	a2 := s.Spawn(components.TypeAdult, r2.Vec{X: 10.2, Y: 5}, 0)
	a2.AddDestination(q)

	stepN(s, 2)

	if a1.SM.State() != components.StateQueueing || a2.SM.State() != components.StateQueueing {
		t.Fatalf("states = %v, %v, want queueing for both", a1.SM.State(), a2.SM.State())
	}

	p1, ok := a1.SM.ActivePlanner().(*QueueingPlanner)
	if !ok {
		t.Fatalf("active planner = %T, want queueing", a1.SM.ActivePlanner())
	}
	p2 := a2.SM.ActivePlanner().(*QueueingPlanner)

	// First joiner takes the waypoint itself, the second a slot one spacing
	// behind it along the static angle.
	s1 := p1.CurrentWaypoint()
	if s1 == nil || s1.Pos != (r2.Vec{X: 10, Y: 5}) {
		t.Errorf("first slot = %+v, want the queue head (10, 5)", s1)
	}
	s2 := p2.CurrentWaypoint()
	if s2 == nil {
		t.Fatal("second slot missing")
	}
	if math.Abs(s2.Pos.X-11.5) > 1e-12 || math.Abs(s2.Pos.Y-5) > 1e-12 {
		t.Errorf("second slot = %+v, want (11.5, 5)", s2.Pos)
	}

	if md := a1.SM.MaxDuration(); md < 9-1e-9 || md > 11+1e-9 {
		t.Errorf("queueing duration = %v, want within 10%% of the 10s base", md)
	}
}

func TestWorkDispatch(t *testing.T) {
	s := NewScene(42)
	post := s.AddWaypoint(components.Waypoint{
		Name: "post", Pos: r2.Vec{X: 5, Y: 5}, Radius: 1,
		Kind: components.WaypointWork, StaticAngle: 0,
	})
	a := s.Spawn(components.TypeAdult, r2.Vec{X: 5, Y: 5}, 0)
	a.AddDestination(post)

	stepN(s, 2)

	if a.SM.State() != components.StateWorking {
		t.Errorf("state = %v, want working", a.SM.State())
	}
	if a.LastInteracted != post {
		t.Errorf("LastInteracted = %v, want the work post", a.LastInteracted)
	}
}

func TestAttractionDispatch(t *testing.T) {
	s := NewScene(43)
	w := s.AddWaypoint(components.Waypoint{
		Name: "stand", Pos: r2.Vec{X: 5, Y: 5}, Radius: 1,
		Kind: components.WaypointAttraction,
	})
	a := s.Spawn(components.TypeAdult, r2.Vec{X: 5, Y: 5}, 0)
	a.AddDestination(w)

	stepN(s, 2)

	if a.SM.State() != components.StateShopping {
		t.Fatalf("state = %v, want shopping", a.SM.State())
	}
	if a.SM.Attraction() != w {
		t.Errorf("attraction = %v, want the reached waypoint", a.SM.Attraction())
	}
}

func TestLoseAttraction(t *testing.T) {
	s := NewScene(44)
	w := s.AddWaypoint(components.Waypoint{
		Name: "stand", Pos: r2.Vec{X: 5, Y: 5}, Radius: 1,
		Kind: components.WaypointAttraction,
	})
	a := s.Spawn(components.TypeAdult, r2.Vec{X: 5, Y: 5}, 0)
	a.AddDestination(w)

	stepN(s, 2)
	if a.SM.State() != components.StateShopping {
		t.Fatalf("state = %v, want shopping", a.SM.State())
	}

	a.SM.LoseAttraction()
	s.Step()

	if a.SM.State() != components.StateWalking {
		t.Errorf("state = %v, want fallback to walking", a.SM.State())
	}
	if a.SM.Attraction() != components.NoWaypoint {
		t.Errorf("attraction = %v, want cleared", a.SM.Attraction())
	}
}

// ---------- Conversations ----------

func TestTalkingPair(t *testing.T) {
	s := NewScene(51)
	a1 := s.Spawn(components.TypeAdult, r2.Vec{X: 5, Y: 5}, 0)
	a2 := s.Spawn(components.TypeAdult, r2.Vec{X: 6, Y: 5}, 0)

	s.Step()
	a1.TalkingTo = a2.Entity
	a1.SM.activateState(components.StateTalking)

	s.Step()

	if a2.SM.State() != components.StateListening {
		t.Fatalf("state = %v, want listening", a2.SM.State())
	}
	if a2.ListeningTo != a1.Entity {
		t.Errorf("ListeningTo = %v, want the speaker", a2.ListeningTo)
	}
	if a2.KeepDistance() != 0.3 {
		t.Errorf("KeepDistance = %v, want the 0.3 minimum standoff for a single listener",
			a2.KeepDistance())
	}
	if a2.ForceDisabled(ForceKeepDistance) {
		t.Error("keep-distance force must be enabled while listening")
	}

	// The speaker breaks off; the listener falls back next tick.
	a1.SM.activateState(components.StateWaiting)
	s.Step()

	if a2.SM.State() != components.StateWalking {
		t.Errorf("state = %v, want fallback to walking", a2.SM.State())
	}
	if a2.ListeningTo != (ecs.Entity{}) {
		t.Errorf("ListeningTo = %v, want cleared", a2.ListeningTo)
	}
	if a2.KeepDistance() != 0 {
		t.Errorf("KeepDistance = %v, want 0 after leaving the conversation", a2.KeepDistance())
	}
	if !a2.ForceDisabled(ForceKeepDistance) {
		t.Error("keep-distance force must be disabled after leaving the conversation")
	}
}

func TestListenerStandoffSpacing(t *testing.T) {
	s := NewScene(52)
	teller := s.Spawn(components.TypeAdult, r2.Vec{X: 5, Y: 5}, 0)
	listeners := []*Agent{
		s.Spawn(components.TypeAdult, r2.Vec{X: 5.5, Y: 5}, 0),
		s.Spawn(components.TypeAdult, r2.Vec{X: 4.5, Y: 5}, 0),
		s.Spawn(components.TypeAdult, r2.Vec{X: 5, Y: 5.5}, 0),
		s.Spawn(components.TypeAdult, r2.Vec{X: 5, Y: 4.5}, 0),
	}

	s.Step()
	teller.SM.activateState(components.StateTellStory)
	s.Step()

	for i, l := range listeners {
		if l.SM.State() != components.StateListening {
			t.Fatalf("listener %d state = %v, want listening", i, l.SM.State())
		}
		if l.TalkCenter() != teller.TalkCenter() {
			t.Errorf("listener %d talk center = %+v, want the teller's %+v",
				i, l.TalkCenter(), teller.TalkCenter())
		}
	}

	// Standoffs settle once every listener has seen the full circle.
	s.Step()

	want := 4 * 1.5 / (2 * math.Pi)
	for i, l := range listeners {
		if got := l.KeepDistance(); math.Abs(got-want) > 1e-9 {
			t.Errorf("listener %d standoff = %v, want %v for four co-listeners", i, got, want)
		}
	}
}

func TestGroupTalkHostAnchors(t *testing.T) {
	s := NewScene(53)
	host := s.Spawn(components.TypeAdult, r2.Vec{X: 5, Y: 5}, 0)

	s.Step()
	host.SM.activateState(components.StateGroupTalking)

	if host.ForceDisabled(ForceKeepDistance) {
		t.Error("keep-distance force must be enabled for the group-talk host")
	}
	if host.TalkCenter() != host.Kin().Pos {
		t.Errorf("talk center = %+v, want the host position %+v", host.TalkCenter(), host.Kin().Pos)
	}

	host.SM.activateState(components.StateWaiting)

	if !host.ForceDisabled(ForceKeepDistance) {
		t.Error("keep-distance force must be disabled after the talk ends")
	}
	if host.TalkCenter() != (r2.Vec{}) {
		t.Errorf("talk center = %+v, want cleared", host.TalkCenter())
	}
}

// ---------- Service flow ----------

func TestServiceFlow(t *testing.T) {
	s := NewScene(61)
	ped := s.Spawn(components.TypeAdult, r2.Vec{X: 5, Y: 5}, 0)
	robot := s.Spawn(components.TypeServiceRobot, r2.Vec{X: 9, Y: 5}, math.Pi)

	s.Step()
	if robot.SM.State() != components.StateDriving {
		t.Fatalf("robot state = %v, want driving", robot.SM.State())
	}

	ped.SM.activateState(components.StateRequestingService)
	s.Step()

	if robot.SM.State() != components.StateDrivingToInteraction {
		t.Fatalf("robot state = %v, want driving-to-interaction", robot.SM.State())
	}
	if robot.Servicing != ped.Entity {
		t.Errorf("Servicing = %v, want the requester", robot.Servicing)
	}
	ids := s.WaypointIDs()
	if len(ids) != 1 {
		t.Fatalf("waypoint count = %d, want the synthesized rendezvous", len(ids))
	}
	w := s.Waypoint(ids[0])
	if w.Name != "service_destination" || w.Kind != components.WaypointService {
		t.Errorf("rendezvous = %q kind %v, want service_destination of service kind", w.Name, w.Kind)
	}
	if w.Radius != 1.0 {
		t.Errorf("rendezvous radius = %v, want the service proximity 1.0", w.Radius)
	}

	for i := 0; i < 300 && robot.SM.State() != components.StateProvidingService; i++ {
		s.Step()
	}
	if robot.SM.State() != components.StateProvidingService {
		t.Fatalf("robot never arrived, state = %v", robot.SM.State())
	}
	if ped.SM.State() != components.StateReceivingService {
		t.Errorf("requester state = %v, want receiving-service", ped.SM.State())
	}
	if ped.ServedBy != robot.Entity {
		t.Errorf("ServedBy = %v, want the robot", ped.ServedBy)
	}
	if robot.Kin().Vel != (r2.Vec{}) {
		t.Errorf("robot velocity = %+v, want pinned while providing", robot.Kin().Vel)
	}

	for i := 0; i < 400 && robot.SM.State() == components.StateProvidingService; i++ {
		s.Step()
	}
	// One more tick so the requester observes the robot leaving.
	s.Step()

	if robot.SM.State() != components.StateDriving {
		t.Errorf("robot state after service = %v, want driving", robot.SM.State())
	}
	if robot.Servicing != (ecs.Entity{}) {
		t.Errorf("Servicing = %v, want cleared after service", robot.Servicing)
	}
	if ped.SM.State() == components.StateReceivingService {
		t.Error("requester still receiving after the robot finished")
	}
}

// ---------- Group destination advance ----------

func TestGroupAdvanceOncePerTick(t *testing.T) {
	s := NewScene(71)
	wa := s.AddWaypoint(components.Waypoint{Name: "a", Pos: r2.Vec{X: 5, Y: 5}, Radius: 2})
	wb := s.AddWaypoint(components.Waypoint{Name: "b", Pos: r2.Vec{X: 5.8, Y: 5}, Radius: 2})
	wc := s.AddWaypoint(components.Waypoint{Name: "c", Pos: r2.Vec{X: 6.4, Y: 5}, Radius: 2})

	m1 := s.Spawn(components.TypeAdult, r2.Vec{X: 5.6, Y: 5}, 0)
	m2 := s.Spawn(components.TypeAdult, r2.Vec{X: 5.7, Y: 5}, 0)
	m3 := s.Spawn(components.TypeAdult, r2.Vec{X: 5.5, Y: 5}, 0)
	g := s.NewGroup(
		[]ecs.Entity{m1.Entity, m2.Entity, m3.Entity},
		[]components.WaypointID{wa, wb, wc},
	)

	s.Step()
	if g.CurrentDestination() != wa {
		t.Fatalf("cursor = %v before any completion, want the first destination", g.CurrentDestination())
	}

	// The centroid sits inside all three radii, so each member observes
	// completion this tick; the shared cursor must still move only once.
	s.Step()
	if g.CurrentDestination() != wb {
		t.Errorf("cursor = %v, want a single advance to the second destination", g.CurrentDestination())
	}
}

// ---------- Robot shelf cycle ----------

func TestRobotForkCycle(t *testing.T) {
	s := NewScene(81)
	shelf := s.AddWaypoint(components.Waypoint{
		Name: "rack", Pos: r2.Vec{X: 5, Y: 5}, Radius: 1,
		Kind: components.WaypointShelf, StaticAngle: math.Pi / 2,
	})
	lane := s.AddWaypoint(components.Waypoint{Name: "lane", Pos: r2.Vec{X: 15, Y: 5}, Radius: 1.5})

	r := s.Spawn(components.TypeRobot, r2.Vec{X: 5, Y: 5}, math.Pi/2)
	r.AddDestination(shelf)
	r.AddDestination(lane)

	seen := map[components.StateID]bool{}
	s.Subscribe(func(ev Event) {
		if ev.Type == EventState {
			seen[ev.NewState] = true
		}
	})

	var forkDir float64
	var forkDirSeen bool
	for i := 0; i < 900; i++ {
		s.Step()
		if r.SM.State() == components.StateLiftingForks && !forkDirSeen {
			forkDir = r.Kin().Dir
			forkDirSeen = true
		}
		if seen[components.StateBackUp] && r.SM.State() == components.StateDriving {
			break
		}
	}

	for _, st := range []components.StateID{
		components.StateReachedShelf,
		components.StateLiftingForks,
		components.StateLoading,
		components.StateLoweringForks,
		components.StateBackUp,
	} {
		if !seen[st] {
			t.Errorf("state %v never entered during the shelf cycle", st)
		}
	}
	if r.SM.State() != components.StateDriving {
		t.Errorf("state after the cycle = %v, want driving", r.SM.State())
	}
	if !forkDirSeen {
		t.Fatal("lifting-forks was never observed mid-run")
	}
	if math.Abs(forkDir-math.Pi/2) > 1e-9 {
		t.Errorf("facing during fork work = %v, want the shelf's static angle", forkDir)
	}
	if r.CurrentDestination() != lane {
		t.Errorf("cursor = %v, want advance to the lane while backing up", r.CurrentDestination())
	}
}
