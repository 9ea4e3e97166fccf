package swarm

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/lao-tseu-is-alive/go-drone-swarm/pkg/flock"
	"github.com/lao-tseu-is-alive/go-drone-swarm/pkg/geometry"
)

func agentAt(id int, x, y float64) *flock.Agent {
	return flock.NewAgent(id, geometry.Vector2D{X: x, Y: y}, geometry.Vector2D{X: 1}, 1, 1)
}

func newTestController(t *testing.T, agents ...*flock.Agent) *Controller {
	t.Helper()
	ctrl, err := NewController(DefaultConfig(), WithAgents(agents...))
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return ctrl
}

func pathIDs(path []flock.Agent) []int {
	ids := make([]int, len(path))
	for i, a := range path {
		ids[i] = a.ID
	}
	return ids
}

func TestNewController_Spawn(t *testing.T) {
	cfg := DefaultConfig()
	ctrl, err := NewController(cfg)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}

	snap := ctrl.Snapshot()
	if len(snap.Agents) != cfg.NumAgents || snap.Active != cfg.NumAgents {
		t.Fatalf("spawned %d agents (%d active); want %d", len(snap.Agents), snap.Active, cfg.NumAgents)
	}
	radius := float64(cfg.NumAgents) * cfg.AgentDensity
	for i, a := range snap.Agents {
		if a.ID != i {
			t.Errorf("agent %d has id %d", i, a.ID)
		}
		if d := a.Position.DistanceTo(cfg.Origin); d > radius {
			t.Errorf("agent %d spawned at distance %v; want <= %v", a.ID, d, radius)
		}
	}
	if snap.RunID == "" || snap.RunID != ctrl.RunID() {
		t.Errorf("run id = %q / %q", snap.RunID, ctrl.RunID())
	}
}

func TestNewController_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OuterRadius = cfg.DestructRadius
	if _, err := NewController(cfg); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("err = %v; want ErrInvalidInput", err)
	}
}

func TestNewController_DuplicateIDPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("duplicate agent id did not panic")
		}
	}()
	_, _ = NewController(DefaultConfig(), WithAgents(agentAt(1, 0, 0), agentAt(1, 1, 1)))
}

func TestController_TickDestroysOutsideRadius(t *testing.T) {
	ctrl := newTestController(t, agentAt(0, 0, 0), agentAt(1, 1, 0), agentAt(2, 20, 0))

	var events []flock.Event
	ctrl.Subscribe(func(e flock.Event) { events = append(events, e) })
	ctrl.Tick(0.1)

	snap := ctrl.Snapshot()
	if snap.Destroyed != 1 || snap.Tick != 1 {
		t.Errorf("snapshot = %d destroyed at tick %d; want 1 at 1", snap.Destroyed, snap.Tick)
	}
	if len(events) != 1 || events[0].AgentID != 2 || events[0].Current != flock.ZoneDestroyed {
		t.Errorf("events = %+v", events)
	}

	if _, err := ctrl.FindAgent(2); !errors.Is(err, ErrAlreadyDestroyed) {
		t.Errorf("FindAgent(2) err = %v; want ErrAlreadyDestroyed", err)
	}
	if _, err := ctrl.FindAgent(0); err != nil {
		t.Errorf("FindAgent(0): %v", err)
	}

	path, err := ctrl.RouteMessage(2)
	if !errors.Is(err, ErrAlreadyDestroyed) {
		t.Errorf("route to destroyed agent: err = %v; want ErrAlreadyDestroyed", err)
	}
	if len(path) == 0 || path[len(path)-1].ID != 2 {
		t.Errorf("route to destroyed agent must still report its path, got %v", pathIDs(path))
	}
}

func TestController_RouteFallsBackToPartitionB(t *testing.T) {
	// sorted by y: 10, 20 go to A; 30, 40 go to B
	ctrl := newTestController(t,
		agentAt(40, 0, 3),
		agentAt(10, 0, 0),
		agentAt(30, 0, 2),
		agentAt(20, 0, 1),
	)

	a, b := ctrl.Partitions()
	if a.Len() != 2 || b.Len() != 2 {
		t.Fatalf("partition sizes = %d/%d; want 2/2", a.Len(), b.Len())
	}

	path, err := ctrl.RouteMessage(40)
	if err != nil {
		t.Fatalf("RouteMessage(40): %v", err)
	}
	if got := pathIDs(path); !slices.Equal(got, []int{30, 40}) {
		t.Errorf("path = %v; want [30 40]", got)
	}

	path, err = ctrl.RouteMessage(20)
	if err != nil || !slices.Equal(pathIDs(path), []int{10, 20}) {
		t.Errorf("RouteMessage(20) = %v, %v; want [10 20]", pathIDs(path), err)
	}

	if _, err := ctrl.RouteMessage(99); !errors.Is(err, ErrNotFound) {
		t.Errorf("RouteMessage(99) err = %v; want ErrNotFound", err)
	}
}

func TestController_RouteReachesEverySpawnedAgent(t *testing.T) {
	ctrl, err := NewController(DefaultConfig())
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	for _, a := range ctrl.Snapshot().Agents {
		path, err := ctrl.RouteMessage(a.ID)
		if err != nil {
			t.Fatalf("RouteMessage(%d): %v", a.ID, err)
		}
		if last := path[len(path)-1]; last.ID != a.ID {
			t.Errorf("route to %d ends at %d", a.ID, last.ID)
		}
	}
}

func TestController_PartitionAndRebuildIsIdempotent(t *testing.T) {
	ctrl := newTestController(t, agentAt(0, 0, 4), agentAt(1, 0, 1), agentAt(2, 0, 3), agentAt(3, 0, 2), agentAt(4, 0, 0))

	a1, b1 := ctrl.Partitions()
	ctrl.PartitionAndRebuild()
	a2, b2 := ctrl.Partitions()

	if a1 == a2 || b1 == b2 {
		t.Error("rebuild must produce new trees")
	}
	if a2.Len() != 2 || b2.Len() != 3 {
		t.Errorf("sizes = %d/%d; want 2/3", a2.Len(), b2.Len())
	}
	for id := 0; id < 5; id++ {
		_, inA1 := a1.Search(id)
		_, inA2 := a2.Search(id)
		_, inB1 := b1.Search(id)
		_, inB2 := b2.Search(id)
		if inA1 != inA2 || inB1 != inB2 {
			t.Errorf("agent %d moved between partitions without any tick", id)
		}
	}

	// the registry order drives the simulator and must survive the sort
	snap := ctrl.Snapshot()
	for i, a := range snap.Agents {
		if a.ID != i {
			t.Fatalf("registry reordered: position %d holds agent %d", i, a.ID)
		}
	}
}

func TestController_FindByTemperature(t *testing.T) {
	far, near, gone := agentAt(1, 3, 0), agentAt(2, 1, 0), agentAt(3, 0.5, 0)
	other := agentAt(4, 0, 0)
	ctrl := newTestController(t, far, near, gone, other)
	far.Temperature, near.Temperature, gone.Temperature, other.Temperature = 40, 40, 40, 41
	gone.Destroy()

	a, err := ctrl.FindByTemperature(40)
	if err != nil {
		t.Fatalf("FindByTemperature(40): %v", err)
	}
	if a.ID != 2 {
		t.Errorf("found agent %d; want 2, the live match nearest to the origin", a.ID)
	}
	if _, err := ctrl.FindByTemperature(7); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindByTemperature(7) err = %v; want ErrNotFound", err)
	}
}

func TestController_SelfDestructAndRevive(t *testing.T) {
	ctrl := newTestController(t, agentAt(1, 0, 0), agentAt(2, 1, 1))
	var events []flock.Event
	ctrl.Subscribe(func(e flock.Event) { events = append(events, e) })

	if err := ctrl.SelfDestruct(1); err != nil {
		t.Fatalf("SelfDestruct(1): %v", err)
	}
	if err := ctrl.SelfDestruct(1); !errors.Is(err, ErrAlreadyDestroyed) {
		t.Errorf("second SelfDestruct err = %v; want ErrAlreadyDestroyed", err)
	}
	if err := ctrl.SelfDestruct(9); !errors.Is(err, ErrNotFound) {
		t.Errorf("SelfDestruct(9) err = %v; want ErrNotFound", err)
	}
	if _, err := ctrl.Distance(1, 2); !errors.Is(err, ErrAlreadyDestroyed) {
		t.Errorf("Distance with destroyed agent err = %v", err)
	}

	if err := ctrl.Revive(1); err != nil {
		t.Fatalf("Revive(1): %v", err)
	}
	if err := ctrl.Revive(2); err != nil {
		t.Errorf("Revive on a live agent must be a no-op, got %v", err)
	}
	if err := ctrl.Revive(9); !errors.Is(err, ErrNotFound) {
		t.Errorf("Revive(9) err = %v; want ErrNotFound", err)
	}
	a, err := ctrl.FindAgent(1)
	if err != nil || a.Status != flock.StatusActive {
		t.Errorf("revived agent = %v, %v", a.Status, err)
	}

	if len(events) != 2 {
		t.Fatalf("got %d events; want 2", len(events))
	}
	if events[0].Current != flock.ZoneDestroyed || events[1].Previous != flock.ZoneDestroyed || events[1].Current != flock.ZoneNominal {
		t.Errorf("events = %+v", events)
	}
}

func TestController_AgentSettings(t *testing.T) {
	ctrl := newTestController(t, agentAt(1, 0, 0), agentAt(2, 3, 4))

	d, err := ctrl.Distance(1, 2)
	if err != nil || math.Abs(d-5) > 1e-9 {
		t.Errorf("Distance(1, 2) = %v, %v; want 5", d, err)
	}

	if err := ctrl.SetDriveFactor(1, 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("SetDriveFactor(1, 0) err = %v; want ErrInvalidInput", err)
	}
	if err := ctrl.SetDriveFactor(9, 2); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetDriveFactor(9, 2) err = %v; want ErrNotFound", err)
	}
	if err := ctrl.SetMaxSpeed(1, 500); err != nil {
		t.Fatalf("SetMaxSpeed: %v", err)
	}
	if err := ctrl.SetDriveFactor(1, 12); err != nil {
		t.Fatalf("SetDriveFactor: %v", err)
	}
	a, _ := ctrl.FindAgent(1)
	if a.MaxSpeed != 100 || a.DriveFactor != 12 {
		t.Errorf("max speed %v drive factor %v; want 100 and 12", a.MaxSpeed, a.DriveFactor)
	}
}

func TestController_ReturnToBase(t *testing.T) {
	ctrl := newTestController(t, agentAt(1, 2, 2), agentAt(2, -3, 1), agentAt(3, 4, 0))
	_ = ctrl.SelfDestruct(3)

	if n := ctrl.ReturnToBase(); n != 2 {
		t.Errorf("ReturnToBase moved %d agents; want 2", n)
	}
	for _, a := range ctrl.Snapshot().Agents {
		atBase := a.Position.Eq(geometry.Zero)
		if a.Alive() != atBase {
			t.Errorf("agent %d (%s) at %v", a.ID, a.Status, a.Position)
		}
	}
}

func TestController_RouteBetween(t *testing.T) {
	ctrl := newTestController(t, agentAt(1, 0, 0), agentAt(2, 1, 0), agentAt(3, 2, 0), agentAt(4, 3, 0))
	for id := 1; id <= 5; id++ {
		ctrl.AddVertex(id)
	}
	for _, e := range [][2]int{{1, 2}, {2, 3}, {3, 4}} {
		if err := ctrl.Connect(e[0], e[1]); err != nil {
			t.Fatalf("Connect(%d, %d): %v", e[0], e[1], err)
		}
	}

	path, err := ctrl.RouteBetween(1, 4)
	if err != nil || !slices.Equal(path, []int{1, 2, 3, 4}) {
		t.Errorf("RouteBetween(1, 4) = %v, %v; want [1 2 3 4]", path, err)
	}
	if _, err := ctrl.RouteBetween(1, 5); !errors.Is(err, ErrNoRouteFound) {
		t.Errorf("RouteBetween(1, 5) err = %v; want ErrNoRouteFound", err)
	}
	if _, err := ctrl.RouteBetween(1, 9); !errors.Is(err, ErrMissingVertex) {
		t.Errorf("RouteBetween(1, 9) err = %v; want ErrMissingVertex", err)
	}
	if err := ctrl.Connect(1, 9); !errors.Is(err, ErrMissingVertex) {
		t.Errorf("Connect(1, 9) err = %v; want ErrMissingVertex", err)
	}

	_ = ctrl.SelfDestruct(3)
	if _, err := ctrl.RouteBetween(1, 3); !errors.Is(err, ErrAlreadyDestroyed) {
		t.Errorf("RouteBetween to destroyed agent err = %v; want ErrAlreadyDestroyed", err)
	}
}

func TestController_RouteBetweenSkipsDestroyedRelays(t *testing.T) {
	ctrl := newTestController(t, agentAt(1, 0, 0), agentAt(2, 1, 0), agentAt(3, 2, 0), agentAt(4, 1, 1))
	for id := 1; id <= 4; id++ {
		ctrl.AddVertex(id)
	}
	_ = ctrl.Connect(1, 2)
	_ = ctrl.Connect(2, 3)

	if err := ctrl.SelfDestruct(2); err != nil {
		t.Fatalf("SelfDestruct(2): %v", err)
	}
	path, err := ctrl.RouteBetween(1, 3)
	if !errors.Is(err, ErrNoRouteFound) || path != nil {
		t.Errorf("RouteBetween(1, 3) through destroyed relay = %v, %v; want ErrNoRouteFound", path, err)
	}

	_ = ctrl.Connect(1, 4)
	_ = ctrl.Connect(4, 3)
	path, err = ctrl.RouteBetween(1, 3)
	if err != nil || !slices.Equal(path, []int{1, 4, 3}) {
		t.Errorf("RouteBetween(1, 3) = %v, %v; want [1 4 3]", path, err)
	}

	if err := ctrl.Revive(2); err != nil {
		t.Fatalf("Revive(2): %v", err)
	}
	path, err = ctrl.RouteBetween(1, 3)
	if err != nil || !slices.Equal(path, []int{1, 2, 3}) {
		t.Errorf("after revive RouteBetween(1, 3) = %v, %v; want [1 2 3]", path, err)
	}
}

func TestController_LinkNeighbors(t *testing.T) {
	ctrl := newTestController(t, agentAt(1, 0, 0), agentAt(2, 1, 0), agentAt(3, 2, 0), agentAt(4, 9, 0))

	if edges := ctrl.LinkNeighbors(1.5); edges != 2 {
		t.Errorf("LinkNeighbors added %d edges; want 2", edges)
	}
	if ctrl.Graph().Len() != 4 {
		t.Errorf("graph has %d vertices; want 4", ctrl.Graph().Len())
	}
	path, err := ctrl.RouteBetween(1, 3)
	if err != nil || !slices.Equal(path, []int{1, 2, 3}) {
		t.Errorf("RouteBetween(1, 3) = %v, %v", path, err)
	}
	if _, err := ctrl.RouteBetween(1, 4); !errors.Is(err, ErrNoRouteFound) {
		t.Errorf("isolated agent: err = %v; want ErrNoRouteFound", err)
	}
}

func BenchmarkController_Tick(b *testing.B) {
	cfg := DefaultConfig()
	cfg.NumAgents = 500
	cfg.AgentDensity = 0.01
	ctrl, err := NewController(cfg)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ctrl.Tick(1.0 / 60)
	}
}
