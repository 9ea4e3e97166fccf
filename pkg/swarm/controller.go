package swarm

import (
	"cmp"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/google/uuid"
	"github.com/lao-tseu-is-alive/go-drone-swarm/pkg/flock"
	"github.com/lao-tseu-is-alive/go-drone-swarm/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-drone-swarm/pkg/partition"
	"github.com/lao-tseu-is-alive/go-drone-swarm/pkg/routing"
	golog "github.com/tochemey/goakt/v3/log"
)

// byID orders both partition trees by agent identifier.
var byID = partition.KeyFunc[*flock.Agent](func(a *flock.Agent) int { return a.ID })

// Snapshot is a read-only copy of the swarm, safe to hand to a renderer.
type Snapshot struct {
	RunID     string
	Tick      uint64
	Agents    []flock.Agent
	Active    int
	Warning   int
	Destroyed int
}

// Controller owns the agent set, the simulator, both partition trees and the routing graph.
// It is not safe for concurrent use; SwarmActor serializes access when needed.
type Controller struct {
	runID    string
	cfg      *Config
	logger   golog.Logger
	registry *Registry
	sim      *flock.Simulator
	grid     *flock.Grid
	graph    *routing.Graph

	partitionA *partition.Index[*flock.Agent]
	partitionB *partition.Index[*flock.Agent]

	initial     []*flock.Agent
	subscribers []func(flock.Event)
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger of the controller and of its simulator.
func WithLogger(l golog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithAgents replaces the random spawn by the given agents.
// A duplicate identifier panics.
func WithAgents(agents ...*flock.Agent) Option {
	return func(c *Controller) { c.initial = agents }
}

// NewController validates cfg, spawns the swarm and builds the first partitions.
func NewController(cfg *Config, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		runID:    uuid.NewString(),
		cfg:      cfg,
		logger:   golog.DiscardLogger,
		registry: NewRegistry(),
		grid:     flock.NewGrid(cfg.NeighborRadius),
		graph:    routing.NewGraph(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.sim = flock.NewSimulator(
		flock.NewDefaultRule(cfg.CohesionWeight, cfg.AlignmentWeight, cfg.AvoidanceWeight),
		flock.Params{NeighborRadius: cfg.NeighborRadius, AvoidanceMultiplier: cfg.AvoidanceRadiusMultiplier},
		flock.Zones{Inner: cfg.InnerRadius, Outer: cfg.OuterRadius, Destruct: cfg.DestructRadius},
		cfg.Origin,
		flock.WithWorkers(cfg.Workers),
		flock.WithLogger(c.logger),
		flock.WithEventHandler(c.publish),
		flock.WithRand(rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1))),
	)

	if c.initial != nil {
		for _, a := range c.initial {
			c.registry.Add(a)
		}
		c.initial = nil
	} else {
		c.spawn(rand.New(rand.NewPCG(cfg.Seed, cfg.Seed)))
	}

	c.logger.Infof("swarm %s: %d agents around %s", c.runID, c.registry.Len(), cfg.Origin)
	c.PartitionAndRebuild()
	return c, nil
}

// spawn places NumAgents inside a circle of radius NumAgents*AgentDensity with random headings.
func (c *Controller) spawn(rng *rand.Rand) {
	radius := float64(c.cfg.NumAgents) * c.cfg.AgentDensity
	for i := 0; i < c.cfg.NumAgents; i++ {
		offset := geometry.NewVectorPolar(radius*math.Sqrt(rng.Float64()), 2*math.Pi*rng.Float64())
		heading := geometry.NewVectorPolar(1, 2*math.Pi*rng.Float64())
		c.registry.Add(flock.NewAgent(i, c.cfg.Origin.Add(offset), heading, c.cfg.DriveFactor, c.cfg.MaxSpeed))
	}
}

// RunID identifies this swarm instance in logs and snapshots.
func (c *Controller) RunID() string {
	return c.runID
}

// Subscribe registers fn for every zone change, including explicit destruct and revive.
func (c *Controller) Subscribe(fn func(flock.Event)) {
	c.subscribers = append(c.subscribers, fn)
}

func (c *Controller) publish(e flock.Event) {
	for _, fn := range c.subscribers {
		fn(e)
	}
}

// Tick advances the simulation by dt seconds.
func (c *Controller) Tick(dt float64) {
	c.sim.Tick(c.registry.All(), c.grid, dt)
}

// FindAgent returns a copy of the agent. A destroyed agent is returned together with ErrAlreadyDestroyed.
func (c *Controller) FindAgent(id int) (flock.Agent, error) {
	a, ok := c.registry.Get(id)
	if !ok {
		return flock.Agent{}, fmt.Errorf("find %d: %w", id, ErrNotFound)
	}
	if !a.Alive() {
		return *a, fmt.Errorf("find %d: %w", id, ErrAlreadyDestroyed)
	}
	return *a, nil
}

// FindByTemperature returns the live agent reporting exactly level that is nearest to the origin.
func (c *Controller) FindByTemperature(level int) (flock.Agent, error) {
	var (
		best     *flock.Agent
		bestDist = math.MaxFloat64
	)
	for _, a := range c.registry.All() {
		if !a.Alive() || a.Temperature != level {
			continue
		}
		if d := a.Position.DistanceTo(c.cfg.Origin); d < bestDist {
			best, bestDist = a, d
		}
	}
	if best == nil {
		return flock.Agent{}, fmt.Errorf("temperature %d: %w", level, ErrNotFound)
	}
	return *best, nil
}

func (c *Controller) liveAgent(id int) (*flock.Agent, error) {
	a, ok := c.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("agent %d: %w", id, ErrNotFound)
	}
	if !a.Alive() {
		return nil, fmt.Errorf("agent %d: %w", id, ErrAlreadyDestroyed)
	}
	return a, nil
}

// SelfDestruct destroys a live agent.
func (c *Controller) SelfDestruct(id int) error {
	a, err := c.liveAgent(id)
	if err != nil {
		return err
	}
	previous := a.Zone
	a.Destroy()
	c.logger.Infof("agent %d self-destructed", id)
	c.publish(flock.Event{Tick: c.sim.Ticks(), AgentID: id, Previous: previous, Current: flock.ZoneDestroyed})
	return nil
}

// Revive brings a destroyed agent back. Reviving a live agent does nothing.
// An agent revived beyond the destruct radius is destroyed again on the next tick.
func (c *Controller) Revive(id int) error {
	a, ok := c.registry.Get(id)
	if !ok {
		return fmt.Errorf("revive %d: %w", id, ErrNotFound)
	}
	if a.Revive() {
		c.logger.Infof("agent %d revived", id)
		c.publish(flock.Event{Tick: c.sim.Ticks(), AgentID: id, Previous: flock.ZoneDestroyed, Current: a.Zone})
	}
	return nil
}

// SetDriveFactor changes how strongly the flocking rule drives one agent.
func (c *Controller) SetDriveFactor(id int, f float64) error {
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("drive factor %v: %w", f, ErrInvalidInput)
	}
	a, ok := c.registry.Get(id)
	if !ok {
		return fmt.Errorf("agent %d: %w", id, ErrNotFound)
	}
	a.DriveFactor = f
	return nil
}

// SetMaxSpeed changes the speed limit of one agent, clamped to 100.
func (c *Controller) SetMaxSpeed(id int, s float64) error {
	if s <= 0 || math.IsNaN(s) {
		return fmt.Errorf("max speed %v: %w", s, ErrInvalidInput)
	}
	a, ok := c.registry.Get(id)
	if !ok {
		return fmt.Errorf("agent %d: %w", id, ErrNotFound)
	}
	a.MaxSpeed = flock.ClampSpeed(s)
	return nil
}

// Distance returns the distance between two live agents.
func (c *Controller) Distance(id1, id2 int) (float64, error) {
	a, err := c.liveAgent(id1)
	if err != nil {
		return 0, err
	}
	b, err := c.liveAgent(id2)
	if err != nil {
		return 0, err
	}
	return a.Position.DistanceTo(b.Position), nil
}

// ReturnToBase moves every live agent to the origin and returns how many moved.
func (c *Controller) ReturnToBase() int {
	n := 0
	for _, a := range c.registry.All() {
		if a.Alive() {
			a.Position = c.cfg.Origin
			n++
		}
	}
	return n
}

// PartitionAndRebuild sorts the agents by ascending y, splits them at the median
// index and builds two fresh trees keyed by identifier: the lower half goes to
// partition A, the upper half to partition B. The previous trees are discarded.
func (c *Controller) PartitionAndRebuild() {
	sorted := slices.Clone(c.registry.All())
	slices.SortStableFunc(sorted, func(a, b *flock.Agent) int {
		return cmp.Compare(a.Position.Y, b.Position.Y)
	})

	median := len(sorted) / 2
	a := partition.New[*flock.Agent](byID)
	b := partition.New[*flock.Agent](byID)
	for i, agent := range sorted {
		if i < median {
			a.Insert(agent)
		} else {
			b.Insert(agent)
		}
	}
	c.partitionA, c.partitionB = a, b
	c.logger.Infof("partitions rebuilt: A=%d (depth %d) B=%d (depth %d)", a.Len(), a.Depth(), b.Len(), b.Depth())
}

// Partitions returns the current trees.
func (c *Controller) Partitions() (a, b *partition.Index[*flock.Agent]) {
	return c.partitionA, c.partitionB
}

// RouteMessage hops through partition A's tree and, only if the target is not
// there, through partition B's. The hops of the partition holding the target are
// returned. A destroyed target is reported with ErrAlreadyDestroyed along with the path.
func (c *Controller) RouteMessage(targetID int) ([]flock.Agent, error) {
	hops, found := c.partitionA.RouteMessage(targetID)
	if !found {
		hops, found = c.partitionB.RouteMessage(targetID)
	}
	if !found {
		c.logger.Warnf("route to %d: target not found in either partition", targetID)
		return nil, fmt.Errorf("route to %d: %w", targetID, ErrNotFound)
	}

	path := make([]flock.Agent, len(hops))
	for i, h := range hops {
		path[i] = *h
	}
	c.logger.Debugf("message routed through %d agents to reach %d", len(path), targetID)

	if target := hops[len(hops)-1]; !target.Alive() {
		return path, fmt.Errorf("route to %d: %w", targetID, ErrAlreadyDestroyed)
	}
	return path, nil
}

// AddVertex registers id in the routing graph.
func (c *Controller) AddVertex(id int) {
	c.graph.AddVertex(id)
}

// Connect links two registered vertices of the routing graph.
func (c *Controller) Connect(a, b int) error {
	return c.graph.Connect(a, b)
}

// Graph exposes the routing graph, for setup from a topology file.
func (c *Controller) Graph() *routing.Graph {
	return c.graph
}

// LinkNeighbors registers every live agent as a vertex and connects each pair
// closer than radius. It returns the number of edges added.
func (c *Controller) LinkNeighbors(radius float64) int {
	live := make([]*flock.Agent, 0, c.registry.Len())
	for _, a := range c.registry.All() {
		if a.Alive() {
			live = append(live, a)
			c.graph.AddVertex(a.ID)
		}
	}

	edges := 0
	rSq := radius * radius
	for i, a := range live {
		for _, b := range live[i+1:] {
			if a.Position.DistanceSquaredTo(b.Position) <= rSq {
				_ = c.graph.Connect(a.ID, b.ID)
				edges++
			}
		}
	}
	return edges
}

// RouteBetween routes over the routing graph. Identifiers naming a destroyed
// agent fail with ErrAlreadyDestroyed before any search, and destroyed agents
// never relay: without a live path the route fails with ErrNoRouteFound.
func (c *Controller) RouteBetween(source, target int) ([]int, error) {
	for _, id := range []int{source, target} {
		if a, ok := c.registry.Get(id); ok && !a.Alive() {
			return nil, fmt.Errorf("route %d to %d: agent %d: %w", source, target, id, ErrAlreadyDestroyed)
		}
	}
	path, err := c.graph.RouteMessageAvoiding(source, target, c.isDestroyed)
	if err != nil {
		c.logger.Warnf("graph route %d to %d: %v", source, target, err)
		return nil, err
	}
	return path, nil
}

func (c *Controller) isDestroyed(id int) bool {
	a, ok := c.registry.Get(id)
	return ok && !a.Alive()
}

// Snapshot copies the current agent set.
func (c *Controller) Snapshot() *Snapshot {
	snap := &Snapshot{
		RunID:  c.runID,
		Tick:   c.sim.Ticks(),
		Agents: make([]flock.Agent, 0, c.registry.Len()),
	}
	for _, a := range c.registry.All() {
		snap.Agents = append(snap.Agents, *a)
		switch a.Status {
		case flock.StatusActive:
			snap.Active++
		case flock.StatusWarning:
			snap.Warning++
		case flock.StatusDestroyed:
			snap.Destroyed++
		}
	}
	return snap
}
