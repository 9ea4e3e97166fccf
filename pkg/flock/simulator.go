package flock

import (
	"math/rand/v2"

	"github.com/lao-tseu-is-alive/go-drone-swarm/pkg/geometry"
	golog "github.com/tochemey/goakt/v3/log"
	"golang.org/x/sync/errgroup"
)

// Zones holds the ascending lifecycle radii measured from the swarm origin.
type Zones struct {
	Inner    float64
	Outer    float64
	Destruct float64
}

// Classify maps a distance from the origin to its zone. Bounds are inclusive.
func (z Zones) Classify(distance float64) Zone {
	switch {
	case distance <= z.Inner:
		return ZoneNominal
	case distance <= z.Outer:
		return ZoneCaution
	case distance <= z.Destruct:
		return ZoneWarning
	default:
		return ZoneDestroyed
	}
}

// Event reports a zone change of one agent. Presentation layers subscribe to
// these to drive flashing or highlight effects; the core never times anything.
type Event struct {
	Tick     uint64
	AgentID  int
	Previous Zone
	Current  Zone
}

// Simulator advances the flock one step at a time.
// All agents read the state of the previous step: velocities are computed
// first for everybody, then committed together.
type Simulator struct {
	rule    FlockingRule
	params  Params
	zones   Zones
	origin  geometry.Vector2D
	workers int
	rng     *rand.Rand
	logger  golog.Logger
	onEvent func(Event)

	tick       uint64
	velocities []geometry.Vector2D
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithWorkers spreads the velocity computation over n goroutines. n <= 1 runs inline.
func WithWorkers(n int) Option {
	return func(s *Simulator) { s.workers = n }
}

// WithLogger sets the logger used for lifecycle transitions.
func WithLogger(l golog.Logger) Option {
	return func(s *Simulator) { s.logger = l }
}

// WithEventHandler registers the callback receiving zone changes.
func WithEventHandler(fn func(Event)) Option {
	return func(s *Simulator) { s.onEvent = fn }
}

// WithRand sets the source used to sample temperatures.
func WithRand(r *rand.Rand) Option {
	return func(s *Simulator) { s.rng = r }
}

// NewSimulator creates a simulator for the given rule, radii and reference point.
func NewSimulator(rule FlockingRule, params Params, zones Zones, origin geometry.Vector2D, opts ...Option) *Simulator {
	s := &Simulator{
		rule:    rule,
		params:  params,
		zones:   zones,
		origin:  origin,
		workers: 1,
		rng:     rand.New(rand.NewPCG(1, 2)),
		logger:  golog.DiscardLogger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Params returns the neighborhood radii in use.
func (s *Simulator) Params() Params {
	return s.params
}

// Zones returns the lifecycle radii in use.
func (s *Simulator) Zones() Zones {
	return s.zones
}

// Origin returns the reference point of the lifecycle zones.
func (s *Simulator) Origin() geometry.Vector2D {
	return s.origin
}

// Ticks returns how many steps have been simulated.
func (s *Simulator) Ticks() uint64 {
	return s.tick
}

// Tick advances every live agent by dt seconds.
// Lifecycle is evaluated twice: before moving, for positions changed between
// ticks, and after integration, so that no agent ends a tick alive beyond the
// destruct radius. The environment is rebuilt after the second pass and
// reflects the committed positions.
func (s *Simulator) Tick(agents []*Agent, env SpatialQuery, dt float64) {
	s.tick++

	for _, a := range agents {
		s.updateLifecycle(a)
	}

	rebuilder, _ := env.(Rebuilder)
	if rebuilder != nil {
		rebuilder.Rebuild(agents)
	}

	if cap(s.velocities) < len(agents) {
		s.velocities = make([]geometry.Vector2D, len(agents))
	}
	s.velocities = s.velocities[:len(agents)]
	s.computeVelocities(agents, env)

	for i, a := range agents {
		if !a.Alive() {
			continue
		}
		s.integrate(a, s.velocities[i], dt)
	}

	for _, a := range agents {
		s.updateLifecycle(a)
	}
	if rebuilder != nil {
		rebuilder.Rebuild(agents)
	}
}

func (s *Simulator) updateLifecycle(a *Agent) {
	if !a.Alive() {
		return
	}
	previous := a.Zone
	zone := s.zones.Classify(a.Position.DistanceTo(s.origin))

	switch zone {
	case ZoneDestroyed:
		a.Destroy()
	case ZoneWarning:
		a.Status = StatusWarning
		a.Zone = zone
	default:
		a.Status = StatusActive
		a.Zone = zone
	}

	if previous != zone {
		s.logger.Debugf("tick %d: agent %d %s -> %s", s.tick, a.ID, previous, zone)
		if s.onEvent != nil {
			s.onEvent(Event{Tick: s.tick, AgentID: a.ID, Previous: previous, Current: zone})
		}
	}
}

func (s *Simulator) computeVelocities(agents []*Agent, env SpatialQuery) {
	if s.workers <= 1 || len(agents) < 2*s.workers {
		for i, a := range agents {
			s.velocities[i] = s.velocityOf(a, env)
		}
		return
	}

	chunk := (len(agents) + s.workers - 1) / s.workers
	var g errgroup.Group
	g.SetLimit(s.workers)
	for start := 0; start < len(agents); start += chunk {
		end := min(start+chunk, len(agents))
		g.Go(func() error {
			for i := start; i < end; i++ {
				s.velocities[i] = s.velocityOf(agents[i], env)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// velocityOf runs the rule, scales by the drive factor and clamps to the agent's max speed.
func (s *Simulator) velocityOf(a *Agent, env SpatialQuery) geometry.Vector2D {
	if !a.Alive() {
		return geometry.Zero
	}
	self := State{ID: a.ID, Position: a.Position, Heading: a.Heading}
	neighbors := env.QueryNearby(a.Position, s.params.NeighborRadius, a.ID)

	move := s.rule.Move(self, neighbors, s.params)
	move = move.Mul(a.DriveFactor)
	return move.ClampLen(a.MaxSpeed)
}

func (s *Simulator) integrate(a *Agent, v geometry.Vector2D, dt float64) {
	a.Velocity = v
	a.Position = a.Position.Add(v.Mul(dt))
	if !v.IsZero() {
		a.Heading = v.Normalize()
	}
	a.Runtime += dt
	a.Temperature = s.rng.IntN(100)
}
