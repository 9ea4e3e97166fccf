package flock

import (
	"github.com/lao-tseu-is-alive/go-drone-swarm/pkg/geometry"
)

// State is the read-only view of an agent that rules and spatial queries work on.
// It is copied out of the Agent before a tick so that every rule reads old state.
type State struct {
	ID       int
	Position geometry.Vector2D
	Heading  geometry.Vector2D
}

// Params are the neighborhood radii shared by every rule of a tick.
type Params struct {
	NeighborRadius      float64
	AvoidanceMultiplier float64
}

// AvoidanceRadius is the distance under which a neighbor repels.
func (p Params) AvoidanceRadius() float64 {
	return p.NeighborRadius * p.AvoidanceMultiplier
}

// FlockingRule computes a desired velocity contribution for self from its neighborhood.
// Implementations must be pure: same input, same output.
type FlockingRule interface {
	Move(self State, neighbors []State, p Params) geometry.Vector2D
}

// RuleFunc adapts an ordinary function to a FlockingRule.
type RuleFunc func(self State, neighbors []State, p Params) geometry.Vector2D

func (f RuleFunc) Move(self State, neighbors []State, p Params) geometry.Vector2D {
	return f(self, neighbors, p)
}

// Cohesion steers toward the centroid of the neighborhood.
var Cohesion = RuleFunc(func(self State, neighbors []State, _ Params) geometry.Vector2D {
	if len(neighbors) == 0 {
		return geometry.Zero
	}
	var centroid geometry.Vector2D
	for _, n := range neighbors {
		centroid = centroid.Add(n.Position)
	}
	centroid = centroid.Mul(1 / float64(len(neighbors)))
	return centroid.Sub(self.Position)
})

// Alignment matches the average heading of the neighborhood.
// An agent alone keeps its own heading.
var Alignment = RuleFunc(func(self State, neighbors []State, _ Params) geometry.Vector2D {
	if len(neighbors) == 0 {
		return self.Heading
	}
	var sum geometry.Vector2D
	for _, n := range neighbors {
		sum = sum.Add(n.Heading)
	}
	return sum.Mul(1 / float64(len(neighbors)))
})

// Avoidance pushes away from neighbors closer than the avoidance radius.
var Avoidance = RuleFunc(func(self State, neighbors []State, p Params) geometry.Vector2D {
	r := p.AvoidanceRadius()
	rSq := r * r

	var (
		away  geometry.Vector2D
		count int
	)
	for _, n := range neighbors {
		if self.Position.DistanceSquaredTo(n.Position) < rSq {
			away = away.Add(self.Position.Sub(n.Position))
			count++
		}
	}
	if count == 0 {
		return geometry.Zero
	}
	return away.Mul(1 / float64(count))
})

// Weighted pairs a rule with its weight inside a Composite.
type Weighted struct {
	Rule   FlockingRule
	Weight float64
}

// Composite sums weighted rules. Each partial contribution is capped at a length
// equal to its weight so that no single rule drowns the others.
type Composite []Weighted

func (c Composite) Move(self State, neighbors []State, p Params) geometry.Vector2D {
	var move geometry.Vector2D
	for _, w := range c {
		partial := w.Rule.Move(self, neighbors, p).Mul(w.Weight)
		if !partial.IsZero() {
			partial = partial.ClampLen(w.Weight)
		}
		move = move.Add(partial)
	}
	return move
}

// NewDefaultRule is the cohesion + alignment + avoidance mix used by the swarm.
func NewDefaultRule(cohesion, alignment, avoidance float64) Composite {
	return Composite{
		{Rule: Cohesion, Weight: cohesion},
		{Rule: Alignment, Weight: alignment},
		{Rule: Avoidance, Weight: avoidance},
	}
}
