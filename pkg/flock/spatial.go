package flock

import (
	"math"

	"github.com/lao-tseu-is-alive/go-drone-swarm/pkg/geometry"
)

// SpatialQuery is the neighbor lookup the simulator consumes.
// QueryNearby returns every agent within radius of pos, except the agent whose ID is exclude.
type SpatialQuery interface {
	QueryNearby(pos geometry.Vector2D, radius float64, exclude int) []State
}

// Rebuilder is implemented by a SpatialQuery that indexes the live agents itself.
// The simulator calls Rebuild before any agent moves and again once the new
// positions are committed and checked against the destruct radius.
type Rebuilder interface {
	Rebuild(agents []*Agent)
}

type gridKey struct {
	x, y int
}

// Grid is a spatial hash over agent states. Cells are square with the side given to NewGrid.
type Grid struct {
	cellSize float64
	cells    map[gridKey][]State
}

// NewGrid creates a grid. The cell side should be close to the neighbor radius;
// it is clamped to a minimum of 0.1 to avoid a division by zero.
func NewGrid(cellSize float64) *Grid {
	return &Grid{
		cellSize: math.Max(cellSize, 0.1),
		cells:    make(map[gridKey][]State),
	}
}

func (g *Grid) cellOf(pos geometry.Vector2D) gridKey {
	return gridKey{
		x: int(math.Floor(pos.X / g.cellSize)),
		y: int(math.Floor(pos.Y / g.cellSize)),
	}
}

// Rebuild indexes a copy of the live agents' current state.
// Slices are reset to length 0 and reused, so a steady swarm does not allocate.
func (g *Grid) Rebuild(agents []*Agent) {
	for k := range g.cells {
		g.cells[k] = g.cells[k][:0]
	}
	for _, a := range agents {
		if !a.Alive() {
			continue
		}
		key := g.cellOf(a.Position)
		g.cells[key] = append(g.cells[key], State{ID: a.ID, Position: a.Position, Heading: a.Heading})
	}
}

// QueryNearby scans only the cells overlapping the query circle.
func (g *Grid) QueryNearby(pos geometry.Vector2D, radius float64, exclude int) []State {
	radiusSq := radius * radius
	minKey := g.cellOf(geometry.Vector2D{X: pos.X - radius, Y: pos.Y - radius})
	maxKey := g.cellOf(geometry.Vector2D{X: pos.X + radius, Y: pos.Y + radius})

	var result []State
	for gx := minKey.x; gx <= maxKey.x; gx++ {
		for gy := minKey.y; gy <= maxKey.y; gy++ {
			for _, s := range g.cells[gridKey{x: gx, y: gy}] {
				if s.ID == exclude {
					continue
				}
				if s.Position.DistanceSquaredTo(pos) <= radiusSq {
					result = append(result, s)
				}
			}
		}
	}
	return result
}

// Len returns the number of indexed agents.
func (g *Grid) Len() int {
	n := 0
	for _, c := range g.cells {
		n += len(c)
	}
	return n
}
