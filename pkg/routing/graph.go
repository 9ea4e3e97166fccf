package routing

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrMissingVertex is returned when an edge or a route references an unregistered vertex.
	ErrMissingVertex = errors.New("missing vertex")
	// ErrNoRouteFound is returned when no path links the source to the target.
	ErrNoRouteFound = errors.New("no route found")
)

// Graph is an undirected adjacency-list graph over agent identifiers.
// Neighbors keep the order in which edges were added so that BFS picks the
// same shortest path on every run.
type Graph struct {
	adjacency map[int][]int
	order     []int
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{adjacency: make(map[int][]int)}
}

// AddVertex registers id. Adding an existing vertex does nothing.
func (g *Graph) AddVertex(id int) {
	if _, ok := g.adjacency[id]; ok {
		return
	}
	g.adjacency[id] = nil
	g.order = append(g.order, id)
}

// HasVertex reports whether id is registered.
func (g *Graph) HasVertex(id int) bool {
	_, ok := g.adjacency[id]
	return ok
}

// Connect adds the undirected edge a-b. Both vertices must already exist;
// otherwise nothing is changed and ErrMissingVertex is returned.
func (g *Graph) Connect(a, b int) error {
	for _, id := range []int{a, b} {
		if !g.HasVertex(id) {
			return fmt.Errorf("connect %d-%d: vertex %d: %w", a, b, id, ErrMissingVertex)
		}
	}
	if !slices.Contains(g.adjacency[a], b) {
		g.adjacency[a] = append(g.adjacency[a], b)
	}
	if !slices.Contains(g.adjacency[b], a) {
		g.adjacency[b] = append(g.adjacency[b], a)
	}
	return nil
}

// Neighbors returns a copy of the neighbors of id in edge insertion order.
func (g *Graph) Neighbors(id int) []int {
	return slices.Clone(g.adjacency[id])
}

// Vertices returns every vertex in registration order.
func (g *Graph) Vertices() []int {
	return slices.Clone(g.order)
}

// Len returns the number of vertices.
func (g *Graph) Len() int {
	return len(g.order)
}

// RouteMessage returns the shortest path from source to target, both included,
// found by breadth-first search. An absent endpoint fails with an error matching
// both ErrNoRouteFound and ErrMissingVertex; disconnected endpoints fail with ErrNoRouteFound.
func (g *Graph) RouteMessage(source, target int) ([]int, error) {
	return g.RouteMessageAvoiding(source, target, nil)
}

// RouteMessageAvoiding is RouteMessage where no intermediate hop may satisfy skip.
// The endpoints are never skipped. A nil skip avoids nothing.
func (g *Graph) RouteMessageAvoiding(source, target int, skip func(id int) bool) ([]int, error) {
	for _, id := range []int{source, target} {
		if !g.HasVertex(id) {
			return nil, fmt.Errorf("%w from %d to %d: vertex %d: %w", ErrNoRouteFound, source, target, id, ErrMissingVertex)
		}
	}

	// cameFrom doubles as the visited set: a vertex is enqueued at most once.
	cameFrom := map[int]int{source: source}
	queue := []int{source}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current == target {
			return reconstructPath(cameFrom, source, target), nil
		}

		for _, next := range g.adjacency[current] {
			if _, seen := cameFrom[next]; seen {
				continue
			}
			if next != target && skip != nil && skip(next) {
				continue
			}
			cameFrom[next] = current
			queue = append(queue, next)
		}
	}

	return nil, fmt.Errorf("%w from %d to %d", ErrNoRouteFound, source, target)
}

func reconstructPath(cameFrom map[int]int, source, target int) []int {
	path := []int{target}
	for current := target; current != source; {
		current = cameFrom[current]
		path = append(path, current)
	}
	slices.Reverse(path)
	return path
}
