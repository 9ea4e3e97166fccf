package swarm

import (
	"fmt"

	"github.com/lao-tseu-is-alive/go-drone-swarm/pkg/flock"
)

// Registry is the authoritative agent set. Agents are kept in insertion order,
// which is also the order the simulator updates them in.
type Registry struct {
	agents []*flock.Agent
	byID   map[int]*flock.Agent
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[int]*flock.Agent)}
}

// Add registers a. A duplicate identifier is a programming error and panics.
func (r *Registry) Add(a *flock.Agent) {
	if _, exists := r.byID[a.ID]; exists {
		panic(fmt.Sprintf("swarm: duplicate agent id %d", a.ID))
	}
	r.agents = append(r.agents, a)
	r.byID[a.ID] = a
}

// Get returns the agent with the given id.
func (r *Registry) Get(id int) (*flock.Agent, bool) {
	a, ok := r.byID[id]
	return a, ok
}

// Len returns the number of registered agents, destroyed ones included.
func (r *Registry) Len() int {
	return len(r.agents)
}

// All returns the live backing slice. Callers inside the package must not reorder it.
func (r *Registry) All() []*flock.Agent {
	return r.agents
}
