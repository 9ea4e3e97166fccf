package flock

import (
	"fmt"

	"github.com/lao-tseu-is-alive/go-drone-swarm/pkg/geometry"
)

// Status is the logical lifecycle state of an agent.
type Status int

const (
	StatusActive Status = iota
	// StatusWarning is still a live agent: it keeps flocking and routing.
	StatusWarning
	// StatusDestroyed is terminal until an explicit Revive.
	StatusDestroyed
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusWarning:
		return "warning"
	case StatusDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Zone is the visual state derived from the distance to the swarm origin.
type Zone int

const (
	ZoneNominal Zone = iota
	ZoneCaution
	ZoneWarning
	ZoneDestroyed
)

func (z Zone) String() string {
	switch z {
	case ZoneNominal:
		return "nominal"
	case ZoneCaution:
		return "caution"
	case ZoneWarning:
		return "warning"
	case ZoneDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("zone(%d)", int(z))
	}
}

// Agent is one drone of the flock.
// ID never changes after creation. Motion fields are written by the Simulator and by explicit swarm commands.
type Agent struct {
	ID          int
	Position    geometry.Vector2D
	Heading     geometry.Vector2D // unit vector, the direction of the last non-zero velocity
	Velocity    geometry.Vector2D
	DriveFactor float64
	MaxSpeed    float64
	Status      Status
	Zone        Zone
	Temperature int     // resampled each tick in [0,100)
	Runtime     float64 // seconds of simulated time spent alive
}

// NewAgent creates an active agent heading along the given direction.
func NewAgent(id int, pos, heading geometry.Vector2D, driveFactor, maxSpeed float64) *Agent {
	return &Agent{
		ID:          id,
		Position:    pos,
		Heading:     heading.Normalize(),
		DriveFactor: driveFactor,
		MaxSpeed:    ClampSpeed(maxSpeed),
		Status:      StatusActive,
		Zone:        ZoneNominal,
	}
}

// Alive reports whether the agent takes part in flocking and routing.
func (a *Agent) Alive() bool {
	return a.Status != StatusDestroyed
}

// Destroy marks the agent destroyed. It returns false if it already was.
func (a *Agent) Destroy() bool {
	if a.Status == StatusDestroyed {
		return false
	}
	a.Status = StatusDestroyed
	a.Zone = ZoneDestroyed
	a.Velocity = geometry.Zero
	return true
}

// Revive brings a destroyed agent back as active. It returns false if the agent was alive.
func (a *Agent) Revive() bool {
	if a.Status != StatusDestroyed {
		return false
	}
	a.Status = StatusActive
	a.Zone = ZoneNominal
	return true
}

// ClampSpeed keeps a per-agent speed limit inside [0,100].
func ClampSpeed(s float64) float64 {
	switch {
	case s < 0:
		return 0
	case s > 100:
		return 100
	default:
		return s
	}
}

func (a *Agent) String() string {
	return fmt.Sprintf("agent %d %s at %s", a.ID, a.Status, a.Position)
}
