package swarm

import (
	"errors"

	"github.com/lao-tseu-is-alive/go-drone-swarm/pkg/routing"
)

var (
	// ErrNotFound means the identifier is not part of the agent set or of any partition.
	ErrNotFound = errors.New("agent not found")
	// ErrAlreadyDestroyed means the operation needs a live agent.
	ErrAlreadyDestroyed = errors.New("agent already destroyed")
	// ErrInvalidInput means a parameter is out of its documented range.
	ErrInvalidInput = errors.New("invalid input")

	ErrMissingVertex = routing.ErrMissingVertex
	ErrNoRouteFound  = routing.ErrNoRouteFound
)

// error codes used on the actor boundary
const (
	codeNotFound         = "not_found"
	codeAlreadyDestroyed = "already_destroyed"
	codeInvalidInput     = "invalid_input"
	codeMissingVertex    = "missing_vertex"
	codeNoRouteFound     = "no_route_found"
	codeUnknownCommand   = "unknown_command"
)

var errUnknownCommand = errors.New("unknown command")

// errorCode reduces err to the first matching code. NoRouteFound is checked
// before MissingVertex because routing errors may carry both.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return codeNotFound
	case errors.Is(err, ErrAlreadyDestroyed):
		return codeAlreadyDestroyed
	case errors.Is(err, ErrInvalidInput):
		return codeInvalidInput
	case errors.Is(err, ErrNoRouteFound):
		return codeNoRouteFound
	case errors.Is(err, ErrMissingVertex):
		return codeMissingVertex
	default:
		return codeUnknownCommand
	}
}

func errorFromCode(code string) error {
	switch code {
	case codeNotFound:
		return ErrNotFound
	case codeAlreadyDestroyed:
		return ErrAlreadyDestroyed
	case codeInvalidInput:
		return ErrInvalidInput
	case codeNoRouteFound:
		return ErrNoRouteFound
	case codeMissingVertex:
		return ErrMissingVertex
	default:
		return errUnknownCommand
	}
}
