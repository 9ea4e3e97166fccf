package swarm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/lao-tseu-is-alive/go-drone-swarm/pkg/flock"
	"github.com/tochemey/goakt/v3/actor"
	"github.com/tochemey/goakt/v3/goaktpb"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/structpb"
)

// commands understood by SwarmActor, carried in the "op" field of a structpb.Struct
const (
	OpPartition    = "partition"
	OpRoute        = "route"
	OpRouteGraph   = "route_graph"
	OpFind         = "find"
	OpDestruct     = "destruct"
	OpRevive       = "revive"
	OpReturnToBase = "return_to_base"
	OpSnapshot     = "snapshot"

	OpFindTemperature = "find_temperature"
	OpSetDriveFactor  = "set_drive_factor"
	OpSetMaxSpeed     = "set_max_speed"
	OpDistance        = "distance"
)

// SwarmActor serializes every access to a Controller through its mailbox.
// A *durationpb.Duration advances the simulation; a *structpb.Struct is a command.
type SwarmActor struct {
	ctrl       *Controller
	snapshotCh chan<- *Snapshot
}

// NewSwarmActor wraps ctrl. When snapshotCh is not nil a snapshot is offered
// after every tick and dropped if the reader is busy.
func NewSwarmActor(ctrl *Controller, snapshotCh chan<- *Snapshot) *SwarmActor {
	return &SwarmActor{ctrl: ctrl, snapshotCh: snapshotCh}
}

func (s *SwarmActor) PreStart(ctx *actor.Context) error {
	ctx.ActorSystem().Logger().Infof("swarm %s is starting", s.ctrl.RunID())
	return nil
}

func (s *SwarmActor) Receive(ctx *actor.ReceiveContext) {
	switch msg := ctx.Message().(type) {
	case *goaktpb.PostStart:
		ctx.Logger().Infof("swarm %s started with %d agents", s.ctrl.RunID(), s.ctrl.registry.Len())

	case *durationpb.Duration:
		s.ctrl.Tick(msg.AsDuration().Seconds())
		s.pushSnapshot()

	case *structpb.Struct:
		ctx.Response(s.handle(ctx, msg))

	default:
		ctx.Unhandled()
	}
}

func (s *SwarmActor) PostStop(ctx *actor.Context) error {
	ctx.ActorSystem().Logger().Infof("swarm %s stopped", s.ctrl.RunID())
	return nil
}

func (s *SwarmActor) pushSnapshot() {
	if s.snapshotCh == nil {
		return
	}
	select {
	case s.snapshotCh <- s.ctrl.Snapshot():
	default:
		// reader busy, skip frame
	}
}

func (s *SwarmActor) handle(ctx *actor.ReceiveContext, cmd *structpb.Struct) *structpb.Struct {
	fields := cmd.GetFields()
	op := fields["op"].GetStringValue()

	switch op {
	case OpPartition:
		s.ctrl.PartitionAndRebuild()
		a, b := s.ctrl.Partitions()
		return reply(map[string]any{"partitionA": a.Len(), "partitionB": b.Len()}, nil)

	case OpRoute:
		target, err := intArg(fields, "target")
		if err != nil {
			return reply(nil, err)
		}
		path, err := s.ctrl.RouteMessage(target)
		ids := make([]any, len(path))
		for i, a := range path {
			ids[i] = a.ID
		}
		return reply(map[string]any{"path": ids}, err)

	case OpRouteGraph:
		source, err := intArg(fields, "source")
		if err != nil {
			return reply(nil, err)
		}
		target, err := intArg(fields, "target")
		if err != nil {
			return reply(nil, err)
		}
		path, err := s.ctrl.RouteBetween(source, target)
		ids := make([]any, len(path))
		for i, id := range path {
			ids[i] = id
		}
		return reply(map[string]any{"path": ids}, err)

	case OpFind:
		id, err := intArg(fields, "id")
		if err != nil {
			return reply(nil, err)
		}
		a, err := s.ctrl.FindAgent(id)
		if errors.Is(err, ErrNotFound) {
			return reply(nil, err)
		}
		return reply(map[string]any{"agent": agentFields(a)}, err)

	case OpFindTemperature:
		level, err := intArg(fields, "level")
		if err != nil {
			return reply(nil, err)
		}
		a, err := s.ctrl.FindByTemperature(level)
		if err != nil {
			return reply(nil, err)
		}
		return reply(map[string]any{"agent": agentFields(a)}, nil)

	case OpDestruct:
		id, err := intArg(fields, "id")
		if err != nil {
			return reply(nil, err)
		}
		return reply(nil, s.ctrl.SelfDestruct(id))

	case OpRevive:
		id, err := intArg(fields, "id")
		if err != nil {
			return reply(nil, err)
		}
		return reply(nil, s.ctrl.Revive(id))

	case OpSetDriveFactor, OpSetMaxSpeed:
		id, err := intArg(fields, "id")
		if err != nil {
			return reply(nil, err)
		}
		value, err := floatArg(fields, "value")
		if err != nil {
			return reply(nil, err)
		}
		if op == OpSetDriveFactor {
			return reply(nil, s.ctrl.SetDriveFactor(id, value))
		}
		return reply(nil, s.ctrl.SetMaxSpeed(id, value))

	case OpDistance:
		from, err := intArg(fields, "from")
		if err != nil {
			return reply(nil, err)
		}
		to, err := intArg(fields, "to")
		if err != nil {
			return reply(nil, err)
		}
		d, err := s.ctrl.Distance(from, to)
		return reply(map[string]any{"distance": d}, err)

	case OpReturnToBase:
		return reply(map[string]any{"moved": s.ctrl.ReturnToBase()}, nil)

	case OpSnapshot:
		snap := s.ctrl.Snapshot()
		return reply(map[string]any{
			"runId":     snap.RunID,
			"tick":      float64(snap.Tick),
			"active":    snap.Active,
			"warning":   snap.Warning,
			"destroyed": snap.Destroyed,
		}, nil)

	default:
		ctx.Logger().Warnf("swarm %s: unknown command %q", s.ctrl.RunID(), op)
		return reply(nil, errUnknownCommand)
	}
}

// floatArg reads a numeric command argument; a missing or non-numeric field is invalid input.
func floatArg(fields map[string]*structpb.Value, name string) (float64, error) {
	v, ok := fields[name]
	if !ok {
		return 0, fmt.Errorf("missing argument %q: %w", name, ErrInvalidInput)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("argument %q is not a number: %w", name, ErrInvalidInput)
	}
	return n.NumberValue, nil
}

func intArg(fields map[string]*structpb.Value, name string) (int, error) {
	f, err := floatArg(fields, name)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("argument %q = %v is not an integer: %w", name, f, ErrInvalidInput)
	}
	return int(f), nil
}

func agentFields(a flock.Agent) map[string]any {
	return map[string]any{
		"id":          a.ID,
		"x":           a.Position.X,
		"y":           a.Position.Y,
		"status":      a.Status.String(),
		"zone":        a.Zone.String(),
		"temperature": a.Temperature,
	}
}

// reply builds a response; a non-nil err adds its code next to the payload.
func reply(payload map[string]any, err error) *structpb.Struct {
	if payload == nil {
		payload = map[string]any{}
	}
	if err != nil {
		payload["code"] = errorCode(err)
		payload["error"] = err.Error()
	}
	resp, convErr := structpb.NewStruct(payload)
	if convErr != nil {
		resp, _ = structpb.NewStruct(map[string]any{"code": codeInvalidInput, "error": convErr.Error()})
	}
	return resp
}

// AgentSummary is the view of an agent returned by RequestFind.
type AgentSummary struct {
	ID          int
	X, Y        float64
	Status      string
	Zone        string
	Temperature int
}

// Status is the view of the swarm returned by RequestSnapshot.
type Status struct {
	RunID     string
	Tick      uint64
	Active    int
	Warning   int
	Destroyed int
}

// SendTick advances the swarm behind pid by dt.
func SendTick(ctx context.Context, pid *actor.PID, dt time.Duration) error {
	return actor.Tell(ctx, pid, durationpb.New(dt))
}

// Command builds a command message for SwarmActor.
func Command(op string, args map[string]any) (*structpb.Struct, error) {
	fields := map[string]any{"op": op}
	for k, v := range args {
		fields[k] = v
	}
	return structpb.NewStruct(fields)
}

func ask(ctx context.Context, pid *actor.PID, op string, args map[string]any, timeout time.Duration) (map[string]*structpb.Value, error) {
	cmd, err := Command(op, args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrInvalidInput, err)
	}
	response, err := actor.Ask(ctx, pid, cmd, timeout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	resp, ok := response.(*structpb.Struct)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected response %T", op, response)
	}
	fields := resp.GetFields()
	if code := fields["code"].GetStringValue(); code != "" {
		return fields, fmt.Errorf("%s: %s: %w", op, fields["error"].GetStringValue(), errorFromCode(code))
	}
	return fields, nil
}

func pathOf(fields map[string]*structpb.Value) []int {
	values := fields["path"].GetListValue().GetValues()
	if len(values) == 0 {
		return nil
	}
	path := make([]int, len(values))
	for i, v := range values {
		path[i] = int(v.GetNumberValue())
	}
	return path
}

// RequestRoute asks for the partition route to target. A destroyed target
// returns its path together with ErrAlreadyDestroyed.
func RequestRoute(ctx context.Context, pid *actor.PID, target int, timeout time.Duration) ([]int, error) {
	fields, err := ask(ctx, pid, OpRoute, map[string]any{"target": target}, timeout)
	return pathOf(fields), err
}

// RequestGraphRoute asks for the shortest path between two graph vertices.
func RequestGraphRoute(ctx context.Context, pid *actor.PID, source, target int, timeout time.Duration) ([]int, error) {
	fields, err := ask(ctx, pid, OpRouteGraph, map[string]any{"source": source, "target": target}, timeout)
	if err != nil {
		return nil, err
	}
	return pathOf(fields), nil
}

// RequestPartition rebuilds both partitions and returns their sizes.
func RequestPartition(ctx context.Context, pid *actor.PID, timeout time.Duration) (sizeA, sizeB int, err error) {
	fields, err := ask(ctx, pid, OpPartition, nil, timeout)
	if err != nil {
		return 0, 0, err
	}
	return int(fields["partitionA"].GetNumberValue()), int(fields["partitionB"].GetNumberValue()), nil
}

// RequestFind looks an agent up. A destroyed agent is returned with ErrAlreadyDestroyed.
func RequestFind(ctx context.Context, pid *actor.PID, id int, timeout time.Duration) (AgentSummary, error) {
	fields, err := ask(ctx, pid, OpFind, map[string]any{"id": id}, timeout)
	return summaryOf(fields), err
}

// RequestFindByTemperature returns the live agent reporting level nearest to the origin.
func RequestFindByTemperature(ctx context.Context, pid *actor.PID, level int, timeout time.Duration) (AgentSummary, error) {
	fields, err := ask(ctx, pid, OpFindTemperature, map[string]any{"level": level}, timeout)
	return summaryOf(fields), err
}

func summaryOf(fields map[string]*structpb.Value) AgentSummary {
	agent := fields["agent"].GetStructValue().GetFields()
	if agent == nil {
		return AgentSummary{}
	}
	return AgentSummary{
		ID:          int(agent["id"].GetNumberValue()),
		X:           agent["x"].GetNumberValue(),
		Y:           agent["y"].GetNumberValue(),
		Status:      agent["status"].GetStringValue(),
		Zone:        agent["zone"].GetStringValue(),
		Temperature: int(agent["temperature"].GetNumberValue()),
	}
}

// RequestDestruct self-destructs an agent.
func RequestDestruct(ctx context.Context, pid *actor.PID, id int, timeout time.Duration) error {
	_, err := ask(ctx, pid, OpDestruct, map[string]any{"id": id}, timeout)
	return err
}

// RequestRevive revives a destroyed agent.
func RequestRevive(ctx context.Context, pid *actor.PID, id int, timeout time.Duration) error {
	_, err := ask(ctx, pid, OpRevive, map[string]any{"id": id}, timeout)
	return err
}

// RequestSetDriveFactor changes the drive factor of one agent.
func RequestSetDriveFactor(ctx context.Context, pid *actor.PID, id int, f float64, timeout time.Duration) error {
	_, err := ask(ctx, pid, OpSetDriveFactor, map[string]any{"id": id, "value": f}, timeout)
	return err
}

// RequestSetMaxSpeed changes the speed limit of one agent.
func RequestSetMaxSpeed(ctx context.Context, pid *actor.PID, id int, speed float64, timeout time.Duration) error {
	_, err := ask(ctx, pid, OpSetMaxSpeed, map[string]any{"id": id, "value": speed}, timeout)
	return err
}

// RequestDistance returns the distance between two live agents.
func RequestDistance(ctx context.Context, pid *actor.PID, from, to int, timeout time.Duration) (float64, error) {
	fields, err := ask(ctx, pid, OpDistance, map[string]any{"from": from, "to": to}, timeout)
	if err != nil {
		return 0, err
	}
	return fields["distance"].GetNumberValue(), nil
}

// RequestReturnToBase moves every live agent to the origin.
func RequestReturnToBase(ctx context.Context, pid *actor.PID, timeout time.Duration) (int, error) {
	fields, err := ask(ctx, pid, OpReturnToBase, nil, timeout)
	if err != nil {
		return 0, err
	}
	return int(fields["moved"].GetNumberValue()), nil
}

// RequestSnapshot returns the per-status counts of the swarm.
func RequestSnapshot(ctx context.Context, pid *actor.PID, timeout time.Duration) (Status, error) {
	fields, err := ask(ctx, pid, OpSnapshot, nil, timeout)
	if err != nil {
		return Status{}, err
	}
	return Status{
		RunID:     fields["runId"].GetStringValue(),
		Tick:      uint64(fields["tick"].GetNumberValue()),
		Active:    int(fields["active"].GetNumberValue()),
		Warning:   int(fields["warning"].GetNumberValue()),
		Destroyed: int(fields["destroyed"].GetNumberValue()),
	}, nil
}
