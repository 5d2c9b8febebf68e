// Package agents holds the built-in agent kinds cmd/agentd can spawn.
// Counter is the reference EventSourcedAgent exercised throughout this
// module's tests: Transition adds a signed delta to a running total,
// replaying from its event log on activation.
package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gagents/gagents/pkg/runtime"
	"github.com/gagents/gagents/pkg/types"
	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// CounterDeltaTypeURL identifies the google.protobuf.Int64Value payload a
// Counter's handler and Transition both understand as a signed delta.
const CounterDeltaTypeURL = "type.googleapis.com/google.protobuf.Int64Value"

// RegisterCounterType registers Counter's payload schema with reg. Must
// be called once per process before any Counter is activated, so replay
// can resolve CounterDeltaTypeURL back into an Int64Value.
func RegisterCounterType(reg *runtime.TypeRegistry) {
	reg.Register(CounterDeltaTypeURL, func() proto.Message { return &wrapperspb.Int64Value{} })
}

// CounterState is Counter's event-sourced state: a running total.
type CounterState struct {
	Count int64 `json:"count"`
}

// Counter is a minimal event-sourced agent: every confirmed delta adds to
// Count.
type Counter struct {
	id uuid.UUID
}

// NewCounter is a manager.Constructor for the Counter agent kind.
func NewCounter(id uuid.UUID) runtime.AgentCapabilities {
	return &Counter{id: id}
}

func (a *Counter) ID() uuid.UUID { return a.id }

func (a *Counter) OnActivate(ctx context.Context, deps *runtime.AgentDependencies) error {
	return nil
}

func (a *Counter) OnDeactivate(ctx context.Context) error { return nil }

func (a *Counter) InitialState() any { return CounterState{} }

func (a *Counter) Transition(state any, payload proto.Message) (any, error) {
	cs, ok := state.(CounterState)
	if !ok {
		return nil, fmt.Errorf("unexpected state type %T", state)
	}
	delta, ok := payload.(*wrapperspb.Int64Value)
	if !ok {
		return nil, fmt.Errorf("unexpected payload type %T", payload)
	}
	return CounterState{Count: cs.Count + delta.Value}, nil
}

func (a *Counter) MarshalState(state any) ([]byte, error) {
	cs, ok := state.(CounterState)
	if !ok {
		return nil, fmt.Errorf("unexpected state type %T", state)
	}
	return json.Marshal(cs)
}

func (a *Counter) UnmarshalState(data []byte) (any, error) {
	var cs CounterState
	if err := json.Unmarshal(data, &cs); err != nil {
		return nil, err
	}
	return cs, nil
}

// RegisterHandler attaches the delta handler to rt: an incoming
// CounterDeltaTypeURL envelope is staged as a pending event via Raise, and
// confirmed per RuntimeConfig.AutoConfirmEvents back in the runtime's own
// processing loop.
func RegisterHandler(rt *runtime.AgentRuntime) {
	rt.RegisterHandler(CounterDeltaTypeURL, func(ctx context.Context, rt *runtime.AgentRuntime, payload proto.Message, env *types.Envelope) error {
		if payload == nil {
			return fmt.Errorf("%w: missing counter delta payload", types.ErrInvalidArgument)
		}
		_, err := rt.Raise(payload, env.Metadata)
		return err
	})
}
