package runtime

import (
	"context"

	"github.com/gagents/gagents/pkg/events"
	"github.com/gagents/gagents/pkg/storage"
	"github.com/gagents/gagents/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/protobuf/proto"
)

// AgentCapabilities is the minimal surface every agent type implements,
// regardless of whether it opts into the event-sourced core or the
// direct-mutation fallback. An inheritance-heavy base class hierarchy is
// flattened to this one capability interface plus an optional
// event-sourcing mixin.
type AgentCapabilities interface {
	ID() uuid.UUID
	OnActivate(ctx context.Context, deps *AgentDependencies) error
	OnDeactivate(ctx context.Context) error
}

// EventSourcedAgent is the pluggable event-sourcing behavior: agents that
// implement it get RaiseEvent/ConfirmEvents/replay for free from the
// runtime core instead of persisting ad hoc state snapshots themselves.
type EventSourcedAgent interface {
	AgentCapabilities

	// InitialState returns the zero-value state before any events apply.
	InitialState() any

	// Transition is the pure (prior-state, payload) -> state function.
	// It must not mutate state in place; returning a new value is
	// what gives ConfirmEvents its rollback-on-failure guarantee for free,
	// since the previous state is never touched until Transition succeeds.
	Transition(state any, payload proto.Message) (any, error)

	// MarshalState/UnmarshalState (de)serialize state for snapshotting.
	MarshalState(state any) ([]byte, error)
	UnmarshalState(data []byte) (any, error)
}

// StateMutatingAgent is the non-event-sourced fallback: handlers
// mutate state directly and the runtime persists whole-state snapshots on
// every confirmed envelope instead of an event log.
type StateMutatingAgent interface {
	AgentCapabilities
	SnapshotState() ([]byte, error)
	RestoreState(data []byte) error
}

// AgentDependencies is the single constructor-injected bundle replacing
// property-injector/reflection-based setter injection: logger, event
// publisher primitives, persistence, and configuration in one value.
type AgentDependencies struct {
	Logger        zerolog.Logger
	Config        types.RuntimeConfig
	Repository    storage.EventRepository
	Snapshots     storage.SnapshotStore
	Registry      *events.StreamRegistry
	Subscriptions *events.SubscriptionManager
	TypeRegistry  *TypeRegistry
}
