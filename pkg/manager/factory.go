package manager

import (
	"context"
	"fmt"
	"sync"

	"github.com/gagents/gagents/pkg/events"
	"github.com/gagents/gagents/pkg/log"
	"github.com/gagents/gagents/pkg/runtime"
	"github.com/gagents/gagents/pkg/storage"
	"github.com/gagents/gagents/pkg/types"
	"github.com/google/uuid"
)

// Constructor builds an agent's capability object for id. Implementations
// typically close over application state (e.g. a counter's initial value)
// but must not touch shared resources directly — those arrive via
// AgentDependencies at OnActivate.
type Constructor func(id uuid.UUID) runtime.AgentCapabilities

// ActorFactory is the process-wide owner of every active agent runtime in
// this process, using constructor-injection wiring: one place builds the
// shared AgentDependencies bundle (logger, repository, snapshot store,
// stream registry, subscription manager, type registry, config) and hands
// it to every agent it activates.
type ActorFactory struct {
	deps *runtime.AgentDependencies

	mu      sync.Mutex
	active  map[uuid.UUID]*runtime.AgentRuntime
}

// Dependencies bundles the backends an ActorFactory wires into every agent
// it creates.
type Dependencies struct {
	Config        types.RuntimeConfig
	Repository    storage.EventRepository
	Snapshots     storage.SnapshotStore
	TypeRegistry  *runtime.TypeRegistry
}

// NewActorFactory builds a factory with its own process-wide StreamRegistry
// and SubscriptionManager — both are singletons per process by design, so
// one ActorFactory owns exactly one of each.
func NewActorFactory(d Dependencies) *ActorFactory {
	return &ActorFactory{
		deps: &runtime.AgentDependencies{
			Logger:        log.WithComponent("runtime"),
			Config:        d.Config,
			Repository:    d.Repository,
			Snapshots:     d.Snapshots,
			Registry:      events.NewStreamRegistry(d.Config.MailboxCapacity),
			Subscriptions: events.NewSubscriptionManager(),
			TypeRegistry:  d.TypeRegistry,
		},
		active: make(map[uuid.UUID]*runtime.AgentRuntime),
	}
}

// Registry exposes the shared StreamRegistry, e.g. for an inspection API.
func (f *ActorFactory) Registry() *events.StreamRegistry { return f.deps.Registry }

// Subscriptions exposes the shared SubscriptionManager, e.g. for a
// reconciler or inspection API.
func (f *ActorFactory) Subscriptions() *events.SubscriptionManager { return f.deps.Subscriptions }

// TypeRegistry exposes the shared TypeRegistry, e.g. for an inspection
// API that needs to pack/unpack Any payloads on an agent's behalf.
func (f *ActorFactory) TypeRegistry() *runtime.TypeRegistry { return f.deps.TypeRegistry }

// Spawn instantiates via construct, wires dependencies, acquires the
// stream, activates, and starts the mailbox loop. register attaches
// handlers before activation so replay and live traffic both reach them.
// Spawning an already-active id is a fault.
func (f *ActorFactory) Spawn(ctx context.Context, id uuid.UUID, construct Constructor, register func(rt *runtime.AgentRuntime)) (*runtime.AgentRuntime, error) {
	f.mu.Lock()
	if _, ok := f.active[id]; ok {
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: agent %s", types.ErrAlreadyActive, id)
	}
	// reserve the slot before releasing the lock so concurrent Spawns for
	// the same id cannot both pass the check above.
	f.active[id] = nil
	f.mu.Unlock()

	actor := construct(id)
	rt := runtime.NewAgentRuntime(id, actor, f.deps)
	if register != nil {
		register(rt)
	}

	if err := rt.Activate(ctx); err != nil {
		f.mu.Lock()
		delete(f.active, id)
		f.mu.Unlock()
		return nil, err
	}

	f.mu.Lock()
	f.active[id] = rt
	f.mu.Unlock()

	return rt, nil
}

// Despawn deactivates and removes agent id. Deactivating an id that is not
// active is a fault (kNotActive), matching Deactivate's idempotence being
// scoped to double-Despawn calls on the same runtime, not unknown ids.
func (f *ActorFactory) Despawn(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	rt, ok := f.active[id]
	if ok {
		delete(f.active, id)
	}
	f.mu.Unlock()

	if !ok || rt == nil {
		return fmt.Errorf("%w: agent %s", types.ErrNotActive, id)
	}
	return rt.Deactivate(ctx)
}

// Get returns the active runtime for id, if any.
func (f *ActorFactory) Get(id uuid.UUID) (*runtime.AgentRuntime, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rt, ok := f.active[id]
	return rt, ok && rt != nil
}

// ActiveIDs returns a snapshot of all currently active agent ids.
func (f *ActorFactory) ActiveIDs() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(f.active))
	for id, rt := range f.active {
		if rt != nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// MailboxDepth returns the queued envelope count for id, or 0 if id is
// not active. Used by metrics.Collector.
func (f *ActorFactory) MailboxDepth(id uuid.UUID) int {
	f.mu.Lock()
	rt, ok := f.active[id]
	f.mu.Unlock()
	if !ok || rt == nil {
		return 0
	}
	return rt.MailboxDepth()
}

// Len returns the number of currently active agents.
func (f *ActorFactory) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, rt := range f.active {
		if rt != nil {
			n++
		}
	}
	return n
}
