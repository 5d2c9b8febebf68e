// Package gagents_test exercises the six end-to-end scenarios, wiring
// pkg/storage, pkg/runtime, pkg/manager and pkg/events together the way a
// real agent host does, instead of any single package's unit tests.
package gagents_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagents/gagents/pkg/agents"
	"github.com/gagents/gagents/pkg/manager"
	"github.com/gagents/gagents/pkg/runtime"
	"github.com/gagents/gagents/pkg/storage"
	"github.com/gagents/gagents/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func mustUUID(t *testing.T, s string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(s)
	require.NoError(t, err)
	return id
}

func newFactory(repo storage.EventRepository, snaps storage.SnapshotStore, cfg types.RuntimeConfig, reg *runtime.TypeRegistry) *manager.ActorFactory {
	return manager.NewActorFactory(manager.Dependencies{
		Config:       cfg,
		Repository:   repo,
		Snapshots:    snaps,
		TypeRegistry: reg,
	})
}

// Scenario 1: happy-path append and read back.
func TestScenario_HappyPathAppendAndReadBack(t *testing.T) {
	agentID := mustUUID(t, "00000000-0000-0000-0000-000000000001")
	repo := storage.NewMemoryEventRepository()
	reg := runtime.NewTypeRegistry()
	agents.RegisterCounterType(reg)

	factory := newFactory(repo, repo, types.DefaultRuntimeConfig(), reg)
	ctx := context.Background()

	rt, err := factory.Spawn(ctx, agentID, agents.NewCounter, agents.RegisterHandler)
	require.NoError(t, err)

	for _, delta := range []int64{1, 2, -1} {
		publishDelta(t, factory, agentID, delta)
	}

	require.Eventually(t, func() bool {
		cs, ok := rt.State().(agents.CounterState)
		return ok && cs.Count == 2
	}, time.Second, 5*time.Millisecond)

	events, err := repo.GetEvents(ctx, agentID, 0, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, []int64{1, 2, 3}, []int64{events[0].Version, events[1].Version, events[2].Version})
}

// Scenario 2: concurrency conflict. Two independent EventSourcingCore
// instances (standing in for two actors) both load agent A at version 3,
// each raise one event, each confirm: only the first succeeds.
func TestScenario_ConcurrencyConflict(t *testing.T) {
	agentID := uuid.New()
	repo := storage.NewMemoryEventRepository()
	reg := runtime.NewTypeRegistry()
	agents.RegisterCounterType(reg)
	ctx := context.Background()

	seed := []types.EventRecord{
		mustEventRecord(t, int64(1)),
		mustEventRecord(t, int64(1)),
		mustEventRecord(t, int64(1)),
	}
	_, err := repo.AppendEvents(ctx, agentID, seed, 0)
	require.NoError(t, err)

	coreA := newCounterCore(t, agentID, repo, reg)
	require.NoError(t, coreA.Replay(ctx, true))
	coreB := newCounterCore(t, agentID, repo, reg)
	require.NoError(t, coreB.Replay(ctx, true))
	require.EqualValues(t, 3, coreA.Version())
	require.EqualValues(t, 3, coreB.Version())

	coreA.Raise(mustEventRecord(t, int64(1)))
	coreB.Raise(mustEventRecord(t, int64(1)))

	v1, err1 := coreA.ConfirmEvents(ctx)
	require.NoError(t, err1)
	require.EqualValues(t, 4, v1)

	_, err2 := coreB.ConfirmEvents(ctx)
	require.ErrorIs(t, err2, types.ErrConcurrencyConflict)

	tip, err := repo.GetLatestVersion(ctx, agentID)
	require.NoError(t, err)
	require.EqualValues(t, 4, tip)
}

// Scenario 3: snapshot + truncation.
func TestScenario_SnapshotAndTruncation(t *testing.T) {
	agentID := uuid.New()
	repo := storage.NewMemoryEventRepository()
	reg := runtime.NewTypeRegistry()
	agents.RegisterCounterType(reg)
	ctx := context.Background()

	counterActor := agents.NewCounter(agentID).(*agents.Counter)
	core := runtime.NewEventSourcingCore(agentID, counterActor, repo, repo, reg,
		runtime.IntervalSnapshotStrategy{Interval: 5}, 1000)
	require.NoError(t, core.Replay(ctx, true))

	for i := 0; i < 12; i++ {
		core.Raise(mustEventRecord(t, int64(1)))
		_, err := core.ConfirmEvents(ctx)
		require.NoError(t, err)
	}
	require.EqualValues(t, 12, core.Version())
	liveState := core.State()

	// The reference in-memory store only retains the latest snapshot, so
	// by the time 12 events have confirmed under interval=5 the snapshot
	// on disk is the one taken at version 10 (the one at version 5 having
	// already been superseded).
	snap, err := repo.GetLatestSnapshot(ctx, agentID)
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.EqualValues(t, 10, snap.Version)

	require.NoError(t, repo.DeleteEventsBelowVersion(ctx, agentID, 10))

	replayed := runtime.NewEventSourcingCore(agentID, agents.NewCounter(agentID).(*agents.Counter), repo, repo, reg,
		runtime.IntervalSnapshotStrategy{Interval: 5}, 1000)
	require.NoError(t, replayed.Replay(ctx, true))
	require.EqualValues(t, 12, replayed.Version())
	require.Equal(t, liveState, replayed.State())
}

// Scenario 4: bidirectional propagation with dedup, chain P <- M <- L.
func TestScenario_BidirectionalPropagationWithDedup(t *testing.T) {
	repo := storage.NewMemoryEventRepository()
	reg := runtime.NewTypeRegistry()
	agents.RegisterCounterType(reg)
	factory := newFactory(repo, repo, types.DefaultRuntimeConfig(), reg)
	ctx := context.Background()

	var countsP, countsM, countsL atomic.Int64
	spawnCounting := func(id uuid.UUID, counter *atomic.Int64) {
		_, err := factory.Spawn(ctx, id, noopAgent, func(rt *runtime.AgentRuntime) {
			rt.RegisterHandler(agents.CounterDeltaTypeURL, func(ctx context.Context, rt *runtime.AgentRuntime, payload proto.Message, env *types.Envelope) error {
				counter.Add(1)
				return nil
			})
		})
		require.NoError(t, err)
	}

	p, m, l := uuid.New(), uuid.New(), uuid.New()
	spawnCounting(p, &countsP)
	spawnCounting(m, &countsM)
	spawnCounting(l, &countsL)

	factory.Subscriptions().SetParent(m, &p)
	factory.Subscriptions().AddChild(p, m)
	factory.Subscriptions().SetParent(l, &m)
	factory.Subscriptions().AddChild(m, l)

	envID := mustUUID(t, "11111111-1111-1111-1111-111111111101")
	publishDeltaWithID(t, factory, l, 1, envID, types.DirectionBoth)

	require.Eventually(t, func() bool {
		return countsP.Load() == 1 && countsM.Load() == 1 && countsL.Load() == 1
	}, time.Second, 5*time.Millisecond)

	// Re-publishing the same envelope id must be dropped at every stream.
	publishDeltaWithID(t, factory, l, 1, envID, types.DirectionBoth)
	time.Sleep(50 * time.Millisecond)
	require.EqualValues(t, 1, countsP.Load())
	require.EqualValues(t, 1, countsM.Load())
	require.EqualValues(t, 1, countsL.Load())
}

// Scenario 5: reparenting isolation.
func TestScenario_ReparentingIsolation(t *testing.T) {
	repo := storage.NewMemoryEventRepository()
	reg := runtime.NewTypeRegistry()
	agents.RegisterCounterType(reg)
	factory := newFactory(repo, repo, types.DefaultRuntimeConfig(), reg)
	ctx := context.Background()

	var receivedByE atomic.Int64
	e := uuid.New()
	_, err := factory.Spawn(ctx, e, noopAgent, func(rt *runtime.AgentRuntime) {
		rt.RegisterHandler(agents.CounterDeltaTypeURL, func(ctx context.Context, rt *runtime.AgentRuntime, payload proto.Message, env *types.Envelope) error {
			receivedByE.Add(1)
			return nil
		})
	})
	require.NoError(t, err)

	oldM := uuid.New()
	_, err = factory.Spawn(ctx, oldM, noopAgent, nil)
	require.NoError(t, err)
	newM := uuid.New()
	_, err = factory.Spawn(ctx, newM, noopAgent, nil)
	require.NoError(t, err)

	factory.Subscriptions().SetParent(e, &oldM)
	factory.Subscriptions().AddChild(oldM, e)

	// Reparent: E moves from oldM to newM.
	factory.Subscriptions().RemoveChild(oldM, e)
	factory.Subscriptions().SetParent(e, &newM)
	factory.Subscriptions().AddChild(newM, e)

	publishDeltaWithID(t, factory, oldM, 1, uuid.New(), types.DirectionDown)
	time.Sleep(50 * time.Millisecond)
	require.EqualValues(t, 0, receivedByE.Load())

	publishDeltaWithID(t, factory, newM, 1, uuid.New(), types.DirectionDown)
	require.Eventually(t, func() bool {
		return receivedByE.Load() == 1
	}, time.Second, 5*time.Millisecond)
}

// Scenario 6: handler failure isolation.
func TestScenario_HandlerFailureIsolation(t *testing.T) {
	repo := storage.NewMemoryEventRepository()
	reg := runtime.NewTypeRegistry()
	agents.RegisterCounterType(reg)
	factory := newFactory(repo, repo, types.DefaultRuntimeConfig(), reg)
	ctx := context.Background()

	var goodRan atomic.Bool
	agentID := uuid.New()
	rt, err := factory.Spawn(ctx, agentID, noopAgent, func(rt *runtime.AgentRuntime) {
		rt.RegisterHandler(agents.CounterDeltaTypeURL, func(ctx context.Context, rt *runtime.AgentRuntime, payload proto.Message, env *types.Envelope) error {
			goodRan.Store(true)
			return nil
		})
		rt.RegisterHandler(agents.CounterDeltaTypeURL, func(ctx context.Context, rt *runtime.AgentRuntime, payload proto.Message, env *types.Envelope) error {
			return errThrowingHandler
		})
	})
	require.NoError(t, err)

	publishDeltaWithID(t, factory, agentID, 1, uuid.New(), types.DirectionSelf)

	require.Eventually(t, func() bool {
		return rt.ErrorCount() == 1
	}, time.Second, 5*time.Millisecond)
	require.True(t, goodRan.Load())
	require.EqualValues(t, 0, rt.Version())
}

var errThrowingHandler = errors.New("handler intentionally failed")

// noopAgent is a minimal, non-event-sourced AgentCapabilities used for the
// propagation scenarios: routing is evaluated by AgentRuntime.process
// independently of whether the agent itself persists any state.
func noopAgent(id uuid.UUID) runtime.AgentCapabilities {
	return &plainAgent{id: id}
}

type plainAgent struct{ id uuid.UUID }

func (a *plainAgent) ID() uuid.UUID { return a.id }
func (a *plainAgent) OnActivate(ctx context.Context, deps *runtime.AgentDependencies) error {
	return nil
}
func (a *plainAgent) OnDeactivate(ctx context.Context) error { return nil }

func mustEventRecord(t *testing.T, delta int64) types.EventRecord {
	t.Helper()
	packed, err := runtime.Pack(wrapperspb.Int64(delta))
	require.NoError(t, err)
	return types.EventRecord{
		EventID:   uuid.New(),
		EventType: packed.TypeUrl,
		EventData: packed,
	}
}

func newCounterCore(t *testing.T, agentID uuid.UUID, repo storage.EventRepository, reg *runtime.TypeRegistry) *runtime.EventSourcingCore {
	t.Helper()
	actor := agents.NewCounter(agentID).(*agents.Counter)
	return runtime.NewEventSourcingCore(agentID, actor, repo, repo, reg, runtime.IntervalSnapshotStrategy{Interval: 100}, 1000)
}

func publishDelta(t *testing.T, factory *manager.ActorFactory, agentID uuid.UUID, delta int64) {
	t.Helper()
	publishDeltaWithID(t, factory, agentID, delta, uuid.New(), types.DirectionSelf)
}

func publishDeltaWithID(t *testing.T, factory *manager.ActorFactory, agentID uuid.UUID, delta int64, envID uuid.UUID, direction types.Direction) {
	t.Helper()
	payload, err := runtime.Pack(wrapperspb.Int64(delta))
	require.NoError(t, err)
	env := &types.Envelope{
		ID:          envID,
		PublisherID: agentID,
		Payload:     payload,
		Direction:   direction,
	}
	stream, ok := factory.Registry().Get(agentID)
	require.True(t, ok)
	require.NoError(t, stream.Publish(env))
}
