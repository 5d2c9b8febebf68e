package agents

import (
	"context"
	"testing"
	"time"

	"github.com/gagents/gagents/pkg/manager"
	"github.com/gagents/gagents/pkg/runtime"
	"github.com/gagents/gagents/pkg/storage"
	"github.com/gagents/gagents/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func newTestFactory(t *testing.T) *manager.ActorFactory {
	t.Helper()
	repo := storage.NewMemoryEventRepository()
	reg := runtime.NewTypeRegistry()
	RegisterCounterType(reg)
	return manager.NewActorFactory(manager.Dependencies{
		Config:       types.DefaultRuntimeConfig(),
		Repository:   repo,
		Snapshots:    repo,
		TypeRegistry: reg,
	})
}

func TestCounter_AccumulatesDeltas(t *testing.T) {
	f := newTestFactory(t)
	ctx := context.Background()
	id := uuid.New()

	rt, err := f.Spawn(ctx, id, NewCounter, RegisterHandler)
	require.NoError(t, err)

	for _, delta := range []int64{1, 2, -1} {
		payload, err := runtime.Pack(wrapperspb.Int64(delta))
		require.NoError(t, err)
		env := &types.Envelope{
			ID:          uuid.New(),
			PublisherID: id,
			Payload:     payload,
			Direction:   types.DirectionSelf,
		}
		stream, ok := f.Registry().Get(id)
		require.True(t, ok)
		require.NoError(t, stream.Publish(env))
	}

	require.Eventually(t, func() bool {
		cs, ok := rt.State().(CounterState)
		return ok && cs.Count == 2
	}, time.Second, 5*time.Millisecond)
}
