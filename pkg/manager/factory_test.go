package manager

import (
	"context"
	"testing"

	"github.com/gagents/gagents/pkg/runtime"
	"github.com/gagents/gagents/pkg/storage"
	"github.com/gagents/gagents/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAgent struct{ id uuid.UUID }

func (a *stubAgent) ID() uuid.UUID { return a.id }
func (a *stubAgent) OnActivate(ctx context.Context, deps *runtime.AgentDependencies) error {
	return nil
}
func (a *stubAgent) OnDeactivate(ctx context.Context) error { return nil }

func newTestFactory() *ActorFactory {
	repo := storage.NewMemoryEventRepository()
	return NewActorFactory(Dependencies{
		Config:       types.DefaultRuntimeConfig(),
		Repository:   repo,
		Snapshots:    repo,
		TypeRegistry: runtime.NewTypeRegistry(),
	})
}

func TestActorFactory_SpawnAlreadyActiveFault(t *testing.T) {
	f := newTestFactory()
	ctx := context.Background()
	id := uuid.New()

	_, err := f.Spawn(ctx, id, func(id uuid.UUID) runtime.AgentCapabilities { return &stubAgent{id: id} }, nil)
	require.NoError(t, err)

	_, err = f.Spawn(ctx, id, func(id uuid.UUID) runtime.AgentCapabilities { return &stubAgent{id: id} }, nil)
	assert.ErrorIs(t, err, types.ErrAlreadyActive)

	assert.Equal(t, 1, f.Len())
}

func TestActorFactory_DespawnThenRespawn(t *testing.T) {
	f := newTestFactory()
	ctx := context.Background()
	id := uuid.New()

	_, err := f.Spawn(ctx, id, func(id uuid.UUID) runtime.AgentCapabilities { return &stubAgent{id: id} }, nil)
	require.NoError(t, err)

	require.NoError(t, f.Despawn(ctx, id))
	assert.Equal(t, 0, f.Len())

	err = f.Despawn(ctx, id)
	assert.ErrorIs(t, err, types.ErrNotActive)

	_, err = f.Spawn(ctx, id, func(id uuid.UUID) runtime.AgentCapabilities { return &stubAgent{id: id} }, nil)
	assert.NoError(t, err)
}

func TestActorFactory_ActiveIDs(t *testing.T) {
	f := newTestFactory()
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	_, err := f.Spawn(ctx, a, func(id uuid.UUID) runtime.AgentCapabilities { return &stubAgent{id: id} }, nil)
	require.NoError(t, err)
	_, err = f.Spawn(ctx, b, func(id uuid.UUID) runtime.AgentCapabilities { return &stubAgent{id: id} }, nil)
	require.NoError(t, err)

	assert.ElementsMatch(t, []uuid.UUID{a, b}, f.ActiveIDs())
}
