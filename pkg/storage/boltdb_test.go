package storage

import (
	"context"
	"testing"

	"github.com/gagents/gagents/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoltEventRepository_AppendAndRead(t *testing.T) {
	ctx := context.Background()
	repo, err := NewBoltEventRepository(t.TempDir())
	require.NoError(t, err)
	defer repo.Close()

	events := []types.EventRecord{
		{EventID: uuid.New(), EventType: "counter_delta"},
		{EventID: uuid.New(), EventType: "counter_delta"},
	}
	version, err := repo.AppendEvents(ctx, testAgentID, events, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, version)

	got, err := repo.GetEvents(ctx, testAgentID, 0, 0, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, testAgentID, got[0].AgentID)
	assert.EqualValues(t, 1, got[0].Version)
}

func TestBoltEventRepository_ConcurrencyConflict(t *testing.T) {
	ctx := context.Background()
	repo, err := NewBoltEventRepository(t.TempDir())
	require.NoError(t, err)
	defer repo.Close()

	_, err = repo.AppendEvents(ctx, testAgentID, []types.EventRecord{{EventID: uuid.New()}}, 0)
	require.NoError(t, err)

	_, err = repo.AppendEvents(ctx, testAgentID, []types.EventRecord{{EventID: uuid.New()}}, 0)
	assert.ErrorIs(t, err, types.ErrConcurrencyConflict)
}

func TestBoltEventRepository_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	repo, err := NewBoltEventRepository(dir)
	require.NoError(t, err)
	_, err = repo.AppendEvents(ctx, testAgentID, []types.EventRecord{{EventID: uuid.New(), EventType: "counter_delta"}}, 0)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	reopened, err := NewBoltEventRepository(dir)
	require.NoError(t, err)
	defer reopened.Close()

	v, err := reopened.GetLatestVersion(ctx, testAgentID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)
}

func TestBoltEventRepository_SnapshotAndTruncate(t *testing.T) {
	ctx := context.Background()
	repo, err := NewBoltEventRepository(t.TempDir())
	require.NoError(t, err)
	defer repo.Close()

	var version int64
	for i := 0; i < 12; i++ {
		v, err := repo.AppendEvents(ctx, testAgentID, []types.EventRecord{{EventID: uuid.New(), EventType: "counter_delta"}}, version)
		require.NoError(t, err)
		version = v
	}

	require.NoError(t, repo.SaveSnapshot(ctx, types.Snapshot{AgentID: testAgentID, Version: 10, StateData: []byte(`{"count":10}`)}))
	require.NoError(t, repo.DeleteEventsBelowVersion(ctx, testAgentID, 10))

	remaining, err := repo.GetEvents(ctx, testAgentID, 0, 0, 0)
	require.NoError(t, err)
	require.Len(t, remaining, 3)

	snap, err := repo.GetLatestSnapshot(ctx, testAgentID)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.EqualValues(t, 10, snap.Version)
}
