package storage

import (
	"context"

	"github.com/gagents/gagents/pkg/types"
	"github.com/google/uuid"
)

// EventRepository is the append-only, versioned per-agent event log. Every
// backend (in-memory, BoltDB, Raft-replicated) must deliver the query
// complexities these operations imply: O(log n) version lookup, O(k)
// range reads.
type EventRepository interface {
	// AppendEvents atomically appends events to agentID's log, assigning
	// versions expectedVersion+1, expectedVersion+2, ... in order, and returns the new
	// tip version. Fails with types.ErrConcurrencyConflict if the stored
	// latest version does not equal expectedVersion.
	AppendEvents(ctx context.Context, agentID uuid.UUID, events []types.EventRecord, expectedVersion int64) (int64, error)

	// GetEvents returns events for agentID ordered by version ascending,
	// restricted to [fromVersion, toVersion] when those are > 0, and to
	// at most maxCount records when maxCount > 0.
	GetEvents(ctx context.Context, agentID uuid.UUID, fromVersion, toVersion int64, maxCount int) ([]types.EventRecord, error)

	// GetLatestVersion returns agentID's current tip version, or 0 if no
	// events have been appended.
	GetLatestVersion(ctx context.Context, agentID uuid.UUID) (int64, error)

	// DeleteEventsBelowVersion truncates history strictly older than
	// version. Idempotent.
	DeleteEventsBelowVersion(ctx context.Context, agentID uuid.UUID, version int64) error
}

// SnapshotStore persists cumulative, versioned state snapshots. Typically
// backed by the same store as the EventRepository.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snapshot types.Snapshot) error
	GetLatestSnapshot(ctx context.Context, agentID uuid.UUID) (*types.Snapshot, error)
}

// Backend is the combined contract a persistence backend implements.
type Backend interface {
	EventRepository
	SnapshotStore
	Close() error
}
