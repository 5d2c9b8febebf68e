package storage

import (
	"context"
	"sync"

	"github.com/gagents/gagents/pkg/types"
	"github.com/google/uuid"
)

// MemoryEventRepository is the in-memory reference EventRepository/
// SnapshotStore implementation. It is not durable across process
// restarts; use BoltEventRepository or RaftEventRepository for that.
type MemoryEventRepository struct {
	mu        sync.Mutex
	events    map[uuid.UUID][]types.EventRecord
	snapshots map[uuid.UUID]types.Snapshot
}

// NewMemoryEventRepository creates an empty in-memory repository.
func NewMemoryEventRepository() *MemoryEventRepository {
	return &MemoryEventRepository{
		events:    make(map[uuid.UUID][]types.EventRecord),
		snapshots: make(map[uuid.UUID]types.Snapshot),
	}
}

func (r *MemoryEventRepository) AppendEvents(ctx context.Context, agentID uuid.UUID, events []types.EventRecord, expectedVersion int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := int64(len(r.events[agentID]))
	if current != expectedVersion {
		return current, types.ErrConcurrencyConflict
	}
	if len(events) == 0 {
		return current, nil
	}

	for i := range events {
		events[i].AgentID = agentID
		events[i].Version = expectedVersion + int64(i) + 1
	}
	r.events[agentID] = append(r.events[agentID], events...)
	return r.events[agentID][len(r.events[agentID])-1].Version, nil
}

func (r *MemoryEventRepository) GetEvents(ctx context.Context, agentID uuid.UUID, fromVersion, toVersion int64, maxCount int) ([]types.EventRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := r.events[agentID]
	out := make([]types.EventRecord, 0, len(all))
	for _, e := range all {
		if fromVersion > 0 && e.Version < fromVersion {
			continue
		}
		if toVersion > 0 && e.Version > toVersion {
			continue
		}
		out = append(out, e)
		if maxCount > 0 && len(out) >= maxCount {
			break
		}
	}
	return out, nil
}

func (r *MemoryEventRepository) GetLatestVersion(ctx context.Context, agentID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.events[agentID])), nil
}

func (r *MemoryEventRepository) DeleteEventsBelowVersion(ctx context.Context, agentID uuid.UUID, version int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := r.events[agentID]
	kept := make([]types.EventRecord, 0, len(all))
	for _, e := range all {
		if e.Version >= version {
			kept = append(kept, e)
		}
	}
	r.events[agentID] = kept
	return nil
}

func (r *MemoryEventRepository) SaveSnapshot(ctx context.Context, snapshot types.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[snapshot.AgentID] = snapshot
	return nil
}

func (r *MemoryEventRepository) GetLatestSnapshot(ctx context.Context, agentID uuid.UUID) (*types.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.snapshots[agentID]
	if !ok {
		return nil, nil
	}
	clone := s
	return &clone, nil
}

func (r *MemoryEventRepository) Close() error { return nil }

// dump returns a deterministic, full copy of all state — used by
// RaftEventRepository to build Raft snapshots of an in-memory-backed FSM.
func (r *MemoryEventRepository) dump() *memoryDump {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := &memoryDump{
		Events:    make(map[uuid.UUID][]types.EventRecord, len(r.events)),
		Snapshots: make(map[uuid.UUID]types.Snapshot, len(r.snapshots)),
	}
	for id, evs := range r.events {
		cp := make([]types.EventRecord, len(evs))
		copy(cp, evs)
		d.Events[id] = cp
	}
	for id, s := range r.snapshots {
		d.Snapshots[id] = s
	}
	return d
}

func (r *MemoryEventRepository) restore(d *memoryDump) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = d.Events
	r.snapshots = d.Snapshots
	if r.events == nil {
		r.events = make(map[uuid.UUID][]types.EventRecord)
	}
	if r.snapshots == nil {
		r.snapshots = make(map[uuid.UUID]types.Snapshot)
	}
}

type memoryDump struct {
	Events    map[uuid.UUID][]types.EventRecord
	Snapshots map[uuid.UUID]types.Snapshot
}
