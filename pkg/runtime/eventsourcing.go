package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagents/gagents/pkg/storage"
	"github.com/gagents/gagents/pkg/types"
	"github.com/google/uuid"
)

// SnapshotStrategy decides, after a successful ConfirmEvents, whether the
// new tip version warrants a snapshot write.
type SnapshotStrategy interface {
	ShouldSnapshot(version int64) bool
}

// IntervalSnapshotStrategy snapshots every N versions, per
// RuntimeConfig.SnapshotInterval.
type IntervalSnapshotStrategy struct {
	Interval int64
}

func (s IntervalSnapshotStrategy) ShouldSnapshot(version int64) bool {
	return s.Interval > 0 && version%s.Interval == 0
}

// TransitionFailureError wraps a Transition error together with the event
// that triggered it. A transition failure on an already-persisted event is
// fatal to the agent: the caller must deactivate and require manual
// intervention, since the logical state is now inconsistent with the log.
type TransitionFailureError struct {
	AgentID uuid.UUID
	Event   types.EventRecord
	Err     error
}

func (e *TransitionFailureError) Error() string {
	return fmt.Sprintf("agent %s: transition failed for event %s (version %d): %v", e.AgentID, e.Event.EventID, e.Event.Version, e.Err)
}

func (e *TransitionFailureError) Unwrap() error { return e.Err }

// EventSourcingCore implements the RaiseEvent/ConfirmEvents algorithms. It
// is the single-writer state machine for one
// EventSourcedAgent; callers (AgentRuntime) must only invoke it from the
// agent's own mailbox loop goroutine — no internal locking on the hot path
// is needed for that reason, except the small critical sections below that
// also guard state reads made from other goroutines (e.g. inspection APIs).
type EventSourcingCore struct {
	agentID    uuid.UUID
	agent      EventSourcedAgent
	repo       storage.EventRepository
	snapshots  storage.SnapshotStore
	typeReg    *TypeRegistry
	strategy   SnapshotStrategy
	maxReplay  int

	mu             sync.Mutex
	currentVersion int64
	pending        []types.EventRecord
	state          atomic.Value // holds `any`
}

// NewEventSourcingCore constructs a core bound to agent. Replay must be
// called once before RaiseEvent/ConfirmEvents are used.
func NewEventSourcingCore(agentID uuid.UUID, agent EventSourcedAgent, repo storage.EventRepository, snapshots storage.SnapshotStore, typeReg *TypeRegistry, strategy SnapshotStrategy, maxReplayBatch int) *EventSourcingCore {
	if maxReplayBatch <= 0 {
		maxReplayBatch = 1000
	}
	c := &EventSourcingCore{
		agentID:   agentID,
		agent:     agent,
		repo:      repo,
		snapshots: snapshots,
		typeReg:   typeReg,
		strategy:  strategy,
		maxReplay: maxReplayBatch,
	}
	c.state.Store(agent.InitialState())
	return c
}

// State returns the current live state. Safe for concurrent reads: readers
// see either the pre- or post-transition value, never a partial one.
func (c *EventSourcingCore) State() any {
	return c.state.Load()
}

// Version returns the current persisted tip version.
func (c *EventSourcingCore) Version() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentVersion
}

// Replay loads the latest snapshot (if any) and applies subsequent events
// paged in batches of maxReplayBatch, leaving state and currentVersion at
// the live tip.
func (c *EventSourcingCore) Replay(ctx context.Context, allowUnknownOnReplay bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	version := int64(0)
	state := c.agent.InitialState()

	if c.snapshots != nil {
		snap, err := c.snapshots.GetLatestSnapshot(ctx, c.agentID)
		if err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}
		if snap != nil {
			restored, err := c.agent.UnmarshalState(snap.StateData)
			if err != nil {
				return fmt.Errorf("restore snapshot: %w", err)
			}
			state = restored
			version = snap.Version
		}
	}

	for {
		batch, err := c.repo.GetEvents(ctx, c.agentID, version+1, 0, c.maxReplay)
		if err != nil {
			return fmt.Errorf("replay events: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		for _, e := range batch {
			payload, err := c.typeReg.Unpack(e.EventData)
			if err != nil {
				if allowUnknownOnReplay && errors.Is(err, types.ErrTypeUnknown) {
					version = e.Version
					continue
				}
				return fmt.Errorf("replay event %s: %w", e.EventID, err)
			}
			next, err := c.agent.Transition(state, payload)
			if err != nil {
				return &TransitionFailureError{AgentID: c.agentID, Event: e, Err: err}
			}
			state = next
			version = e.Version
		}
		if len(batch) < c.maxReplay {
			break
		}
	}

	c.state.Store(state)
	c.currentVersion = version
	c.pending = nil
	return nil
}

// Raise stages a new event with an already-packed payload. It never
// mutates state. Returns the tentative version it was assigned
// (current_version + pending_count + 1).
func (c *EventSourcingCore) Raise(rec types.EventRecord) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec.AgentID = c.agentID
	rec.Version = c.currentVersion + int64(len(c.pending)) + 1
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	c.pending = append(c.pending, rec)
	return rec.Version
}

// PendingCount reports how many events are staged but not yet confirmed.
func (c *EventSourcingCore) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// ConfirmEvents appends the pending batch under optimistic concurrency,
// applies Transition to each newly-persisted event in order, snapshots if
// the strategy says to, and clears pending. On a concurrency conflict the
// pending batch is dropped and the conflict surfaces to the caller; there
// is no auto-retry.
func (c *EventSourcingCore) ConfirmEvents(ctx context.Context) (int64, error) {
	c.mu.Lock()
	if len(c.pending) == 0 {
		v := c.currentVersion
		c.mu.Unlock()
		return v, nil
	}
	pending := c.pending
	expected := c.currentVersion
	c.mu.Unlock()

	newVersion, err := c.repo.AppendEvents(ctx, c.agentID, pending, expected)
	if err != nil {
		c.mu.Lock()
		if errors.Is(err, types.ErrConcurrencyConflict) {
			c.pending = nil
		}
		v := c.currentVersion
		c.mu.Unlock()
		return v, err
	}

	state := c.state.Load()
	for _, e := range pending {
		payload, uerr := c.typeReg.Unpack(e.EventData)
		if uerr != nil {
			return c.currentVersion, fmt.Errorf("confirm: unpack staged event %s: %w", e.EventID, uerr)
		}
		next, terr := c.agent.Transition(state, payload)
		if terr != nil {
			return c.currentVersion, &TransitionFailureError{AgentID: c.agentID, Event: e, Err: terr}
		}
		state = next
	}

	c.mu.Lock()
	c.state.Store(state)
	c.currentVersion = newVersion
	c.pending = nil
	c.mu.Unlock()

	if c.strategy != nil && c.snapshots != nil && c.strategy.ShouldSnapshot(newVersion) {
		data, merr := c.agent.MarshalState(state)
		if merr != nil {
			return newVersion, fmt.Errorf("marshal snapshot state: %w", merr)
		}
		if serr := c.snapshots.SaveSnapshot(ctx, types.Snapshot{
			AgentID:   c.agentID,
			Version:   newVersion,
			Timestamp: time.Now().UTC(),
			StateData: data,
		}); serr != nil {
			return newVersion, fmt.Errorf("save snapshot: %w", serr)
		}
	}

	return newVersion, nil
}
