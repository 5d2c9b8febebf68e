package events

import (
	"sync"

	"github.com/gagents/gagents/pkg/types"
	"github.com/google/uuid"
)

// SubscriptionManager stores parent/child relationships and computes, for
// a published envelope, the immediate next-hop set of target streams
// given its direction. Propagation across more than one hop is not done
// by a single traversal here: each recipient, upon handling an envelope,
// decides whether to re-publish it to its own next hop using this same
// manager. That keeps every hop at most one mailbox deep, at the cost of
// requiring dedup (see EventDeduplicator) so Both does not loop between
// parent and child.
type SubscriptionManager struct {
	mu            sync.RWMutex
	relationships map[uuid.UUID]*types.Relationship
}

// NewSubscriptionManager creates an empty manager.
func NewSubscriptionManager() *SubscriptionManager {
	return &SubscriptionManager{
		relationships: make(map[uuid.UUID]*types.Relationship),
	}
}

func (m *SubscriptionManager) relationshipLocked(id uuid.UUID) *types.Relationship {
	r, ok := m.relationships[id]
	if !ok {
		r = &types.Relationship{AgentID: id}
		m.relationships[id] = r
	}
	return r
}

// SetParent atomically subscribes child's stream to parent's downstream
// routing. Idempotent. Passing a nil parent clears the relationship
// (unsubscribes). SetParent and AddChild are separate idempotent
// operations that must be paired to establish the full relationship; the
// manager accepts transient one-sided state and converges (see the
// reconciler package).
func (m *SubscriptionManager) SetParent(child uuid.UUID, parent *uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.relationshipLocked(child)
	r.ParentID = parent
}

// AddChild idempotently records child as a direct child of parent.
func (m *SubscriptionManager) AddChild(parent, child uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.relationshipLocked(parent)
	if !r.HasChild(child) {
		r.Children = append(r.Children, child)
	}
}

// RemoveChild removes child from parent's recorded child set, if present.
func (m *SubscriptionManager) RemoveChild(parent, child uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.relationships[parent]
	if !ok {
		return
	}
	for i, c := range r.Children {
		if c == child {
			r.Children = append(r.Children[:i], r.Children[i+1:]...)
			return
		}
	}
}

// Relationship returns a copy of the relationship record for id, or a
// zero-valued record (no parent, no children) if none is held.
func (m *SubscriptionManager) Relationship(id uuid.UUID) types.Relationship {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.relationships[id]
	if !ok {
		return types.Relationship{AgentID: id}
	}
	children := make([]uuid.UUID, len(r.Children))
	copy(children, r.Children)
	return types.Relationship{AgentID: id, ParentID: r.ParentID, Children: children}
}

// Parent returns id's recorded parent, if any.
func (m *SubscriptionManager) Parent(id uuid.UUID) (uuid.UUID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.relationships[id]
	if !ok || r.ParentID == nil {
		return uuid.Nil, false
	}
	return *r.ParentID, true
}

// Children returns id's recorded direct children.
func (m *SubscriptionManager) Children(id uuid.UUID) []uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.relationships[id]
	if !ok {
		return nil
	}
	out := make([]uuid.UUID, len(r.Children))
	copy(out, r.Children)
	return out
}

// AllRelationships returns a copy of every relationship record currently
// held, for the reconciler's periodic convergence sweep.
func (m *SubscriptionManager) AllRelationships() []types.Relationship {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Relationship, 0, len(m.relationships))
	for id, r := range m.relationships {
		children := make([]uuid.UUID, len(r.Children))
		copy(children, r.Children)
		out = append(out, types.Relationship{AgentID: id, ParentID: r.ParentID, Children: children})
	}
	return out
}

// NextHopTargets computes the immediate set of agent ids an envelope
// published by publisherID with the given direction must reach at this
// hop: always the publisher itself, plus its parent for Up/Both, plus its
// direct children for Down/Both.
func (m *SubscriptionManager) NextHopTargets(publisherID uuid.UUID, direction types.Direction) []uuid.UUID {
	targets := []uuid.UUID{publisherID}

	switch direction {
	case types.DirectionSelf:
		return targets
	case types.DirectionUp:
		if parent, ok := m.Parent(publisherID); ok {
			targets = append(targets, parent)
		}
	case types.DirectionDown:
		targets = append(targets, m.Children(publisherID)...)
	case types.DirectionBoth:
		if parent, ok := m.Parent(publisherID); ok {
			targets = append(targets, parent)
		}
		targets = append(targets, m.Children(publisherID)...)
	}
	return targets
}
