package events

import (
	"testing"

	"github.com/gagents/gagents/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSubscriptionManager_NextHopTargets(t *testing.T) {
	m := NewSubscriptionManager()
	parent, mid, child := uuid.New(), uuid.New(), uuid.New()

	m.SetParent(mid, &parent)
	m.AddChild(parent, mid)
	m.SetParent(child, &mid)
	m.AddChild(mid, child)

	assert.ElementsMatch(t, []uuid.UUID{mid}, m.NextHopTargets(mid, types.DirectionSelf))
	assert.ElementsMatch(t, []uuid.UUID{mid, parent}, m.NextHopTargets(mid, types.DirectionUp))
	assert.ElementsMatch(t, []uuid.UUID{mid, child}, m.NextHopTargets(mid, types.DirectionDown))
	assert.ElementsMatch(t, []uuid.UUID{mid, parent, child}, m.NextHopTargets(mid, types.DirectionBoth))
}

func TestSubscriptionManager_ReparentingConverges(t *testing.T) {
	m := NewSubscriptionManager()
	oldParent, newParent, leaf := uuid.New(), uuid.New(), uuid.New()

	m.SetParent(leaf, &oldParent)
	m.AddChild(oldParent, leaf)

	// reparent: remove from old parent, point to new parent, add to new parent
	m.RemoveChild(oldParent, leaf)
	m.SetParent(leaf, &newParent)
	m.AddChild(newParent, leaf)

	assert.NotContains(t, m.Children(oldParent), leaf)
	assert.Contains(t, m.Children(newParent), leaf)
	got, ok := m.Parent(leaf)
	assert.True(t, ok)
	assert.Equal(t, newParent, got)
}

func TestSubscriptionManager_AddChildIdempotent(t *testing.T) {
	m := NewSubscriptionManager()
	parent, child := uuid.New(), uuid.New()

	m.AddChild(parent, child)
	m.AddChild(parent, child)

	assert.Len(t, m.Children(parent), 1)
}
