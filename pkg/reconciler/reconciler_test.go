package reconciler

import (
	"testing"
	"time"

	"github.com/gagents/gagents/pkg/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestReconciler_HealsMissingChildReference(t *testing.T) {
	subs := events.NewSubscriptionManager()
	parent, child := uuid.New(), uuid.New()

	// one-sided: child knows its parent, parent doesn't know the child.
	subs.SetParent(child, &parent)

	r := NewReconciler(subs, time.Hour)
	r.reconcile()

	assert.Contains(t, subs.Children(parent), child)
}

func TestReconciler_HealsMissingParentReference(t *testing.T) {
	subs := events.NewSubscriptionManager()
	parent, child := uuid.New(), uuid.New()

	// one-sided: parent knows the child, child doesn't know its parent.
	subs.AddChild(parent, child)

	r := NewReconciler(subs, time.Hour)
	r.reconcile()

	got, ok := subs.Parent(child)
	assert.True(t, ok)
	assert.Equal(t, parent, got)
}

func TestReconciler_ClearsDanglingParent(t *testing.T) {
	subs := events.NewSubscriptionManager()
	child := uuid.New()
	ghost := uuid.New()
	subs.SetParent(child, &ghost)

	r := NewReconciler(subs, time.Hour)
	r.reconcile()

	_, ok := subs.Parent(child)
	assert.False(t, ok)
}

func TestReconciler_PrunesStaleChildAfterReparent(t *testing.T) {
	subs := events.NewSubscriptionManager()
	oldParent, newParent, child := uuid.New(), uuid.New(), uuid.New()

	// child was moved to newParent, but oldParent's Children entry was
	// never pruned (e.g. a crash between RemoveChild and SetParent).
	subs.AddChild(oldParent, child)
	subs.SetParent(child, &newParent)
	subs.AddChild(newParent, child)

	r := NewReconciler(subs, time.Hour)
	r.reconcile()

	assert.NotContains(t, subs.Children(oldParent), child)
	got, ok := subs.Parent(child)
	assert.True(t, ok)
	assert.Equal(t, newParent, got)
}

func TestReconciler_ConvergedStateIsNoop(t *testing.T) {
	subs := events.NewSubscriptionManager()
	parent, child := uuid.New(), uuid.New()
	subs.SetParent(child, &parent)
	subs.AddChild(parent, child)

	r := NewReconciler(subs, time.Hour)
	r.reconcile()
	r.reconcile()

	assert.Contains(t, subs.Children(parent), child)
	got, ok := subs.Parent(child)
	assert.True(t, ok)
	assert.Equal(t, parent, got)
}
