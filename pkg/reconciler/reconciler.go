// Package reconciler periodically heals one-sided relationship state in
// a SubscriptionManager. SetParent and AddChild are independent,
// idempotent calls: a caller may observe a parent's Children list
// updated before (or without) the child's ParentID being set, or vice
// versa, if a process crashes between the two calls or a caller only
// performs one of them. The reconciler uses a ticker-driven
// reconciliation loop, retargeted at relationship convergence instead
// of node/container desired-state drift.
package reconciler

import (
	"time"

	"github.com/gagents/gagents/pkg/events"
	"github.com/gagents/gagents/pkg/log"
	"github.com/gagents/gagents/pkg/metrics"
	"github.com/rs/zerolog"
)

// Reconciler converges a SubscriptionManager's parent/child records so
// that, for every relationship, child.ParentID == parent and
// parent.Children contains child hold together.
type Reconciler struct {
	subs     *events.SubscriptionManager
	interval time.Duration
	logger   zerolog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewReconciler builds a reconciler over subs, running one convergence
// cycle every interval.
func NewReconciler(subs *events.SubscriptionManager, interval time.Duration) *Reconciler {
	return &Reconciler{
		subs:     subs,
		interval: interval,
		logger:   log.WithComponent("reconciler"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the reconciliation loop in a new goroutine.
func (r *Reconciler) Start() {
	go r.run()
}

// Stop stops the reconciler and waits for its goroutine to exit.
func (r *Reconciler) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *Reconciler) run() {
	defer close(r.doneCh)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info().Msg("reconciler started")
	for {
		select {
		case <-ticker.C:
			r.reconcile()
		case <-r.stopCh:
			r.logger.Info().Msg("reconciler stopped")
			return
		}
	}
}

// reconcile runs one convergence cycle over every known relationship.
func (r *Reconciler) reconcile() {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ReconciliationDuration)
		metrics.ReconciliationCyclesTotal.Inc()
	}()

	relationships := r.subs.AllRelationships()
	byID := make(map[string]bool, len(relationships))
	for _, rel := range relationships {
		byID[rel.AgentID.String()] = true
	}

	for _, rel := range relationships {
		// dangling parent: child points at a parent id this manager has
		// never recorded a relationship for at all.
		if rel.ParentID != nil && !byID[rel.ParentID.String()] {
			r.logger.Warn().
				Str("agent_id", rel.AgentID.String()).
				Str("parent_id", rel.ParentID.String()).
				Msg("dangling parent reference, clearing")
			r.subs.SetParent(rel.AgentID, nil)
			metrics.ReconciliationRepairsTotal.WithLabelValues("dangling_parent").Inc()
			continue
		}

		// parent side missing: child has a parent, but the parent's
		// Children set does not list it back.
		if rel.ParentID != nil {
			parentRel := r.subs.Relationship(*rel.ParentID)
			if !parentRel.HasChild(rel.AgentID) {
				r.logger.Info().
					Str("agent_id", rel.AgentID.String()).
					Str("parent_id", rel.ParentID.String()).
					Msg("healing missing child reference")
				r.subs.AddChild(*rel.ParentID, rel.AgentID)
				metrics.ReconciliationRepairsTotal.WithLabelValues("missing_child").Inc()
			}
		}

		// child side missing: parent lists a child whose own ParentID
		// does not point back. Only heal the transient null case (the
		// child hasn't been SetParent-ed yet); if ParentID already points
		// elsewhere, this agent's Children entry is the stale side of a
		// reparent and must be pruned instead of overwriting the newer
		// parent.
		for _, childID := range rel.Children {
			childRel := r.subs.Relationship(childID)
			switch {
			case childRel.ParentID == nil:
				r.logger.Info().
					Str("agent_id", childID.String()).
					Str("parent_id", rel.AgentID.String()).
					Msg("healing missing parent reference")
				parent := rel.AgentID
				r.subs.SetParent(childID, &parent)
				metrics.ReconciliationRepairsTotal.WithLabelValues("missing_parent_ref").Inc()
			case *childRel.ParentID != rel.AgentID:
				r.logger.Info().
					Str("agent_id", childID.String()).
					Str("parent_id", rel.AgentID.String()).
					Msg("pruning stale child reference from former parent")
				r.subs.RemoveChild(rel.AgentID, childID)
				metrics.ReconciliationRepairsTotal.WithLabelValues("stale_child").Inc()
			}
		}
	}
}
