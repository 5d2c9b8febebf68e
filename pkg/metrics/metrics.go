// Package metrics exposes Prometheus instrumentation for the agent
// runtime: mailbox depth, event confirmation latency, concurrency
// conflicts, deduplication hits, handler failures, and activation
// lifecycle counts. Collectors are registered against the default
// registry at package init. Code in this module updates only AgentsActive
// and MailboxDepth (through Collector) and the Reconciliation* metrics; the
// other collectors are registered but not recorded.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AgentsActive is the number of agent runtimes currently active in
	// this process. It carries no labels.
	AgentsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gagents",
		Name:      "agents_active",
		Help:      "Number of agent runtimes currently active in this process.",
	})

	AgentActivationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gagents",
		Name:      "agent_activations_total",
		Help:      "Total number of successful agent activations.",
	})

	AgentDeactivationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gagents",
		Name:      "agent_deactivations_total",
		Help:      "Total number of agent deactivations, including self-deactivation on poison transitions.",
	})

	AgentActivationFaultsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gagents",
		Name:      "agent_activation_faults_total",
		Help:      "Activation/deactivation calls rejected by fault kind (already_active, not_active).",
	}, []string{"fault"})

	MailboxDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "gagents",
		Name:      "mailbox_depth",
		Help:      "Current number of envelopes queued in an agent's mailbox.",
	}, []string{"agent_id"})

	EventsRaisedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gagents",
		Name:      "events_raised_total",
		Help:      "Events raised (tentatively appended, pending confirmation) by type URL.",
	}, []string{"type_url"})

	EventsConfirmedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gagents",
		Name:      "events_confirmed_total",
		Help:      "Events durably persisted and applied by ConfirmEvents, by type URL.",
	}, []string{"type_url"})

	ConfirmDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gagents",
		Name:      "confirm_duration_seconds",
		Help:      "Latency of ConfirmEvents calls, from pending append through persistence and transition.",
		Buckets:   prometheus.DefBuckets,
	})

	ConcurrencyConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gagents",
		Name:      "concurrency_conflicts_total",
		Help:      "ConfirmEvents calls that failed the optimistic-concurrency expected_version check.",
	})

	TransitionFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gagents",
		Name:      "transition_failures_total",
		Help:      "Transition function failures, each fatal to the owning agent.",
	})

	HandlerFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gagents",
		Name:      "handler_failures_total",
		Help:      "Handler invocations that returned an error or recovered from a panic, by type URL.",
	}, []string{"type_url"})

	DedupHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gagents",
		Name:      "dedup_hits_total",
		Help:      "Envelopes dropped by an agent's deduplicator as already-seen during hop-by-hop propagation.",
	})

	SnapshotsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gagents",
		Name:      "snapshots_total",
		Help:      "Snapshots written, by agent kind (event_sourced, state_mutating).",
	}, []string{"kind"})

	ReplayDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gagents",
		Name:      "replay_duration_seconds",
		Help:      "Latency of replaying an agent's event history (snapshot load plus paged event replay) during activation.",
		Buckets:   prometheus.DefBuckets,
	})

	RaftApplyDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gagents",
		Name:      "raft_apply_duration_seconds",
		Help:      "Latency of Raft log Apply for an AppendEvents command against the replicated event repository.",
		Buckets:   prometheus.DefBuckets,
	})

	RaftIsLeader = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gagents",
		Name:      "raft_is_leader",
		Help:      "1 if this process holds Raft leadership for the event repository, 0 otherwise.",
	})

	ReconciliationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gagents",
		Name:      "reconciliation_duration_seconds",
		Help:      "Latency of a single relationship-reconciliation cycle.",
		Buckets:   prometheus.DefBuckets,
	})

	ReconciliationCyclesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gagents",
		Name:      "reconciliation_cycles_total",
		Help:      "Total reconciliation cycles run.",
	})

	ReconciliationRepairsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gagents",
		Name:      "reconciliation_repairs_total",
		Help:      "Relationship records healed by the reconciler, by repair kind (missing_child, missing_parent_ref, dangling_parent, stale_child).",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(
		AgentsActive,
		AgentActivationsTotal,
		AgentDeactivationsTotal,
		AgentActivationFaultsTotal,
		MailboxDepth,
		EventsRaisedTotal,
		EventsConfirmedTotal,
		ConfirmDuration,
		ConcurrencyConflictsTotal,
		TransitionFailuresTotal,
		HandlerFailuresTotal,
		DedupHitsTotal,
		SnapshotsTotal,
		ReplayDuration,
		RaftApplyDuration,
		RaftIsLeader,
		ReconciliationDuration,
		ReconciliationCyclesTotal,
		ReconciliationRepairsTotal,
	)
}

// Handler returns the HTTP handler that serves the default Prometheus
// registry, for mounting on an admin/metrics listener.
func Handler() http.Handler {
	return promhttp.Handler()
}
