/*
Package events implements the runtime's hierarchical event-stream layer:
per-agent MessageStreams, the process-local StreamRegistry that owns them,
the SubscriptionManager that resolves routing targets from parent/child
relationships, and the EventDeduplicator that makes repeated hop-by-hop
propagation safe.

# Architecture

	┌──────────────── STREAM REGISTRY (process-global) ────────────────┐
	│                                                                    │
	│   agent-id ──▶ *MessageStream   (one per active agent, striped    │
	│                                  locking on id, GetOrCreate is     │
	│                                  idempotent)                      │
	└─────────────────────────────┬─────────────────────────────────────┘
	                              │ Publish(envelope)
	                              ▼
	              ┌───────────────────────────────┐
	              │         MessageStream         │
	              │  subscribers: [(typeURL, fn)] │
	              │  dispatch: type-match, fan out │
	              │  handler panic isolated        │
	              └───────────────┬───────────────┘
	                              │
	              ┌───────────────▼───────────────┐
	              │      SubscriptionManager       │
	              │  relationships: parent/child   │
	              │  NextHopTargets(id, direction)  │
	              └───────────────┬───────────────┘
	                              │ (re-publish decision made by the
	                              │  receiving agent's own runtime)
	              ┌───────────────▼───────────────┐
	              │       EventDeduplicator        │
	              │  per-agent, TTL + LRU bounded   │
	              │  TryMarkSeen(event_id)          │
	              └────────────────────────────────┘

Propagation across more than one hop in the hierarchy is never a single
traversal: a Both/Up/Down envelope moves one mailbox at a time, and each
recipient decides, via NextHopTargets, whether to re-publish toward its
own next hop. This is what keeps routing decisions local and bounded, at
the cost of requiring every recipient to deduplicate — otherwise a Both
event would bounce forever between a parent and child that both re-publish
toward each other.
*/
package events
