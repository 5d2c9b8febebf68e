package runtime

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gagents/gagents/pkg/events"
	"github.com/gagents/gagents/pkg/log"
	"github.com/gagents/gagents/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/protobuf/proto"
)

// AgentRuntime is GAgentBase: the single-writer execution core wrapping one
// agent. A mailbox (bounded or unbounded per RuntimeConfig.MailboxCapacity)
// feeds a cooperative loop that processes exactly one envelope at a time,
// so handlers and state transitions never race for a given agent.
type AgentRuntime struct {
	id     uuid.UUID
	deps   *AgentDependencies
	logger zerolog.Logger

	actor         AgentCapabilities
	eventSourced  EventSourcedAgent
	core          *EventSourcingCore
	stateMutating StateMutatingAgent

	dispatch *dispatchTable
	dedup    *events.EventDeduplicator
	stream   *events.MessageStream

	mailbox    chan *types.Envelope
	queue      *envelopeQueue // non-nil when MailboxCapacity <= 0 (unbounded)
	feederDone chan struct{}
	stopCh     chan struct{}
	doneCh     chan struct{}

	active          atomic.Bool
	errorCount      atomic.Int64
	dropped         atomic.Int64
	mutationVersion int64
}

// NewAgentRuntime wires a runtime around actor using deps. If actor also
// implements EventSourcedAgent, the event-sourcing core is constructed;
// otherwise, if actor implements StateMutatingAgent, the runtime persists
// and restores its whole state through the snapshot store.
func NewAgentRuntime(id uuid.UUID, actor AgentCapabilities, deps *AgentDependencies) *AgentRuntime {
	rt := &AgentRuntime{
		id:       id,
		deps:     deps,
		logger:   log.WithAgentID(id.String()),
		actor:    actor,
		dispatch: newDispatchTable(),
		dedup:    events.NewEventDeduplicator(deps.Config.DedupMaxEntries, deps.Config.DedupTTL),
	}
	if es, ok := actor.(EventSourcedAgent); ok {
		rt.eventSourced = es
		rt.core = NewEventSourcingCore(id, es, deps.Repository, deps.Snapshots, deps.TypeRegistry,
			IntervalSnapshotStrategy{Interval: deps.Config.SnapshotInterval}, deps.Config.MaxReplayBatch)
	} else if sm, ok := actor.(StateMutatingAgent); ok {
		rt.stateMutating = sm
	}
	return rt
}

// persistWholeState is the non-event-sourced fallback: instead of an
// event log, the whole state is snapshotted after each envelope that
// produced a dispatch, tagged with a locally-incrementing version so the
// same SnapshotStore backend serves both modes.
func (rt *AgentRuntime) persistWholeState(ctx context.Context) {
	data, err := rt.stateMutating.SnapshotState()
	if err != nil {
		rt.logger.Error().Err(err).Msg("snapshot state failed")
		return
	}
	rt.mutationVersion++
	if rt.deps.Snapshots == nil {
		return
	}
	if err := rt.deps.Snapshots.SaveSnapshot(ctx, types.Snapshot{
		AgentID:   rt.id,
		Version:   rt.mutationVersion,
		Timestamp: time.Now().UTC(),
		StateData: data,
	}); err != nil {
		rt.logger.Error().Err(err).Msg("save whole-state snapshot failed")
	}
}

// RegisterHandler attaches fn for envelopes whose payload type_url matches.
// Must be called before Activate; this is the explicit-registration
// dispatch table the design notes prescribe in place of reflection.
func (rt *AgentRuntime) RegisterHandler(typeURL string, fn HandlerFunc) {
	rt.dispatch.register(typeURL, fn)
}

// ID returns the agent's identity.
func (rt *AgentRuntime) ID() uuid.UUID { return rt.id }

// State returns the live event-sourced state, or nil if this agent is not
// event-sourced.
func (rt *AgentRuntime) State() any {
	if rt.core == nil {
		return nil
	}
	return rt.core.State()
}

// Version returns the current persisted tip version (0 for non-event-sourced agents).
func (rt *AgentRuntime) Version() int64 {
	if rt.core == nil {
		return 0
	}
	return rt.core.Version()
}

// PendingCount returns the number of raised-but-unconfirmed events (0 for
// non-event-sourced agents), for replay-lag health checks.
func (rt *AgentRuntime) PendingCount() int {
	if rt.core == nil {
		return 0
	}
	return rt.core.PendingCount()
}

// ErrorCount returns the number of handler invocations that returned an
// error or panicked.
func (rt *AgentRuntime) ErrorCount() int64 { return rt.errorCount.Load() }

// DroppedCount returns the number of envelopes dropped as duplicates.
func (rt *AgentRuntime) DroppedCount() int64 { return rt.dropped.Load() }

// MailboxDepth returns the number of envelopes currently queued, for
// metrics collection.
func (rt *AgentRuntime) MailboxDepth() int {
	if rt.queue != nil {
		return rt.queue.len() + len(rt.mailbox)
	}
	return len(rt.mailbox)
}

// IsActive reports whether the mailbox loop is currently running.
func (rt *AgentRuntime) IsActive() bool { return rt.active.Load() }

// Activate acquires the stream, runs OnActivate, then replays the event log
// (or restores the whole-state snapshot), and starts the mailbox loop.
// Activating an already-active runtime is a fault.
func (rt *AgentRuntime) Activate(ctx context.Context) error {
	if !rt.active.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: agent %s", types.ErrAlreadyActive, rt.id)
	}

	rt.stream = rt.deps.Registry.GetOrCreate(rt.id)

	capacity := rt.deps.Config.MailboxCapacity
	rt.stopCh = make(chan struct{})
	rt.doneCh = make(chan struct{})
	if capacity > 0 {
		rt.mailbox = make(chan *types.Envelope, capacity)
	} else {
		// Unbounded: envelopes accumulate on a growable queue, fed into a
		// single-slot hand-off channel the loop reads from.
		rt.queue = newEnvelopeQueue()
		rt.mailbox = make(chan *types.Envelope, 1)
		rt.feederDone = make(chan struct{})
		go rt.feed()
	}

	if err := rt.actor.OnActivate(ctx, rt.deps); err != nil {
		rt.active.Store(false)
		return fmt.Errorf("activate agent %s: %w", rt.id, err)
	}

	if rt.core != nil {
		if err := rt.core.Replay(ctx, rt.deps.Config.AllowUnknownOnReplay); err != nil {
			rt.active.Store(false)
			return fmt.Errorf("replay agent %s: %w", rt.id, err)
		}
	} else if rt.stateMutating != nil && rt.deps.Snapshots != nil {
		if snap, err := rt.deps.Snapshots.GetLatestSnapshot(ctx, rt.id); err != nil {
			rt.active.Store(false)
			return fmt.Errorf("load whole-state snapshot for agent %s: %w", rt.id, err)
		} else if snap != nil {
			if err := rt.stateMutating.RestoreState(snap.StateData); err != nil {
				rt.active.Store(false)
				return fmt.Errorf("restore whole-state snapshot for agent %s: %w", rt.id, err)
			}
			rt.mutationVersion = snap.Version
		}
	}

	rt.stream.Subscribe("*", func(env *types.Envelope) {
		rt.enqueue(env)
	})

	go rt.loop(ctx)
	return nil
}

// enqueue hands env to this agent's mailbox. With an unbounded mailbox
// (queue != nil) the push always succeeds. With a bounded one, the send
// blocks until there is room or the agent is deactivated, exerting real
// backpressure on whichever goroutine is delivering (the publisher itself
// for a synchronous, unbounded source stream, or that stream's drain loop
// for a bounded one) instead of silently losing the envelope.
func (rt *AgentRuntime) enqueue(env *types.Envelope) {
	if rt.queue != nil {
		rt.queue.push(env)
		return
	}
	select {
	case rt.mailbox <- env:
	case <-rt.stopCh:
	}
}

// feed drains the unbounded queue into the mailbox one envelope at a time,
// stopping once the queue is closed (on Deactivate) or the agent stops.
func (rt *AgentRuntime) feed() {
	defer close(rt.feederDone)
	for {
		env, ok := rt.queue.pop()
		if !ok {
			return
		}
		select {
		case rt.mailbox <- env:
		case <-rt.stopCh:
			return
		}
	}
}

// Deactivate runs the reverse lifecycle: drain pending confirmed events,
// stop the loop, remove the subscription and stream. Idempotent.
func (rt *AgentRuntime) Deactivate(ctx context.Context) error {
	if !rt.active.CompareAndSwap(true, false) {
		return nil
	}

	if rt.core != nil && rt.core.PendingCount() > 0 {
		if _, err := rt.core.ConfirmEvents(ctx); err != nil {
			rt.logger.Error().Err(err).Msg("failed to drain pending events on deactivate")
		}
	}

	close(rt.stopCh)
	<-rt.doneCh
	if rt.queue != nil {
		rt.queue.close()
		<-rt.feederDone
	}

	rt.deps.Registry.Remove(rt.id)

	return rt.actor.OnDeactivate(ctx)
}

func (rt *AgentRuntime) loop(ctx context.Context) {
	defer close(rt.doneCh)
	for {
		select {
		case <-rt.stopCh:
			return
		case env := <-rt.mailbox:
			rt.process(ctx, env)
		}
	}
}

// process handles one envelope: dedup, dispatch to every matching handler
// (isolated failures), auto-confirm raised events, and hop-by-hop forward
// to the next routing targets. This is the sole place state can change for
// this agent, so no per-agent locking is required anywhere else.
func (rt *AgentRuntime) process(ctx context.Context, env *types.Envelope) {
	if !rt.dedup.TryMarkSeen(env.ID) {
		rt.dropped.Add(1)
		return
	}

	typeURL := env.TypeURL()
	handlers := rt.dispatch.lookup(typeURL)

	var payload proto.Message
	if typeURL != "" {
		var err error
		payload, err = rt.deps.TypeRegistry.Unpack(env.Payload)
		if err != nil {
			rt.logger.Warn().Str("event_id", env.ID.String()).Err(err).Msg("unresolvable payload type")
		}
	}

	for _, h := range handlers {
		rt.invoke(ctx, h, payload, env)
	}

	if rt.core != nil && rt.core.PendingCount() > 0 && rt.deps.Config.AutoConfirmEvents {
		if _, err := rt.core.ConfirmEvents(ctx); err != nil {
			var poison *TransitionFailureError
			if isTransitionFailure(err, &poison) {
				rt.logger.Error().Err(err).Msg("poison event: deactivating agent for manual intervention")
				rt.active.Store(false)
				close(rt.stopCh)
				return
			}
			rt.logger.Error().Err(err).Msg("confirm events failed")
		}
	} else if rt.stateMutating != nil && len(handlers) > 0 {
		rt.persistWholeState(ctx)
	}

	rt.forward(env)
}

func isTransitionFailure(err error, target **TransitionFailureError) bool {
	tf, ok := err.(*TransitionFailureError)
	if ok {
		*target = tf
	}
	return ok
}

func (rt *AgentRuntime) invoke(ctx context.Context, h HandlerFunc, payload proto.Message, env *types.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			rt.errorCount.Add(1)
			rt.logger.Error().Interface("panic", r).Str("event_id", env.ID.String()).Msg("handler panicked")
		}
	}()
	if err := h(ctx, rt, payload, env); err != nil {
		rt.errorCount.Add(1)
		rt.logger.Error().Err(err).Str("event_id", env.ID.String()).Msg("handler failed")
	}
}

// forward re-publishes env, unchanged, to this agent's next-hop targets
// (excluding itself, already processed). Dedup at each recipient is what
// makes repeated hops converge instead of looping under Both.
func (rt *AgentRuntime) forward(env *types.Envelope) {
	if env.Direction == types.DirectionSelf {
		return
	}
	targets := rt.deps.Subscriptions.NextHopTargets(rt.id, env.Direction)
	for _, t := range targets {
		if t == rt.id {
			continue
		}
		if stream, ok := rt.deps.Registry.Get(t); ok {
			stream.Publish(env.Clone())
		}
	}
}

// Raise stages payload as a pending event for this agent's event-sourcing
// core. Callers are typically handler functions invoked from process.
func (rt *AgentRuntime) Raise(payload proto.Message, metadata map[string]string) (int64, error) {
	if rt.core == nil {
		return 0, fmt.Errorf("%w: agent %s is not event-sourced", types.ErrInvalidArgument, rt.id)
	}
	packed, err := Pack(payload)
	if err != nil {
		return 0, err
	}
	return rt.core.Raise(types.EventRecord{
		EventID:   uuid.New(),
		EventType: packed.TypeUrl,
		EventData: packed,
		Metadata:  metadata,
	}), nil
}

// ConfirmEvents manually confirms any staged events. Only needed when
// RuntimeConfig.AutoConfirmEvents is false.
func (rt *AgentRuntime) ConfirmEvents(ctx context.Context) (int64, error) {
	if rt.core == nil {
		return 0, fmt.Errorf("%w: agent %s is not event-sourced", types.ErrInvalidArgument, rt.id)
	}
	return rt.core.ConfirmEvents(ctx)
}

// Publish originates a new envelope from this agent and delivers it to the
// first hop computed from direction via the routing table.
func (rt *AgentRuntime) Publish(payload proto.Message, direction types.Direction, correlationID string, metadata map[string]string) error {
	packed, err := Pack(payload)
	if err != nil {
		return err
	}
	env := &types.Envelope{
		ID:            uuid.New(),
		Timestamp:     time.Now().UTC(),
		Payload:       packed,
		PublisherID:   rt.id,
		CorrelationID: correlationID,
		Direction:     direction,
		Metadata:      metadata,
	}
	targets := rt.deps.Subscriptions.NextHopTargets(rt.id, direction)
	if len(targets) == 0 {
		return fmt.Errorf("%w: no routing targets for agent %s", types.ErrNotFound, rt.id)
	}
	for _, t := range targets {
		stream, ok := rt.deps.Registry.Get(t)
		if !ok {
			continue
		}
		if err := stream.Publish(env.Clone()); err != nil {
			return err
		}
	}
	return nil
}
