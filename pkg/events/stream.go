package events

import (
	"sync"

	"github.com/gagents/gagents/pkg/log"
	"github.com/gagents/gagents/pkg/types"
	"github.com/google/uuid"
)

// Handler is invoked with the unpacked envelope for every subscriber whose
// declared payload type matches the published envelope's type URL.
type Handler func(env *types.Envelope)

type subscriber struct {
	id       uint64
	typeURL  string
	handler  Handler
}

// MessageStream is the typed, multi-subscriber channel owned by exactly
// one agent. Publish delivers the envelope to every subscriber declared
// for the envelope's payload type; a mismatched type is silently skipped.
// Subscriber handlers are isolated: a panic is recovered and reported as
// an error count, never propagated to the publisher or sibling handlers.
type MessageStream struct {
	AgentID uuid.UUID

	mu          sync.RWMutex
	subscribers []*subscriber
	nextSubID   uint64

	queue    chan *types.Envelope
	capacity int
	closed   bool
	wg       sync.WaitGroup

	errCount uint64
}

// NewMessageStream creates a stream for agentID. capacity <= 0 means an
// unbounded queue (the default); capacity > 0 makes Publish return
// kBackpressure once the queue is full.
func NewMessageStream(agentID uuid.UUID, capacity int) *MessageStream {
	s := &MessageStream{
		AgentID:  agentID,
		capacity: capacity,
	}
	if capacity > 0 {
		s.queue = make(chan *types.Envelope, capacity)
		s.wg.Add(1)
		go s.drain()
	}
	return s
}

// wildcardTypeURL subscribes a handler to every envelope regardless of
// payload type, used by AgentRuntime which does its own per-type dispatch
// internally once an envelope reaches the agent's mailbox.
const wildcardTypeURL = "*"

// Subscribe registers handler for envelopes whose payload type URL equals
// typeURL, or for every envelope when typeURL is "*". Returns a
// subscription id usable with Unsubscribe.
func (s *MessageStream) Subscribe(typeURL string, handler Handler) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subscribers = append(s.subscribers, &subscriber{id: id, typeURL: typeURL, handler: handler})
	return id
}

// Unsubscribe removes a previously registered handler.
func (s *MessageStream) Unsubscribe(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subscribers {
		if sub.id == id {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			return
		}
	}
}

// Publish delivers env to every matching subscriber. With an unbounded
// queue (capacity <= 0) delivery is synchronous and in publication order
// for a single producer; with a bounded queue, Publish enqueues and
// returns kBackpressure if the queue is full.
func (s *MessageStream) Publish(env *types.Envelope) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return types.ErrNotActive
	}

	if s.queue != nil {
		select {
		case s.queue <- env:
			return nil
		default:
			return types.ErrBackpressure
		}
	}

	s.dispatch(env)
	return nil
}

func (s *MessageStream) drain() {
	defer s.wg.Done()
	for env := range s.queue {
		s.dispatch(env)
	}
}

func (s *MessageStream) dispatch(env *types.Envelope) {
	typeURL := env.TypeURL()

	s.mu.RLock()
	matching := make([]*subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		if sub.typeURL == typeURL || sub.typeURL == wildcardTypeURL {
			matching = append(matching, sub)
		}
	}
	s.mu.RUnlock()

	for _, sub := range matching {
		s.invoke(sub, env)
	}
}

func (s *MessageStream) invoke(sub *subscriber, env *types.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.errCount++
			s.mu.Unlock()
			log.WithComponent("stream").Error().
				Str("agent_id", s.AgentID.String()).
				Str("event_id", env.ID.String()).
				Interface("panic", r).
				Msg("subscriber handler panicked")
		}
	}()
	sub.handler(env)
}

// ErrorCount returns the number of subscriber handler panics observed.
func (s *MessageStream) ErrorCount() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errCount
}

// SubscriberCount returns the number of currently registered subscribers.
func (s *MessageStream) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}

// Close stops accepting new publications and drains any bounded queue.
func (s *MessageStream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if s.queue != nil {
		close(s.queue)
		s.wg.Wait()
	}
}
