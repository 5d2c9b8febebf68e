package events

import (
	"sync"

	"github.com/google/uuid"
)

// shardCount controls the striping of the registry's per-id locking, the
// same fine-grained-locking idiom used for bucket access elsewhere in this
// runtime.
const shardCount = 32

type registryShard struct {
	mu      sync.Mutex
	streams map[uuid.UUID]*MessageStream
}

// StreamRegistry is the process-wide directory mapping an agent id to its
// MessageStream. It is the single point through which actors acquire each
// other's streams; agents never hold raw references to peer agents.
type StreamRegistry struct {
	shards         [shardCount]*registryShard
	mailboxCapacity int
}

// NewStreamRegistry creates an empty registry. mailboxCapacity is passed
// through to every stream GetOrCreate creates (0 = unbounded).
func NewStreamRegistry(mailboxCapacity int) *StreamRegistry {
	r := &StreamRegistry{mailboxCapacity: mailboxCapacity}
	for i := range r.shards {
		r.shards[i] = &registryShard{streams: make(map[uuid.UUID]*MessageStream)}
	}
	return r
}

func (r *StreamRegistry) shardFor(id uuid.UUID) *registryShard {
	var h byte
	for _, b := range id {
		h ^= b
	}
	return r.shards[int(h)%shardCount]
}

// GetOrCreate is idempotent: it returns the existing stream for agentID,
// or creates and registers one. At most one stream per agent id exists in
// this process at any time.
func (r *StreamRegistry) GetOrCreate(agentID uuid.UUID) *MessageStream {
	shard := r.shardFor(agentID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if s, ok := shard.streams[agentID]; ok {
		return s
	}
	s := NewMessageStream(agentID, r.mailboxCapacity)
	shard.streams[agentID] = s
	return s
}

// Exists reports whether a stream for agentID is currently registered.
func (r *StreamRegistry) Exists(agentID uuid.UUID) bool {
	shard := r.shardFor(agentID)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	_, ok := shard.streams[agentID]
	return ok
}

// Remove tears down and unregisters the stream for agentID, if any.
func (r *StreamRegistry) Remove(agentID uuid.UUID) {
	shard := r.shardFor(agentID)
	shard.mu.Lock()
	s, ok := shard.streams[agentID]
	if ok {
		delete(shard.streams, agentID)
	}
	shard.mu.Unlock()

	if ok {
		s.Close()
	}
}

// Get returns the stream for agentID and whether it exists, without
// creating one.
func (r *StreamRegistry) Get(agentID uuid.UUID) (*MessageStream, bool) {
	shard := r.shardFor(agentID)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	s, ok := shard.streams[agentID]
	return s, ok
}
