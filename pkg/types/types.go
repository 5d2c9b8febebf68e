package types

import (
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/anypb"
)

// Direction is the propagation intent of an envelope relative to the
// publisher's position in the agent hierarchy.
type Direction int32

const (
	// DirectionSelf delivers only to the publisher's own stream.
	DirectionSelf Direction = 0
	// DirectionUp delivers to the publisher and its parent chain.
	DirectionUp Direction = 1
	// DirectionDown delivers to the publisher and its child set.
	DirectionDown Direction = 2
	// DirectionBoth delivers to the union of Up and Down.
	DirectionBoth Direction = 3
)

func (d Direction) String() string {
	switch d {
	case DirectionSelf:
		return "self"
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	case DirectionBoth:
		return "both"
	default:
		return "unknown"
	}
}

// Envelope is the transport wrapper carried between agent streams:
// identity, timing, routing metadata, and an opaque schema-typed payload.
type Envelope struct {
	ID            uuid.UUID
	Timestamp     time.Time
	Version       int64
	Payload       *anypb.Any
	PublisherID   uuid.UUID
	CorrelationID string
	Direction     Direction
	Metadata      map[string]string
}

// TypeURL resolves the payload's schema identity, or "" if unset.
func (e *Envelope) TypeURL() string {
	if e == nil || e.Payload == nil {
		return ""
	}
	return e.Payload.TypeUrl
}

// Clone returns a deep-enough copy of the envelope safe to hand to a
// second subscriber without sharing the metadata map.
func (e *Envelope) Clone() *Envelope {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Metadata != nil {
		clone.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			clone.Metadata[k] = v
		}
	}
	if e.Payload != nil {
		clone.Payload = &anypb.Any{TypeUrl: e.Payload.TypeUrl, Value: append([]byte(nil), e.Payload.Value...)}
	}
	return &clone
}

// EventRecord is a state event exactly as stored: immutable once appended.
type EventRecord struct {
	EventID   uuid.UUID
	AgentID   uuid.UUID
	Version   int64
	Timestamp time.Time
	EventType string
	EventData *anypb.Any
	Metadata  map[string]string
}

// Snapshot is a cumulative, persisted serialized state value tagged with
// the version it reflects. Snapshots supersede all strictly older events
// for replay purposes.
type Snapshot struct {
	AgentID   uuid.UUID
	Version   int64
	Timestamp time.Time
	StateData []byte
}

// Relationship records an agent's parent/child position in the hierarchy.
// Held only by the SubscriptionManager; re-established on activation.
type Relationship struct {
	AgentID  uuid.UUID
	ParentID *uuid.UUID
	Children []uuid.UUID
}

// HasChild reports whether id is already a recorded child.
func (r *Relationship) HasChild(id uuid.UUID) bool {
	for _, c := range r.Children {
		if c == id {
			return true
		}
	}
	return false
}
