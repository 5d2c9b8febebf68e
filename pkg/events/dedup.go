package events

import (
	"container/list"
	"sync"
	"time"

	"github.com/google/uuid"
)

type dedupEntry struct {
	id      uuid.UUID
	seenAt  time.Time
	element *list.Element
}

// EventDeduplicator is a per-agent bounded set with TTL. TryMarkSeen
// returns true the first time an event id is observed within the window
// and false on every subsequent observation until it expires or is
// evicted. Eviction is LRU with a periodic sweep for TTL expiry, the same
// shape as a TTL-bounded token cache, generalized from token strings to
// event ids and made per-agent instead of global.
//
// This is the only defense against cycles in Up/Down/Both propagation and
// against re-delivery under replay, so it is never shared across agents:
// each instance is owned and accessed only by its agent's mailbox loop.
type EventDeduplicator struct {
	maxEntries int
	ttl        time.Duration

	mu      sync.Mutex
	entries map[uuid.UUID]*dedupEntry
	order   *list.List // front = most recently used

	stopCh chan struct{}
	hits   uint64
}

// NewEventDeduplicator creates a deduplicator with the given bounds and
// starts its periodic TTL sweep.
func NewEventDeduplicator(maxEntries int, ttl time.Duration) *EventDeduplicator {
	d := &EventDeduplicator{
		maxEntries: maxEntries,
		ttl:        ttl,
		entries:    make(map[uuid.UUID]*dedupEntry),
		order:      list.New(),
		stopCh:     make(chan struct{}),
	}
	go d.sweepLoop()
	return d
}

// TryMarkSeen returns true the first time id is seen within the window,
// false on every duplicate until expiry or eviction.
func (d *EventDeduplicator) TryMarkSeen(id uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.entries[id]; ok {
		e.seenAt = time.Now()
		d.order.MoveToFront(e.element)
		d.hits++
		return false
	}

	e := &dedupEntry{id: id, seenAt: time.Now()}
	e.element = d.order.PushFront(id)
	d.entries[id] = e

	if d.maxEntries > 0 && len(d.entries) > d.maxEntries {
		d.evictOldestLocked()
	}
	return true
}

func (d *EventDeduplicator) evictOldestLocked() {
	back := d.order.Back()
	if back == nil {
		return
	}
	id := back.Value.(uuid.UUID)
	d.order.Remove(back)
	delete(d.entries, id)
}

// DuplicateCount returns the number of duplicate hits observed so far.
func (d *EventDeduplicator) DuplicateCount() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hits
}

func (d *EventDeduplicator) sweepLoop() {
	interval := d.ttl / 2
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.sweep()
		case <-d.stopCh:
			return
		}
	}
}

func (d *EventDeduplicator) sweep() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for e := d.order.Back(); e != nil; {
		prev := e.Prev()
		id := e.Value.(uuid.UUID)
		entry := d.entries[id]
		if entry == nil || now.Sub(entry.seenAt) <= d.ttl {
			break
		}
		d.order.Remove(e)
		delete(d.entries, id)
		e = prev
	}
}

// Stop halts the background sweep goroutine.
func (d *EventDeduplicator) Stop() {
	select {
	case <-d.stopCh:
	default:
		close(d.stopCh)
	}
}
