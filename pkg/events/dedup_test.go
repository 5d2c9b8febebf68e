package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestEventDeduplicator_FirstSeenThenDuplicate(t *testing.T) {
	d := NewEventDeduplicator(10000, 5*time.Minute)
	defer d.Stop()

	id := uuid.New()
	assert.True(t, d.TryMarkSeen(id))
	assert.False(t, d.TryMarkSeen(id))
	assert.False(t, d.TryMarkSeen(id))
	assert.EqualValues(t, 2, d.DuplicateCount())
}

func TestEventDeduplicator_EvictsOldestBeyondMaxEntries(t *testing.T) {
	d := NewEventDeduplicator(2, time.Minute)
	defer d.Stop()

	a, b, c := uuid.New(), uuid.New(), uuid.New()
	assert.True(t, d.TryMarkSeen(a))
	assert.True(t, d.TryMarkSeen(b))
	assert.True(t, d.TryMarkSeen(c)) // evicts a

	assert.True(t, d.TryMarkSeen(a)) // a was evicted, seen again as "first"
}

func TestEventDeduplicator_ExpiresAfterTTL(t *testing.T) {
	d := NewEventDeduplicator(10000, 20*time.Millisecond)
	defer d.Stop()

	id := uuid.New()
	assert.True(t, d.TryMarkSeen(id))

	time.Sleep(80 * time.Millisecond)

	assert.True(t, d.TryMarkSeen(id))
}
