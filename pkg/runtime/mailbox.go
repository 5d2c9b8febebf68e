package runtime

import (
	"sync"

	"github.com/gagents/gagents/pkg/types"
)

// envelopeQueue is an unbounded, condition-signaled FIFO of envelopes used
// when RuntimeConfig.MailboxCapacity is 0: push always succeeds and grows
// the list rather than dropping once a fixed-size buffer fills.
type envelopeQueueNode struct {
	env  *types.Envelope
	next *envelopeQueueNode
}

type envelopeQueue struct {
	cond   *sync.Cond
	first  *envelopeQueueNode
	last   *envelopeQueueNode
	length int
	closed bool
}

func newEnvelopeQueue() *envelopeQueue {
	var mu sync.Mutex
	return &envelopeQueue{cond: sync.NewCond(&mu)}
}

func (q *envelopeQueue) push(env *types.Envelope) {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()
	if q.closed {
		return
	}
	node := &envelopeQueueNode{env: env}
	if q.last == nil {
		q.first = node
	} else {
		q.last.next = node
	}
	q.last = node
	q.length++
	q.cond.Signal()
}

// pop blocks until an envelope is available or the queue is closed, in
// which case it returns (nil, false).
func (q *envelopeQueue) pop() (*types.Envelope, bool) {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()
	for q.first == nil && !q.closed {
		q.cond.Wait()
	}
	if q.first == nil {
		return nil, false
	}
	node := q.first
	q.first = node.next
	if q.first == nil {
		q.last = nil
	}
	q.length--
	return node.env, true
}

func (q *envelopeQueue) len() int {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()
	return q.length
}

func (q *envelopeQueue) close() {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
