package metrics

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ActiveAgentSource reports the runtime state metrics.Collector polls.
// pkg/manager.ActorFactory satisfies this directly.
type ActiveAgentSource interface {
	ActiveIDs() []uuid.UUID
	MailboxDepth(id uuid.UUID) int
}

// Collector periodically scrapes an ActiveAgentSource and updates the
// gauge metrics that have no natural "on the write path" call site
// (AgentsActive, per-agent MailboxDepth) via a ticker-driven loop.
type Collector struct {
	source   ActiveAgentSource
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewCollector builds a collector that scrapes source every interval.
func NewCollector(source ActiveAgentSource, interval time.Duration) *Collector {
	return &Collector{
		source:   source,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the collection loop until ctx is done or Stop is called.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	defer close(c.doneCh)

	c.collect()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

// Stop signals the collection loop to exit and waits for it to do so.
func (c *Collector) Stop() {
	close(c.stopCh)
	<-c.doneCh
}

func (c *Collector) collect() {
	ids := c.source.ActiveIDs()
	AgentsActive.Set(float64(len(ids)))
	for _, id := range ids {
		MailboxDepth.WithLabelValues(id.String()).Set(float64(c.source.MailboxDepth(id)))
	}
}
