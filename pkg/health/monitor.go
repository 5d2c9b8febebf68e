package health

import (
	"context"
	"sync"
	"time"
)

// Monitor runs a set of Checkers against one agent on a timer and
// keeps a Status per checker, the same loop shape as
// metrics.Collector but driving liveness state rather than gauges.
type Monitor struct {
	config   Config
	checkers []Checker

	mu      sync.Mutex
	status  map[CheckType]*Status
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewMonitor builds a Monitor for checkers, using config's interval,
// timeout, retry and start-period settings.
func NewMonitor(config Config, checkers ...Checker) *Monitor {
	status := make(map[CheckType]*Status, len(checkers))
	for _, c := range checkers {
		status[c.Type()] = NewStatus()
	}
	return &Monitor{
		config:   config,
		checkers: checkers,
		status:   status,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Run executes the check loop until ctx is done or Stop is called.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()
	defer close(m.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.runOnce(ctx)
		}
	}
}

// Stop signals the loop to exit and waits for it to do so.
func (m *Monitor) Stop() {
	close(m.stopCh)
	<-m.doneCh
}

func (m *Monitor) runOnce(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()

	for _, c := range m.checkers {
		result := c.Check(checkCtx)
		m.mu.Lock()
		st := m.status[c.Type()]
		if !st.InStartPeriod(m.config) {
			st.Update(result, m.config)
		}
		m.mu.Unlock()
	}
}

// Healthy reports whether every checker's rolling status is currently
// healthy.
func (m *Monitor) Healthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range m.status {
		if !st.Healthy {
			return false
		}
	}
	return true
}

// Status returns a snapshot of the rolling status for checkType, if any
// checker of that type is registered.
func (m *Monitor) Status(checkType CheckType) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.status[checkType]
	if !ok {
		return Status{}, false
	}
	return *st, true
}
