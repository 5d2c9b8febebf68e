package health

import (
	"context"
	"fmt"
	"time"
)

// AgentSnapshot is the subset of agent runtime state a Checker reads.
// runtime.AgentRuntime satisfies this directly.
type AgentSnapshot interface {
	IsActive() bool
	MailboxDepth() int
	DroppedCount() int64
}

// MailboxChecker reports unhealthy when the agent is not active or its
// mailbox depth has reached Capacity, signaling its loop cannot keep up
// with incoming envelopes.
type MailboxChecker struct {
	Agent    AgentSnapshot
	Capacity int
}

func (c *MailboxChecker) Type() CheckType { return CheckTypeMailbox }

func (c *MailboxChecker) Check(ctx context.Context) Result {
	start := time.Now()
	if !c.Agent.IsActive() {
		return Result{Healthy: false, Message: "agent not active", CheckedAt: start, Duration: time.Since(start)}
	}
	depth := c.Agent.MailboxDepth()
	if c.Capacity > 0 && depth >= c.Capacity {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("mailbox full: %d/%d", depth, c.Capacity),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	return Result{Healthy: true, Message: "ok", CheckedAt: start, Duration: time.Since(start)}
}

// VersionSnapshot is the subset of EventSourcingCore state a replay-lag
// Checker reads.
type VersionSnapshot interface {
	Version() int64
	PendingCount() int
}

// ReplayLagChecker reports unhealthy when an agent has accumulated
// pending (raised but unconfirmed) events past a threshold, which
// signals ConfirmEvents is not keeping up or is stuck.
type ReplayLagChecker struct {
	Agent        VersionSnapshot
	MaxPending   int
}

func (c *ReplayLagChecker) Type() CheckType { return CheckTypeReplayLag }

func (c *ReplayLagChecker) Check(ctx context.Context) Result {
	start := time.Now()
	pending := c.Agent.PendingCount()
	if c.MaxPending > 0 && pending > c.MaxPending {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("pending events %d exceeds %d", pending, c.MaxPending),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	return Result{Healthy: true, Message: "ok", CheckedAt: start, Duration: time.Since(start)}
}
