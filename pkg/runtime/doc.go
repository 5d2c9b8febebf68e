// Package runtime is GAgentBase: the single-writer mailbox loop, the
// event-sourcing core (RaiseEvent/ConfirmEvents/replay), and the
// explicit-registration dispatch table every agent type is built from.
package runtime
