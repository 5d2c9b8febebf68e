// Package types defines the core data structures shared across the agent
// runtime: the envelope wire model, stored event records, snapshots,
// relationship records, and the opaque error codes surfaced to callers.
package types
