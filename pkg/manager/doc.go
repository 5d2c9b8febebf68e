// Package manager owns the process-wide ActorFactory: the single place
// that wires shared runtime dependencies (stream registry, subscription
// manager, persistence, configuration) and tracks which agent ids are
// currently active in this process.
package manager
