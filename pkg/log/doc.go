// Package log wraps zerolog with the agent runtime's structured-logging
// conventions: a process-global Logger initialized once via Init, and
// component/agent/event-scoped child loggers for everything else.
//
// Every error surfaced by the runtime is logged exactly once, at the
// boundary that first observes it — the mailbox loop for handler,
// transition and confirm failures — never again at intermediate call
// sites. The storage backends do not log; they return errors to the caller.
package log
