/*
Package sandbox executes plan-embedded source modules inside isolated goja
runtimes.

# Security Model

Each runtime gets a fresh global scope with host escape hatches stripped:
no require, no process, no fetch, no timers unless the plan holds the timer
capability (and even then they are no-ops in this host). Scripts interact
with the engine only through the values passed into their invoked export and
the value they return.

# Resource Limits

Execution is bounded two ways: the runtime's own timeout and the caller's
context, both racing an Interrupt against the running script. Call stack
depth is capped at construction. A timed-out script yields no partial
result.

# Pooling

Runtimes are pooled and reset between uses. Closing the pool closes every
runtime; a cancelled execution releases its runtime back through the pool,
so failed runs cannot leak isolation backends.
*/
package sandbox
