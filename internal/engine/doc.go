/*
Package engine applies declarative plan actions to state snapshots.

# Overview

The engine is pure data manipulation: dotted-path reads and writes over JSON
object snapshots, cross-reference resolution, and the four action types
(set, increment, toggle, push). It holds no I/O, no clocks, and no locks;
serialization of concurrent batches is the orchestrator's job.

# Leniency Policy

Action application is deliberately coercive so foreign-generated plans stay
runnable:

  - increment on a non-numeric base treats the base as 0
  - toggle on a non-boolean base treats the base as false
  - push on a non-array base replaces it with a new singleton array
  - unresolved cross-references yield nil, never an error

These are documented, tested behaviors, not accidents.

# Security

Every dotted path is split and screened for __proto__, prototype, and
constructor segments before any traversal happens. The guard lives in one
place (plan.CheckPath) and is re-applied here; a forbidden segment turns the
write into a no-op and the read into nil.
*/
package engine
