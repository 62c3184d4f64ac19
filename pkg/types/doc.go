/*
Package types defines the core data structures used throughout TeamCache Manager.

This package contains all fundamental types that represent the cache engine's
domain model: filesystem entries, index sessions, cache jobs, job items,
execution profiles, and worker leases. These types are used by all other
packages for persistence, job orchestration, and event payloads.

# Architecture

The types package is the foundation of the engine's data model. It defines:

  - Catalog entries (one row per filesystem path ever observed)
  - Index sessions (one per indexer run)
  - Cache jobs and their per-file items
  - Execution profiles (worker cardinality and concurrency templates)
  - Worker leases (heartbeat rows for crash recovery)
  - The validation error taxonomy shared by every engine operation

# Core Types

Catalog:
  - Entry: A filesystem path with size, mtime, permissions and cache state
  - EntryMetadata: Extensible JSON sub-documents (computed_size, upload)
  - ComputedSize: Cached recursive directory size roll-up
  - RollupStats: Result of a directory cache validation

Indexing:
  - IndexSession: One traversal of the mount with progress counters
  - IndexStatus: Pending, running, completed, failed, stopped

Jobs:
  - Job: One cache-warm request with an immutable file snapshot
  - JobStatus: Pending, running, paused, completed, failed, cancelled
  - JobItem: One file within a job, claimed and completed by workers
  - ItemStatus: Pending, running, completed, failed
  - Profile: Named template selecting pool shape for a job's file mix

# State Machines

Jobs follow a state machine:

	pending → running → completed
	   ↑         ↓    ↘
	   └────── paused   failed

	any non-terminal → cancelled

Valid transitions are enumerated in jobTransitions and checked with
JobStatus.CanTransition. Workers drive pending→running (first claim wins)
and the terminal completion states; operators drive pause, resume, cancel.
Pause applies only to running jobs; resume returns the job to pending
rather than running, so the next worker poll re-claims it.

Items follow a simpler machine:

	pending → running → completed
	              ↓
	            failed

An item in running is owned by exactly one worker (the claim is atomic).
Crash recovery returns orphaned running items to pending via the
reconciler's lease sweep, preserving at-least-once semantics.

# Design Patterns

Enumeration pattern: all statuses are typed string constants, stored
verbatim in the catalog and matched in SQL.

Optional timestamps use pointers (*time.Time): nil means the event has not
happened. Optional references (CacheJobID, WorkerID) use the empty string
and map to NULL in the catalog.

Errors: the package-level sentinel errors are the engine's validation
taxonomy. They carry no state; callers wrap them with context and match
with errors.Is.

# Integration Points

This package integrates with:

  - pkg/catalog: persists all types to PostgreSQL
  - pkg/manager: exposes engine operations returning these types
  - pkg/coordinator: job lifecycle transitions
  - pkg/worker: claims and completes items
  - pkg/indexer: produces Entry batches
  - pkg/events: event payloads embed these identifiers and counters
*/
package types
