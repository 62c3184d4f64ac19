/*
Package reconciler provides failure detection and automatic healing for
the cache engine.

The reconciler runs as a background loop that repairs the two kinds of
state the normal execution paths cannot fix themselves: job items
stranded in running by workers that died, and directory cached flags
that went stale after the catalog changed underneath them.

# Architecture

	┌────────────────────────────────────────────────────┐
	│              Reconciliation Loop                   │
	│               (every 15 seconds)                   │
	└──────────────┬─────────────────────────────────────┘
	               │
	    ┌──────────┴──────────┐
	    ▼                     ▼
	┌──────────────────┐  ┌───────────────────────┐
	│ Reconcile Workers│  │ Reconcile Directories │
	└──────┬───────────┘  └──────┬────────────────┘
	       │                     │
	       ▼                     ▼
	  Find leases            Drain validation
	  past timeout           queue (≤64/cycle)
	       │                     │
	       ▼                     ▼
	  Re-queue items,        Promote or demote
	  drop the lease         cached flags

# Worker Failure Detection

Workers upsert a heartbeat row on every poll cycle. A worker whose
heartbeat is older than the lease timeout is considered dead:

	Last heartbeat: 2026-03-02 10:30:00
	Current time:   2026-03-02 10:31:05  (65s > 60s lease)
	Verdict: dead

For each dead worker the sweep returns all of its running items to
pending and deletes the lease row. Re-queued items are claimed again by
live workers on their next poll, which preserves at-least-once warming:
if the dead worker had actually finished a read before dying, the
second warm of that file is harmless. Staleness is judged against the
database clock, so clock skew between engine hosts cannot trigger
false sweeps.

A worker that merely failed one settle write keeps its lease alive
through subsequent heartbeats, so the sweep never steals items from a
live worker.

# Directory Validation Queue

Directory listings notice cached directories that may no longer deserve
the flag, but demotion must not happen inline on the read path. Those
paths land in the reconciler's queue instead:

	reconciler.EnqueueValidation("/mnt/filespace/projects/a")

The queue deduplicates waiting paths, holds at most 1024, and each
cycle drains up to 64 through the catalog's guarded validate-and-write.
Dropped or overflowed paths are not lost permanently; any later listing
or explicit validation call re-queues them.

# Usage

	rec := reconciler.New(store, reconciler.Options{
	    Interval: 15 * time.Second,
	    Lease:    time.Minute,
	})
	rec.Start()
	defer rec.Stop()

# Integration Points

  - pkg/catalog: stale-lease listing, item re-queue, flag validation
  - pkg/manager: enqueues directory validations from listings
  - pkg/worker: the heartbeats and leases this package sweeps
  - pkg/metrics: cycle counters, durations, re-queued item counter
*/
package reconciler
