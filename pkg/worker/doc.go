// Package worker runs the pool of cache-warming workers.
//
// # Overview
//
// The pool owns N long-lived workers. Each worker polls the catalog on
// its own clock, claims a batch of pending items from claimable jobs,
// warms the underlying files, and settles the results. Claiming is the
// only coordination point: the catalog hands each item to exactly one
// worker, so workers never talk to each other.
//
//	             ┌────────────────────── Pool ──────────────────────┐
//	             │                                                  │
//	  Reconfigure│   ┌─────────┐   ┌─────────┐        ┌─────────┐   │
//	  (profile)──┼──▶│ worker 1│   │ worker 2│  ...   │ worker N│   │
//	             │   └────┬────┘   └────┬────┘        └────┬────┘   │
//	             └────────┼─────────────┼──────────────────┼────────┘
//	                      │ claim batch │                  │
//	                      ▼             ▼                  ▼
//	             ┌──────────────────────────────────────────────────┐
//	             │             catalog (SKIP LOCKED claims)         │
//	             └──────────────────────────────────────────────────┘
//
// # Worker Cycle
//
// Every poll interval a worker:
//
//  1. Upserts its heartbeat so the reconciler can tell it is alive.
//  2. Lists claimable jobs (pending or running, oldest first).
//  3. For each job, claims up to per_worker_files pending items. The
//     first worker to claim items from a pending job also flips the job
//     to running and publishes JobStarted.
//  4. Warms the claimed items concurrently, bounded by the same
//     per_worker_files limit.
//  5. Attempts to finalize the job. The finalize statement in the
//     catalog only fires when no pending or running items remain, so
//     every worker may attempt it and exactly one succeeds.
//
// Catalog errors back off exponentially (500ms doubling to 30s) and
// reset on the first healthy cycle.
//
// # Warming
//
// A warm read opens the file and reads a bounded prefix (4KB by
// default), which is enough to pull the file into the cache tier on
// read-through filesystems. The read races a per-file timeout so one
// stalled file cannot wedge a worker. The entry is marked cached only
// after the read succeeded, and strictly before the item is settled:
// a crash between the two re-queues the item and the re-mark is
// idempotent.
//
// # Settling And At-Least-Once
//
// Item settlement is guarded: the catalog applies a result only if the
// item is still running. A worker whose item was re-queued by pause or
// by the stale-lease sweep gets applied=false back and drops its
// result. Persistent settle failures leave the item running under the
// worker's lease; the sweep reclaims it if the worker dies.
//
// # Reshaping
//
// Reconfigure applies a profile's worker_count, max_concurrent_files
// and poll_interval without disrupting in-flight batches: surplus
// workers exit after their current batch, new workers spawn
// immediately, and interval changes take effect on each worker's next
// cycle.
//
// # Usage
//
//	pool := worker.NewPool(store, broker, worker.Options{
//	    WorkerCount:    4,
//	    PerWorkerFiles: 5,
//	    PollInterval:   2 * time.Second,
//	    ReadTimeout:    10 * time.Second,
//	})
//	if err := pool.Start(); err != nil {
//	    return err
//	}
//	defer pool.Stop(30 * time.Second)
//
//	// Later, when a job's profile is selected:
//	pool.Reconfigure(profile.WorkerCount, profile.MaxConcurrentFiles, profile.PollInterval)
//
// # Integration Points
//
//   - pkg/catalog: claim, settle, finalize and lease operations
//   - pkg/coordinator: creates jobs and reshapes the pool per profile
//   - pkg/reconciler: re-queues items left behind by dead workers
//   - pkg/events: job and file lifecycle notifications
package worker
