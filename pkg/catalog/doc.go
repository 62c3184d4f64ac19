/*
Package catalog provides PostgreSQL-backed persistence for TeamCache Manager.

The catalog is the single synchronization point of the engine. It owns every
durable row: filesystem entries observed by the indexer, index sessions,
cache jobs with their per-file items, execution profiles, and worker leases.
All cross-worker coordination happens through its transactional API; no
engine component shares in-memory state across a database call.

# Architecture

	┌──────────────────── CATALOG STORE ───────────────────────┐
	│                                                           │
	│  ┌────────────────────────────────────────────┐           │
	│  │              Store                         │           │
	│  │  - database/sql + lib/pq driver            │           │
	│  │  - Pooled connections (default 25)         │           │
	│  │  - Connect retry with capped backoff       │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                     │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │              Tables                        │           │
	│  │  ┌────────────────────────────┐            │           │
	│  │  │ entries         (path PK)  │            │           │
	│  │  │ index_sessions  (id PK)    │            │           │
	│  │  │ cache_jobs      (id PK)    │            │           │
	│  │  │ cache_job_items (serial)   │            │           │
	│  │  │ cache_profiles  (id PK)    │            │           │
	│  │  │ workers         (id PK)    │            │           │
	│  │  └────────────────────────────┘            │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                     │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │        Coordination Primitives             │           │
	│  │  - FOR UPDATE SKIP LOCKED item claims      │           │
	│  │  - Partial unique indexes (one active      │           │
	│  │    session, one default profile)           │           │
	│  │  - Guarded UPDATEs for state transitions   │           │
	│  │  - Incremental job counters in item txn    │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                     │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │        Directory Roll-ups                  │           │
	│  │  - Recursive CTEs on parent_path           │           │
	│  │  - Validation bounded to max depth         │           │
	│  │  - Size roll-up: LRU → JSONB → compute     │           │
	│  └────────────────────────────────────────────┘           │
	└───────────────────────────────────────────────────────────┘

# Operation Groups

Entries (entries.go):
  - UpsertEntries: chunked multi-row upsert by path, one transaction per
    batch; refreshes filesystem fields and last_seen_session_id, never
    touches cache state
  - BatchNeedsIndexing: change detection with 1000 ms mtime tolerance
  - FindChildren / FindFilesRecursively: browse and expand selections
  - MarkEntryCached: records a successful warm read, backfilling the row
    when the warm outran the indexer

Sessions (sessions.go):
  - CreateSession: at most one pending or running session process-wide,
    enforced by a partial unique index; violation maps to ErrAlreadyRunning
  - UpdateSessionProgress / FinishSession: observability counters and
    terminal states

Jobs and items (jobs.go):
  - CreateJobWithItems: job row plus item rows in one transaction, items
    chunked at 1000 rows per statement
  - ClaimPendingItems: the critical section; see Concurrency below
  - MarkJobRunning: first claim flips pending to running, exactly once
  - CompleteItem: item terminal state and incremental job counters in one
    transaction
  - FinalizeJobIfDone: single guarded UPDATE; completed when nothing
    failed, failed otherwise
  - TransitionJob: operator transitions with an accepted-status guard
  - RequeueJobItems / RequeueWorkerItems: return running items to pending
    on pause or lease expiry

Profiles (profiles.go):
  - Seeded representative set, idempotent; lookups by id, by name, default

Roll-up and sizes (rollup.go, sizes.go):
  - ValidateDirectoryCacheStatus: depth-bounded recursive CTE; frontier
    directories force a conservative not-cacheable verdict
  - UpdateDirectoryCacheIfValid: writes the cached flag, clears the job
    reference on demotion
  - DirectorySize: tiered lookup through an in-process LRU, the
    computed_size metadata sub-document, then a full recursive walk

Metadata (metadata.go):
  - jsonb_set writers per sub-document; concurrent writers of different
    keys never clobber each other

Workers (workers.go):
  - Heartbeat leases judged against the database clock

# Concurrency

ClaimPendingItems is the only mechanism preventing two workers from warming
the same item. The claim subquery locks candidate item rows with FOR UPDATE
SKIP LOCKED so concurrent workers partition the pending set without
blocking, and takes a share lock on the job row so a claim can never commit
after a pause or cancel has. Everything else relies on guarded single
UPDATE statements whose WHERE clauses encode the legal state machine;
RowsAffected tells the caller whether it won the race.

Job counters are updated incrementally inside the CompleteItem transaction.
They only ever increase while a job is live, so progress observers never
see counters move backwards.

# Usage

	store, err := catalog.Open(ctx, catalog.Options{
		DatabaseURL:    cfg.DatabaseURL,
		RollupMaxDepth: cfg.RollupMaxDepth,
		SizeCacheTTL:   cfg.DirectorySizeCacheTTL(),
	})
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := store.SeedProfiles(ctx); err != nil {
		return err
	}

Claiming and completing items:

	items, err := store.ClaimPendingItems(ctx, jobID, workerID, 5)
	for _, item := range items {
		// ... warm the file ...
		applied, err := store.CompleteItem(ctx, jobID, item.ID,
			types.ItemOutcomeCompleted, size, "")
		_ = applied // false: another actor already settled the item
	}
	if job, done, _ := store.FinalizeJobIfDone(ctx, jobID); done {
		// job.Status is completed or failed
	}

# Integration Points

This package integrates with:

  - pkg/indexer: UpsertEntries, BatchNeedsIndexing, session lifecycle
  - pkg/coordinator: job creation, operator transitions, profile lookups
  - pkg/worker: claims, completions, finalize, heartbeats
  - pkg/reconciler: stale lease sweep, orphan requeue, async demotion
  - pkg/manager: browse, validation and size queries behind path policy
  - cmd/tc-migrate: EnsureSchema and SeedProfiles outside the daemon
*/
package catalog
