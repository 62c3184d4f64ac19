/*
Package manager wires and runs the TeamCache Manager engine.

Manager is the composition root: it owns the lifecycle of every engine
component and is the single surface external callers (the CLI, network
facades) talk to. Callers never touch the catalog, the indexer or the
worker pool directly; every operation goes through Manager, which
enforces the path allow-list before any state is read or written.

# Architecture

	┌───────────────────────── MANAGER ─────────────────────────┐
	│                                                           │
	│  ┌─────────────────────────────────────────────┐          │
	│  │           Operations Facade                 │          │
	│  │  - index: start / stop / status             │          │
	│  │  - jobs: create, pause, resume, cancel      │          │
	│  │  - browse, validate, size queries           │          │
	│  │  - path policy on every input path          │          │
	│  └──────────────────┬──────────────────────────┘          │
	│                     │                                     │
	│  ┌─────────┬────────┴──┬───────────┬────────────┐         │
	│  ▼         ▼           ▼           ▼            ▼         │
	│ indexer  coordinator  worker     reconciler  metrics      │
	│ (scan)   (lifecycle)  pool       (sweeps)    collector    │
	│  │         │          (warm)      │            │          │
	│  └─────────┴──────┬───┴───────────┴────────────┘          │
	│                   ▼                                       │
	│  ┌─────────────────────────────────────────────┐          │
	│  │        catalog (PostgreSQL)                 │          │
	│  │  shared state, claims, leases, roll-ups     │          │
	│  └─────────────────────────────────────────────┘          │
	│                                                           │
	│  events.Broker ◀── publishes from every component         │
	└───────────────────────────────────────────────────────────┘

Components never reference each other; they share state only through
the catalog and notify observers only through the broker. That keeps
the wiring a straight fan-out from Manager and makes each component
testable against a narrow interface.

# Lifecycle

New wires the engine and prepares the database: it validates the
configuration, opens the catalog, ensures the schema and the seeded
profile set, starts the event broker and constructs every component. A
fresh database is serveable immediately after New; no separate
migration step is required (cmd/tc-migrate exists for operators who
want schema changes applied outside the daemon).

Start begins background processing: the worker pool, the stale-lease
reconciler and the metrics collector. The indexer is not started; index
traversals run on demand via StartIndex.

Shutdown stops intake first and drains outward:

 1. Stop the indexer and wait for its traversal goroutine to exit.
 2. Stop the worker pool, waiting up to shutdown_timeout_ms for
    in-flight items to settle.
 3. Stop the reconciler, the collector and the broker.
 4. Close the catalog.

Items still running when the pool timeout expires are abandoned, not
cancelled: they stay leased to their worker id, and the next engine's
reconciler sweeps them back to pending once the lease goes stale. Jobs
therefore survive restarts without losing or duplicating settled work.

A Manager that was never started can still be shut down. One-shot
callers (CLI subcommands) rely on this: New, one operation, Shutdown.

# Path Policy

Every operation that accepts a filesystem path resolves it before use.
Relative paths are joined to root_path; the result is cleaned and must
fall under one of allowed_roots, otherwise the operation fails with
ErrPathDenied and touches nothing. Jobs validate their whole selection
up front, so a single denied path rejects the job rather than warming a
partial set.

# Usage

	cfg, err := config.Load("/etc/teamcache/manager.yaml")
	if err != nil {
		return err
	}

	mgr, err := manager.New(ctx, cfg)
	if err != nil {
		return err
	}
	if err := mgr.Start(); err != nil {
		return err
	}
	defer mgr.Shutdown(context.Background())

	sessionID, err := mgr.StartIndex(ctx, "/mnt/teamspace")
	job, err := mgr.CreateCacheJob(ctx, nil, []string{"/mnt/teamspace/projects/alpha"}, "")

Watching progress:

	sub := mgr.Subscribe()
	defer mgr.Unsubscribe(sub)
	for ev := range sub {
		switch e := ev.(type) {
		case *events.JobCompleted:
			fmt.Printf("job %s: %d files\n", e.JobID, e.CompletedFiles)
		}
	}

# Integration Points

This package integrates with:

  - pkg/config: validated engine configuration
  - pkg/catalog: opened, migrated and closed here; shared by components
  - pkg/indexer: on-demand filesystem traversals
  - pkg/coordinator: job creation and operator transitions
  - pkg/worker: the warming pool, drained on shutdown
  - pkg/reconciler: lease sweeps and async directory re-validation
  - pkg/metrics: component health and gauge collection
  - pkg/events: subscriber management for CLI and facade observers
  - cmd/tc-manager: the daemon and one-shot CLI entrypoints
*/
package manager
