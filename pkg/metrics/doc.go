/*
Package metrics provides Prometheus metrics and health endpoints for the
cache engine.

All instruments live in the default registry, registered at package init,
and are exposed through a single HTTP handler alongside health, readiness
and liveness endpoints.

# Architecture

	┌───────────────────── METRICS SYSTEM ─────────────────────┐
	│                                                          │
	│  instruments (package vars, init-registered)             │
	│    Catalog:   tc_entries_total, tc_entries_cached        │
	│    Jobs:      tc_jobs_total{status},                     │
	│               tc_items_{completed,failed}_total          │
	│    Workers:   tc_workers_live, tc_claim_batches_total,   │
	│               tc_claim_duration_seconds,                 │
	│               tc_warm_bytes_read_total,                  │
	│               tc_warm_read_duration_seconds              │
	│    Indexer:   tc_index_processed_files                   │
	│    Reconcile: tc_reconcile_cycles_total,                 │
	│               tc_reconcile_duration_seconds,             │
	│               tc_items_requeued_total                    │
	│                                                          │
	│  Collector ── polls catalog + pool every 15s ──▶ gauges  │
	│  hot paths ── increment counters / observe histograms    │
	│                                                          │
	│  Handler() ──▶ /metrics (Prometheus text exposition)     │
	└──────────────────────────────────────────────────────────┘

Counters and histograms are written inline by the worker pool and the
reconciler on their hot paths. Gauges are written by the Collector,
which polls the catalog and the pool on a fixed interval; a gauge only
ever reflects the last poll.

# Timing

Timer wraps start-time capture and histogram observation:

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ReconcileDuration)

# Health

The package also tracks component health for the HTTP endpoints:

  - /health: aggregate over every registered component
  - /ready: gated on the critical components (catalog, pool)
  - /live: process liveness only

Components register themselves during engine startup and update their
state on failures:

	metrics.RegisterComponent("catalog", true, "connected")
	metrics.UpdateComponent("pool", false, "shutdown timed out")

# Usage

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())

	collector := metrics.NewCollector(store, pool)
	collector.Start()
	defer collector.Stop()

# Integration Points

  - pkg/catalog: entry and job counts for the Collector's gauges
  - pkg/worker: claim/warm counters and durations, live worker count
  - pkg/reconciler: cycle counters and durations, requeue counter
  - cmd/tc-manager: serves the HTTP endpoints when metrics_addr is set
*/
package metrics
