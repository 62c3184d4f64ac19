package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Catalog metrics
	EntriesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tc_entries_total",
			Help: "Total number of catalog entries",
		},
	)

	EntriesCached = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tc_entries_cached",
			Help: "Number of catalog entries marked cached",
		},
	)

	// Job metrics
	JobsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tc_jobs_total",
			Help: "Number of cache jobs by status",
		},
		[]string{"status"},
	)

	ItemsCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tc_items_completed_total",
			Help: "Total number of job items warmed successfully",
		},
	)

	ItemsFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tc_items_failed_total",
			Help: "Total number of job items that failed",
		},
	)

	// Worker metrics
	WorkersLive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tc_workers_live",
			Help: "Number of live workers in the pool",
		},
	)

	ClaimBatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tc_claim_batches_total",
			Help: "Total number of non-empty claim batches",
		},
	)

	ClaimDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tc_claim_duration_seconds",
			Help:    "Item claim round-trip duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	WarmBytesReadTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tc_warm_bytes_read_total",
			Help: "Total bytes read by warm reads",
		},
	)

	WarmReadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tc_warm_read_duration_seconds",
			Help:    "Warm read duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Indexer metrics
	IndexProcessedFiles = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tc_index_processed_files",
			Help: "Entries processed by the active index session, 0 when idle",
		},
	)

	// Reconciler metrics
	ReconcileCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tc_reconcile_cycles_total",
			Help: "Total number of reconciliation cycles",
		},
	)

	ReconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tc_reconcile_duration_seconds",
			Help:    "Reconciliation cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ItemsRequeuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tc_items_requeued_total",
			Help: "Total number of items returned to pending by the lease sweep",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(EntriesTotal)
	prometheus.MustRegister(EntriesCached)
	prometheus.MustRegister(JobsTotal)
	prometheus.MustRegister(ItemsCompletedTotal)
	prometheus.MustRegister(ItemsFailedTotal)
	prometheus.MustRegister(WorkersLive)
	prometheus.MustRegister(ClaimBatchesTotal)
	prometheus.MustRegister(ClaimDuration)
	prometheus.MustRegister(WarmBytesReadTotal)
	prometheus.MustRegister(WarmReadDuration)
	prometheus.MustRegister(IndexProcessedFiles)
	prometheus.MustRegister(ReconcileCyclesTotal)
	prometheus.MustRegister(ReconcileDuration)
	prometheus.MustRegister(ItemsRequeuedTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
