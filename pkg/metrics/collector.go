package metrics

import (
	"context"
	"time"

	"github.com/dmcp718/tc-manager-sub000/pkg/catalog"
	"github.com/dmcp718/tc-manager-sub000/pkg/types"
)

// CatalogStats is the slice of the catalog store the collector polls
type CatalogStats interface {
	Ping(ctx context.Context) error
	CountEntries(ctx context.Context) (*catalog.EntryStats, error)
	CountJobsByStatus(ctx context.Context) (map[types.JobStatus]int64, error)
	ActiveSession(ctx context.Context) (*types.IndexSession, error)
}

// PoolStats reports the live worker count
type PoolStats interface {
	WorkerCount() int
}

var jobStatuses = []types.JobStatus{
	types.JobStatusPending,
	types.JobStatusRunning,
	types.JobStatusPaused,
	types.JobStatusCompleted,
	types.JobStatusFailed,
	types.JobStatusCancelled,
}

// Collector periodically gauges catalog and pool state
type Collector struct {
	store  CatalogStats
	pool   PoolStats
	stopCh chan struct{}
}

// NewCollector creates a metrics collector
func NewCollector(store CatalogStats, pool PoolStats) *Collector {
	return &Collector{
		store:  store,
		pool:   pool,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// The catalog component's health tracks reachability, so /ready flips
	// when the database goes away and recovers when it returns.
	if err := c.store.Ping(ctx); err != nil {
		UpdateComponent("catalog", false, err.Error())
	} else {
		UpdateComponent("catalog", true, "connected")
	}

	c.collectEntryMetrics(ctx)
	c.collectJobMetrics(ctx)
	c.collectIndexMetrics(ctx)

	WorkersLive.Set(float64(c.pool.WorkerCount()))
}

func (c *Collector) collectEntryMetrics(ctx context.Context) {
	stats, err := c.store.CountEntries(ctx)
	if err != nil {
		return
	}
	EntriesTotal.Set(float64(stats.Total))
	EntriesCached.Set(float64(stats.Cached))
}

func (c *Collector) collectJobMetrics(ctx context.Context) {
	counts, err := c.store.CountJobsByStatus(ctx)
	if err != nil {
		return
	}
	// Set every known status so vanished statuses drop to zero
	for _, status := range jobStatuses {
		JobsTotal.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}

func (c *Collector) collectIndexMetrics(ctx context.Context) {
	sess, err := c.store.ActiveSession(ctx)
	if err != nil || sess == nil {
		IndexProcessedFiles.Set(0)
		return
	}
	IndexProcessedFiles.Set(float64(sess.ProcessedFiles))
}
