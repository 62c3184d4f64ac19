package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dmcp718/tc-manager-sub000/pkg/log"
	"github.com/dmcp718/tc-manager-sub000/pkg/metrics"
	"github.com/dmcp718/tc-manager-sub000/pkg/types"
)

const (
	defaultInterval = 15 * time.Second
	defaultLease    = time.Minute

	// maxQueuedValidations bounds the directory demotion queue; a full
	// queue drops new paths, which only delays their next validation.
	maxQueuedValidations = 1024
	validationsPerCycle  = 64
)

// Catalog is the slice of the catalog store the reconciler drives
type Catalog interface {
	StaleWorkers(ctx context.Context, lease time.Duration) ([]*types.Worker, error)
	RequeueWorkerItems(ctx context.Context, workerID string) (int64, error)
	RemoveWorker(ctx context.Context, workerID string) error
	UpdateDirectoryCacheIfValid(ctx context.Context, dirPath string) (*types.RollupStats, bool, error)
}

// Options configures reconciliation timing. Zero values select defaults.
type Options struct {
	Interval time.Duration
	Lease    time.Duration
}

// Reconciler repairs state the normal paths cannot: items stranded in
// running by dead workers, and directory cached flags invalidated by
// catalog changes after roll-up.
type Reconciler struct {
	store    Catalog
	interval time.Duration
	lease    time.Duration
	logger   zerolog.Logger

	mu     sync.Mutex
	queue  []string
	queued map[string]bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates a reconciler
func New(store Catalog, opts Options) *Reconciler {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.Lease <= 0 {
		opts.Lease = defaultLease
	}
	return &Reconciler{
		store:    store,
		interval: opts.Interval,
		lease:    opts.Lease,
		logger:   log.WithComponent("reconciler"),
		queued:   make(map[string]bool),
		stopCh:   make(chan struct{}),
	}
}

// Start begins the reconciliation loop
func (r *Reconciler) Start() {
	go r.run()
}

// Stop stops the reconciler
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// EnqueueValidation schedules an asynchronous cache-flag validation for
// a directory. Duplicates already waiting are ignored.
func (r *Reconciler) EnqueueValidation(dirPath string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.queued[dirPath] {
		return
	}
	if len(r.queue) >= maxQueuedValidations {
		r.logger.Debug().Str("path", dirPath).Msg("Validation queue full, dropping")
		return
	}
	r.queued[dirPath] = true
	r.queue = append(r.queue, dirPath)
}

// run is the main reconciliation loop
func (r *Reconciler) run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.reconcile()
		case <-r.stopCh:
			return
		}
	}
}

// reconcile performs one reconciliation cycle
func (r *Reconciler) reconcile() {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ReconcileDuration)
		metrics.ReconcileCyclesTotal.Inc()
	}()

	ctx := context.Background()
	r.reconcileWorkers(ctx)
	r.reconcileDirectories(ctx)
}

// reconcileWorkers returns items owned by dead workers to pending. A
// worker is dead when its heartbeat is older than the lease; removing
// its row after the requeue keeps the sweep idempotent.
func (r *Reconciler) reconcileWorkers(ctx context.Context) {
	stale, err := r.store.StaleWorkers(ctx, r.lease)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to list stale workers")
		return
	}

	for _, w := range stale {
		n, err := r.store.RequeueWorkerItems(ctx, w.ID)
		if err != nil {
			r.logger.Warn().Err(err).Str("worker_id", w.ID).Msg("Failed to re-queue orphaned items")
			continue
		}
		if err := r.store.RemoveWorker(ctx, w.ID); err != nil {
			r.logger.Warn().Err(err).Str("worker_id", w.ID).Msg("Failed to remove stale worker")
		}
		if n > 0 {
			metrics.ItemsRequeuedTotal.Add(float64(n))
		}
		r.logger.Info().
			Str("worker_id", w.ID).
			Int64("items", n).
			Time("last_heartbeat", w.LastHeartbeat).
			Msg("Reclaimed items from dead worker")
	}
}

// reconcileDirectories drains a slice of the validation queue and lets
// the catalog promote or demote each directory's cached flag.
func (r *Reconciler) reconcileDirectories(ctx context.Context) {
	for _, dir := range r.dequeue(validationsPerCycle) {
		stats, updated, err := r.store.UpdateDirectoryCacheIfValid(ctx, dir)
		if err != nil {
			r.logger.Warn().Err(err).Str("path", dir).Msg("Directory validation failed")
			continue
		}
		if updated {
			r.logger.Debug().
				Str("path", dir).
				Bool("cached", stats.ShouldBeCached).
				Msg("Directory cache flag corrected")
		}
	}
}

func (r *Reconciler) dequeue(n int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n > len(r.queue) {
		n = len(r.queue)
	}
	batch := r.queue[:n]
	r.queue = append([]string(nil), r.queue[n:]...)
	for _, dir := range batch {
		delete(r.queued, dir)
	}
	return batch
}
