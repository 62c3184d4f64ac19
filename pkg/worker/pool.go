package worker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dmcp718/tc-manager-sub000/pkg/events"
	"github.com/dmcp718/tc-manager-sub000/pkg/log"
	"github.com/dmcp718/tc-manager-sub000/pkg/metrics"
	"github.com/dmcp718/tc-manager-sub000/pkg/types"
)

const (
	defaultPerWorkerFiles = 5
	defaultPollInterval   = 2 * time.Second
)

// Catalog is the slice of the catalog store the pool drives
type Catalog interface {
	ListClaimableJobs(ctx context.Context) ([]*types.Job, error)
	GetJob(ctx context.Context, id string) (*types.Job, error)
	ClaimPendingItems(ctx context.Context, jobID, workerID string, limit int) ([]*types.JobItem, error)
	MarkJobRunning(ctx context.Context, jobID, workerID string) (bool, error)
	CompleteItem(ctx context.Context, jobID string, itemID int64, outcome types.ItemOutcome, sizeBytes int64, errorMessage string) (bool, error)
	FinalizeJobIfDone(ctx context.Context, jobID string) (*types.Job, bool, error)
	MarkEntryCached(ctx context.Context, path string, sizeBytes int64, jobID string) error
	UpdateDirectoryCacheIfValid(ctx context.Context, dirPath string) (*types.RollupStats, bool, error)
	UpsertWorkerHeartbeat(ctx context.Context, workerID, hostname string) error
	RemoveWorker(ctx context.Context, workerID string) error
}

// Options configures the initial pool shape. The zero value of any field
// selects its default; the active profile overrides the shape through
// Reconfigure once jobs start flowing.
type Options struct {
	WorkerCount    int
	PerWorkerFiles int
	PollInterval   time.Duration
	ReadTimeout    time.Duration
	WarmReadBytes  int64
	Hostname       string
}

// Pool runs N long-lived workers that claim and warm job items.
// Scheduling is cooperative within a worker and parallel across workers;
// the catalog's claim semantics partition items so workers never overlap.
type Pool struct {
	store    Catalog
	broker   *events.Broker
	warmer   *Warmer
	hostname string
	logger   zerolog.Logger
	progress *progressThrottle

	mu        sync.Mutex
	running   bool
	workers   map[string]*worker
	seq       int
	perWorker int
	poll      time.Duration
	wg        sync.WaitGroup
	initial   int
}

// NewPool creates a worker pool. Start spawns the workers.
func NewPool(store Catalog, broker *events.Broker, opts Options) *Pool {
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = 1
	}
	if opts.PerWorkerFiles <= 0 {
		opts.PerWorkerFiles = defaultPerWorkerFiles
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Hostname == "" {
		opts.Hostname, _ = os.Hostname()
	}
	return &Pool{
		store:     store,
		broker:    broker,
		warmer:    NewWarmer(opts.WarmReadBytes, opts.ReadTimeout),
		hostname:  opts.Hostname,
		logger:    log.WithComponent("worker-pool"),
		progress:  newProgressThrottle(),
		workers:   make(map[string]*worker),
		perWorker: opts.PerWorkerFiles,
		poll:      opts.PollInterval,
		initial:   opts.WorkerCount,
	}
}

// Start spawns the initial workers
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return types.ErrAlreadyRunning
	}
	p.running = true
	for i := 0; i < p.initial; i++ {
		p.spawnLocked()
	}
	p.logger.Info().
		Int("workers", len(p.workers)).
		Int("per_worker_files", p.perWorker).
		Dur("poll_interval", p.poll).
		Msg("Worker pool started")
	return nil
}

// Stop signals every worker and waits up to timeout for in-flight batches
// to finish. Workers that do not finish in time are abandoned; their items
// stay running and the stale-lease sweep returns them to pending later.
func (p *Pool) Stop(timeout time.Duration) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return types.ErrNotRunning
	}
	p.running = false
	for _, w := range p.workers {
		w.stop()
	}
	p.workers = make(map[string]*worker)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.logger.Info().Msg("Worker pool stopped")
		return nil
	case <-time.After(timeout):
		p.logger.Warn().
			Dur("timeout", timeout).
			Msg("Worker pool shutdown timed out, abandoning in-flight items")
		return nil
	}
}

// Reconfigure applies a profile's pool shape. Growing spawns workers;
// shrinking signals the surplus to exit after their current batch. Poll
// interval and per-worker concurrency changes are picked up by every
// worker on its next cycle, so in-flight item processing is never
// preempted.
func (p *Pool) Reconfigure(workerCount, perWorkerFiles int, poll time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if perWorkerFiles > 0 {
		p.perWorker = perWorkerFiles
	}
	if poll > 0 {
		p.poll = poll
	}
	if p.running && workerCount > 0 {
		for len(p.workers) < workerCount {
			p.spawnLocked()
		}
		excess := len(p.workers) - workerCount
		for id, w := range p.workers {
			if excess <= 0 {
				break
			}
			w.stop()
			delete(p.workers, id)
			excess--
		}
	}
	p.logger.Info().
		Int("workers", len(p.workers)).
		Int("per_worker_files", p.perWorker).
		Dur("poll_interval", p.poll).
		Msg("Worker pool reconfigured")
}

// WorkerCount returns the current number of live workers
func (p *Pool) WorkerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

func (p *Pool) spawnLocked() {
	p.seq++
	id := fmt.Sprintf("worker-%02d-%s", p.seq, uuid.New().String()[:8])
	w := &worker{
		id:     id,
		pool:   p,
		logger: log.WithWorkerID(id),
		stopCh: make(chan struct{}),
		bo:     newWorkerBackoff(),
	}
	p.workers[id] = w
	p.wg.Add(1)
	go w.run()
}

func (p *Pool) pollInterval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.poll
}

func (p *Pool) perWorkerFiles() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.perWorker
}

func newWorkerBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0
	return bo
}

type worker struct {
	id       string
	pool     *Pool
	logger   zerolog.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
	bo       *backoff.ExponentialBackOff
}

func (w *worker) stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

func (w *worker) stopping() bool {
	select {
	case <-w.stopCh:
		return true
	default:
		return false
	}
}

func (w *worker) run() {
	defer w.pool.wg.Done()
	w.logger.Info().Msg("Worker started")

	// Workers outlive any request; catalog calls use a background context
	// and shutdown rides the stop channel.
	ctx := context.Background()
	for {
		select {
		case <-w.stopCh:
			if err := w.pool.store.RemoveWorker(ctx, w.id); err != nil {
				w.logger.Warn().Err(err).Msg("Failed to remove worker lease")
			}
			w.logger.Info().Msg("Worker stopped")
			return
		case <-time.After(w.pool.pollInterval()):
		}
		w.cycle(ctx)
	}
}

func (w *worker) cycle(ctx context.Context) {
	if err := w.pool.store.UpsertWorkerHeartbeat(ctx, w.id, w.pool.hostname); err != nil {
		w.logger.Warn().Err(err).Msg("Heartbeat failed")
	}

	jobs, err := w.pool.store.ListClaimableJobs(ctx)
	if err != nil {
		w.backoff(err, "Failed to list claimable jobs")
		return
	}
	w.bo.Reset()

	for _, job := range jobs {
		if w.stopping() {
			return
		}
		w.processJob(ctx, job)
	}
}

func (w *worker) processJob(ctx context.Context, job *types.Job) {
	limit := w.pool.perWorkerFiles()
	timer := metrics.NewTimer()
	items, err := w.pool.store.ClaimPendingItems(ctx, job.ID, w.id, limit)
	timer.ObserveDuration(metrics.ClaimDuration)
	if err != nil {
		w.backoff(err, "Failed to claim items")
		return
	}
	if len(items) == 0 {
		// Nothing left to claim. The job may still show pending when every
		// item settled during a pause and resume put it back on the list, so
		// finalize regardless of listed status; the guarded UPDATE is a no-op
		// while items remain in flight.
		w.tryFinalize(ctx, job.ID)
		return
	}
	metrics.ClaimBatchesTotal.Inc()

	if job.Status == types.JobStatusPending {
		won, err := w.pool.store.MarkJobRunning(ctx, job.ID, w.id)
		if err != nil {
			w.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to mark job running")
		} else if won {
			w.logger.Info().Str("job_id", job.ID).Msg("Job started")
			w.pool.broker.Publish(&events.JobStarted{JobID: job.ID, WorkerID: w.id})
		}
	}

	g := &errgroup.Group{}
	g.SetLimit(limit)
	for _, item := range items {
		item := item
		g.Go(func() error {
			w.processItem(ctx, job.ID, item)
			return nil
		})
	}
	_ = g.Wait()

	w.publishProgress(ctx, job.ID, len(items))
	w.tryFinalize(ctx, job.ID)
}

func (w *worker) processItem(ctx context.Context, jobID string, item *types.JobItem) {
	logger := w.logger.With().
		Str("job_id", jobID).
		Int64("item_id", item.ID).
		Str("path", item.FilePath).
		Logger()

	w.pool.broker.Publish(&events.FileStarted{
		JobID:    jobID,
		ItemID:   item.ID,
		Path:     item.FilePath,
		WorkerID: w.id,
	})

	size, warmErr := w.pool.warmer.Warm(ctx, item.FilePath)
	if warmErr != nil {
		logger.Warn().Err(warmErr).Msg("Warm read failed")
		applied, err := w.completeWithRetry(ctx, jobID, item.ID, types.ItemOutcomeFailed, 0, warmErr.Error())
		if err != nil {
			logger.Error().Err(err).Msg("Failed to record item failure, leaving item running")
			return
		}
		if !applied {
			logger.Warn().Msg("Item already settled elsewhere, dropping failure")
			return
		}
		metrics.ItemsFailedTotal.Inc()
		w.pool.broker.Publish(&events.FileFailed{
			JobID:    jobID,
			ItemID:   item.ID,
			Path:     item.FilePath,
			WorkerID: w.id,
			Message:  warmErr.Error(),
		})
		return
	}

	// The cached flag is recorded only after the read succeeded
	err := w.withRetry(ctx, func() error {
		return w.pool.store.MarkEntryCached(ctx, item.FilePath, size, jobID)
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to mark entry cached, leaving item running")
		return
	}

	applied, err := w.completeWithRetry(ctx, jobID, item.ID, types.ItemOutcomeCompleted, size, "")
	if err != nil {
		logger.Error().Err(err).Msg("Failed to record item completion, leaving item running")
		return
	}
	if !applied {
		logger.Warn().Msg("Item already settled elsewhere, dropping result")
		return
	}
	metrics.ItemsCompletedTotal.Inc()

	logger.Debug().Int64("size_bytes", size).Msg("File warmed")
	w.pool.broker.Publish(&events.FileCompleted{
		JobID:     jobID,
		ItemID:    item.ID,
		Path:      item.FilePath,
		SizeBytes: size,
		WorkerID:  w.id,
	})
}

func (w *worker) completeWithRetry(ctx context.Context, jobID string, itemID int64, outcome types.ItemOutcome, size int64, msg string) (bool, error) {
	var applied bool
	err := w.withRetry(ctx, func() error {
		var err error
		applied, err = w.pool.store.CompleteItem(ctx, jobID, itemID, outcome, size, msg)
		return err
	})
	return applied, err
}

// withRetry runs a catalog write with a short capped backoff. Persistent
// failure leaves the item running under this worker's lease; the
// stale-lease sweep reclaims it if the worker later dies.
func (w *worker) withRetry(ctx context.Context, op func() error) error {
	bo := backoff.WithMaxRetries(backoff.WithContext(newWorkerBackoff(), ctx), 3)
	return backoff.Retry(op, bo)
}

func (w *worker) tryFinalize(ctx context.Context, jobID string) {
	job, done, err := w.pool.store.FinalizeJobIfDone(ctx, jobID)
	if err != nil {
		w.logger.Warn().Err(err).Str("job_id", jobID).Msg("Finalize attempt failed")
		return
	}
	if !done {
		return
	}

	w.logger.Info().
		Str("job_id", job.ID).
		Str("status", string(job.Status)).
		Int64("completed_files", job.CompletedFiles).
		Int64("failed_files", job.FailedFiles).
		Int64("completed_size_bytes", job.CompletedSizeBytes).
		Msg("Job finalized")

	if job.Status == types.JobStatusCompleted {
		w.pool.broker.Publish(&events.JobCompleted{
			JobID:              job.ID,
			TotalFiles:         job.TotalFiles,
			CompletedFiles:     job.CompletedFiles,
			CompletedSizeBytes: job.CompletedSizeBytes,
		})
	} else {
		w.pool.broker.Publish(&events.JobFailed{
			JobID:          job.ID,
			TotalFiles:     job.TotalFiles,
			CompletedFiles: job.CompletedFiles,
			FailedFiles:    job.FailedFiles,
		})
	}
	w.pool.progress.drop(job.ID)

	// Settle the directory flags for the job's original selections
	for _, dir := range job.DirectoryPaths {
		if _, _, err := w.pool.store.UpdateDirectoryCacheIfValid(ctx, dir); err != nil {
			w.logger.Warn().Err(err).Str("path", dir).Msg("Directory roll-up failed")
		}
	}
}

func (w *worker) publishProgress(ctx context.Context, jobID string, items int) {
	if !w.pool.progress.should(jobID, items) {
		return
	}
	job, err := w.pool.store.GetJob(ctx, jobID)
	if err != nil {
		return
	}
	w.pool.broker.Publish(&events.FileProgress{
		JobID:          jobID,
		WorkerID:       w.id,
		TotalFiles:     job.TotalFiles,
		CompletedFiles: job.CompletedFiles,
		FailedFiles:    job.FailedFiles,
	})
}

func (w *worker) backoff(err error, msg string) {
	delay := w.bo.NextBackOff()
	w.logger.Warn().Err(err).Dur("backoff", delay).Msg(msg)
	select {
	case <-time.After(delay):
	case <-w.stopCh:
	}
}
