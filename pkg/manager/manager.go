package manager

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dmcp718/tc-manager-sub000/pkg/catalog"
	"github.com/dmcp718/tc-manager-sub000/pkg/config"
	"github.com/dmcp718/tc-manager-sub000/pkg/coordinator"
	"github.com/dmcp718/tc-manager-sub000/pkg/events"
	"github.com/dmcp718/tc-manager-sub000/pkg/indexer"
	"github.com/dmcp718/tc-manager-sub000/pkg/log"
	"github.com/dmcp718/tc-manager-sub000/pkg/metrics"
	"github.com/dmcp718/tc-manager-sub000/pkg/reconciler"
	"github.com/dmcp718/tc-manager-sub000/pkg/types"
	"github.com/dmcp718/tc-manager-sub000/pkg/worker"
)

// Manager is the engine root. It owns every component's lifecycle and is
// the single surface external callers (CLI, network facades) talk to.
// All path-taking operations resolve their input against the configured
// mount and enforce the allow-list before touching any state.
type Manager struct {
	cfg        *config.Config
	store      *catalog.Store
	broker     *events.Broker
	indexer    *indexer.Indexer
	pool       *worker.Pool
	coord      *coordinator.Coordinator
	reconciler *reconciler.Reconciler
	collector  *metrics.Collector
	logger     zerolog.Logger
}

// New wires the engine: catalog, event broker, indexer, worker pool,
// coordinator, reconciler and metrics collector. The catalog schema and
// the seeded profile set are ensured here, so a fresh database serves
// without a separate migration step.
func New(ctx context.Context, cfg *config.Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := catalog.Open(ctx, catalog.Options{
		DatabaseURL:    cfg.DatabaseURL,
		RollupMaxDepth: cfg.RollupMaxDepth,
		SizeCacheTTL:   cfg.DirectorySizeCacheTTL(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	if err := store.SeedProfiles(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to seed profiles: %w", err)
	}

	broker := events.NewBroker()
	broker.Start()

	pool := worker.NewPool(store, broker, worker.Options{
		WorkerCount:    cfg.WorkerCountDefault,
		PerWorkerFiles: cfg.MaxConcurrentFilesDefault,
		PollInterval:   cfg.PollInterval(),
		ReadTimeout:    cfg.ReadTimeout(),
		WarmReadBytes:  cfg.WarmReadBytes,
	})

	m := &Manager{
		cfg:     cfg,
		store:   store,
		broker:  broker,
		indexer: indexer.New(store, broker, cfg.IndexBatchSize),
		pool:    pool,
		coord: coordinator.New(store, pool, broker, coordinator.Options{
			RequeueOnPause: cfg.RequeueOnPause,
		}),
		reconciler: reconciler.New(store, reconciler.Options{
			Lease: cfg.WorkerLeaseTimeout(),
		}),
		logger: log.WithComponent("manager"),
	}
	m.collector = metrics.NewCollector(store, pool)

	metrics.RegisterComponent("catalog", true, "connected")
	metrics.RegisterComponent("pool", false, "not started")
	return m, nil
}

// Start begins background processing: the worker pool, the reconciler
// and the metrics collector. The indexer starts on demand.
func (m *Manager) Start() error {
	if err := m.pool.Start(); err != nil {
		return err
	}
	m.reconciler.Start()
	m.collector.Start()
	metrics.UpdateComponent("pool", true, "running")
	m.logger.Info().
		Str("root_path", m.cfg.RootPath).
		Int("workers", m.pool.WorkerCount()).
		Msg("Engine started")
	return nil
}

// Shutdown stops the engine gracefully: intake stops first, then the
// pool drains in-flight items up to the shutdown timeout. Items still
// running after the deadline stay leased and are swept back to pending
// by the next engine's reconciler.
func (m *Manager) Shutdown(ctx context.Context) error {
	timeout := m.cfg.ShutdownTimeout()
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	if err := m.indexer.Stop(); err != nil && !errors.Is(err, types.ErrNotRunning) {
		m.logger.Warn().Err(err).Msg("Failed to stop indexer")
	}
	if done := m.indexer.Done(); done != nil {
		select {
		case <-done:
		case <-time.After(timeout):
			m.logger.Warn().Msg("Indexer did not stop in time")
		}
	}

	if err := m.pool.Stop(timeout); err != nil && !errors.Is(err, types.ErrNotRunning) {
		m.logger.Warn().Err(err).Msg("Failed to stop worker pool")
	}

	m.reconciler.Stop()
	m.collector.Stop()
	m.broker.Stop()

	metrics.UpdateComponent("pool", false, "stopped")
	metrics.UpdateComponent("catalog", false, "closed")
	if err := m.store.Close(); err != nil {
		return fmt.Errorf("failed to close catalog: %w", err)
	}
	m.logger.Info().Msg("Engine stopped")
	return nil
}

// StartIndex begins an index traversal under root and returns the new
// session id
func (m *Manager) StartIndex(ctx context.Context, root string) (string, error) {
	resolved, err := m.resolvePath(root)
	if err != nil {
		return "", err
	}
	return m.indexer.Start(ctx, resolved)
}

// StopIndex requests cooperative cancellation of the active traversal
func (m *Manager) StopIndex() error {
	return m.indexer.Stop()
}

// IndexStatus returns the active session, or the most recent one
func (m *Manager) IndexStatus(ctx context.Context) (*types.IndexSession, error) {
	return m.indexer.Status(ctx)
}

// CreateCacheJob creates a warming job from file and directory selections
func (m *Manager) CreateCacheJob(ctx context.Context, files, dirs []string, profileRef string) (*types.Job, error) {
	resolvedFiles, err := m.resolvePaths(files)
	if err != nil {
		return nil, err
	}
	resolvedDirs, err := m.resolvePaths(dirs)
	if err != nil {
		return nil, err
	}
	return m.coord.CreateJob(ctx, resolvedFiles, resolvedDirs, profileRef)
}

// StartJob validates that a job is pending; workers claim it on poll
func (m *Manager) StartJob(ctx context.Context, id string) error {
	return m.coord.StartJob(ctx, id)
}

// PauseJob pauses a running job
func (m *Manager) PauseJob(ctx context.Context, id string) error {
	return m.coord.PauseJob(ctx, id)
}

// ResumeJob returns a paused job to pending
func (m *Manager) ResumeJob(ctx context.Context, id string) error {
	return m.coord.ResumeJob(ctx, id)
}

// CancelJob cancels a job from any non-terminal state
func (m *Manager) CancelJob(ctx context.Context, id string) error {
	return m.coord.CancelJob(ctx, id)
}

// ClearCompleted deletes terminal jobs and their items
func (m *Manager) ClearCompleted(ctx context.Context) (int64, error) {
	return m.coord.ClearCompleted(ctx)
}

// ListJobs returns jobs newest first
func (m *Manager) ListJobs(ctx context.Context, limit int) ([]*types.Job, error) {
	return m.store.ListJobs(ctx, limit)
}

// GetJob returns a job with its items
func (m *Manager) GetJob(ctx context.Context, id string) (*types.Job, []*types.JobItem, error) {
	job, err := m.store.GetJob(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	items, err := m.store.GetJobItems(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return job, items, nil
}

// ListChildren returns a directory's direct children, directories first.
// Cached child directories are queued for asynchronous re-validation, so
// a listing never pays for roll-up work but stale flags still heal.
func (m *Manager) ListChildren(ctx context.Context, dir string) ([]*types.Entry, error) {
	resolved, err := m.resolvePath(dir)
	if err != nil {
		return nil, err
	}
	entries, err := m.store.FindChildren(ctx, resolved)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.IsDirectory && e.Cached {
			m.reconciler.EnqueueValidation(e.Path)
		}
	}
	return entries, nil
}

// ValidateDirectoryCache validates a directory's cached flag and writes
// the corrected value. Returns the roll-up stats and whether a write
// happened.
func (m *Manager) ValidateDirectoryCache(ctx context.Context, dir string) (*types.RollupStats, bool, error) {
	resolved, err := m.resolvePath(dir)
	if err != nil {
		return nil, false, err
	}
	return m.store.UpdateDirectoryCacheIfValid(ctx, resolved)
}

// DirectorySize returns the recursive size roll-up for a directory
func (m *Manager) DirectorySize(ctx context.Context, dir string) (*types.ComputedSize, error) {
	resolved, err := m.resolvePath(dir)
	if err != nil {
		return nil, err
	}
	return m.store.DirectorySize(ctx, resolved)
}

// ListProfiles returns all profiles ordered by priority
func (m *Manager) ListProfiles(ctx context.Context) ([]*types.Profile, error) {
	return m.store.ListProfiles(ctx)
}

// Subscribe attaches a new event subscriber
func (m *Manager) Subscribe() events.Subscriber {
	return m.broker.Subscribe()
}

// Unsubscribe detaches an event subscriber
func (m *Manager) Unsubscribe(sub events.Subscriber) {
	m.broker.Unsubscribe(sub)
}

// resolvePath normalizes a caller-supplied path and enforces the
// allow-list. Relative paths resolve against the mount root.
func (m *Manager) resolvePath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("%w: empty path", types.ErrPathDenied)
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(m.cfg.RootPath, p)
	}
	p = filepath.Clean(p)

	for _, root := range m.cfg.AllowedRoots {
		root = filepath.Clean(root)
		if p == root || strings.HasPrefix(p, root+string(filepath.Separator)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s", types.ErrPathDenied, p)
}

func (m *Manager) resolvePaths(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	resolved := make([]string, len(paths))
	for i, p := range paths {
		r, err := m.resolvePath(p)
		if err != nil {
			return nil, err
		}
		resolved[i] = r
	}
	return resolved, nil
}
