package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dmcp718/tc-manager-sub000/pkg/events"
	"github.com/dmcp718/tc-manager-sub000/pkg/log"
	"github.com/dmcp718/tc-manager-sub000/pkg/types"
)

const (
	defaultBatchSize = 500
	progressEvery    = 100
)

// Catalog is the slice of the catalog store the indexer drives
type Catalog interface {
	CreateSession(ctx context.Context, sess *types.IndexSession) error
	BatchNeedsIndexing(ctx context.Context, observed []*types.Entry) ([]*types.Entry, error)
	UpsertEntries(ctx context.Context, batch []*types.Entry, sessionID string) ([]*types.Entry, error)
	UpdateSessionProgress(ctx context.Context, id string, processed, total int64, currentPath string) error
	FinishSession(ctx context.Context, id string, status types.IndexStatus, errorMessage string) error
	ActiveSession(ctx context.Context) (*types.IndexSession, error)
	LatestSession(ctx context.Context) (*types.IndexSession, error)
}

// Indexer walks the mounted filespace and reconciles what it sees into the
// catalog. One traversal runs at a time; the active slot is enforced both
// in-process and by the catalog's single-active-session constraint, so a
// second engine instance pointed at the same database cannot start a
// concurrent traversal either.
type Indexer struct {
	store     Catalog
	broker    *events.Broker
	batchSize int
	logger    zerolog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates an indexer. A non-positive batchSize selects the default of
// 500 entries per catalog round-trip.
func New(store Catalog, broker *events.Broker, batchSize int) *Indexer {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Indexer{
		store:     store,
		broker:    broker,
		batchSize: batchSize,
		logger:    log.WithComponent("indexer"),
	}
}

// Start begins a traversal rooted at rootPath and returns the new session
// id. Fails with ErrAlreadyRunning while a session is active.
func (ix *Indexer) Start(ctx context.Context, rootPath string) (string, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.running {
		return "", types.ErrAlreadyRunning
	}

	sess := &types.IndexSession{
		ID:        uuid.New().String(),
		RootPath:  rootPath,
		Status:    types.IndexStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := ix.store.CreateSession(ctx, sess); err != nil {
		return "", err
	}

	ix.running = true
	ix.stopCh = make(chan struct{})
	ix.doneCh = make(chan struct{})

	ix.logger.Info().
		Str("session_id", sess.ID).
		Str("root_path", rootPath).
		Msg("Index session started")

	go ix.run(sess, ix.stopCh, ix.doneCh)
	return sess.ID, nil
}

// Stop requests cooperative cancellation of the active traversal. The
// walker observes the request between directory enumerations and between
// batches, flushes what it holds, and marks the session stopped. Fails
// with ErrNotRunning when no traversal is active.
func (ix *Indexer) Stop() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if !ix.running {
		return types.ErrNotRunning
	}
	select {
	case <-ix.stopCh:
	default:
		close(ix.stopCh)
	}
	return nil
}

// Status returns the active session, or the most recent one when idle.
// Returns nil when the catalog has never recorded a session.
func (ix *Indexer) Status(ctx context.Context) (*types.IndexSession, error) {
	if active, err := ix.store.ActiveSession(ctx); err != nil {
		return nil, err
	} else if active != nil {
		return active, nil
	}
	return ix.store.LatestSession(ctx)
}

// Done exposes completion of the current run for graceful shutdown. The
// returned channel is closed when the walker goroutine exits; nil when no
// run was ever started.
func (ix *Indexer) Done() <-chan struct{} {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.doneCh
}

// run owns the stop and done channels of its own traversal; Start may hand
// the fields to a new run once the slot is released.
func (ix *Indexer) run(sess *types.IndexSession, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	stopped := func() bool {
		select {
		case <-stopCh:
			return true
		default:
			return false
		}
	}
	// The slot frees before the terminal event publishes, so a consumer
	// reacting to index-complete can start a new traversal immediately.
	release := func() {
		ix.mu.Lock()
		ix.running = false
		ix.mu.Unlock()
	}

	// The traversal outlives the Start call; catalog writes use a
	// background context and stop via the cooperative flag.
	ctx := context.Background()
	logger := ix.logger.With().Str("session_id", sess.ID).Logger()

	var (
		batch      []*types.Entry
		processed  int64
		currentDir = sess.RootPath
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		needed, err := ix.store.BatchNeedsIndexing(ctx, batch)
		if err != nil {
			return err
		}
		if len(needed) > 0 {
			if _, err := ix.store.UpsertEntries(ctx, needed, sess.ID); err != nil {
				return err
			}
		}
		logger.Debug().
			Int("observed", len(batch)).
			Int("upserted", len(needed)).
			Msg("Batch flushed")
		batch = batch[:0]
		return ix.store.UpdateSessionProgress(ctx, sess.ID, processed, 0, currentDir)
	}

	fail := func(err error) {
		logger.Error().Err(err).Msg("Index session failed")
		if ferr := ix.store.FinishSession(ctx, sess.ID, types.IndexStatusFailed, err.Error()); ferr != nil {
			logger.Error().Err(ferr).Msg("Failed to record session failure")
		}
		release()
		ix.broker.Publish(&events.IndexError{
			SessionID: sess.ID,
			RootPath:  sess.RootPath,
			Message:   err.Error(),
		})
	}

	// Depth-first: directories queue onto a stack as they are discovered
	stack := []string{sess.RootPath}
	rootSeen := false

	for len(stack) > 0 {
		if stopped() {
			break
		}

		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		currentDir = dir

		dirents, err := os.ReadDir(dir)
		if err != nil {
			if !rootSeen {
				fail(fmt.Errorf("failed to read root directory: %w", err))
				return
			}
			logger.Warn().Err(err).Str("path", dir).Msg("Skipping unreadable directory")
			continue
		}
		rootSeen = true

		for _, d := range dirents {
			name := d.Name()
			if strings.HasPrefix(name, ".") {
				continue
			}
			info, err := d.Info()
			if err != nil {
				logger.Warn().Err(err).
					Str("path", filepath.Join(dir, name)).
					Msg("Skipping entry, stat failed")
				continue
			}

			path := filepath.Join(dir, name)
			entry := &types.Entry{
				Path:        path,
				ParentPath:  dir,
				Name:        name,
				IsDirectory: d.IsDir(),
				ModifiedAt:  info.ModTime().UTC(),
				Permissions: fmt.Sprintf("%04o", info.Mode().Perm()),
			}
			if !d.IsDir() {
				entry.Size = info.Size()
			} else {
				stack = append(stack, path)
			}
			batch = append(batch, entry)
			processed++

			if processed%progressEvery == 0 {
				ix.broker.Publish(&events.IndexProgress{
					SessionID:      sess.ID,
					RootPath:       sess.RootPath,
					ProcessedFiles: processed,
					CurrentPath:    currentDir,
				})
			}
			if len(batch) >= ix.batchSize {
				if stopped() {
					break
				}
				if err := flush(); err != nil {
					fail(err)
					return
				}
			}
		}
	}

	// Flush whatever the walk accumulated, stopped or not
	if err := flush(); err != nil {
		fail(err)
		return
	}

	wasStopped := stopped()
	status := types.IndexStatusCompleted
	if wasStopped {
		status = types.IndexStatusStopped
	}
	if err := ix.store.UpdateSessionProgress(ctx, sess.ID, processed, processed, currentDir); err != nil {
		fail(err)
		return
	}
	if err := ix.store.FinishSession(ctx, sess.ID, status, ""); err != nil {
		fail(err)
		return
	}

	logger.Info().
		Int64("processed_files", processed).
		Bool("stopped", wasStopped).
		Msg("Index session finished")
	release()
	ix.broker.Publish(&events.IndexComplete{
		SessionID:      sess.ID,
		RootPath:       sess.RootPath,
		ProcessedFiles: processed,
		Stopped:        wasStopped,
	})
}
