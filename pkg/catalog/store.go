package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/lib/pq" // postgres driver
	"github.com/rs/zerolog"

	"github.com/dmcp718/tc-manager-sub000/pkg/log"
	"github.com/dmcp718/tc-manager-sub000/pkg/types"
)

const (
	// upsertChunkSize caps rows per bulk statement
	upsertChunkSize = 1000

	// mtimeTolerance absorbs filesystem timestamp precision differences
	mtimeTolerance = 1000 * time.Millisecond

	// sizeCacheEntries bounds the in-process computed-size front cache
	sizeCacheEntries = 4096

	connectTimeout  = 30 * time.Second
	defaultMaxConns = 25
)

// Options configures a Store
type Options struct {
	DatabaseURL    string
	RollupMaxDepth int
	SizeCacheTTL   time.Duration
	MaxOpenConns   int
}

// Store is the catalog backed by PostgreSQL. It owns every durable row the
// engine relies on: entries, index sessions, jobs, job items, profiles and
// worker leases.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger

	rollupMaxDepth int
	sizeTTL        time.Duration
	sizeCache      *lru.Cache[string, *types.ComputedSize]
}

// Open connects to the catalog database, retrying the initial ping with
// exponential backoff so the engine tolerates a database that is still
// starting up.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.DatabaseURL == "" {
		return nil, fmt.Errorf("database url is required")
	}
	if opts.RollupMaxDepth <= 0 {
		opts.RollupMaxDepth = 20
	}
	if opts.SizeCacheTTL <= 0 {
		opts.SizeCacheTTL = time.Hour
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = defaultMaxConns
	}

	logger := log.WithComponent("catalog")

	db, err := sql.Open("postgres", opts.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxOpenConns / 5)
	db.SetConnMaxLifetime(5 * time.Minute)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = connectTimeout

	ping := func() error { return db.PingContext(ctx) }
	notify := func(err error, wait time.Duration) {
		logger.Warn().Err(err).Dur("retry_in", wait).Msg("catalog database not ready")
	}

	if err := backoff.RetryNotify(ping, backoff.WithContext(bo, ctx), notify); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to catalog database: %w", err)
	}

	sizeCache, err := lru.New[string, *types.ComputedSize](sizeCacheEntries)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create size cache: %w", err)
	}

	return &Store{
		db:             db,
		logger:         logger,
		rollupMaxDepth: opts.RollupMaxDepth,
		sizeTTL:        opts.SizeCacheTTL,
		sizeCache:      sizeCache,
	}, nil
}

// Close releases the database connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// EnsureSchema applies the catalog DDL. It is idempotent and safe to run on
// every engine start.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply catalog schema: %w", err)
	}
	return nil
}

// withTx runs fn inside a transaction, rolling back on error
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			s.logger.Error().Err(rbErr).Msg("transaction rollback failed")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
