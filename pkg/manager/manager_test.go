package manager

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dmcp718/tc-manager-sub000/pkg/config"
	"github.com/dmcp718/tc-manager-sub000/pkg/events"
	"github.com/dmcp718/tc-manager-sub000/pkg/types"
)

func policyManager(roots ...string) *Manager {
	cfg := config.DefaultConfig()
	cfg.RootPath = "/mnt/teamspace"
	cfg.AllowedRoots = roots
	return &Manager{cfg: cfg}
}

func TestResolvePathAllowList(t *testing.T) {
	m := policyManager("/mnt/teamspace", "/mnt/scratch")

	got, err := m.resolvePath("/mnt/teamspace/projects/alpha")
	require.NoError(t, err)
	assert.Equal(t, "/mnt/teamspace/projects/alpha", got)

	// Relative paths resolve against the mount root
	got, err = m.resolvePath("projects/beta/frame.exr")
	require.NoError(t, err)
	assert.Equal(t, "/mnt/teamspace/projects/beta/frame.exr", got)

	// An allowed root itself is allowed
	got, err = m.resolvePath("/mnt/scratch")
	require.NoError(t, err)
	assert.Equal(t, "/mnt/scratch", got)

	// Traversal is cleaned before the check
	_, err = m.resolvePath("/mnt/teamspace/../etc/passwd")
	assert.ErrorIs(t, err, types.ErrPathDenied)

	_, err = m.resolvePath("/mnt/other/file.bin")
	assert.ErrorIs(t, err, types.ErrPathDenied)

	// A sibling sharing the root as a string prefix is still outside
	_, err = m.resolvePath("/mnt/teamspace-archive/file.bin")
	assert.ErrorIs(t, err, types.ErrPathDenied)

	_, err = m.resolvePath("")
	assert.ErrorIs(t, err, types.ErrPathDenied)
}

func TestResolvePathsRejectsWholeSelection(t *testing.T) {
	m := policyManager("/mnt/teamspace")

	resolved, err := m.resolvePaths([]string{"a.bin", "/mnt/teamspace/b.bin"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/mnt/teamspace/a.bin", "/mnt/teamspace/b.bin"}, resolved)

	_, err = m.resolvePaths([]string{"/mnt/teamspace/ok.bin", "/etc/passwd"})
	assert.ErrorIs(t, err, types.ErrPathDenied)

	resolved, err = m.resolvePaths(nil)
	require.NoError(t, err)
	assert.Nil(t, resolved)
}

// Engine tests run against a real PostgreSQL: either the instance named
// by TC_TEST_DATABASE_URL or a throwaway testcontainers instance. Without
// either, they skip.
var (
	dbOnce sync.Once
	dbURL  string
	dbErr  error
)

func testDatabaseURL(t *testing.T) string {
	t.Helper()
	dbOnce.Do(func() {
		dbURL = os.Getenv("TC_TEST_DATABASE_URL")
		if dbURL != "" {
			return
		}
		ctx := context.Background()
		ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
			tcpostgres.WithDatabase("teamcache_test"),
			tcpostgres.WithUsername("teamcache"),
			tcpostgres.WithPassword("teamcache"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(90*time.Second)))
		if err != nil {
			dbErr = err
			return
		}
		dbURL, dbErr = ctr.ConnectionString(ctx, "sslmode=disable")
	})
	if dbErr != nil {
		t.Skipf("engine tests need PostgreSQL (set TC_TEST_DATABASE_URL or run Docker): %v", dbErr)
	}
	return dbURL
}

func resetDatabase(t *testing.T, url string) {
	t.Helper()
	db, err := sql.Open("postgres", url)
	require.NoError(t, err)
	defer db.Close()
	// Tables may not exist yet on a fresh instance; New ensures the schema
	_, _ = db.Exec(`
		TRUNCATE entries, index_sessions, cache_jobs, cache_job_items,
			cache_profiles, workers
		RESTART IDENTITY CASCADE`)
}

func engineConfig(root, url string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.RootPath = root
	cfg.DatabaseURL = url
	cfg.PollIntervalDefaultMS = 100
	cfg.ShutdownTimeoutMS = 5000
	return cfg
}

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func waitForEvent(t *testing.T, sub events.Subscriber, kind events.Kind) events.Event {
	t.Helper()
	deadline := time.After(15 * time.Second)
	for {
		select {
		case ev := <-sub:
			if ev.Kind() == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", kind)
			return nil
		}
	}
}

func TestEngineIndexThenWarmEndToEnd(t *testing.T) {
	url := testDatabaseURL(t)
	resetDatabase(t, url)

	root := t.TempDir()
	dir := filepath.Join(root, "projects", "alpha")
	for i := 0; i < 5; i++ {
		writeFile(t, filepath.Join(dir, fmt.Sprintf("frame-%02d.bin", i)), 256)
	}

	ctx := context.Background()
	mgr, err := New(ctx, engineConfig(root, url))
	require.NoError(t, err)
	require.NoError(t, mgr.Start())
	t.Cleanup(func() { _ = mgr.Shutdown(context.Background()) })

	sub := mgr.Subscribe()
	t.Cleanup(func() { mgr.Unsubscribe(sub) })

	sessID, err := mgr.StartIndex(ctx, root)
	require.NoError(t, err)

	ev := waitForEvent(t, sub, events.KindIndexComplete)
	idx := ev.(*events.IndexComplete)
	assert.Equal(t, sessID, idx.SessionID)
	assert.Equal(t, int64(7), idx.ProcessedFiles, "two directories and five files")
	assert.False(t, idx.Stopped)

	sess, err := mgr.IndexStatus(ctx)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, sessID, sess.ID)
	assert.Equal(t, types.IndexStatusCompleted, sess.Status)

	children, err := mgr.ListChildren(ctx, filepath.Join(root, "projects"))
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "alpha", children[0].Name)
	assert.True(t, children[0].IsDirectory)

	job, err := mgr.CreateCacheJob(ctx, nil, []string{dir}, "")
	require.NoError(t, err)
	assert.Equal(t, int64(5), job.TotalFiles)
	assert.Equal(t, "general", job.ProfileID)

	ev = waitForEvent(t, sub, events.KindJobCompleted)
	completed := ev.(*events.JobCompleted)
	assert.Equal(t, job.ID, completed.JobID)
	assert.Equal(t, int64(5), completed.CompletedFiles)
	assert.Equal(t, int64(5*256), completed.CompletedSizeBytes)

	// Every item was marked cached before the job finalized, so the
	// directory verdict is already deterministic.
	stats, _, err := mgr.ValidateDirectoryCache(ctx, dir)
	require.NoError(t, err)
	assert.True(t, stats.ShouldBeCached)
	assert.Equal(t, int64(5), stats.TotalFiles)
	assert.Equal(t, int64(5), stats.CachedFiles)

	cs, err := mgr.DirectorySize(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, int64(5*256), cs.SizeBytes)
	assert.Equal(t, int64(5), cs.FileCount)

	got, items, err := mgr.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusCompleted, got.Status)
	require.Len(t, items, 5)
	for _, item := range items {
		assert.Equal(t, types.ItemStatusCompleted, item.Status)
		assert.Equal(t, int64(256), item.FileSizeBytes)
	}

	profiles, err := mgr.ListProfiles(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, profiles)
	assert.Equal(t, "general", profiles[0].Name)

	n, err := mgr.ClearCompleted(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	jobs, err := mgr.ListJobs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

// One-shot callers construct the engine, run a single operation and shut
// down without ever starting background processing.
func TestEngineOneShotJobControls(t *testing.T) {
	url := testDatabaseURL(t)
	resetDatabase(t, url)

	root := t.TempDir()
	p := filepath.Join(root, "data.bin")
	writeFile(t, p, 64)

	ctx := context.Background()
	mgr, err := New(ctx, engineConfig(root, url))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Shutdown(context.Background()) })

	job, err := mgr.CreateCacheJob(ctx, []string{p}, nil, "")
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusPending, job.Status)

	// No workers are running, so the job stays exactly where it is
	require.NoError(t, mgr.StartJob(ctx, job.ID))
	assert.ErrorIs(t, mgr.PauseJob(ctx, job.ID), types.ErrInvalidTransition)

	require.NoError(t, mgr.CancelJob(ctx, job.ID))
	got, _, err := mgr.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusCancelled, got.Status)
	assert.ErrorIs(t, mgr.StartJob(ctx, job.ID), types.ErrInvalidTransition)

	_, err = mgr.CreateCacheJob(ctx, nil, nil, "")
	assert.ErrorIs(t, err, types.ErrNoWork)

	_, err = mgr.CreateCacheJob(ctx, []string{"/etc/passwd"}, nil, "")
	assert.ErrorIs(t, err, types.ErrPathDenied)

	_, err = mgr.StartIndex(ctx, "/somewhere/else")
	assert.ErrorIs(t, err, types.ErrPathDenied)
}
