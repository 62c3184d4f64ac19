package worker

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmcp718/tc-manager-sub000/pkg/events"
	"github.com/dmcp718/tc-manager-sub000/pkg/types"
)

type fakeCatalog struct {
	mu          sync.Mutex
	jobs        []*types.Job
	items       map[string][]*types.JobItem
	cached      map[string]string // path -> job id
	rollups     []string
	heartbeats  map[string]int
	removed     map[string]bool
	completions map[int64]int
	nextItemID  int64
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		items:       make(map[string][]*types.JobItem),
		cached:      make(map[string]string),
		heartbeats:  make(map[string]int),
		removed:     make(map[string]bool),
		completions: make(map[int64]int),
	}
}

func (f *fakeCatalog) addJob(id string, paths []string, dirs []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, &types.Job{
		ID:             id,
		FilePaths:      paths,
		DirectoryPaths: dirs,
		ProfileID:      "general",
		TotalFiles:     int64(len(paths)),
		Status:         types.JobStatusPending,
		CreatedAt:      time.Now(),
	})
	for _, p := range paths {
		f.nextItemID++
		f.items[id] = append(f.items[id], &types.JobItem{
			ID:       f.nextItemID,
			JobID:    id,
			FilePath: p,
			Status:   types.ItemStatusPending,
		})
	}
}

func (f *fakeCatalog) job(id string) *types.Job {
	for _, j := range f.jobs {
		if j.ID == id {
			return j
		}
	}
	return nil
}

func (f *fakeCatalog) jobCopy(id string) types.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.job(id)
}

func (f *fakeCatalog) ListClaimableJobs(context.Context) ([]*types.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Job
	for _, j := range f.jobs {
		if j.Status.Claimable() {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeCatalog) GetJob(_ context.Context, id string) (*types.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if j := f.job(id); j != nil {
		cp := *j
		return &cp, nil
	}
	return nil, types.ErrJobNotFound
}

func (f *fakeCatalog) ClaimPendingItems(_ context.Context, jobID, workerID string, limit int) ([]*types.JobItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := f.job(jobID)
	if j == nil || !j.Status.Claimable() {
		return nil, nil
	}
	var claimed []*types.JobItem
	for _, item := range f.items[jobID] {
		if len(claimed) == limit {
			break
		}
		if item.Status == types.ItemStatusPending {
			item.Status = types.ItemStatusRunning
			item.WorkerID = workerID
			cp := *item
			claimed = append(claimed, &cp)
		}
	}
	return claimed, nil
}

func (f *fakeCatalog) MarkJobRunning(_ context.Context, jobID, workerID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := f.job(jobID)
	if j == nil || j.Status != types.JobStatusPending {
		return false, nil
	}
	j.Status = types.JobStatusRunning
	j.WorkerID = workerID
	return true, nil
}

func (f *fakeCatalog) CompleteItem(_ context.Context, jobID string, itemID int64, outcome types.ItemOutcome, sizeBytes int64, errorMessage string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range f.items[jobID] {
		if item.ID != itemID {
			continue
		}
		if item.Status != types.ItemStatusRunning {
			return false, nil
		}
		item.Status = types.ItemStatus(outcome)
		item.FileSizeBytes = sizeBytes
		item.ErrorMessage = errorMessage
		f.completions[itemID]++
		j := f.job(jobID)
		if outcome == types.ItemOutcomeCompleted {
			j.CompletedFiles++
			j.CompletedSizeBytes += sizeBytes
		} else {
			j.FailedFiles++
		}
		return true, nil
	}
	return false, nil
}

func (f *fakeCatalog) FinalizeJobIfDone(_ context.Context, jobID string) (*types.Job, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := f.job(jobID)
	if j == nil || (j.Status != types.JobStatusPending && j.Status != types.JobStatusRunning) {
		return nil, false, nil
	}
	for _, item := range f.items[jobID] {
		if item.Status == types.ItemStatusPending || item.Status == types.ItemStatusRunning {
			return nil, false, nil
		}
	}
	if j.FailedFiles == 0 {
		j.Status = types.JobStatusCompleted
	} else {
		j.Status = types.JobStatusFailed
	}
	cp := *j
	return &cp, true, nil
}

func (f *fakeCatalog) MarkEntryCached(_ context.Context, path string, _ int64, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cached[path] = jobID
	return nil
}

func (f *fakeCatalog) UpdateDirectoryCacheIfValid(_ context.Context, dirPath string) (*types.RollupStats, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rollups = append(f.rollups, dirPath)
	return &types.RollupStats{}, false, nil
}

func (f *fakeCatalog) UpsertWorkerHeartbeat(_ context.Context, workerID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats[workerID]++
	return nil
}

func (f *fakeCatalog) RemoveWorker(_ context.Context, workerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed[workerID] = true
	return nil
}

func newTestBroker(t *testing.T) (*events.Broker, events.Subscriber) {
	t.Helper()
	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)
	return broker, broker.Subscribe()
}

func waitForEvent(t *testing.T, sub events.Subscriber, kind events.Kind) events.Event {
	t.Helper()
	deadline := time.After(10 * time.Second)
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

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func startPool(t *testing.T, fc *fakeCatalog, broker *events.Broker, workers, perWorker int) *Pool {
	t.Helper()
	pool := NewPool(fc, broker, Options{
		WorkerCount:    workers,
		PerWorkerFiles: perWorker,
		PollInterval:   10 * time.Millisecond,
		ReadTimeout:    2 * time.Second,
	})
	require.NoError(t, pool.Start())
	t.Cleanup(func() { _ = pool.Stop(2 * time.Second) })
	return pool
}

func TestPoolWarmsJobToCompletion(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bin")
	b := filepath.Join(dir, "b.bin")
	writeFile(t, a, 10)
	writeFile(t, b, 20)

	fc := newFakeCatalog()
	fc.addJob("job-1", []string{a, b}, []string{dir})
	broker, sub := newTestBroker(t)
	startPool(t, fc, broker, 2, 5)

	waitForEvent(t, sub, events.KindJobStarted)
	ev := waitForEvent(t, sub, events.KindJobCompleted)
	completed := ev.(*events.JobCompleted)
	assert.Equal(t, "job-1", completed.JobID)
	assert.Equal(t, int64(2), completed.CompletedFiles)
	assert.Equal(t, int64(30), completed.CompletedSizeBytes)

	job := fc.jobCopy("job-1")
	assert.Equal(t, types.JobStatusCompleted, job.Status)
	assert.Equal(t, int64(2), job.CompletedFiles)
	assert.Equal(t, int64(0), job.FailedFiles)
	assert.Equal(t, int64(30), job.CompletedSizeBytes)

	fc.mu.Lock()
	defer fc.mu.Unlock()
	assert.Equal(t, "job-1", fc.cached[a])
	assert.Equal(t, "job-1", fc.cached[b])
	assert.Contains(t, fc.rollups, dir, "directory selection is rolled up after finalize")
}

func TestPoolPartitionsItemsAcrossWorkers(t *testing.T) {
	dir := t.TempDir()
	paths := make([]string, 10)
	for i := range paths {
		paths[i] = filepath.Join(dir, "f"+string(rune('0'+i))+".bin")
		writeFile(t, paths[i], 64)
	}

	fc := newFakeCatalog()
	fc.addJob("job-2", paths, nil)
	broker, sub := newTestBroker(t)
	startPool(t, fc, broker, 3, 2)

	waitForEvent(t, sub, events.KindJobCompleted)

	job := fc.jobCopy("job-2")
	assert.Equal(t, int64(10), job.CompletedFiles)
	assert.Equal(t, int64(640), job.CompletedSizeBytes)

	fc.mu.Lock()
	defer fc.mu.Unlock()
	for id, n := range fc.completions {
		assert.Equal(t, 1, n, "item %d settled more than once", id)
	}
	assert.Len(t, fc.completions, 10)
}

func TestPoolRecordsReadFailures(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.bin")
	writeFile(t, good, 32)
	missing := filepath.Join(dir, "missing.bin")

	fc := newFakeCatalog()
	fc.addJob("job-3", []string{good, missing}, nil)
	broker, sub := newTestBroker(t)
	startPool(t, fc, broker, 1, 5)

	ev := waitForEvent(t, sub, events.KindJobFailed)
	failed := ev.(*events.JobFailed)
	assert.Equal(t, int64(1), failed.CompletedFiles)
	assert.Equal(t, int64(1), failed.FailedFiles)

	job := fc.jobCopy("job-3")
	assert.Equal(t, types.JobStatusFailed, job.Status)

	fc.mu.Lock()
	defer fc.mu.Unlock()
	assert.Equal(t, "job-3", fc.cached[good])
	_, cachedMissing := fc.cached[missing]
	assert.False(t, cachedMissing)
	for _, item := range fc.items["job-3"] {
		if item.FilePath == missing {
			assert.Equal(t, types.ItemStatusFailed, item.Status)
			assert.NotEmpty(t, item.ErrorMessage)
		}
	}
}

func TestPoolFinalizesResumedJobWithNothingLeft(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.bin")
	writeFile(t, p, 8)

	// The job's only item settled while it was paused; resume put it back
	// to pending with nothing left to claim.
	fc := newFakeCatalog()
	fc.addJob("job-5", []string{p}, nil)
	fc.mu.Lock()
	fc.items["job-5"][0].Status = types.ItemStatusCompleted
	fc.job("job-5").CompletedFiles = 1
	fc.job("job-5").CompletedSizeBytes = 8
	fc.mu.Unlock()

	broker, sub := newTestBroker(t)
	startPool(t, fc, broker, 1, 5)

	ev := waitForEvent(t, sub, events.KindJobCompleted)
	completed := ev.(*events.JobCompleted)
	assert.Equal(t, "job-5", completed.JobID)
	assert.Equal(t, int64(1), completed.CompletedFiles)

	job := fc.jobCopy("job-5")
	assert.Equal(t, types.JobStatusCompleted, job.Status)
}

func TestPoolIgnoresPausedJobs(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.bin")
	writeFile(t, p, 8)

	fc := newFakeCatalog()
	fc.addJob("job-4", []string{p}, nil)
	fc.mu.Lock()
	fc.job("job-4").Status = types.JobStatusPaused
	fc.mu.Unlock()

	broker, _ := newTestBroker(t)
	startPool(t, fc, broker, 1, 5)

	// Give the pool a few poll cycles; nothing may be claimed
	time.Sleep(100 * time.Millisecond)
	fc.mu.Lock()
	defer fc.mu.Unlock()
	for _, item := range fc.items["job-4"] {
		assert.Equal(t, types.ItemStatusPending, item.Status)
	}
}

func TestPoolReconfigure(t *testing.T) {
	fc := newFakeCatalog()
	broker, _ := newTestBroker(t)
	pool := startPool(t, fc, broker, 1, 5)

	pool.Reconfigure(3, 10, 15*time.Millisecond)
	assert.Equal(t, 3, pool.WorkerCount())
	assert.Equal(t, 10, pool.perWorkerFiles())
	assert.Equal(t, 15*time.Millisecond, pool.pollInterval())

	pool.Reconfigure(1, 0, 0)
	assert.Equal(t, 1, pool.WorkerCount())
	assert.Equal(t, 10, pool.perWorkerFiles(), "zero leaves concurrency unchanged")

	// Retired workers drop their leases once their cycle ends
	require.Eventually(t, func() bool {
		fc.mu.Lock()
		defer fc.mu.Unlock()
		return len(fc.removed) >= 2
	}, 5*time.Second, 10*time.Millisecond)
}

func TestPoolStartStopLifecycle(t *testing.T) {
	fc := newFakeCatalog()
	broker, _ := newTestBroker(t)
	pool := NewPool(fc, broker, Options{WorkerCount: 2, PollInterval: 10 * time.Millisecond})

	assert.ErrorIs(t, pool.Stop(time.Second), types.ErrNotRunning)
	require.NoError(t, pool.Start())
	assert.ErrorIs(t, pool.Start(), types.ErrAlreadyRunning)
	require.NoError(t, pool.Stop(2*time.Second))
	assert.ErrorIs(t, pool.Stop(time.Second), types.ErrNotRunning)

	// Workers drop their leases on clean exit
	fc.mu.Lock()
	defer fc.mu.Unlock()
	assert.Len(t, fc.removed, 2)
}
