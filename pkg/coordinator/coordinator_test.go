package coordinator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmcp718/tc-manager-sub000/pkg/events"
	"github.com/dmcp718/tc-manager-sub000/pkg/types"
)

type fakeCatalog struct {
	mu         sync.Mutex
	profiles   []*types.Profile
	jobs       map[string]*types.Job
	expansions map[string][]*types.Entry
	requeued   []string
	cleared    int64
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		jobs:       make(map[string]*types.Job),
		expansions: make(map[string][]*types.Entry),
		profiles: []*types.Profile{
			{ID: "prof-general", Name: "general", IsDefault: true, WorkerCount: 4, MaxConcurrentFiles: 5, PollInterval: 2 * time.Second},
			{ID: "prof-img", Name: "image-sequences", Priority: 10, WorkerCount: 8, MaxConcurrentFiles: 10, PollInterval: 500 * time.Millisecond},
			{ID: "prof-vid", Name: "large-videos", Priority: 20, WorkerCount: 2, MaxConcurrentFiles: 2, PollInterval: 3 * time.Second},
		},
	}
}

func (f *fakeCatalog) FindFilesRecursively(_ context.Context, dirPath string) ([]*types.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.expansions[dirPath], nil
}

func (f *fakeCatalog) GetProfile(_ context.Context, id string) (*types.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.profiles {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, types.ErrProfileNotFound
}

func (f *fakeCatalog) GetProfileByName(_ context.Context, name string) (*types.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, types.ErrProfileNotFound
}

func (f *fakeCatalog) DefaultProfile(_ context.Context) (*types.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.profiles {
		if p.IsDefault {
			return p, nil
		}
	}
	return nil, types.ErrProfileNotFound
}

func (f *fakeCatalog) CreateJobWithItems(_ context.Context, job *types.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *job
	f.jobs[job.ID] = &cp
	return nil
}

func (f *fakeCatalog) GetJob(_ context.Context, id string) (*types.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if j, ok := f.jobs[id]; ok {
		cp := *j
		return &cp, nil
	}
	return nil, types.ErrJobNotFound
}

func (f *fakeCatalog) TransitionJob(_ context.Context, jobID string, from []types.JobStatus, to types.JobStatus) (*types.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok {
		return nil, types.ErrJobNotFound
	}
	for _, s := range from {
		if j.Status == s {
			j.Status = to
			cp := *j
			return &cp, nil
		}
	}
	return nil, types.ErrInvalidTransition
}

func (f *fakeCatalog) RequeueJobItems(_ context.Context, jobID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requeued = append(f.requeued, jobID)
	return 2, nil
}

func (f *fakeCatalog) ClearCompleted(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cleared, nil
}

func (f *fakeCatalog) addJob(id string, status types.JobStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[id] = &types.Job{ID: id, Status: status, TotalFiles: 4, CompletedFiles: 1}
}

func (f *fakeCatalog) jobStatus(id string) types.JobStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobs[id].Status
}

type poolShape struct {
	workers, files int
	poll           time.Duration
}

type fakePool struct {
	mu    sync.Mutex
	calls []poolShape
}

func (f *fakePool) Reconfigure(workers, files int, poll time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, poolShape{workers, files, poll})
}

func (f *fakePool) last(t *testing.T) poolShape {
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls)
	return f.calls[len(f.calls)-1]
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
	deadline := time.After(5 * time.Second)
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

func newCoordinator(t *testing.T, fc *fakeCatalog, opts Options) (*Coordinator, *fakePool, events.Subscriber) {
	t.Helper()
	pool := &fakePool{}
	broker, sub := newTestBroker(t)
	return New(fc, pool, broker, opts), pool, sub
}

func sequencePaths(n int) []string {
	paths := make([]string, n)
	for i := range paths {
		paths[i] = fmt.Sprintf("/m/shots/sh010/frame_%04d.exr", i)
	}
	return paths
}

func TestCreateJobClassifiesAndReshapesPool(t *testing.T) {
	fc := newFakeCatalog()
	c, pool, sub := newCoordinator(t, fc, Options{})

	job, err := c.CreateJob(context.Background(), sequencePaths(150), nil, "")
	require.NoError(t, err)
	assert.Equal(t, "prof-img", job.ProfileID)
	assert.Equal(t, int64(150), job.TotalFiles)
	assert.Equal(t, types.JobStatusPending, job.Status)
	assert.NotEmpty(t, job.ID)

	assert.Equal(t, poolShape{8, 10, 500 * time.Millisecond}, pool.last(t))

	ev := waitForEvent(t, sub, events.KindJobCreated).(*events.JobCreated)
	assert.Equal(t, job.ID, ev.JobID)
	assert.Equal(t, "image-sequences", ev.ProfileName)
	assert.Equal(t, int64(150), ev.TotalFiles)

	persisted, err := fc.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), persisted.TotalFiles)
}

func TestCreateJobExpandsDirectories(t *testing.T) {
	fc := newFakeCatalog()
	fc.expansions["/m/proj"] = []*types.Entry{
		{Path: "/m/proj/a.bin"},
		{Path: "/m/proj/sub/b.bin"},
		{Path: "/m/proj/sub/c.bin"},
	}
	c, _, _ := newCoordinator(t, fc, Options{})

	job, err := c.CreateJob(context.Background(), nil, []string{"/m/proj"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"/m/proj/a.bin", "/m/proj/sub/b.bin", "/m/proj/sub/c.bin"}, job.FilePaths)
	assert.Equal(t, []string{"/m/proj"}, job.DirectoryPaths)
	assert.Equal(t, int64(3), job.TotalFiles)
}

func TestCreateJobKeepsExplicitFilesOverDirectories(t *testing.T) {
	fc := newFakeCatalog()
	fc.expansions["/m/proj"] = []*types.Entry{{Path: "/m/proj/x.bin"}}
	c, _, _ := newCoordinator(t, fc, Options{})

	job, err := c.CreateJob(context.Background(), []string{"/m/a.bin"}, []string{"/m/proj"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"/m/a.bin"}, job.FilePaths, "explicit files suppress expansion")
	assert.Equal(t, []string{"/m/proj"}, job.DirectoryPaths)
}

func TestCreateJobNoWork(t *testing.T) {
	fc := newFakeCatalog()
	c, _, _ := newCoordinator(t, fc, Options{})

	_, err := c.CreateJob(context.Background(), nil, nil, "")
	assert.ErrorIs(t, err, types.ErrNoWork)

	_, err = c.CreateJob(context.Background(), nil, []string{"/m/empty"}, "")
	assert.ErrorIs(t, err, types.ErrNoWork, "empty expansion yields no work")
}

func TestCreateJobProfileResolution(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		wantID  string
		wantErr error
	}{
		{name: "explicit id", ref: "prof-vid", wantID: "prof-vid"},
		{name: "explicit name", ref: "large-videos", wantID: "prof-vid"},
		{name: "unknown ref", ref: "bogus", wantErr: types.ErrProfileNotFound},
		{name: "classifier resolves by name", ref: "", wantID: "prof-general"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := newFakeCatalog()
			c, _, _ := newCoordinator(t, fc, Options{})

			// A small plain path set classifies as general
			job, err := c.CreateJob(context.Background(), []string{"/m/report.dat"}, nil, tt.ref)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, job.ProfileID)
		})
	}
}

func TestCreateJobFallsBackToDefaultProfile(t *testing.T) {
	fc := newFakeCatalog()
	// A deployment that renamed the seeded rows but kept a default
	fc.profiles = []*types.Profile{
		{ID: "prof-x", Name: "standard", IsDefault: true, WorkerCount: 3, MaxConcurrentFiles: 6, PollInterval: time.Second},
	}
	c, pool, _ := newCoordinator(t, fc, Options{})

	job, err := c.CreateJob(context.Background(), []string{"/m/report.dat"}, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "prof-x", job.ProfileID)
	assert.Equal(t, poolShape{3, 6, time.Second}, pool.last(t))
}

func TestPauseResumeCancel(t *testing.T) {
	fc := newFakeCatalog()
	fc.addJob("job-1", types.JobStatusRunning)
	c, _, sub := newCoordinator(t, fc, Options{})

	require.NoError(t, c.PauseJob(context.Background(), "job-1"))
	assert.Equal(t, types.JobStatusPaused, fc.jobStatus("job-1"))
	ev := waitForEvent(t, sub, events.KindJobProgress).(*events.JobProgress)
	assert.Equal(t, "job-1", ev.JobID)
	assert.Equal(t, int64(1), ev.CompletedFiles)
	assert.Empty(t, fc.requeued, "requeue is off by default")

	require.NoError(t, c.ResumeJob(context.Background(), "job-1"))
	assert.Equal(t, types.JobStatusPending, fc.jobStatus("job-1"), "resume re-queues through pending, not running")

	// Pending jobs pause only after a worker starts them
	assert.ErrorIs(t, c.PauseJob(context.Background(), "job-1"), types.ErrInvalidTransition)

	require.NoError(t, c.CancelJob(context.Background(), "job-1"))
	assert.Equal(t, types.JobStatusCancelled, fc.jobStatus("job-1"))
	assert.ErrorIs(t, c.CancelJob(context.Background(), "job-1"), types.ErrInvalidTransition)
}

func TestPauseRequeuesWhenConfigured(t *testing.T) {
	fc := newFakeCatalog()
	fc.addJob("job-2", types.JobStatusRunning)
	c, _, _ := newCoordinator(t, fc, Options{RequeueOnPause: true})

	require.NoError(t, c.PauseJob(context.Background(), "job-2"))
	assert.Equal(t, []string{"job-2"}, fc.requeued)
}

func TestStartJob(t *testing.T) {
	fc := newFakeCatalog()
	fc.addJob("job-3", types.JobStatusPending)
	c, _, _ := newCoordinator(t, fc, Options{})

	assert.NoError(t, c.StartJob(context.Background(), "job-3"))
	assert.Equal(t, types.JobStatusPending, fc.jobStatus("job-3"), "no state change, workers claim on poll")

	fc.addJob("job-4", types.JobStatusRunning)
	assert.ErrorIs(t, c.StartJob(context.Background(), "job-4"), types.ErrInvalidTransition)
	assert.ErrorIs(t, c.StartJob(context.Background(), "nope"), types.ErrJobNotFound)
}

func TestCancelFromPendingAndPaused(t *testing.T) {
	fc := newFakeCatalog()
	fc.addJob("p", types.JobStatusPending)
	fc.addJob("z", types.JobStatusPaused)
	c, _, _ := newCoordinator(t, fc, Options{})

	assert.NoError(t, c.CancelJob(context.Background(), "p"))
	assert.NoError(t, c.CancelJob(context.Background(), "z"))
	assert.Equal(t, types.JobStatusCancelled, fc.jobStatus("p"))
	assert.Equal(t, types.JobStatusCancelled, fc.jobStatus("z"))
}

func TestClearCompleted(t *testing.T) {
	fc := newFakeCatalog()
	fc.cleared = 3
	c, _, _ := newCoordinator(t, fc, Options{})

	n, err := c.ClearCompleted(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
