package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dmcp718/tc-manager-sub000/pkg/catalog"
	"github.com/dmcp718/tc-manager-sub000/pkg/types"
)

type fakeStats struct {
	entries *catalog.EntryStats
	jobs    map[types.JobStatus]int64
	sess    *types.IndexSession
	pingErr error
}

func (f *fakeStats) Ping(context.Context) error {
	return f.pingErr
}

func (f *fakeStats) CountEntries(context.Context) (*catalog.EntryStats, error) {
	return f.entries, nil
}

func (f *fakeStats) CountJobsByStatus(context.Context) (map[types.JobStatus]int64, error) {
	return f.jobs, nil
}

func (f *fakeStats) ActiveSession(context.Context) (*types.IndexSession, error) {
	return f.sess, nil
}

type fakePool struct{ n int }

func (f fakePool) WorkerCount() int { return f.n }

func TestCollectorGaugesState(t *testing.T) {
	fs := &fakeStats{
		entries: &catalog.EntryStats{Total: 10, Cached: 4, Directories: 3},
		jobs: map[types.JobStatus]int64{
			types.JobStatusRunning:   2,
			types.JobStatusCompleted: 5,
		},
		sess: &types.IndexSession{ID: "s1", Status: types.IndexStatusRunning, ProcessedFiles: 1234},
	}
	c := NewCollector(fs, fakePool{n: 3})

	c.collect()

	if got := testutil.ToFloat64(EntriesTotal); got != 10 {
		t.Errorf("EntriesTotal = %v, want 10", got)
	}
	if got := testutil.ToFloat64(EntriesCached); got != 4 {
		t.Errorf("EntriesCached = %v, want 4", got)
	}
	if got := testutil.ToFloat64(JobsTotal.WithLabelValues("running")); got != 2 {
		t.Errorf("JobsTotal{running} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(JobsTotal.WithLabelValues("completed")); got != 5 {
		t.Errorf("JobsTotal{completed} = %v, want 5", got)
	}
	if got := testutil.ToFloat64(JobsTotal.WithLabelValues("pending")); got != 0 {
		t.Errorf("JobsTotal{pending} = %v, want 0", got)
	}
	if got := testutil.ToFloat64(WorkersLive); got != 3 {
		t.Errorf("WorkersLive = %v, want 3", got)
	}
	if got := testutil.ToFloat64(IndexProcessedFiles); got != 1234 {
		t.Errorf("IndexProcessedFiles = %v, want 1234", got)
	}

	// Gauges track state, so a finished session and drained jobs reset
	fs.sess = nil
	fs.jobs = map[types.JobStatus]int64{}
	c.collect()

	if got := testutil.ToFloat64(IndexProcessedFiles); got != 0 {
		t.Errorf("IndexProcessedFiles after idle = %v, want 0", got)
	}
	if got := testutil.ToFloat64(JobsTotal.WithLabelValues("running")); got != 0 {
		t.Errorf("JobsTotal{running} after drain = %v, want 0", got)
	}
}

func TestCollectorTracksCatalogHealth(t *testing.T) {
	resetHealth()

	fs := &fakeStats{entries: &catalog.EntryStats{}}
	c := NewCollector(fs, fakePool{n: 1})

	c.collect()
	if got := GetHealth().Components["catalog"]; got != "healthy" {
		t.Errorf("catalog health = %q, want healthy", got)
	}

	fs.pingErr = errors.New("connection refused")
	c.collect()
	if got := GetHealth().Components["catalog"]; got == "healthy" {
		t.Error("catalog health still healthy after ping failure")
	}

	fs.pingErr = nil
	c.collect()
	if got := GetHealth().Components["catalog"]; got != "healthy" {
		t.Errorf("catalog health = %q, want healthy after recovery", got)
	}
}
