package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dmcp718/tc-manager-sub000/pkg/events"
	"github.com/dmcp718/tc-manager-sub000/pkg/log"
	"github.com/dmcp718/tc-manager-sub000/pkg/profile"
	"github.com/dmcp718/tc-manager-sub000/pkg/types"
)

// Catalog is the slice of the catalog store the coordinator drives
type Catalog interface {
	FindFilesRecursively(ctx context.Context, dirPath string) ([]*types.Entry, error)
	GetProfile(ctx context.Context, id string) (*types.Profile, error)
	GetProfileByName(ctx context.Context, name string) (*types.Profile, error)
	DefaultProfile(ctx context.Context) (*types.Profile, error)
	CreateJobWithItems(ctx context.Context, job *types.Job) error
	GetJob(ctx context.Context, id string) (*types.Job, error)
	TransitionJob(ctx context.Context, jobID string, from []types.JobStatus, to types.JobStatus) (*types.Job, error)
	RequeueJobItems(ctx context.Context, jobID string) (int64, error)
	ClearCompleted(ctx context.Context) (int64, error)
}

// Pool is the worker pool surface the coordinator reshapes per profile
type Pool interface {
	Reconfigure(workerCount, perWorkerFiles int, poll time.Duration)
}

// Options configures coordinator behavior
type Options struct {
	// RequeueOnPause returns a paused job's running items to pending so
	// no further read work happens for it. In-flight workers finish
	// their current read and drop the result. Default false: claimed
	// items run to completion and only unclaimed work waits.
	RequeueOnPause bool

	// SelectorBudget caps profile classification time. Zero selects the
	// selector's default.
	SelectorBudget time.Duration
}

// Coordinator owns the job lifecycle: creation with profile resolution,
// pause/resume/cancel transitions, and terminal-job cleanup. It never
// touches items directly except to re-queue on pause; the worker pool
// owns item execution.
type Coordinator struct {
	store          Catalog
	pool           Pool
	broker         *events.Broker
	selector       *profile.Selector
	requeueOnPause bool
	logger         zerolog.Logger
}

// New creates a coordinator
func New(store Catalog, pool Pool, broker *events.Broker, opts Options) *Coordinator {
	return &Coordinator{
		store:          store,
		pool:           pool,
		broker:         broker,
		selector:       profile.NewSelector(opts.SelectorBudget),
		requeueOnPause: opts.RequeueOnPause,
		logger:         log.WithComponent("coordinator"),
	}
}

// CreateJob persists a new pending job from the given selections.
// Directory selections expand to their recursive file contents when no
// explicit file paths are given. The resolved profile reshapes the
// worker pool after the job is persisted; a claim racing the reshape
// runs under the previous shape.
func (c *Coordinator) CreateJob(ctx context.Context, filePaths, dirPaths []string, profileRef string) (*types.Job, error) {
	files := append([]string(nil), filePaths...)
	if len(files) == 0 && len(dirPaths) > 0 {
		for _, dir := range dirPaths {
			entries, err := c.store.FindFilesRecursively(ctx, dir)
			if err != nil {
				return nil, fmt.Errorf("failed to expand directory %s: %w", dir, err)
			}
			for _, e := range entries {
				files = append(files, e.Path)
			}
		}
	}
	if len(files) == 0 {
		return nil, types.ErrNoWork
	}

	prof, err := c.resolveProfile(ctx, files, profileRef)
	if err != nil {
		return nil, err
	}

	job := &types.Job{
		ID:             uuid.New().String(),
		FilePaths:      files,
		DirectoryPaths: append([]string(nil), dirPaths...),
		ProfileID:      prof.ID,
		TotalFiles:     int64(len(files)),
		Status:         types.JobStatusPending,
	}
	if err := c.store.CreateJobWithItems(ctx, job); err != nil {
		return nil, err
	}

	c.pool.Reconfigure(prof.WorkerCount, prof.MaxConcurrentFiles, prof.PollInterval)

	c.logger.Info().
		Str("job_id", job.ID).
		Str("profile", prof.Name).
		Int64("total_files", job.TotalFiles).
		Int("directories", len(job.DirectoryPaths)).
		Msg("Job created")
	c.broker.Publish(&events.JobCreated{
		JobID:       job.ID,
		ProfileID:   prof.ID,
		ProfileName: prof.Name,
		TotalFiles:  job.TotalFiles,
	})
	return job, nil
}

// resolveProfile applies the precedence order: explicit ref by id, then
// by name, then classification of the path set, then the default row.
// An explicit ref that matches nothing is the caller's error; a
// classifier name that matches nothing falls through to the default.
func (c *Coordinator) resolveProfile(ctx context.Context, files []string, ref string) (*types.Profile, error) {
	if ref != "" {
		prof, err := c.store.GetProfile(ctx, ref)
		if err == nil {
			return prof, nil
		}
		if !errors.Is(err, types.ErrProfileNotFound) {
			return nil, err
		}
		return c.store.GetProfileByName(ctx, ref)
	}

	name := c.selector.Select(files)
	prof, err := c.store.GetProfileByName(ctx, name)
	if err == nil {
		return prof, nil
	}
	if !errors.Is(err, types.ErrProfileNotFound) {
		return nil, err
	}
	c.logger.Warn().Str("profile", name).Msg("Classified profile missing, using default")
	return c.store.DefaultProfile(ctx)
}

// StartJob acknowledges a pending job. Workers discover pending jobs on
// their own poll, so there is no state to change; the call exists to
// validate the id and surface the intent in the logs.
func (c *Coordinator) StartJob(ctx context.Context, id string) error {
	job, err := c.store.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job.Status != types.JobStatusPending {
		return types.ErrInvalidTransition
	}
	c.logger.Info().Str("job_id", id).Msg("Job queued, workers pick it up on next poll")
	return nil
}

// PauseJob moves a running job to paused. Workers refuse to claim from
// paused jobs; items already claimed either run to completion or, with
// RequeueOnPause, return to pending immediately.
func (c *Coordinator) PauseJob(ctx context.Context, id string) error {
	job, err := c.store.TransitionJob(ctx, id, []types.JobStatus{types.JobStatusRunning}, types.JobStatusPaused)
	if err != nil {
		return err
	}

	if c.requeueOnPause {
		n, err := c.store.RequeueJobItems(ctx, id)
		if err != nil {
			c.logger.Warn().Err(err).Str("job_id", id).Msg("Failed to re-queue claimed items")
		} else if n > 0 {
			c.logger.Info().Str("job_id", id).Int64("items", n).Msg("Returned claimed items to pending")
		}
	}

	c.logger.Info().Str("job_id", id).Msg("Job paused")
	c.publishSnapshot(job)
	return nil
}

// ResumeJob returns a paused job to pending so workers re-claim it
func (c *Coordinator) ResumeJob(ctx context.Context, id string) error {
	job, err := c.store.TransitionJob(ctx, id, []types.JobStatus{types.JobStatusPaused}, types.JobStatusPending)
	if err != nil {
		return err
	}
	c.logger.Info().Str("job_id", id).Msg("Job resumed")
	c.publishSnapshot(job)
	return nil
}

// CancelJob terminates a job from any non-terminal state. Items already
// running finish normally; their results still land in the counters.
func (c *Coordinator) CancelJob(ctx context.Context, id string) error {
	job, err := c.store.TransitionJob(ctx, id,
		[]types.JobStatus{types.JobStatusPending, types.JobStatusRunning, types.JobStatusPaused},
		types.JobStatusCancelled)
	if err != nil {
		return err
	}
	c.logger.Info().Str("job_id", id).Msg("Job cancelled")
	c.publishSnapshot(job)
	return nil
}

// ClearCompleted deletes terminal jobs and their items
func (c *Coordinator) ClearCompleted(ctx context.Context) (int64, error) {
	n, err := c.store.ClearCompleted(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		c.logger.Info().Int64("jobs", n).Msg("Cleared terminal jobs")
	}
	return n, nil
}

// publishSnapshot emits the job's counters after an operator-driven
// transition so subscribers see where the job stood when it landed.
func (c *Coordinator) publishSnapshot(job *types.Job) {
	c.broker.Publish(&events.JobProgress{
		JobID:              job.ID,
		TotalFiles:         job.TotalFiles,
		CompletedFiles:     job.CompletedFiles,
		FailedFiles:        job.FailedFiles,
		CompletedSizeBytes: job.CompletedSizeBytes,
	})
}
