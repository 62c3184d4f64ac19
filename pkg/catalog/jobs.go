package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/dmcp718/tc-manager-sub000/pkg/types"
)

const jobColumns = `id, file_paths, directory_paths, profile_id, total_files, completed_files,
	failed_files, completed_size_bytes, status, worker_id, created_at, started_at, completed_at`

const itemColumns = `id, job_id, file_path, status, worker_id, file_size_bytes, error_message,
	started_at, completed_at`

func scanJob(row rowScanner) (*types.Job, error) {
	var (
		job         types.Job
		filePaths   []byte
		dirPaths    []byte
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)
	err := row.Scan(&job.ID, &filePaths, &dirPaths, &job.ProfileID, &job.TotalFiles,
		&job.CompletedFiles, &job.FailedFiles, &job.CompletedSizeBytes, &job.Status,
		&job.WorkerID, &job.CreatedAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(filePaths, &job.FilePaths); err != nil {
		return nil, fmt.Errorf("failed to decode file paths for job %s: %w", job.ID, err)
	}
	if err := json.Unmarshal(dirPaths, &job.DirectoryPaths); err != nil {
		return nil, fmt.Errorf("failed to decode directory paths for job %s: %w", job.ID, err)
	}
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return &job, nil
}

func scanItem(row rowScanner) (*types.JobItem, error) {
	var (
		item        types.JobItem
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)
	err := row.Scan(&item.ID, &item.JobID, &item.FilePath, &item.Status, &item.WorkerID,
		&item.FileSizeBytes, &item.ErrorMessage, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if startedAt.Valid {
		t := startedAt.Time
		item.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		item.CompletedAt = &t
	}
	return &item, nil
}

// CreateJobWithItems persists a job and its item rows in one transaction.
// Items are inserted in chunks of at most 1000 rows per statement, in the
// order of the job's file path snapshot.
func (s *Store) CreateJobWithItems(ctx context.Context, job *types.Job) error {
	filePaths, err := json.Marshal(job.FilePaths)
	if err != nil {
		return fmt.Errorf("failed to encode file paths: %w", err)
	}
	dirPaths, err := json.Marshal(job.DirectoryPaths)
	if err != nil {
		return fmt.Errorf("failed to encode directory paths: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cache_jobs (id, file_paths, directory_paths, profile_id, total_files, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())`,
			job.ID, filePaths, dirPaths, job.ProfileID, job.TotalFiles, job.Status)
		if err != nil {
			return fmt.Errorf("failed to insert job: %w", err)
		}

		for start := 0; start < len(job.FilePaths); start += upsertChunkSize {
			end := start + upsertChunkSize
			if end > len(job.FilePaths) {
				end = len(job.FilePaths)
			}
			if err := insertItemChunk(ctx, tx, job.ID, job.FilePaths[start:end]); err != nil {
				return fmt.Errorf("failed to insert job items: %w", err)
			}
		}
		return nil
	})
}

func insertItemChunk(ctx context.Context, tx *sql.Tx, jobID string, paths []string) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO cache_job_items (job_id, file_path, status) VALUES `)

	args := make([]any, 0, len(paths)*2)
	for i, path := range paths {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 2
		fmt.Fprintf(&sb, "($%d, $%d, 'pending')", base+1, base+2)
		args = append(args, jobID, path)
	}

	_, err := tx.ExecContext(ctx, sb.String(), args...)
	return err
}

// GetJob fetches a job by id
func (s *Store) GetJob(ctx context.Context, id string) (*types.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM cache_jobs WHERE id = $1`, id)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", types.ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// GetJobItems returns a job's items in claim order
func (s *Store) GetJobItems(ctx context.Context, jobID string) ([]*types.JobItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM cache_job_items WHERE job_id = $1 ORDER BY id ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list job items: %w", err)
	}
	defer rows.Close()

	var items []*types.JobItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListJobs returns the most recent jobs, newest first
func (s *Store) ListJobs(ctx context.Context, limit int) ([]*types.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM cache_jobs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*types.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ListClaimableJobs returns pending and running jobs, oldest first. Workers
// walk this list on every poll.
func (s *Store) ListClaimableJobs(ctx context.Context) ([]*types.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM cache_jobs
		 WHERE status IN ('pending', 'running')
		 ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list claimable jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*types.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claimable job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ClaimPendingItems atomically moves up to limit pending items of a job to
// running under workerID, in ascending id order. SKIP LOCKED serializes
// concurrent workers without blocking them; the share lock on the job row
// ensures no claim lands after a pause or cancel commits.
func (s *Store) ClaimPendingItems(ctx context.Context, jobID, workerID string, limit int) ([]*types.JobItem, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		UPDATE cache_job_items
		SET status = 'running', worker_id = $2, started_at = now()
		WHERE id IN (
			SELECT i.id FROM cache_job_items i
			JOIN cache_jobs j ON j.id = i.job_id
			WHERE i.job_id = $1
			  AND i.status = 'pending'
			  AND j.status IN ('pending', 'running')
			ORDER BY i.id ASC
			LIMIT $3
			FOR UPDATE OF i SKIP LOCKED
			FOR SHARE OF j
		)
		RETURNING `+itemColumns,
		jobID, workerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending items: %w", err)
	}
	defer rows.Close()

	var items []*types.JobItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claimed item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// MarkJobRunning flips a pending job to running. Only the first caller wins;
// the return value reports whether this call performed the transition.
func (s *Store) MarkJobRunning(ctx context.Context, jobID, workerID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE cache_jobs
		SET status = 'running', worker_id = $2, started_at = now()
		WHERE id = $1 AND status = 'pending'`,
		jobID, workerID)
	if err != nil {
		return false, fmt.Errorf("failed to mark job running: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CompleteItem finishes a running item and updates the owning job's
// aggregate counters incrementally in the same transaction. The bool result
// reports whether the item was actually in running; a false return means
// another actor already finished or requeued it.
func (s *Store) CompleteItem(ctx context.Context, jobID string, itemID int64, outcome types.ItemOutcome, sizeBytes int64, errorMessage string) (bool, error) {
	applied := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE cache_job_items
			SET status = $3, file_size_bytes = $4, error_message = $5, completed_at = now()
			WHERE id = $1 AND job_id = $2 AND status = 'running'`,
			itemID, jobID, string(outcome), sizeBytes, errorMessage)
		if err != nil {
			return fmt.Errorf("failed to complete item: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		applied = true

		if outcome == types.ItemOutcomeCompleted {
			_, err = tx.ExecContext(ctx, `
				UPDATE cache_jobs
				SET completed_files = completed_files + 1,
				    completed_size_bytes = completed_size_bytes + $2
				WHERE id = $1`,
				jobID, sizeBytes)
		} else {
			_, err = tx.ExecContext(ctx, `
				UPDATE cache_jobs
				SET failed_files = failed_files + 1
				WHERE id = $1`,
				jobID)
		}
		if err != nil {
			return fmt.Errorf("failed to update job counters: %w", err)
		}
		return nil
	})
	return applied, err
}

// FinalizeJobIfDone moves a job with no pending or running items to its
// terminal status: completed when nothing failed, failed otherwise. The
// single guarded statement makes concurrent finalize attempts race safely;
// exactly one returns the finalized job. Pending jobs qualify too: a resumed
// job whose last items settled during the pause has no pending items left,
// so no worker would ever flip it to running again.
func (s *Store) FinalizeJobIfDone(ctx context.Context, jobID string) (*types.Job, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE cache_jobs j
		SET status = CASE WHEN j.failed_files = 0 THEN 'completed' ELSE 'failed' END,
		    completed_at = now()
		WHERE j.id = $1
		  AND j.status IN ('pending', 'running')
		  AND NOT EXISTS (
			SELECT 1 FROM cache_job_items i
			WHERE i.job_id = j.id AND i.status IN ('pending', 'running')
		  )
		RETURNING `+jobColumns,
		jobID)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to finalize job: %w", err)
	}
	return job, true, nil
}

// TransitionJob changes a job's status when its current status is in from.
// Returns the updated job; ErrInvalidTransition when the job exists but is
// not in an accepted status.
func (s *Store) TransitionJob(ctx context.Context, jobID string, from []types.JobStatus, to types.JobStatus) (*types.Job, error) {
	fromStrs := make([]string, len(from))
	for i, f := range from {
		fromStrs[i] = string(f)
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE cache_jobs
		SET status = $2,
		    completed_at = CASE WHEN $2 IN ('completed', 'failed', 'cancelled') THEN now() ELSE completed_at END
		WHERE id = $1 AND status = ANY($3)
		RETURNING `+jobColumns,
		jobID, string(to), pq.Array(fromStrs))

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		// Distinguish a missing job from a bad transition
		if _, getErr := s.GetJob(ctx, jobID); getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("%w: job %s", types.ErrInvalidTransition, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to transition job: %w", err)
	}
	return job, nil
}

// RequeueJobItems returns every running item of a job to pending. Used by
// the coordinator when a pause is configured to requeue in-flight work;
// workers finishing a requeued item observe applied=false from CompleteItem
// and drop their result.
func (s *Store) RequeueJobItems(ctx context.Context, jobID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE cache_job_items
		SET status = 'pending', worker_id = '', started_at = NULL
		WHERE job_id = $1 AND status = 'running'`,
		jobID)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue job items: %w", err)
	}
	return res.RowsAffected()
}

// RequeueWorkerItems returns every running item owned by workerID to
// pending. Called by the reconciler after a worker lease expires.
func (s *Store) RequeueWorkerItems(ctx context.Context, workerID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE cache_job_items
		SET status = 'pending', worker_id = '', started_at = NULL
		WHERE worker_id = $1 AND status = 'running'`,
		workerID)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue worker items: %w", err)
	}
	return res.RowsAffected()
}

// ClearCompleted deletes jobs in terminal states; items cascade
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM cache_jobs
		WHERE status IN ('completed', 'failed', 'cancelled')`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear completed jobs: %w", err)
	}
	return res.RowsAffected()
}
