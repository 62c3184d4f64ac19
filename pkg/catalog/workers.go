package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/dmcp718/tc-manager-sub000/pkg/types"
)

// UpsertWorkerHeartbeat registers a worker lease or refreshes it. Workers
// call this on every poll; the reconciler requeues items owned by leases
// that go stale.
func (s *Store) UpsertWorkerHeartbeat(ctx context.Context, workerID, hostname string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workers (id, hostname, started_at, last_heartbeat)
		VALUES ($1, $2, now(), now())
		ON CONFLICT (id) DO UPDATE SET last_heartbeat = now()`,
		workerID, hostname)
	if err != nil {
		return fmt.Errorf("failed to upsert worker heartbeat: %w", err)
	}
	return nil
}

// StaleWorkers returns leases whose heartbeat is older than the lease
// timeout. Expiry is judged against the database clock so that application
// hosts with skewed clocks cannot prematurely expire each other.
func (s *Store) StaleWorkers(ctx context.Context, lease time.Duration) ([]*types.Worker, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, hostname, started_at, last_heartbeat
		FROM workers
		WHERE last_heartbeat < now() - make_interval(secs => $1)`,
		lease.Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to list stale workers: %w", err)
	}
	defer rows.Close()

	var workers []*types.Worker
	for rows.Next() {
		var w types.Worker
		if err := rows.Scan(&w.ID, &w.Hostname, &w.StartedAt, &w.LastHeartbeat); err != nil {
			return nil, fmt.Errorf("failed to scan worker: %w", err)
		}
		workers = append(workers, &w)
	}
	return workers, rows.Err()
}

// RemoveWorker deletes a worker lease, after shutdown or orphan recovery
func (s *Store) RemoveWorker(ctx context.Context, workerID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM workers WHERE id = $1`, workerID)
	if err != nil {
		return fmt.Errorf("failed to remove worker: %w", err)
	}
	return nil
}
