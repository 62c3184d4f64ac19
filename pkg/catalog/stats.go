package catalog

import (
	"context"
	"fmt"

	"github.com/dmcp718/tc-manager-sub000/pkg/types"
)

// EntryStats summarizes the entries table for observability
type EntryStats struct {
	Total       int64
	Cached      int64
	Directories int64
}

// CountEntries returns entry totals in one scan
func (s *Store) CountEntries(ctx context.Context) (*EntryStats, error) {
	var st EntryStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE cached),
		       COUNT(*) FILTER (WHERE is_directory)
		FROM entries`).Scan(&st.Total, &st.Cached, &st.Directories)
	if err != nil {
		return nil, fmt.Errorf("failed to count entries: %w", err)
	}
	return &st, nil
}

// CountJobsByStatus returns the number of jobs in each status
func (s *Store) CountJobsByStatus(ctx context.Context) (map[types.JobStatus]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM cache_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[types.JobStatus]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[types.JobStatus(status)] = n
	}
	return counts, rows.Err()
}
