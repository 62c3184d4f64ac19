package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/dmcp718/tc-manager-sub000/pkg/types"
)

// DirectorySize returns the recursive size roll-up for a directory: total
// descendant file bytes plus file and directory counts.
//
// Results are served from three tiers. A process-local LRU absorbs repeated
// lookups of hot directories; below it the computed_size metadata
// sub-document persists the roll-up across restarts; only when both are
// stale does the recursive walk run. Freshness for the first two tiers is
// the configured TTL against calculated_at.
func (s *Store) DirectorySize(ctx context.Context, dirPath string) (*types.ComputedSize, error) {
	entry, err := s.GetEntry(ctx, dirPath)
	if err != nil {
		return nil, err
	}
	if !entry.IsDirectory {
		return nil, fmt.Errorf("%w: %s", types.ErrNotADirectory, dirPath)
	}

	if cs, ok := s.sizeCache.Get(dirPath); ok && s.fresh(cs.CalculatedAt) {
		return cs, nil
	}

	if entry.Metadata != nil && entry.Metadata.ComputedSize != nil &&
		s.fresh(entry.Metadata.ComputedSize.CalculatedAt) {
		s.sizeCache.Add(dirPath, entry.Metadata.ComputedSize)
		return entry.Metadata.ComputedSize, nil
	}

	cs, err := s.computeDirectorySize(ctx, dirPath)
	if err != nil {
		return nil, err
	}
	if err := s.WriteComputedSize(ctx, dirPath, cs); err != nil {
		return nil, err
	}
	s.sizeCache.Add(dirPath, cs)

	s.logger.Debug().
		Str("path", dirPath).
		Int64("size_bytes", cs.SizeBytes).
		Int64("file_count", cs.FileCount).
		Msg("Directory size computed")
	return cs, nil
}

func (s *Store) fresh(calculatedAt time.Time) bool {
	return time.Since(calculatedAt) < s.sizeTTL
}

func (s *Store) computeDirectorySize(ctx context.Context, dirPath string) (*types.ComputedSize, error) {
	cs := &types.ComputedSize{CalculatedAt: time.Now().UTC()}
	row := s.db.QueryRowContext(ctx, `
		WITH RECURSIVE tree AS (
			SELECT path, is_directory, size
			FROM entries
			WHERE parent_path = $1
		UNION ALL
			SELECT e.path, e.is_directory, e.size
			FROM entries e
			JOIN tree t ON e.parent_path = t.path
			WHERE t.is_directory
		)
		SELECT COALESCE(SUM(size) FILTER (WHERE NOT is_directory), 0),
		       COUNT(*) FILTER (WHERE NOT is_directory),
		       COUNT(*) FILTER (WHERE is_directory)
		FROM tree`,
		dirPath)

	if err := row.Scan(&cs.SizeBytes, &cs.FileCount, &cs.DirCount); err != nil {
		return nil, fmt.Errorf("failed to compute directory size: %w", err)
	}
	return cs, nil
}
