package catalog

import (
	"context"
	"fmt"

	"github.com/dmcp718/tc-manager-sub000/pkg/types"
)

// ValidateDirectoryCacheStatus computes the cache roll-up for a directory
// with a recursive CTE bounded to the configured depth. Directories sitting
// on the depth frontier may hide unseen descendants, so their presence
// forces should_be_cached to false. An empty directory validates true
// vacuously; the write path applies the empty-directory convention.
func (s *Store) ValidateDirectoryCacheStatus(ctx context.Context, dirPath string) (*types.RollupStats, error) {
	var (
		stats    types.RollupStats
		frontier int64
	)
	row := s.db.QueryRowContext(ctx, `
		WITH RECURSIVE tree AS (
			SELECT path, is_directory, cached, 1 AS depth
			FROM entries
			WHERE parent_path = $1
		UNION ALL
			SELECT e.path, e.is_directory, e.cached, t.depth + 1
			FROM entries e
			JOIN tree t ON e.parent_path = t.path
			WHERE t.is_directory AND t.depth < $2
		)
		SELECT
			COUNT(*) FILTER (WHERE NOT is_directory),
			COUNT(*) FILTER (WHERE NOT is_directory AND cached),
			COUNT(*) FILTER (WHERE is_directory),
			COUNT(*) FILTER (WHERE is_directory AND cached),
			COUNT(*) FILTER (WHERE is_directory AND depth = $2)
		FROM tree`,
		dirPath, s.rollupMaxDepth)

	err := row.Scan(&stats.TotalFiles, &stats.CachedFiles, &stats.Subdirs,
		&stats.CachedSubdirs, &frontier)
	if err != nil {
		return nil, fmt.Errorf("failed to validate directory cache status: %w", err)
	}

	stats.ShouldBeCached = frontier == 0 &&
		stats.CachedFiles == stats.TotalFiles &&
		stats.CachedSubdirs == stats.Subdirs
	return &stats, nil
}

// UpdateDirectoryCacheIfValid validates dirPath and writes the cached flag
// when it disagrees with the roll-up. A directory is cached only when it has
// at least one descendant and every descendant validates cached; demotion
// clears the warming job reference. Returns the stats and whether the row
// changed.
func (s *Store) UpdateDirectoryCacheIfValid(ctx context.Context, dirPath string) (*types.RollupStats, bool, error) {
	stats, err := s.ValidateDirectoryCacheStatus(ctx, dirPath)
	if err != nil {
		return nil, false, err
	}

	var res string
	if stats.ShouldBeCached && stats.HasDescendants() {
		res = `
			UPDATE entries
			SET cached = TRUE, cached_at = now(), updated_at = now()
			WHERE path = $1 AND is_directory AND NOT cached`
	} else {
		res = `
			UPDATE entries
			SET cached = FALSE, cached_at = NULL, cache_job_id = '', updated_at = now()
			WHERE path = $1 AND is_directory AND cached`
	}

	out, err := s.db.ExecContext(ctx, res, dirPath)
	if err != nil {
		return nil, false, fmt.Errorf("failed to update directory cache flag: %w", err)
	}
	n, err := out.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	if n > 0 {
		s.logger.Debug().
			Str("path", dirPath).
			Bool("cached", stats.ShouldBeCached && stats.HasDescendants()).
			Int64("total_files", stats.TotalFiles).
			Int64("cached_files", stats.CachedFiles).
			Msg("Directory cache flag updated")
	}
	return stats, n > 0, nil
}
