package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/dmcp718/tc-manager-sub000/pkg/types"
)

const entryColumns = `path, parent_path, name, is_directory, size, modified_at, permissions,
	cached, cached_at, cache_job_id, last_seen_session_id, metadata, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*types.Entry, error) {
	var (
		e          types.Entry
		parentPath sql.NullString
		cachedAt   sql.NullTime
		jobID      sql.NullString
		sessionID  sql.NullString
		metadata   []byte
	)

	err := row.Scan(&e.Path, &parentPath, &e.Name, &e.IsDirectory, &e.Size, &e.ModifiedAt,
		&e.Permissions, &e.Cached, &cachedAt, &jobID, &sessionID, &metadata, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	e.ParentPath = parentPath.String
	e.CacheJobID = jobID.String
	e.LastSeenSessionID = sessionID.String
	if cachedAt.Valid {
		t := cachedAt.Time
		e.CachedAt = &t
	}
	if len(metadata) > 0 {
		var md types.EntryMetadata
		if err := json.Unmarshal(metadata, &md); err != nil {
			return nil, fmt.Errorf("failed to decode entry metadata for %s: %w", e.Path, err)
		}
		if md.ComputedSize != nil || md.Upload != nil {
			e.Metadata = &md
		}
	}
	return &e, nil
}

// nullIfEmpty maps the empty string onto SQL NULL
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// UpsertEntries bulk inserts or updates entries by path inside a single
// transaction, chunked at 1000 rows per statement. On conflict the
// filesystem-observed fields are overwritten and last_seen_session_id is
// advanced; cache state is left untouched. Returns the rows as persisted.
func (s *Store) UpsertEntries(ctx context.Context, batch []*types.Entry, sessionID string) ([]*types.Entry, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	result := make([]*types.Entry, 0, len(batch))
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for start := 0; start < len(batch); start += upsertChunkSize {
			end := start + upsertChunkSize
			if end > len(batch) {
				end = len(batch)
			}
			rows, err := upsertEntryChunk(ctx, tx, batch[start:end], sessionID)
			if err != nil {
				return err
			}
			result = append(result, rows...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert entries: %w", err)
	}
	return result, nil
}

func upsertEntryChunk(ctx context.Context, tx *sql.Tx, chunk []*types.Entry, sessionID string) ([]*types.Entry, error) {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO entries (path, parent_path, name, is_directory, size, modified_at, permissions, last_seen_session_id) VALUES `)

	args := make([]any, 0, len(chunk)*8)
	for i, e := range chunk {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 8
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8)
		args = append(args, e.Path, nullIfEmpty(e.ParentPath), e.Name, e.IsDirectory,
			e.Size, e.ModifiedAt, e.Permissions, sessionID)
	}

	sb.WriteString(` ON CONFLICT (path) DO UPDATE SET
		parent_path = EXCLUDED.parent_path,
		name = EXCLUDED.name,
		is_directory = EXCLUDED.is_directory,
		size = EXCLUDED.size,
		modified_at = EXCLUDED.modified_at,
		permissions = EXCLUDED.permissions,
		last_seen_session_id = EXCLUDED.last_seen_session_id,
		updated_at = now()
	RETURNING ` + entryColumns)

	rows, err := tx.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*types.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// GetEntry fetches a single entry by path
func (s *Store) GetEntry(ctx context.Context, path string) (*types.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE path = $1`, path)

	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", types.ErrEntryNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return e, nil
}

// FindChildren returns the direct children of a directory, directories
// first, then by name.
func (s *Store) FindChildren(ctx context.Context, parentPath string) ([]*types.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM entries
		 WHERE parent_path = $1
		 ORDER BY is_directory DESC, name ASC`, parentPath)
	if err != nil {
		return nil, fmt.Errorf("failed to find children: %w", err)
	}
	defer rows.Close()

	var entries []*types.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan child entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// FindFilesRecursively returns every non-directory descendant of dirPath,
// ordered by path. Used to expand a directory selection into job items.
func (s *Store) FindFilesRecursively(ctx context.Context, dirPath string) ([]*types.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH RECURSIVE descendants AS (
			SELECT `+entryColumns+` FROM entries WHERE parent_path = $1
			UNION ALL
			SELECT e.path, e.parent_path, e.name, e.is_directory, e.size, e.modified_at, e.permissions,
				e.cached, e.cached_at, e.cache_job_id, e.last_seen_session_id, e.metadata, e.updated_at
			FROM entries e
			JOIN descendants d ON e.parent_path = d.path
			WHERE d.is_directory
		)
		SELECT `+entryColumns+` FROM descendants
		WHERE NOT is_directory
		ORDER BY path ASC`, dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to find files recursively: %w", err)
	}
	defer rows.Close()

	var entries []*types.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan descendant entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// BatchNeedsIndexing filters filesystem-observed entries down to those whose
// catalog row is absent, whose filesystem mtime exceeds the catalog mtime by
// more than the tolerance, or whose size differs.
func (s *Store) BatchNeedsIndexing(ctx context.Context, observed []*types.Entry) ([]*types.Entry, error) {
	if len(observed) == 0 {
		return nil, nil
	}

	type known struct {
		modifiedAt time.Time
		size       int64
	}
	existing := make(map[string]known, len(observed))

	for start := 0; start < len(observed); start += upsertChunkSize {
		end := start + upsertChunkSize
		if end > len(observed) {
			end = len(observed)
		}
		paths := make([]string, 0, end-start)
		for _, e := range observed[start:end] {
			paths = append(paths, e.Path)
		}

		rows, err := s.db.QueryContext(ctx,
			`SELECT path, modified_at, size FROM entries WHERE path = ANY($1)`,
			pq.Array(paths))
		if err != nil {
			return nil, fmt.Errorf("failed to query known entries: %w", err)
		}
		for rows.Next() {
			var path string
			var k known
			if err := rows.Scan(&path, &k.modifiedAt, &k.size); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan known entry: %w", err)
			}
			existing[path] = k
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	var stale []*types.Entry
	for _, e := range observed {
		k, ok := existing[e.Path]
		if !ok {
			stale = append(stale, e)
			continue
		}
		if e.ModifiedAt.Sub(k.modifiedAt) > mtimeTolerance {
			stale = append(stale, e)
			continue
		}
		if e.Size != k.size {
			stale = append(stale, e)
		}
	}
	return stale, nil
}

// MarkEntryCached records a successful warm. The row is created if the file
// was never indexed, so warming does not depend on a prior index run.
func (s *Store) MarkEntryCached(ctx context.Context, path string, sizeBytes int64, jobID string) error {
	parent := filepath.Dir(path)
	if parent == path {
		parent = ""
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (path, parent_path, name, is_directory, size, modified_at,
			cached, cached_at, cache_job_id, updated_at)
		VALUES ($1, $2, $3, FALSE, $4, now(), TRUE, now(), $5, now())
		ON CONFLICT (path) DO UPDATE SET
			cached = TRUE,
			cached_at = now(),
			cache_job_id = EXCLUDED.cache_job_id,
			updated_at = now()`,
		path, nullIfEmpty(parent), filepath.Base(path), sizeBytes, jobID)
	if err != nil {
		return fmt.Errorf("failed to mark entry cached: %w", err)
	}
	return nil
}
