package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/dmcp718/tc-manager-sub000/pkg/types"
)

const sessionColumns = `id, root_path, status, total_files, processed_files, current_path,
	started_at, completed_at, error_message`

func scanSession(row rowScanner) (*types.IndexSession, error) {
	var (
		sess        types.IndexSession
		completedAt sql.NullTime
	)
	err := row.Scan(&sess.ID, &sess.RootPath, &sess.Status, &sess.TotalFiles,
		&sess.ProcessedFiles, &sess.CurrentPath, &sess.StartedAt, &completedAt, &sess.ErrorMessage)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t := completedAt.Time
		sess.CompletedAt = &t
	}
	return &sess, nil
}

// isUniqueViolation reports whether err is a unique constraint violation
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// CreateSession inserts a new index session. The schema admits at most one
// session in pending or running, so a concurrent start loses cleanly with
// ErrAlreadyRunning.
func (s *Store) CreateSession(ctx context.Context, sess *types.IndexSession) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO index_sessions (id, root_path, status, started_at)
		VALUES ($1, $2, $3, now())`,
		sess.ID, sess.RootPath, sess.Status)
	if err != nil {
		if isUniqueViolation(err) {
			return types.ErrAlreadyRunning
		}
		return fmt.Errorf("failed to create index session: %w", err)
	}
	return nil
}

// GetSession fetches a session by id
func (s *Store) GetSession(ctx context.Context, id string) (*types.IndexSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM index_sessions WHERE id = $1`, id)

	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", types.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get index session: %w", err)
	}
	return sess, nil
}

// ActiveSession returns the session currently holding the single-run slot,
// or nil when no session is pending or running.
func (s *Store) ActiveSession(ctx context.Context) (*types.IndexSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM index_sessions
		 WHERE status IN ('pending', 'running')
		 LIMIT 1`)

	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}
	return sess, nil
}

// LatestSession returns the most recently started session, or nil when the
// catalog has never been indexed.
func (s *Store) LatestSession(ctx context.Context) (*types.IndexSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM index_sessions
		 ORDER BY started_at DESC
		 LIMIT 1`)

	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest session: %w", err)
	}
	return sess, nil
}

// UpdateSessionProgress advances the progress counters on a running session
func (s *Store) UpdateSessionProgress(ctx context.Context, id string, processed, total int64, currentPath string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE index_sessions
		SET processed_files = $2, total_files = $3, current_path = $4
		WHERE id = $1`,
		id, processed, total, currentPath)
	if err != nil {
		return fmt.Errorf("failed to update session progress: %w", err)
	}
	return nil
}

// FinishSession moves a session to a terminal status and stamps completion
func (s *Store) FinishSession(ctx context.Context, id string, status types.IndexStatus, errorMessage string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE index_sessions
		SET status = $2, error_message = $3, completed_at = now()
		WHERE id = $1`,
		id, status, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", types.ErrSessionNotFound, id)
	}
	return nil
}
