package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dmcp718/tc-manager-sub000/pkg/types"
)

// Metadata sub-documents are written with jsonb_set so concurrent writers
// touching different keys never clobber each other, and sub-documents
// written by other tools are preserved.

// WriteComputedSize stores the size roll-up under metadata.computed_size
func (s *Store) WriteComputedSize(ctx context.Context, path string, cs *types.ComputedSize) error {
	payload, err := json.Marshal(cs)
	if err != nil {
		return fmt.Errorf("failed to encode computed size: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE entries
		SET metadata = jsonb_set(COALESCE(metadata, '{}'::jsonb), '{computed_size}', $2::jsonb, true),
		    updated_at = now()
		WHERE path = $1`,
		path, payload)
	if err != nil {
		return fmt.Errorf("failed to write computed size: %w", err)
	}
	return nil
}

// WriteUploadState stores an upload indicator under metadata.upload
func (s *Store) WriteUploadState(ctx context.Context, path string, us *types.UploadState) error {
	payload, err := json.Marshal(us)
	if err != nil {
		return fmt.Errorf("failed to encode upload state: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE entries
		SET metadata = jsonb_set(COALESCE(metadata, '{}'::jsonb), '{upload}', $2::jsonb, true),
		    updated_at = now()
		WHERE path = $1`,
		path, payload)
	if err != nil {
		return fmt.Errorf("failed to write upload state: %w", err)
	}
	return nil
}

// ClearUploadState removes the metadata.upload sub-document
func (s *Store) ClearUploadState(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE entries
		SET metadata = metadata - 'upload', updated_at = now()
		WHERE path = $1 AND metadata ? 'upload'`,
		path)
	if err != nil {
		return fmt.Errorf("failed to clear upload state: %w", err)
	}
	return nil
}

// ReadMetadata returns an entry's metadata blob, nil when the entry has none
func (s *Store) ReadMetadata(ctx context.Context, path string) (*types.EntryMetadata, error) {
	var raw []byte
	row := s.db.QueryRowContext(ctx, `SELECT metadata FROM entries WHERE path = $1`, path)
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", types.ErrEntryNotFound, path)
		}
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var md types.EntryMetadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return nil, fmt.Errorf("failed to decode metadata for %s: %w", path, err)
	}
	return &md, nil
}
