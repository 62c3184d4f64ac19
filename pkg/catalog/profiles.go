package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmcp718/tc-manager-sub000/pkg/types"
)

const profileColumns = `id, name, priority, is_default, worker_count, max_concurrent_files,
	worker_poll_interval_ms, description, created_at`

func scanProfile(row rowScanner) (*types.Profile, error) {
	var (
		p      types.Profile
		pollMs int64
	)
	err := row.Scan(&p.ID, &p.Name, &p.Priority, &p.IsDefault, &p.WorkerCount,
		&p.MaxConcurrentFiles, &pollMs, &p.Description, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.PollInterval = time.Duration(pollMs) * time.Millisecond
	return &p, nil
}

// seededProfiles are the representative execution templates every deployment
// carries. Operators may tune the numbers in place; re-seeding never
// overwrites an existing row.
var seededProfiles = []types.Profile{
	{
		ID: "general", Name: "general", Priority: 0, IsDefault: true,
		WorkerCount: 4, MaxConcurrentFiles: 5, PollInterval: 2000 * time.Millisecond,
		Description: "Balanced default for mixed file sets",
	},
	{
		ID: "image-sequences", Name: "image-sequences", Priority: 10,
		WorkerCount: 8, MaxConcurrentFiles: 10, PollInterval: 500 * time.Millisecond,
		Description: "Many small frames (exr/dpx/tif); wide pool, fast polling",
	},
	{
		ID: "large-videos", Name: "large-videos", Priority: 20,
		WorkerCount: 2, MaxConcurrentFiles: 2, PollInterval: 3000 * time.Millisecond,
		Description: "Few large mezzanine files; narrow pool avoids thrashing the cache",
	},
	{
		ID: "proxy-media", Name: "proxy-media", Priority: 30,
		WorkerCount: 4, MaxConcurrentFiles: 8, PollInterval: 1000 * time.Millisecond,
		Description: "Medium-sized proxies and stills",
	},
	{
		ID: "small-files", Name: "small-files", Priority: 40,
		WorkerCount: 6, MaxConcurrentFiles: 20, PollInterval: 500 * time.Millisecond,
		Description: "Large counts of small assets; high per-worker concurrency",
	},
}

// SeedProfiles inserts the representative profiles if they are not already
// present. Idempotent; existing rows keep any operator tuning. The bare
// conflict clause also covers the one-default partial index, so a
// deployment that re-pointed the default still seeds cleanly.
func (s *Store) SeedProfiles(ctx context.Context) error {
	for _, p := range seededProfiles {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO cache_profiles
				(id, name, priority, is_default, worker_count, max_concurrent_files, worker_poll_interval_ms, description)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT DO NOTHING`,
			p.ID, p.Name, p.Priority, p.IsDefault, p.WorkerCount, p.MaxConcurrentFiles,
			p.PollInterval.Milliseconds(), p.Description)
		if err != nil {
			return fmt.Errorf("failed to seed profile %s: %w", p.Name, err)
		}
	}
	s.logger.Debug().Int("profiles", len(seededProfiles)).Msg("Profiles seeded")
	return nil
}

// GetProfile fetches a profile by id
func (s *Store) GetProfile(ctx context.Context, id string) (*types.Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM cache_profiles WHERE id = $1`, id)

	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", types.ErrProfileNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// GetProfileByName fetches a profile by its unique name
func (s *Store) GetProfileByName(ctx context.Context, name string) (*types.Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM cache_profiles WHERE name = $1`, name)

	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", types.ErrProfileNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile by name: %w", err)
	}
	return p, nil
}

// DefaultProfile returns the profile marked is_default
func (s *Store) DefaultProfile(ctx context.Context) (*types.Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM cache_profiles WHERE is_default LIMIT 1`)

	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: no default profile", types.ErrProfileNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get default profile: %w", err)
	}
	return p, nil
}

// ListProfiles returns all profiles ordered by priority then name
func (s *Store) ListProfiles(ctx context.Context) ([]*types.Profile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM cache_profiles ORDER BY priority ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*types.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}
