package catalog

// schema is the catalog DDL. Statements are idempotent; EnsureSchema runs the
// whole block on every engine start and tc-migrate applies it standalone.
const schema = `
CREATE TABLE IF NOT EXISTS entries (
	path TEXT PRIMARY KEY,
	parent_path TEXT,
	name TEXT NOT NULL,
	is_directory BOOLEAN NOT NULL DEFAULT FALSE,
	size BIGINT NOT NULL DEFAULT 0,
	modified_at TIMESTAMPTZ NOT NULL,
	permissions TEXT NOT NULL DEFAULT '',
	cached BOOLEAN NOT NULL DEFAULT FALSE,
	cached_at TIMESTAMPTZ,
	cache_job_id TEXT,
	last_seen_session_id TEXT,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_entries_parent ON entries(parent_path);
CREATE INDEX IF NOT EXISTS idx_entries_parent_dir ON entries(parent_path, is_directory);
CREATE INDEX IF NOT EXISTS idx_entries_cached ON entries(cached) WHERE cached;

CREATE TABLE IF NOT EXISTS index_sessions (
	id TEXT PRIMARY KEY,
	root_path TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	total_files BIGINT NOT NULL DEFAULT 0,
	processed_files BIGINT NOT NULL DEFAULT 0,
	current_path TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ,
	error_message TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_sessions_status ON index_sessions(status);
CREATE INDEX IF NOT EXISTS idx_sessions_started ON index_sessions(started_at DESC);

-- At most one session may hold the active slot
CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_one_active
	ON index_sessions ((status IN ('pending', 'running')))
	WHERE status IN ('pending', 'running');

CREATE TABLE IF NOT EXISTS cache_jobs (
	id TEXT PRIMARY KEY,
	file_paths JSONB NOT NULL DEFAULT '[]'::jsonb,
	directory_paths JSONB NOT NULL DEFAULT '[]'::jsonb,
	profile_id TEXT NOT NULL,
	total_files BIGINT NOT NULL DEFAULT 0,
	completed_files BIGINT NOT NULL DEFAULT 0,
	failed_files BIGINT NOT NULL DEFAULT 0,
	completed_size_bytes BIGINT NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'pending',
	worker_id TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	started_at TIMESTAMPTZ,
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_jobs_status_created ON cache_jobs(status, created_at);

CREATE TABLE IF NOT EXISTS cache_job_items (
	id BIGSERIAL PRIMARY KEY,
	job_id TEXT NOT NULL REFERENCES cache_jobs(id) ON DELETE CASCADE,
	file_path TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	worker_id TEXT NOT NULL DEFAULT '',
	file_size_bytes BIGINT NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMPTZ,
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_items_job_status_id ON cache_job_items(job_id, status, id);
CREATE INDEX IF NOT EXISTS idx_items_worker_running ON cache_job_items(worker_id) WHERE status = 'running';

CREATE TABLE IF NOT EXISTS cache_profiles (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	priority INTEGER NOT NULL DEFAULT 0,
	is_default BOOLEAN NOT NULL DEFAULT FALSE,
	worker_count INTEGER NOT NULL,
	max_concurrent_files INTEGER NOT NULL,
	worker_poll_interval_ms BIGINT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

-- At most one profile may be the default
CREATE UNIQUE INDEX IF NOT EXISTS idx_profiles_one_default
	ON cache_profiles (is_default)
	WHERE is_default;

CREATE TABLE IF NOT EXISTS workers (
	id TEXT PRIMARY KEY,
	hostname TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_heartbeat TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_workers_heartbeat ON workers(last_heartbeat);
`
