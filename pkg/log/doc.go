/*
Package log provides structured logging for TeamCache Manager using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper functions
for common logging patterns. All logs include timestamps and support filtering
by severity level for production debugging.

# Architecture

The engine logs through a single global logger with contextual children:

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                           │
	│  ┌────────────────────────────────────────────┐           │
	│  │            Global Logger                   │           │
	│  │  - Zerolog instance                        │           │
	│  │  - Initialized via log.Init()              │           │
	│  │  - Thread-safe for concurrent use          │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                     │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │           Configuration                    │           │
	│  │  - Level: debug/info/warn/error            │           │
	│  │  - Format: JSON or console (human)         │           │
	│  │  - Output: stdout, file, or custom writer  │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                     │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │         Component Loggers                  │           │
	│  │  - WithComponent("indexer")                │           │
	│  │  - WithSessionID("session-abc123")         │           │
	│  │  - WithJobID("job-xyz")                    │           │
	│  │  - WithWorkerID("worker-3")                │           │
	│  └────────────────────────────────────────────┘           │
	└───────────────────────────────────────────────────────────┘

# Usage

Initializing the logger:

	// JSON output (service mode)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (interactive)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

Simple logging:

	log.Info("engine started")
	log.Warn("directory size cache miss storm")
	log.Error("failed to connect to catalog database")

Structured logging:

	log.Logger.Info().
		Str("job_id", job.ID).
		Int64("total_files", job.TotalFiles).
		Msg("cache job created")

	log.Logger.Error().
		Err(err).
		Str("path", item.FilePath).
		Msg("warm read failed")

Component loggers:

	workerLog := log.WithComponent("worker")
	workerLog.Info().Msg("starting worker loop")

	jobLog := log.WithJobID(job.ID)
	jobLog.Info().Int64("completed", job.CompletedFiles).Msg("progress")

# Log Output Examples

JSON format (service mode):

	{"level":"info","component":"indexer","session_id":"s-123","time":"2026-03-02T10:30:00Z","message":"index session started"}
	{"level":"error","component":"worker","worker_id":"w-2","path":"/mnt/fs/a.mov","error":"read timeout","time":"2026-03-02T10:30:02Z","message":"warm read failed"}

Console format (interactive):

	10:30:00 INF index session started component=indexer session_id=s-123
	10:30:02 ERR warm read failed component=worker worker_id=w-2 path=/mnt/fs/a.mov error="read timeout"

# Integration Points

This package integrates with:

  - pkg/manager: logs engine lifecycle and operation outcomes
  - pkg/indexer: logs traversal progress and per-entry stat failures
  - pkg/worker: logs claims, warm reads, and completion outcomes
  - pkg/coordinator: logs job lifecycle transitions
  - pkg/reconciler: logs lease sweeps and directory demotions
  - pkg/catalog: logs connection retries and rollback failures

# Best Practices

Do:
  - Use Info level for production
  - Use structured fields for queryable data (job_id, session_id, path)
  - Create component-specific loggers
  - Log errors with .Err() so aggregation tools can group them

Don't:
  - Log in the per-item hot path above Debug level
  - Concatenate values into the message (use .Str, .Int64)
  - Log full file listings (log counts and sample paths)

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
  - 12-Factor App Logs: https://12factor.net/logs
*/
package log
