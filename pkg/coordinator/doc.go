// Package coordinator owns the cache-job lifecycle.
//
// # Creation
//
// CreateJob turns a selection (explicit file paths, or directories
// expanded to their recursive file contents) into a pending job with
// one item per file. Profile resolution follows a strict precedence:
// explicit reference by id, explicit reference by name, classification
// of the path set, then the deployment's default profile. The resolved
// profile immediately reshapes the worker pool.
//
// The file path snapshot is immutable once persisted: files added to a
// directory after job creation are not picked up, and duplicates in the
// selection become distinct items.
//
// # Lifecycle
//
//	pending ──▶ running ──▶ completed | failed
//	   ▲           │
//	   └─ paused ◀─┘     {pending, running, paused} ──▶ cancelled
//
// Pause applies only to running jobs; resume returns a paused job to
// pending so the normal claim path restarts it. Cancellation lets
// in-flight items finish and stops all further claiming. The
// coordinator changes job rows only through guarded transitions, so a
// stale operator action loses cleanly with InvalidTransition instead
// of clobbering worker progress.
//
// # Integration Points
//
//   - pkg/catalog: job persistence and guarded transitions
//   - pkg/profile: workload classification for unreferenced jobs
//   - pkg/worker: pool reshaping per resolved profile
//   - pkg/events: JobCreated and operator-action progress snapshots
package coordinator
