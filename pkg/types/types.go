package types

import (
	"time"
)

// Entry represents one filesystem path observed by the indexer
type Entry struct {
	Path              string // Absolute path, stable identity
	ParentPath        string // Empty for roots
	Name              string
	IsDirectory       bool
	Size              int64
	ModifiedAt        time.Time
	Permissions       string // Octal string, e.g. "0644"
	Cached            bool
	CachedAt          *time.Time
	CacheJobID        string // Job that warmed this entry, empty if none
	LastSeenSessionID string // Index session that last observed this path
	Metadata          *EntryMetadata
	UpdatedAt         time.Time
}

// EntryMetadata is the extensible structured blob stored alongside an Entry.
// Each sub-document has its own reader/writer in the catalog; unknown
// sub-documents written by other tools are preserved.
type EntryMetadata struct {
	ComputedSize *ComputedSize `json:"computed_size,omitempty"`
	Upload       *UploadState  `json:"upload,omitempty"`
}

// ComputedSize is the cached recursive size roll-up for a directory
type ComputedSize struct {
	SizeBytes    int64     `json:"size_bytes"`
	FileCount    int64     `json:"file_count"`
	DirCount     int64     `json:"dir_count"`
	CalculatedAt time.Time `json:"calculated_at"`
}

// UploadState tracks an in-progress upload indicator on an entry
type UploadState struct {
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IndexSession represents one run of the indexer over a root path
type IndexSession struct {
	ID             string
	RootPath       string
	Status         IndexStatus
	TotalFiles     int64
	ProcessedFiles int64
	CurrentPath    string // Most recent directory entered, for observability
	StartedAt      time.Time
	CompletedAt    *time.Time
	ErrorMessage   string
}

// IndexStatus represents the state of an index session
type IndexStatus string

const (
	IndexStatusPending   IndexStatus = "pending"
	IndexStatusRunning   IndexStatus = "running"
	IndexStatusCompleted IndexStatus = "completed"
	IndexStatusFailed    IndexStatus = "failed"
	IndexStatusStopped   IndexStatus = "stopped"
)

// Active reports whether the session still owns the single-indexer slot
func (s IndexStatus) Active() bool {
	return s == IndexStatusPending || s == IndexStatusRunning
}

// Job represents one cache-warm request
type Job struct {
	ID                 string
	FilePaths          []string // Immutable snapshot of the selection at creation
	DirectoryPaths     []string // Original directory selection, for reporting
	ProfileID          string
	TotalFiles         int64
	CompletedFiles     int64
	FailedFiles        int64
	CompletedSizeBytes int64
	Status             JobStatus
	WorkerID           string // Last worker to touch the job
	CreatedAt          time.Time
	StartedAt          *time.Time
	CompletedAt        *time.Time
}

// JobStatus represents the state of a cache job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusPaused    JobStatus = "paused"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further item processing can occur
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Claimable reports whether workers may claim pending items from the job
func (s JobStatus) Claimable() bool {
	return s == JobStatusPending || s == JobStatusRunning
}

// jobTransitions enumerates the permitted status changes. Workers drive
// pending->running and the terminal completion states; operators drive
// pause, resume and cancel. Pause applies only to running jobs; resume
// returns a paused job to pending so workers re-claim it.
var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusPending: {JobStatusRunning, JobStatusCancelled},
	JobStatusRunning: {JobStatusPaused, JobStatusCompleted, JobStatusFailed, JobStatusCancelled},
	JobStatusPaused:  {JobStatusPending, JobStatusCancelled},
}

// CanTransition reports whether a job may move from s to next
func (s JobStatus) CanTransition(next JobStatus) bool {
	for _, allowed := range jobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// JobItem represents one file within a job
type JobItem struct {
	ID            int64 // Monotonic, assigned by the catalog
	JobID         string
	FilePath      string
	Status        ItemStatus
	WorkerID      string
	FileSizeBytes int64
	ErrorMessage  string
	StartedAt     *time.Time
	CompletedAt   *time.Time
}

// ItemStatus represents the state of a job item
type ItemStatus string

const (
	ItemStatusPending   ItemStatus = "pending"
	ItemStatusRunning   ItemStatus = "running"
	ItemStatusCompleted ItemStatus = "completed"
	ItemStatusFailed    ItemStatus = "failed"
)

// ItemOutcome is the terminal disposition a worker reports for an item
type ItemOutcome string

const (
	ItemOutcomeCompleted ItemOutcome = "completed"
	ItemOutcomeFailed    ItemOutcome = "failed"
)

// Profile is a named execution template controlling pool shape
type Profile struct {
	ID                 string
	Name               string
	Priority           int
	IsDefault          bool
	WorkerCount        int
	MaxConcurrentFiles int // Per-worker concurrent reads
	PollInterval       time.Duration
	Description        string
	CreatedAt          time.Time
}

// Worker represents a live worker lease in the catalog. Workers heartbeat
// on every poll; the reconciler requeues items owned by leases that have
// gone stale.
type Worker struct {
	ID            string
	Hostname      string
	StartedAt     time.Time
	LastHeartbeat time.Time
}

// RollupStats is the result of validating a directory's cache status
type RollupStats struct {
	TotalFiles     int64
	CachedFiles    int64
	Subdirs        int64
	CachedSubdirs  int64
	ShouldBeCached bool
}

// HasDescendants reports whether the rollup saw any files or subdirectories
func (r *RollupStats) HasDescendants() bool {
	return r.TotalFiles > 0 || r.Subdirs > 0
}
