package events

import (
	"time"
)

// Kind tags an event variant with its wire name
type Kind string

const (
	KindIndexProgress Kind = "index-progress"
	KindIndexComplete Kind = "index-complete"
	KindIndexError    Kind = "index-error"
	KindJobCreated    Kind = "job-created"
	KindJobStarted    Kind = "job-started"
	KindJobProgress   Kind = "job-progress"
	KindJobCompleted  Kind = "job-completed"
	KindJobFailed     Kind = "job-failed"
	KindFileStarted   Kind = "file-started"
	KindFileCompleted Kind = "file-completed"
	KindFileFailed    Kind = "file-failed"
	KindFileProgress  Kind = "file-progress"
)

// Meta carries the fields the broker stamps on every published event
type Meta struct {
	Seq       uint64
	Timestamp time.Time
}

func (m *Meta) meta() *Meta { return m }

// Event is one engine event. Each variant carries typed fields; consumers
// switch on the concrete type or on Kind().
type Event interface {
	Kind() Kind
	meta() *Meta
}

// IndexProgress is published periodically while an index session runs
type IndexProgress struct {
	Meta
	SessionID      string
	RootPath       string
	ProcessedFiles int64
	CurrentPath    string
}

func (*IndexProgress) Kind() Kind { return KindIndexProgress }

// IndexComplete is published when an index session finishes or is stopped
type IndexComplete struct {
	Meta
	SessionID      string
	RootPath       string
	ProcessedFiles int64
	Stopped        bool
}

func (*IndexComplete) Kind() Kind { return KindIndexComplete }

// IndexError is published when an index session fails
type IndexError struct {
	Meta
	SessionID string
	RootPath  string
	Message   string
}

func (*IndexError) Kind() Kind { return KindIndexError }

// JobCreated is published after a job and its items are persisted
type JobCreated struct {
	Meta
	JobID       string
	ProfileID   string
	ProfileName string
	TotalFiles  int64
}

func (*JobCreated) Kind() Kind { return KindJobCreated }

// JobStarted is published when the first claim moves a job to running
type JobStarted struct {
	Meta
	JobID    string
	WorkerID string
}

func (*JobStarted) Kind() Kind { return KindJobStarted }

// JobProgress carries a job's aggregate counters
type JobProgress struct {
	Meta
	JobID              string
	TotalFiles         int64
	CompletedFiles     int64
	FailedFiles        int64
	CompletedSizeBytes int64
}

func (*JobProgress) Kind() Kind { return KindJobProgress }

// JobCompleted is published when a job finalizes with zero failed items
type JobCompleted struct {
	Meta
	JobID              string
	TotalFiles         int64
	CompletedFiles     int64
	CompletedSizeBytes int64
}

func (*JobCompleted) Kind() Kind { return KindJobCompleted }

// JobFailed is published when a job finalizes with failed items
type JobFailed struct {
	Meta
	JobID          string
	TotalFiles     int64
	CompletedFiles int64
	FailedFiles    int64
}

func (*JobFailed) Kind() Kind { return KindJobFailed }

// FileStarted is published when a worker begins warming a file
type FileStarted struct {
	Meta
	JobID    string
	ItemID   int64
	Path     string
	WorkerID string
}

func (*FileStarted) Kind() Kind { return KindFileStarted }

// FileCompleted is published when a warm read succeeds
type FileCompleted struct {
	Meta
	JobID     string
	ItemID    int64
	Path      string
	SizeBytes int64
	WorkerID  string
}

func (*FileCompleted) Kind() Kind { return KindFileCompleted }

// FileFailed is published when a warm read fails
type FileFailed struct {
	Meta
	JobID    string
	ItemID   int64
	Path     string
	WorkerID string
	Message  string
}

func (*FileFailed) Kind() Kind { return KindFileFailed }

// FileProgress is the throttled per-worker progress tick, published at most
// every ~100 items or every 2 seconds per job
type FileProgress struct {
	Meta
	JobID          string
	WorkerID       string
	TotalFiles     int64
	CompletedFiles int64
	FailedFiles    int64
}

func (*FileProgress) Kind() Kind { return KindFileProgress }
