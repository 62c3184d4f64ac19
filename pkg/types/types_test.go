package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    JobStatus
		to      JobStatus
		allowed bool
	}{
		{"pending to running", JobStatusPending, JobStatusRunning, true},
		{"pending to paused", JobStatusPending, JobStatusPaused, false},
		{"pending to cancelled", JobStatusPending, JobStatusCancelled, true},
		{"pending to completed", JobStatusPending, JobStatusCompleted, false},
		{"running to paused", JobStatusRunning, JobStatusPaused, true},
		{"running to completed", JobStatusRunning, JobStatusCompleted, true},
		{"running to failed", JobStatusRunning, JobStatusFailed, true},
		{"running to cancelled", JobStatusRunning, JobStatusCancelled, true},
		{"paused resumes to pending", JobStatusPaused, JobStatusPending, true},
		{"paused to running", JobStatusPaused, JobStatusRunning, false},
		{"paused to cancelled", JobStatusPaused, JobStatusCancelled, true},
		{"paused to completed", JobStatusPaused, JobStatusCompleted, false},
		{"completed is terminal", JobStatusCompleted, JobStatusRunning, false},
		{"failed is terminal", JobStatusFailed, JobStatusPending, false},
		{"cancelled is terminal", JobStatusCancelled, JobStatusRunning, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransition(tt.to))
		})
	}
}

func TestJobStatusTerminal(t *testing.T) {
	assert.True(t, JobStatusCompleted.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
	assert.True(t, JobStatusCancelled.Terminal())
	assert.False(t, JobStatusPending.Terminal())
	assert.False(t, JobStatusRunning.Terminal())
	assert.False(t, JobStatusPaused.Terminal())
}

func TestJobStatusClaimable(t *testing.T) {
	assert.True(t, JobStatusPending.Claimable())
	assert.True(t, JobStatusRunning.Claimable())
	assert.False(t, JobStatusPaused.Claimable())
	assert.False(t, JobStatusCancelled.Claimable())
	assert.False(t, JobStatusCompleted.Claimable())
	assert.False(t, JobStatusFailed.Claimable())
}

func TestIndexStatusActive(t *testing.T) {
	assert.True(t, IndexStatusPending.Active())
	assert.True(t, IndexStatusRunning.Active())
	assert.False(t, IndexStatusCompleted.Active())
	assert.False(t, IndexStatusFailed.Active())
	assert.False(t, IndexStatusStopped.Active())
}

func TestRollupStatsHasDescendants(t *testing.T) {
	assert.False(t, (&RollupStats{}).HasDescendants())
	assert.True(t, (&RollupStats{TotalFiles: 1}).HasDescendants())
	assert.True(t, (&RollupStats{Subdirs: 2}).HasDescendants())
}
