package models

import (
	"time"

	"github.com/google/uuid"
)

// BatchRunStatus represents the status of a ranking batch run
type BatchRunStatus string

const (
	BatchRunStatusRunning   BatchRunStatus = "running"
	BatchRunStatusCompleted BatchRunStatus = "completed"
	BatchRunStatusCancelled BatchRunStatus = "cancelled"
)

// BatchRun summarises one pass of the daily ranking batch over the universe
type BatchRun struct {
	ID         uuid.UUID      `json:"id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Status     BatchRunStatus `json:"status"`
	Symbols    int            `json:"symbols"`
	Updated    int            `json:"updated"`
	Skipped    int            `json:"skipped"` // no data: rate limited, not found, provider unavailable
	Failed     int            `json:"failed"`  // transport or persistence errors
	Error      string         `json:"error,omitempty"`
}

// NewBatchRun creates a running BatchRun started at now
func NewBatchRun(now time.Time) *BatchRun {
	return &BatchRun{
		ID:        uuid.New(),
		StartedAt: now,
		Status:    BatchRunStatusRunning,
	}
}

// Complete marks the run as finished
func (b *BatchRun) Complete(now time.Time) {
	b.Status = BatchRunStatusCompleted
	b.FinishedAt = &now
}

// Cancel marks the run as stopped before every symbol was visited
func (b *BatchRun) Cancel(now time.Time, reason string) {
	b.Status = BatchRunStatusCancelled
	b.Error = reason
	b.FinishedAt = &now
}

// Duration returns how long the run took, or zero while it is still running
func (b *BatchRun) Duration() time.Duration {
	if b.FinishedAt == nil {
		return 0
	}
	return b.FinishedAt.Sub(b.StartedAt)
}

// IsRunning returns true while the run is in progress
func (b *BatchRun) IsRunning() bool {
	return b.Status == BatchRunStatusRunning
}
