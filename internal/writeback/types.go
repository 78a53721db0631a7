package writeback

import (
	"context"
	"time"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Task persists one cache entry.
type Task func(ctx context.Context) error

// Job is the bookkeeping record of an enqueued Task.
type Job struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (j *Job) terminal() bool {
	return j.Status == StatusSuccess || j.Status == StatusFailed
}
