package service

import (
	"context"
	"time"

	"github.com/dandantas/tasyrunner/internal/model"
)

// Ledger is the durable record of jobs and their item results. It is the
// only state shared between chunk workers and HTTP readers.
type Ledger interface {
	CreateJob(ctx context.Context, job *model.Job) (string, error)

	// AppendResult stores res and increments completed_count as a single
	// atomic step. A result whose Key is already stored is not applied again.
	// Appending to a job that is no longer RUNNING fails with ErrJobClosed.
	AppendResult(ctx context.Context, jobID string, res model.ItemResult) error

	// Touch records that the owner is still working on the job
	Touch(ctx context.Context, jobID string, at time.Time) error

	// MarkComplete fails with ErrJobClosed when the job was already closed
	MarkComplete(ctx context.Context, jobID string, endedAt time.Time) error
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	ListJobs(ctx context.Context, filter model.JobFilter) ([]model.Job, error)
	ListRunning(ctx context.Context) ([]model.Job, error)
}

// Notifier delivers the summary of a finished job
type Notifier interface {
	Notify(ctx context.Context, job *model.Job) error
}
