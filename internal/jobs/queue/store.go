// Package queue persists pipeline runs and their stage jobs and implements
// the job state machine:
//
//	queued -> running -> succeeded | retrying -> running ... | failed | canceled
package queue

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/F-O-T/contentagen-nx-sub000/internal/domain"
)

type Store interface {
	// CreateRun records a new run and enqueues its first job atomically. first
	// may be nil when another backend drives the stages.
	CreateRun(ctx context.Context, run *domain.PipelineRun, first *domain.PipelineJob) error
	GetRun(ctx context.Context, id uuid.UUID) (*domain.PipelineRun, error)
	// FinishRun moves a non-terminal run to status; it returns false when the
	// run was already terminal.
	FinishRun(ctx context.Context, id uuid.UUID, status domain.RunStatus, stage, errMsg string) (bool, error)
	// MarkRunStage records the stage currently executing.
	MarkRunStage(ctx context.Context, id uuid.UUID, stage string) error

	// Enqueue inserts job unless a job with its id exists; it reports whether
	// the row was new.
	Enqueue(ctx context.Context, job *domain.PipelineJob) (bool, error)
	GetJob(ctx context.Context, id uuid.UUID) (*domain.PipelineJob, error)
	ListJobs(ctx context.Context, pipelineID uuid.UUID) ([]*domain.PipelineJob, error)
	// Claim returns the next runnable job of queue, or nil.
	Claim(ctx context.Context, queue string, staleAfter time.Duration) (*domain.PipelineJob, error)
	Heartbeat(ctx context.Context, jobID uuid.UUID) error
	// Complete marks a running job succeeded and, in the same transaction,
	// enqueues next when non-nil. A next job whose id already exists is
	// ignored. It returns false if the job was no longer running.
	Complete(ctx context.Context, jobID uuid.UUID, next *domain.PipelineJob) (bool, error)
	Retry(ctx context.Context, jobID uuid.UUID, attempt int, runAt time.Time, errMsg string) error
	Fail(ctx context.Context, jobID uuid.UUID, errMsg string) error
	Cancel(ctx context.Context, jobID uuid.UUID) error
	// Release puts a running job back in the queue without consuming an
	// attempt. Used on shutdown.
	Release(ctx context.Context, jobID uuid.UUID) error

	// Wakeups delivers a signal whenever work may have become available on
	// queue. It may be nil when the backend cannot notify.
	Wakeups(queue string) <-chan struct{}
}
