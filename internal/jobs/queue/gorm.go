package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/F-O-T/contentagen-nx-sub000/internal/data/repos"
	"github.com/F-O-T/contentagen-nx-sub000/internal/domain"
	"github.com/F-O-T/contentagen-nx-sub000/internal/domain/jobs"
	"github.com/F-O-T/contentagen-nx-sub000/internal/pkg/dbctx"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
)

// NotifyChannel is the Postgres channel enqueues are announced on. The
// notification payload is the queue name.
const NotifyChannel = "pipeline_jobs"

// GormStore is the durable Store. On Postgres, enqueues are announced with
// pg_notify so a Listener in every process can wake the right pool.
type GormStore struct {
	db   *gorm.DB
	log  *logger.Logger
	jobs repos.PipelineJobRepo
	runs repos.PipelineRunRepo
	sig  *signals
}

func NewGormStore(db *gorm.DB, log *logger.Logger, r repos.Repos) *GormStore {
	return &GormStore{
		db:   db,
		log:  log.With("service", "GormQueueStore"),
		jobs: r.PipelineJobs,
		runs: r.PipelineRuns,
		sig:  newSignals(),
	}
}

// announce wakes local pools directly and, on Postgres, every other process.
func (s *GormStore) announce(ctx context.Context, queue string) {
	s.sig.notify(queue)
	if s.db.Dialector.Name() != "postgres" {
		return
	}
	if err := s.db.WithContext(ctx).Exec("SELECT pg_notify(?, ?)", NotifyChannel, queue).Error; err != nil {
		s.log.Warn("pg_notify failed", "queue", queue, "error", err)
	}
}

// Signal is invoked by a Listener for notifications from other processes.
func (s *GormStore) Signal(queue string) {
	s.sig.notify(queue)
}

func (s *GormStore) CreateRun(ctx context.Context, run *domain.PipelineRun, first *domain.PipelineJob) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := s.runs.Create(dbc, run); err != nil {
			return err
		}
		if first == nil {
			return nil
		}
		return s.jobs.Create(dbc, []*domain.PipelineJob{first})
	})
	if err != nil {
		return err
	}
	if first != nil {
		s.announce(ctx, first.Queue)
	}
	return nil
}

func (s *GormStore) GetRun(ctx context.Context, id uuid.UUID) (*domain.PipelineRun, error) {
	return s.runs.GetByID(dbctx.For(ctx), id)
}

func (s *GormStore) FinishRun(ctx context.Context, id uuid.UUID, status domain.RunStatus, stage, errMsg string) (bool, error) {
	updates := map[string]interface{}{"status": status, "error": errMsg}
	if stage != "" {
		updates["stage"] = stage
	}
	return s.runs.UpdateUnlessTerminal(dbctx.For(ctx), id, updates)
}

func (s *GormStore) MarkRunStage(ctx context.Context, id uuid.UUID, stage string) error {
	_, err := s.runs.UpdateUnlessTerminal(dbctx.For(ctx), id, map[string]interface{}{"stage": stage})
	return err
}

func (s *GormStore) Enqueue(ctx context.Context, job *domain.PipelineJob) (bool, error) {
	dbc := dbctx.For(ctx)
	if job.ID != uuid.Nil {
		if _, err := s.jobs.GetByID(dbc, job.ID); err == nil {
			return false, nil
		}
	}
	if err := s.jobs.Create(dbc, []*domain.PipelineJob{job}); err != nil {
		return false, err
	}
	s.announce(ctx, job.Queue)
	return true, nil
}

func (s *GormStore) GetJob(ctx context.Context, id uuid.UUID) (*domain.PipelineJob, error) {
	return s.jobs.GetByID(dbctx.For(ctx), id)
}

func (s *GormStore) ListJobs(ctx context.Context, pipelineID uuid.UUID) ([]*domain.PipelineJob, error) {
	return s.jobs.ListByPipeline(dbctx.For(ctx), pipelineID)
}

// Claim first fails the abandoned jobs of queue that are out of attempts,
// along with their runs, then claims the next runnable job.
func (s *GormStore) Claim(ctx context.Context, queue string, staleAfter time.Duration) (*domain.PipelineJob, error) {
	now := time.Now().UTC()
	abandoned, err := s.jobs.FailAbandoned(dbctx.For(ctx), queue, now, staleAfter)
	if err != nil {
		return nil, err
	}
	for _, job := range abandoned {
		if _, err := s.FinishRun(ctx, job.PipelineID, jobs.RunFailed, job.Stage, job.Error); err != nil {
			s.log.Warn("Failing abandoned run failed", "pipeline_id", job.PipelineID, "error", err)
		}
	}
	return s.jobs.ClaimNext(dbctx.For(ctx), queue, now, staleAfter)
}

func (s *GormStore) Heartbeat(ctx context.Context, jobID uuid.UUID) error {
	return s.jobs.Heartbeat(dbctx.For(ctx), jobID)
}

func (s *GormStore) Complete(ctx context.Context, jobID uuid.UUID, next *domain.PipelineJob) (bool, error) {
	var completed bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		ok, err := s.jobs.Transition(dbc, jobID, []jobs.JobStatus{jobs.JobRunning}, map[string]interface{}{
			"status": jobs.JobSucceeded,
			"error":  "",
		})
		if err != nil || !ok {
			return err
		}
		completed = true
		if next == nil {
			return nil
		}
		return s.jobs.Create(dbc, []*domain.PipelineJob{next})
	})
	if err != nil {
		return false, err
	}
	if completed && next != nil {
		s.announce(ctx, next.Queue)
	}
	return completed, nil
}

func (s *GormStore) Retry(ctx context.Context, jobID uuid.UUID, attempt int, runAt time.Time, errMsg string) error {
	_, err := s.jobs.Transition(dbctx.For(ctx), jobID, []jobs.JobStatus{jobs.JobRunning}, map[string]interface{}{
		"status":    jobs.JobRetrying,
		"attempt":   attempt,
		"run_at":    runAt.UTC(),
		"error":     errMsg,
		"locked_at": nil,
	})
	return err
}

func (s *GormStore) Fail(ctx context.Context, jobID uuid.UUID, errMsg string) error {
	_, err := s.jobs.Transition(dbctx.For(ctx), jobID, []jobs.JobStatus{jobs.JobRunning, jobs.JobQueued, jobs.JobRetrying}, map[string]interface{}{
		"status":    jobs.JobFailed,
		"error":     errMsg,
		"locked_at": nil,
	})
	return err
}

func (s *GormStore) Cancel(ctx context.Context, jobID uuid.UUID) error {
	_, err := s.jobs.Transition(dbctx.For(ctx), jobID, []jobs.JobStatus{jobs.JobRunning, jobs.JobQueued, jobs.JobRetrying}, map[string]interface{}{
		"status":    jobs.JobCanceled,
		"locked_at": nil,
	})
	return err
}

func (s *GormStore) Release(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.jobs.GetByID(dbctx.For(ctx), jobID)
	if err != nil {
		return err
	}
	ok, err := s.jobs.Transition(dbctx.For(ctx), jobID, []jobs.JobStatus{jobs.JobRunning}, map[string]interface{}{
		"status":       jobs.JobQueued,
		"locked_at":    nil,
		"heartbeat_at": nil,
	})
	if err == nil && ok {
		s.announce(ctx, job.Queue)
	}
	return err
}

func (s *GormStore) Wakeups(queue string) <-chan struct{} {
	return s.sig.channel(queue)
}
