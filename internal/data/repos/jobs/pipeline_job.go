package jobs

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/F-O-T/contentagen-nx-sub000/internal/domain/jobs"
	"github.com/F-O-T/contentagen-nx-sub000/internal/pkg/dbctx"
	perrors "github.com/F-O-T/contentagen-nx-sub000/internal/pkg/errors"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
)

type PipelineJobRepo interface {
	// Create inserts jobs, silently skipping ids that already exist.
	Create(dbc dbctx.Context, jobs []*types.PipelineJob) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.PipelineJob, error)
	ListByPipeline(dbc dbctx.Context, pipelineID uuid.UUID) ([]*types.PipelineJob, error)
	// ClaimNext moves the oldest runnable job of queue to running. A job is
	// runnable when queued/retrying with run_at <= now, or running with a
	// heartbeat older than staleRunning and attempts left. Returns nil when
	// nothing is runnable.
	ClaimNext(dbc dbctx.Context, queue string, now time.Time, staleRunning time.Duration) (*types.PipelineJob, error)
	// FailAbandoned fails the stale running jobs of queue whose reclaim would
	// reach max_attempts and returns them.
	FailAbandoned(dbc dbctx.Context, queue string, now time.Time, staleRunning time.Duration) ([]*types.PipelineJob, error)
	// Transition applies updates only while the job is in one of from.
	Transition(dbc dbctx.Context, id uuid.UUID, from []types.JobStatus, updates map[string]interface{}) (bool, error)
	Heartbeat(dbc dbctx.Context, id uuid.UUID) error
}

type pipelineJobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPipelineJobRepo(db *gorm.DB, baseLog *logger.Logger) PipelineJobRepo {
	return &pipelineJobRepo{
		db:  db,
		log: baseLog.With("repo", "PipelineJobRepo"),
	}
}

func (r *pipelineJobRepo) Create(dbc dbctx.Context, jobs []*types.PipelineJob) error {
	if len(jobs) == 0 {
		return nil
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&jobs).Error
}

func (r *pipelineJobRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.PipelineJob, error) {
	var job types.PipelineJob
	err := dbc.DB(r.db).Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("pipeline job %s: %w", id, perrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *pipelineJobRepo) ListByPipeline(dbc dbctx.Context, pipelineID uuid.UUID) ([]*types.PipelineJob, error) {
	var out []*types.PipelineJob
	err := dbc.DB(r.db).
		Where("pipeline_id = ?", pipelineID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

func (r *pipelineJobRepo) ClaimNext(dbc dbctx.Context, queue string, now time.Time, staleRunning time.Duration) (*types.PipelineJob, error) {
	staleCutoff := now.Add(-staleRunning)
	var claimed *types.PipelineJob
	err := dbc.DB(r.db).Transaction(func(txx *gorm.DB) error {
		q := txx
		if txx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		var job types.PipelineJob
		qErr := q.
			Where("queue = ?", queue).
			Where(`
        (
          (status IN ? AND run_at <= ?)
          OR (status = ? AND heartbeat_at IS NOT NULL AND heartbeat_at < ? AND attempt + 1 < max_attempts)
        )
      `, []types.JobStatus{types.JobQueued, types.JobRetrying}, now, types.JobRunning, staleCutoff).
			Order("run_at ASC").
			Order("created_at ASC").
			First(&job).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}

		updates := map[string]interface{}{
			"status":       types.JobRunning,
			"locked_at":    now,
			"heartbeat_at": now,
			"updated_at":   now,
		}
		// A stale running job belonged to a worker that died mid-stage; the
		// lost execution counts as an attempt.
		if job.Status == types.JobRunning {
			updates["attempt"] = gorm.Expr("attempt + 1")
			job.Attempt++
		}
		res := txx.Model(&types.PipelineJob{}).
			Where("id = ? AND status = ?", job.ID, job.Status).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		job.Status = types.JobRunning
		job.LockedAt = &now
		job.HeartbeatAt = &now
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *pipelineJobRepo) FailAbandoned(dbc dbctx.Context, queue string, now time.Time, staleRunning time.Duration) ([]*types.PipelineJob, error) {
	var stale []*types.PipelineJob
	err := dbc.DB(r.db).
		Where("queue = ? AND status = ?", queue, types.JobRunning).
		Where("heartbeat_at IS NOT NULL AND heartbeat_at < ?", now.Add(-staleRunning)).
		Where("attempt + 1 >= max_attempts").
		Find(&stale).Error
	if err != nil {
		return nil, err
	}
	var out []*types.PipelineJob
	for _, job := range stale {
		msg := types.AbandonedMessage(job.Stage, job.Attempt+1)
		ok, err := r.Transition(dbc, job.ID, []types.JobStatus{types.JobRunning}, map[string]interface{}{
			"status":     types.JobFailed,
			"attempt":    job.Attempt + 1,
			"error":      msg,
			"locked_at":  nil,
			"updated_at": now,
		})
		if err != nil {
			return out, err
		}
		if !ok {
			continue
		}
		job.Status = types.JobFailed
		job.Attempt++
		job.Error = msg
		out = append(out, job)
	}
	if len(out) > 0 {
		r.log.Warn("Failed abandoned jobs", "queue", queue, "count", len(out))
	}
	return out, nil
}

func (r *pipelineJobRepo) Transition(dbc dbctx.Context, id uuid.UUID, from []types.JobStatus, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	q := dbc.DB(r.db).Model(&types.PipelineJob{}).Where("id = ?", id)
	if len(from) > 0 {
		q = q.Where("status IN ?", from)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *pipelineJobRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	return dbc.DB(r.db).
		Model(&types.PipelineJob{}).
		Where("id = ? AND status = ?", id, types.JobRunning).
		Updates(map[string]interface{}{"heartbeat_at": now, "updated_at": now}).Error
}
