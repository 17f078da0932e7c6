// Package orchestrator turns pipeline declarations into queued stage jobs.
// It owns triggering, the transition from one stage to the next, retries
// and cancellation; stage logic lives in the pipeline packages.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/F-O-T/contentagen-nx-sub000/internal/domain"
	"github.com/F-O-T/contentagen-nx-sub000/internal/domain/jobs"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/payload"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/pipeline"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/queue"
	perrors "github.com/F-O-T/contentagen-nx-sub000/internal/pkg/errors"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/ctxutil"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
	"github.com/F-O-T/contentagen-nx-sub000/internal/services"
)

// Launcher hands a freshly recorded run to an external engine instead of the
// queue. The Temporal backend implements it.
type Launcher interface {
	Launch(ctx context.Context, run *domain.PipelineRun, p payload.Payload) error
}

// JobHandle identifies an enqueued stage job.
type JobHandle struct {
	JobID      uuid.UUID `json:"jobId"`
	PipelineID uuid.UUID `json:"pipelineId"`
	Stage      string    `json:"stage"`
}

type Orchestrator struct {
	log      *logger.Logger
	store    queue.Store
	notify   services.StatusNotifier
	defs     []*pipeline.Definition
	retry    RetryPolicy
	launcher Launcher
}

// New validates every declaration and fails on the first broken one.
func New(log *logger.Logger, store queue.Store, notify services.StatusNotifier, defs []*pipeline.Definition, retry RetryPolicy) (*Orchestrator, error) {
	if store == nil {
		return nil, fmt.Errorf("queue store required")
	}
	if notify == nil {
		notify = services.NopNotifier{}
	}
	for _, d := range defs {
		if err := pipeline.Validate(d); err != nil {
			return nil, fmt.Errorf("pipeline %s: %w", d.Type, err)
		}
	}
	return &Orchestrator{
		log:    log.With("service", "Orchestrator"),
		store:  store,
		notify: notify,
		defs:   defs,
		retry:  retry.normalized(),
	}, nil
}

// SetLauncher routes new runs to l instead of the queue.
func (o *Orchestrator) SetLauncher(l Launcher) { o.launcher = l }

func (o *Orchestrator) Store() queue.Store { return o.store }

func (o *Orchestrator) Retry() RetryPolicy { return o.retry }

func (o *Orchestrator) Definitions() []*pipeline.Definition { return o.defs }

func (o *Orchestrator) Definition(t pipeline.Type) (*pipeline.Definition, error) {
	return pipeline.Lookup(o.defs, t)
}

// TriggerPipeline starts a run. The route is resolved here, once, and stored
// in the payload; workers only follow it.
func (o *Orchestrator) TriggerPipeline(ctx context.Context, t pipeline.Type, initial payload.Payload) (uuid.UUID, error) {
	def, err := o.Definition(t)
	if err != nil {
		return uuid.Nil, perrors.Contract("%v", err)
	}
	if missing := initial.Missing(def.InitialFields); len(missing) > 0 {
		return uuid.Nil, perrors.Contract("pipeline %s: missing %v", t, missing)
	}
	if err := def.Check(initial); err != nil {
		return uuid.Nil, err
	}
	subjectID, err := initial.UUID(def.SubjectKey)
	if err != nil {
		return uuid.Nil, perrors.Contract("pipeline %s: %v", t, err)
	}

	pipelineID := uuid.New()
	p := payload.Advance(def.Normalize(initial), payload.Fields{
		payload.KeyPipelineID:   pipelineID.String(),
		payload.KeyPipelineType: string(t),
	})
	route, err := def.Resolve(p)
	if err != nil {
		return uuid.Nil, err
	}
	names := make([]string, len(route))
	for i, s := range route {
		names[i] = s.Name
	}
	p = payload.Advance(p, payload.Fields{payload.KeyRoute: names})

	run := &domain.PipelineRun{
		ID:          pipelineID,
		Type:        string(t),
		SubjectID:   subjectID,
		SubjectType: string(def.SubjectType),
		Status:      jobs.RunRunning,
		Stage:       route[0].Name,
	}

	if o.launcher != nil {
		if missing := p.Missing(route[0].Required); len(missing) > 0 {
			return uuid.Nil, perrors.Contract("stage %s: missing %v", route[0].Name, missing)
		}
		if err := o.store.CreateRun(ctx, run, nil); err != nil {
			return uuid.Nil, perrors.Persistence("create run", err)
		}
		if err := o.launcher.Launch(ctx, run, p); err != nil {
			_, _ = o.store.FinishRun(ctx, run.ID, jobs.RunFailed, "", err.Error())
			return uuid.Nil, err
		}
	} else {
		first, err := o.buildJob(def, route[0], pipelineID, p)
		if err != nil {
			return uuid.Nil, err
		}
		if err := o.store.CreateRun(ctx, run, first); err != nil {
			return uuid.Nil, perrors.Persistence("create run", err)
		}
	}

	fields := []interface{}{"pipeline_id", pipelineID, "pipeline_type", t, "route", names}
	o.log.Info("Pipeline triggered", append(fields, ctxutil.LogFields(ctx)...)...)
	o.Emit(ctx, def, p, domain.StatusPending, "", "Queued")
	return pipelineID, nil
}

// Enqueue validates p against stage's contract and queues the job. The job id
// is derived from the run and stage, so enqueueing twice is a no-op.
func (o *Orchestrator) Enqueue(ctx context.Context, t pipeline.Type, stage string, p payload.Payload) (JobHandle, error) {
	def, err := o.Definition(t)
	if err != nil {
		return JobHandle{}, perrors.Contract("%v", err)
	}
	desc, ok := def.Stage(stage)
	if !ok {
		return JobHandle{}, perrors.Contract("pipeline %s has no stage %q", t, stage)
	}
	pipelineID, err := p.UUID(payload.KeyPipelineID)
	if err != nil {
		return JobHandle{}, perrors.Contract("stage %s: %v", stage, err)
	}
	if err := def.Check(p); err != nil {
		return JobHandle{}, err
	}
	job, err := o.buildJob(def, desc, pipelineID, p)
	if err != nil {
		return JobHandle{}, err
	}
	if _, err := o.store.Enqueue(ctx, job); err != nil {
		return JobHandle{}, perrors.Persistence("enqueue", err)
	}
	return JobHandle{JobID: job.ID, PipelineID: pipelineID, Stage: stage}, nil
}

// Next builds the job following current in the stored route, or returns nil
// when current is the last stage.
func (o *Orchestrator) Next(def *pipeline.Definition, current string, p payload.Payload) (*domain.PipelineJob, error) {
	route := p.Route()
	idx := -1
	for i, name := range route {
		if name == current {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, perrors.Contract("stage %s is not on the stored route %v", current, route)
	}
	if idx == len(route)-1 {
		return nil, nil
	}
	desc, ok := def.Stage(route[idx+1])
	if !ok {
		return nil, perrors.Contract("pipeline %s has no stage %q", def.Type, route[idx+1])
	}
	pipelineID, err := p.UUID(payload.KeyPipelineID)
	if err != nil {
		return nil, perrors.Contract("%v", err)
	}
	return o.buildJob(def, desc, pipelineID, p)
}

func (o *Orchestrator) buildJob(def *pipeline.Definition, stage pipeline.StageDescriptor, pipelineID uuid.UUID, p payload.Payload) (*domain.PipelineJob, error) {
	if missing := p.Missing(stage.Required); len(missing) > 0 {
		return nil, perrors.Contract("stage %s: missing %v", stage.Name, missing)
	}
	raw, err := p.Encode()
	if err != nil {
		return nil, perrors.Contract("stage %s: payload not encodable: %v", stage.Name, err)
	}
	return &domain.PipelineJob{
		ID:           jobs.StageJobID(pipelineID, stage.Name),
		PipelineID:   pipelineID,
		PipelineType: string(def.Type),
		Stage:        stage.Name,
		Queue:        stage.Name,
		Status:       jobs.JobQueued,
		MaxAttempts:  o.retry.MaxAttempts,
		Payload:      datatypes.JSON(raw),
	}, nil
}

// Cancel marks the run canceled and cancels its pending jobs. A job already
// running finishes its stage but nothing is enqueued after it. Canceling a
// terminal run returns it unchanged.
func (o *Orchestrator) Cancel(ctx context.Context, pipelineID uuid.UUID) (*domain.PipelineRun, error) {
	run, err := o.store.GetRun(ctx, pipelineID)
	if err != nil {
		return nil, err
	}
	if run.Status.Terminal() {
		return run, nil
	}
	changed, err := o.store.FinishRun(ctx, pipelineID, jobs.RunCanceled, "", "canceled")
	if err != nil {
		return nil, perrors.Persistence("cancel run", err)
	}
	if changed {
		list, err := o.store.ListJobs(ctx, pipelineID)
		if err != nil {
			return nil, perrors.Persistence("list jobs", err)
		}
		for _, j := range list {
			if j.Status == jobs.JobQueued || j.Status == jobs.JobRetrying {
				if err := o.store.Cancel(ctx, j.ID); err != nil {
					o.log.Warn("cancel job failed", "job_id", j.ID, "error", err)
				}
			}
		}
		if def, err := o.Definition(pipeline.Type(run.Type)); err == nil {
			o.publish(ctx, def, run.SubjectID, pipelineID, domain.StatusFailed, run.Stage, "Canceled")
		}
		o.log.Info("Pipeline canceled", "pipeline_id", pipelineID)
	}
	return o.store.GetRun(ctx, pipelineID)
}

func (o *Orchestrator) Status(ctx context.Context, pipelineID uuid.UUID) (*domain.PipelineRun, error) {
	return o.store.GetRun(ctx, pipelineID)
}

func (o *Orchestrator) Jobs(ctx context.Context, pipelineID uuid.UUID) ([]*domain.PipelineJob, error) {
	return o.store.ListJobs(ctx, pipelineID)
}

// Emit publishes a status event for the subject p belongs to.
func (o *Orchestrator) Emit(ctx context.Context, def *pipeline.Definition, p payload.Payload, status domain.Status, stage, msg string) {
	subjectID, err := p.UUID(def.SubjectKey)
	if err != nil {
		o.log.Warn("status event without subject", "pipeline_type", def.Type, "error", err)
		return
	}
	pipelineID, _ := p.UUID(payload.KeyPipelineID)
	o.publish(ctx, def, subjectID, pipelineID, status, stage, msg)
}

func (o *Orchestrator) publish(ctx context.Context, def *pipeline.Definition, subjectID, pipelineID uuid.UUID, status domain.Status, stage, msg string) {
	o.notify.Publish(ctx, domain.StatusEvent{
		SubjectID:   subjectID,
		SubjectType: def.SubjectType,
		Status:      status,
		Message:     msg,
		PipelineID:  pipelineID,
		Stage:       stage,
	})
}
