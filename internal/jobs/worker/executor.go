package worker

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/F-O-T/contentagen-nx-sub000/internal/domain"
	"github.com/F-O-T/contentagen-nx-sub000/internal/domain/jobs"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/orchestrator"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/payload"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/pipeline"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/runtime"
	"github.com/F-O-T/contentagen-nx-sub000/internal/observability"
	perrors "github.com/F-O-T/contentagen-nx-sub000/internal/pkg/errors"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
)

// Outcome is what happened to a claimed job.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeRetrying  Outcome = "retrying"
	OutcomeFailed    Outcome = "failed"
	OutcomeCanceled  Outcome = "canceled"
	OutcomeReleased  Outcome = "released"
	// OutcomeLost means the job was no longer ours when we tried to record
	// the result, e.g. it was reclaimed after a missed heartbeat.
	OutcomeLost Outcome = "lost"
)

type ExecutorOptions struct {
	StageTimeout      time.Duration // default 10m
	HeartbeatInterval time.Duration // default 10s
	Metrics           *observability.Metrics
}

// Executor runs one claimed job through its handler and records the
// transition. The Temporal activities reuse RunStage and Finish.
type Executor struct {
	log      *logger.Logger
	orch     *orchestrator.Orchestrator
	registry *runtime.Registry
	tracer   trace.Tracer
	opts     ExecutorOptions
	now      func() time.Time
}

func NewExecutor(log *logger.Logger, orch *orchestrator.Orchestrator, registry *runtime.Registry, opts ExecutorOptions) *Executor {
	if opts.StageTimeout <= 0 {
		opts.StageTimeout = 10 * time.Minute
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 10 * time.Second
	}
	return &Executor{
		log:      log.With("component", "StageExecutor"),
		orch:     orch,
		registry: registry,
		tracer:   otel.Tracer("contentagen/jobs/worker"),
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Execute processes job, which must have been claimed (status running).
// ctx is the worker's lifetime: when it ends mid-stage the job is released
// without consuming an attempt.
func (e *Executor) Execute(ctx context.Context, job *domain.PipelineJob) Outcome {
	start := time.Now()
	out := e.execute(ctx, job)
	e.ObserveStage(job, string(out), time.Since(start))
	return out
}

// ObserveStage records a stage execution in the metrics, if enabled.
func (e *Executor) ObserveStage(job *domain.PipelineJob, status string, dur time.Duration) {
	e.opts.Metrics.ObserveStage(job.PipelineType, job.Stage, status, dur)
}

func (e *Executor) execute(ctx context.Context, job *domain.PipelineJob) Outcome {
	store := e.orch.Store()
	log := e.log.With("job", job.Stage, "job_id", job.ID, "pipeline_id", job.PipelineID, "attempt", job.Attempt)

	def, err := e.orch.Definition(pipeline.Type(job.PipelineType))
	if err != nil {
		return e.fail(ctx, log, nil, nil, job, perrors.Contract("%v", err))
	}
	p, err := payload.Decode(job.Payload)
	if err != nil {
		return e.fail(ctx, log, def, nil, job, perrors.Contract("%v", err))
	}

	run, err := store.GetRun(ctx, job.PipelineID)
	if err != nil {
		return e.handleError(ctx, log, def, p, job, err)
	}
	if run.Status.Terminal() {
		return e.cancel(log, job)
	}

	stop := e.heartbeat(ctx, job)
	fields, runErr := e.RunStage(ctx, def, job, run, p)
	stop()

	if runErr != nil {
		return e.handleError(ctx, log, def, p, job, runErr)
	}

	// Cancellation is honored between stages: the result of a stage that was
	// in flight is dropped.
	if current, err := store.GetRun(ctx, job.PipelineID); err == nil && current.Status.Terminal() {
		return e.cancel(log, job)
	}

	next := payload.Advance(p, fields)
	nextJob, err := e.orch.Next(def, job.Stage, next)
	if err != nil {
		return e.handleError(ctx, log, def, p, job, err)
	}
	ok, err := store.Complete(ctx, job.ID, nextJob)
	if err != nil {
		return e.handleError(ctx, log, def, p, job, perrors.Persistence("complete job", err))
	}
	if !ok {
		log.Warn("Job no longer running; result discarded")
		return OutcomeLost
	}
	if nextJob != nil {
		log.Info("Stage succeeded", "next", nextJob.Stage)
		return OutcomeSucceeded
	}
	log.Info("Pipeline succeeded")
	e.Finish(ctx, def, next, jobs.RunSucceeded, job.Stage, "", "")
	return OutcomeSucceeded
}

// RunStage checks the stage contract and runs its handler under a span, the
// stage timeout and panic recovery. It does not touch the queue.
func (e *Executor) RunStage(ctx context.Context, def *pipeline.Definition, job *domain.PipelineJob, run *domain.PipelineRun, p payload.Payload) (fields payload.Fields, err error) {
	desc, ok := def.Stage(job.Stage)
	if !ok {
		return nil, perrors.Contract("pipeline %s has no stage %q", def.Type, job.Stage)
	}
	if missing := p.Missing(desc.Required); len(missing) > 0 {
		return nil, perrors.Contract("stage %s: missing %v", job.Stage, missing)
	}
	h, ok := e.registry.Get(job.Stage)
	if !ok {
		return nil, fmt.Errorf("%w: no handler registered for stage=%s", perrors.ErrFatal, job.Stage)
	}

	stageCtx, cancel := context.WithTimeout(ctx, e.opts.StageTimeout)
	defer cancel()
	stageCtx, span := e.tracer.Start(stageCtx, "pipeline.stage "+job.Stage, trace.WithAttributes(
		attribute.String("pipeline.type", string(def.Type)),
		attribute.String("pipeline.id", job.PipelineID.String()),
		attribute.String("pipeline.stage", job.Stage),
		attribute.Int("pipeline.attempt", job.Attempt),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if run != nil {
		_ = e.orch.Store().MarkRunStage(ctx, run.ID, job.Stage)
	}
	e.orch.Emit(ctx, def, p, domain.StatusAnalyzing, job.Stage, "Running "+job.Stage)

	log := e.log.With("job", job.Stage, "job_id", job.ID, "pipeline_id", job.PipelineID)
	jc := runtime.NewContext(stageCtx, job, run, p, log, func(msg string) {
		e.orch.Emit(ctx, def, p, domain.StatusAnalyzing, job.Stage, msg)
	})

	defer func() {
		if r := recover(); r != nil {
			log.Error("Stage handler panic", "panic", r)
			fields = nil
			err = fmt.Errorf("%w: panic in stage %s: %v", perrors.ErrFatal, job.Stage, r)
		}
	}()
	return h.Run(jc)
}

// Finish records the run's terminal status and emits the matching event.
// errMsg is stored on the run; subscribers only see the text for reason.
func (e *Executor) Finish(ctx context.Context, def *pipeline.Definition, p payload.Payload, status domain.RunStatus, stage, errMsg, reason string) {
	id, err := p.UUID(payload.KeyPipelineID)
	if err != nil {
		e.log.Warn("finish without pipeline id", "pipeline_type", def.Type, "error", err)
		return
	}
	changed, err := e.orch.Store().FinishRun(ctx, id, status, stage, errMsg)
	if err != nil {
		e.log.Warn("FinishRun failed", "pipeline_id", id, "error", err)
	}
	if !changed {
		return
	}
	switch status {
	case jobs.RunSucceeded:
		e.orch.Emit(ctx, def, p, domain.StatusCompleted, stage, def.DoneMessage)
	case jobs.RunFailed:
		e.orch.Emit(ctx, def, p, domain.StatusFailed, stage, failureMessage(stage, reason))
	}
}

func (e *Executor) handleError(ctx context.Context, log *logger.Logger, def *pipeline.Definition, p payload.Payload, job *domain.PipelineJob, err error) Outcome {
	if ctx.Err() != nil {
		return e.release(log, job, err)
	}
	if perrors.Classify(err) == perrors.Retryable && e.canRetry(job) {
		attempt := job.Attempt + 1
		delay := e.orch.Retry().Backoff(attempt)
		if rerr := e.orch.Store().Retry(ctx, job.ID, attempt, e.now().Add(delay), err.Error()); rerr != nil {
			log.Error("Retry transition failed", "error", rerr)
		}
		log.Warn("Stage failed; retrying", "error", err, "next_attempt", attempt, "backoff", delay.String())
		return OutcomeRetrying
	}
	return e.fail(ctx, log, def, p, job, err)
}

func (e *Executor) canRetry(job *domain.PipelineJob) bool {
	max := job.MaxAttempts
	if max <= 0 {
		max = e.orch.Retry().MaxAttempts
	}
	return job.Attempt+1 < max
}

func (e *Executor) fail(ctx context.Context, log *logger.Logger, def *pipeline.Definition, p payload.Payload, job *domain.PipelineJob, err error) Outcome {
	msg := err.Error()
	log.Error("Stage failed", "error", err, "class", perrors.Classify(err).String())
	if ferr := e.orch.Store().Fail(ctx, job.ID, msg); ferr != nil {
		log.Error("Fail transition failed", "error", ferr)
	}
	if def != nil && p != nil {
		e.Finish(ctx, def, p, jobs.RunFailed, job.Stage, msg, perrors.Reason(err))
	} else {
		_, _ = e.orch.Store().FinishRun(ctx, job.PipelineID, jobs.RunFailed, job.Stage, msg)
	}
	return OutcomeFailed
}

func (e *Executor) cancel(log *logger.Logger, job *domain.PipelineJob) Outcome {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.orch.Store().Cancel(ctx, job.ID); err != nil {
		log.Warn("Cancel transition failed", "error", err)
	}
	log.Info("Run canceled; job skipped")
	return OutcomeCanceled
}

func (e *Executor) release(log *logger.Logger, job *domain.PipelineJob, cause error) Outcome {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.orch.Store().Release(ctx, job.ID); err != nil {
		log.Warn("Release failed", "error", err)
	}
	log.Info("Worker stopping; job released", "cause", cause)
	return OutcomeReleased
}

func (e *Executor) heartbeat(ctx context.Context, job *domain.PipelineJob) (stop func()) {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(e.opts.HeartbeatInterval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				if err := e.orch.Store().Heartbeat(ctx, job.ID); err != nil {
					e.log.Warn("Heartbeat failed", "job_id", job.ID, "error", err)
				}
			}
		}
	}()
	return func() { close(done) }
}

func failureMessage(stage, reason string) string {
	if reason == "" {
		return "Pipeline failed at " + stage
	}
	return fmt.Sprintf("Pipeline failed at %s: %s", stage, perrors.Describe(reason))
}
