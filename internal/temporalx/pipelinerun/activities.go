package pipelinerun

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/F-O-T/contentagen-nx-sub000/internal/domain"
	"github.com/F-O-T/contentagen-nx-sub000/internal/domain/jobs"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/orchestrator"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/payload"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/pipeline"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/worker"
	perrors "github.com/F-O-T/contentagen-nx-sub000/internal/pkg/errors"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
)

type Activities struct {
	Log  *logger.Logger
	Orch *orchestrator.Orchestrator
	Exec *worker.Executor

	HeartbeatInterval time.Duration // default 10s
}

// Stage runs one stage through the shared executor. Fatal errors come back
// as non-retryable application errors.
func (a *Activities) Stage(ctx context.Context, in StageInput) (StageResult, error) {
	def, err := a.Orch.Definition(pipeline.Type(in.PipelineType))
	if err != nil {
		return StageResult{}, toTemporal(perrors.Contract("%v", err))
	}
	p, err := payload.Decode(in.Payload)
	if err != nil {
		return StageResult{}, toTemporal(perrors.Contract("%v", err))
	}
	pipelineID, err := uuid.Parse(in.PipelineID)
	if err != nil {
		return StageResult{}, toTemporal(perrors.Contract("pipeline id: %v", err))
	}

	run, err := a.Orch.Status(ctx, pipelineID)
	if err != nil {
		return StageResult{}, toTemporal(err)
	}
	if run.Status.Terminal() {
		return StageResult{Canceled: true}, nil
	}

	info := activity.GetInfo(ctx)
	job := &domain.PipelineJob{
		ID:           jobs.StageJobID(pipelineID, in.Stage),
		PipelineID:   pipelineID,
		PipelineType: in.PipelineType,
		Stage:        in.Stage,
		Queue:        info.TaskQueue,
		Status:       jobs.JobRunning,
		Attempt:      int(info.Attempt) - 1,
		MaxAttempts:  in.MaxAttempts,
	}

	stop := a.heartbeat(ctx)
	start := time.Now()
	fields, err := a.Exec.RunStage(ctx, def, job, run, p)
	stop()
	status := "succeeded"
	if err != nil {
		status = "failed"
	}
	a.Exec.ObserveStage(job, status, time.Since(start))
	if err != nil {
		a.Log.Warn("Stage activity failed", "stage", in.Stage, "pipeline_id", pipelineID, "attempt", job.Attempt, "error", err)
		return StageResult{}, toTemporal(err)
	}

	if current, err := a.Orch.Status(ctx, pipelineID); err == nil && current.Status.Terminal() {
		return StageResult{Canceled: true}, nil
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return StageResult{}, toTemporal(fmt.Errorf("%w: encode stage output: %v", perrors.ErrFatal, err))
	}
	return StageResult{Fields: raw}, nil
}

// Finish records the terminal status and emits the terminal event.
func (a *Activities) Finish(ctx context.Context, in FinishInput) error {
	def, err := a.Orch.Definition(pipeline.Type(in.PipelineType))
	if err != nil {
		return toTemporal(perrors.Contract("%v", err))
	}
	p, err := payload.Decode(in.Payload)
	if err != nil {
		return toTemporal(perrors.Contract("%v", err))
	}
	a.Exec.Finish(ctx, def, p, in.Status, in.Stage, in.Error, in.Reason)
	return nil
}

func (a *Activities) heartbeat(ctx context.Context) (stop func()) {
	every := a.HeartbeatInterval
	if every <= 0 {
		every = 10 * time.Second
	}
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	return func() { close(done) }
}

func toTemporal(err error) error {
	reason := perrors.Reason(err)
	if perrors.Classify(err) == perrors.Fatal {
		return temporal.NewNonRetryableApplicationError(err.Error(), FatalErrorType, err, reason)
	}
	return temporal.NewApplicationErrorWithCause(err.Error(), RetryableErrorType, err, reason)
}
