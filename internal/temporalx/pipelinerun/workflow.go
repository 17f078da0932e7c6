package pipelinerun

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/F-O-T/contentagen-nx-sub000/internal/domain/jobs"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/payload"
	perrors "github.com/F-O-T/contentagen-nx-sub000/internal/pkg/errors"
)

// Workflow executes the stored route stage by stage, merging each stage's
// output into the payload the same way the queue backend does.
func Workflow(ctx workflow.Context, in RunInput) error {
	p, err := payload.Decode(in.Payload)
	if err != nil {
		return temporal.NewNonRetryableApplicationError("decode payload", FatalErrorType, err)
	}
	route := p.Route()
	if len(route) == 0 {
		return temporal.NewNonRetryableApplicationError(fmt.Sprintf("pipeline %s has no route", in.PipelineID), FatalErrorType, nil)
	}

	timeout := in.StageTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	stageCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        in.Retry.MinBackoff,
			BackoffCoefficient:     2,
			MaximumInterval:        in.Retry.MaxBackoff,
			MaximumAttempts:        int32(in.Retry.MaxAttempts),
			NonRetryableErrorTypes: []string{FatalErrorType},
		},
	})
	finishCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 5},
	})
	logger := workflow.GetLogger(ctx)

	for _, stage := range route {
		raw, err := p.Encode()
		if err != nil {
			return temporal.NewNonRetryableApplicationError("encode payload", FatalErrorType, err)
		}
		var res StageResult
		err = workflow.ExecuteActivity(stageCtx, StageActivity, StageInput{
			PipelineID:   in.PipelineID,
			PipelineType: in.PipelineType,
			Stage:        stage,
			MaxAttempts:  in.Retry.MaxAttempts,
			Payload:      raw,
		}).Get(ctx, &res)
		if err != nil {
			logger.Warn("Stage failed", "stage", stage, "error", err)
			finish(finishCtx, in.PipelineType, stage, jobs.RunFailed, errorMessage(err), errorReason(err), raw)
			return err
		}
		if res.Canceled {
			logger.Info("Run canceled", "stage", stage)
			return nil
		}
		var fields payload.Fields
		if len(res.Fields) > 0 {
			if err := json.Unmarshal(res.Fields, &fields); err != nil {
				finish(finishCtx, in.PipelineType, stage, jobs.RunFailed, "malformed stage output", perrors.ReasonMalformedOutput, raw)
				return temporal.NewNonRetryableApplicationError("decode stage output", FatalErrorType, err)
			}
		}
		p = payload.Advance(p, fields)
	}

	raw, err := p.Encode()
	if err != nil {
		return temporal.NewNonRetryableApplicationError("encode payload", FatalErrorType, err)
	}
	finish(finishCtx, in.PipelineType, route[len(route)-1], jobs.RunSucceeded, "", "", raw)
	return nil
}

func finish(ctx workflow.Context, pipelineType, stage string, status jobs.RunStatus, msg, reason string, raw []byte) {
	err := workflow.ExecuteActivity(ctx, FinishActivity, FinishInput{
		PipelineType: pipelineType,
		Stage:        stage,
		Status:       status,
		Error:        msg,
		Reason:       reason,
		Payload:      raw,
	}).Get(ctx, nil)
	if err != nil {
		workflow.GetLogger(ctx).Error("Finish activity failed", "stage", stage, "error", err)
	}
}

// errorMessage unwraps the activity error down to the stage's own message.
func errorMessage(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Message()
	}
	var timeoutErr *temporal.TimeoutError
	if errors.As(err, &timeoutErr) {
		return "stage timed out"
	}
	return err.Error()
}

// errorReason recovers the reason code the stage activity attached.
func errorReason(err error) string {
	var timeoutErr *temporal.TimeoutError
	if errors.As(err, &timeoutErr) {
		return perrors.ReasonTimeout
	}
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.HasDetails() {
		var reason string
		if appErr.Details(&reason) == nil && reason != "" {
			return reason
		}
	}
	return perrors.ReasonInternal
}
