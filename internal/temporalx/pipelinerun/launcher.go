package pipelinerun

import (
	"context"
	"errors"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/F-O-T/contentagen-nx-sub000/internal/domain"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/orchestrator"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/payload"
	perrors "github.com/F-O-T/contentagen-nx-sub000/internal/pkg/errors"
)

// Launcher starts one pipeline_run workflow per run. The workflow id is the
// pipeline id, so a second start for the same run is rejected.
type Launcher struct {
	client       temporalsdkclient.Client
	taskQueue    string
	retry        orchestrator.RetryPolicy
	stageTimeout time.Duration
}

func NewLauncher(c temporalsdkclient.Client, taskQueue string, retry orchestrator.RetryPolicy, stageTimeout time.Duration) *Launcher {
	return &Launcher{client: c, taskQueue: taskQueue, retry: retry, stageTimeout: stageTimeout}
}

func (l *Launcher) Launch(ctx context.Context, run *domain.PipelineRun, p payload.Payload) error {
	raw, err := p.Encode()
	if err != nil {
		return perrors.Contract("payload not encodable: %v", err)
	}
	_, err = l.client.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:                    run.ID.String(),
		TaskQueue:             l.taskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}, WorkflowName, RunInput{
		PipelineID:   run.ID.String(),
		PipelineType: run.Type,
		Payload:      raw,
		Retry: RetryParams{
			MaxAttempts: l.retry.MaxAttempts,
			MinBackoff:  l.retry.MinBackoff,
			MaxBackoff:  l.retry.MaxBackoff,
		},
		StageTimeout: l.stageTimeout,
	})
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			return perrors.Contract("pipeline %s already started", run.ID)
		}
		return perrors.Transient("start workflow", err)
	}
	return nil
}
