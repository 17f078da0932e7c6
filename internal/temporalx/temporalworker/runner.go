package temporalworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
	"github.com/F-O-T/contentagen-nx-sub000/internal/temporalx"
	"github.com/F-O-T/contentagen-nx-sub000/internal/temporalx/pipelinerun"
)

const startMaxWait = 60 * time.Second

type Runner struct {
	log  *logger.Logger
	tc   temporalsdkclient.Client
	cfg  temporalx.Config
	acts *pipelinerun.Activities
}

func NewRunner(log *logger.Logger, tc temporalsdkclient.Client, cfg temporalx.Config, acts *pipelinerun.Activities) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if acts == nil || acts.Orch == nil || acts.Exec == nil {
		return nil, fmt.Errorf("temporal worker missing deps")
	}
	return &Runner{log: log.With("service", "TemporalWorker"), tc: tc, cfg: cfg.WithDefaults(), acts: acts}, nil
}

// Start polls the task queue until ctx ends. Startup is retried because the
// namespace may still be provisioning.
func (r *Runner) Start(ctx context.Context) error {
	r.log.Info("Starting Temporal worker", "address", r.cfg.Address, "namespace", r.cfg.Namespace, "task_queue", r.cfg.TaskQueue)

	deadline := time.Now().Add(startMaxWait)
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		w := r.newWorker()
		startErr := w.Start()
		if startErr == nil {
			go func() {
				<-ctx.Done()
				w.Stop()
			}()
			r.log.Info("Temporal worker started", "task_queue", r.cfg.TaskQueue, "attempts", attempt)
			return nil
		}
		w.Stop()

		var nfe *serviceerror.NamespaceNotFound
		if errors.As(startErr, &nfe) {
			if !r.cfg.AutoRegisterNamespace {
				return fmt.Errorf("temporal namespace not found (namespace=%s): %w", r.cfg.Namespace, startErr)
			}
			if err := temporalx.EnsureNamespace(ctx, r.log, r.cfg); err != nil {
				r.log.Warn("Temporal namespace ensure failed", "namespace", r.cfg.Namespace, "error", err)
			}
		}
		if time.Now().After(deadline) {
			return startErr
		}
		r.log.Warn("Temporal worker failed to start; retrying", "attempt", attempt, "error", startErr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 250 * time.Millisecond):
		}
	}
}

func (r *Runner) newWorker() worker.Worker {
	w := worker.New(r.tc, r.cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     r.cfg.WorkerConcurrency,
		MaxConcurrentWorkflowTaskExecutionSize: r.cfg.WorkerConcurrency,
	})
	w.RegisterWorkflowWithOptions(pipelinerun.Workflow, workflow.RegisterOptions{Name: pipelinerun.WorkflowName})
	w.RegisterActivityWithOptions(r.acts.Stage, activity.RegisterOptions{Name: pipelinerun.StageActivity})
	w.RegisterActivityWithOptions(r.acts.Finish, activity.RegisterOptions{Name: pipelinerun.FinishActivity})
	return w
}
