package runtime

import (
	"context"

	"github.com/google/uuid"

	"github.com/F-O-T/contentagen-nx-sub000/internal/domain"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/payload"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
)

/*
Context is the execution handle for a single stage job.
It carries:
  - Ctx: bounded by the stage timeout and canceled on shutdown
  - Job: the claimed pipeline_job row
  - Run: the owning pipeline_run at claim time
  - Payload: the decoded, read-only stage input
  - Log: scoped to the job

Stages never touch the queue directly. They return produced fields and
let the executor record the transition.
*/
type Context struct {
	Ctx     context.Context
	Job     *domain.PipelineJob
	Run     *domain.PipelineRun
	Payload payload.Payload
	Log     *logger.Logger

	progress func(msg string)
}

// NewContext builds a Context. progress may be nil.
func NewContext(ctx context.Context, job *domain.PipelineJob, run *domain.PipelineRun, p payload.Payload, log *logger.Logger, progress func(msg string)) *Context {
	if p == nil {
		p = payload.Payload{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Context{
		Ctx:      ctx,
		Job:      job,
		Run:      run,
		Payload:  p,
		Log:      log,
		progress: progress,
	}
}

/*
Progress publishes a non-terminal "analyzing" status event with msg.
Best effort: it never fails the stage.
*/
func (c *Context) Progress(msg string) {
	if c == nil || c.progress == nil {
		return
	}
	c.progress(msg)
}

func (c *Context) Stage() string {
	if c.Job == nil {
		return ""
	}
	return c.Job.Stage
}

func (c *Context) PipelineID() uuid.UUID {
	if c.Job == nil {
		return uuid.Nil
	}
	return c.Job.PipelineID
}
