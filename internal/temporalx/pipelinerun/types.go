// Package pipelinerun runs a pipeline as one Temporal workflow: each stage
// on the stored route is an activity, and Temporal owns the retries.
package pipelinerun

import (
	"time"

	"github.com/F-O-T/contentagen-nx-sub000/internal/domain/jobs"
)

const (
	WorkflowName   = "pipeline_run"
	StageActivity  = "pipeline_stage"
	FinishActivity = "pipeline_finish"

	// FatalErrorType marks application errors Temporal must not retry.
	FatalErrorType = "fatal"
	// RetryableErrorType marks stage errors left to the retry policy.
	RetryableErrorType = "retryable"
)

type RetryParams struct {
	MaxAttempts int           `json:"maxAttempts"`
	MinBackoff  time.Duration `json:"minBackoff"`
	MaxBackoff  time.Duration `json:"maxBackoff"`
}

type RunInput struct {
	PipelineID   string        `json:"pipelineId"`
	PipelineType string        `json:"pipelineType"`
	Payload      []byte        `json:"payload"`
	Retry        RetryParams   `json:"retry"`
	StageTimeout time.Duration `json:"stageTimeout"`
}

type StageInput struct {
	PipelineID   string `json:"pipelineId"`
	PipelineType string `json:"pipelineType"`
	Stage        string `json:"stage"`
	MaxAttempts  int    `json:"maxAttempts"`
	Payload      []byte `json:"payload"`
}

type StageResult struct {
	// Fields is the JSON encoded output of the stage.
	Fields []byte `json:"fields,omitempty"`
	// Canceled reports that the run was canceled before or during the stage.
	Canceled bool `json:"canceled,omitempty"`
}

type FinishInput struct {
	PipelineType string         `json:"pipelineType"`
	Stage        string         `json:"stage"`
	Status       jobs.RunStatus `json:"status"`
	Error        string         `json:"error,omitempty"`
	Reason       string         `json:"reason,omitempty"`
	Payload      []byte         `json:"payload"`
}
