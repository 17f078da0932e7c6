package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/F-O-T/contentagen-nx-sub000/internal/domain/content"
	"github.com/F-O-T/contentagen-nx-sub000/internal/domain/jobs"
	"github.com/F-O-T/contentagen-nx-sub000/internal/domain/knowledge"
)

type (
	PipelineJob    = jobs.PipelineJob
	PipelineRun    = jobs.PipelineRun
	JobStatus      = jobs.JobStatus
	RunStatus      = jobs.RunStatus
	Agent          = content.Agent
	ContentRequest = content.ContentRequest
	Content        = content.Content
	Idea           = content.Idea
	KnowledgeJob   = knowledge.Job
	KnowledgeChunk = knowledge.Chunk
	KnowledgePoint = knowledge.Point
)

type SubjectType string

const (
	SubjectContent      SubjectType = "content"
	SubjectIdea         SubjectType = "idea"
	SubjectKnowledgeJob SubjectType = "knowledgeJob"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAnalyzing Status = "analyzing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// StatusEvent is an ephemeral progress notification. It is never persisted.
// Seq increases monotonically per subject so consumers can discard stale or
// duplicated deliveries after a reconnect.
type StatusEvent struct {
	SubjectID   uuid.UUID   `json:"subjectId"`
	SubjectType SubjectType `json:"subjectType"`
	Status      Status      `json:"status"`
	Message     string      `json:"message"`
	Timestamp   time.Time   `json:"timestamp"`
	Seq         int64       `json:"seq"`
	PipelineID  uuid.UUID   `json:"pipelineId,omitempty"`
	Stage       string      `json:"stage,omitempty"`
}

// AllModels lists every table the service migrates.
func AllModels() []any {
	return []any{
		&jobs.PipelineRun{},
		&jobs.PipelineJob{},
		&content.Agent{},
		&content.ContentRequest{},
		&content.Content{},
		&content.Idea{},
		&knowledge.Job{},
		&knowledge.Chunk{},
	}
}
