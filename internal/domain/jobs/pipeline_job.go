package jobs

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobRetrying  JobStatus = "retrying"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobCanceled  JobStatus = "canceled"
)

// Terminal reports whether no further transition is allowed.
func (s JobStatus) Terminal() bool {
	return s == JobSucceeded || s == JobFailed || s == JobCanceled
}

// PipelineJob is one stage execution of a pipeline run. Queue equals Stage:
// every stage is served by its own worker pool.
type PipelineJob struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	PipelineID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"pipeline_id"`
	PipelineType string         `gorm:"column:pipeline_type;not null;index" json:"pipeline_type"`
	Stage        string         `gorm:"column:stage;not null" json:"stage"`
	Queue        string         `gorm:"column:queue;not null;index:idx_pipeline_job_claim,priority:1" json:"queue"`
	Status       JobStatus      `gorm:"column:status;not null;index:idx_pipeline_job_claim,priority:2" json:"status"`
	Attempt      int            `gorm:"column:attempt;not null;default:0" json:"attempt"`
	MaxAttempts  int            `gorm:"column:max_attempts;not null;default:3" json:"max_attempts"`
	Payload      datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`
	Error        string         `gorm:"column:error" json:"error,omitempty"`
	RunAt        time.Time      `gorm:"column:run_at;not null;index:idx_pipeline_job_claim,priority:3" json:"run_at"`
	LockedAt     *time.Time     `gorm:"column:locked_at" json:"locked_at,omitempty"`
	HeartbeatAt  *time.Time     `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (PipelineJob) TableName() string { return "pipeline_job" }

func (j *PipelineJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.RunAt.IsZero() {
		j.RunAt = time.Now().UTC()
	}
	return nil
}

// StageJobID derives the job id for a stage of a run. Enqueueing the same
// stage twice for one run collides on the primary key and is ignored.
func StageJobID(pipelineID uuid.UUID, stage string) uuid.UUID {
	return uuid.NewSHA1(pipelineID, []byte("stage:"+stage))
}

// AbandonedMessage is the error recorded on a job whose worker stopped
// heartbeating after its last allowed attempt.
func AbandonedMessage(stage string, attempts int) string {
	return fmt.Sprintf("stage %s abandoned by its worker after %d attempts", stage, attempts)
}
