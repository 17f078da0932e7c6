package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunCanceled  RunStatus = "canceled"
)

func (s RunStatus) Terminal() bool {
	return s == RunSucceeded || s == RunFailed || s == RunCanceled
}

// PipelineRun is the logical run identified by pipelineId. It carries the
// cancellation flag workers consult before each stage.
type PipelineRun struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Type        string    `gorm:"column:type;not null;index" json:"type"`
	SubjectID   uuid.UUID `gorm:"type:uuid;column:subject_id;not null;index" json:"subject_id"`
	SubjectType string    `gorm:"column:subject_type;not null" json:"subject_type"`
	Status      RunStatus `gorm:"column:status;not null;index" json:"status"`
	Stage       string    `gorm:"column:stage" json:"stage"`
	Error       string    `gorm:"column:error" json:"error,omitempty"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (PipelineRun) TableName() string { return "pipeline_run" }

func (r *PipelineRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
