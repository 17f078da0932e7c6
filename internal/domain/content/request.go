package content

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Request status values shared by ContentRequest and KnowledgeJob records.
const (
	StatusPending   = "pending"
	StatusAnalyzing = "analyzing"
	StatusCompleted = "completed"
)

// ContentRequest is the user's originating "write X" record. A failed run
// leaves it in a non-terminal status.
type ContentRequest struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AgentID     uuid.UUID `gorm:"type:uuid;not null;index" json:"agent_id"`
	Description string    `gorm:"column:description;type:text;not null" json:"description"`
	Layout      string    `gorm:"column:layout;not null" json:"layout"`
	Status      string    `gorm:"column:status;not null;index" json:"status"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (ContentRequest) TableName() string { return "content_request" }

func (r *ContentRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = StatusPending
	}
	return nil
}
