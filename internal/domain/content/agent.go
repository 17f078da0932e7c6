package content

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Agent is a configured writing persona. The pipeline only reads it.
type Agent struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name       string         `gorm:"column:name;not null" json:"name"`
	Persona    string         `gorm:"column:persona;type:text" json:"persona"`
	Language   string         `gorm:"column:language;not null;default:'en'" json:"language"`
	BrandRules datatypes.JSON `gorm:"column:brand_rules;type:jsonb" json:"brand_rules,omitempty"`
	CreatedAt  time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Agent) TableName() string { return "agent" }

func (a *Agent) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
