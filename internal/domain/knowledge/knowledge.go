package knowledge

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Category string

const (
	CategoryProduct  Category = "product"
	CategoryBrand    Category = "brand"
	CategoryAudience Category = "audience"
	CategoryProcess  Category = "process"
	CategoryFact     Category = "fact"
	CategoryFAQ      Category = "faq"
)

var validCategories = map[Category]bool{
	CategoryProduct:  true,
	CategoryBrand:    true,
	CategoryAudience: true,
	CategoryProcess:  true,
	CategoryFact:     true,
	CategoryFAQ:      true,
}

// ParseCategory returns nil for anything outside the known set.
func ParseCategory(s string) *Category {
	c := Category(s)
	if !validCategories[c] {
		return nil
	}
	return &c
}

// Point is a distilled fact before persistence. Content and Summary are
// always non-empty once a Point leaves the structuring stage.
type Point struct {
	Content          string    `json:"content"`
	Summary          string    `json:"summary"`
	Category         *Category `json:"category,omitempty"`
	Keywords         []string  `json:"keywords,omitempty"`
	Source           string    `json:"source"`
	SourceType       string    `json:"sourceType"`
	SourceIdentifier string    `json:"sourceIdentifier"`
	Embedding        []float32 `json:"embedding,omitempty"`
}

// Job is the originating distillation request.
type Job struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AgentID          uuid.UUID `gorm:"type:uuid;not null;index" json:"agent_id"`
	SourceType       string    `gorm:"column:source_type;not null" json:"source_type"`
	SourceIdentifier string    `gorm:"column:source_identifier;not null" json:"source_identifier"`
	Status           string    `gorm:"column:status;not null;index" json:"status"`
	ChunkCount       int       `gorm:"column:chunk_count;not null;default:0" json:"chunk_count"`
	CreatedAt        time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Job) TableName() string { return "knowledge_job" }

func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.Status == "" {
		j.Status = "pending"
	}
	return nil
}

type Chunk struct {
	ID               uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	JobID            uuid.UUID        `gorm:"type:uuid;not null;index" json:"job_id"`
	AgentID          uuid.UUID        `gorm:"type:uuid;not null;index" json:"agent_id"`
	Content          string           `gorm:"column:content;type:text;not null" json:"content"`
	Summary          string           `gorm:"column:summary;type:text;not null" json:"summary"`
	Category         *string          `gorm:"column:category" json:"category,omitempty"`
	Keywords         datatypes.JSON   `gorm:"column:keywords;type:jsonb" json:"keywords,omitempty"`
	Source           string           `gorm:"column:source" json:"source"`
	SourceType       string           `gorm:"column:source_type;not null" json:"source_type"`
	SourceIdentifier string           `gorm:"column:source_identifier;not null" json:"source_identifier"`
	Embedding        *pgvector.Vector `gorm:"column:embedding;type:vector" json:"-"`
	CreatedAt        time.Time        `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (Chunk) TableName() string { return "knowledge_chunk" }

// ChunkID is the deterministic id of the index-th chunk of a job.
func ChunkID(jobID uuid.UUID, index int) uuid.UUID {
	return uuid.NewSHA1(jobID, []byte("chunk:"+strconv.Itoa(index)))
}
