package content

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// Content is the terminal artifact of a content generation run. ID is derived
// from the pipeline id so a replayed persist stage cannot create a duplicate.
type Content struct {
	ID              uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	AgentID         uuid.UUID        `gorm:"type:uuid;not null;index" json:"agent_id"`
	RequestID       uuid.UUID        `gorm:"type:uuid;not null;index" json:"request_id"`
	PipelineID      uuid.UUID        `gorm:"type:uuid;not null" json:"pipeline_id"`
	Layout          string           `gorm:"column:layout;not null" json:"layout"`
	Title           string           `gorm:"column:title;not null" json:"title"`
	Body            string           `gorm:"column:body;type:text;not null" json:"body"`
	Tags            datatypes.JSON   `gorm:"column:tags;type:jsonb" json:"tags"`
	WordsCount      int              `gorm:"column:words_count;not null" json:"words_count"`
	ReadTimeMinutes int              `gorm:"column:read_time_minutes;not null" json:"read_time_minutes"`
	Embedding       *pgvector.Vector `gorm:"column:embedding;type:vector" json:"-"`
	CreatedAt       time.Time        `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (Content) TableName() string { return "content" }

// ArtifactID is the deterministic content id for a pipeline run.
func ArtifactID(pipelineID uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(pipelineID, []byte("content"))
}

type Idea struct {
	ID                 uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	AgentID            uuid.UUID        `gorm:"type:uuid;not null;index" json:"agent_id"`
	PipelineID         uuid.UUID        `gorm:"type:uuid;not null;index" json:"pipeline_id"`
	Title              string           `gorm:"column:title;not null" json:"title"`
	Description        string           `gorm:"column:description;type:text" json:"description"`
	Keywords           datatypes.JSON   `gorm:"column:keywords;type:jsonb" json:"keywords"`
	SimilarityScore    float64          `gorm:"column:similarity_score;not null;default:0" json:"similarity_score"`
	SimilarityCategory string           `gorm:"column:similarity_category;not null" json:"similarity_category"`
	Status             string           `gorm:"column:status;not null" json:"status"`
	Embedding          *pgvector.Vector `gorm:"column:embedding;type:vector" json:"-"`
	CreatedAt          time.Time        `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (Idea) TableName() string { return "idea" }

// IdeaID is the deterministic id of the index-th idea produced by a run.
func IdeaID(pipelineID uuid.UUID, index int) uuid.UUID {
	return uuid.NewSHA1(pipelineID, []byte("idea:"+strconv.Itoa(index)))
}
