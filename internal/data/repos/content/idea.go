package content

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/F-O-T/contentagen-nx-sub000/internal/domain/content"
	"github.com/F-O-T/contentagen-nx-sub000/internal/pkg/dbctx"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
)

type IdeaRepo interface {
	CreateIgnoreConflict(dbc dbctx.Context, ideas []*types.Idea) (int64, error)
	ListByAgent(dbc dbctx.Context, agentID uuid.UUID, limit int) ([]*types.Idea, error)
	// ListEmbedded returns the agent's ideas that carry an embedding.
	ListEmbedded(dbc dbctx.Context, agentID uuid.UUID) ([]*types.Idea, error)
}

type ideaRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewIdeaRepo(db *gorm.DB, baseLog *logger.Logger) IdeaRepo {
	return &ideaRepo{db: db, log: baseLog.With("repo", "IdeaRepo")}
}

func (r *ideaRepo) CreateIgnoreConflict(dbc dbctx.Context, ideas []*types.Idea) (int64, error) {
	if len(ideas) == 0 {
		return 0, nil
	}
	res := dbc.DB(r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&ideas)
	return res.RowsAffected, res.Error
}

func (r *ideaRepo) ListByAgent(dbc dbctx.Context, agentID uuid.UUID, limit int) ([]*types.Idea, error) {
	var out []*types.Idea
	q := dbc.DB(r.db).Where("agent_id = ?", agentID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

func (r *ideaRepo) ListEmbedded(dbc dbctx.Context, agentID uuid.UUID) ([]*types.Idea, error) {
	var out []*types.Idea
	err := dbc.DB(r.db).
		Where("agent_id = ? AND embedding IS NOT NULL", agentID).
		Find(&out).Error
	return out, err
}
