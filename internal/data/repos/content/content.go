package content

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/F-O-T/contentagen-nx-sub000/internal/domain/content"
	"github.com/F-O-T/contentagen-nx-sub000/internal/pkg/dbctx"
	perrors "github.com/F-O-T/contentagen-nx-sub000/internal/pkg/errors"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
)

type ContentRepo interface {
	// CreateIgnoreConflict reports whether a row was actually inserted.
	CreateIgnoreConflict(dbc dbctx.Context, c *types.Content) (bool, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Content, error)
	ListByAgent(dbc dbctx.Context, agentID uuid.UUID) ([]*types.Content, error)
}

type contentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContentRepo(db *gorm.DB, baseLog *logger.Logger) ContentRepo {
	return &contentRepo{db: db, log: baseLog.With("repo", "ContentRepo")}
}

func (r *contentRepo) CreateIgnoreConflict(dbc dbctx.Context, c *types.Content) (bool, error) {
	res := dbc.DB(r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(c)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *contentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Content, error) {
	var c types.Content
	err := dbc.DB(r.db).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("content %s: %w", id, perrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *contentRepo) ListByAgent(dbc dbctx.Context, agentID uuid.UUID) ([]*types.Content, error) {
	var out []*types.Content
	err := dbc.DB(r.db).Where("agent_id = ?", agentID).Order("created_at DESC").Find(&out).Error
	return out, err
}
