package content

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/F-O-T/contentagen-nx-sub000/internal/domain/content"
	"github.com/F-O-T/contentagen-nx-sub000/internal/pkg/dbctx"
	perrors "github.com/F-O-T/contentagen-nx-sub000/internal/pkg/errors"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
)

type ContentRequestRepo interface {
	Create(dbc dbctx.Context, req *types.ContentRequest) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ContentRequest, error)
	// UpdateStatus never moves a completed request back.
	UpdateStatus(dbc dbctx.Context, id uuid.UUID, status string) error
}

type contentRequestRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContentRequestRepo(db *gorm.DB, baseLog *logger.Logger) ContentRequestRepo {
	return &contentRequestRepo{db: db, log: baseLog.With("repo", "ContentRequestRepo")}
}

func (r *contentRequestRepo) Create(dbc dbctx.Context, req *types.ContentRequest) error {
	return dbc.DB(r.db).Create(req).Error
}

func (r *contentRequestRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ContentRequest, error) {
	var req types.ContentRequest
	err := dbc.DB(r.db).Where("id = ?", id).First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("content request %s: %w", id, perrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *contentRequestRepo) UpdateStatus(dbc dbctx.Context, id uuid.UUID, status string) error {
	res := dbc.DB(r.db).
		Model(&types.ContentRequest{}).
		Where("id = ? AND status <> ?", id, types.StatusCompleted).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := dbc.DB(r.db).Model(&types.ContentRequest{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("content request %s: %w", id, perrors.ErrNotFound)
		}
	}
	return nil
}
