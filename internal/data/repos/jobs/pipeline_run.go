package jobs

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/F-O-T/contentagen-nx-sub000/internal/domain/jobs"
	"github.com/F-O-T/contentagen-nx-sub000/internal/pkg/dbctx"
	perrors "github.com/F-O-T/contentagen-nx-sub000/internal/pkg/errors"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
)

type PipelineRunRepo interface {
	Create(dbc dbctx.Context, run *types.PipelineRun) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.PipelineRun, error)
	// UpdateUnlessTerminal applies updates unless the run already finished.
	UpdateUnlessTerminal(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) (bool, error)
}

type pipelineRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPipelineRunRepo(db *gorm.DB, baseLog *logger.Logger) PipelineRunRepo {
	return &pipelineRunRepo{
		db:  db,
		log: baseLog.With("repo", "PipelineRunRepo"),
	}
}

func (r *pipelineRunRepo) Create(dbc dbctx.Context, run *types.PipelineRun) error {
	return dbc.DB(r.db).Create(run).Error
}

func (r *pipelineRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.PipelineRun, error) {
	var run types.PipelineRun
	err := dbc.DB(r.db).Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("pipeline run %s: %w", id, perrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *pipelineRunRepo) UpdateUnlessTerminal(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	res := dbc.DB(r.db).
		Model(&types.PipelineRun{}).
		Where("id = ? AND status NOT IN ?", id, []types.RunStatus{types.RunSucceeded, types.RunFailed, types.RunCanceled}).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
