package knowledge

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/F-O-T/contentagen-nx-sub000/internal/domain/knowledge"
	"github.com/F-O-T/contentagen-nx-sub000/internal/pkg/dbctx"
	perrors "github.com/F-O-T/contentagen-nx-sub000/internal/pkg/errors"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
)

type JobRepo interface {
	Create(dbc dbctx.Context, job *types.Job) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Job, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type ChunkRepo interface {
	CreateIgnoreConflict(dbc dbctx.Context, chunks []*types.Chunk) (int64, error)
	ListByJob(dbc dbctx.Context, jobID uuid.UUID) ([]*types.Chunk, error)
}

type jobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRepo(db *gorm.DB, baseLog *logger.Logger) JobRepo {
	return &jobRepo{db: db, log: baseLog.With("repo", "KnowledgeJobRepo")}
}

func (r *jobRepo) Create(dbc dbctx.Context, job *types.Job) error {
	return dbc.DB(r.db).Create(job).Error
}

func (r *jobRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Job, error) {
	var j types.Job
	err := dbc.DB(r.db).Where("id = ?", id).First(&j).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("knowledge job %s: %w", id, perrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *jobRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	res := dbc.DB(r.db).Model(&types.Job{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("knowledge job %s: %w", id, perrors.ErrNotFound)
	}
	return nil
}

type chunkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChunkRepo(db *gorm.DB, baseLog *logger.Logger) ChunkRepo {
	return &chunkRepo{db: db, log: baseLog.With("repo", "KnowledgeChunkRepo")}
}

func (r *chunkRepo) CreateIgnoreConflict(dbc dbctx.Context, chunks []*types.Chunk) (int64, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	res := dbc.DB(r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		CreateInBatches(&chunks, 100)
	return res.RowsAffected, res.Error
}

func (r *chunkRepo) ListByJob(dbc dbctx.Context, jobID uuid.UUID) ([]*types.Chunk, error) {
	var out []*types.Chunk
	err := dbc.DB(r.db).Where("job_id = ?", jobID).Order("created_at ASC").Find(&out).Error
	return out, err
}
