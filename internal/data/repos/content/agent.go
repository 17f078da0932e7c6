package content

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/F-O-T/contentagen-nx-sub000/internal/domain/content"
	"github.com/F-O-T/contentagen-nx-sub000/internal/pkg/dbctx"
	perrors "github.com/F-O-T/contentagen-nx-sub000/internal/pkg/errors"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
)

type AgentRepo interface {
	Create(dbc dbctx.Context, agent *types.Agent) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Agent, error)
}

type agentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAgentRepo(db *gorm.DB, baseLog *logger.Logger) AgentRepo {
	return &agentRepo{db: db, log: baseLog.With("repo", "AgentRepo")}
}

func (r *agentRepo) Create(dbc dbctx.Context, agent *types.Agent) error {
	return dbc.DB(r.db).Create(agent).Error
}

func (r *agentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Agent, error) {
	var a types.Agent
	err := dbc.DB(r.db).Where("id = ?", id).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("agent %s: %w", id, perrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
