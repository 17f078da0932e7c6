// Package gateway is the storage contract the pipeline stages write through.
// Every write is safe to repeat: artifacts use deterministic ids and
// conflicting inserts are ignored.
package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/F-O-T/contentagen-nx-sub000/internal/data/repos"
	"github.com/F-O-T/contentagen-nx-sub000/internal/domain"
	contenttypes "github.com/F-O-T/contentagen-nx-sub000/internal/domain/content"
	"github.com/F-O-T/contentagen-nx-sub000/internal/pkg/dbctx"
	perrors "github.com/F-O-T/contentagen-nx-sub000/internal/pkg/errors"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
)

type Gateway interface {
	GetAgent(ctx context.Context, id uuid.UUID) (*domain.Agent, error)
	UpdateRequestStatus(ctx context.Context, kind domain.SubjectType, id uuid.UUID, status string) error
	// CreateArtifact inserts the content and completes its request in one
	// transaction. A replay returns the stored row.
	CreateArtifact(ctx context.Context, c *domain.Content) (*domain.Content, error)
	ListIdeaTitles(ctx context.Context, agentID uuid.UUID, limit int) ([]string, error)
	ListIdeaEmbeddings(ctx context.Context, agentID uuid.UUID) ([][]float32, error)
	CreateIdeas(ctx context.Context, ideas []*domain.Idea) (int64, error)
	// InsertKnowledgeChunks writes all chunks and completes the job in one
	// transaction.
	InsertKnowledgeChunks(ctx context.Context, jobID uuid.UUID, chunks []*domain.KnowledgeChunk) (int64, error)
}

type gormGateway struct {
	db    *gorm.DB
	log   *logger.Logger
	repos repos.Repos
}

func New(db *gorm.DB, log *logger.Logger, r repos.Repos) Gateway {
	return &gormGateway{db: db, log: log.With("service", "PersistenceGateway"), repos: r}
}

// wrap keeps ErrNotFound fatal and marks everything else retryable.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if perrors.Is(err, perrors.ErrNotFound) {
		return err
	}
	return perrors.Persistence(op, err)
}

func (g *gormGateway) GetAgent(ctx context.Context, id uuid.UUID) (*domain.Agent, error) {
	a, err := g.repos.Agents.GetByID(dbctx.For(ctx), id)
	return a, wrap("get agent", err)
}

func (g *gormGateway) UpdateRequestStatus(ctx context.Context, kind domain.SubjectType, id uuid.UUID, status string) error {
	dbc := dbctx.For(ctx)
	switch kind {
	case domain.SubjectContent:
		return wrap("update content request", g.repos.ContentRequests.UpdateStatus(dbc, id, status))
	case domain.SubjectKnowledgeJob:
		return wrap("update knowledge job", g.repos.KnowledgeJobs.UpdateFields(dbc, id, map[string]interface{}{"status": status}))
	case domain.SubjectIdea:
		// Ideas have no request record; their rows carry their own status.
		return nil
	default:
		return fmt.Errorf("%w: unknown subject type %q", perrors.ErrFatal, kind)
	}
}

func (g *gormGateway) CreateArtifact(ctx context.Context, c *domain.Content) (*domain.Content, error) {
	if c == nil || c.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: artifact requires an id", perrors.ErrFatal)
	}
	var stored *domain.Content
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		inserted, err := g.repos.Contents.CreateIgnoreConflict(dbc, c)
		if err != nil {
			return err
		}
		if !inserted {
			g.log.Info("Artifact already persisted", "content_id", c.ID)
		}
		if err := g.repos.ContentRequests.UpdateStatus(dbc, c.RequestID, contenttypes.StatusCompleted); err != nil {
			return err
		}
		stored, err = g.repos.Contents.GetByID(dbc, c.ID)
		return err
	})
	if err != nil {
		return nil, wrap("create artifact", err)
	}
	return stored, nil
}

func (g *gormGateway) ListIdeaTitles(ctx context.Context, agentID uuid.UUID, limit int) ([]string, error) {
	ideas, err := g.repos.Ideas.ListByAgent(dbctx.For(ctx), agentID, limit)
	if err != nil {
		return nil, wrap("list ideas", err)
	}
	out := make([]string, 0, len(ideas))
	for _, i := range ideas {
		out = append(out, i.Title)
	}
	return out, nil
}

func (g *gormGateway) ListIdeaEmbeddings(ctx context.Context, agentID uuid.UUID) ([][]float32, error) {
	ideas, err := g.repos.Ideas.ListEmbedded(dbctx.For(ctx), agentID)
	if err != nil {
		return nil, wrap("list idea embeddings", err)
	}
	out := make([][]float32, 0, len(ideas))
	for _, i := range ideas {
		if i.Embedding != nil {
			out = append(out, i.Embedding.Slice())
		}
	}
	return out, nil
}

func (g *gormGateway) CreateIdeas(ctx context.Context, ideas []*domain.Idea) (int64, error) {
	n, err := g.repos.Ideas.CreateIgnoreConflict(dbctx.For(ctx), ideas)
	return n, wrap("create ideas", err)
}

func (g *gormGateway) InsertKnowledgeChunks(ctx context.Context, jobID uuid.UUID, chunks []*domain.KnowledgeChunk) (int64, error) {
	var inserted int64
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		n, err := g.repos.KnowledgeChunks.CreateIgnoreConflict(dbc, chunks)
		if err != nil {
			return err
		}
		inserted = n
		return g.repos.KnowledgeJobs.UpdateFields(dbc, jobID, map[string]interface{}{
			"status":      contenttypes.StatusCompleted,
			"chunk_count": len(chunks),
		})
	})
	if err != nil {
		return 0, wrap("insert knowledge chunks", err)
	}
	return inserted, nil
}
