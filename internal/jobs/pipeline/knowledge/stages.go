package knowledge

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/F-O-T/contentagen-nx-sub000/internal/domain"
	contenttypes "github.com/F-O-T/contentagen-nx-sub000/internal/domain/content"
	knowledgetypes "github.com/F-O-T/contentagen-nx-sub000/internal/domain/knowledge"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/payload"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/pipeline"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/pipeline/steps"
	jobrt "github.com/F-O-T/contentagen-nx-sub000/internal/jobs/runtime"
	perrors "github.com/F-O-T/contentagen-nx-sub000/internal/pkg/errors"
	"github.com/F-O-T/contentagen-nx-sub000/internal/similarity"
	"github.com/F-O-T/contentagen-nx-sub000/internal/structured"
)

const distillerSystem = "You distill brand knowledge from source documents. Keep facts exact and never invent details."

// loadSource passes inline rawText through or reads the document behind
// sourceUri.
func (p *Pipeline) loadSource(jc *jobrt.Context) (payload.Fields, error) {
	jobID, err := jc.Payload.UUID(pipeline.KeyKnowledgeJobID)
	if err != nil {
		return nil, perrors.Contract("%v", err)
	}
	if err := p.deps.Store.UpdateRequestStatus(jc.Ctx, domain.SubjectKnowledgeJob, jobID, contenttypes.StatusAnalyzing); err != nil {
		return nil, err
	}
	jc.Progress("Loading source")

	if jc.Payload.Has(pipeline.KeyRawText) {
		return payload.Fields{pipeline.KeyRawText: jc.Payload.String(pipeline.KeyRawText)}, nil
	}
	uri := jc.Payload.String(pipeline.KeySourceURI)
	if uri == "" {
		return nil, perrors.Contract("knowledge job %s has neither %s nor %s", jobID, pipeline.KeyRawText, pipeline.KeySourceURI)
	}
	if p.deps.Sources == nil {
		return nil, fmt.Errorf("%w: no object storage configured for %s", perrors.ErrFatal, uri)
	}
	raw, err := p.deps.Sources.ReadObject(jc.Ctx, uri)
	if err != nil {
		return nil, err
	}
	return payload.Fields{pipeline.KeyRawText: strings.TrimSpace(string(raw))}, nil
}

func (p *Pipeline) extract(jc *jobrt.Context) (payload.Fields, error) {
	raw := jc.Payload.String(pipeline.KeyRawText)
	if raw == "" {
		return payload.Fields{pipeline.KeyExtractedText: ""}, nil
	}
	jc.Progress("Extracting knowledge")
	text, err := steps.Generate(jc, p.deps, pipeline.StageKnowledgeExtraction, distillerSystem, map[string]any{
		"SourceType": jc.Payload.String(pipeline.KeySourceType),
		"RawText":    raw,
	})
	if err != nil {
		return nil, err
	}
	return payload.Fields{pipeline.KeyExtractedText: text}, nil
}

func (p *Pipeline) structure(jc *jobrt.Context) (payload.Fields, error) {
	extracted := jc.Payload.String(pipeline.KeyExtractedText)
	if extracted == "" {
		jc.Log.Info("Nothing extracted; skipping structuring")
		return payload.Fields{pipeline.KeyPoints: []knowledgetypes.Point{}}, nil
	}
	sourceType := jc.Payload.String(pipeline.KeySourceType)
	jc.Progress("Structuring knowledge")
	raw, err := steps.Generate(jc, p.deps, pipeline.StageKnowledgeStructuring, distillerSystem, map[string]any{
		"SourceType":    sourceType,
		"ExtractedText": extracted,
	})
	if err != nil {
		return nil, err
	}
	points, dropped, err := structured.ParseKnowledgePoints(raw, sourceType, jc.Payload.String(pipeline.KeySourceIdentifier))
	if err != nil {
		return nil, err
	}
	if dropped > 0 {
		jc.Log.Warn("Dropped incomplete knowledge points", "dropped", dropped, "kept", len(points))
	}
	return payload.Fields{pipeline.KeyPoints: points}, nil
}

func (p *Pipeline) persist(jc *jobrt.Context) (payload.Fields, error) {
	jobID, err := jc.Payload.UUID(pipeline.KeyKnowledgeJobID)
	if err != nil {
		return nil, perrors.Contract("%v", err)
	}
	agentID, err := jc.Payload.UUID(pipeline.KeyAgentID)
	if err != nil {
		return nil, perrors.Contract("%v", err)
	}
	var points []knowledgetypes.Point
	if err := jc.Payload.Into(pipeline.KeyPoints, &points); err != nil {
		return nil, perrors.Contract("%v", err)
	}

	if len(points) > 0 {
		jc.Progress("Embedding knowledge")
	}
	g, gctx := errgroup.WithContext(jc.Ctx)
	g.SetLimit(p.deps.EmbedConcurrency)
	for i := range points {
		if len(points[i].Embedding) > 0 {
			continue
		}
		g.Go(func() error {
			v, err := p.deps.Similarity.EmbedFields(gctx,
				similarity.Field{Label: "Summary", Value: points[i].Summary},
				similarity.Field{Label: "Content", Value: points[i].Content},
			)
			if err != nil {
				jc.Log.Warn("Knowledge embedding failed; storing without vector", "index", i, "error", err)
				return nil
			}
			points[i].Embedding = v
			return nil
		})
	}
	_ = g.Wait()
	if err := jc.Ctx.Err(); err != nil {
		return nil, err
	}

	chunks := make([]*domain.KnowledgeChunk, 0, len(points))
	for i, pt := range points {
		c, err := toChunk(jobID, agentID, i, pt)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}

	jc.Progress("Saving knowledge")
	n, err := p.deps.Store.InsertKnowledgeChunks(jc.Ctx, jobID, chunks)
	if err != nil {
		return nil, err
	}
	jc.Log.Info("Knowledge persisted", "inserted", n, "total", len(chunks))

	if err := p.deps.Graph.ProjectKnowledge(jc.Ctx, agentID, jobID, chunks); err != nil {
		jc.Log.Warn("Knowledge graph projection failed", "error", err)
	}
	return payload.Fields{pipeline.KeyChunkCount: len(chunks)}, nil
}

func toChunk(jobID, agentID uuid.UUID, index int, pt knowledgetypes.Point) (*domain.KnowledgeChunk, error) {
	c := &domain.KnowledgeChunk{
		ID:               knowledgetypes.ChunkID(jobID, index),
		JobID:            jobID,
		AgentID:          agentID,
		Content:          pt.Content,
		Summary:          pt.Summary,
		Source:           pt.Source,
		SourceType:       pt.SourceType,
		SourceIdentifier: pt.SourceIdentifier,
	}
	if pt.Category != nil {
		cat := string(*pt.Category)
		c.Category = &cat
	}
	if len(pt.Keywords) > 0 {
		kw, err := json.Marshal(pt.Keywords)
		if err != nil {
			return nil, fmt.Errorf("%w: encode keywords: %v", perrors.ErrFatal, err)
		}
		c.Keywords = datatypes.JSON(kw)
	}
	if len(pt.Embedding) > 0 {
		v := pgvector.NewVector(pt.Embedding)
		c.Embedding = &v
	}
	return c, nil
}
