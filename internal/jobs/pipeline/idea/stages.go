package idea

import (
	"encoding/json"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/F-O-T/contentagen-nx-sub000/internal/domain"
	contenttypes "github.com/F-O-T/contentagen-nx-sub000/internal/domain/content"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/payload"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/pipeline"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/pipeline/steps"
	jobrt "github.com/F-O-T/contentagen-nx-sub000/internal/jobs/runtime"
	perrors "github.com/F-O-T/contentagen-nx-sub000/internal/pkg/errors"
	"github.com/F-O-T/contentagen-nx-sub000/internal/similarity"
	"github.com/F-O-T/contentagen-nx-sub000/internal/structured"
)

// Validated is an idea draft scored against the agent's existing ideas.
type Validated struct {
	structured.IdeaDraft
	Score     float64             `json:"score"`
	Category  similarity.Category `json:"category"`
	Message   string              `json:"message"`
	Embedding []float32           `json:"embedding,omitempty"`
}

func (p *Pipeline) gatherContext(jc *jobrt.Context) (payload.Fields, error) {
	agentID, err := jc.Payload.UUID(pipeline.KeyAgentID)
	if err != nil {
		return nil, perrors.Contract("%v", err)
	}
	agent, err := p.deps.Store.GetAgent(jc.Ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("load agent %s: %w", agentID, err)
	}
	system, err := p.deps.Prompts.System(agent)
	if err != nil {
		return nil, err
	}
	jc.Progress("Gathering existing ideas")
	titles, err := p.deps.Store.ListIdeaTitles(jc.Ctx, agentID, existingTitlesLimit)
	if err != nil {
		return nil, err
	}
	if titles == nil {
		titles = []string{}
	}
	return payload.Fields{
		pipeline.KeySystemPrompt:   system,
		pipeline.KeyExistingTitles: titles,
	}, nil
}

func (p *Pipeline) generate(jc *jobrt.Context) (payload.Fields, error) {
	jc.Progress("Generating ideas")
	raw, err := steps.Generate(jc, p.deps, pipeline.StageIdeaGeneration, jc.Payload.String(pipeline.KeySystemPrompt), map[string]any{
		"Count":          jc.Payload.Int(pipeline.KeyIdeaCount, p.deps.IdeaCount),
		"ExistingTitles": jc.Payload.Strings(pipeline.KeyExistingTitles),
	})
	if err != nil {
		return nil, err
	}
	ideas, err := structured.ParseIdeas(raw)
	if err != nil {
		return nil, err
	}
	jc.Log.Info("Ideas generated", "count", len(ideas))
	return payload.Fields{pipeline.KeyIdeas: ideas}, nil
}

// validate embeds every draft in parallel, then scores each one against the
// stored ideas and the drafts before it. An embedding failure leaves the
// idea unscored.
func (p *Pipeline) validate(jc *jobrt.Context) (payload.Fields, error) {
	agentID, err := jc.Payload.UUID(pipeline.KeyAgentID)
	if err != nil {
		return nil, perrors.Contract("%v", err)
	}
	var drafts []structured.IdeaDraft
	if err := jc.Payload.Into(pipeline.KeyIdeas, &drafts); err != nil {
		return nil, perrors.Contract("%v", err)
	}
	corpus, err := p.deps.Store.ListIdeaEmbeddings(jc.Ctx, agentID)
	if err != nil {
		return nil, err
	}

	jc.Progress("Checking ideas for duplicates")
	vecs := make([][]float32, len(drafts))
	g, gctx := errgroup.WithContext(jc.Ctx)
	g.SetLimit(p.deps.EmbedConcurrency)
	for i := range drafts {
		g.Go(func() error {
			v, err := p.deps.Similarity.EmbedFields(gctx,
				similarity.Field{Label: "Topic", Value: drafts[i].Title},
				similarity.Field{Label: "Description", Value: drafts[i].Description},
			)
			if err != nil {
				jc.Log.Warn("Idea embedding failed", "title", drafts[i].Title, "error", err)
				return nil
			}
			vecs[i] = v
			return nil
		})
	}
	_ = g.Wait()
	if err := jc.Ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]Validated, 0, len(drafts))
	for i, d := range drafts {
		v := Validated{IdeaDraft: d}
		if vecs[i] != nil {
			v.Embedding = vecs[i]
			v.Score = similarity.MaxSimilarity(vecs[i], corpus)
			corpus = append(corpus, vecs[i])
		}
		r := p.deps.Similarity.Categorize(v.Score)
		v.Category, v.Message = r.Category, r.Message
		out = append(out, v)
	}
	return payload.Fields{pipeline.KeyValidatedIdeas: out}, nil
}

func (p *Pipeline) persist(jc *jobrt.Context) (payload.Fields, error) {
	agentID, err := jc.Payload.UUID(pipeline.KeyAgentID)
	if err != nil {
		return nil, perrors.Contract("%v", err)
	}
	var validated []Validated
	if err := jc.Payload.Into(pipeline.KeyValidatedIdeas, &validated); err != nil {
		return nil, perrors.Contract("%v", err)
	}

	ids := make([]string, 0, len(validated))
	rows := make([]*domain.Idea, 0, len(validated))
	for i, v := range validated {
		keywords := v.Keywords
		if keywords == nil {
			keywords = []string{}
		}
		kw, err := json.Marshal(keywords)
		if err != nil {
			return nil, fmt.Errorf("%w: encode keywords: %v", perrors.ErrFatal, err)
		}
		status := StatusPending
		if v.Category == similarity.CategoryError {
			status = StatusRejected
		}
		row := &domain.Idea{
			ID:                 contenttypes.IdeaID(jc.PipelineID(), i),
			AgentID:            agentID,
			PipelineID:         jc.PipelineID(),
			Title:              v.Title,
			Description:        v.Description,
			Keywords:           datatypes.JSON(kw),
			SimilarityScore:    v.Score,
			SimilarityCategory: string(v.Category),
			Status:             status,
		}
		if len(v.Embedding) > 0 {
			vec := pgvector.NewVector(v.Embedding)
			row.Embedding = &vec
		}
		rows = append(rows, row)
		ids = append(ids, row.ID.String())
	}

	jc.Progress("Saving ideas")
	if len(rows) > 0 {
		n, err := p.deps.Store.CreateIdeas(jc.Ctx, rows)
		if err != nil {
			return nil, err
		}
		jc.Log.Info("Ideas persisted", "inserted", n, "total", len(rows))
	}
	return payload.Fields{pipeline.KeyIdeaIDs: ids}, nil
}
