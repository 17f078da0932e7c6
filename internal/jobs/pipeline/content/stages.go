package content

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

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

func (p *Pipeline) plan(jc *jobrt.Context) (payload.Fields, error) {
	agentID, err := jc.Payload.UUID(pipeline.KeyAgentID)
	if err != nil {
		return nil, perrors.Contract("%v", err)
	}
	requestID, err := jc.Payload.UUID(pipeline.KeyRequestID)
	if err != nil {
		return nil, perrors.Contract("%v", err)
	}
	agent, err := p.deps.Store.GetAgent(jc.Ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("load agent %s: %w", agentID, err)
	}
	if err := p.deps.Store.UpdateRequestStatus(jc.Ctx, domain.SubjectContent, requestID, contenttypes.StatusAnalyzing); err != nil {
		return nil, err
	}
	system, err := p.deps.Prompts.System(agent)
	if err != nil {
		return nil, err
	}

	jc.Progress("Planning content")
	outline, err := steps.Generate(jc, p.deps, pipeline.StageContentPlanning, system, map[string]any{
		"Layout":      jc.Payload.String(pipeline.KeyLayout),
		"Description": jc.Payload.String(pipeline.KeyDescription),
	})
	if err != nil {
		return nil, err
	}
	language := strings.TrimSpace(agent.Language)
	if language == "" {
		language = "en"
	}
	return payload.Fields{
		pipeline.KeySystemPrompt: system,
		pipeline.KeyLanguage:     language,
		pipeline.KeyOutline:      outline,
	}, nil
}

func (p *Pipeline) write(jc *jobrt.Context) (payload.Fields, error) {
	jc.Progress("Writing draft")
	draft, err := steps.Generate(jc, p.deps, jc.Stage(), jc.Payload.String(pipeline.KeySystemPrompt), map[string]any{
		"Description": jc.Payload.String(pipeline.KeyDescription),
		"Outline":     jc.Payload.String(pipeline.KeyOutline),
	})
	if err != nil {
		return nil, err
	}
	return payload.Fields{pipeline.KeyDraft: draft}, nil
}

func (p *Pipeline) edit(jc *jobrt.Context) (payload.Fields, error) {
	jc.Progress("Editing draft")
	edited, err := steps.Generate(jc, p.deps, jc.Stage(), jc.Payload.String(pipeline.KeySystemPrompt), map[string]any{
		"Draft": jc.Payload.String(pipeline.KeyDraft),
	})
	if err != nil {
		return nil, err
	}
	return payload.Fields{pipeline.KeyEdited: edited}, nil
}

func (p *Pipeline) review(jc *jobrt.Context) (payload.Fields, error) {
	jc.Progress("Reviewing content")
	raw, err := steps.Generate(jc, p.deps, jc.Stage(), jc.Payload.String(pipeline.KeySystemPrompt), map[string]any{
		"Layout": jc.Payload.String(pipeline.KeyLayout),
		"Edited": jc.Payload.String(pipeline.KeyEdited),
	})
	if err != nil {
		return nil, err
	}
	r, err := structured.ParseReview(raw)
	if err != nil {
		return nil, err
	}
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return payload.Fields{
		pipeline.KeyTitle: r.Title,
		pipeline.KeyBody:  r.Body,
		pipeline.KeyTags:  tags,
	}, nil
}

// ReadTimeMinutes rounds up and never reports less than a minute.
func ReadTimeMinutes(words int) int {
	m := int(math.Ceil(float64(words) / wordsPerMinute))
	if m < 1 {
		return 1
	}
	return m
}

func (p *Pipeline) persist(jc *jobrt.Context) (payload.Fields, error) {
	agentID, err := jc.Payload.UUID(pipeline.KeyAgentID)
	if err != nil {
		return nil, perrors.Contract("%v", err)
	}
	requestID, err := jc.Payload.UUID(pipeline.KeyRequestID)
	if err != nil {
		return nil, perrors.Contract("%v", err)
	}
	title := jc.Payload.String(pipeline.KeyTitle)
	body := jc.Payload.String(pipeline.KeyBody)
	tags := jc.Payload.Strings(pipeline.KeyTags)
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("%w: encode tags: %v", perrors.ErrFatal, err)
	}

	words := len(strings.Fields(body))
	jc.Progress("Saving content")
	c := &domain.Content{
		ID:              contenttypes.ArtifactID(jc.PipelineID()),
		AgentID:         agentID,
		RequestID:       requestID,
		PipelineID:      jc.PipelineID(),
		Layout:          jc.Payload.String(pipeline.KeyLayout),
		Title:           title,
		Body:            body,
		Tags:            datatypes.JSON(tagsJSON),
		WordsCount:      words,
		ReadTimeMinutes: ReadTimeMinutes(words),
		Embedding: steps.Embed(jc, p.deps,
			similarity.Field{Label: "Title", Value: title},
			similarity.Field{Label: "Body", Value: body},
		),
	}
	stored, err := p.deps.Store.CreateArtifact(jc.Ctx, c)
	if err != nil {
		return nil, err
	}
	return payload.Fields{
		pipeline.KeyContentID:  stored.ID.String(),
		pipeline.KeyWordsCount: stored.WordsCount,
		pipeline.KeyReadTime:   stored.ReadTimeMinutes,
	}, nil
}
