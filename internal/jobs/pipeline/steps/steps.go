// Package steps holds what the content, idea and knowledge stages share:
// their collaborators and the prompt-then-generate call.
package steps

import (
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/F-O-T/contentagen-nx-sub000/internal/data/gateway"
	"github.com/F-O-T/contentagen-nx-sub000/internal/data/graph"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/prompts"
	jobrt "github.com/F-O-T/contentagen-nx-sub000/internal/jobs/runtime"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/gcp"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/openai"
	"github.com/F-O-T/contentagen-nx-sub000/internal/similarity"
)

type Deps struct {
	Log        *logger.Logger
	Store      gateway.Gateway
	AI         openai.Client
	Prompts    *prompts.Set
	Similarity *similarity.Engine
	// Sources is optional; without it knowledge runs must carry rawText.
	Sources gcp.SourceReader
	// Graph is optional.
	Graph graph.KnowledgeProjector

	EmbedConcurrency int
	IdeaCount        int
}

// Validate checks the collaborators every stage needs and fills defaults.
func (d *Deps) Validate() error {
	switch {
	case d.Log == nil:
		return fmt.Errorf("stages: logger required")
	case d.Store == nil:
		return fmt.Errorf("stages: gateway required")
	case d.AI == nil:
		return fmt.Errorf("stages: llm client required")
	case d.Prompts == nil:
		return fmt.Errorf("stages: prompts required")
	case d.Similarity == nil:
		return fmt.Errorf("stages: similarity engine required")
	}
	if d.Graph == nil {
		d.Graph = graph.NewKnowledgeProjector(nil, d.Log)
	}
	if d.EmbedConcurrency <= 0 {
		d.EmbedConcurrency = 4
	}
	if d.IdeaCount <= 0 {
		d.IdeaCount = 5
	}
	return nil
}

// Generate renders stage's prompt with data and calls the model.
func Generate(jc *jobrt.Context, d *Deps, stage, system string, data map[string]any) (string, error) {
	user, format, err := d.Prompts.User(stage, data)
	if err != nil {
		return "", err
	}
	out, err := d.AI.Generate(jc.Ctx, system, user, format)
	if err != nil {
		return "", fmt.Errorf("%s: %w", stage, err)
	}
	return strings.TrimSpace(out), nil
}

// Embed computes an embedding that the caller may go without. A failure is
// logged and reported as nil.
func Embed(jc *jobrt.Context, d *Deps, fields ...similarity.Field) *pgvector.Vector {
	vec, err := d.Similarity.EmbedFields(jc.Ctx, fields...)
	if err != nil {
		jc.Log.Warn("Embedding skipped", "stage", jc.Stage(), "error", err)
		return nil
	}
	v := pgvector.NewVector(vec)
	return &v
}
