// Package idea implements the idea generation stages.
package idea

import (
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/pipeline"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/pipeline/steps"
	jobrt "github.com/F-O-T/contentagen-nx-sub000/internal/jobs/runtime"
)

// Idea status values.
const (
	StatusPending  = "pending"
	StatusRejected = "rejected"
)

// existingTitlesLimit bounds how many prior ideas are shown to the model.
const existingTitlesLimit = 50

type Pipeline struct {
	deps *steps.Deps
}

func New(deps *steps.Deps) *Pipeline {
	return &Pipeline{deps: deps}
}

func (p *Pipeline) Handlers() []jobrt.Handler {
	return []jobrt.Handler{
		jobrt.HandlerFunc{Stage: pipeline.StageIdeaContext, Fn: p.gatherContext},
		jobrt.HandlerFunc{Stage: pipeline.StageIdeaGeneration, Fn: p.generate},
		jobrt.HandlerFunc{Stage: pipeline.StageIdeaValidation, Fn: p.validate},
		jobrt.HandlerFunc{Stage: pipeline.StageIdeaPersist, Fn: p.persist},
	}
}
