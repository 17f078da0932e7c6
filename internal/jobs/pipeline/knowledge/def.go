// Package knowledge implements the two-phase knowledge distillation stages.
package knowledge

import (
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/pipeline"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/pipeline/steps"
	jobrt "github.com/F-O-T/contentagen-nx-sub000/internal/jobs/runtime"
)

type Pipeline struct {
	deps *steps.Deps
}

func New(deps *steps.Deps) *Pipeline {
	return &Pipeline{deps: deps}
}

func (p *Pipeline) Handlers() []jobrt.Handler {
	return []jobrt.Handler{
		jobrt.HandlerFunc{Stage: pipeline.StageKnowledgeSourceLoad, Fn: p.loadSource},
		jobrt.HandlerFunc{Stage: pipeline.StageKnowledgeExtraction, Fn: p.extract},
		jobrt.HandlerFunc{Stage: pipeline.StageKnowledgeStructuring, Fn: p.structure},
		jobrt.HandlerFunc{Stage: pipeline.StageKnowledgePersist, Fn: p.persist},
	}
}
