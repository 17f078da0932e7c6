// Package content implements the content generation stages: planning, the
// layout specific writer, editor and reviewer, and persistence.
package content

import (
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/pipeline"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/pipeline/steps"
	jobrt "github.com/F-O-T/contentagen-nx-sub000/internal/jobs/runtime"
)

// wordsPerMinute is the reading speed behind readTimeMinutes.
const wordsPerMinute = 200

type Pipeline struct {
	deps *steps.Deps
}

func New(deps *steps.Deps) *Pipeline {
	return &Pipeline{deps: deps}
}

// Handlers returns one handler per stage name across every layout.
func (p *Pipeline) Handlers() []jobrt.Handler {
	out := []jobrt.Handler{
		jobrt.HandlerFunc{Stage: pipeline.StageContentPlanning, Fn: p.plan},
		jobrt.HandlerFunc{Stage: pipeline.StageContentPersist, Fn: p.persist},
	}
	for _, l := range pipeline.Layouts {
		v := pipeline.VariantFor(l)
		out = append(out,
			jobrt.HandlerFunc{Stage: v.Writer, Fn: p.write},
			jobrt.HandlerFunc{Stage: v.Editor, Fn: p.edit},
			jobrt.HandlerFunc{Stage: v.Reviewer, Fn: p.review},
		)
	}
	return out
}
