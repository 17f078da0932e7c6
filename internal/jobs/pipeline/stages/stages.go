// Package stages registers every stage handler and checks that each declared
// stage has one.
package stages

import (
	"fmt"

	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/pipeline"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/pipeline/content"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/pipeline/idea"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/pipeline/knowledge"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/pipeline/steps"
	jobrt "github.com/F-O-T/contentagen-nx-sub000/internal/jobs/runtime"
)

type handlerSet interface {
	Handlers() []jobrt.Handler
}

func Register(reg *jobrt.Registry, deps *steps.Deps, defs []*pipeline.Definition) error {
	if err := deps.Validate(); err != nil {
		return err
	}
	for _, set := range []handlerSet{content.New(deps), idea.New(deps), knowledge.New(deps)} {
		for _, h := range set.Handlers() {
			if err := reg.Register(h); err != nil {
				return err
			}
		}
	}
	for _, d := range defs {
		for _, name := range d.StageNames() {
			if _, ok := reg.Get(name); !ok {
				return fmt.Errorf("pipeline %s: no handler for stage %s", d.Type, name)
			}
		}
	}
	return nil
}
