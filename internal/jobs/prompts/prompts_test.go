package prompts

import (
	"errors"
	"strings"
	"testing"

	"gorm.io/datatypes"

	"github.com/F-O-T/contentagen-nx-sub000/internal/domain"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/pipeline"
	perrors "github.com/F-O-T/contentagen-nx-sub000/internal/pkg/errors"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/openai"
)

func TestDefaultCoversEveryLLMStage(t *testing.T) {
	s, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	stages := []string{
		pipeline.StageContentPlanning,
		pipeline.StageIdeaGeneration,
		pipeline.StageKnowledgeExtraction,
		pipeline.StageKnowledgeStructuring,
	}
	for _, l := range pipeline.Layouts {
		v := pipeline.VariantFor(l)
		stages = append(stages, v.Writer, v.Editor, v.Reviewer)
	}
	for _, st := range stages {
		if !s.Has(st) {
			t.Fatalf("missing prompt for %s", st)
		}
	}
}

func TestSystemIncludesPersonaAndRules(t *testing.T) {
	s, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	agent := &domain.Agent{
		Name:       "Ana",
		Persona:    "A friendly barista",
		Language:   "pt",
		BrandRules: datatypes.JSON(`["Never mention competitors"]`),
	}
	sys, err := s.System(agent)
	if err != nil {
		t.Fatalf("System: %v", err)
	}
	for _, want := range []string{"You are Ana", "A friendly barista", "Write in pt", "- Never mention competitors"} {
		if !strings.Contains(sys, want) {
			t.Fatalf("system prompt missing %q:\n%s", want, sys)
		}
	}
}

func TestUserRendersFormat(t *testing.T) {
	s, _ := Default()
	user, format, err := s.User("tutorial_review", map[string]any{
		"Layout": "tutorial",
		"Edited": "Step 1. Grind beans.",
	})
	if err != nil {
		t.Fatalf("User: %v", err)
	}
	if format != openai.FormatJSON {
		t.Fatalf("review format: want json got %s", format)
	}
	if !strings.Contains(user, "Step 1. Grind beans.") {
		t.Fatalf("user prompt: %s", user)
	}
}

func TestUserMissingInputIsFatal(t *testing.T) {
	s, _ := Default()
	if _, _, err := s.User("knowledge_extraction", map[string]any{"SourceType": "text"}); !errors.Is(err, perrors.ErrFatal) {
		t.Fatalf("missing template key: want fatal, got %v", err)
	}
	if _, _, err := s.User("unknown_stage", nil); !errors.Is(err, perrors.ErrFatal) {
		t.Fatalf("unknown stage: want fatal, got %v", err)
	}
}
