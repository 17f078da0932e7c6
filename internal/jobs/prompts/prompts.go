// Package prompts renders the LLM prompts of every stage from the embedded
// prompts.yaml.
package prompts

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/F-O-T/contentagen-nx-sub000/internal/domain"
	perrors "github.com/F-O-T/contentagen-nx-sub000/internal/pkg/errors"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/openai"
)

//go:embed prompts.yaml
var embedded []byte

type file struct {
	Agent  string `yaml:"agent"`
	Stages map[string]struct {
		Format string `yaml:"format"`
		User   string `yaml:"user"`
	} `yaml:"stages"`
}

type stagePrompt struct {
	format openai.Format
	user   *template.Template
}

type Set struct {
	agent  *template.Template
	stages map[string]stagePrompt
}

// Default parses the embedded prompt file.
func Default() (*Set, error) {
	return Parse(embedded)
}

func Parse(raw []byte) (*Set, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}
	agent, err := template.New("agent").Option("missingkey=error").Parse(f.Agent)
	if err != nil {
		return nil, fmt.Errorf("agent prompt: %w", err)
	}
	s := &Set{agent: agent, stages: make(map[string]stagePrompt, len(f.Stages))}
	for name, sp := range f.Stages {
		tpl, err := template.New(name).Option("missingkey=error").Parse(sp.User)
		if err != nil {
			return nil, fmt.Errorf("stage prompt %s: %w", name, err)
		}
		format := openai.FormatText
		if strings.EqualFold(sp.Format, string(openai.FormatJSON)) {
			format = openai.FormatJSON
		}
		s.stages[name] = stagePrompt{format: format, user: tpl}
	}
	return s, nil
}

// Has reports whether stage has a prompt.
func (s *Set) Has(stage string) bool {
	_, ok := s.stages[stage]
	return ok
}

// System renders the agent block used as the system prompt of every stage
// of a run.
func (s *Set) System(agent *domain.Agent) (string, error) {
	var rules []string
	if len(agent.BrandRules) > 0 {
		if err := json.Unmarshal(agent.BrandRules, &rules); err != nil {
			// Rules stored as a free-form object are passed through as text.
			rules = []string{string(agent.BrandRules)}
		}
	}
	lang := strings.TrimSpace(agent.Language)
	if lang == "" {
		lang = "en"
	}
	var buf bytes.Buffer
	err := s.agent.Execute(&buf, map[string]any{
		"Agent":      agent,
		"Language":   lang,
		"BrandRules": rules,
	})
	if err != nil {
		return "", fmt.Errorf("%w: render agent prompt: %v", perrors.ErrFatal, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// User renders stage's user prompt with data and returns the output format
// the stage expects.
func (s *Set) User(stage string, data map[string]any) (string, openai.Format, error) {
	sp, ok := s.stages[stage]
	if !ok {
		return "", "", fmt.Errorf("%w: no prompt for stage %s", perrors.ErrFatal, stage)
	}
	var buf bytes.Buffer
	if err := sp.user.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("%w: render %s prompt: %v", perrors.ErrFatal, stage, err)
	}
	return strings.TrimSpace(buf.String()), sp.format, nil
}
