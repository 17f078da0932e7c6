package pipeline

import (
	"fmt"
	"strings"

	"github.com/F-O-T/contentagen-nx-sub000/internal/domain"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/payload"
	perrors "github.com/F-O-T/contentagen-nx-sub000/internal/pkg/errors"
)

type Type string

const (
	TypeContent   Type = "content"
	TypeIdea      Type = "idea"
	TypeKnowledge Type = "knowledge"
)

func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeContent, TypeIdea, TypeKnowledge:
		return Type(s), nil
	default:
		return "", perrors.Contract("unknown pipeline type %q", s)
	}
}

// StageDescriptor declares a stage's payload contract.
type StageDescriptor struct {
	Name     string
	Required []string
	Outputs  []string
}

// Definition is the static declaration of one pipeline type.
type Definition struct {
	Type        Type
	SubjectType domain.SubjectType
	// SubjectKey is the payload key holding the id status events are keyed by.
	SubjectKey    string
	InitialFields []string
	DoneMessage   string

	resolve   func(p payload.Payload) ([]StageDescriptor, error)
	routes    func() [][]StageDescriptor
	check     func(p payload.Payload) error
	normalize func(p payload.Payload) payload.Fields
}

// Check rejects a payload whose initial fields are present but unusable:
// every "...Id" field must parse as a UUID, plus any type-specific rule.
func (d *Definition) Check(p payload.Payload) error {
	for _, f := range d.InitialFields {
		if !strings.HasSuffix(f, "Id") {
			continue
		}
		if _, err := p.UUID(f); err != nil {
			return perrors.Contract("pipeline %s: %v", d.Type, err)
		}
	}
	if d.check != nil {
		return d.check(p)
	}
	return nil
}

// Normalize rewrites caller input into its canonical form. It returns p
// unchanged when the definition has nothing to normalize.
func (d *Definition) Normalize(p payload.Payload) payload.Payload {
	if d.normalize == nil {
		return p
	}
	fields := d.normalize(p)
	if len(fields) == 0 {
		return p
	}
	return payload.Advance(p, fields)
}

// Resolve picks the stage sequence for a run. It is called once, when the
// run is triggered.
func (d *Definition) Resolve(p payload.Payload) ([]StageDescriptor, error) {
	return d.resolve(p)
}

// Routes returns every route the definition can resolve to.
func (d *Definition) Routes() [][]StageDescriptor {
	return d.routes()
}

// Stage finds a stage descriptor by name across all routes.
func (d *Definition) Stage(name string) (StageDescriptor, bool) {
	for _, r := range d.routes() {
		for _, s := range r {
			if s.Name == name {
				return s, true
			}
		}
	}
	return StageDescriptor{}, false
}

// StageNames lists the distinct stage names of the definition in route order.
func (d *Definition) StageNames() []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range d.routes() {
		for _, s := range r {
			if !seen[s.Name] {
				seen[s.Name] = true
				out = append(out, s.Name)
			}
		}
	}
	return out
}

func static(stages ...StageDescriptor) (func(payload.Payload) ([]StageDescriptor, error), func() [][]StageDescriptor) {
	return func(payload.Payload) ([]StageDescriptor, error) { return stages, nil },
		func() [][]StageDescriptor { return [][]StageDescriptor{stages} }
}

// Payload keys shared by the stage implementations.
const (
	KeyAgentID          = "agentId"
	KeyRequestID        = "requestId"
	KeyDescription      = "description"
	KeyLayout           = "layout"
	KeySystemPrompt     = "systemPrompt"
	KeyLanguage         = "language"
	KeyOutline          = "outline"
	KeyDraft            = "draft"
	KeyEdited           = "edited"
	KeyTitle            = "title"
	KeyBody             = "body"
	KeyTags             = "tags"
	KeyContentID        = "contentId"
	KeyWordsCount       = "wordsCount"
	KeyReadTime         = "readTimeMinutes"
	KeyExistingTitles   = "existingTitles"
	KeyIdeas            = "ideas"
	KeyValidatedIdeas   = "validatedIdeas"
	KeyIdeaIDs          = "ideaIds"
	KeyIdeaCount        = "count"
	KeyKnowledgeJobID   = "knowledgeJobId"
	KeySourceType       = "sourceType"
	KeySourceIdentifier = "sourceIdentifier"
	KeySourceURI        = "sourceUri"
	KeyRawText          = "rawText"
	KeyExtractedText    = "extractedText"
	KeyPoints           = "points"
	KeyChunkCount       = "chunkCount"
)

// Stage names that are not layout specific.
const (
	StageContentPlanning      = "content_planning"
	StageContentPersist       = "content_persist"
	StageIdeaContext          = "idea_context"
	StageIdeaGeneration       = "idea_generation"
	StageIdeaValidation       = "idea_validation"
	StageIdeaPersist          = "idea_persist"
	StageKnowledgeSourceLoad  = "knowledge_source_load"
	StageKnowledgeExtraction  = "knowledge_extraction"
	StageKnowledgeStructuring = "knowledge_structuring"
	StageKnowledgePersist     = "knowledge_persist"
)

// ContentRoute is the content pipeline's stage sequence for one layout.
func ContentRoute(l Layout) []StageDescriptor {
	v := VariantFor(l)
	return []StageDescriptor{
		{
			Name:     StageContentPlanning,
			Required: []string{KeyAgentID, KeyRequestID, KeyDescription, KeyLayout},
			Outputs:  []string{KeySystemPrompt, KeyLanguage, KeyOutline},
		},
		{
			Name:     v.Writer,
			Required: []string{KeySystemPrompt, KeyOutline, KeyDescription},
			Outputs:  []string{KeyDraft},
		},
		{
			Name:     v.Editor,
			Required: []string{KeySystemPrompt, KeyDraft},
			Outputs:  []string{KeyEdited},
		},
		{
			Name:     v.Reviewer,
			Required: []string{KeySystemPrompt, KeyEdited},
			Outputs:  []string{KeyTitle, KeyBody, KeyTags},
		},
		{
			Name:     StageContentPersist,
			Required: []string{KeyAgentID, KeyRequestID, KeyLayout, KeyTitle, KeyBody, KeyTags},
			Outputs:  []string{KeyContentID, KeyWordsCount, KeyReadTime},
		},
	}
}

func contentDefinition() *Definition {
	return &Definition{
		Type:          TypeContent,
		SubjectType:   domain.SubjectContent,
		SubjectKey:    KeyRequestID,
		InitialFields: []string{KeyAgentID, KeyRequestID, KeyDescription, KeyLayout},
		DoneMessage:   "Content generated",
		resolve: func(p payload.Payload) ([]StageDescriptor, error) {
			l, err := ParseLayout(p.String(KeyLayout))
			if err != nil {
				return nil, err
			}
			return ContentRoute(l), nil
		},
		routes: func() [][]StageDescriptor {
			out := make([][]StageDescriptor, 0, len(Layouts))
			for _, l := range Layouts {
				out = append(out, ContentRoute(l))
			}
			return out
		},
		check: func(p payload.Payload) error {
			_, err := ParseLayout(p.String(KeyLayout))
			return err
		},
		normalize: func(p payload.Payload) payload.Fields {
			l, err := ParseLayout(p.String(KeyLayout))
			if err != nil || string(l) == p.String(KeyLayout) {
				return nil
			}
			return payload.Fields{KeyLayout: string(l)}
		},
	}
}

func ideaDefinition() *Definition {
	d := &Definition{
		Type:          TypeIdea,
		SubjectType:   domain.SubjectIdea,
		SubjectKey:    KeyAgentID,
		InitialFields: []string{KeyAgentID},
		DoneMessage:   "Ideas generated",
	}
	d.resolve, d.routes = static(
		StageDescriptor{
			Name:     StageIdeaContext,
			Required: []string{KeyAgentID},
			Outputs:  []string{KeySystemPrompt, KeyExistingTitles},
		},
		StageDescriptor{
			Name:     StageIdeaGeneration,
			Required: []string{KeySystemPrompt, KeyExistingTitles},
			Outputs:  []string{KeyIdeas},
		},
		StageDescriptor{
			Name:     StageIdeaValidation,
			Required: []string{KeyAgentID, KeyIdeas},
			Outputs:  []string{KeyValidatedIdeas},
		},
		StageDescriptor{
			Name:     StageIdeaPersist,
			Required: []string{KeyAgentID, KeyValidatedIdeas},
			Outputs:  []string{KeyIdeaIDs},
		},
	)
	return d
}

func knowledgeDefinition() *Definition {
	d := &Definition{
		Type:          TypeKnowledge,
		SubjectType:   domain.SubjectKnowledgeJob,
		SubjectKey:    KeyKnowledgeJobID,
		InitialFields: []string{KeyKnowledgeJobID, KeyAgentID, KeySourceType, KeySourceIdentifier},
		DoneMessage:   "Knowledge distilled",
		check: func(p payload.Payload) error {
			if strings.TrimSpace(p.String(KeyRawText)) == "" && strings.TrimSpace(p.String(KeySourceURI)) == "" {
				return perrors.Contract("pipeline %s: one of %s or %s is required", TypeKnowledge, KeyRawText, KeySourceURI)
			}
			return nil
		},
	}
	d.resolve, d.routes = static(
		StageDescriptor{
			Name:     StageKnowledgeSourceLoad,
			Required: []string{KeyKnowledgeJobID, KeyAgentID, KeySourceType, KeySourceIdentifier},
			Outputs:  []string{KeyRawText},
		},
		StageDescriptor{
			Name:     StageKnowledgeExtraction,
			Required: []string{KeyRawText, KeySourceType},
			Outputs:  []string{KeyExtractedText},
		},
		StageDescriptor{
			Name:     StageKnowledgeStructuring,
			Required: []string{KeyExtractedText, KeySourceType, KeySourceIdentifier},
			Outputs:  []string{KeyPoints},
		},
		StageDescriptor{
			Name:     StageKnowledgePersist,
			Required: []string{KeyKnowledgeJobID, KeyAgentID, KeyPoints},
			Outputs:  []string{KeyChunkCount},
		},
	)
	return d
}

// Definitions returns fresh declarations of every pipeline type.
func Definitions() []*Definition {
	return []*Definition{contentDefinition(), ideaDefinition(), knowledgeDefinition()}
}

// Lookup finds the declaration for t among defs.
func Lookup(defs []*Definition, t Type) (*Definition, error) {
	for _, d := range defs {
		if d.Type == t {
			return d, nil
		}
	}
	return nil, fmt.Errorf("pipeline %q is not declared", t)
}
