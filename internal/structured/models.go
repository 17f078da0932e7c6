package structured

import (
	"fmt"
	"strings"

	"github.com/F-O-T/contentagen-nx-sub000/internal/domain/knowledge"
	perrors "github.com/F-O-T/contentagen-nx-sub000/internal/pkg/errors"
)

// ParseKnowledgePoints parses the structuring model's output. Candidates
// without content or summary are dropped; dropped reports how many.
// sourceType and sourceIdentifier come from the run, not the model.
func ParseKnowledgePoints(raw, sourceType, sourceIdentifier string) (points []knowledge.Point, dropped int, err error) {
	items, err := ParseArray(raw)
	if err != nil {
		return nil, 0, err
	}
	points = make([]knowledge.Point, 0, len(items))
	for _, m := range items {
		content := String(m, "content")
		summary := String(m, "summary")
		if content == "" || summary == "" {
			dropped++
			continue
		}
		source := String(m, "source")
		if source == "" {
			source = sourceType
		}
		points = append(points, knowledge.Point{
			Content:          content,
			Summary:          summary,
			Category:         knowledge.ParseCategory(strings.ToLower(String(m, "category"))),
			Keywords:         StringList(m["keywords"]),
			Source:           source,
			SourceType:       sourceType,
			SourceIdentifier: sourceIdentifier,
		})
	}
	return points, dropped, nil
}

// IdeaDraft is one idea proposed by the generation model.
type IdeaDraft struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords,omitempty"`
}

// ParseIdeas accepts an array, a single object, or {"ideas":[...]}. Ideas
// without a title are dropped.
func ParseIdeas(raw string) ([]IdeaDraft, error) {
	items, err := ParseArrayField(raw, "ideas")
	if err != nil {
		return nil, err
	}
	out := make([]IdeaDraft, 0, len(items))
	seen := map[string]bool{}
	for _, m := range items {
		title := String(m, "title")
		if title == "" || seen[strings.ToLower(title)] {
			continue
		}
		seen[strings.ToLower(title)] = true
		out = append(out, IdeaDraft{
			Title:       title,
			Description: String(m, "description"),
			Keywords:    StringList(m["keywords"]),
		})
	}
	return out, nil
}

// Review is the reviewer stage's final copy.
type Review struct {
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Tags  []string `json:"tags"`
}

// ParseReview requires a non-empty title and body.
func ParseReview(raw string) (Review, error) {
	m, err := ParseObject(raw)
	if err != nil {
		return Review{}, err
	}
	r := Review{
		Title: String(m, "title"),
		Body:  String(m, "body"),
		Tags:  StringList(m["tags"]),
	}
	if r.Body == "" {
		r.Body = String(m, "content")
	}
	if r.Title == "" || r.Body == "" {
		return Review{}, fmt.Errorf("%w: review missing title or body", perrors.ErrMalformedOutput)
	}
	return r, nil
}
