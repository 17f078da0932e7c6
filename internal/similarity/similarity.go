package similarity

import (
	"context"
	"fmt"
	"math"
	"strings"

	perrors "github.com/F-O-T/contentagen-nx-sub000/internal/pkg/errors"
)

// Embedder is the vector-embedding provider.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

type Category string

const (
	CategorySuccess Category = "success"
	CategoryInfo    Category = "info"
	CategoryWarning Category = "warning"
	CategoryError   Category = "error"
)

// Thresholds are the lower bounds of the error, warning and info bands.
type Thresholds struct {
	Duplicate float64 `yaml:"duplicate"`
	Similar   float64 `yaml:"similar"`
	Related   float64 `yaml:"related"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{Duplicate: 0.9, Similar: 0.7, Related: 0.5}
}

// Result is derived on demand and never stored as such.
type Result struct {
	Score    float64  `json:"score"`
	Category Category `json:"category"`
	Message  string   `json:"message"`
}

type Engine struct {
	embedder   Embedder
	thresholds Thresholds
}

func NewEngine(embedder Embedder, thresholds Thresholds) *Engine {
	if thresholds == (Thresholds{}) {
		thresholds = DefaultThresholds()
	}
	return &Engine{embedder: embedder, thresholds: thresholds}
}

func (e *Engine) Thresholds() Thresholds { return e.thresholds }

// Embed returns the embedding of one text. No retry happens here.
func (e *Engine) Embed(ctx context.Context, text string) ([]float32, error) {
	if e == nil || e.embedder == nil {
		return nil, fmt.Errorf("embed: no provider configured")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("embed: empty input")
	}
	vecs, err := e.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("embed: provider returned %d vectors", len(vecs))
	}
	return vecs[0], nil
}

// Field is one labeled part of an embedding input.
type Field struct {
	Label string
	Value string
}

// LabeledText renders fields as "Label: value" lines, skipping blank values.
func LabeledText(fields ...Field) string {
	var b strings.Builder
	for _, f := range fields {
		v := strings.TrimSpace(f.Value)
		if v == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(f.Label)
		b.WriteString(": ")
		b.WriteString(v)
	}
	return b.String()
}

func (e *Engine) EmbedFields(ctx context.Context, fields ...Field) ([]float32, error) {
	return e.Embed(ctx, LabeledText(fields...))
}

// CosineSimilarity is dot(a,b)/(|a||b|). A zero-magnitude input yields 0.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", perrors.ErrDimensionMismatch, len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return math.Max(-1, math.Min(1, s)), nil
}

// MaxSimilarity returns the best score of candidate against corpus. Entries
// of a different dimension are skipped.
func MaxSimilarity(candidate []float32, corpus [][]float32) float64 {
	best := 0.0
	for _, v := range corpus {
		s, err := CosineSimilarity(candidate, v)
		if err != nil {
			continue
		}
		if s > best {
			best = s
		}
	}
	return best
}

func (e *Engine) Categorize(score float64) Result {
	return Categorize(score, e.thresholds)
}

// Categorize buckets score by t. Results carry a score clamped to [0, 1]:
// opposed vectors read as unrelated.
func Categorize(score float64, t Thresholds) Result {
	if math.IsNaN(score) || score < 0 {
		score = 0
	} else if score > 1 {
		score = 1
	}
	switch {
	case score >= t.Duplicate:
		return Result{Score: score, Category: CategoryError, Message: "Very similar content already exists"}
	case score >= t.Similar:
		return Result{Score: score, Category: CategoryWarning, Message: "Similar content exists; consider a different angle"}
	case score >= t.Related:
		return Result{Score: score, Category: CategoryInfo, Message: "Related content exists"}
	default:
		return Result{Score: score, Category: CategorySuccess, Message: "Content is unique"}
	}
}

// Compare embeds both texts and categorizes their similarity.
func (e *Engine) Compare(ctx context.Context, a, b string) (Result, error) {
	va, err := e.Embed(ctx, a)
	if err != nil {
		return Result{}, err
	}
	vb, err := e.Embed(ctx, b)
	if err != nil {
		return Result{}, err
	}
	s, err := CosineSimilarity(va, vb)
	if err != nil {
		return Result{}, err
	}
	return e.Categorize(s), nil
}
