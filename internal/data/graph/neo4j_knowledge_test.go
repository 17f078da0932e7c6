package graph

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/F-O-T/contentagen-nx-sub000/internal/domain"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
)

func TestNilClientProjectsNothing(t *testing.T) {
	p := NewKnowledgeProjector(nil, logger.Nop())
	if err := p.ProjectKnowledge(context.Background(), uuid.New(), uuid.New(), nil); err != nil {
		t.Fatalf("nop projector: %v", err)
	}
}

func TestChunkNodesNormalizesKeywords(t *testing.T) {
	cat := "product"
	chunks := []*domain.KnowledgeChunk{
		nil,
		{ID: uuid.Nil, Content: "skipped"},
		{
			ID:       uuid.New(),
			Content:  strings.Repeat("x", 2000),
			Summary:  "Espresso blend",
			Category: &cat,
			Keywords: datatypes.JSON(`[" Espresso ","Blend"]`),
		},
	}
	nodes := chunkNodes(chunks, "now")
	if len(nodes) != 1 {
		t.Fatalf("want 1 node got %d", len(nodes))
	}
	n := nodes[0]
	kws := n["keywords"].([]string)
	if len(kws) != 2 || kws[0] != "espresso" || kws[1] != "blend" {
		t.Fatalf("keywords: %v", kws)
	}
	if len(n["content"].(string)) != 1600 {
		t.Fatalf("content not truncated")
	}
	if n["category"] != "product" {
		t.Fatalf("category: %v", n["category"])
	}
}
