package graph

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/F-O-T/contentagen-nx-sub000/internal/domain"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/neo4jdb"
)

// KnowledgeProjector mirrors persisted knowledge chunks into a graph. The
// relational store stays the source of truth.
type KnowledgeProjector interface {
	ProjectKnowledge(ctx context.Context, agentID, jobID uuid.UUID, chunks []*domain.KnowledgeChunk) error
}

type neo4jKnowledge struct {
	client *neo4jdb.Client
	log    *logger.Logger
}

// NewKnowledgeProjector returns a no-op projector when client is nil.
func NewKnowledgeProjector(client *neo4jdb.Client, log *logger.Logger) KnowledgeProjector {
	if client == nil || client.Driver == nil {
		return nopProjector{}
	}
	return &neo4jKnowledge{client: client, log: log.With("service", "KnowledgeGraph")}
}

type nopProjector struct{}

func (nopProjector) ProjectKnowledge(context.Context, uuid.UUID, uuid.UUID, []*domain.KnowledgeChunk) error {
	return nil
}

func chunkNodes(chunks []*domain.KnowledgeChunk, now string) []map[string]any {
	out := make([]map[string]any, 0, len(chunks))
	for _, c := range chunks {
		if c == nil || c.ID == uuid.Nil {
			continue
		}
		var keywords []string
		if len(c.Keywords) > 0 {
			_ = json.Unmarshal(c.Keywords, &keywords)
		}
		for i := range keywords {
			keywords[i] = strings.ToLower(strings.TrimSpace(keywords[i]))
		}
		category := ""
		if c.Category != nil {
			category = *c.Category
		}
		out = append(out, map[string]any{
			"id":                c.ID.String(),
			"summary":           truncateString(c.Summary, 900),
			"content":           truncateString(c.Content, 1600),
			"category":          category,
			"keywords":          keywords,
			"source_type":       c.SourceType,
			"source_identifier": c.SourceIdentifier,
			"synced_at":         now,
		})
	}
	return out
}

func (g *neo4jKnowledge) ProjectKnowledge(ctx context.Context, agentID, jobID uuid.UUID, chunks []*domain.KnowledgeChunk) error {
	if agentID == uuid.Nil || jobID == uuid.Nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	nodes := chunkNodes(chunks, now)

	session := g.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: g.client.Database,
	})
	defer session.Close(ctx)

	// Best-effort schema init.
	for _, q := range []string{
		`CREATE CONSTRAINT agent_id_unique IF NOT EXISTS FOR (a:Agent) REQUIRE a.id IS UNIQUE`,
		`CREATE CONSTRAINT knowledge_chunk_id_unique IF NOT EXISTS FOR (c:KnowledgeChunk) REQUIRE c.id IS UNIQUE`,
		`CREATE CONSTRAINT keyword_name_unique IF NOT EXISTS FOR (k:Keyword) REQUIRE k.name IS UNIQUE`,
	} {
		if res, err := session.Run(ctx, q, nil); err != nil {
			g.log.Warn("neo4j schema init failed (continuing)", "error", err)
		} else {
			_, _ = res.Consume(ctx)
		}
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MERGE (a:Agent {id: $agent_id})
MERGE (j:KnowledgeJob {id: $job_id})
SET j.synced_at = $synced_at
MERGE (j)-[:FOR_AGENT]->(a)
`, map[string]any{"agent_id": agentID.String(), "job_id": jobID.String(), "synced_at": now})
		if err != nil {
			return nil, err
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}
		if len(nodes) == 0 {
			return nil, nil
		}

		res, err = tx.Run(ctx, `
UNWIND $chunks AS c
MERGE (kc:KnowledgeChunk {id: c.id})
SET kc.summary = c.summary,
    kc.content = c.content,
    kc.category = c.category,
    kc.source_type = c.source_type,
    kc.source_identifier = c.source_identifier,
    kc.synced_at = c.synced_at
WITH kc, c
MATCH (j:KnowledgeJob {id: $job_id})-[:FOR_AGENT]->(a:Agent)
MERGE (kc)-[:FROM_JOB]->(j)
MERGE (a)-[:KNOWS]->(kc)
WITH kc, c
FOREACH (kw IN [k IN c.keywords WHERE k <> ''] |
  MERGE (kn:Keyword {name: kw})
  MERGE (kc)-[:TAGGED]->(kn)
)
FOREACH (_ IN CASE WHEN c.category <> '' THEN [1] ELSE [] END |
  MERGE (cat:Category {name: c.category})
  MERGE (kc)-[:IN_CATEGORY]->(cat)
)
`, map[string]any{"chunks": nodes, "job_id": jobID.String()})
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	return err
}

func truncateString(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
