package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"

	"github.com/F-O-T/contentagen-nx-sub000/internal/data/repos"
	"github.com/F-O-T/contentagen-nx-sub000/internal/data/repos/testutil"
	"github.com/F-O-T/contentagen-nx-sub000/internal/domain"
	contenttypes "github.com/F-O-T/contentagen-nx-sub000/internal/domain/content"
	"github.com/F-O-T/contentagen-nx-sub000/internal/domain/knowledge"
	"github.com/F-O-T/contentagen-nx-sub000/internal/pkg/dbctx"
	perrors "github.com/F-O-T/contentagen-nx-sub000/internal/pkg/errors"
)

func setup(t *testing.T) (Gateway, repos.Repos) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	r := repos.New(db, log)
	return New(db, log, r), r
}

func TestCreateArtifactIsIdempotentAndCompletesRequest(t *testing.T) {
	gw, r := setup(t)
	ctx := context.Background()
	dbc := dbctx.For(ctx)

	agent := &domain.Agent{Name: "Ada", Persona: "Friendly engineer"}
	if err := r.Agents.Create(dbc, agent); err != nil {
		t.Fatalf("create agent: %v", err)
	}
	req := &domain.ContentRequest{AgentID: agent.ID, Description: "Queues in Go", Layout: "tutorial", Status: contenttypes.StatusAnalyzing}
	if err := r.ContentRequests.Create(dbc, req); err != nil {
		t.Fatalf("create request: %v", err)
	}

	pipelineID := uuid.New()
	vec := pgvector.NewVector([]float32{1, 2, 3})
	artifact := &domain.Content{
		ID:              contenttypes.ArtifactID(pipelineID),
		AgentID:         agent.ID,
		RequestID:       req.ID,
		PipelineID:      pipelineID,
		Layout:          "tutorial",
		Title:           "Queues",
		Body:            "body text",
		Tags:            datatypes.JSON(`["go"]`),
		WordsCount:      2,
		ReadTimeMinutes: 1,
		Embedding:       &vec,
	}
	if _, err := gw.CreateArtifact(ctx, artifact); err != nil {
		t.Fatalf("CreateArtifact: %v", err)
	}
	replay := *artifact
	replay.Title = "Changed"
	stored, err := gw.CreateArtifact(ctx, &replay)
	if err != nil {
		t.Fatalf("CreateArtifact replay: %v", err)
	}
	if stored.Title != "Queues" {
		t.Fatalf("replay overwrote artifact: %q", stored.Title)
	}

	list, err := r.Contents.ListByAgent(dbc, agent.ID)
	if err != nil {
		t.Fatalf("ListByAgent: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 artifact, got %d", len(list))
	}
	got, err := r.ContentRequests.GetByID(dbc, req.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != contenttypes.StatusCompleted {
		t.Fatalf("request not completed: %s", got.Status)
	}
}

func TestGetAgentNotFoundIsFatal(t *testing.T) {
	gw, _ := setup(t)
	_, err := gw.GetAgent(context.Background(), uuid.New())
	if !errors.Is(err, perrors.ErrNotFound) {
		t.Fatalf("want ErrNotFound got %v", err)
	}
	if perrors.Classify(err) != perrors.Fatal {
		t.Fatalf("missing agent must be fatal")
	}
}

func TestInsertKnowledgeChunks(t *testing.T) {
	gw, r := setup(t)
	ctx := context.Background()
	dbc := dbctx.For(ctx)

	job := &domain.KnowledgeJob{AgentID: uuid.New(), SourceType: "text", SourceIdentifier: "notes.txt"}
	if err := r.KnowledgeJobs.Create(dbc, job); err != nil {
		t.Fatalf("create job: %v", err)
	}
	vec := pgvector.NewVector([]float32{0.1, 0.2})
	chunks := []*domain.KnowledgeChunk{
		{ID: knowledge.ChunkID(job.ID, 0), JobID: job.ID, AgentID: job.AgentID, Content: "c0", Summary: "s0", SourceType: "text", SourceIdentifier: "notes.txt", Embedding: &vec},
		{ID: knowledge.ChunkID(job.ID, 1), JobID: job.ID, AgentID: job.AgentID, Content: "c1", Summary: "s1", SourceType: "text", SourceIdentifier: "notes.txt"},
	}
	n, err := gw.InsertKnowledgeChunks(ctx, job.ID, chunks)
	if err != nil {
		t.Fatalf("InsertKnowledgeChunks: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 inserted, got %d", n)
	}
	n, err = gw.InsertKnowledgeChunks(ctx, job.ID, chunks)
	if err != nil {
		t.Fatalf("InsertKnowledgeChunks replay: %v", err)
	}
	if n != 0 {
		t.Fatalf("replay should insert nothing, got %d", n)
	}

	stored, err := r.KnowledgeChunks.ListByJob(dbc, job.ID)
	if err != nil {
		t.Fatalf("ListByJob: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(stored))
	}
	gotJob, _ := r.KnowledgeJobs.GetByID(dbc, job.ID)
	if gotJob.Status != contenttypes.StatusCompleted || gotJob.ChunkCount != 2 {
		t.Fatalf("job not completed: %+v", gotJob)
	}
}

func TestInsertZeroKnowledgeChunksCompletesJob(t *testing.T) {
	gw, r := setup(t)
	ctx := context.Background()
	job := &domain.KnowledgeJob{AgentID: uuid.New(), SourceType: "text", SourceIdentifier: "empty.txt"}
	if err := r.KnowledgeJobs.Create(dbctx.For(ctx), job); err != nil {
		t.Fatalf("create job: %v", err)
	}
	if _, err := gw.InsertKnowledgeChunks(ctx, job.ID, nil); err != nil {
		t.Fatalf("InsertKnowledgeChunks: %v", err)
	}
	gotJob, _ := r.KnowledgeJobs.GetByID(dbctx.For(ctx), job.ID)
	if gotJob.Status != contenttypes.StatusCompleted || gotJob.ChunkCount != 0 {
		t.Fatalf("job not completed: %+v", gotJob)
	}
}

func TestIdeaEmbeddingsRoundTrip(t *testing.T) {
	gw, _ := setup(t)
	ctx := context.Background()
	agentID := uuid.New()
	pipelineID := uuid.New()
	vec := pgvector.NewVector([]float32{0.5, 0.5})
	ideas := []*domain.Idea{
		{ID: contenttypes.IdeaID(pipelineID, 0), AgentID: agentID, PipelineID: pipelineID, Title: "A", SimilarityCategory: "success", Status: "pending", Embedding: &vec},
		{ID: contenttypes.IdeaID(pipelineID, 1), AgentID: agentID, PipelineID: pipelineID, Title: "B", SimilarityCategory: "success", Status: "pending"},
	}
	if _, err := gw.CreateIdeas(ctx, ideas); err != nil {
		t.Fatalf("CreateIdeas: %v", err)
	}
	embs, err := gw.ListIdeaEmbeddings(ctx, agentID)
	if err != nil {
		t.Fatalf("ListIdeaEmbeddings: %v", err)
	}
	if len(embs) != 1 || len(embs[0]) != 2 {
		t.Fatalf("unexpected embeddings: %v", embs)
	}
	titles, err := gw.ListIdeaTitles(ctx, agentID, 10)
	if err != nil || len(titles) != 2 {
		t.Fatalf("ListIdeaTitles: %v %v", titles, err)
	}
}
