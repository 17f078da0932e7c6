package repos

import (
	"gorm.io/gorm"

	"github.com/F-O-T/contentagen-nx-sub000/internal/data/repos/content"
	"github.com/F-O-T/contentagen-nx-sub000/internal/data/repos/jobs"
	"github.com/F-O-T/contentagen-nx-sub000/internal/data/repos/knowledge"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
)

type PipelineJobRepo = jobs.PipelineJobRepo
type PipelineRunRepo = jobs.PipelineRunRepo

type AgentRepo = content.AgentRepo
type ContentRequestRepo = content.ContentRequestRepo
type ContentRepo = content.ContentRepo
type IdeaRepo = content.IdeaRepo

type KnowledgeJobRepo = knowledge.JobRepo
type KnowledgeChunkRepo = knowledge.ChunkRepo

// Repos bundles every repository over one database handle.
type Repos struct {
	PipelineJobs    PipelineJobRepo
	PipelineRuns    PipelineRunRepo
	Agents          AgentRepo
	ContentRequests ContentRequestRepo
	Contents        ContentRepo
	Ideas           IdeaRepo
	KnowledgeJobs   KnowledgeJobRepo
	KnowledgeChunks KnowledgeChunkRepo
}

func New(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		PipelineJobs:    jobs.NewPipelineJobRepo(db, log),
		PipelineRuns:    jobs.NewPipelineRunRepo(db, log),
		Agents:          content.NewAgentRepo(db, log),
		ContentRequests: content.NewContentRequestRepo(db, log),
		Contents:        content.NewContentRepo(db, log),
		Ideas:           content.NewIdeaRepo(db, log),
		KnowledgeJobs:   knowledge.NewJobRepo(db, log),
		KnowledgeChunks: knowledge.NewChunkRepo(db, log),
	}
}
