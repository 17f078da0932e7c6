package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/F-O-T/contentagen-nx-sub000/internal/domain"
	"github.com/F-O-T/contentagen-nx-sub000/internal/http/response"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/payload"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/pipeline"
	perrors "github.com/F-O-T/contentagen-nx-sub000/internal/pkg/errors"
)

// PipelineService is the orchestrator surface the API needs.
type PipelineService interface {
	TriggerPipeline(ctx context.Context, t pipeline.Type, initial payload.Payload) (uuid.UUID, error)
	Status(ctx context.Context, pipelineID uuid.UUID) (*domain.PipelineRun, error)
	Jobs(ctx context.Context, pipelineID uuid.UUID) ([]*domain.PipelineJob, error)
	Cancel(ctx context.Context, pipelineID uuid.UUID) (*domain.PipelineRun, error)
}

// pipelineParam holds the pipeline type on trigger and the pipeline id
// everywhere else.
const pipelineParam = "pipeline"

type PipelineHandler struct {
	pipelines PipelineService
}

func NewPipelineHandler(pipelines PipelineService) *PipelineHandler {
	return &PipelineHandler{pipelines: pipelines}
}

type jobView struct {
	Stage   string           `json:"stage"`
	Status  domain.JobStatus `json:"status"`
	Attempt int              `json:"attempt"`
	Error   string           `json:"error,omitempty"`
}

// POST /api/pipelines/:type
func (h *PipelineHandler) Trigger(c *gin.Context) {
	t, err := pipeline.ParseType(c.Param(pipelineParam))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_pipeline_type", err)
		return
	}
	var initial payload.Payload
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	if err := dec.Decode(&initial); err != nil || initial == nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_payload", perrors.Contract("body must be a JSON object"))
		return
	}
	id, err := h.pipelines.TriggerPipeline(c.Request.Context(), t, initial)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondAccepted(c, gin.H{"pipelineId": id})
}

// GET /api/pipelines/:id
func (h *PipelineHandler) Status(c *gin.Context) {
	id, err := uuid.Parse(c.Param(pipelineParam))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_pipeline_id", err)
		return
	}
	run, err := h.pipelines.Status(c.Request.Context(), id)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	list, err := h.pipelines.Jobs(c.Request.Context(), id)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	views := make([]jobView, 0, len(list))
	for _, j := range list {
		views = append(views, jobView{Stage: j.Stage, Status: j.Status, Attempt: j.Attempt, Error: j.Error})
	}
	response.RespondOK(c, gin.H{"run": run, "jobs": views})
}

// POST /api/pipelines/:id/cancel
func (h *PipelineHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param(pipelineParam))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_pipeline_id", err)
		return
	}
	run, err := h.pipelines.Cancel(c.Request.Context(), id)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"run": run})
}
