package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/F-O-T/contentagen-nx-sub000/internal/http/middleware"
	"github.com/F-O-T/contentagen-nx-sub000/internal/http/response"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
	"github.com/F-O-T/contentagen-nx-sub000/internal/realtime"
)

type RealtimeHandler struct {
	log *logger.Logger
	hub *realtime.SSEHub
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub) *RealtimeHandler {
	return &RealtimeHandler{log: log.With("handler", "RealtimeHandler"), hub: hub}
}

// GET /api/events/:subjectId
//
// Streams the status events of one subject until the client disconnects.
// Events carry seq so a reconnecting client can drop what it already saw.
func (h *RealtimeHandler) Events(c *gin.Context) {
	subjectID, err := uuid.Parse(c.Param("subjectId"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_subject_id", err)
		return
	}
	client := h.hub.NewSSEClient(c.GetString(middleware.SubjectKey))
	h.hub.AddChannel(client, subjectID.String())
	h.log.Debug("SSE stream open", "subject_id", subjectID, "client_id", client.ID)

	h.hub.ServeHTTP(c.Writer, c.Request, client)

	h.hub.CloseClient(client)
	h.log.Debug("SSE stream closed", "subject_id", subjectID, "client_id", client.ID)
}
