package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/F-O-T/contentagen-nx-sub000/internal/http/response"
	perrors "github.com/F-O-T/contentagen-nx-sub000/internal/pkg/errors"
	"github.com/F-O-T/contentagen-nx-sub000/internal/similarity"
)

type Comparer interface {
	Compare(ctx context.Context, a, b string) (similarity.Result, error)
}

type SimilarityHandler struct {
	engine Comparer
}

func NewSimilarityHandler(engine Comparer) *SimilarityHandler {
	return &SimilarityHandler{engine: engine}
}

type compareRequest struct {
	A string `json:"a"`
	B string `json:"b"`
}

// POST /api/similarity
func (h *SimilarityHandler) Compare(c *gin.Context) {
	var req compareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if strings.TrimSpace(req.A) == "" || strings.TrimSpace(req.B) == "" {
		response.RespondDomainError(c, perrors.Contract("both a and b are required"))
		return
	}
	res, err := h.engine.Compare(c.Request.Context(), req.A, req.B)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, res)
}
