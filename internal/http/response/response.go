package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	perrors "github.com/F-O-T/contentagen-nx-sub000/internal/pkg/errors"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondDomainError maps the error's category to a status and code.
func RespondDomainError(c *gin.Context, err error) {
	switch {
	case perrors.Is(err, perrors.ErrContractViolation):
		RespondError(c, http.StatusBadRequest, "contract_violation", err)
	case perrors.Is(err, perrors.ErrNotFound):
		RespondError(c, http.StatusNotFound, "not_found", err)
	case perrors.Is(err, perrors.ErrDimensionMismatch):
		RespondError(c, http.StatusUnprocessableEntity, "dimension_mismatch", err)
	case perrors.Is(err, perrors.ErrUnauthorized):
		RespondError(c, http.StatusUnauthorized, "unauthorized", err)
	case perrors.Classify(err) == perrors.Retryable:
		RespondError(c, http.StatusServiceUnavailable, "unavailable", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal", err)
	}
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondAccepted(c *gin.Context, payload any) {
	c.JSON(http.StatusAccepted, payload)
}
