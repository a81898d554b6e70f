package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jakechorley/autoroster/pkg/core/allocator"
	"github.com/jakechorley/autoroster/pkg/core/ledger"
	"github.com/jakechorley/autoroster/pkg/core/roster"
	"github.com/jakechorley/autoroster/pkg/core/workflow"
)

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, errorResponse{Error: msg, RequestID: requestID(c)})
}

// writeServiceError maps domain errors onto status codes. Unrecognised errors are logged by the
// Logger middleware and hidden from the caller.
func writeServiceError(c *gin.Context, err error) {
	_ = c.Error(err)

	switch {
	case errors.Is(err, ledger.ErrLockTimeout):
		writeError(c, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, allocator.ErrInvalidPolicy),
		errors.Is(err, allocator.ErrUnknownCandidate),
		errors.Is(err, allocator.ErrInvalidState):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, roster.ErrRosterFull):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
