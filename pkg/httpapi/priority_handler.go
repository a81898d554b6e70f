package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jakechorley/autoroster/pkg/core/ledger"
	"github.com/jakechorley/autoroster/pkg/core/model"
)

// PriorityLedger is the part of ledger.Ledger the API exposes
type PriorityLedger interface {
	List(ctx context.Context) ([]model.PriorityEntry, error)
	Get(ctx context.Context, email string) (int, error)
	AdjustOne(ctx context.Context, email, name string, delta int) (int, error)
	AdjustBatch(ctx context.Context, adjustments []model.Adjustment) (ledger.BatchSummary, error)
}

type PriorityHandler struct {
	ledger PriorityLedger
}

func NewPriorityHandler(l PriorityLedger) *PriorityHandler {
	return &PriorityHandler{ledger: l}
}

type priorityResponse struct {
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Priority int    `json:"priority"`
}

type adjustRequest struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name"`
	Delta int    `json:"amountChange" binding:"required"`
}

type batchAdjustRequest struct {
	Adjustments []model.Adjustment `json:"adjustments" binding:"required"`
}

func (h *PriorityHandler) List(c *gin.Context) {
	entries, err := h.ledger.List(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}

	out := make([]priorityResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, priorityResponse{Email: e.Email, Name: e.Name, Priority: e.Priority})
	}
	c.JSON(http.StatusOK, gin.H{"priorities": out})
}

// Get returns 0 for an email the ledger has never seen
func (h *PriorityHandler) Get(c *gin.Context) {
	email := model.NormalizeEmail(c.Param("email"))
	if email == "" {
		writeError(c, http.StatusBadRequest, "missing email")
		return
	}

	priority, err := h.ledger.Get(c.Request.Context(), email)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, priorityResponse{Email: email, Priority: priority})
}

func (h *PriorityHandler) Adjust(c *gin.Context) {
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	newValue, err := h.ledger.AdjustOne(c.Request.Context(), req.Email, req.Name, req.Delta)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "newValue": newValue})
}

func (h *PriorityHandler) AdjustBatch(c *gin.Context) {
	var req batchAdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.ledger.AdjustBatch(c.Request.Context(), req.Adjustments)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": summary.Message(), "summary": summary})
}
