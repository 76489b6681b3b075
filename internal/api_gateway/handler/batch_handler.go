package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/ventasync-reconciler/internal/issuance"
)

// BatchHandler handles batch issuance requests
type BatchHandler struct {
	orchestrator issuance.Orchestrator
	logger       *slog.Logger
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(logger *slog.Logger, orchestrator issuance.Orchestrator) *BatchHandler {
	return &BatchHandler{
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// Process runs a batch of issuance items. Per-item failures come back in the
// result's errors array; only batch-level problems produce an error status.
func (h *BatchHandler) Process(c *gin.Context) {
	var req ProcessBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid batch request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Items) == 0 {
		RespondBadRequest(c, "Batch contains no items")
		return
	}

	result, err := h.orchestrator.ProcessBatch(c.Request.Context(), req.Items, req.Retry)
	if err != nil {
		if errors.Is(err, issuance.ErrBillingNotConfigured) {
			RespondUnprocessable(c, "NOT_CONFIGURED", "Billing provider is not configured")
			return
		}
		h.logger.Error("Failed to process batch", "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, result)
}
