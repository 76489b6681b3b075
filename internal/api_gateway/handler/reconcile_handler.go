package handler

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/ventasync-reconciler/internal/reconciler"
)

// ReconcileRunner triggers one reconciliation cycle on demand
type ReconcileRunner interface {
	RunOnce(ctx context.Context) []reconciler.PullReport
}

// ReconcileHandler exposes the internal on-demand sync trigger used by cron
// jobs, alongside the background ticker loop
type ReconcileHandler struct {
	runner ReconcileRunner
	logger *slog.Logger
}

// NewReconcileHandler creates a new reconcile handler
func NewReconcileHandler(logger *slog.Logger, runner ReconcileRunner) *ReconcileHandler {
	return &ReconcileHandler{
		runner: runner,
		logger: logger,
	}
}

// Run pulls every source once and reports the per-source outcome
func (h *ReconcileHandler) Run(c *gin.Context) {
	reports := h.runner.RunOnce(c.Request.Context())
	RespondOK(c, gin.H{"reports": reports})
}
