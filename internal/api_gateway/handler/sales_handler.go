package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ventasync-reconciler/internal/api_gateway/service"
	"github.com/ventasync-reconciler/internal/domain/sale"
	"github.com/ventasync-reconciler/internal/domain/shared"
	"github.com/ventasync-reconciler/internal/issuance"
)

// SalesHandler handles HTTP requests for the sales ledger
type SalesHandler struct {
	salesService service.SalesService
	orchestrator issuance.Orchestrator
	logger       *slog.Logger
}

// NewSalesHandler creates a new sales handler
func NewSalesHandler(logger *slog.Logger, salesService service.SalesService, orchestrator issuance.Orchestrator) *SalesHandler {
	return &SalesHandler{
		salesService: salesService,
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// List returns one page of sales matching the query filters
func (h *SalesHandler) List(c *gin.Context) {
	var query ListSalesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.logger.Error("Invalid sales listing query", "error", err)
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	params := sale.ListParams{
		Source:         shared.Source(query.Source),
		DocumentStatus: shared.DocumentStatus(query.DocumentStatus),
		Search:         query.Search,
		SortBy:         sale.SortField(query.SortBy),
		SortOrder:      sale.SortOrder(query.SortOrder),
		Page:           query.Page,
		PerPage:        query.PerPage,
	}

	sales, total, err := h.salesService.ListSales(c.Request.Context(), params)
	if err != nil {
		h.logger.Error("Failed to list sales", "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]SaleResponse, 0, len(sales))
	for _, s := range sales {
		responses = append(responses, mapSaleToResponse(s))
	}

	RespondWithPaginatedData(c, 200, SaleListResponse{Sales: responses}, query.Page, query.PerPage, int(total))
}

// Retry re-runs issuance for one errored sale
func (h *SalesHandler) Retry(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid sale ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid sale ID")
		return
	}

	result, err := h.orchestrator.Retry(c.Request.Context(), id)
	if err != nil {
		var notFound sale.ErrSaleNotFound
		switch {
		case errors.As(err, &notFound):
			RespondNotFound(c, "Sale not found")
		case errors.Is(err, issuance.ErrRetryNotEligible):
			RespondConflict(c, "Sale is not in an error state")
		case errors.Is(err, issuance.ErrBillingNotConfigured):
			RespondUnprocessable(c, "NOT_CONFIGURED", "Billing provider is not configured")
		default:
			h.logger.Error("Failed to retry issuance", "sale_id", idParam, "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondOK(c, result)
}

// GetAttempts returns the issuance attempt history of one sale
func (h *SalesHandler) GetAttempts(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid sale ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid sale ID")
		return
	}

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	attempts, total, err := h.salesService.GetSaleAttempts(c.Request.Context(), id, pagination.Page, pagination.PerPage)
	if err != nil {
		var notFound sale.ErrSaleNotFound
		if errors.As(err, &notFound) {
			RespondNotFound(c, "Sale not found")
			return
		}
		h.logger.Error("Failed to get sale attempts", "sale_id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	RespondWithPaginatedData(c, 200, attempts, pagination.Page, pagination.PerPage, int(total))
}
