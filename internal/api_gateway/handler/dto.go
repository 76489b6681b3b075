package handler

import (
	"time"

	"github.com/ventasync-reconciler/internal/domain/credential"
	"github.com/ventasync-reconciler/internal/domain/sale"
	"github.com/ventasync-reconciler/internal/domain/shared"
)

// maxDisplayedErrorLength bounds last_error_message in responses; the full
// provider text stays on the sale row and in the attempt audit
const maxDisplayedErrorLength = 300

// ListSalesQuery represents the sales listing query parameters
type ListSalesQuery struct {
	Source         string `form:"source"`
	DocumentStatus string `form:"document_status"`
	Search         string `form:"search"`
	SortBy         string `form:"sort_by,default=document_date"`
	SortOrder      string `form:"sort_order,default=desc" binding:"omitempty,oneof=asc desc"`
	Page           int    `form:"page,default=1" binding:"min=1"`
	PerPage        int    `form:"per_page,default=30" binding:"min=1,max=100"`
}

// SaleResponse represents a sale in API responses
type SaleResponse struct {
	ID               string `json:"id"`
	Source           string `json:"source"`
	ExternalSaleID   string `json:"external_sale_id"`
	Amount           string `json:"amount"`
	DocumentType     string `json:"document_type"`
	DocumentDate     string `json:"document_date,omitempty"`
	OrderStatus      string `json:"order_status"`
	DocumentStatus   string `json:"document_status"`
	LastErrorMessage string `json:"last_error_message,omitempty"`
	DocumentID       string `json:"document_id,omitempty"`
	PlatformLoadedAt string `json:"platform_loaded_at,omitempty"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

// SaleListResponse represents a page of sales in API responses
type SaleListResponse struct {
	Sales []SaleResponse `json:"sales"`
}

// ProcessBatchRequest represents a batch issuance request
type ProcessBatchRequest struct {
	Items []shared.BatchItem `json:"items" binding:"required"`
	Retry bool               `json:"retry"`
}

// UpdateCredentialsRequest represents a partial credential update. Omitted
// fields leave the stored values untouched.
type UpdateCredentialsRequest struct {
	OpenFacturaAPIKey *string `json:"openfactura_api_key,omitempty"`
	FalabellaAPIKey   *string `json:"falabella_api_key,omitempty"`
	FalabellaUserID   *string `json:"falabella_user_id,omitempty"`
}

// CredentialStatusResponse reports per-provider configuration state without
// ever carrying secret values
type CredentialStatusResponse struct {
	OpenFactura  credential.Status `json:"openfactura"`
	Falabella    credential.Status `json:"falabella"`
	MercadoLibre credential.Status `json:"mercado_libre"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}

// AuthorizeURLResponse carries the provider authorization URL
type AuthorizeURLResponse struct {
	URL string `json:"url"`
}

// mapSaleToResponse maps a sale entity to a sale response DTO
func mapSaleToResponse(s *sale.Sale) SaleResponse {
	resp := SaleResponse{
		ID:               s.ID.String(),
		Source:           string(s.Source),
		ExternalSaleID:   s.ExternalSaleID,
		Amount:           s.Amount.String(),
		DocumentType:     string(s.DocumentType),
		OrderStatus:      string(s.OrderStatus),
		DocumentStatus:   string(s.DocumentStatus()),
		LastErrorMessage: truncate(s.LastErrorMessage, maxDisplayedErrorLength),
		CreatedAt:        s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        s.UpdatedAt.Format(time.RFC3339),
	}
	if s.DocumentDate != nil {
		resp.DocumentDate = s.DocumentDate.Format(time.RFC3339)
	}
	if s.DocumentID != nil {
		resp.DocumentID = s.DocumentID.String()
	}
	if s.PlatformLoadedAt != nil {
		resp.PlatformLoadedAt = s.PlatformLoadedAt.Format(time.RFC3339)
	}
	return resp
}

// truncate cuts on a rune boundary so accented provider messages never end
// in a broken byte sequence
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
