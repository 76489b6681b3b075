package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/ventasync-reconciler/internal/domain/audit"
	"github.com/ventasync-reconciler/internal/domain/sale"
)

// SalesService defines the interface for sales ledger read operations
type SalesService interface {
	// ListSales returns one page of sales plus the total match count
	ListSales(ctx context.Context, params sale.ListParams) ([]*sale.Sale, int64, error)

	// GetSaleAttempts returns the issuance attempt history of one sale,
	// newest first
	GetSaleAttempts(ctx context.Context, saleID uuid.UUID, page, perPage int) ([]*audit.Attempt, int64, error)
}
