package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/ventasync-reconciler/internal/domain/audit"
	"github.com/ventasync-reconciler/internal/domain/sale"
)

// SalesServiceImpl implements the SalesService interface
type SalesServiceImpl struct {
	saleRepo    sale.Repository
	attemptRepo audit.Repository
}

// NewSalesService creates a new sales service
func NewSalesService(saleRepo sale.Repository, attemptRepo audit.Repository) SalesService {
	return &SalesServiceImpl{
		saleRepo:    saleRepo,
		attemptRepo: attemptRepo,
	}
}

// ListSales returns one page of sales plus the total match count
func (s *SalesServiceImpl) ListSales(ctx context.Context, params sale.ListParams) ([]*sale.Sale, int64, error) {
	return s.saleRepo.List(ctx, params)
}

// GetSaleAttempts returns the issuance attempt history of one sale. The sale
// must exist; attempts may legitimately be empty.
func (s *SalesServiceImpl) GetSaleAttempts(ctx context.Context, saleID uuid.UUID, page, perPage int) ([]*audit.Attempt, int64, error) {
	if _, err := s.saleRepo.GetByID(ctx, saleID); err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}

	total, err := s.attemptRepo.CountBySaleID(ctx, saleID)
	if err != nil {
		return nil, 0, err
	}

	attempts, err := s.attemptRepo.GetBySaleID(ctx, saleID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}

	return attempts, total, nil
}
