package audit

import (
	"context"

	"github.com/google/uuid"
)

// Repository manages issuance attempt persistence. The store is append-only;
// attempts are never updated or deleted.
type Repository interface {
	Create(ctx context.Context, attempt *Attempt) error
	GetBySaleID(ctx context.Context, saleID uuid.UUID, limit, offset int) ([]*Attempt, error)
	CountBySaleID(ctx context.Context, saleID uuid.UUID) (int64, error)
}
