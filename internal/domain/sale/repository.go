package sale

import (
	"context"

	"github.com/google/uuid"
	"github.com/ventasync-reconciler/internal/domain/shared"
)

// SortField names a whitelisted sort column for sale listings
type SortField string

const (
	SortByDocumentDate   SortField = "document_date"
	SortBySource         SortField = "source"
	SortByOrderStatus    SortField = "order_status"
	SortByDocumentStatus SortField = "document_status"
)

// SortOrder is the listing direction
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ListParams filters, sorts and paginates a sale listing. Results are always
// tie-broken by id so pagination stays deterministic across pages.
type ListParams struct {
	Source         shared.Source         // empty = all sources
	DocumentStatus shared.DocumentStatus // empty = all statuses
	Search         string                // substring match on external sale id or internal id
	SortBy         SortField
	SortOrder      SortOrder
	Page           int
	PerPage        int
}

// Repository defines sale ledger persistence operations
type Repository interface {
	// Create stores a new sale; fails on a (source, external_sale_id) duplicate
	Create(ctx context.Context, s *Sale) error

	// Upsert inserts or merges by (source, external_sale_id). Re-ingested
	// marketplace data never clobbers locally-tracked issuance state:
	// document_id and platform_loaded_at survive, order_status is preserved
	// once a document is linked, and document_date is only filled when absent.
	Upsert(ctx context.Context, s *Sale) error

	GetByID(ctx context.Context, id uuid.UUID) (*Sale, error)

	// GetBySourceExternalID returns (nil, nil) when no sale matches
	GetBySourceExternalID(ctx context.Context, source shared.Source, externalSaleID string) (*Sale, error)

	// List returns one page of sales plus the total match count
	List(ctx context.Context, params ListParams) ([]*Sale, int64, error)

	// LinkDocument atomically stores the document and marks the sale issued.
	// Exactly one concurrent caller wins; the rest observe
	// ErrDocumentAlreadyLinked.
	LinkDocument(ctx context.Context, saleID uuid.UUID, doc *Document) error

	// GetDocument returns (nil, nil) when the sale has no linked document
	GetDocument(ctx context.Context, saleID uuid.UUID) (*Document, error)

	// RecordIssuanceFailure sets order_status=ERROR and stores the
	// provider-supplied message in full for audit and retry diagnostics
	RecordIssuanceFailure(ctx context.Context, saleID uuid.UUID, message string) error

	// MarkPlatformLoaded idempotently flags the sale as already documented
	// on the marketplace side
	MarkPlatformLoaded(ctx context.Context, saleID uuid.UUID) error
}

// ErrSaleNotFound indicates a missing sale
type ErrSaleNotFound struct {
	SaleID uuid.UUID
}

func (e ErrSaleNotFound) Error() string {
	return "sale not found: " + e.SaleID.String()
}

// ErrDocumentAlreadyLinked indicates the sale already owns a document;
// issuance must never create a second one
type ErrDocumentAlreadyLinked struct {
	SaleID uuid.UUID
}

func (e ErrDocumentAlreadyLinked) Error() string {
	return "document already linked for sale: " + e.SaleID.String()
}

// ErrDuplicateSale indicates a (source, external_sale_id) uniqueness violation
type ErrDuplicateSale struct {
	Source         shared.Source
	ExternalSaleID string
}

func (e ErrDuplicateSale) Error() string {
	return "sale already exists: " + string(e.Source) + "/" + e.ExternalSaleID
}
