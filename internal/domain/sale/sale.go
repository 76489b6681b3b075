package sale

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/ventasync-reconciler/internal/domain/shared"
)

// Sale is the canonical record of one marketplace transaction. A sale links
// to at most one fiscal document; (Source, ExternalSaleID) is the dedup key.
type Sale struct {
	ID               uuid.UUID           `json:"id"`
	Source           shared.Source       `json:"source"`
	ExternalSaleID   string              `json:"external_sale_id"`
	Amount           decimal.Decimal     `json:"amount"`
	DocumentType     shared.DocumentType `json:"document_type"`
	DocumentDate     *time.Time          `json:"document_date,omitempty"`
	OrderStatus      shared.OrderStatus  `json:"order_status"`
	LastErrorMessage string              `json:"last_error_message,omitempty"`
	DocumentID       *uuid.UUID          `json:"document_id,omitempty"`
	// PlatformLoadedAt is set when the marketplace itself reports the
	// document as uploaded on its side. Only reconciliation sets it.
	PlatformLoadedAt *time.Time `json:"platform_loaded_at,omitempty"`
	Version          int        `json:"version"` // For optimistic locking
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// NewSale creates a pending sale after validating its fields
func NewSale(source shared.Source, externalSaleID string, amount decimal.Decimal, documentType shared.DocumentType, documentDate *time.Time) (*Sale, error) {
	if externalSaleID == "" {
		return nil, shared.ErrEmptyExternalSaleID
	}
	if !amount.IsPositive() {
		return nil, shared.ErrInvalidAmount
	}
	if !source.Valid() {
		return nil, shared.ErrInvalidSource
	}
	if !documentType.Valid() {
		return nil, shared.ErrInvalidDocumentType
	}

	now := time.Now()
	return &Sale{
		ID:             uuid.New(),
		Source:         source,
		ExternalSaleID: externalSaleID,
		Amount:         amount,
		DocumentType:   documentType,
		DocumentDate:   documentDate,
		OrderStatus:    shared.OrderStatusPending,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// DocumentStatus derives the document lifecycle state from persisted fields.
// It is a pure function and is never stored, so it cannot drift from the
// underlying truth.
func (s *Sale) DocumentStatus() shared.DocumentStatus {
	if s.PlatformLoadedAt != nil {
		return shared.DocumentStatusLoaded
	}
	if s.DocumentID != nil {
		return shared.DocumentStatusIssued
	}
	return shared.DocumentStatusPendingIssuance
}

// PlatformLoaded reports whether the marketplace already holds the document
func (s *Sale) PlatformLoaded() bool {
	return s.PlatformLoadedAt != nil
}

// Document is the fiscal artifact returned by the billing provider,
// owned 1:1 by a sale.
type Document struct {
	ID                 uuid.UUID `json:"id"`
	SaleID             uuid.UUID `json:"sale_id"`
	ProviderDocumentID string    `json:"provider_document_id"`
	PDFURL             string    `json:"pdf_url,omitempty"`
	XMLURL             string    `json:"xml_url,omitempty"`
	IssuedAt           time.Time `json:"issued_at"`
}

// NewDocument creates a document record for a freshly issued fiscal artifact
func NewDocument(saleID uuid.UUID, providerDocumentID, pdfURL, xmlURL string) *Document {
	return &Document{
		ID:                 uuid.New(),
		SaleID:             saleID,
		ProviderDocumentID: providerDocumentID,
		PDFURL:             pdfURL,
		XMLURL:             xmlURL,
		IssuedAt:           time.Now(),
	}
}
