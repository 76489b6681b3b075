package shared

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyExternalSaleID = errors.New("external sale id cannot be empty")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidSource       = errors.New("invalid sale source")
	ErrInvalidDocumentType = errors.New("invalid document type")
)

// BatchItem is one issuance request inside a batch. Items originate from an
// uploaded file or from a dashboard row selection; they are validated rows,
// never raw spreadsheet cells.
type BatchItem struct {
	ExternalSaleID string          `json:"external_sale_id"`
	Source         Source          `json:"source"`
	Amount         decimal.Decimal `json:"amount"`
	DocumentType   DocumentType    `json:"document_type"`
}

// Validate checks the item fields without touching any store
func (i *BatchItem) Validate() error {
	if i.ExternalSaleID == "" {
		return ErrEmptyExternalSaleID
	}
	if !i.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !i.Source.Valid() {
		return ErrInvalidSource
	}
	if !i.DocumentType.Valid() {
		return ErrInvalidDocumentType
	}
	return nil
}

// ItemError reports why a single batch item failed or was skipped.
// Reason is either a SkipReason code or provider-supplied failure text.
type ItemError struct {
	ExternalSaleID string `json:"external_sale_id"`
	Reason         string `json:"reason"`
}

// BatchResult summarizes one ProcessBatch call. Processed counts items that
// ended in a newly issued document during this call; skipped and failed items
// are listed in Errors. The batch is never transactional across items.
type BatchResult struct {
	Processed int         `json:"processed"`
	Message   string      `json:"message"`
	Errors    []ItemError `json:"errors"`
}
