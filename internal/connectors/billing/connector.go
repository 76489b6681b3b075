// Package billing talks to the fiscal document provider (OpenFactura).
package billing

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/ventasync-reconciler/internal/domain/shared"
)

// IssueRequest asks the provider to emit one fiscal document
type IssueRequest struct {
	ExternalSaleID string
	Source         shared.Source
	DocumentType   shared.DocumentType
	Amount         decimal.Decimal
}

// IssueResult is the successful provider response. Raw keeps the full
// response body for the audit trail.
type IssueResult struct {
	ProviderDocumentID string
	PDFURL             string
	XMLURL             string
	Raw                string
}

// Connector issues fiscal documents
type Connector interface {
	IssueDocument(ctx context.Context, req IssueRequest) (*IssueResult, error)
}

// APIKeySource supplies the decrypted provider API key at call time
type APIKeySource interface {
	BillingAPIKey(ctx context.Context) (string, error)
}

// ErrProviderRejected carries a provider-side issuance failure. Message and
// Raw are stored verbatim on the sale and in the attempt audit trail.
type ErrProviderRejected struct {
	StatusCode int
	Message    string
	Raw        string
}

func (e ErrProviderRejected) Error() string {
	return "billing provider rejected issuance: " + e.Message
}
