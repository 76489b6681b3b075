// Package marketplace pulls recent orders from the sales channels so the
// reconciler can mirror them into the ledger.
package marketplace

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ventasync-reconciler/internal/domain/shared"
)

// Order is one marketplace order normalized to ledger terms
type Order struct {
	ExternalSaleID string
	Amount         decimal.Decimal
	DocumentType   shared.DocumentType
	OrderDate      *time.Time
	// DocumentUploaded is true only when the marketplace positively reports
	// a fiscal document on its side. When the check cannot be performed it
	// stays false, which never blocks anything incorrectly.
	DocumentUploaded bool
}

// Connector pulls orders from one marketplace
type Connector interface {
	Source() shared.Source
	PullOrders(ctx context.Context, since time.Time, pageSize int) ([]Order, error)
}

// SellerCredentialSource supplies the decrypted Seller Center pair at call time
type SellerCredentialSource interface {
	SellerCredentials(ctx context.Context) (userID, apiKey string, err error)
}

// TokenSource supplies the decrypted OAuth access token at call time
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}
