package shared

// Source identifies where a sale originated
type Source string

const (
	SourceFalabella    Source = "FALABELLA"
	SourceMercadoLibre Source = "MERCADO_LIBRE"
	SourceManual       Source = "MANUAL"
)

// Valid reports whether the source is one of the known marketplaces
func (s Source) Valid() bool {
	switch s {
	case SourceFalabella, SourceMercadoLibre, SourceManual:
		return true
	}
	return false
}

// DocumentType defines the kind of fiscal document issued for a sale
type DocumentType string

const (
	DocumentTypeReceipt DocumentType = "RECEIPT"
	DocumentTypeInvoice DocumentType = "INVOICE"
)

// Valid reports whether the document type is supported
func (d DocumentType) Valid() bool {
	return d == DocumentTypeReceipt || d == DocumentTypeInvoice
}

// OrderStatus reflects the marketplace order state for a sale
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "PENDING"
	OrderStatusSuccess OrderStatus = "SUCCESS"
	OrderStatusError   OrderStatus = "ERROR"
)

// DocumentStatus is derived from sale fields, never persisted
type DocumentStatus string

const (
	// DocumentStatusLoaded means the marketplace already reports the
	// document on its side; such a sale is never eligible for issuance.
	DocumentStatusLoaded DocumentStatus = "LOADED"
	// DocumentStatusIssued means a fiscal document is linked to the sale.
	DocumentStatusIssued DocumentStatus = "ISSUED"
	// DocumentStatusPendingIssuance means no document exists yet.
	DocumentStatusPendingIssuance DocumentStatus = "PENDING_ISSUANCE"
)

// SkipReason categorizes batch items that were skipped rather than failed
type SkipReason string

const (
	SkipReasonAlreadyIssued SkipReason = "ALREADY_ISSUED"
	SkipReasonAlreadyLoaded SkipReason = "ALREADY_LOADED"
	SkipReasonInvalidItem   SkipReason = "INVALID_ITEM"
)

// AuthFlowCode defines stable short codes for OAuth flow failures.
// The callback redirect carries only a code, never a message body.
type AuthFlowCode string

const (
	AuthFlowCodeServerConfig  AuthFlowCode = "server_config"
	AuthFlowCodeInvalidState  AuthFlowCode = "invalid_state"
	AuthFlowCodeTokenExchange AuthFlowCode = "token_exchange"
	AuthFlowCodeNoTokens      AuthFlowCode = "no_tokens"
	AuthFlowCodeUserNotFound  AuthFlowCode = "user_not_found"
)
