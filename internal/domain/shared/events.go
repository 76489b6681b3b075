package shared

import (
	"time"

	"github.com/google/uuid"
)

// IssuanceEventType classifies issuance stream events
type IssuanceEventType string

const (
	IssuanceEventIssued IssuanceEventType = "DOCUMENT_ISSUED"
	IssuanceEventFailed IssuanceEventType = "ISSUANCE_FAILED"
)

// IssuanceEvent is the payload published to the issuance event stream after
// every decided attempt. Consumers must treat it as advisory; the sale row
// carries the authoritative state.
type IssuanceEvent struct {
	Type           IssuanceEventType `json:"type"`
	SaleID         uuid.UUID         `json:"sale_id"`
	ExternalSaleID string            `json:"external_sale_id"`
	Source         Source            `json:"source"`
	DocumentType   DocumentType      `json:"document_type"`
	DocumentID     *uuid.UUID        `json:"document_id,omitempty"`
	Reason         string            `json:"reason,omitempty"`
	CorrelationID  string            `json:"correlation_id,omitempty"`
	OccurredAt     time.Time         `json:"occurred_at"`
}
