package audit

import (
	"time"

	"github.com/google/uuid"
	"github.com/ventasync-reconciler/internal/domain/shared"
)

// AttemptOutcome classifies how an issuance attempt ended
type AttemptOutcome string

const (
	AttemptOutcomeIssued  AttemptOutcome = "ISSUED"
	AttemptOutcomeFailed  AttemptOutcome = "FAILED"
	AttemptOutcomeSkipped AttemptOutcome = "SKIPPED"
)

// Attempt is one issuance attempt against the billing provider, kept as an
// append-only audit record. ProviderResponse stores the raw provider payload
// in full; anything shown to users is truncated at the display layer.
type Attempt struct {
	ID               uuid.UUID           `json:"id" bson:"id"`
	SaleID           uuid.UUID           `json:"sale_id" bson:"sale_id"`
	ExternalSaleID   string              `json:"external_sale_id" bson:"external_sale_id"`
	Source           shared.Source       `json:"source" bson:"source"`
	DocumentType     shared.DocumentType `json:"document_type" bson:"document_type"`
	Amount           string              `json:"amount" bson:"amount"`
	Retry            bool                `json:"retry" bson:"retry"`
	Outcome          AttemptOutcome      `json:"outcome" bson:"outcome"`
	Reason           string              `json:"reason,omitempty" bson:"reason,omitempty"`
	ProviderResponse string              `json:"provider_response,omitempty" bson:"provider_response,omitempty"`
	CorrelationID    string              `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	AttemptedAt      time.Time           `json:"attempted_at" bson:"attempted_at"`
}
