package issuance

import (
	"context"

	"github.com/google/uuid"
	"github.com/ventasync-reconciler/internal/domain/shared"
)

// Orchestrator coordinates batch fiscal document issuance against the
// billing provider.
type Orchestrator interface {
	// ProcessBatch issues documents for the given items, one by one. Items
	// never abort each other; every item's ledger mutation commits
	// independently, so partial success is always durable.
	ProcessBatch(ctx context.Context, items []shared.BatchItem, retry bool) (*shared.BatchResult, error)

	// Retry re-runs issuance for one errored sale, equivalent to a
	// single-item batch with the retry flag set.
	Retry(ctx context.Context, saleID uuid.UUID) (*shared.BatchResult, error)
}

// EventPublisher publishes issuance outcome events to the event stream
type EventPublisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
}
