// Package issuance runs batch fiscal document issuance: resolving sales,
// guarding against double issuance, calling the billing provider and
// committing each item's outcome independently.
package issuance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ventasync-reconciler/internal/connectors/billing"
	"github.com/ventasync-reconciler/internal/domain/audit"
	"github.com/ventasync-reconciler/internal/domain/credential"
	"github.com/ventasync-reconciler/internal/domain/sale"
	"github.com/ventasync-reconciler/internal/domain/shared"
)

var (
	// ErrBillingNotConfigured aborts a batch before any provider call when
	// no billing credential is stored; no item could possibly succeed.
	ErrBillingNotConfigured = errors.New("billing provider is not configured")

	// ErrRetryNotEligible rejects a retry for a sale that is not in an
	// error state.
	ErrRetryNotEligible = errors.New("sale is not in an error state")
)

// OrchestratorImpl implements the Orchestrator interface
type OrchestratorImpl struct {
	logger       *slog.Logger
	sales        sale.Repository
	billing      billing.Connector
	keys         billing.APIKeySource
	attempts     audit.Repository
	events       EventPublisher
	issueTimeout time.Duration
}

// NewOrchestrator creates a batch issuance orchestrator
func NewOrchestrator(
	logger *slog.Logger,
	sales sale.Repository,
	billingConn billing.Connector,
	keys billing.APIKeySource,
	attempts audit.Repository,
	events EventPublisher,
	issueTimeout time.Duration,
) Orchestrator {
	return &OrchestratorImpl{
		logger:       logger,
		sales:        sales,
		billing:      billingConn,
		keys:         keys,
		attempts:     attempts,
		events:       events,
		issueTimeout: issueTimeout,
	}
}

// ProcessBatch issues documents for the given items. A missing billing
// credential fails the whole call up front; everything after that is
// per-item: one item's failure never touches its siblings.
func (o *OrchestratorImpl) ProcessBatch(ctx context.Context, items []shared.BatchItem, retry bool) (*shared.BatchResult, error) {
	correlationID := uuid.NewString()
	logger := o.logger.With("correlation_id", correlationID)

	if _, err := o.keys.BillingAPIKey(ctx); err != nil {
		if errors.Is(err, credential.ErrNotConfigured) {
			return nil, ErrBillingNotConfigured
		}
		return nil, fmt.Errorf("failed to check billing configuration: %w", err)
	}

	logger.Info("Processing issuance batch", "items", len(items), "retry", retry)

	result := &shared.BatchResult{Errors: []shared.ItemError{}}
	for _, item := range items {
		if itemErr := o.processItem(ctx, logger, item, retry, correlationID); itemErr != nil {
			result.Errors = append(result.Errors, *itemErr)
			continue
		}
		result.Processed++
	}
	result.Message = fmt.Sprintf("Processed %d of %d items", result.Processed, len(items))

	logger.Info("Issuance batch finished", "processed", result.Processed, "errors", len(result.Errors))
	return result, nil
}

// Retry re-runs issuance for one errored sale
func (o *OrchestratorImpl) Retry(ctx context.Context, saleID uuid.UUID) (*shared.BatchResult, error) {
	s, err := o.sales.GetByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if s.OrderStatus != shared.OrderStatusError {
		return nil, ErrRetryNotEligible
	}

	item := shared.BatchItem{
		ExternalSaleID: s.ExternalSaleID,
		Source:         s.Source,
		Amount:         s.Amount,
		DocumentType:   s.DocumentType,
	}
	return o.ProcessBatch(ctx, []shared.BatchItem{item}, true)
}

// processItem runs one item to a decided outcome. A nil return means a
// document was issued during this call; anything else is reported in the
// batch errors array.
func (o *OrchestratorImpl) processItem(ctx context.Context, logger *slog.Logger, item shared.BatchItem, retry bool, correlationID string) *shared.ItemError {
	if err := item.Validate(); err != nil {
		logger.Warn("Rejecting invalid batch item", "external_sale_id", item.ExternalSaleID, "error", err)
		batchItemsTotal.WithLabelValues(outcomeInvalid).Inc()
		return &shared.ItemError{ExternalSaleID: item.ExternalSaleID, Reason: string(shared.SkipReasonInvalidItem)}
	}

	s, err := o.resolveSale(ctx, item)
	if err != nil {
		logger.Error("Failed to resolve sale for batch item", "external_sale_id", item.ExternalSaleID, "error", err)
		batchItemsTotal.WithLabelValues(outcomeFailed).Inc()
		return &shared.ItemError{ExternalSaleID: item.ExternalSaleID, Reason: "failed to resolve sale"}
	}

	// Issuance guards. A platform-loaded sale is never reissued, retry or
	// not; a sale with a linked document already has its artifact.
	switch s.DocumentStatus() {
	case shared.DocumentStatusLoaded:
		o.recordAttempt(ctx, s, item, retry, audit.AttemptOutcomeSkipped, string(shared.SkipReasonAlreadyLoaded), "", correlationID)
		batchItemsTotal.WithLabelValues(outcomeSkipped).Inc()
		return &shared.ItemError{ExternalSaleID: item.ExternalSaleID, Reason: string(shared.SkipReasonAlreadyLoaded)}
	case shared.DocumentStatusIssued:
		o.recordAttempt(ctx, s, item, retry, audit.AttemptOutcomeSkipped, string(shared.SkipReasonAlreadyIssued), "", correlationID)
		batchItemsTotal.WithLabelValues(outcomeSkipped).Inc()
		return &shared.ItemError{ExternalSaleID: item.ExternalSaleID, Reason: string(shared.SkipReasonAlreadyIssued)}
	}

	issueCtx, cancel := context.WithTimeout(ctx, o.issueTimeout)
	defer cancel()

	start := time.Now()
	res, err := o.billing.IssueDocument(issueCtx, billing.IssueRequest{
		ExternalSaleID: item.ExternalSaleID,
		Source:         item.Source,
		DocumentType:   item.DocumentType,
		Amount:         item.Amount,
	})
	providerCallDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		reason := err.Error()
		raw := ""
		var rejected billing.ErrProviderRejected
		if errors.As(err, &rejected) {
			reason = rejected.Message
			raw = rejected.Raw
		}

		logger.Error("Billing provider call failed", "sale_id", s.ID.String(), "external_sale_id", item.ExternalSaleID, "error", err)
		if recErr := o.sales.RecordIssuanceFailure(ctx, s.ID, reason); recErr != nil {
			logger.Error("Failed to record issuance failure", "sale_id", s.ID.String(), "error", recErr)
		}
		o.recordAttempt(ctx, s, item, retry, audit.AttemptOutcomeFailed, reason, raw, correlationID)
		o.publishEvent(ctx, logger, shared.IssuanceEventFailed, s, nil, reason, correlationID)
		batchItemsTotal.WithLabelValues(outcomeFailed).Inc()
		return &shared.ItemError{ExternalSaleID: item.ExternalSaleID, Reason: reason}
	}

	doc := sale.NewDocument(s.ID, res.ProviderDocumentID, res.PDFURL, res.XMLURL)
	if err := o.sales.LinkDocument(ctx, s.ID, doc); err != nil {
		var alreadyLinked sale.ErrDocumentAlreadyLinked
		if errors.As(err, &alreadyLinked) {
			// Lost a race with a concurrent batch; the winner's document stands
			logger.Warn("Sale already has a linked document", "sale_id", s.ID.String(), "external_sale_id", item.ExternalSaleID)
			o.recordAttempt(ctx, s, item, retry, audit.AttemptOutcomeSkipped, string(shared.SkipReasonAlreadyIssued), res.Raw, correlationID)
			batchItemsTotal.WithLabelValues(outcomeSkipped).Inc()
			return &shared.ItemError{ExternalSaleID: item.ExternalSaleID, Reason: string(shared.SkipReasonAlreadyIssued)}
		}

		logger.Error("Failed to link issued document", "sale_id", s.ID.String(), "document_id", doc.ID.String(), "error", err)
		o.recordAttempt(ctx, s, item, retry, audit.AttemptOutcomeFailed, err.Error(), res.Raw, correlationID)
		batchItemsTotal.WithLabelValues(outcomeFailed).Inc()
		return &shared.ItemError{ExternalSaleID: item.ExternalSaleID, Reason: "failed to store issued document"}
	}

	logger.Info("Issued fiscal document", "sale_id", s.ID.String(), "external_sale_id", item.ExternalSaleID, "document_id", doc.ID.String(), "provider_document_id", res.ProviderDocumentID)
	o.recordAttempt(ctx, s, item, retry, audit.AttemptOutcomeIssued, "", res.Raw, correlationID)
	o.publishEvent(ctx, logger, shared.IssuanceEventIssued, s, &doc.ID, "", correlationID)
	documentsIssuedTotal.WithLabelValues(string(s.Source)).Inc()
	batchItemsTotal.WithLabelValues(outcomeIssued).Inc()
	return nil
}

// resolveSale finds the canonical sale for an item, creating a pending sale
// for rows that do not exist in the ledger yet
func (o *OrchestratorImpl) resolveSale(ctx context.Context, item shared.BatchItem) (*sale.Sale, error) {
	existing, err := o.sales.GetBySourceExternalID(ctx, item.Source, item.ExternalSaleID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	s, err := sale.NewSale(item.Source, item.ExternalSaleID, item.Amount, item.DocumentType, nil)
	if err != nil {
		return nil, err
	}

	if err := o.sales.Create(ctx, s); err != nil {
		var dup sale.ErrDuplicateSale
		if errors.As(err, &dup) {
			// A concurrent caller created the row first; use theirs
			existing, err := o.sales.GetBySourceExternalID(ctx, item.Source, item.ExternalSaleID)
			if err != nil {
				return nil, err
			}
			if existing == nil {
				return nil, fmt.Errorf("sale vanished after duplicate creation: %s/%s", item.Source, item.ExternalSaleID)
			}
			return existing, nil
		}
		return nil, err
	}
	return s, nil
}

// recordAttempt appends an audit record for a decided attempt. Audit writes
// are best effort; the sale row carries the authoritative outcome.
func (o *OrchestratorImpl) recordAttempt(ctx context.Context, s *sale.Sale, item shared.BatchItem, retry bool, outcome audit.AttemptOutcome, reason, providerResponse, correlationID string) {
	attempt := &audit.Attempt{
		ID:               uuid.New(),
		SaleID:           s.ID,
		ExternalSaleID:   s.ExternalSaleID,
		Source:           s.Source,
		DocumentType:     item.DocumentType,
		Amount:           item.Amount.String(),
		Retry:            retry,
		Outcome:          outcome,
		Reason:           reason,
		ProviderResponse: providerResponse,
		CorrelationID:    correlationID,
		AttemptedAt:      time.Now(),
	}
	if err := o.attempts.Create(ctx, attempt); err != nil {
		o.logger.Error("Failed to record issuance attempt", "sale_id", s.ID.String(), "error", err)
	}
}

// publishEvent emits an issuance event to the stream. Delivery is best
// effort for the same reason attempts are.
func (o *OrchestratorImpl) publishEvent(ctx context.Context, logger *slog.Logger, eventType shared.IssuanceEventType, s *sale.Sale, documentID *uuid.UUID, reason, correlationID string) {
	event := shared.IssuanceEvent{
		Type:           eventType,
		SaleID:         s.ID,
		ExternalSaleID: s.ExternalSaleID,
		Source:         s.Source,
		DocumentType:   s.DocumentType,
		DocumentID:     documentID,
		Reason:         reason,
		CorrelationID:  correlationID,
		OccurredAt:     time.Now(),
	}
	if err := o.events.Publish(ctx, string(s.Source)+":"+s.ExternalSaleID, event); err != nil {
		logger.Error("Failed to publish issuance event", "sale_id", s.ID.String(), "type", eventType, "error", err)
	}
}
