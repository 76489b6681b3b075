package issuance

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ventasync-reconciler/internal/connectors/billing"
	"github.com/ventasync-reconciler/internal/domain/audit"
	"github.com/ventasync-reconciler/internal/domain/credential"
	"github.com/ventasync-reconciler/internal/domain/sale"
	"github.com/ventasync-reconciler/internal/domain/shared"
)

// MockSaleRepository is a mock implementation of sale.Repository
type MockSaleRepository struct {
	mock.Mock
}

func (m *MockSaleRepository) Create(ctx context.Context, s *sale.Sale) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockSaleRepository) Upsert(ctx context.Context, s *sale.Sale) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockSaleRepository) GetByID(ctx context.Context, id uuid.UUID) (*sale.Sale, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sale.Sale), args.Error(1)
}

func (m *MockSaleRepository) GetBySourceExternalID(ctx context.Context, source shared.Source, externalSaleID string) (*sale.Sale, error) {
	args := m.Called(ctx, source, externalSaleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sale.Sale), args.Error(1)
}

func (m *MockSaleRepository) List(ctx context.Context, params sale.ListParams) ([]*sale.Sale, int64, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*sale.Sale), args.Get(1).(int64), args.Error(2)
}

func (m *MockSaleRepository) LinkDocument(ctx context.Context, saleID uuid.UUID, doc *sale.Document) error {
	args := m.Called(ctx, saleID, doc)
	return args.Error(0)
}

func (m *MockSaleRepository) GetDocument(ctx context.Context, saleID uuid.UUID) (*sale.Document, error) {
	args := m.Called(ctx, saleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sale.Document), args.Error(1)
}

func (m *MockSaleRepository) RecordIssuanceFailure(ctx context.Context, saleID uuid.UUID, message string) error {
	args := m.Called(ctx, saleID, message)
	return args.Error(0)
}

func (m *MockSaleRepository) MarkPlatformLoaded(ctx context.Context, saleID uuid.UUID) error {
	args := m.Called(ctx, saleID)
	return args.Error(0)
}

// MockBillingConnector is a mock implementation of billing.Connector
type MockBillingConnector struct {
	mock.Mock
}

func (m *MockBillingConnector) IssueDocument(ctx context.Context, req billing.IssueRequest) (*billing.IssueResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.IssueResult), args.Error(1)
}

// MockAPIKeySource is a mock implementation of billing.APIKeySource
type MockAPIKeySource struct {
	mock.Mock
}

func (m *MockAPIKeySource) BillingAPIKey(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// MockAttemptRepository is a mock implementation of audit.Repository
type MockAttemptRepository struct {
	mock.Mock
}

func (m *MockAttemptRepository) Create(ctx context.Context, attempt *audit.Attempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}

func (m *MockAttemptRepository) GetBySaleID(ctx context.Context, saleID uuid.UUID, limit, offset int) ([]*audit.Attempt, error) {
	args := m.Called(ctx, saleID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*audit.Attempt), args.Error(1)
}

func (m *MockAttemptRepository) CountBySaleID(ctx context.Context, saleID uuid.UUID) (int64, error) {
	args := m.Called(ctx, saleID)
	return args.Get(0).(int64), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

type orchestratorMocks struct {
	sales    *MockSaleRepository
	billing  *MockBillingConnector
	keys     *MockAPIKeySource
	attempts *MockAttemptRepository
	events   *MockEventPublisher
}

func newTestOrchestrator(t *testing.T) (Orchestrator, *orchestratorMocks) {
	t.Helper()
	mocks := &orchestratorMocks{
		sales:    new(MockSaleRepository),
		billing:  new(MockBillingConnector),
		keys:     new(MockAPIKeySource),
		attempts: new(MockAttemptRepository),
		events:   new(MockEventPublisher),
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	orch := NewOrchestrator(logger, mocks.sales, mocks.billing, mocks.keys, mocks.attempts, mocks.events, 30*time.Second)
	return orch, mocks
}

func pendingSale(t *testing.T, externalID string) *sale.Sale {
	t.Helper()
	s, err := sale.NewSale(shared.SourceFalabella, externalID, decimal.NewFromInt(19990), shared.DocumentTypeReceipt, nil)
	require.NoError(t, err)
	return s
}

func batchItem(externalID string) shared.BatchItem {
	return shared.BatchItem{
		ExternalSaleID: externalID,
		Source:         shared.SourceFalabella,
		Amount:         decimal.NewFromInt(19990),
		DocumentType:   shared.DocumentTypeReceipt,
	}
}

func TestOrchestrator_ProcessBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("issues document for existing pending sale", func(t *testing.T) {
		orch, mocks := newTestOrchestrator(t)
		s := pendingSale(t, "ORD-1")

		mocks.keys.On("BillingAPIKey", ctx).Return("api-key", nil)
		mocks.sales.On("GetBySourceExternalID", ctx, shared.SourceFalabella, "ORD-1").Return(s, nil)
		mocks.billing.On("IssueDocument", mock.Anything, mock.MatchedBy(func(req billing.IssueRequest) bool {
			return req.ExternalSaleID == "ORD-1" && req.DocumentType == shared.DocumentTypeReceipt
		})).Return(&billing.IssueResult{ProviderDocumentID: "F-77", PDFURL: "https://pdf", Raw: `{"folio":"F-77"}`}, nil)
		mocks.sales.On("LinkDocument", ctx, s.ID, mock.MatchedBy(func(doc *sale.Document) bool {
			return doc.SaleID == s.ID && doc.ProviderDocumentID == "F-77"
		})).Return(nil)
		mocks.attempts.On("Create", ctx, mock.MatchedBy(func(a *audit.Attempt) bool {
			return a.SaleID == s.ID && a.Outcome == audit.AttemptOutcomeIssued && a.ProviderResponse == `{"folio":"F-77"}` && !a.Retry
		})).Return(nil)
		mocks.events.On("Publish", ctx, "FALABELLA:ORD-1", mock.MatchedBy(func(e shared.IssuanceEvent) bool {
			return e.Type == shared.IssuanceEventIssued && e.SaleID == s.ID && e.DocumentID != nil
		})).Return(nil)

		result, err := orch.ProcessBatch(ctx, []shared.BatchItem{batchItem("ORD-1")}, false)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Processed)
		assert.Empty(t, result.Errors)

		mocks.sales.AssertExpectations(t)
		mocks.billing.AssertExpectations(t)
		mocks.attempts.AssertExpectations(t)
		mocks.events.AssertExpectations(t)
	})

	t.Run("creates a pending sale for unknown items", func(t *testing.T) {
		orch, mocks := newTestOrchestrator(t)

		mocks.keys.On("BillingAPIKey", ctx).Return("api-key", nil)
		mocks.sales.On("GetBySourceExternalID", ctx, shared.SourceFalabella, "ORD-NEW").Return(nil, nil)
		mocks.sales.On("Create", ctx, mock.MatchedBy(func(s *sale.Sale) bool {
			return s.ExternalSaleID == "ORD-NEW" && s.OrderStatus == shared.OrderStatusPending
		})).Return(nil)
		mocks.billing.On("IssueDocument", mock.Anything, mock.Anything).Return(&billing.IssueResult{ProviderDocumentID: "F-1"}, nil)
		mocks.sales.On("LinkDocument", ctx, mock.Anything, mock.Anything).Return(nil)
		mocks.attempts.On("Create", ctx, mock.Anything).Return(nil)
		mocks.events.On("Publish", ctx, mock.Anything, mock.Anything).Return(nil)

		result, err := orch.ProcessBatch(ctx, []shared.BatchItem{batchItem("ORD-NEW")}, false)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Processed)
		mocks.sales.AssertExpectations(t)
	})

	t.Run("aborts when billing is not configured", func(t *testing.T) {
		orch, mocks := newTestOrchestrator(t)
		mocks.keys.On("BillingAPIKey", ctx).Return("", credential.ErrNotConfigured)

		result, err := orch.ProcessBatch(ctx, []shared.BatchItem{batchItem("ORD-1")}, false)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, ErrBillingNotConfigured)
		mocks.billing.AssertNotCalled(t, "IssueDocument", mock.Anything, mock.Anything)
	})

	t.Run("skips platform loaded sales even on retry", func(t *testing.T) {
		orch, mocks := newTestOrchestrator(t)
		s := pendingSale(t, "ORD-2")
		loadedAt := time.Now()
		s.PlatformLoadedAt = &loadedAt

		mocks.keys.On("BillingAPIKey", ctx).Return("api-key", nil)
		mocks.sales.On("GetBySourceExternalID", ctx, shared.SourceFalabella, "ORD-2").Return(s, nil)
		mocks.attempts.On("Create", ctx, mock.MatchedBy(func(a *audit.Attempt) bool {
			return a.Outcome == audit.AttemptOutcomeSkipped && a.Reason == string(shared.SkipReasonAlreadyLoaded) && a.Retry
		})).Return(nil)

		result, err := orch.ProcessBatch(ctx, []shared.BatchItem{batchItem("ORD-2")}, true)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Processed)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, string(shared.SkipReasonAlreadyLoaded), result.Errors[0].Reason)
		mocks.billing.AssertNotCalled(t, "IssueDocument", mock.Anything, mock.Anything)
	})

	t.Run("skips sales with a linked document", func(t *testing.T) {
		orch, mocks := newTestOrchestrator(t)
		s := pendingSale(t, "ORD-3")
		docID := uuid.New()
		s.DocumentID = &docID

		mocks.keys.On("BillingAPIKey", ctx).Return("api-key", nil)
		mocks.sales.On("GetBySourceExternalID", ctx, shared.SourceFalabella, "ORD-3").Return(s, nil)
		mocks.attempts.On("Create", ctx, mock.Anything).Return(nil)

		result, err := orch.ProcessBatch(ctx, []shared.BatchItem{batchItem("ORD-3")}, false)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Processed)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, string(shared.SkipReasonAlreadyIssued), result.Errors[0].Reason)
		mocks.billing.AssertNotCalled(t, "IssueDocument", mock.Anything, mock.Anything)
	})

	t.Run("records provider rejection on the sale", func(t *testing.T) {
		orch, mocks := newTestOrchestrator(t)
		s := pendingSale(t, "ORD-4")

		mocks.keys.On("BillingAPIKey", ctx).Return("api-key", nil)
		mocks.sales.On("GetBySourceExternalID", ctx, shared.SourceFalabella, "ORD-4").Return(s, nil)
		mocks.billing.On("IssueDocument", mock.Anything, mock.Anything).Return(nil,
			billing.ErrProviderRejected{StatusCode: 422, Message: "insufficient data", Raw: `{"message":"insufficient data"}`})
		mocks.sales.On("RecordIssuanceFailure", ctx, s.ID, "insufficient data").Return(nil)
		mocks.attempts.On("Create", ctx, mock.MatchedBy(func(a *audit.Attempt) bool {
			return a.Outcome == audit.AttemptOutcomeFailed && a.Reason == "insufficient data" && a.ProviderResponse == `{"message":"insufficient data"}`
		})).Return(nil)
		mocks.events.On("Publish", ctx, "FALABELLA:ORD-4", mock.MatchedBy(func(e shared.IssuanceEvent) bool {
			return e.Type == shared.IssuanceEventFailed && e.Reason == "insufficient data"
		})).Return(nil)

		result, err := orch.ProcessBatch(ctx, []shared.BatchItem{batchItem("ORD-4")}, false)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Processed)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, "insufficient data", result.Errors[0].Reason)
		mocks.sales.AssertExpectations(t)
	})

	t.Run("one failing item never aborts its siblings", func(t *testing.T) {
		orch, mocks := newTestOrchestrator(t)
		s1 := pendingSale(t, "B1")
		s2 := pendingSale(t, "B2")
		s3 := pendingSale(t, "B3")

		mocks.keys.On("BillingAPIKey", ctx).Return("api-key", nil)
		mocks.sales.On("GetBySourceExternalID", ctx, shared.SourceFalabella, "B1").Return(s1, nil)
		mocks.sales.On("GetBySourceExternalID", ctx, shared.SourceFalabella, "B2").Return(s2, nil)
		mocks.sales.On("GetBySourceExternalID", ctx, shared.SourceFalabella, "B3").Return(s3, nil)
		mocks.billing.On("IssueDocument", mock.Anything, mock.MatchedBy(func(req billing.IssueRequest) bool {
			return req.ExternalSaleID == "B2"
		})).Return(nil, billing.ErrProviderRejected{StatusCode: 422, Message: "insufficient data"})
		mocks.billing.On("IssueDocument", mock.Anything, mock.Anything).Return(&billing.IssueResult{ProviderDocumentID: "F-OK"}, nil)
		mocks.sales.On("RecordIssuanceFailure", ctx, s2.ID, "insufficient data").Return(nil)
		mocks.sales.On("LinkDocument", ctx, mock.Anything, mock.Anything).Return(nil)
		mocks.attempts.On("Create", ctx, mock.Anything).Return(nil)
		mocks.events.On("Publish", ctx, mock.Anything, mock.Anything).Return(nil)

		result, err := orch.ProcessBatch(ctx, []shared.BatchItem{batchItem("B1"), batchItem("B2"), batchItem("B3")}, false)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Processed)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, "B2", result.Errors[0].ExternalSaleID)
	})

	t.Run("losing a link race reports already issued", func(t *testing.T) {
		orch, mocks := newTestOrchestrator(t)
		s := pendingSale(t, "ORD-5")

		mocks.keys.On("BillingAPIKey", ctx).Return("api-key", nil)
		mocks.sales.On("GetBySourceExternalID", ctx, shared.SourceFalabella, "ORD-5").Return(s, nil)
		mocks.billing.On("IssueDocument", mock.Anything, mock.Anything).Return(&billing.IssueResult{ProviderDocumentID: "F-9"}, nil)
		mocks.sales.On("LinkDocument", ctx, s.ID, mock.Anything).Return(sale.ErrDocumentAlreadyLinked{SaleID: s.ID})
		mocks.attempts.On("Create", ctx, mock.MatchedBy(func(a *audit.Attempt) bool {
			return a.Outcome == audit.AttemptOutcomeSkipped && a.Reason == string(shared.SkipReasonAlreadyIssued)
		})).Return(nil)

		result, err := orch.ProcessBatch(ctx, []shared.BatchItem{batchItem("ORD-5")}, false)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Processed)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, string(shared.SkipReasonAlreadyIssued), result.Errors[0].Reason)
	})

	t.Run("invalid item is rejected without touching the ledger", func(t *testing.T) {
		orch, mocks := newTestOrchestrator(t)
		mocks.keys.On("BillingAPIKey", ctx).Return("api-key", nil)

		item := batchItem("ORD-6")
		item.Amount = decimal.NewFromInt(-5)

		result, err := orch.ProcessBatch(ctx, []shared.BatchItem{item}, false)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Processed)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, string(shared.SkipReasonInvalidItem), result.Errors[0].Reason)
		mocks.sales.AssertNotCalled(t, "GetBySourceExternalID", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("audit write failure does not fail the item", func(t *testing.T) {
		orch, mocks := newTestOrchestrator(t)
		s := pendingSale(t, "ORD-7")

		mocks.keys.On("BillingAPIKey", ctx).Return("api-key", nil)
		mocks.sales.On("GetBySourceExternalID", ctx, shared.SourceFalabella, "ORD-7").Return(s, nil)
		mocks.billing.On("IssueDocument", mock.Anything, mock.Anything).Return(&billing.IssueResult{ProviderDocumentID: "F-2"}, nil)
		mocks.sales.On("LinkDocument", ctx, s.ID, mock.Anything).Return(nil)
		mocks.attempts.On("Create", ctx, mock.Anything).Return(fmt.Errorf("mongo unavailable"))
		mocks.events.On("Publish", ctx, mock.Anything, mock.Anything).Return(fmt.Errorf("kafka unavailable"))

		result, err := orch.ProcessBatch(ctx, []shared.BatchItem{batchItem("ORD-7")}, false)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Processed)
		assert.Empty(t, result.Errors)
	})
}

func TestOrchestrator_Retry(t *testing.T) {
	ctx := context.Background()

	t.Run("retries an errored sale", func(t *testing.T) {
		orch, mocks := newTestOrchestrator(t)
		s := pendingSale(t, "ORD-8")
		s.OrderStatus = shared.OrderStatusError
		s.LastErrorMessage = "insufficient data"

		mocks.sales.On("GetByID", ctx, s.ID).Return(s, nil)
		mocks.keys.On("BillingAPIKey", ctx).Return("api-key", nil)
		mocks.sales.On("GetBySourceExternalID", ctx, shared.SourceFalabella, "ORD-8").Return(s, nil)
		mocks.billing.On("IssueDocument", mock.Anything, mock.Anything).Return(&billing.IssueResult{ProviderDocumentID: "F-3"}, nil)
		mocks.sales.On("LinkDocument", ctx, s.ID, mock.Anything).Return(nil)
		mocks.attempts.On("Create", ctx, mock.MatchedBy(func(a *audit.Attempt) bool {
			return a.Retry && a.Outcome == audit.AttemptOutcomeIssued
		})).Return(nil)
		mocks.events.On("Publish", ctx, mock.Anything, mock.Anything).Return(nil)

		result, err := orch.Retry(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Processed)
		mocks.attempts.AssertExpectations(t)
	})

	t.Run("rejects a sale that is not errored", func(t *testing.T) {
		orch, mocks := newTestOrchestrator(t)
		s := pendingSale(t, "ORD-9")

		mocks.sales.On("GetByID", ctx, s.ID).Return(s, nil)

		result, err := orch.Retry(ctx, s.ID)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, ErrRetryNotEligible)
		mocks.billing.AssertNotCalled(t, "IssueDocument", mock.Anything, mock.Anything)
	})

	t.Run("propagates missing sale", func(t *testing.T) {
		orch, mocks := newTestOrchestrator(t)
		id := uuid.New()

		mocks.sales.On("GetByID", ctx, id).Return(nil, sale.ErrSaleNotFound{SaleID: id})

		result, err := orch.Retry(ctx, id)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, sale.ErrSaleNotFound{SaleID: id})
	})
}
