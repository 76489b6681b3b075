package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ventasync-reconciler/internal/domain/audit"
	"github.com/ventasync-reconciler/internal/domain/sale"
	"github.com/ventasync-reconciler/internal/domain/shared"
	"github.com/ventasync-reconciler/internal/issuance"
)

// MockSalesService is a mock implementation of service.SalesService
type MockSalesService struct {
	mock.Mock
}

func (m *MockSalesService) ListSales(ctx context.Context, params sale.ListParams) ([]*sale.Sale, int64, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*sale.Sale), args.Get(1).(int64), args.Error(2)
}

func (m *MockSalesService) GetSaleAttempts(ctx context.Context, saleID uuid.UUID, page, perPage int) ([]*audit.Attempt, int64, error) {
	args := m.Called(ctx, saleID, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*audit.Attempt), args.Get(1).(int64), args.Error(2)
}

// MockOrchestrator is a mock implementation of issuance.Orchestrator
type MockOrchestrator struct {
	mock.Mock
}

func (m *MockOrchestrator) ProcessBatch(ctx context.Context, items []shared.BatchItem, retry bool) (*shared.BatchResult, error) {
	args := m.Called(ctx, items, retry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.BatchResult), args.Error(1)
}

func (m *MockOrchestrator) Retry(ctx context.Context, saleID uuid.UUID) (*shared.BatchResult, error) {
	args := m.Called(ctx, saleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.BatchResult), args.Error(1)
}

func testSale(t *testing.T) *sale.Sale {
	t.Helper()
	s, err := sale.NewSale(shared.SourceFalabella, "ORD-1001", decimal.NewFromInt(19990), shared.DocumentTypeReceipt, nil)
	require.NoError(t, err)
	return s
}

func TestSalesHandler_List(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	gin.SetMode(gin.TestMode)

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockSalesService)
		mockOrch := new(MockOrchestrator)
		h := NewSalesHandler(logger, mockService, mockOrch)

		loadedAt := time.Now()
		loaded := testSale(t)
		loaded.PlatformLoadedAt = &loadedAt

		mockService.On("ListSales", mock.Anything, mock.MatchedBy(func(p sale.ListParams) bool {
			return p.Source == shared.SourceFalabella &&
				p.SortBy == sale.SortByDocumentDate &&
				p.SortOrder == sale.SortDesc &&
				p.Page == 2 && p.PerPage == 10
		})).Return([]*sale.Sale{testSale(t), loaded}, int64(12), nil)

		router := gin.New()
		router.GET("/sales", h.List)

		req := httptest.NewRequest(http.MethodGet, "/sales?source=FALABELLA&page=2&per_page=10", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)

		var resp struct {
			Data struct {
				Sales []SaleResponse `json:"sales"`
			} `json:"data"`
			Meta *MetaInfo `json:"meta"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.Len(t, resp.Data.Sales, 2)
		assert.Equal(t, "PENDING_ISSUANCE", resp.Data.Sales[0].DocumentStatus)
		assert.Equal(t, "LOADED", resp.Data.Sales[1].DocumentStatus)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, 12, resp.Meta.TotalItems)
		assert.Equal(t, 2, resp.Meta.TotalPages)

		mockService.AssertExpectations(t)
	})

	t.Run("InvalidQuery", func(t *testing.T) {
		mockService := new(MockSalesService)
		h := NewSalesHandler(logger, mockService, new(MockOrchestrator))

		router := gin.New()
		router.GET("/sales", h.List)

		req := httptest.NewRequest(http.MethodGet, "/sales?page=0", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertNotCalled(t, "ListSales", mock.Anything, mock.Anything)
	})
}

func TestSalesHandler_Retry(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	gin.SetMode(gin.TestMode)

	newRouter := func(h *SalesHandler) *gin.Engine {
		router := gin.New()
		router.POST("/sales/:id/retry", h.Retry)
		return router
	}

	t.Run("Success", func(t *testing.T) {
		mockOrch := new(MockOrchestrator)
		h := NewSalesHandler(logger, new(MockSalesService), mockOrch)

		saleID := uuid.New()
		mockOrch.On("Retry", mock.Anything, saleID).
			Return(&shared.BatchResult{Processed: 1, Message: "Processed 1 of 1 items", Errors: []shared.ItemError{}}, nil)

		req := httptest.NewRequest(http.MethodPost, "/sales/"+saleID.String()+"/retry", nil)
		rr := httptest.NewRecorder()
		newRouter(h).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		mockOrch.AssertExpectations(t)
	})

	t.Run("NotFound", func(t *testing.T) {
		mockOrch := new(MockOrchestrator)
		h := NewSalesHandler(logger, new(MockSalesService), mockOrch)

		saleID := uuid.New()
		mockOrch.On("Retry", mock.Anything, saleID).Return(nil, sale.ErrSaleNotFound{SaleID: saleID})

		req := httptest.NewRequest(http.MethodPost, "/sales/"+saleID.String()+"/retry", nil)
		rr := httptest.NewRecorder()
		newRouter(h).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("NotEligible", func(t *testing.T) {
		mockOrch := new(MockOrchestrator)
		h := NewSalesHandler(logger, new(MockSalesService), mockOrch)

		saleID := uuid.New()
		mockOrch.On("Retry", mock.Anything, saleID).Return(nil, issuance.ErrRetryNotEligible)

		req := httptest.NewRequest(http.MethodPost, "/sales/"+saleID.String()+"/retry", nil)
		rr := httptest.NewRecorder()
		newRouter(h).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("InvalidID", func(t *testing.T) {
		h := NewSalesHandler(logger, new(MockSalesService), new(MockOrchestrator))

		req := httptest.NewRequest(http.MethodPost, "/sales/not-a-uuid/retry", nil)
		rr := httptest.NewRecorder()
		newRouter(h).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
