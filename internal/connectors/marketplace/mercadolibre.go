package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ventasync-reconciler/internal/config"
	"github.com/ventasync-reconciler/internal/domain/shared"
)

// MercadoLibreConnector implements Connector against the Mercado Libre API.
// Orders come from the marketplace search endpoint; for each order the pack
// fiscal document endpoint tells whether the platform already holds a
// document, which is what flags a sale as loaded.
type MercadoLibreConnector struct {
	logger     *slog.Logger
	httpClient *http.Client
	baseURL    string
	tokens     TokenSource
}

// NewMercadoLibreConnector creates a Mercado Libre connector
func NewMercadoLibreConnector(logger *slog.Logger, cfg *config.MercadoLibreConfig, tokens TokenSource) *MercadoLibreConnector {
	return &MercadoLibreConnector{
		logger:     logger,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.APIBaseURL,
		tokens:     tokens,
	}
}

// Source identifies this connector's marketplace
func (c *MercadoLibreConnector) Source() shared.Source {
	return shared.SourceMercadoLibre
}

type mlOrder struct {
	ID          json.Number `json:"id"`
	PackID      json.Number `json:"pack_id"`
	TotalAmount json.Number `json:"total_amount"`
	DateCreated string      `json:"date_created"`
}

type mlSearchResponse struct {
	Results []mlOrder `json:"results"`
	Paging  struct {
		Total int `json:"total"`
	} `json:"paging"`
}

type mlFiscalDocsResponse struct {
	FiscalDocuments []json.RawMessage `json:"fiscal_documents"`
}

// PullOrders fetches orders created after since. The search endpoint returns
// newest first, so paging stops at the first order older than the window.
func (c *MercadoLibreConnector) PullOrders(ctx context.Context, since time.Time, pageSize int) ([]Order, error) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	var orders []Order
	offset := 0
pages:
	for {
		url := fmt.Sprintf("%s/marketplace/orders/search?limit=%d&offset=%d&sort=date_desc", c.baseURL, pageSize, offset)
		var search mlSearchResponse
		if err := c.getJSON(ctx, url, token, &search); err != nil {
			return nil, fmt.Errorf("failed to search orders: %w", err)
		}
		if len(search.Results) == 0 {
			break
		}

		for _, mo := range search.Results {
			order, inWindow, err := c.normalizeOrder(ctx, token, mo, since)
			if err != nil {
				c.logger.Warn("Skipping malformed order", "order_id", mo.ID.String(), "error", err)
				continue
			}
			if !inWindow {
				break pages // Results are date-descending; everything after is older
			}
			orders = append(orders, order)
		}

		if len(search.Results) < pageSize {
			break
		}
		offset += pageSize
	}

	return orders, nil
}

func (c *MercadoLibreConnector) normalizeOrder(ctx context.Context, token string, mo mlOrder, since time.Time) (Order, bool, error) {
	externalID := mo.ID.String()
	if externalID == "" {
		return Order{}, false, fmt.Errorf("order has no id")
	}

	var orderDate *time.Time
	if mo.DateCreated != "" {
		if parsed, err := time.Parse(time.RFC3339, mo.DateCreated); err == nil {
			orderDate = &parsed
		}
	}
	if orderDate != nil && orderDate.Before(since) {
		return Order{}, false, nil
	}

	amount, err := decimal.NewFromString(mo.TotalAmount.String())
	if err != nil {
		return Order{}, false, fmt.Errorf("order %s has invalid amount %q: %w", externalID, mo.TotalAmount.String(), err)
	}

	// A null pack_id means the order id doubles as the pack id
	packID := mo.PackID.String()
	if packID == "" {
		packID = externalID
	}
	uploaded := c.fiscalDocumentUploaded(ctx, token, packID)

	return Order{
		ExternalSaleID:   externalID,
		Amount:           amount,
		DocumentType:     shared.DocumentTypeReceipt,
		OrderDate:        orderDate,
		DocumentUploaded: uploaded,
	}, true, nil
}

// fiscalDocumentUploaded reports whether the pack already carries a fiscal
// document. Any failure to check counts as "not uploaded" so a flaky endpoint
// never marks a sale loaded.
func (c *MercadoLibreConnector) fiscalDocumentUploaded(ctx context.Context, token, packID string) bool {
	url := fmt.Sprintf("%s/packs/%s/fiscal_documents", c.baseURL, packID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("Fiscal document check failed", "pack_id", packID, "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("Fiscal document check returned error status", "pack_id", packID, "status", resp.StatusCode)
		return false
	}

	var docs mlFiscalDocsResponse
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		c.logger.Warn("Fiscal document check returned invalid body", "pack_id", packID, "error", err)
		return false
	}
	return len(docs.FiscalDocuments) > 0
}

func (c *MercadoLibreConnector) getJSON(ctx context.Context, url, token string, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %s: %s", strconv.Itoa(resp.StatusCode), string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
