package marketplace

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ventasync-reconciler/internal/config"
	"github.com/ventasync-reconciler/internal/domain/shared"
)

const (
	falabellaAPIVersion  = "1.0"
	falabellaTimeFormat  = "2006-01-02T15:04:05+00:00"
	falabellaOrderFormat = "2006-01-02 15:04:05"
)

// FalabellaConnector implements Connector against the Seller Center API.
// Every request carries an HMAC-SHA256 signature over the RFC 3986 encoded,
// alphabetically sorted query parameters.
type FalabellaConnector struct {
	logger     *slog.Logger
	httpClient *http.Client
	baseURL    string
	userAgent  string
	creds      SellerCredentialSource
	now        func() time.Time
}

// NewFalabellaConnector creates a Seller Center connector
func NewFalabellaConnector(logger *slog.Logger, cfg *config.FalabellaConfig, creds SellerCredentialSource) *FalabellaConnector {
	return &FalabellaConnector{
		logger:     logger,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		userAgent:  cfg.UserAgent,
		creds:      creds,
		now:        time.Now,
	}
}

// Source identifies this connector's marketplace
func (c *FalabellaConnector) Source() shared.Source {
	return shared.SourceFalabella
}

// percentEncode applies RFC 3986 encoding as the signature scheme requires:
// unreserved characters pass through, everything else becomes %XX
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= 'A' && ch <= 'Z', ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9',
			ch == '-', ch == '_', ch == '.', ch == '~':
			b.WriteByte(ch)
		default:
			b.WriteString(fmt.Sprintf("%%%02X", ch))
		}
	}
	return b.String()
}

// signParams computes the request signature over the sorted parameter string.
// The Signature parameter itself must not be present in params.
func signParams(params map[string]string, apiKey string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, percentEncode(k)+"="+percentEncode(params[k]))
	}
	stringToSign := strings.Join(pairs, "&")

	mac := hmac.New(sha256.New, []byte(apiKey))
	mac.Write([]byte(stringToSign))
	return hex.EncodeToString(mac.Sum(nil))
}

// buildQuery renders the signed query string with parameters in sorted order
func buildQuery(params map[string]string, signature string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		parts = append(parts, percentEncode(k)+"="+percentEncode(params[k]))
	}
	parts = append(parts, "Signature="+percentEncode(signature))
	return strings.Join(parts, "&")
}

type falabellaEnvelope struct {
	SuccessResponse *struct {
		Body json.RawMessage `json:"Body"`
	} `json:"SuccessResponse"`
	ErrorResponse *struct {
		Head struct {
			ErrorCode    string `json:"ErrorCode"`
			ErrorMessage string `json:"ErrorMessage"`
		} `json:"Head"`
	} `json:"ErrorResponse"`
}

type falabellaOrder struct {
	OrderID     json.Number `json:"OrderId"`
	OrderNumber string      `json:"OrderNumber"`
	Price       string      `json:"Price"`
	CreatedAt   string      `json:"CreatedAt"`
}

type falabellaOrdersBody struct {
	Orders struct {
		Order json.RawMessage `json:"Order"`
	} `json:"Orders"`
}

// PullOrders fetches orders created after since, walking pages until a short
// page signals the end
func (c *FalabellaConnector) PullOrders(ctx context.Context, since time.Time, pageSize int) ([]Order, error) {
	userID, apiKey, err := c.creds.SellerCredentials(ctx)
	if err != nil {
		return nil, err
	}

	var orders []Order
	offset := 0
	for {
		params := map[string]string{
			"Action":       "GetOrders",
			"Format":       "JSON",
			"Timestamp":    c.now().UTC().Format(falabellaTimeFormat),
			"UserID":       userID,
			"Version":      falabellaAPIVersion,
			"CreatedAfter": since.UTC().Format(falabellaTimeFormat),
			"Limit":        strconv.Itoa(pageSize),
			"Offset":       strconv.Itoa(offset),
		}
		signature := signParams(params, apiKey)

		url := c.baseURL + "/?" + buildQuery(params, signature)
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build seller center request: %w", err)
		}
		httpReq.Header.Set("User-Agent", c.userAgent)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("seller center request failed: %w", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read seller center response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("seller center returned status %d", resp.StatusCode)
		}

		var envelope falabellaEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("failed to decode seller center response: %w", err)
		}
		if envelope.ErrorResponse != nil {
			return nil, fmt.Errorf("seller center error %s: %s",
				envelope.ErrorResponse.Head.ErrorCode, envelope.ErrorResponse.Head.ErrorMessage)
		}
		if envelope.SuccessResponse == nil {
			return nil, fmt.Errorf("seller center response missing body")
		}

		page, err := parseFalabellaOrders(envelope.SuccessResponse.Body)
		if err != nil {
			return nil, err
		}
		for _, fo := range page {
			order, err := c.normalizeOrder(fo)
			if err != nil {
				c.logger.Warn("Skipping malformed seller center order", "order_number", fo.OrderNumber, "error", err)
				continue
			}
			orders = append(orders, order)
		}

		if len(page) < pageSize {
			break
		}
		offset += pageSize
	}

	return orders, nil
}

// parseFalabellaOrders tolerates the API returning a single order object
// where a list is expected
func parseFalabellaOrders(body json.RawMessage) ([]falabellaOrder, error) {
	if len(body) == 0 {
		return nil, nil
	}
	var parsed falabellaOrdersBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode seller center orders body: %w", err)
	}
	raw := parsed.Orders.Order
	if len(raw) == 0 {
		return nil, nil
	}

	var list []falabellaOrder
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var single falabellaOrder
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("failed to decode seller center order entries: %w", err)
	}
	return []falabellaOrder{single}, nil
}

func (c *FalabellaConnector) normalizeOrder(fo falabellaOrder) (Order, error) {
	externalID := fo.OrderNumber
	if externalID == "" {
		externalID = fo.OrderID.String()
	}
	if externalID == "" {
		return Order{}, fmt.Errorf("order has no identifier")
	}

	amount, err := decimal.NewFromString(fo.Price)
	if err != nil {
		return Order{}, fmt.Errorf("order %s has invalid price %q: %w", externalID, fo.Price, err)
	}

	var orderDate *time.Time
	if fo.CreatedAt != "" {
		if parsed, err := time.Parse(falabellaOrderFormat, fo.CreatedAt); err == nil {
			orderDate = &parsed
		}
	}

	return Order{
		ExternalSaleID: externalID,
		Amount:         amount,
		DocumentType:   shared.DocumentTypeReceipt,
		OrderDate:      orderDate,
	}, nil
}
