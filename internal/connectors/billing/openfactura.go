package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ventasync-reconciler/internal/config"
	"github.com/ventasync-reconciler/internal/domain/shared"
)

const issueDocumentPath = "/v2/dte/document"

// OpenFacturaConnector implements Connector against the OpenFactura DTE API
type OpenFacturaConnector struct {
	logger     *slog.Logger
	httpClient *http.Client
	baseURL    string
	keys       APIKeySource
}

// NewOpenFacturaConnector creates an OpenFactura billing connector
func NewOpenFacturaConnector(logger *slog.Logger, cfg *config.BillingConfig, keys APIKeySource) *OpenFacturaConnector {
	return &OpenFacturaConnector{
		logger:     logger,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		keys:       keys,
	}
}

type issuePayload struct {
	Tipo        string `json:"tipo"`
	Folio       *int   `json:"folio"`
	Descripcion string `json:"descripcion"`
	Monto       string `json:"monto"`
}

type issueResponse struct {
	Token  string `json:"token"`
	Folio  string `json:"folio"`
	PDFURL string `json:"pdf_url"`
	PDF    string `json:"pdf"`
	XMLURL string `json:"xml_url"`
	XML    string `json:"xml"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// IssueDocument emits a boleta or factura for the sale. Provider rejections
// come back as ErrProviderRejected so callers can separate them from
// transport failures.
func (c *OpenFacturaConnector) IssueDocument(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	apiKey, err := c.keys.BillingAPIKey(ctx)
	if err != nil {
		return nil, err
	}

	tipo := "boleta"
	if req.DocumentType == shared.DocumentTypeInvoice {
		tipo = "factura"
	}
	payload := issuePayload{
		Tipo:        tipo,
		Descripcion: fmt.Sprintf("Venta %s", req.ExternalSaleID),
		Monto:       req.Amount.StringFixed(2),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal issuance payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+issueDocumentPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build issuance request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("billing provider request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read billing provider response: %w", err)
	}

	c.logger.Debug("Billing provider responded",
		"external_sale_id", req.ExternalSaleID,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp errorResponse
		message := http.StatusText(resp.StatusCode)
		if json.Unmarshal(respBody, &errResp) == nil {
			if errResp.Message != "" {
				message = errResp.Message
			} else if errResp.Error != "" {
				message = errResp.Error
			}
		}
		return nil, ErrProviderRejected{
			StatusCode: resp.StatusCode,
			Message:    message,
			Raw:        string(respBody),
		}
	}

	var data issueResponse
	if err := json.Unmarshal(respBody, &data); err != nil {
		return nil, fmt.Errorf("failed to decode billing provider response: %w", err)
	}

	providerDocID := data.Token
	if providerDocID == "" {
		providerDocID = data.Folio
	}
	pdfURL := data.PDFURL
	if pdfURL == "" {
		pdfURL = data.PDF
	}
	xmlURL := data.XMLURL
	if xmlURL == "" {
		xmlURL = data.XML
	}

	return &IssueResult{
		ProviderDocumentID: providerDocID,
		PDFURL:             pdfURL,
		XMLURL:             xmlURL,
		Raw:                string(respBody),
	}, nil
}
