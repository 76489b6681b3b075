package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/ventasync-reconciler/internal/domain/credential"
	"github.com/ventasync-reconciler/internal/vault"
)

// ConfigHandler handles provider credential configuration. Responses only
// ever carry credential.Status shapes; raw secrets never leave the vault.
type ConfigHandler struct {
	vault  *vault.Vault
	logger *slog.Logger
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(logger *slog.Logger, v *vault.Vault) *ConfigHandler {
	return &ConfigHandler{
		vault:  v,
		logger: logger,
	}
}

// GetCredentials reports the configuration state of every provider
func (h *ConfigHandler) GetCredentials(c *gin.Context) {
	ctx := c.Request.Context()
	var resp CredentialStatusResponse
	var err error

	if resp.OpenFactura, err = h.vault.Status(ctx, credential.ProviderOpenFactura); err != nil {
		h.logger.Error("Failed to load billing credential status", "error", err)
		RespondInternalError(c)
		return
	}
	if resp.Falabella, err = h.vault.Status(ctx, credential.ProviderFalabella); err != nil {
		h.logger.Error("Failed to load seller credential status", "error", err)
		RespondInternalError(c)
		return
	}
	if resp.MercadoLibre, err = h.vault.Status(ctx, credential.ProviderMercadoLibre); err != nil {
		h.logger.Error("Failed to load oauth credential status", "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, resp)
}

// UpdateCredentials applies a partial credential update. Omitted fields keep
// their stored values; nothing is ever overwritten with a blank.
func (h *ConfigHandler) UpdateCredentials(c *gin.Context) {
	var req UpdateCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid credential update body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	ctx := c.Request.Context()

	if req.OpenFacturaAPIKey != nil && *req.OpenFacturaAPIKey != "" {
		if err := h.vault.SetAPIKey(ctx, credential.ProviderOpenFactura, *req.OpenFacturaAPIKey, nil); err != nil {
			h.logger.Error("Failed to store billing credential", "error", err)
			RespondInternalError(c)
			return
		}
	}

	falabellaKey := ""
	if req.FalabellaAPIKey != nil {
		falabellaKey = *req.FalabellaAPIKey
	}
	var falabellaUser *string
	if req.FalabellaUserID != nil && *req.FalabellaUserID != "" {
		falabellaUser = req.FalabellaUserID
	}
	if falabellaKey != "" || falabellaUser != nil {
		if err := h.vault.SetAPIKey(ctx, credential.ProviderFalabella, falabellaKey, falabellaUser); err != nil {
			h.logger.Error("Failed to store seller credential", "error", err)
			RespondInternalError(c)
			return
		}
	}

	h.GetCredentials(c)
}
