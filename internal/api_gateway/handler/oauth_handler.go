package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/ventasync-reconciler/internal/api_gateway/middleware"
	"github.com/ventasync-reconciler/internal/domain/shared"
	"github.com/ventasync-reconciler/internal/oauth"
)

// OAuthSessions is the session manager surface the handler needs
type OAuthSessions interface {
	BeginAuthorization(ctx context.Context, dashboardUserID string) (string, error)
	CompleteExchange(ctx context.Context, code, state string) error
	Disconnect(ctx context.Context) error
}

// OAuthHandler handles the Mercado Libre OAuth flow endpoints
type OAuthHandler struct {
	sessions    OAuthSessions
	frontendURL string
	logger      *slog.Logger
}

// NewOAuthHandler creates a new OAuth handler
func NewOAuthHandler(logger *slog.Logger, sessions OAuthSessions, frontendURL string) *OAuthHandler {
	return &OAuthHandler{
		sessions:    sessions,
		frontendURL: frontendURL,
		logger:      logger,
	}
}

// AuthorizeURL issues the provider authorization URL bound to the calling
// dashboard user
func (h *OAuthHandler) AuthorizeURL(c *gin.Context) {
	dashboardUserID := middleware.GetDashboardUserID(c)
	if dashboardUserID == "" {
		RespondUnauthorized(c, "Missing dashboard user identity")
		return
	}

	authURL, err := h.sessions.BeginAuthorization(c.Request.Context(), dashboardUserID)
	if err != nil {
		var fe *oauth.FlowError
		if errors.As(err, &fe) {
			RespondUnprocessable(c, string(fe.Code), "OAuth application is not configured")
			return
		}
		h.logger.Error("Failed to begin authorization", "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, AuthorizeURLResponse{URL: authURL})
}

// Callback finishes the OAuth exchange. The browser lands here from the
// provider, so the outcome travels back to the dashboard as a redirect query
// parameter carrying a stable code, never a message body.
func (h *OAuthHandler) Callback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		h.redirect(c, "ml_error", string(shared.AuthFlowCodeInvalidState))
		return
	}

	if err := h.sessions.CompleteExchange(c.Request.Context(), code, state); err != nil {
		var fe *oauth.FlowError
		if errors.As(err, &fe) {
			h.redirect(c, "ml_error", string(fe.Code))
			return
		}
		h.logger.Error("OAuth exchange failed", "error", err)
		h.redirect(c, "ml_error", string(shared.AuthFlowCodeServerConfig))
		return
	}

	h.redirect(c, "ml_connected", "1")
}

// Disconnect drops the stored OAuth credential; repeating it is harmless
func (h *OAuthHandler) Disconnect(c *gin.Context) {
	if err := h.sessions.Disconnect(c.Request.Context()); err != nil {
		h.logger.Error("Failed to disconnect oauth session", "error", err)
		RespondInternalError(c)
		return
	}
	RespondOK(c, gin.H{"disconnected": true})
}

func (h *OAuthHandler) redirect(c *gin.Context, key, value string) {
	c.Redirect(http.StatusFound, h.frontendURL+"?"+url.Values{key: {value}}.Encode())
}
