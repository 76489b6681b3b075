// Package oauth runs the Mercado Libre authorization flow: signed single-use
// state tokens, the code-for-tokens exchange and credential persistence.
// Every terminal failure maps to a stable short code because the callback
// redirect carries only a code, never a message.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ventasync-reconciler/internal/config"
	"github.com/ventasync-reconciler/internal/domain/credential"
	"github.com/ventasync-reconciler/internal/domain/shared"
	"github.com/ventasync-reconciler/internal/domain/user"
)

// FlowError is an OAuth flow failure carrying its stable redirect code
type FlowError struct {
	Code shared.AuthFlowCode
	Err  error
}

func (e *FlowError) Error() string {
	if e.Err != nil {
		return string(e.Code) + ": " + e.Err.Error()
	}
	return string(e.Code)
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

func flowErr(code shared.AuthFlowCode, err error) *FlowError {
	return &FlowError{Code: code, Err: err}
}

// CredentialStore is the vault surface the flow needs
type CredentialStore interface {
	StoreOAuthTokens(ctx context.Context, accessToken, refreshToken string, expiresAt time.Time, externalUserID, dashboardUserID string) error
	Disconnect(ctx context.Context, provider credential.Provider) error
}

// SessionManager drives the Mercado Libre OAuth session lifecycle
type SessionManager struct {
	logger     *slog.Logger
	httpClient *http.Client
	cfg        *config.MercadoLibreConfig
	codec      *StateCodec
	states     StateStore
	users      user.Directory
	store      CredentialStore
}

// NewSessionManager creates an OAuth session manager
func NewSessionManager(
	logger *slog.Logger,
	cfg *config.MercadoLibreConfig,
	codec *StateCodec,
	states StateStore,
	users user.Directory,
	store CredentialStore,
) *SessionManager {
	return &SessionManager{
		logger:     logger,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		codec:      codec,
		states:     states,
		users:      users,
		store:      store,
	}
}

// BeginAuthorization issues a state token bound to the dashboard user and
// builds the provider authorization URL
func (m *SessionManager) BeginAuthorization(ctx context.Context, dashboardUserID string) (string, error) {
	if m.cfg.ClientID == "" || m.cfg.RedirectURI == "" {
		return "", flowErr(shared.AuthFlowCodeServerConfig, fmt.Errorf("oauth client id or redirect uri not configured"))
	}

	state, err := m.codec.Issue(dashboardUserID)
	if err != nil {
		return "", flowErr(shared.AuthFlowCodeServerConfig, fmt.Errorf("failed to issue state token: %w", err))
	}

	query := url.Values{}
	query.Set("response_type", "code")
	query.Set("client_id", m.cfg.ClientID)
	query.Set("redirect_uri", m.cfg.RedirectURI)
	query.Set("state", state)

	m.logger.Info("Issued OAuth authorization URL", "dashboard_user_id", dashboardUserID)
	return m.cfg.AuthBaseURL + "/authorization?" + query.Encode(), nil
}

type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int         `json:"expires_in"`
	UserID       json.Number `json:"user_id"`
}

// CompleteExchange finishes the callback leg: verifies and consumes the
// state, exchanges the code for tokens, checks the dashboard user exists and
// persists the credential. On success the session is Connected.
func (m *SessionManager) CompleteExchange(ctx context.Context, code, state string) error {
	if m.cfg.ClientID == "" || m.cfg.ClientSecret == "" || m.cfg.RedirectURI == "" {
		return flowErr(shared.AuthFlowCodeServerConfig, fmt.Errorf("oauth app not configured"))
	}

	dashboardUserID, jti, err := m.codec.Verify(state)
	if err != nil {
		m.logger.Warn("Rejected OAuth callback with invalid state", "error", err)
		return flowErr(shared.AuthFlowCodeInvalidState, err)
	}
	used, err := m.states.Consume(ctx, jti)
	if err != nil {
		return fmt.Errorf("failed to check state reuse: %w", err)
	}
	if !used {
		m.logger.Warn("Rejected reused OAuth state", "jti", jti)
		return flowErr(shared.AuthFlowCodeInvalidState, fmt.Errorf("state already consumed"))
	}

	tokens, err := m.exchangeCode(ctx, code)
	if err != nil {
		m.logger.Error("OAuth token exchange failed", "error", err)
		return flowErr(shared.AuthFlowCodeTokenExchange, err)
	}
	if tokens.AccessToken == "" {
		return flowErr(shared.AuthFlowCodeNoTokens, fmt.Errorf("provider returned no access token"))
	}

	userID, err := uuid.Parse(dashboardUserID)
	if err != nil {
		return flowErr(shared.AuthFlowCodeUserNotFound, fmt.Errorf("malformed dashboard user id: %w", err))
	}
	u, err := m.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to look up dashboard user: %w", err)
	}
	if u == nil {
		return flowErr(shared.AuthFlowCodeUserNotFound, fmt.Errorf("dashboard user %s not found", dashboardUserID))
	}

	expiresAt := time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second)
	if err := m.store.StoreOAuthTokens(ctx, tokens.AccessToken, tokens.RefreshToken, expiresAt, tokens.UserID.String(), dashboardUserID); err != nil {
		return fmt.Errorf("failed to persist oauth credential: %w", err)
	}

	m.logger.Info("OAuth session connected", "dashboard_user_id", dashboardUserID, "external_user_id", tokens.UserID.String())
	return nil
}

// Disconnect drops the stored credential; disconnecting twice is a no-op
func (m *SessionManager) Disconnect(ctx context.Context) error {
	if err := m.store.Disconnect(ctx, credential.ProviderMercadoLibre); err != nil {
		return fmt.Errorf("failed to disconnect oauth session: %w", err)
	}
	return nil
}

func (m *SessionManager) exchangeCode(ctx context.Context, code string) (*tokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", m.cfg.ClientID)
	form.Set("client_secret", m.cfg.ClientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", m.cfg.RedirectURI)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.APIBaseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var tokens tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	return &tokens, nil
}
