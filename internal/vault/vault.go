// Package vault is the only place where credential ciphertext is turned back
// into usable secrets. Connectors receive decrypted values in memory right
// before an API call; read paths only ever see credential.Status.
package vault

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ventasync-reconciler/internal/domain/credential"
	"github.com/ventasync-reconciler/internal/platform/crypto"
)

// Vault mediates between the credential repository and everything that needs
// provider secrets
type Vault struct {
	logger *slog.Logger
	repo   credential.Repository
	box    *crypto.SecretBox
}

// NewVault creates a credential vault
func NewVault(logger *slog.Logger, repo credential.Repository, box *crypto.SecretBox) *Vault {
	return &Vault{
		logger: logger,
		repo:   repo,
		box:    box,
	}
}

// Status returns the display-safe state of a provider credential
func (v *Vault) Status(ctx context.Context, provider credential.Provider) (credential.Status, error) {
	if !provider.Valid() {
		return credential.Status{}, credential.ErrUnknownProvider
	}
	c, err := v.repo.Get(ctx, provider)
	if err != nil {
		return credential.Status{}, fmt.Errorf("failed to load credential status: %w", err)
	}
	return credential.StatusOf(c), nil
}

// SetAPIKey stores an encrypted static API key for a provider. An optional
// apiUserID pairs a provider-side account identifier with the key.
func (v *Vault) SetAPIKey(ctx context.Context, provider credential.Provider, apiKey string, apiUserID *string) error {
	if !provider.Valid() {
		return credential.ErrUnknownProvider
	}

	update := credential.Update{APIUserID: apiUserID}
	if apiKey != "" {
		enc, err := v.box.SealString(apiKey)
		if err != nil {
			return fmt.Errorf("failed to encrypt api key: %w", err)
		}
		update.APIKeyEnc = enc
	}
	if update.Empty() {
		return nil
	}

	if err := v.repo.Apply(ctx, provider, update); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	v.logger.Info("Stored provider credential", "provider", provider)
	return nil
}

// StoreOAuthTokens persists a fresh OAuth token pair for Mercado Libre
func (v *Vault) StoreOAuthTokens(ctx context.Context, accessToken, refreshToken string, expiresAt time.Time, externalUserID, dashboardUserID string) error {
	accessEnc, err := v.box.SealString(accessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}

	update := credential.Update{
		AccessTokenEnc: accessEnc,
		ExpiresAt:      &expiresAt,
	}
	if refreshToken != "" {
		refreshEnc, err := v.box.SealString(refreshToken)
		if err != nil {
			return fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
		update.RefreshTokenEnc = refreshEnc
	}
	if externalUserID != "" {
		update.ExternalUserID = &externalUserID
	}
	if dashboardUserID != "" {
		update.DashboardUserID = &dashboardUserID
	}

	if err := v.repo.Apply(ctx, credential.ProviderMercadoLibre, update); err != nil {
		return fmt.Errorf("failed to store oauth tokens: %w", err)
	}
	v.logger.Info("Stored OAuth tokens", "provider", credential.ProviderMercadoLibre, "external_user_id", externalUserID)
	return nil
}

// Disconnect removes a provider credential entirely
func (v *Vault) Disconnect(ctx context.Context, provider credential.Provider) error {
	if !provider.Valid() {
		return credential.ErrUnknownProvider
	}
	if err := v.repo.Delete(ctx, provider); err != nil {
		return fmt.Errorf("failed to disconnect provider: %w", err)
	}
	v.logger.Info("Disconnected provider", "provider", provider)
	return nil
}

// BillingAPIKey returns the decrypted OpenFactura API key
func (v *Vault) BillingAPIKey(ctx context.Context) (string, error) {
	c, err := v.repo.Get(ctx, credential.ProviderOpenFactura)
	if err != nil {
		return "", fmt.Errorf("failed to load billing credential: %w", err)
	}
	if c == nil || !c.Configured() {
		return "", credential.ErrNotConfigured
	}
	key, err := v.box.OpenString(c.APIKeyEnc)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt billing api key: %w", err)
	}
	return key, nil
}

// SellerCredentials returns the decrypted Falabella Seller Center pair
func (v *Vault) SellerCredentials(ctx context.Context) (userID, apiKey string, err error) {
	c, err := v.repo.Get(ctx, credential.ProviderFalabella)
	if err != nil {
		return "", "", fmt.Errorf("failed to load seller credential: %w", err)
	}
	if c == nil || !c.Configured() {
		return "", "", credential.ErrNotConfigured
	}
	key, err := v.box.OpenString(c.APIKeyEnc)
	if err != nil {
		return "", "", fmt.Errorf("failed to decrypt seller api key: %w", err)
	}
	return c.APIUserID, key, nil
}

// AccessToken returns the decrypted Mercado Libre access token
func (v *Vault) AccessToken(ctx context.Context) (string, error) {
	c, err := v.repo.Get(ctx, credential.ProviderMercadoLibre)
	if err != nil {
		return "", fmt.Errorf("failed to load oauth credential: %w", err)
	}
	if c == nil || !c.Configured() {
		return "", credential.ErrNotConfigured
	}
	token, err := v.box.OpenString(c.AccessTokenEnc)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt access token: %w", err)
	}
	return token, nil
}

// RefreshToken returns the decrypted Mercado Libre refresh token, or empty
// when none is stored
func (v *Vault) RefreshToken(ctx context.Context) (string, error) {
	c, err := v.repo.Get(ctx, credential.ProviderMercadoLibre)
	if err != nil {
		return "", fmt.Errorf("failed to load oauth credential: %w", err)
	}
	if c == nil || len(c.RefreshTokenEnc) == 0 {
		return "", nil
	}
	token, err := v.box.OpenString(c.RefreshTokenEnc)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt refresh token: %w", err)
	}
	return token, nil
}
