package credential

import (
	"errors"
	"time"
)

// Provider identifies an external API a credential belongs to
type Provider string

const (
	// ProviderOpenFactura is the billing provider (static API key)
	ProviderOpenFactura Provider = "OPENFACTURA"
	// ProviderFalabella is the Seller Center API (API user id + static key)
	ProviderFalabella Provider = "FALABELLA"
	// ProviderMercadoLibre uses OAuth access/refresh tokens
	ProviderMercadoLibre Provider = "MERCADO_LIBRE"
)

// Valid reports whether the provider is known
func (p Provider) Valid() bool {
	switch p {
	case ProviderOpenFactura, ProviderFalabella, ProviderMercadoLibre:
		return true
	}
	return false
}

var (
	ErrUnknownProvider = errors.New("unknown credential provider")
	// ErrNotConfigured aborts operations that cannot possibly succeed
	// without the provider credential in place
	ErrNotConfigured = errors.New("provider credential not configured")
)

// Credential holds per-provider secret material. Secret fields carry
// ciphertext only; encryption happens before the repository boundary and
// decryption happens in memory right before an API call.
type Credential struct {
	Provider Provider `json:"provider"`

	// Static-key providers
	APIKeyEnc []byte `json:"-"`
	// APIUserID is the provider-side account identifier paired with the
	// key (Falabella Seller Center user email). Display-safe.
	APIUserID string `json:"api_user_id,omitempty"`

	// OAuth provider
	AccessTokenEnc  []byte     `json:"-"`
	RefreshTokenEnc []byte     `json:"-"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	// ExternalUserID is the provider-side numeric user id. Display-safe.
	ExternalUserID string `json:"external_user_id,omitempty"`
	// DashboardUserID is the dashboard user that connected the OAuth account
	DashboardUserID string `json:"dashboard_user_id,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Configured reports whether the credential is usable for API calls
func (c *Credential) Configured() bool {
	switch c.Provider {
	case ProviderMercadoLibre:
		return len(c.AccessTokenEnc) > 0
	case ProviderFalabella:
		return len(c.APIKeyEnc) > 0 && c.APIUserID != ""
	default:
		return len(c.APIKeyEnc) > 0
	}
}

// Status is the only shape ever returned to read paths: a configured flag
// plus display-safe identifiers, never secret values.
type Status struct {
	Configured     bool   `json:"configured"`
	APIUserID      string `json:"api_user_id,omitempty"`
	ExternalUserID string `json:"external_user_id,omitempty"`
}

// StatusOf derives the exposable status of a credential. A nil credential
// means the provider was never configured.
func StatusOf(c *Credential) Status {
	if c == nil {
		return Status{}
	}
	return Status{
		Configured:     c.Configured(),
		APIUserID:      c.APIUserID,
		ExternalUserID: c.ExternalUserID,
	}
}
