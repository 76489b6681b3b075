package vault

import (
	"context"
	"encoding/base64"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ventasync-reconciler/internal/domain/credential"
	"github.com/ventasync-reconciler/internal/platform/crypto"
)

type MockCredentialRepository struct {
	mock.Mock
}

func (m *MockCredentialRepository) Get(ctx context.Context, provider credential.Provider) (*credential.Credential, error) {
	args := m.Called(ctx, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credential.Credential), args.Error(1)
}

func (m *MockCredentialRepository) Apply(ctx context.Context, provider credential.Provider, update credential.Update) error {
	args := m.Called(ctx, provider, update)
	return args.Error(0)
}

func (m *MockCredentialRepository) Delete(ctx context.Context, provider credential.Provider) error {
	args := m.Called(ctx, provider)
	return args.Error(0)
}

var _ credential.Repository = (*MockCredentialRepository)(nil)

func newTestBox(t *testing.T) *crypto.SecretBox {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i + 1)
	}
	box, err := crypto.NewSecretBox(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	return box
}

func newTestVault(t *testing.T, repo credential.Repository) *Vault {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	return NewVault(logger, repo, newTestBox(t))
}

func TestVault_Status(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown provider", func(t *testing.T) {
		v := newTestVault(t, new(MockCredentialRepository))
		_, err := v.Status(ctx, credential.Provider("BOGUS"))
		assert.ErrorIs(t, err, credential.ErrUnknownProvider)
	})

	t.Run("never configured", func(t *testing.T) {
		repo := new(MockCredentialRepository)
		repo.On("Get", ctx, credential.ProviderOpenFactura).Return(nil, nil)
		v := newTestVault(t, repo)

		status, err := v.Status(ctx, credential.ProviderOpenFactura)
		assert.NoError(t, err)
		assert.False(t, status.Configured)
		repo.AssertExpectations(t)
	})

	t.Run("configured with display-safe fields", func(t *testing.T) {
		repo := new(MockCredentialRepository)
		repo.On("Get", ctx, credential.ProviderFalabella).Return(&credential.Credential{
			Provider:  credential.ProviderFalabella,
			APIKeyEnc: []byte{0x01},
			APIUserID: "seller@example.com",
		}, nil)
		v := newTestVault(t, repo)

		status, err := v.Status(ctx, credential.ProviderFalabella)
		assert.NoError(t, err)
		assert.True(t, status.Configured)
		assert.Equal(t, "seller@example.com", status.APIUserID)
		repo.AssertExpectations(t)
	})
}

func TestVault_SetAPIKey_EncryptsBeforeStore(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCredentialRepository)
	v := newTestVault(t, repo)
	userID := "seller@example.com"

	repo.On("Apply", ctx, credential.ProviderFalabella, mock.MatchedBy(func(u credential.Update) bool {
		// Ciphertext only, never the raw key
		return len(u.APIKeyEnc) > 0 && string(u.APIKeyEnc) != "raw-api-key" && u.APIUserID != nil && *u.APIUserID == userID
	})).Return(nil).Once()

	err := v.SetAPIKey(ctx, credential.ProviderFalabella, "raw-api-key", &userID)
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestVault_SetAPIKey_EmptyUpdateIsNoop(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCredentialRepository)
	v := newTestVault(t, repo)

	err := v.SetAPIKey(ctx, credential.ProviderOpenFactura, "", nil)
	assert.NoError(t, err)
	repo.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything, mock.Anything)
}

func TestVault_BillingAPIKey(t *testing.T) {
	ctx := context.Background()

	t.Run("not configured", func(t *testing.T) {
		repo := new(MockCredentialRepository)
		repo.On("Get", ctx, credential.ProviderOpenFactura).Return(nil, nil)
		v := newTestVault(t, repo)

		_, err := v.BillingAPIKey(ctx)
		assert.ErrorIs(t, err, credential.ErrNotConfigured)
		repo.AssertExpectations(t)
	})

	t.Run("round trips through encryption", func(t *testing.T) {
		repo := new(MockCredentialRepository)
		v := newTestVault(t, repo)

		enc, err := v.box.SealString("billing-key-42")
		require.NoError(t, err)
		repo.On("Get", ctx, credential.ProviderOpenFactura).Return(&credential.Credential{
			Provider:  credential.ProviderOpenFactura,
			APIKeyEnc: enc,
		}, nil)

		key, err := v.BillingAPIKey(ctx)
		assert.NoError(t, err)
		assert.Equal(t, "billing-key-42", key)
		repo.AssertExpectations(t)
	})
}

func TestVault_StoreOAuthTokens(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCredentialRepository)
	v := newTestVault(t, repo)
	expiresAt := time.Now().Add(6 * time.Hour)

	repo.On("Apply", ctx, credential.ProviderMercadoLibre, mock.MatchedBy(func(u credential.Update) bool {
		return len(u.AccessTokenEnc) > 0 && len(u.RefreshTokenEnc) > 0 &&
			u.ExpiresAt != nil && u.ExternalUserID != nil && *u.ExternalUserID == "123456"
	})).Return(nil).Once()

	err := v.StoreOAuthTokens(ctx, "access-tok", "refresh-tok", expiresAt, "123456", "dash-user")
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestVault_SellerCredentials(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCredentialRepository)
	v := newTestVault(t, repo)

	enc, err := v.box.SealString("seller-key")
	require.NoError(t, err)
	repo.On("Get", ctx, credential.ProviderFalabella).Return(&credential.Credential{
		Provider:  credential.ProviderFalabella,
		APIKeyEnc: enc,
		APIUserID: "seller@example.com",
	}, nil)

	userID, apiKey, err := v.SellerCredentials(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "seller@example.com", userID)
	assert.Equal(t, "seller-key", apiKey)
	repo.AssertExpectations(t)
}

func TestVault_Disconnect(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCredentialRepository)
	v := newTestVault(t, repo)

	repo.On("Delete", ctx, credential.ProviderMercadoLibre).Return(nil).Once()

	err := v.Disconnect(ctx, credential.ProviderMercadoLibre)
	assert.NoError(t, err)
	repo.AssertExpectations(t)

	err = v.Disconnect(ctx, credential.Provider("BOGUS"))
	assert.ErrorIs(t, err, credential.ErrUnknownProvider)
}
