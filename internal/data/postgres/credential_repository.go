package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/ventasync-reconciler/internal/domain/credential"
	"github.com/ventasync-reconciler/internal/platform/persistence"
)

// CredentialRepository implements the credential.Repository interface for
// PostgreSQL. Secret columns only ever hold ciphertext.
type CredentialRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewCredentialRepository creates a new PostgreSQL credential repository
func NewCredentialRepository(logger *slog.Logger, db *persistence.PostgresDB) credential.Repository {
	return &CredentialRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// Get returns the provider credential, or (nil, nil) when never configured
func (r *CredentialRepository) Get(ctx context.Context, provider credential.Provider) (*credential.Credential, error) {
	query := `
		SELECT provider, api_key_enc, api_user_id, access_token_enc, refresh_token_enc, expires_at, external_user_id, dashboard_user_id, updated_at
		FROM credentials
		WHERE provider = $1
	`

	// Identifier columns are NULL until their provider flow fills them in
	var (
		c               credential.Credential
		apiUserID       *string
		externalUserID  *string
		dashboardUserID *string
	)
	err := r.querier.QueryRow(ctx, query, provider).Scan(
		&c.Provider,
		&c.APIKeyEnc,
		&apiUserID,
		&c.AccessTokenEnc,
		&c.RefreshTokenEnc,
		&c.ExpiresAt,
		&externalUserID,
		&dashboardUserID,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Provider never configured
		}
		r.logger.Error("Failed to get credential", "provider", provider, "error", err)
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	if apiUserID != nil {
		c.APIUserID = *apiUserID
	}
	if externalUserID != nil {
		c.ExternalUserID = *externalUserID
	}
	if dashboardUserID != nil {
		c.DashboardUserID = *dashboardUserID
	}

	return &c, nil
}

// Apply upserts the provider row merging only the non-nil update fields.
// COALESCE on the conflict branch keeps every stored value that the update
// does not carry.
func (r *CredentialRepository) Apply(ctx context.Context, provider credential.Provider, update credential.Update) error {
	query := `
		INSERT INTO credentials (provider, api_key_enc, api_user_id, access_token_enc, refresh_token_enc, expires_at, external_user_id, dashboard_user_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (provider) DO UPDATE SET
			api_key_enc = COALESCE(EXCLUDED.api_key_enc, credentials.api_key_enc),
			api_user_id = COALESCE(EXCLUDED.api_user_id, credentials.api_user_id),
			access_token_enc = COALESCE(EXCLUDED.access_token_enc, credentials.access_token_enc),
			refresh_token_enc = COALESCE(EXCLUDED.refresh_token_enc, credentials.refresh_token_enc),
			expires_at = COALESCE(EXCLUDED.expires_at, credentials.expires_at),
			external_user_id = COALESCE(EXCLUDED.external_user_id, credentials.external_user_id),
			dashboard_user_id = COALESCE(EXCLUDED.dashboard_user_id, credentials.dashboard_user_id),
			updated_at = NOW()
	`

	_, err := r.querier.Exec(ctx, query,
		provider,
		update.APIKeyEnc,
		update.APIUserID,
		update.AccessTokenEnc,
		update.RefreshTokenEnc,
		update.ExpiresAt,
		update.ExternalUserID,
		update.DashboardUserID,
	)
	if err != nil {
		r.logger.Error("Failed to apply credential update", "provider", provider, "error", err)
		return fmt.Errorf("failed to apply credential update: %w", err)
	}

	return nil
}

// Delete removes the provider credential; deleting an absent row is a no-op
func (r *CredentialRepository) Delete(ctx context.Context, provider credential.Provider) error {
	query := `DELETE FROM credentials WHERE provider = $1`

	_, err := r.querier.Exec(ctx, query, provider)
	if err != nil {
		r.logger.Error("Failed to delete credential", "provider", provider, "error", err)
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	return nil
}
