package credential

import (
	"context"
	"time"
)

// Update carries a partial credential update. Nil fields leave the stored
// value untouched, so a configuration call that omits a field never
// overwrites it with empty/blank.
type Update struct {
	APIKeyEnc       []byte
	APIUserID       *string
	AccessTokenEnc  []byte
	RefreshTokenEnc []byte
	ExpiresAt       *time.Time
	ExternalUserID  *string
	DashboardUserID *string
}

// Empty reports whether the update carries nothing to change
func (u *Update) Empty() bool {
	return u.APIKeyEnc == nil && u.APIUserID == nil &&
		u.AccessTokenEnc == nil && u.RefreshTokenEnc == nil &&
		u.ExpiresAt == nil && u.ExternalUserID == nil && u.DashboardUserID == nil
}

// Repository defines credential vault persistence operations
type Repository interface {
	// Get returns (nil, nil) when the provider was never configured
	Get(ctx context.Context, provider Provider) (*Credential, error)

	// Apply upserts the provider row merging only the non-nil update fields
	Apply(ctx context.Context, provider Provider, update Update) error

	// Delete removes the provider credential; deleting an absent row is a no-op
	Delete(ctx context.Context, provider Provider) error
}
