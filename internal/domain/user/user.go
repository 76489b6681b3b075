// Package user holds the minimal dashboard user directory. The OAuth flow
// needs to confirm the connecting user still exists before storing tokens.
package user

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User is a dashboard account allowed to connect marketplace integrations
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Directory looks up dashboard users
type Directory interface {
	// GetByID returns (nil, nil) when no user exists with the id
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)

	// GetByEmail returns (nil, nil) when no user exists with the email
	GetByEmail(ctx context.Context, email string) (*User, error)
}
