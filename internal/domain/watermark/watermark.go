// Package watermark tracks per-source sync progress so each reconciliation
// pull only asks the marketplace for orders it has not seen yet.
package watermark

import (
	"context"
	"time"

	"github.com/ventasync-reconciler/internal/domain/shared"
)

// Watermark is the last instant up to which a source was pulled. Watermarks
// only move forward; a failed pull leaves it untouched so the next cycle
// retries the same window.
type Watermark struct {
	Source       shared.Source `json:"source"`
	LastPulledAt time.Time     `json:"last_pulled_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Repository defines watermark persistence operations
type Repository interface {
	// Get returns (nil, nil) when the source was never pulled
	Get(ctx context.Context, source shared.Source) (*Watermark, error)

	// Advance moves the watermark forward, creating it on first pull.
	// A value older than the stored one is ignored.
	Advance(ctx context.Context, source shared.Source, lastPulledAt time.Time) error
}
