package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ventasync-reconciler/internal/domain/shared"
	"github.com/ventasync-reconciler/internal/domain/watermark"
	"github.com/ventasync-reconciler/internal/platform/persistence"
)

// WatermarkRepository implements the watermark.Repository interface for PostgreSQL
type WatermarkRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewWatermarkRepository creates a new PostgreSQL watermark repository
func NewWatermarkRepository(logger *slog.Logger, db *persistence.PostgresDB) watermark.Repository {
	return &WatermarkRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// Get returns the source watermark, or (nil, nil) when the source was never pulled
func (r *WatermarkRepository) Get(ctx context.Context, source shared.Source) (*watermark.Watermark, error) {
	query := `
		SELECT source, last_pulled_at, updated_at
		FROM sync_watermarks
		WHERE source = $1
	`

	var w watermark.Watermark
	err := r.querier.QueryRow(ctx, query, source).Scan(
		&w.Source,
		&w.LastPulledAt,
		&w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Source never pulled
		}
		r.logger.Error("Failed to get watermark", "source", source, "error", err)
		return nil, fmt.Errorf("failed to get watermark: %w", err)
	}

	return &w, nil
}

// Advance moves the watermark forward, creating it on first pull. GREATEST on
// the conflict branch keeps the watermark monotonic under concurrent pulls.
func (r *WatermarkRepository) Advance(ctx context.Context, source shared.Source, lastPulledAt time.Time) error {
	query := `
		INSERT INTO sync_watermarks (source, last_pulled_at, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (source) DO UPDATE SET
			last_pulled_at = GREATEST(sync_watermarks.last_pulled_at, EXCLUDED.last_pulled_at),
			updated_at = NOW()
	`

	_, err := r.querier.Exec(ctx, query, source, lastPulledAt)
	if err != nil {
		r.logger.Error("Failed to advance watermark", "source", source, "error", err)
		return fmt.Errorf("failed to advance watermark: %w", err)
	}

	return nil
}
