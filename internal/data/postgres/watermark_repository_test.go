package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ventasync-reconciler/internal/domain/shared"
	"github.com/ventasync-reconciler/internal/domain/watermark"
)

func TestWatermarkRepository_Get(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &WatermarkRepository{querier: mock, logger: logger}
	now := time.Now()

	query := `
		SELECT source, last_pulled_at, updated_at
		FROM sync_watermarks
		WHERE source = \$1
	`

	t.Run("success", func(t *testing.T) {
		expected := &watermark.Watermark{
			Source:       shared.SourceMercadoLibre,
			LastPulledAt: now.Add(-time.Hour),
			UpdatedAt:    now,
		}
		rows := pgxmock.NewRows([]string{"source", "last_pulled_at", "updated_at"}).
			AddRow(expected.Source, expected.LastPulledAt, expected.UpdatedAt)
		mock.ExpectQuery(query).WithArgs(shared.SourceMercadoLibre).WillReturnRows(rows)

		got, err := repo.Get(ctx, shared.SourceMercadoLibre)
		assert.NoError(t, err)
		assert.Equal(t, expected, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("never pulled returns nil nil", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(shared.SourceFalabella).WillReturnError(pgx.ErrNoRows)

		got, err := repo.Get(ctx, shared.SourceFalabella)
		assert.NoError(t, err)
		assert.Nil(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("watermark db error")
		mock.ExpectQuery(query).WithArgs(shared.SourceFalabella).WillReturnError(dbErr)

		got, err := repo.Get(ctx, shared.SourceFalabella)
		assert.Error(t, err)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWatermarkRepository_Advance(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &WatermarkRepository{querier: mock, logger: logger}
	pulledAt := time.Now()

	query := `INSERT INTO sync_watermarks .* ON CONFLICT \(source\) DO UPDATE SET`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(shared.SourceFalabella, pulledAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := repo.Advance(ctx, shared.SourceFalabella, pulledAt)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("advance db error")
		mock.ExpectExec(query).
			WithArgs(shared.SourceFalabella, pulledAt).
			WillReturnError(dbErr)

		err := repo.Advance(ctx, shared.SourceFalabella, pulledAt)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to advance watermark")
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
