// Package postgres provides PostgreSQL implementations of the domain
// repositories. It handles all database operations while maintaining
// transaction safety and proper error handling for the sales ledger.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ventasync-reconciler/internal/domain/sale"
	"github.com/ventasync-reconciler/internal/domain/shared"
	"github.com/ventasync-reconciler/internal/platform/persistence"
)

const uniqueViolationCode = "23505"

const saleColumns = `id, source, external_sale_id, amount, document_type, document_date, order_status, last_error_message, document_id, platform_loaded_at, version, created_at, updated_at`

// SaleRepository implements the sale.Repository interface for PostgreSQL
type SaleRepository struct {
	pool   persistence.PoolQuerier // Pool-level querier; LinkDocument opens its own tx
	logger *slog.Logger
}

// NewSaleRepository creates a new PostgreSQL sale repository
func NewSaleRepository(logger *slog.Logger, db *persistence.PostgresDB) sale.Repository {
	return &SaleRepository{
		pool:   db.Pool(),
		logger: logger,
	}
}

// Create stores a new sale. A (source, external_sale_id) duplicate is
// reported as sale.ErrDuplicateSale.
func (r *SaleRepository) Create(ctx context.Context, s *sale.Sale) error {
	query := `
		INSERT INTO sales (id, source, external_sale_id, amount, document_type, document_date, order_status, last_error_message, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.pool.Exec(ctx, query,
		s.ID,
		s.Source,
		s.ExternalSaleID,
		s.Amount,
		s.DocumentType,
		s.DocumentDate,
		s.OrderStatus,
		s.LastErrorMessage,
		s.Version,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return sale.ErrDuplicateSale{Source: s.Source, ExternalSaleID: s.ExternalSaleID}
		}
		r.logger.Error("Failed to create sale", "error", err)
		return fmt.Errorf("failed to create sale: %w", err)
	}

	return nil
}

// Upsert inserts or merges a sale by (source, external_sale_id). Marketplace
// fields are refreshed on conflict, but locally-owned issuance state survives:
// document_id, platform_loaded_at and last_error_message are untouched,
// order_status is frozen once a document is linked or an issuance failure was
// recorded, and document_date is only filled when absent.
func (r *SaleRepository) Upsert(ctx context.Context, s *sale.Sale) error {
	query := `
		INSERT INTO sales (id, source, external_sale_id, amount, document_type, document_date, order_status, last_error_message, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (source, external_sale_id) DO UPDATE SET
			amount = EXCLUDED.amount,
			document_type = EXCLUDED.document_type,
			document_date = COALESCE(sales.document_date, EXCLUDED.document_date),
			order_status = CASE
				WHEN sales.document_id IS NOT NULL OR sales.order_status = 'ERROR' THEN sales.order_status
				ELSE EXCLUDED.order_status
			END,
			version = sales.version + 1,
			updated_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query,
		s.ID,
		s.Source,
		s.ExternalSaleID,
		s.Amount,
		s.DocumentType,
		s.DocumentDate,
		s.OrderStatus,
		s.LastErrorMessage,
		s.Version,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert sale", "source", s.Source, "external_sale_id", s.ExternalSaleID, "error", err)
		return fmt.Errorf("failed to upsert sale: %w", err)
	}

	return nil
}

// GetByID retrieves a sale by its ID
func (r *SaleRepository) GetByID(ctx context.Context, id uuid.UUID) (*sale.Sale, error) {
	query := `
		SELECT ` + saleColumns + `
		FROM sales
		WHERE id = $1
	`

	s, err := scanSaleRow(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sale.ErrSaleNotFound{SaleID: id}
		}
		r.logger.Error("Failed to get sale", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get sale: %w", err)
	}

	return s, nil
}

// GetBySourceExternalID retrieves a sale by its dedup key, returning
// (nil, nil) when no sale matches
func (r *SaleRepository) GetBySourceExternalID(ctx context.Context, source shared.Source, externalSaleID string) (*sale.Sale, error) {
	query := `
		SELECT ` + saleColumns + `
		FROM sales
		WHERE source = $1 AND external_sale_id = $2
	`

	s, err := scanSaleRow(r.pool.QueryRow(ctx, query, source, externalSaleID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Return nil, nil when no sale matches the dedup key
		}
		r.logger.Error("Failed to get sale by external id", "source", source, "external_sale_id", externalSaleID, "error", err)
		return nil, fmt.Errorf("failed to get sale by external id: %w", err)
	}

	return s, nil
}

// sortExpressions maps whitelisted sort fields to SQL expressions. Everything
// else falls back to document_date; sort input never reaches the query raw.
var sortExpressions = map[sale.SortField]string{
	sale.SortByDocumentDate: "document_date",
	sale.SortBySource:       "source",
	sale.SortByOrderStatus:  "order_status",
	sale.SortByDocumentStatus: `CASE
		WHEN platform_loaded_at IS NOT NULL THEN 'LOADED'
		WHEN document_id IS NOT NULL THEN 'ISSUED'
		ELSE 'PENDING_ISSUANCE'
	END`,
}

const (
	defaultPerPage = 30
	maxPerPage     = 100
)

// List returns one page of sales plus the total match count. Ordering is
// tie-broken by id so pages stay stable between requests.
func (r *SaleRepository) List(ctx context.Context, params sale.ListParams) ([]*sale.Sale, int64, error) {
	where, args := buildSaleFilter(params)

	countQuery := `SELECT COUNT(*) FROM sales` + where
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count sales", "error", err)
		return nil, 0, fmt.Errorf("failed to count sales: %w", err)
	}

	sortExpr, ok := sortExpressions[params.SortBy]
	if !ok {
		sortExpr = sortExpressions[sale.SortByDocumentDate]
	}
	// Undated sales float to the top of the default descending view so they
	// are not buried behind the whole dated history
	direction := "DESC NULLS FIRST"
	if params.SortOrder == sale.SortAsc {
		direction = "ASC NULLS LAST"
	}

	page := params.Page
	if page < 1 {
		page = 1
	}
	perPage := params.PerPage
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	query := fmt.Sprintf(`SELECT %s FROM sales%s ORDER BY %s %s, id ASC LIMIT %d OFFSET %d`,
		saleColumns, where, sortExpr, direction, perPage, (page-1)*perPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list sales", "error", err)
		return nil, 0, fmt.Errorf("failed to list sales: %w", err)
	}
	defer rows.Close()

	var sales []*sale.Sale
	for rows.Next() {
		s, err := scanSaleRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan sale row: %w", err)
		}
		sales = append(sales, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate sale rows: %w", err)
	}

	return sales, total, nil
}

// buildSaleFilter translates list params into a WHERE clause with positional args
func buildSaleFilter(params sale.ListParams) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if params.Source != "" {
		args = append(args, params.Source)
		conditions = append(conditions, fmt.Sprintf("source = $%d", len(args)))
	}

	switch params.DocumentStatus {
	case shared.DocumentStatusLoaded:
		conditions = append(conditions, "platform_loaded_at IS NOT NULL")
	case shared.DocumentStatusIssued:
		conditions = append(conditions, "platform_loaded_at IS NULL AND document_id IS NOT NULL")
	case shared.DocumentStatusPendingIssuance:
		conditions = append(conditions, "platform_loaded_at IS NULL AND document_id IS NULL")
	}

	if params.Search != "" {
		args = append(args, "%"+params.Search+"%")
		conditions = append(conditions, fmt.Sprintf("(external_sale_id ILIKE $%d OR id::text ILIKE $%d)", len(args), len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// LinkDocument atomically stores the document and marks the sale issued.
// The UPDATE guard on document_id guarantees exactly one winner under
// concurrency; losers observe sale.ErrDocumentAlreadyLinked.
func (r *SaleRepository) LinkDocument(ctx context.Context, saleID uuid.UUID, doc *sale.Document) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin link transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	claimQuery := `
		UPDATE sales
		SET document_id = $1, order_status = $2, last_error_message = '', version = version + 1, updated_at = NOW()
		WHERE id = $3 AND document_id IS NULL
	`

	result, err := tx.Exec(ctx, claimQuery, doc.ID, shared.OrderStatusSuccess, saleID)
	if err != nil {
		r.logger.Error("Failed to claim sale for document link", "sale_id", saleID.String(), "error", err)
		return fmt.Errorf("failed to claim sale for document link: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Distinguish a missing sale from a lost race
		var existing *uuid.UUID
		err := tx.QueryRow(ctx, `SELECT document_id FROM sales WHERE id = $1`, saleID).Scan(&existing)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return sale.ErrSaleNotFound{SaleID: saleID}
			}
			return fmt.Errorf("failed to inspect sale during document link: %w", err)
		}
		return sale.ErrDocumentAlreadyLinked{SaleID: saleID}
	}

	insertQuery := `
		INSERT INTO documents (id, sale_id, provider_document_id, pdf_url, xml_url, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = tx.Exec(ctx, insertQuery,
		doc.ID,
		doc.SaleID,
		doc.ProviderDocumentID,
		doc.PDFURL,
		doc.XMLURL,
		doc.IssuedAt,
	)
	if err != nil {
		r.logger.Error("Failed to insert document", "sale_id", saleID.String(), "error", err)
		return fmt.Errorf("failed to insert document: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit document link: %w", err)
	}

	return nil
}

// GetDocument returns the sale's linked document, or (nil, nil) when the
// sale has none
func (r *SaleRepository) GetDocument(ctx context.Context, saleID uuid.UUID) (*sale.Document, error) {
	query := `
		SELECT id, sale_id, provider_document_id, pdf_url, xml_url, issued_at
		FROM documents
		WHERE sale_id = $1
	`

	var doc sale.Document
	err := r.pool.QueryRow(ctx, query, saleID).Scan(
		&doc.ID,
		&doc.SaleID,
		&doc.ProviderDocumentID,
		&doc.PDFURL,
		&doc.XMLURL,
		&doc.IssuedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // No document linked yet
		}
		r.logger.Error("Failed to get document", "sale_id", saleID.String(), "error", err)
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return &doc, nil
}

// RecordIssuanceFailure marks the sale errored with the provider message
func (r *SaleRepository) RecordIssuanceFailure(ctx context.Context, saleID uuid.UUID, message string) error {
	query := `
		UPDATE sales
		SET order_status = $1, last_error_message = $2, version = version + 1, updated_at = NOW()
		WHERE id = $3
	`

	result, err := r.pool.Exec(ctx, query, shared.OrderStatusError, message, saleID)
	if err != nil {
		r.logger.Error("Failed to record issuance failure", "sale_id", saleID.String(), "error", err)
		return fmt.Errorf("failed to record issuance failure: %w", err)
	}

	if result.RowsAffected() == 0 {
		return sale.ErrSaleNotFound{SaleID: saleID}
	}

	return nil
}

// MarkPlatformLoaded idempotently flags the sale as already documented on the
// marketplace side. The first call fixes the timestamp; later calls keep it.
func (r *SaleRepository) MarkPlatformLoaded(ctx context.Context, saleID uuid.UUID) error {
	query := `
		UPDATE sales
		SET platform_loaded_at = COALESCE(platform_loaded_at, NOW()), updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, saleID)
	if err != nil {
		r.logger.Error("Failed to mark sale platform loaded", "sale_id", saleID.String(), "error", err)
		return fmt.Errorf("failed to mark sale platform loaded: %w", err)
	}

	if result.RowsAffected() == 0 {
		return sale.ErrSaleNotFound{SaleID: saleID}
	}

	return nil
}

// rowScanner covers both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSaleRow(row rowScanner) (*sale.Sale, error) {
	var s sale.Sale
	err := row.Scan(
		&s.ID,
		&s.Source,
		&s.ExternalSaleID,
		&s.Amount,
		&s.DocumentType,
		&s.DocumentDate,
		&s.OrderStatus,
		&s.LastErrorMessage,
		&s.DocumentID,
		&s.PlatformLoadedAt,
		&s.Version,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
