// Package reconciler mirrors marketplace orders into the sale ledger on a
// fixed interval. Each source is pulled independently; one marketplace being
// down never blocks the others.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/ventasync-reconciler/internal/config"
	"github.com/ventasync-reconciler/internal/connectors/marketplace"
	"github.com/ventasync-reconciler/internal/domain/sale"
	"github.com/ventasync-reconciler/internal/domain/shared"
	"github.com/ventasync-reconciler/internal/domain/watermark"
)

// PullReport summarizes one source's reconciliation pull
type PullReport struct {
	Source       shared.Source `json:"source"`
	Pulled       int           `json:"pulled"`
	Upserted     int           `json:"upserted"`
	MarkedLoaded int           `json:"marked_loaded"`
	Failed       int           `json:"failed"`
	Error        string        `json:"error,omitempty"`
}

// Engine pulls orders from every registered marketplace connector and upserts
// them into the ledger, advancing a per-source watermark on success
type Engine struct {
	logger      *slog.Logger
	connectors  []marketplace.Connector
	sales       sale.Repository
	watermarks  watermark.Repository
	pool        *ants.Pool
	interval    time.Duration
	lookback    time.Duration
	pullTimeout time.Duration
	pageSize    int
	now         func() time.Time
}

// NewEngine creates a reconciliation engine backed by a shared worker pool
func NewEngine(
	logger *slog.Logger,
	cfg *config.ReconcilerConfig,
	connectors []marketplace.Connector,
	sales sale.Repository,
	watermarks watermark.Repository,
	pool *ants.Pool,
) *Engine {
	return &Engine{
		logger:      logger,
		connectors:  connectors,
		sales:       sales,
		watermarks:  watermarks,
		pool:        pool,
		interval:    cfg.Interval,
		lookback:    cfg.Lookback,
		pullTimeout: cfg.PullTimeout,
		pageSize:    cfg.PageSize,
		now:         time.Now,
	}
}

// Start runs an immediate pull cycle, then keeps pulling on the configured
// interval until the context is canceled
func (e *Engine) Start(ctx context.Context) {
	e.logger.Info("Starting reconciliation engine",
		"interval", e.interval.String(),
		"lookback", e.lookback.String(),
		"sources", len(e.connectors),
	)

	e.RunOnce(ctx)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Reconciliation engine stopping due to context cancellation.")
			return
		case <-ticker.C:
			e.logger.Debug("Reconciliation tick: pulling all sources")
			e.RunOnce(ctx)
		}
	}
}

// RunOnce pulls every source concurrently and returns one report per source.
// Reports come back in registration order regardless of completion order.
func (e *Engine) RunOnce(ctx context.Context) []PullReport {
	reports := make([]PullReport, len(e.connectors))

	var wg sync.WaitGroup
	for i, conn := range e.connectors {
		i, conn := i, conn
		wg.Add(1)
		err := e.pool.Submit(func() {
			defer wg.Done()
			reports[i] = e.pullSource(ctx, conn)
		})
		if err != nil {
			wg.Done()
			e.logger.Error("Failed to submit pull to worker pool", "source", conn.Source(), "error", err)
			reports[i] = PullReport{Source: conn.Source(), Error: err.Error()}
			pullsTotal.WithLabelValues(string(conn.Source()), resultError).Inc()
		}
	}
	wg.Wait()

	return reports
}

// pullSource runs one source's pull to completion. The watermark only moves
// when every order in the window was applied, so a partial failure is retried
// on the next cycle.
func (e *Engine) pullSource(ctx context.Context, conn marketplace.Connector) PullReport {
	source := conn.Source()
	logger := e.logger.With("source", source)
	report := PullReport{Source: source}

	since, err := e.sinceFor(ctx, source)
	if err != nil {
		logger.Error("Failed to load sync watermark", "error", err)
		report.Error = err.Error()
		pullsTotal.WithLabelValues(string(source), resultError).Inc()
		return report
	}

	// The watermark target is fixed before the pull so orders created while
	// the pull runs fall into the next window
	pulledAt := e.now()

	pullCtx, cancel := context.WithTimeout(ctx, e.pullTimeout)
	defer cancel()

	start := time.Now()
	orders, err := conn.PullOrders(pullCtx, since, e.pageSize)
	pullDuration.WithLabelValues(string(source)).Observe(time.Since(start).Seconds())
	if err != nil {
		logger.Error("Marketplace pull failed", "since", since, "error", err)
		report.Error = err.Error()
		pullsTotal.WithLabelValues(string(source), resultError).Inc()
		return report
	}

	report.Pulled = len(orders)
	logger.Info("Pulled marketplace orders", "since", since, "count", len(orders))

	for _, order := range orders {
		if err := e.applyOrder(ctx, source, order); err != nil {
			logger.Error("Failed to apply order", "external_sale_id", order.ExternalSaleID, "error", err)
			report.Failed++
			continue
		}
		report.Upserted++
		ordersUpsertedTotal.WithLabelValues(string(source)).Inc()
		if order.DocumentUploaded {
			report.MarkedLoaded++
			salesMarkedLoadedTotal.WithLabelValues(string(source)).Inc()
		}
	}

	if report.Failed > 0 {
		// Leave the watermark so the next cycle retries the same window;
		// upserts are idempotent so reprocessing is safe
		logger.Warn("Pull applied partially, watermark not advanced", "failed", report.Failed)
		pullsTotal.WithLabelValues(string(source), resultPartial).Inc()
		return report
	}

	if err := e.watermarks.Advance(ctx, source, pulledAt); err != nil {
		logger.Error("Failed to advance sync watermark", "error", err)
		report.Error = err.Error()
		pullsTotal.WithLabelValues(string(source), resultError).Inc()
		return report
	}

	pullsTotal.WithLabelValues(string(source), resultSuccess).Inc()
	return report
}

// sinceFor returns the pull window start: the stored watermark, or the
// configured lookback on a source's first pull
func (e *Engine) sinceFor(ctx context.Context, source shared.Source) (time.Time, error) {
	wm, err := e.watermarks.Get(ctx, source)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get watermark: %w", err)
	}
	if wm == nil {
		return e.now().Add(-e.lookback), nil
	}
	return wm.LastPulledAt, nil
}

// applyOrder upserts one order and propagates the platform document flag
func (e *Engine) applyOrder(ctx context.Context, source shared.Source, order marketplace.Order) error {
	s, err := sale.NewSale(source, order.ExternalSaleID, order.Amount, order.DocumentType, order.OrderDate)
	if err != nil {
		return fmt.Errorf("invalid order: %w", err)
	}

	if err := e.sales.Upsert(ctx, s); err != nil {
		return err
	}

	if !order.DocumentUploaded {
		return nil
	}

	// Upsert may have merged into an existing row, so resolve the canonical id
	current, err := e.sales.GetBySourceExternalID(ctx, source, order.ExternalSaleID)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("sale vanished after upsert: %s/%s", source, order.ExternalSaleID)
	}
	return e.sales.MarkPlatformLoaded(ctx, current.ID)
}
