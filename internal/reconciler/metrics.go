package reconciler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pullsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciler_pulls_total",
		Help: "Total reconciliation pulls by source and result",
	}, []string{"source", "result"})

	ordersUpsertedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciler_orders_upserted_total",
		Help: "Total marketplace orders upserted into the ledger",
	}, []string{"source"})

	salesMarkedLoadedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciler_sales_marked_loaded_total",
		Help: "Total sales flagged as already documented on the marketplace",
	}, []string{"source"})

	pullDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reconciler_pull_duration_seconds",
		Help:    "Duration of one source's reconciliation pull",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})
)

const (
	resultSuccess = "success"
	resultPartial = "partial"
	resultError   = "error"
)
