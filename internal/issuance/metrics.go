package issuance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	batchItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "issuance_batch_items_total",
		Help: "Total batch issuance items by outcome",
	}, []string{"outcome"})

	documentsIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "issuance_documents_issued_total",
		Help: "Total fiscal documents issued, by sale source",
	}, []string{"source"})

	providerCallDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "issuance_provider_call_duration_seconds",
		Help:    "Latency of billing provider issuance calls",
		Buckets: prometheus.DefBuckets,
	})
)

const (
	outcomeIssued  = "issued"
	outcomeFailed  = "failed"
	outcomeSkipped = "skipped"
	outcomeInvalid = "invalid"
)
