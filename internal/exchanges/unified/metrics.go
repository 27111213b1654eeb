package unified

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// RequestDuration tracks exchange REST latency by endpoint.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mm_oracle_exchange_request_duration_seconds",
		Help:    "Exchange REST request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"exchange", "endpoint"})

	// RequestErrorsTotal counts failed exchange requests by error kind.
	RequestErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_oracle_exchange_request_errors_total",
		Help: "Total number of failed exchange REST requests by error kind",
	}, []string{"exchange", "kind"})
)
