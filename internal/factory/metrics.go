package factory

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// PreloadsTotal counts market preloads by outcome.
	PreloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_oracle_markets_preloads_total",
		Help: "Total number of market preloads by exchange and outcome",
	}, []string{"exchange", "outcome"})

	// PreloadDuration tracks how long one exchange's preload takes.
	PreloadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mm_oracle_markets_preload_duration_seconds",
		Help:    "Time taken to preload markets of one exchange",
		Buckets: prometheus.DefBuckets,
	}, []string{"exchange"})

	// PreloadedMarkets is the size of the latest snapshot per exchange.
	PreloadedMarkets = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mm_oracle_markets_preloaded",
		Help: "Number of markets in the latest snapshot",
	}, []string{"exchange"})
)
