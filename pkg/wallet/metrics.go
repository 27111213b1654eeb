package wallet

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// BalanceFetchErrorsTotal tracks failed token balance reads.
	BalanceFetchErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mm_oracle_wallet_balance_fetch_errors_total",
		Help: "Total number of failed token balance reads",
	})

	// BalanceFetchDuration tracks the time taken to read token balances.
	BalanceFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mm_oracle_wallet_balance_fetch_duration_seconds",
		Help:    "Time taken to read token balances (seconds)",
		Buckets: prometheus.DefBuckets,
	})
)
