package credentials

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// EnrollmentsTotal counts key enrollments by outcome (stored, unauthorized, error).
	EnrollmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_oracle_credentials_enrollments_total",
		Help: "Total number of API key enrollments by exchange and outcome",
	}, []string{"exchange", "outcome"})

	// InvalidationsTotal counts keys marked invalid after a failed call.
	InvalidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_oracle_credentials_invalidations_total",
		Help: "Total number of API keys marked invalid",
	}, []string{"exchange"})
)
