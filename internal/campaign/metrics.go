package campaign

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// DocumentsFetchedTotal counts manifest and results retrievals by outcome.
	DocumentsFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_oracle_campaign_documents_fetched_total",
		Help: "Total number of campaign documents retrieved by kind and outcome",
	}, []string{"kind", "outcome"})
)

func recordFetch(kind string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	DocumentsFetchedTotal.WithLabelValues(kind, outcome).Inc()
}
