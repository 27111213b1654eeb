package exchanges

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// TradesFetchedTotal counts trades yielded to callers.
	TradesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_oracle_exchange_trades_fetched_total",
		Help: "Total number of trades yielded by exchange clients",
	}, []string{"exchange"})

	// TradePagesTotal counts page fetches issued by trade iterators.
	TradePagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_oracle_exchange_trade_pages_total",
		Help: "Total number of trade pages requested from exchanges",
	}, []string{"exchange"})

	// AccessErrorsTotal counts calls reclassified as access errors.
	AccessErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_oracle_exchange_access_errors_total",
		Help: "Total number of exchange calls rejected for missing access",
	}, []string{"exchange", "permission"})

	// AccessChecksTotal counts access checks by outcome (success, missing, error).
	AccessChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_oracle_exchange_access_checks_total",
		Help: "Total number of API key access checks by outcome",
	}, []string{"exchange", "outcome"})
)
