package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BreakerState tracks the state per breaker (0=closed, 1=half-open, 2=open).
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mm_oracle_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
	}, []string{"breaker"})

	// BreakerStateChanges tracks transitions by target state.
	BreakerStateChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_oracle_circuit_breaker_state_changes_total",
		Help: "Total number of circuit breaker state transitions",
	}, []string{"breaker", "to"})

	// BreakerRejectionsTotal tracks calls rejected without reaching the exchange.
	BreakerRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_oracle_circuit_breaker_rejections_total",
		Help: "Total number of calls rejected by an open circuit breaker",
	}, []string{"breaker"})
)
