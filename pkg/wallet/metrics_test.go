package wallet

import (
	"testing"
)

// TestMetrics_Registration tests all metrics are initialized
func TestMetrics_Registration(t *testing.T) {
	if BalanceFetchErrorsTotal == nil {
		t.Error("BalanceFetchErrorsTotal not registered")
	}

	if BalanceFetchDuration == nil {
		t.Error("BalanceFetchDuration not registered")
	}
}

// TestMetrics_Observe tests the metrics accept values
func TestMetrics_Observe(t *testing.T) {
	BalanceFetchErrorsTotal.Inc()
	BalanceFetchDuration.Observe(0.5)
}
