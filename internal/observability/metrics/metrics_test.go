package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestGatewayMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewGatewayMetrics(reg)
	m.ObserveRequest("mistral-eu", "sensitive", "success")
	m.ObserveRequest("openai", "public", "cache_hit")
	m.ObserveBlocked("verify")
	m.ObserveProviderLatency("mistral-eu", 0.42)
	m.ObserveFallbackDepth(2)
}

func TestGatewayMetricsNilSafe(t *testing.T) {
	var m *GatewayMetrics
	m.ObserveRequest("p", "tier", "outcome")
	m.ObserveBlocked("anonymize")
	m.ObserveProviderLatency("p", 0.1)
	m.ObserveFallbackDepth(1)
}
