package metrics

import "github.com/prometheus/client_golang/prometheus"

// GatewayMetrics exposes counters/histograms for the routing gateway.
type GatewayMetrics struct {
	requestsTotal   *prometheus.CounterVec
	blockedTotal    *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	fallbackDepth   prometheus.Histogram
}

func NewGatewayMetrics(reg prometheus.Registerer) *GatewayMetrics {
	m := &GatewayMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "legalai",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Completion attempts by provider, sensitivity tier, and outcome",
		}, []string{"provider", "tier", "outcome"}),
		blockedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "legalai",
			Subsystem: "gateway",
			Name:      "blocked_total",
			Help:      "Requests stopped by the anonymization gate, by stage",
		}, []string{"stage"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "legalai",
			Subsystem: "gateway",
			Name:      "provider_latency_seconds",
			Help:      "Latency of provider completion calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		fallbackDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "legalai",
			Subsystem: "gateway",
			Name:      "fallback_depth",
			Help:      "How many candidates were attempted before a request resolved",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.blockedTotal, m.providerLatency, m.fallbackDepth)
	return m
}

func (m *GatewayMetrics) ObserveRequest(providerName, tier, outcome string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(providerName, tier, outcome).Inc()
}

func (m *GatewayMetrics) ObserveBlocked(stage string) {
	if m == nil {
		return
	}
	m.blockedTotal.WithLabelValues(stage).Inc()
}

func (m *GatewayMetrics) ObserveProviderLatency(providerName string, seconds float64) {
	if m == nil {
		return
	}
	m.providerLatency.WithLabelValues(providerName).Observe(seconds)
}

func (m *GatewayMetrics) ObserveFallbackDepth(attempts int) {
	if m == nil {
		return
	}
	m.fallbackDepth.Observe(float64(attempts))
}
