package metrics

import "github.com/prometheus/client_golang/prometheus"

// BridgeMetrics exposes counters/histograms for the webhook bridge.
type BridgeMetrics struct {
	inboundTotal        *prometheus.CounterVec
	replyTotal          *prometheus.CounterVec
	webhookLatency      *prometheus.HistogramVec
	collaboratorLatency *prometheus.HistogramVec
}

// NewBridgeMetrics registers the bridge collectors on reg, or on the default
// registerer when reg is nil.
func NewBridgeMetrics(reg prometheus.Registerer) *BridgeMetrics {
	m := &BridgeMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bridge",
			Subsystem: "webhook",
			Name:      "inbound_total",
			Help:      "Total inbound gateway webhooks",
		}, []string{"outcome"}),
		replyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bridge",
			Subsystem: "webhook",
			Name:      "reply_total",
			Help:      "Total replies rendered, by message kind and wire format",
		}, []string{"kind", "format"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bridge",
			Subsystem: "webhook",
			Name:      "latency_seconds",
			Help:      "Latency of inbound webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		collaboratorLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bridge",
			Subsystem: "assistant",
			Name:      "request_seconds",
			Help:      "Latency of conversational assistant calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.replyTotal, m.webhookLatency, m.collaboratorLatency)
	return m
}

// ObserveInbound counts a webhook and records its processing time.
func (m *BridgeMetrics) ObserveInbound(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(outcome).Inc()
	m.webhookLatency.WithLabelValues(outcome).Observe(seconds)
}

// ObserveReply counts a rendered reply.
func (m *BridgeMetrics) ObserveReply(kind, format string) {
	if m == nil {
		return
	}
	m.replyTotal.WithLabelValues(kind, format).Inc()
}

// ObserveCollaborator records one assistant call.
func (m *BridgeMetrics) ObserveCollaborator(provider, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.collaboratorLatency.WithLabelValues(provider, outcome).Observe(seconds)
}
