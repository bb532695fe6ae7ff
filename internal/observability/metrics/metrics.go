package metrics

import "github.com/prometheus/client_golang/prometheus"

// BridgeMetrics exposes counters/histograms for the WhatsApp bridge flows.
type BridgeMetrics struct {
	inboundTotal   *prometheus.CounterVec
	outboundTotal  *prometheus.CounterVec
	closuresTotal  *prometheus.CounterVec
	crmFallbacks   prometheus.Counter
	webhookLatency *prometheus.HistogramVec
}

func NewBridgeMetrics(reg prometheus.Registerer) *BridgeMetrics {
	m := &BridgeMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wefixico",
			Subsystem: "whatsapp",
			Name:      "inbound_total",
			Help:      "Total inbound WhatsApp webhook messages",
		}, []string{"status"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wefixico",
			Subsystem: "whatsapp",
			Name:      "outbound_total",
			Help:      "Total outbound WhatsApp messages stored",
		}, []string{"status"}),
		closuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wefixico",
			Subsystem: "whatsapp",
			Name:      "conversation_closures_total",
			Help:      "Total conversations archived and closed",
		}, []string{"reason"}),
		crmFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wefixico",
			Subsystem: "crm",
			Name:      "fallback_total",
			Help:      "Total CRM requests served by the local fallback",
		}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wefixico",
			Subsystem: "whatsapp",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.outboundTotal, m.closuresTotal, m.crmFallbacks, m.webhookLatency)
	return m
}

func (m *BridgeMetrics) ObserveInbound(status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(status).Inc()
}

func (m *BridgeMetrics) ObserveOutbound(status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(status).Inc()
}

func (m *BridgeMetrics) ObserveClosure(reason string) {
	if m == nil {
		return
	}
	m.closuresTotal.WithLabelValues(reason).Inc()
}

func (m *BridgeMetrics) ObserveCRMFallback() {
	if m == nil {
		return
	}
	m.crmFallbacks.Inc()
}

func (m *BridgeMetrics) ObserveWebhookLatency(route string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(route).Observe(seconds)
}
