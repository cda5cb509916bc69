package metrics

import "github.com/prometheus/client_golang/prometheus"

// CallMetrics exposes counters/histograms for the calling engine.
type CallMetrics struct {
	callsStarted   prometheus.Counter
	callsEnded     *prometheus.CounterVec
	turnsTotal     *prometheus.CounterVec
	campaignDials  *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
}

func NewCallMetrics(reg prometheus.Registerer) *CallMetrics {
	m := &CallMetrics{
		callsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "salescoach",
			Subsystem: "calling",
			Name:      "calls_started_total",
			Help:      "Total answered calls with a live session",
		}),
		callsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salescoach",
			Subsystem: "calling",
			Name:      "calls_ended_total",
			Help:      "Total finalized calls by terminal status",
		}, []string{"status"}),
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salescoach",
			Subsystem: "calling",
			Name:      "turns_total",
			Help:      "Total processed speech turns by result",
		}, []string{"result"}),
		campaignDials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salescoach",
			Subsystem: "campaign",
			Name:      "dials_total",
			Help:      "Total campaign dial attempts by outcome",
		}, []string{"outcome"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "salescoach",
			Subsystem: "calling",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of Twilio webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.callsStarted, m.callsEnded, m.turnsTotal, m.campaignDials, m.webhookLatency)
	return m
}

func (m *CallMetrics) ObserveCallStarted() {
	if m == nil {
		return
	}
	m.callsStarted.Inc()
}

func (m *CallMetrics) ObserveCallEnded(status string) {
	if m == nil {
		return
	}
	m.callsEnded.WithLabelValues(status).Inc()
}

func (m *CallMetrics) ObserveTurn(result string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(result).Inc()
}

func (m *CallMetrics) ObserveCampaignDial(outcome string) {
	if m == nil {
		return
	}
	m.campaignDials.WithLabelValues(outcome).Inc()
}

func (m *CallMetrics) ObserveWebhookLatency(endpoint string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(endpoint).Observe(seconds)
}
