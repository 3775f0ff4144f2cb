package metrics

import "github.com/prometheus/client_golang/prometheus"

// LeadMetrics exposes counters/histograms for the lead capture pipeline.
type LeadMetrics struct {
	submissionsTotal *prometheus.CounterVec
	retrievalsTotal  *prometheus.CounterVec
	storeLatency     *prometheus.HistogramVec
}

func NewLeadMetrics(reg prometheus.Registerer) *LeadMetrics {
	m := &LeadMetrics{
		submissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadcapture",
			Subsystem: "api",
			Name:      "submissions_total",
			Help:      "Total lead submissions by pipeline outcome",
		}, []string{"outcome"}),
		retrievalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadcapture",
			Subsystem: "api",
			Name:      "retrievals_total",
			Help:      "Total lead retrieval requests",
		}, []string{"status", "format"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "leadcapture",
			Subsystem: "store",
			Name:      "operation_latency_seconds",
			Help:      "Latency of lead store operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.submissionsTotal, m.retrievalsTotal, m.storeLatency)
	return m
}

func (m *LeadMetrics) ObserveSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(outcome).Inc()
}

func (m *LeadMetrics) ObserveRetrieval(status, format string) {
	if m == nil {
		return
	}
	m.retrievalsTotal.WithLabelValues(status, format).Inc()
}

func (m *LeadMetrics) ObserveStoreLatency(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.storeLatency.WithLabelValues(operation).Observe(seconds)
}
