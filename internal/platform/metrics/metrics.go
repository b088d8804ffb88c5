package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service-level Prometheus metrics. Every method is a no-op
// on a nil receiver so services can run without metrics in tests.
type Metrics struct {
	// Credential metrics
	CredentialsIssued  prometheus.Counter
	CredentialsDeleted prometheus.Counter
	AnchorOutcomes     *prometheus.CounterVec
	AnchorLatency      prometheus.Histogram
	EventPublishFailed *prometheus.CounterVec

	// Reconciler metrics
	ReconcileOutcomes *prometheus.CounterVec
	PendingBacklog    prometheus.Gauge

	// Verification metrics
	VerificationAttempts  *prometheus.CounterVec
	AttemptAppendFailures prometheus.Counter
	VerificationLatency   prometheus.Histogram
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CredentialsIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "certledger_credentials_issued_total",
			Help: "Total number of credentials issued",
		}),
		CredentialsDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "certledger_credentials_deleted_total",
			Help: "Total number of unanchored credentials deleted",
		}),
		AnchorOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "certledger_anchor_requests_total",
			Help: "Anchoring requests by outcome (anchored, pending, failed, rejected)",
		}, []string{"outcome"}),
		AnchorLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "certledger_anchor_duration_seconds",
			Help:    "End-to-end latency of anchoring requests that reached the ledger",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}),
		EventPublishFailed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "certledger_event_publish_failures_total",
			Help: "Credential events that could not be published, by event type",
		}, []string{"type"}),
		ReconcileOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "certledger_reconcile_outcomes_total",
			Help: "Pending credentials examined by the reconciler, by outcome",
		}, []string{"outcome"}),
		PendingBacklog: f.NewGauge(prometheus.GaugeOpts{
			Name: "certledger_pending_backlog",
			Help: "Pending credentials seen by the last reconciler sweep",
		}),
		VerificationAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "certledger_verification_attempts_total",
			Help: "Verification attempts by result and ledger cross-check outcome",
		}, []string{"result", "cross_check"}),
		AttemptAppendFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "certledger_verification_history_append_failures_total",
			Help: "Verification attempts that could not be written to history",
		}),
		VerificationLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "certledger_verification_duration_seconds",
			Help:    "Latency of verification requests",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncrementCredentialsIssued() {
	if m == nil {
		return
	}
	m.CredentialsIssued.Inc()
}

func (m *Metrics) IncrementCredentialsDeleted() {
	if m == nil {
		return
	}
	m.CredentialsDeleted.Inc()
}

func (m *Metrics) IncrementAnchorOutcome(outcome string) {
	if m == nil {
		return
	}
	m.AnchorOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveAnchorLatency(seconds float64) {
	if m == nil {
		return
	}
	m.AnchorLatency.Observe(seconds)
}

func (m *Metrics) IncrementEventPublishFailed(eventType string) {
	if m == nil {
		return
	}
	m.EventPublishFailed.WithLabelValues(eventType).Inc()
}

func (m *Metrics) IncrementReconcileOutcome(outcome string) {
	if m == nil {
		return
	}
	m.ReconcileOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetPendingBacklog(n int) {
	if m == nil {
		return
	}
	m.PendingBacklog.Set(float64(n))
}

func (m *Metrics) IncrementVerificationAttempt(result, crossCheck string) {
	if m == nil {
		return
	}
	m.VerificationAttempts.WithLabelValues(result, crossCheck).Inc()
}

func (m *Metrics) IncrementAttemptAppendFailures() {
	if m == nil {
		return
	}
	m.AttemptAppendFailures.Inc()
}

func (m *Metrics) ObserveVerificationLatency(seconds float64) {
	if m == nil {
		return
	}
	m.VerificationLatency.Observe(seconds)
}
