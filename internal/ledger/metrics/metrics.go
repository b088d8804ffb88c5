// Package metrics provides Prometheus metrics for ledger calls and the anchor
// record cache.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is nil-safe: every recorder is a no-op on a nil receiver.
type Metrics struct {
	CallsTotal       *prometheus.CounterVec   // ledger calls by operation and outcome code
	CallDuration     *prometheus.HistogramVec // ledger call latency by operation
	AnchorGasUsed    prometheus.Histogram
	CacheHitsTotal   *prometheus.CounterVec // by level (l1, l2)
	CacheMissesTotal prometheus.Counter
	ReceiptsTimedOut prometheus.Counter
}

// New registers the ledger metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CallsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "certledger_ledger_calls_total",
			Help: "Total number of ledger calls by operation and outcome",
		}, []string{"operation", "outcome"}),

		CallDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "certledger_ledger_call_duration_seconds",
			Help:    "Duration of ledger calls by operation",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 30, 60},
		}, []string{"operation"}),

		AnchorGasUsed: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "certledger_ledger_anchor_gas_used",
			Help:    "Gas used by confirmed anchoring transactions",
			Buckets: prometheus.ExponentialBuckets(50_000, 2, 8),
		}),

		CacheHitsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "certledger_ledger_record_cache_hits_total",
			Help: "Total number of anchor record cache hits by level",
		}, []string{"level"}),

		CacheMissesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "certledger_ledger_record_cache_misses_total",
			Help: "Total number of anchor record cache misses",
		}),

		ReceiptsTimedOut: f.NewCounter(prometheus.CounterOpts{
			Name: "certledger_ledger_receipts_timed_out_total",
			Help: "Submitted anchoring transactions whose receipt was not observed in time",
		}),
	}
}

// ObserveCall records one ledger call and its outcome code ("ok" on success).
func (m *Metrics) ObserveCall(operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.CallsTotal.WithLabelValues(operation, outcome).Inc()
	m.CallDuration.WithLabelValues(operation).Observe(seconds)
}

func (m *Metrics) ObserveGasUsed(gas uint64) {
	if m == nil {
		return
	}
	m.AnchorGasUsed.Observe(float64(gas))
}

func (m *Metrics) RecordCacheHit(level string) {
	if m == nil {
		return
	}
	m.CacheHitsTotal.WithLabelValues(level).Inc()
}

func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.CacheMissesTotal.Inc()
}

func (m *Metrics) RecordReceiptTimeout() {
	if m == nil {
		return
	}
	m.ReceiptsTimedOut.Inc()
}
