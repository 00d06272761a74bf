package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for the consent lifecycle.
type Metrics struct {
	ConsentsRequested     *prometheus.CounterVec
	ConsentsGranted       *prometheus.CounterVec
	ConsentsWithdrawn     *prometheus.CounterVec
	ConsentsExpired       *prometheus.CounterVec
	RequestsDiscarded     *prometheus.CounterVec
	VerificationFailures  *prometheus.CounterVec
	GrantLatency          prometheus.Histogram
	StoreOperationLatency *prometheus.HistogramVec

	ScopeLockWait         prometheus.Histogram
	ScopeLockAcquisitions prometheus.Counter
	ScopeLockTimeouts     prometheus.Counter

	SweepDuration prometheus.Histogram
	SweepErrors   prometheus.Counter
}

// New registers and returns consent metrics collectors. Call it once per
// process: promauto registers against the default registry.
func New() *Metrics {
	return &Metrics{
		ConsentsRequested: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "consent_requests_total",
			Help: "Total number of consent requests started, labeled by purpose and method",
		}, []string{"purpose", "method"}),
		ConsentsGranted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "consent_granted_total",
			Help: "Total number of consents granted, labeled by purpose",
		}, []string{"purpose"}),
		ConsentsWithdrawn: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "consent_withdrawn_total",
			Help: "Total number of consents withdrawn, labeled by purpose",
		}, []string{"purpose"}),
		ConsentsExpired: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "consent_expired_total",
			Help: "Total number of consents expired by the sweeper, labeled by purpose",
		}, []string{"purpose"}),
		RequestsDiscarded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "consent_requests_discarded_total",
			Help: "Total number of pending requests discarded, labeled by reason",
		}, []string{"reason"}),
		VerificationFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "consent_verification_failures_total",
			Help: "Total number of failed verification attempts, labeled by method and reason",
		}, []string{"method", "reason"}),
		GrantLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "consent_grant_latency_seconds",
			Help:    "Latency of consent grant operations in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		StoreOperationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "consent_store_operation_latency_seconds",
			Help:    "Latency of consent store operations in seconds",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}, []string{"operation"}),
		ScopeLockWait: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "consent_scope_lock_wait_seconds",
			Help:    "Time spent waiting for a student/purpose scope lock",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}),
		ScopeLockAcquisitions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consent_scope_lock_acquisitions_total",
			Help: "Total scope lock acquisitions",
		}),
		ScopeLockTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consent_scope_lock_timeouts_total",
			Help: "Total scope lock acquisitions abandoned because the context ended",
		}),
		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "consent_sweep_duration_seconds",
			Help:    "Duration of one retention sweep",
			Buckets: prometheus.DefBuckets,
		}),
		SweepErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consent_sweep_errors_total",
			Help: "Total number of sweeps that finished with at least one error",
		}),
	}
}

func (m *Metrics) IncrementRequested(purpose, method string) {
	if m == nil {
		return
	}
	m.ConsentsRequested.WithLabelValues(purpose, method).Inc()
}

func (m *Metrics) IncrementGranted(purpose string) {
	if m == nil {
		return
	}
	m.ConsentsGranted.WithLabelValues(purpose).Inc()
}

func (m *Metrics) IncrementWithdrawn(purpose string) {
	if m == nil {
		return
	}
	m.ConsentsWithdrawn.WithLabelValues(purpose).Inc()
}

func (m *Metrics) IncrementExpired(purpose string) {
	if m == nil {
		return
	}
	m.ConsentsExpired.WithLabelValues(purpose).Inc()
}

func (m *Metrics) IncrementDiscarded(reason string) {
	if m == nil {
		return
	}
	m.RequestsDiscarded.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementVerificationFailure(method, reason string) {
	if m == nil {
		return
	}
	m.VerificationFailures.WithLabelValues(method, reason).Inc()
}

func (m *Metrics) ObserveGrantLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.GrantLatency.Observe(d.Seconds())
}

func (m *Metrics) ObserveStoreOperation(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.StoreOperationLatency.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) ObserveLockWait(d time.Duration) {
	if m == nil {
		return
	}
	m.ScopeLockWait.Observe(d.Seconds())
	m.ScopeLockAcquisitions.Inc()
}

func (m *Metrics) IncrementLockTimeout() {
	if m == nil {
		return
	}
	m.ScopeLockTimeouts.Inc()
}

func (m *Metrics) ObserveSweep(d time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.SweepDuration.Observe(d.Seconds())
	if failed {
		m.SweepErrors.Inc()
	}
}
