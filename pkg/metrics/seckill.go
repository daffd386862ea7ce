package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SeckillMetrics records admission outcomes and persistence behavior.
type SeckillMetrics struct {
	admissions      *prometheus.CounterVec
	persistDuration prometheus.Histogram
	persistFailures prometheus.Counter
	recoverySweeps  prometheus.Counter
}

// NewSeckillMetrics registers the flash-sale metrics on the provided registerer.
func NewSeckillMetrics(reg prometheus.Registerer) *SeckillMetrics {
	if reg == nil {
		return &SeckillMetrics{}
	}
	admissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "seckill_admissions_total",
		Help: "Admission attempts by outcome.",
	}, []string{"result"})
	persistDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "seckill_persist_duration_seconds",
		Help:    "Duration of durable order persistence.",
		Buckets: prometheus.DefBuckets,
	})
	persistFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "seckill_persist_failures_total",
		Help: "Order persistence attempts that returned an error.",
	})
	recoverySweeps := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "seckill_recovery_sweeps_total",
		Help: "Pending-list recovery sweeps run by the order consumer.",
	})
	reg.MustRegister(admissions, persistDuration, persistFailures, recoverySweeps)
	return &SeckillMetrics{
		admissions:      admissions,
		persistDuration: persistDuration,
		persistFailures: persistFailures,
		recoverySweeps:  recoverySweeps,
	}
}

// IncAdmission counts an admission attempt by outcome label.
func (m *SeckillMetrics) IncAdmission(result string) {
	if m == nil || m.admissions == nil {
		return
	}
	if result == "" {
		result = "unknown"
	}
	m.admissions.WithLabelValues(result).Inc()
}

// ObservePersistDuration records how long a durable write took.
func (m *SeckillMetrics) ObservePersistDuration(d time.Duration) {
	if m == nil || m.persistDuration == nil {
		return
	}
	m.persistDuration.Observe(d.Seconds())
}

// IncPersistFailure counts a failed persistence attempt.
func (m *SeckillMetrics) IncPersistFailure() {
	if m == nil || m.persistFailures == nil {
		return
	}
	m.persistFailures.Inc()
}

// IncRecoverySweep counts one pending-list sweep.
func (m *SeckillMetrics) IncRecoverySweep() {
	if m == nil || m.recoverySweeps == nil {
		return
	}
	m.recoverySweeps.Inc()
}
