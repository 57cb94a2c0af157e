package remote

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PoolMetrics exposes pool activity to Prometheus. All methods are safe
// on a nil receiver so pools can run unmetered.
type PoolMetrics struct {
	sessionsDialed prometheus.Counter
	dialErrors     prometheus.Counter
	inUse          prometheus.Gauge
	acquires       prometheus.Counter
}

// NewPoolMetrics registers pool metrics on reg. The host label tells
// pools of different servers apart.
func NewPoolMetrics(reg prometheus.Registerer, host string) *PoolMetrics {
	labels := prometheus.Labels{"host": host}
	m := &PoolMetrics{
		sessionsDialed: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "sftpfs_pool_sessions_dialed_total",
			Help:        "Sessions dialed by the pool.",
			ConstLabels: labels,
		}),
		dialErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "sftpfs_pool_dial_errors_total",
			Help:        "Failed session dials.",
			ConstLabels: labels,
		}),
		inUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "sftpfs_pool_sessions_in_use",
			Help:        "Sessions currently handed out.",
			ConstLabels: labels,
		}),
		acquires: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "sftpfs_pool_acquires_total",
			Help:        "Successful session acquisitions.",
			ConstLabels: labels,
		}),
	}
	reg.MustRegister(m.sessionsDialed, m.dialErrors, m.inUse, m.acquires)
	return m
}

func (m *PoolMetrics) dialed() {
	if m != nil {
		m.sessionsDialed.Inc()
	}
}

func (m *PoolMetrics) dialError() {
	if m != nil {
		m.dialErrors.Inc()
	}
}

func (m *PoolMetrics) acquired() {
	if m != nil {
		m.acquires.Inc()
		m.inUse.Inc()
	}
}

func (m *PoolMetrics) released() {
	if m != nil {
		m.inUse.Dec()
	}
}
