package throttle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for throttled classes.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	admissions  *prometheus.CounterVec
	blocked     *prometheus.CounterVec
	canceled    *prometheus.CounterVec
	waitSeconds *prometheus.HistogramVec
	historySize *prometheus.GaugeVec
}

// NewMetrics creates throttle metrics registered with reg.
// Passing nil registers with prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		admissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "throttle_admissions_total",
				Help: "Total number of admitted requests",
			},
			[]string{"class"},
		),

		blocked: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "throttle_blocked_total",
				Help: "Total number of retry sleeps caused by a full window",
			},
			[]string{"class"},
		),

		canceled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "throttle_canceled_total",
				Help: "Total number of admissions abandoned because the context ended",
			},
			[]string{"class"},
		),

		waitSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "throttle_wait_seconds",
				Help:    "Time spent waiting for admission in seconds",
				Buckets: []float64{0, 0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 300},
			},
			[]string{"class"},
		),

		historySize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "throttle_history_size",
				Help: "Number of requests currently counted in the window",
			},
			[]string{"class"},
		),
	}
}

// RecordAdmission records a granted admission.
func (m *Metrics) RecordAdmission(class string, waitSeconds float64, historySize int) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(class).Inc()
	m.waitSeconds.WithLabelValues(class).Observe(waitSeconds)
	m.historySize.WithLabelValues(class).Set(float64(historySize))
}

// RecordBlocked records one retry sleep.
func (m *Metrics) RecordBlocked(class string) {
	if m == nil {
		return
	}
	m.blocked.WithLabelValues(class).Inc()
}

// RecordCanceled records an admission abandoned by its caller.
func (m *Metrics) RecordCanceled(class string) {
	if m == nil {
		return
	}
	m.canceled.WithLabelValues(class).Inc()
}

// UpdateHistorySize sets the current window occupancy for class.
func (m *Metrics) UpdateHistorySize(class string, size int) {
	if m == nil {
		return
	}
	m.historySize.WithLabelValues(class).Set(float64(size))
}
