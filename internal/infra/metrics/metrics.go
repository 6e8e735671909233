// Package metrics exposes Prometheus collectors for notification runs.
package metrics

import (
	"time"

	"subscription_notifier/internal/app"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "notifier"

// Metrics records the outcome of each notification cycle.
type Metrics struct {
	materialized prometheus.Counter
	sent         prometheus.Counter
	failed       *prometheus.CounterVec
	runDuration  prometheus.Histogram
	lastRun      prometheus.Gauge
}

// MustNewMetrics constructs and registers the collectors on reg. Registration
// errors panic, like the promauto helpers.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		materialized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_materialized_total",
			Help:      "Notification events created by the detection phase.",
		}),
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Notification events delivered and marked sent.",
		}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_failed_total",
			Help:      "Items that failed, by run phase.",
		}, []string{"phase"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a full notification cycle.",
			Buckets:   prometheus.DefBuckets,
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time at which the last cycle finished.",
		}),
	}
	reg.MustRegister(m.materialized, m.sent, m.failed, m.runDuration, m.lastRun)
	return m
}

// ObserveRun implements app.RunRecorder.
func (m *Metrics) ObserveRun(result app.CycleResult, elapsed time.Duration) {
	m.materialized.Add(float64(result.Detection.Sent))
	m.sent.Add(float64(result.Sending.Sent))
	m.failed.WithLabelValues("detection").Add(float64(result.Detection.Failed))
	m.failed.WithLabelValues("sending").Add(float64(result.Sending.Failed))
	m.runDuration.Observe(elapsed.Seconds())
	m.lastRun.SetToCurrentTime()
}

var _ app.RunRecorder = (*Metrics)(nil)
