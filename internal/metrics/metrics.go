// Package metrics holds the Prometheus collectors of the cataloger.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bookmarkcat"

// Metrics groups every collector. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	fetchTotal     *prometheus.CounterVec
	fetchDuration  prometheus.Histogram
	linksCreated   *prometheus.CounterVec
	busyRejections prometheus.Counter
	scanInProgress prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_total",
			Help:      "URL fetches by result (ok or error).",
		}, []string{"result"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Time spent fetching and classifying one URL.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		linksCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_links_created_total",
			Help:      "Bookmark links created by catalogization strategy.",
		}, []string{"strategy"}),
		busyRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "busy_rejections_total",
			Help:      "Operations rejected because another one was running.",
		}),
		scanInProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scan_in_progress",
			Help:      "1 while a scan is running.",
		}),
	}
	reg.MustRegister(m.fetchTotal, m.fetchDuration, m.linksCreated, m.busyRejections, m.scanInProgress)
	return m
}

func (m *Metrics) ObserveFetch(ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.fetchTotal.WithLabelValues(result).Inc()
	m.fetchDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) LinksCreated(strategy string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.linksCreated.WithLabelValues(strategy).Add(float64(n))
}

func (m *Metrics) BusyRejected() {
	if m == nil {
		return
	}
	m.busyRejections.Inc()
}

func (m *Metrics) ScanRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.scanInProgress.Set(1)
		return
	}
	m.scanInProgress.Set(0)
}
