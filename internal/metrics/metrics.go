// Package metrics exposes Prometheus collectors for the acquisition core.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchTotal           *prometheus.CounterVec
	fallbackTotal        *prometheus.CounterVec
	fetchDurationSeconds *prometheus.HistogramVec
	browserSessions      prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		fetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_fetch_total",
				Help: "Total acquisition attempts, labeled by renderer, transport, and outcome.",
			},
			[]string{"renderer", "transport", "outcome"},
		)

		fallbackTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_fallback_total",
				Help: "Total tier fallbacks, labeled by axis (transport or renderer).",
			},
			[]string{"axis"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fetchkit_fetch_duration_seconds",
				Help:    "Histogram of end-to-end acquisition latency, labeled by renderer.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"renderer"},
		)

		browserSessions = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "fetchkit_browser_sessions_active",
				Help: "Number of headless browser sessions currently checked out.",
			},
		)
	})
}

// RecordFetch counts one completed acquisition attempt.
func RecordFetch(renderer, transport, outcome string) {
	if fetchTotal == nil {
		return
	}
	fetchTotal.WithLabelValues(renderer, transport, outcome).Inc()
}

// RecordFallback counts one tier fallback on the given axis.
func RecordFallback(axis string) {
	if fallbackTotal == nil {
		return
	}
	fallbackTotal.WithLabelValues(axis).Inc()
}

// ObserveDuration records end-to-end acquisition latency.
func ObserveDuration(renderer string, d time.Duration) {
	if fetchDurationSeconds == nil {
		return
	}
	fetchDurationSeconds.WithLabelValues(renderer).Observe(d.Seconds())
}

// SetBrowserSessions updates the active browser-session gauge.
func SetBrowserSessions(n int64) {
	if browserSessions == nil {
		return
	}
	browserSessions.Set(float64(n))
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
