// Package metrics records capture cycle activity for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Capture outcomes
const (
	CaptureNew    = "new"
	CaptureCached = "cached"
	CaptureFailed = "failed"
)

// Metrics holds the collectors on a private registry. A nil *Metrics
// records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	stages        *prometheus.CounterVec
	captures      *prometheus.CounterVec
	lastCycle     prometheus.Gauge
}

// New creates and registers the collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wolfcreek",
			Name:      "cycles_total",
			Help:      "Capture cycles by final status.",
		}, []string{"status"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wolfcreek",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of a capture cycle.",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		stages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wolfcreek",
			Name:      "stage_results_total",
			Help:      "Cycle stage outcomes.",
		}, []string{"stage", "status"}),
		captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wolfcreek",
			Name:      "captures_total",
			Help:      "Per-camera capture outcomes.",
		}, []string{"result"}),
		lastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wolfcreek",
			Name:      "last_cycle_completed_timestamp_seconds",
			Help:      "Unix time the last cycle summary was saved.",
		}),
	}
	m.registry.MustRegister(
		m.cycles, m.cycleDuration, m.stages, m.captures, m.lastCycle,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and extra collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveCycle records a finished cycle
func (m *Metrics) ObserveCycle(status string, duration time.Duration, completedAt time.Time) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(status).Inc()
	m.cycleDuration.Observe(duration.Seconds())
	if !completedAt.IsZero() {
		m.lastCycle.Set(float64(completedAt.Unix()))
	}
}

// ObserveStage records one stage outcome
func (m *Metrics) ObserveStage(stage, status string) {
	if m == nil {
		return
	}
	m.stages.WithLabelValues(stage, status).Inc()
}

// ObserveCapture records one camera outcome
func (m *Metrics) ObserveCapture(result string) {
	if m == nil {
		return
	}
	m.captures.WithLabelValues(result).Inc()
}
