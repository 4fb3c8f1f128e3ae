// Package metrics exposes riskcam counters in Prometheus format.
package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ayusman/riskcam/internal/analysis"
)

// Metrics holds all application metrics
type Metrics struct {
	// Alert counters
	AlertsRaised   atomic.Uint64
	AlertsJournal  atomic.Uint64
	GallerySaves   atomic.Uint64
	GalleryErrors  atomic.Uint64
	MonitorClients atomic.Int64

	analyzed *prometheus.CounterVec
	skipped  *prometheus.CounterVec
	failures *prometheus.CounterVec
	inFlight *prometheus.GaugeVec
	fps      *prometheus.GaugeVec
	latency  *prometheus.HistogramVec

	registry *prometheus.Registry

	mu          sync.Mutex
	controllers map[string]*ControllerMetrics
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry:    prometheus.NewRegistry(),
		controllers: make(map[string]*ControllerMetrics),
		analyzed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "riskcam_frames_analyzed_total",
			Help: "Frames submitted for analysis",
		}, []string{"controller"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "riskcam_ticks_skipped_total",
			Help: "Ticks that did not submit a frame, by reason",
		}, []string{"controller", "reason"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "riskcam_analysis_errors_total",
			Help: "Failed analyses by error kind",
		}, []string{"controller", "kind"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "riskcam_analysis_in_flight",
			Help: "Outstanding analyses (0 or 1 per controller)",
		}, []string{"controller"}),
		fps: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "riskcam_render_fps",
			Help: "Average rendered frames per second over the meter window",
		}, []string{"controller"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "riskcam_analysis_duration_seconds",
			Help:    "Round-trip time of one analysis",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 4, 8, 16, 30},
		}, []string{"controller"}),
	}

	m.registerPrometheusMetrics()
	return m
}

// registerPrometheusMetrics registers all metrics with Prometheus
func (m *Metrics) registerPrometheusMetrics() {
	m.registry.MustRegister(
		m.analyzed, m.skipped, m.failures, m.inFlight, m.fps, m.latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "riskcam_alerts_raised_total",
			Help: "Total HIGH classifications",
		},
		func() float64 { return float64(m.AlertsRaised.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "riskcam_alerts_journaled_total",
			Help: "Total alerts written to the local journal",
		},
		func() float64 { return float64(m.AlertsJournal.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "riskcam_gallery_saves_total",
			Help: "Total frames saved to the remote gallery",
		},
		func() float64 { return float64(m.GallerySaves.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "riskcam_gallery_errors_total",
			Help: "Total failed gallery saves",
		},
		func() float64 { return float64(m.GalleryErrors.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "riskcam_monitor_clients",
			Help: "Connected monitor WebSocket clients",
		},
		func() float64 { return float64(m.MonitorClients.Load()) },
	))
}

// RegisterStream exposes the counters of a broadcast stream source.
func (m *Metrics) RegisterStream(name string, stats func() (received, dropped uint64)) {
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name:        "riskcam_stream_frames_received_total",
			Help:        "Frames received from the broadcast socket",
			ConstLabels: prometheus.Labels{"controller": name},
		},
		func() float64 { r, _ := stats(); return float64(r) },
	))
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name:        "riskcam_stream_frames_dropped_total",
			Help:        "Frames overwritten before they were captured",
			ConstLabels: prometheus.Labels{"controller": name},
		},
		func() float64 { _, d := stats(); return float64(d) },
	))
}

// Controller returns a recorder bound to one controller name.
func (m *Metrics) Controller(name string) *ControllerMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.controllers[name]; ok {
		return c
	}
	c := &ControllerMetrics{m: m, name: name}
	m.controllers[name] = c
	return c
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ControllerMetrics records the activity of one controller.
type ControllerMetrics struct {
	m    *Metrics
	name string

	analyzed atomic.Uint64
	skipped  atomic.Uint64
}

// Skipped counts a tick that submitted nothing.
func (c *ControllerMetrics) Skipped(reason string) {
	c.skipped.Add(1)
	c.m.skipped.WithLabelValues(c.name, reason).Inc()
}

// Started marks an analysis as outstanding.
func (c *ControllerMetrics) Started() {
	c.analyzed.Add(1)
	c.m.analyzed.WithLabelValues(c.name).Inc()
	c.m.inFlight.WithLabelValues(c.name).Set(1)
}

// Finished records the outcome of an analysis.
func (c *ControllerMetrics) Finished(d time.Duration, res analysis.Result) {
	c.m.inFlight.WithLabelValues(c.name).Set(0)
	c.m.latency.WithLabelValues(c.name).Observe(d.Seconds())
	if res.Failed() {
		c.m.failures.WithLabelValues(c.name, res.Kind.String()).Inc()
	}
}

// FPS publishes the current render rate.
func (c *ControllerMetrics) FPS(v float64) {
	c.m.fps.WithLabelValues(c.name).Set(v)
}

// Counts returns how many frames were submitted and how many ticks were skipped.
func (c *ControllerMetrics) Counts() (analyzed, skipped uint64) {
	return c.analyzed.Load(), c.skipped.Load()
}
