// Package metrics provides Prometheus metrics for the facet server.
// Collectors are registered on a caller-supplied registry so tests and
// multiple servers in one process do not share global state.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fit outcomes reported by RecordFit.
const (
	FitSuccess     = "success"
	FitFailed      = "failed"
	FitInvalid     = "invalid"
	FitUnavailable = "unavailable"
)

// Metrics holds the server's collectors.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal        *prometheus.CounterVec
	TessellationDuration prometheus.Histogram
	MeshTriangles        prometheus.Histogram
	ShapesRegistered     prometheus.Gauge
	CylinderFits         *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg gets a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,

		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "facet_http_requests_total",
				Help: "Total number of HTTP requests by route and status",
			},
			[]string{"route", "status"},
		),

		TessellationDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "facet_tessellation_duration_seconds",
				Help:    "Time taken to tessellate a shape and assemble its mesh",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			},
		),

		MeshTriangles: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "facet_mesh_triangles",
				Help:    "Triangle count of assembled meshes",
				Buckets: prometheus.ExponentialBuckets(10, 4, 8),
			},
		),

		ShapesRegistered: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "facet_shapes_registered",
				Help: "Number of shapes held in the registry",
			},
		),

		CylinderFits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "facet_cylinder_fits_total",
				Help: "Total number of cylinder fit requests by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// WithRuntimeCollectors adds the Go runtime and process collectors.
func (m *Metrics) WithRuntimeCollectors() *Metrics {
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest records a handled HTTP request.
func (m *Metrics) RecordRequest(route string, status int) {
	m.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// RecordMesh records an assembled mesh.
func (m *Metrics) RecordMesh(triangles int, duration time.Duration) {
	m.TessellationDuration.Observe(duration.Seconds())
	m.MeshTriangles.Observe(float64(triangles))
}

// SetShapes reports the registry size.
func (m *Metrics) SetShapes(n int) {
	m.ShapesRegistered.Set(float64(n))
}

// RecordFit records a cylinder fit outcome.
func (m *Metrics) RecordFit(outcome string) {
	m.CylinderFits.WithLabelValues(outcome).Inc()
}

// Timer is a helper for measuring duration
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
