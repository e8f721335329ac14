package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes application metrics that are safe to scrape via Prometheus.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	modeTransitions     *prometheus.CounterVec
	tileInitDuration    *prometheus.HistogramVec
	surfaceClicks       *prometheus.CounterVec
	markersRendered     *prometheus.GaugeVec
	feedRunsTotal       *prometheus.CounterVec
}

// New creates a fresh Metrics registry with HTTP and surface metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapsurface",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed by mapsurface",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mapsurface",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served by mapsurface",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	modeTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapsurface",
		Name:      "mode_transitions_total",
		Help:      "Operating mode transitions by source and target mode",
	}, []string{"from", "to"})

	tileInitDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mapsurface",
		Name:      "tile_init_duration_seconds",
		Help:      "Time from tile resource initialisation to its readiness notification",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"outcome"})

	surfaceClicks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapsurface",
		Name:      "surface_clicks_total",
		Help:      "Surface clicks by how they were resolved",
	}, []string{"result"})

	markersRendered := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "mapsurface",
		Name:      "markers",
		Help:      "Markers in the current render pass by category",
	}, []string{"category"})

	feedRunsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapsurface",
		Name:      "feed_runs_total",
		Help:      "Input feed refreshes by outcome",
	}, []string{"outcome"})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		modeTransitions,
		tileInitDuration,
		surfaceClicks,
		markersRendered,
		feedRunsTotal,
	)

	return &Metrics{
		registry:            registry,
		httpRequests:        httpRequests,
		httpRequestDuration: httpRequestDuration,
		modeTransitions:     modeTransitions,
		tileInitDuration:    tileInitDuration,
		surfaceClicks:       surfaceClicks,
		markersRendered:     markersRendered,
		feedRunsTotal:       feedRunsTotal,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

func (m *Metrics) IncModeTransition(from, to string) {
	if m == nil {
		return
	}
	m.modeTransitions.WithLabelValues(from, to).Inc()
}

// ObserveTileInit records how long a tile handle took to report ready or failed.
func (m *Metrics) ObserveTileInit(ok bool, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "ready"
	if !ok {
		outcome = "failed"
	}
	m.tileInitDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// IncSurfaceClick counts a click; result is one of coordinate, marker, ignored.
func (m *Metrics) IncSurfaceClick(result string) {
	if m == nil {
		return
	}
	m.surfaceClicks.WithLabelValues(result).Inc()
}

func (m *Metrics) SetMarkers(category string, n int) {
	if m == nil {
		return
	}
	m.markersRendered.WithLabelValues(category).Set(float64(n))
}

func (m *Metrics) IncFeedRun(ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.feedRunsTotal.WithLabelValues(outcome).Inc()
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
