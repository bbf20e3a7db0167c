package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MetricsCollector handles Prometheus metrics collection
type MetricsCollector struct {
	logger   *zap.Logger
	registry *prometheus.Registry

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Backend API metrics
	apiRequestsTotal   *prometheus.CounterVec
	apiRequestDuration *prometheus.HistogramVec

	// View metrics
	recipeLoadsTotal   *prometheus.CounterVec
	viewMutationsTotal *prometheus.CounterVec
	mountedViews       prometheus.Gauge
}

// NewMetricsCollector creates a new metrics collector on its own registry
func NewMetricsCollector(logger *zap.Logger) *MetricsCollector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &MetricsCollector{
		logger:   logger,
		registry: registry,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status_code"},
		),
		apiRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_api_requests_total",
				Help: "Total number of requests sent to the recipe API",
			},
			[]string{"operation", "status"},
		),
		apiRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backend_api_request_duration_seconds",
				Help:    "Recipe API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		recipeLoadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recipe_view_loads_total",
				Help: "Recipe full view loads by outcome",
			},
			[]string{"outcome"},
		),
		viewMutationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recipe_view_mutations_total",
				Help: "Recipe full view mutations by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		mountedViews: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "recipe_views_mounted",
				Help: "Number of recipe views currently mounted",
			},
		),
	}
}

// HTTPMiddleware records request counts and latency per chi route pattern
func (m *MetricsCollector) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		code := strconv.Itoa(status)

		m.httpRequestsTotal.WithLabelValues(r.Method, path, code).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, path, code).Observe(time.Since(start).Seconds())
	})
}

// APIRequest records one call to the recipe API
func (m *MetricsCollector) APIRequest(operation string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.apiRequestsTotal.WithLabelValues(operation, label).Inc()
	m.apiRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveLoad records a recipe view load outcome
func (m *MetricsCollector) ObserveLoad(outcome string) {
	m.recipeLoadsTotal.WithLabelValues(outcome).Inc()
}

// ObserveMutation records a recipe view mutation outcome
func (m *MetricsCollector) ObserveMutation(kind, outcome string) {
	m.viewMutationsTotal.WithLabelValues(kind, outcome).Inc()
}

// SetMountedViews sets the number of mounted views
func (m *MetricsCollector) SetMountedViews(n int) {
	m.mountedViews.Set(float64(n))
}

// Registry exposes the underlying registry
func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus metrics HTTP handler
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{DisableCompression: true})
}
