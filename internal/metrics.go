package internal

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for HTTP requests and NAV lookups
type Metrics struct {
	reqTotal    *prometheus.CounterVec
	reqLatency  *prometheus.HistogramVec
	navRequests *prometheus.CounterVec
	navLatency  *prometheus.HistogramVec
	navCache    *prometheus.CounterVec
	registry    *prometheus.Registry
}

// NewMetrics creates a new Metrics instance with a private Prometheus registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	reqTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	reqLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	navRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nav_requests_total",
			Help: "NAV lookups by entity set and outcome",
		},
		[]string{"entity_set", "outcome"},
	)

	navLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nav_request_duration_seconds",
			Help:    "NAV lookup latency in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"entity_set"},
	)

	navCache := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nav_cache_hits_total",
			Help: "NAV lookups answered from the cache",
		},
		[]string{"entity_set"},
	)

	registry.MustRegister(reqTotal, reqLatency, navRequests, navLatency, navCache)

	return &Metrics{
		reqTotal:    reqTotal,
		reqLatency:  reqLatency,
		navRequests: navRequests,
		navLatency:  navLatency,
		navCache:    navCache,
		registry:    registry,
	}
}

// Middleware returns a Chi middleware that collects metrics
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(rw, r)

			// Route pattern keeps label cardinality bounded
			path := r.URL.Path
			if chiCtx := chi.RouteContext(r.Context()); chiCtx != nil && len(chiCtx.RoutePatterns) > 0 {
				path = chiCtx.RoutePatterns[len(chiCtx.RoutePatterns)-1]
			}

			status := strconv.Itoa(rw.code)
			m.reqTotal.WithLabelValues(r.Method, path, status).Inc()
			m.reqLatency.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		})
	}
}

// ObserveNAV records one upstream NAV request.
func (m *Metrics) ObserveNAV(entitySet string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.navRequests.WithLabelValues(entitySet, outcome).Inc()
	m.navLatency.WithLabelValues(entitySet).Observe(time.Since(start).Seconds())
}

// ObserveNAVCacheHit records a lookup served without calling NAV.
func (m *Metrics) ObserveNAVCacheHit(entitySet string) {
	m.navCache.WithLabelValues(entitySet).Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// statusRecorder captures the HTTP status code for metrics
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.code = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	return sr.ResponseWriter.Write(b)
}
