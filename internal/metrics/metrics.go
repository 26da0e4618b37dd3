// Package metrics provides Prometheus instrumentation for the returns engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SimulationsTotal counts horizon simulations, partitioned by outcome
	// status (ok, insufficient_data, ticker_not_found).
	SimulationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aporte_simulations_total",
		Help: "Total number of horizon simulations executed",
	}, []string{"status"})

	// SimulationLatency tracks end-to-end simulation duration.
	SimulationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "aporte_simulation_latency_seconds",
		Help:    "Horizon simulation latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// ProviderRequests counts upstream fetches by provider and outcome.
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aporte_provider_requests_total",
		Help: "Upstream data provider requests",
	}, []string{"provider", "outcome"})

	// SeriesCacheHits counts series served without touching a provider.
	SeriesCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aporte_series_cache_hits_total",
		Help: "Series reads served from the store/cache",
	}, []string{"kind"})

	// SeriesCacheMisses counts series reads that went upstream.
	SeriesCacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aporte_series_cache_misses_total",
		Help: "Series reads that required an upstream fetch",
	}, []string{"kind"})

	// SplitAmbiguousTotal counts split corrections where the adjusted and
	// unadjusted hypotheses were near-equidistant.
	SplitAmbiguousTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aporte_split_ambiguous_total",
		Help: "Split adjustments flagged as ambiguous by the resolver",
	})

	// WebSocketClients tracks connected refresh-event subscribers.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aporte_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aporte_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aporte_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
