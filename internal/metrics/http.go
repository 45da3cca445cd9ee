package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTP API Prometheus metrics. Routes are labelled by their chi pattern,
// so "/api/{schema}/query" stays one series for every schema.
var (
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "archipanion",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "archipanion",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPResponseBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "archipanion",
			Name:      "http_response_size_bytes",
			Help:      "HTTP response body size in bytes",
			Buckets:   prometheus.ExponentialBuckets(128, 4, 8),
		},
		[]string{"route"},
	)

	HTTPInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "archipanion",
			Name:      "http_requests_in_flight",
			Help:      "HTTP requests currently being served",
		},
	)
)

var httpMetricsRegistered bool

// RegisterHTTPMetrics registers HTTP API metrics. Must be called once from main.
func RegisterHTTPMetrics() {
	if httpMetricsRegistered {
		return
	}
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPResponseBytes)
	prometheus.MustRegister(HTTPInFlight)
	httpMetricsRegistered = true
}

// Middleware records duration, count and response size per route.
func Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			HTTPInFlight.Inc()
			defer HTTPInFlight.Dec()

			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := routeOf(r)
			code := strconv.Itoa(status)

			HTTPRequestDuration.WithLabelValues(r.Method, route, code).Observe(time.Since(start).Seconds())
			HTTPRequestsTotal.WithLabelValues(r.Method, route, code).Inc()
			HTTPResponseBytes.WithLabelValues(route).Observe(float64(ww.BytesWritten()))
		})
	}
}

// routeOf returns the matched chi pattern, or "unmatched" for requests no route served.
func routeOf(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return "unmatched"
	}
	if p := rctx.RoutePattern(); p != "" {
		return p
	}
	return "unmatched"
}
