// Package metrics provides Prometheus metrics for the HTTP layer and the store.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mathclub/festival-bbs/internal/storage"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	storeOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bbs_store_operation_duration_seconds",
			Help:    "Duration of key-path store calls",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5, 10},
		},
		[]string{"op", "result"},
	)

	postsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bbs_posts_created_total",
			Help: "Posts created per board",
		},
		[]string{"board"},
	)

	postsDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bbs_posts_deleted_total",
			Help: "Posts deleted by moderators per board",
		},
		[]string{"board"},
	)

	liveSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bbs_live_subscribers",
			Help: "Open websocket post feeds",
		},
	)
)

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{w, http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack keeps websocket upgrades working behind the middleware.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns HTTP middleware that records Prometheus metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := newResponseWriter(w)
		next.ServeHTTP(wrapped, r)

		// Use chi's route pattern if available to avoid high cardinality
		path := r.URL.Path
		if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
			if pattern := routeCtx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(wrapped.statusCode)

		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// Handler serves the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveStoreOp matches storage.Observer.
func ObserveStoreOp(op string, elapsed time.Duration, err error) {
	result := "ok"
	switch {
	case errors.Is(err, storage.ErrTimeout):
		result = "timeout"
	case err != nil:
		result = "error"
	}
	storeOpDuration.WithLabelValues(op, result).Observe(elapsed.Seconds())
}

func PostCreated(boardID string) {
	postsCreated.WithLabelValues(boardID).Inc()
}

func PostDeleted(boardID string) {
	postsDeleted.WithLabelValues(boardID).Inc()
}

func SubscriberJoined() { liveSubscribers.Inc() }

func SubscriberLeft() { liveSubscribers.Dec() }
