package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blogsphere_http_requests_total",
		Help: "The total number of handled HTTP requests",
	}, []string{"method", "route", "status_code"})

	requestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blogsphere_http_request_latency",
			Help:    "Histogram of HTTP request latency in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)

	commentEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blogsphere_comment_events_total",
		Help: "The total number of published comment events",
	}, []string{"type"})

	streamSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "blogsphere_comment_stream_subscribers",
		Help: "Open comment stream connections",
	})
)

// Middleware records request count and latency per chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		requestLatency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// CommentEvent counts a published comment event.
func CommentEvent(eventType string) {
	commentEvents.WithLabelValues(eventType).Inc()
}

// StreamOpened and StreamClosed track live comment stream connections.
func StreamOpened() { streamSubscribers.Inc() }
func StreamClosed() { streamSubscribers.Dec() }

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
