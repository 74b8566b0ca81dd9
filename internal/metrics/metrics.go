// Package metrics provides Prometheus instrumentation for the auction engine.
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
	// BidsAccepted counts bids committed to the ledger, partitioned by
	// origin ("manual" or "auto").
	BidsAccepted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_bids_accepted_total",
		Help: "Total number of accepted bids",
	}, []string{"origin"})

	// BidsRejected counts rejected bids by reason code.
	BidsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_bids_rejected_total",
		Help: "Total number of rejected bids",
	}, []string{"reason"})

	// AuctionExtensions counts anti-sniping end-time extensions.
	AuctionExtensions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auction_extensions_total",
		Help: "Total number of anti-sniping auction extensions",
	})

	// AuctionsClosed counts close operations by terminal state.
	AuctionsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_closes_total",
		Help: "Total number of auction close operations by terminal state",
	}, []string{"state"})

	// CascadeDepth observes how many counter-bids one trigger produced.
	CascadeDepth = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "auction_autobid_cascade_depth",
		Help:    "Number of counter-bids placed per cascade",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21, 50, 100},
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "auction_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
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
