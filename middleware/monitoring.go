package middleware

import (
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
	authRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_rejections_total",
			Help: "Total number of unauthorized requests",
		},
		[]string{"reason"},
	)
	friendOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "friend_operations_total",
			Help: "Relationship manager operations by outcome",
		},
		[]string{"operation", "outcome"},
	)
	partialWritesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "friend_partial_writes_total",
			Help: "Two-sided friend edge writes that left one side inconsistent",
		},
	)
	reconcilerActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "friend_reconciler_actions_total",
			Help: "One-sided edges detected and repaired by the reconciler",
		},
		[]string{"action"},
	)
)

// InitPrometheus registers the metrics. Call this from main.go
func InitPrometheus() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(authRejections)
	prometheus.MustRegister(friendOpsTotal)
	prometheus.MustRegister(partialWritesTotal)
	prometheus.MustRegister(reconcilerActionsTotal)
}

// CountFriendOp records one relationship-manager operation outcome.
func CountFriendOp(operation, outcome string) {
	friendOpsTotal.WithLabelValues(operation, outcome).Inc()
}

// CountPartialWrite records a durable one-sided edge. These are the severe
// failures the reconciler exists for, so they get their own counter.
func CountPartialWrite() {
	partialWritesTotal.Inc()
}

// CountReconcilerAction records a detected or repaired inconsistency.
func CountReconcilerAction(action string) {
	reconcilerActionsTotal.WithLabelValues(action).Inc()
}

// MonitorMiddleware wraps the router to track all request stats
func MonitorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Initialize with 200 OK in case WriteHeader isn't called explicitly
		ww := &responseWriter{w, http.StatusOK}

		next.ServeHTTP(ww, r)

		duration := time.Since(start).Seconds()

		path := metricsPath(r)
		httpRequestsTotal.WithLabelValues(path, r.Method, http.StatusText(ww.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(path, r.Method).Observe(duration)

		if ww.statusCode == http.StatusUnauthorized {
			authRejections.WithLabelValues("401_unauthorized").Inc()
		} else if ww.statusCode == http.StatusForbidden {
			authRejections.WithLabelValues("403_forbidden").Inc()
		}
	})
}

// metricsPath labels requests by the matched route template, so ID-bearing
// routes like /user/friends/requests/{requestID} count under one label pair
// instead of minting a new one per request ID.
func metricsPath(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// BasicAuthMiddleware protects /metrics
func BasicAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()

		metricsUser := os.Getenv("METRICS_USER")
		metricsPass := os.Getenv("METRICS_PASS")

		if !ok || user != metricsUser || pass != metricsPass {
			w.Header().Set("WWW-Authenticate", `Basic realm="Metrics"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
