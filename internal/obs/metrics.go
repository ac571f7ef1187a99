package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// contextResolutions tracks entity-context resolver outcomes per request:
	// "hinted" (the preferred entity won), "corrected" (a stale hint was
	// silently replaced), "empty" (no accepted membership on an active
	// organisation).
	contextResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entity_context_resolutions_total",
			Help: "Entity context resolutions by outcome.",
		},
		[]string{"outcome"},
	)

	sessionsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessions_rejected_total",
			Help: "Sessions rejected at the authentication gate.",
		},
		[]string{"reason"},
	)
)

// Init registers the service metrics in the default registry.
func Init() {
	prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration,
		contextResolutions, sessionsRejected)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ContextResolved records a resolver outcome.
func ContextResolved(outcome string) {
	contextResolutions.WithLabelValues(outcome).Inc()
}

// SessionRejected records an authentication-gate rejection.
func SessionRejected(reason string) {
	sessionsRejected.WithLabelValues(reason).Inc()
}

// Instrument wraps a handler with RPS/latency/in-flight measurement.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
