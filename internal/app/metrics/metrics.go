package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "wishbank",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wishbank",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wishbank",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	wishesSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wishbank",
			Subsystem: "wishes",
			Name:      "submitted_total",
			Help:      "Total number of wishes submitted, by reward tier.",
		},
		[]string{"tier"},
	)

	wishRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wishbank",
			Subsystem: "wishes",
			Name:      "rejections_total",
			Help:      "Total number of wish submissions rejected, by reason.",
		},
		[]string{"reason"},
	)

	creditsGranted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wishbank",
			Subsystem: "ledger",
			Name:      "credits_granted_total",
			Help:      "Total number of credits granted to users.",
		},
	)

	paymentEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wishbank",
			Subsystem: "payments",
			Name:      "events_total",
			Help:      "Total number of payment provider events received, by type and result.",
		},
		[]string{"type", "result"},
	)

	prunedEvents = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wishbank",
			Subsystem: "payments",
			Name:      "events_pruned_total",
			Help:      "Total number of processed payment event records pruned.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		wishesSubmitted,
		wishRejections,
		creditsGranted,
		paymentEvents,
		prunedEvents,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := routePath(r)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordWish counts a submitted wish under its tier.
func RecordWish(tier string) {
	if tier == "" {
		tier = "unknown"
	}
	wishesSubmitted.WithLabelValues(tier).Inc()
}

// RecordWishRejected counts a rejected wish submission.
func RecordWishRejected(reason string) {
	wishRejections.WithLabelValues(reason).Inc()
}

// RecordCreditsGranted adds amount to the granted-credits counter.
func RecordCreditsGranted(amount int64) {
	if amount <= 0 {
		return
	}
	creditsGranted.Add(float64(amount))
}

// RecordPaymentEvent counts a provider event. result is one of applied,
// duplicate, ignored, malformed or failed.
func RecordPaymentEvent(eventType, result string) {
	if eventType == "" {
		eventType = "unknown"
	}
	paymentEvents.WithLabelValues(eventType, result).Inc()
}

// RecordEventsPruned counts payment event records removed by retention.
func RecordEventsPruned(n int64) {
	if n <= 0 {
		return
	}
	prunedEvents.Add(float64(n))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// routePath prefers the mux route template so user ids do not explode the
// label cardinality.
func routePath(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return canonicalPath(r.URL.Path)
}

func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] == "user" && len(parts) > 1 {
		return "/user/{id}"
	}
	return "/" + parts[0]
}
