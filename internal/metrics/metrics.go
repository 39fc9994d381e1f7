// Package metrics holds the Prometheus collectors for the pickup service.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "scrap_pickup",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scrap_pickup",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scrap_pickup",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	ordersCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scrap_pickup",
			Subsystem: "orders",
			Name:      "created_total",
			Help:      "Total number of pickup orders created.",
		},
	)

	orderTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scrap_pickup",
			Subsystem: "orders",
			Name:      "transitions_total",
			Help:      "Order status transitions by target status and outcome.",
		},
		[]string{"target", "outcome"},
	)

	accrualFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scrap_pickup",
			Subsystem: "loyalty",
			Name:      "accrual_failures_total",
			Help:      "Completed orders whose loyalty accrual failed.",
		},
	)

	identityLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scrap_pickup",
			Subsystem: "identity",
			Name:      "lookups_total",
			Help:      "Identity profile lookups by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		ordersCreated,
		orderTransitions,
		accrualFailures,
		identityLookups,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
// Requests are labelled by their chi route pattern so path ids do not explode cardinality.
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

		route := routePattern(r)
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

// RecordOrderCreated counts a persisted order.
func RecordOrderCreated() { ordersCreated.Inc() }

// RecordTransition counts a transition attempt. outcome is "ok" or an error kind.
func RecordTransition(target, outcome string) {
	orderTransitions.WithLabelValues(target, outcome).Inc()
}

// RecordAccrualFailure counts a completion whose loyalty update did not land.
func RecordAccrualFailure() { accrualFailures.Inc() }

// RecordIdentityLookup counts a profile lookup by outcome: hit, miss, fetched, unknown, error or timeout.
func RecordIdentityLookup(outcome string) {
	identityLookups.WithLabelValues(outcome).Inc()
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

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
