// Package metrics owns the Prometheus registry for the API: HTTP request
// collectors fed by an echo middleware plus the domain counters bumped by the
// engines.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "styledecor",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "styledecor",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "styledecor",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	bookingTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "styledecor",
			Subsystem: "bookings",
			Name:      "transitions_total",
			Help:      "Booking status transitions applied, by target status.",
		},
		[]string{"status"},
	)

	partialWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "styledecor",
			Subsystem: "bookings",
			Name:      "partial_writes_total",
			Help:      "Two-step writes whose second step failed after the first applied.",
		},
		[]string{"operation"},
	)

	settlements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "styledecor",
			Subsystem: "payments",
			Name:      "settlements_total",
			Help:      "Settlement attempts by outcome.",
		},
		[]string{"outcome"},
	)

	reviews = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "styledecor",
			Subsystem: "decorators",
			Name:      "reviews_total",
			Help:      "Decorator application reviews applied, by action.",
		},
		[]string{"action"},
	)

	repairs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "styledecor",
			Subsystem: "reconcile",
			Name:      "repairs_total",
			Help:      "Repairs applied by the reconciler, by rule.",
		},
		[]string{"rule"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		bookingTransitions,
		partialWrites,
		settlements,
		reviews,
		repairs,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request count, duration and in-flight gauge.  Routes
// are labelled by their registered template so ids do not explode
// cardinality.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().URL.Path == "/metrics" {
				return next(c)
			}
			start := time.Now()
			httpInFlight.Inc()
			defer httpInFlight.Dec()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := strings.ToUpper(c.Request().Method)
			httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Response().Status)).Inc()
			httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// RecordTransition counts a booking moving to status.
func RecordTransition(status string) {
	bookingTransitions.WithLabelValues(status).Inc()
}

// RecordPartialWrite counts a two-step write left half applied.
func RecordPartialWrite(operation string) {
	partialWrites.WithLabelValues(operation).Inc()
}

// RecordSettlement counts a settlement attempt; outcome is "settled",
// "duplicate", "unpaid" or "error".
func RecordSettlement(outcome string) {
	settlements.WithLabelValues(outcome).Inc()
}

// RecordReview counts an applied application review.
func RecordReview(action string) {
	reviews.WithLabelValues(action).Inc()
}

// RecordRepair counts a reconciler repair.
func RecordRepair(rule string) {
	repairs.WithLabelValues(rule).Inc()
}
