// Package metrics exposes Prometheus collectors for the authentication engine and the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"tenantauth/internal/domain/service"
)

const namespace = "tenantauth"

// NewRegistry returns a registry carrying the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return reg
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

type authMetrics struct {
	operations *prometheus.CounterVec
	reuse      prometheus.Counter
}

// NewAuthMetrics registers the engine outcome counters.
func NewAuthMetrics(reg *prometheus.Registry) (service.AuthMetrics, error) {
	m := &authMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "operations_total",
			Help:      "Authentication operations by outcome.",
		}, []string{"operation", "outcome"}),
		reuse: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_reuse_detected_total",
			Help:      "Refresh token replays that revoked every session of an account.",
		}),
	}

	for _, c := range []prometheus.Collector{m.operations, m.reuse} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "failed to register auth metrics")
		}
	}

	return m, nil
}

func (m *authMetrics) ObserveOperation(operation, outcome string) {
	m.operations.WithLabelValues(operation, outcome).Inc()
}

func (m *authMetrics) ObserveReuseDetected() {
	m.reuse.Inc()
}

// HTTPMetrics tracks request rate, latency and concurrency per route template.
type HTTPMetrics struct {
	inFlight prometheus.Gauge
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics registers the HTTP collectors.
func NewHTTPMetrics(reg *prometheus.Registry) (*HTTPMetrics, error) {
	m := &HTTPMetrics{
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "In-flight HTTP requests.",
		}),
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	for _, c := range []prometheus.Collector{m.inFlight, m.total, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "failed to register http metrics")
		}
	}

	return m, nil
}

// Start marks a request in flight and returns the function that records its completion.
func (m *HTTPMetrics) Start(method string) func(route string, status int) {
	m.inFlight.Inc()
	start := time.Now()

	return func(route string, status int) {
		code := strconv.Itoa(status)
		m.duration.WithLabelValues(method, route, code).Observe(time.Since(start).Seconds())
		m.total.WithLabelValues(method, route, code).Inc()
		m.inFlight.Dec()
	}
}

// Module provides the metrics FX module
//
//nolint:gochecknoglobals
var Module = fx.Options(
	fx.Provide(NewRegistry, NewAuthMetrics, NewHTTPMetrics),
)
