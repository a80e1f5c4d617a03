package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus HTTP collectors.
type Metrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates HTTP metrics on a dedicated registry. The business
// metrics register on the same registry so /metrics serves both.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "figura"
	}

	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),
		requestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(m.requestsTotal, m.requestDuration, m.requestsInFlight)
	return m
}

// Registry exposes the registry for additional collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware records request count, duration, and in-flight gauge. The route
// template is used as the path label so ids do not explode cardinality.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			m.requestsInFlight.Inc()
			defer m.requestsInFlight.Dec()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			status := strconv.Itoa(c.Response().Status)
			m.requestsTotal.WithLabelValues(c.Request().Method, path, status).Inc()
			m.requestDuration.WithLabelValues(c.Request().Method, path, status).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// Handler serves the registry for the /metrics endpoint.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
