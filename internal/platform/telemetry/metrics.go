// Package telemetry exposes Prometheus metrics for the portal: HTTP traffic,
// gate decisions, sign-in outcomes and lab report uploads.
package telemetry

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ehr_portal"

// Metrics owns its registry so tests can create independent instances.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	gateDecisions *prometheus.CounterVec
	authAttempts  *prometheus.CounterVec
	uploads       *prometheus.CounterVec
	uploadBytes   prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_decisions_total",
			Help:      "Role gate outcomes per page",
		}, []string{"page", "decision"}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Sign-in and sign-up attempts by outcome",
		}, []string{"method", "status"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lab_report_uploads_total",
			Help:      "Lab report uploads by outcome",
		}, []string{"outcome"}),
		uploadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lab_report_upload_bytes",
			Help:      "Size of accepted lab report files",
			Buckets:   prometheus.ExponentialBuckets(16<<10, 4, 6),
		}),
	}
	m.registry.MustRegister(
		m.httpRequests, m.httpDuration, m.gateDecisions, m.authAttempts, m.uploads, m.uploadBytes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Middleware records request count and latency keyed by the matched route
// template, so ids in the path do not explode label cardinality.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			m.httpRequests.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			m.httpDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

func (m *Metrics) ObserveGate(page, decision string) {
	m.gateDecisions.WithLabelValues(page, decision).Inc()
}

func (m *Metrics) ObserveAuth(method, status string) {
	m.authAttempts.WithLabelValues(method, status).Inc()
}

func (m *Metrics) ObserveUpload(outcome string, size int64) {
	m.uploads.WithLabelValues(outcome).Inc()
	if outcome == "accepted" {
		m.uploadBytes.Observe(float64(size))
	}
}
