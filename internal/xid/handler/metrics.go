package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	xidRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xid_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	xidRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "xid_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	xidBindingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xid_bindings_total",
		Help: "Binding and unbinding attempts by protocol and result.",
	}, []string{"protocol", "result"})

	xidDivergencesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xid_registry_divergences_total",
		Help: "Local changes the registry failed to mirror.",
	}, []string{"op"})

	xidBoundIdentities = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "xid_bound_identities",
		Help: "Number of identities currently bound.",
	})

	xidUpstreamChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xid_upstream_checks_total",
		Help: "Upstream health probes by target and result.",
	}, []string{"target", "result"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		xidRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		xidRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// Recorder feeds service binding outcomes into Prometheus.
// It satisfies service.Recorder.
type Recorder struct{}

func (Recorder) Binding(protocol, result string) {
	xidBindingsTotal.WithLabelValues(protocol, result).Inc()
}

func (Recorder) Divergence(op string) {
	xidDivergencesTotal.WithLabelValues(op).Inc()
}

func (Recorder) BoundIdentities(n int) {
	xidBoundIdentities.Set(float64(n))
}

// RecordUpstreamCheck records an upstream health probe result.
func RecordUpstreamCheck(target string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	xidUpstreamChecksTotal.WithLabelValues(target, result).Inc()
}
